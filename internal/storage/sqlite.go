package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spleefx/spleefx/internal/domain"
	_ "modernc.org/sqlite"
)

// ErrInsufficientFunds is returned by TakeCoins when the balance is too low
var ErrInsufficientFunds = errors.New("insufficient coins")

// formatTimestamp converts time.Time to SQLite-compatible UTC ISO8601 string
// The Z suffix ensures the Go sqlite driver parses it back as UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

//go:embed schema.sql
var schema string

// Store provides database access
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting pragmas: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// --- Statistic methods ---

// AddStat adds delta to a player's counter for a mode, creating it at zero first
func (s *Store) AddStat(ctx context.Context, id uuid.UUID, name, mode string, stat domain.Statistic, delta int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_stats (player_id, name, mode, stat, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(player_id, mode, stat) DO UPDATE SET
			value = value + excluded.value,
			name = CASE WHEN excluded.name = '' THEN name ELSE excluded.name END,
			updated_at = excluded.updated_at
	`, id.String(), name, mode, string(stat), delta, formatTimestamp(s.now()))
	if err != nil {
		return fmt.Errorf("adding %s for %s: %w", stat, id, err)
	}
	return nil
}

// Stat returns a single counter, zero when the player has none
func (s *Store) Stat(ctx context.Context, id uuid.UUID, mode string, stat domain.Statistic) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM player_stats WHERE player_id = ? AND mode = ? AND stat = ?
	`, id.String(), mode, string(stat)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

// Stats returns every counter of a player for a mode, plus coins and perks.
// Counters the player never touched are reported as zero.
func (s *Store) Stats(ctx context.Context, id uuid.UUID, mode string) (*domain.PlayerStats, error) {
	stats := &domain.PlayerStats{
		PlayerID: id,
		Mode:     mode,
		Counters: make(map[domain.Statistic]int64, len(domain.Statistics)),
	}
	for _, st := range domain.Statistics {
		stats.Counters[st] = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, stat, value FROM player_stats WHERE player_id = ? AND mode = ?
		ORDER BY updated_at
	`, id.String(), mode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, stat string
		var value int64
		if err := rows.Scan(&name, &stat, &value); err != nil {
			return nil, err
		}
		if name != "" {
			stats.Name = name
		}
		stats.Counters[domain.Statistic(stat)] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Coins, err = s.Coins(ctx, id); err != nil {
		return nil, err
	}
	if stats.Perks, err = s.Perks(ctx, id); err != nil {
		return nil, err
	}
	return stats, nil
}

// Leaderboard returns the top players of a mode ranked by one counter
func (s *Store) Leaderboard(ctx context.Context, mode string, stat domain.Statistic, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT player_id, name, value, updated_at
		FROM player_stats
		WHERE mode = ? AND stat = ? AND value > 0
		ORDER BY value DESC, updated_at ASC, player_id ASC
		LIMIT ?
	`, mode, string(stat), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboardEntry(rows)
		if err != nil {
			return nil, err
		}
		e.Rank = len(entries) + 1
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// --- Coin methods ---

// Coins returns a player's balance
func (s *Store) Coins(ctx context.Context, id uuid.UUID) (int, error) {
	var coins int
	err := s.db.QueryRowContext(ctx, "SELECT coins FROM player_coins WHERE player_id = ?", id.String()).Scan(&coins)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return coins, err
}

// GiveCoins credits a player's balance
func (s *Store) GiveCoins(ctx context.Context, id uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("giving %d coins: negative amount", amount)
	}
	if amount == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_coins (player_id, coins, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET
			coins = coins + excluded.coins,
			updated_at = excluded.updated_at
	`, id.String(), amount, formatTimestamp(s.now()))
	if err != nil {
		return fmt.Errorf("giving coins to %s: %w", id, err)
	}
	return nil
}

// TakeCoins debits a player's balance, failing with ErrInsufficientFunds
// rather than going negative
func (s *Store) TakeCoins(ctx context.Context, id uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("taking %d coins: negative amount", amount)
	}
	if amount == 0 {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE player_coins SET coins = coins - ?, updated_at = ?
		WHERE player_id = ? AND coins >= ?
	`, amount, formatTimestamp(s.now()), id.String(), amount)
	if err != nil {
		return fmt.Errorf("taking coins from %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// --- Perk methods ---

// Perks returns every perk a player owns with a positive amount
func (s *Store) Perks(ctx context.Context, id uuid.UUID) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT perk, amount FROM player_perks WHERE player_id = ? AND amount > 0 ORDER BY perk
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	perks := make(map[string]int)
	for rows.Next() {
		var perk string
		var amount int
		if err := rows.Scan(&perk, &amount); err != nil {
			return nil, err
		}
		perks[perk] = amount
	}
	return perks, rows.Err()
}

// GrantPerk adds uses of a perk to a player
func (s *Store) GrantPerk(ctx context.Context, id uuid.UUID, perk string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("granting %d of %s: amount must be positive", amount, perk)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_perks (player_id, perk, amount)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id, perk) DO UPDATE SET amount = amount + excluded.amount
	`, id.String(), perk, amount)
	if err != nil {
		return fmt.Errorf("granting %s to %s: %w", perk, id, err)
	}
	return nil
}

// ConsumePerk uses one of a player's perk. It reports false when none are left.
func (s *Store) ConsumePerk(ctx context.Context, id uuid.UUID, perk string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE player_perks SET amount = amount - 1
		WHERE player_id = ? AND perk = ? AND amount > 0
	`, id.String(), perk)
	if err != nil {
		return false, fmt.Errorf("consuming %s for %s: %w", perk, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- Game methods ---

// RecordGame stores a finished game and its participants in one transaction
// and sets g.ID. Recording the same game UUID twice is an error.
func (s *Store) RecordGame(ctx context.Context, g *domain.GameResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO games (uuid, arena, mode, arena_type, started_at, ended_at, draw, forced, pool)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.UUID, g.Arena, g.Mode, string(g.Type), formatTimestamp(g.StartedAt), formatTimestamp(g.EndedAt),
		boolToInt(g.Draw), boolToInt(g.Forced), g.Pool)
	if err != nil {
		return fmt.Errorf("inserting game %s: %w", g.UUID, err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, p := range g.Players {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, player_id, name, team, placement, payout)
			VALUES (?, ?, ?, ?, ?, ?)
		`, gameID, p.PlayerID.String(), p.Name, string(p.Team), nullableInt(p.Placement), p.Payout)
		if err != nil {
			return fmt.Errorf("inserting player %s of game %s: %w", p.PlayerID, g.UUID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	g.ID = gameID
	return nil
}

// RecentGames returns the latest games, newest first. An empty arena means every arena.
func (s *Store) RecentGames(ctx context.Context, arena string, limit int) ([]domain.GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, uuid, arena, mode, arena_type, started_at, ended_at, draw, forced, pool
		FROM games`
	var args []interface{}
	if arena != "" {
		query += " WHERE arena = ?"
		args = append(args, arena)
	}
	query += " ORDER BY ended_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []domain.GameResult
	var gameIDs []int64
	for rows.Next() {
		g, err := scanGameRow(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
		gameIDs = append(gameIDs, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return s.attachPlayersToGames(ctx, games, gameIDs)
}

// Game returns one recorded game by UUID, or nil when it does not exist
func (s *Store) Game(ctx context.Context, gameUUID string) (*domain.GameResult, error) {
	g, err := scanGameRow(s.db.QueryRowContext(ctx, `
		SELECT id, uuid, arena, mode, arena_type, started_at, ended_at, draw, forced, pool
		FROM games WHERE uuid = ?
	`, gameUUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	games, err := s.attachPlayersToGames(ctx, []domain.GameResult{*g}, []int64{g.ID})
	if err != nil {
		return nil, err
	}
	return &games[0], nil
}

// attachPlayersToGames loads the participants of a list of games and attaches them
func (s *Store) attachPlayersToGames(ctx context.Context, games []domain.GameResult, gameIDs []int64) ([]domain.GameResult, error) {
	if len(gameIDs) == 0 {
		return games, nil
	}

	placeholders := make([]string, len(gameIDs))
	args := make([]interface{}, len(gameIDs))
	for i, id := range gameIDs {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, player_id, name, team, placement, payout
		FROM game_players
		WHERE game_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY placement IS NULL, placement, name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	playersByGame := make(map[int64][]domain.GameParticipant)
	for rows.Next() {
		gameID, p, err := scanGamePlayer(rows)
		if err != nil {
			return nil, err
		}
		playersByGame[gameID] = append(playersByGame[gameID], *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range games {
		games[i].Players = playersByGame[games[i].ID]
	}
	return games, nil
}
