package storage

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/spleefx/spleefx/internal/domain"
)

// Null scanner helpers

func scanNullInt64ToInt(ni sql.NullInt64) int {
	if ni.Valid {
		return int(ni.Int64)
	}
	return 0
}

func nullableInt(v int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(v), Valid: v > 0}
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func parsePlayerID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing player id %q: %w", raw, err)
	}
	return id, nil
}

// scanGameRow scans the games columns selected by RecentGames and Game
func scanGameRow(s scanner) (*domain.GameResult, error) {
	var g domain.GameResult
	var arenaType string
	err := s.Scan(&g.ID, &g.UUID, &g.Arena, &g.Mode, &arenaType,
		&g.StartedAt, &g.EndedAt, &g.Draw, &g.Forced, &g.Pool)
	if err != nil {
		return nil, err
	}
	g.Type = domain.ArenaType(arenaType)
	g.StartedAt = g.StartedAt.UTC()
	g.EndedAt = g.EndedAt.UTC()
	return &g, nil
}

// scanGamePlayer scans a game_players row and returns the game ID with it
func scanGamePlayer(s scanner) (int64, *domain.GameParticipant, error) {
	var gameID int64
	var rawID, team string
	var placement sql.NullInt64
	var p domain.GameParticipant
	if err := s.Scan(&gameID, &rawID, &p.Name, &team, &placement, &p.Payout); err != nil {
		return 0, nil, err
	}
	id, err := parsePlayerID(rawID)
	if err != nil {
		return 0, nil, err
	}
	p.PlayerID = id
	p.Team = domain.TeamColor(team)
	p.Placement = scanNullInt64ToInt(placement)
	return gameID, &p, nil
}

// scanLeaderboardEntry scans a ranked player_stats row
func scanLeaderboardEntry(s scanner) (*domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	var rawID string
	if err := s.Scan(&rawID, &e.Name, &e.Value, &e.LastSeen); err != nil {
		return nil, err
	}
	id, err := parsePlayerID(rawID)
	if err != nil {
		return nil, err
	}
	e.PlayerID = id
	e.LastSeen = e.LastSeen.UTC()
	return &e, nil
}
