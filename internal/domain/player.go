package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlayerState is a participant's lifecycle state
type PlayerState string

const (
	NotInGame  PlayerState = "NOT_INGAME"
	Waiting    PlayerState = "WAITING"
	InGame     PlayerState = "IN_GAME"
	Spectating PlayerState = "SPECTATING"
)

// Statistic names a per-mode player counter
type Statistic string

const (
	StatWins        Statistic = "wins"
	StatLosses      Statistic = "losses"
	StatDraws       Statistic = "draws"
	StatGamesPlayed Statistic = "games_played"
	StatBlocksMined Statistic = "blocks_mined"
)

// Statistics lists every counter in display order
var Statistics = []Statistic{StatWins, StatLosses, StatDraws, StatGamesPlayed, StatBlocksMined}

// ValidStatistic reports whether s names a known counter
func ValidStatistic(s string) bool {
	for _, st := range Statistics {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Ability is a limited-use in-game ability
type Ability string

const (
	AbilityDoubleJump Ability = "DOUBLE_JUMP"
)

// PlayerStats holds a player's counters for one mode plus their coin balance
type PlayerStats struct {
	PlayerID uuid.UUID           `json:"player_id"`
	Name     string              `json:"name,omitempty"`
	Mode     string              `json:"mode"`
	Counters map[Statistic]int64 `json:"counters"`
	Coins    int                 `json:"coins"`
	Perks    map[string]int      `json:"perks,omitempty"`
}

// LeaderboardEntry is one ranked row for a statistic
type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	PlayerID uuid.UUID `json:"player_id"`
	Name     string    `json:"name"`
	Value    int64     `json:"value"`
	LastSeen time.Time `json:"last_seen"`
}
