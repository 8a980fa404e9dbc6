package domain

import (
	"time"

	"github.com/google/uuid"
)

// GameResult records one finished game of an arena
type GameResult struct {
	ID        int64             `json:"id,omitempty"`
	UUID      string            `json:"uuid"`
	Arena     string            `json:"arena"`
	Mode      string            `json:"mode"`
	Type      ArenaType         `json:"type"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Draw      bool              `json:"draw"`
	Forced    bool              `json:"forced"`
	Pool      int               `json:"pool"`
	Players   []GameParticipant `json:"players"`
}

// GameParticipant is a player's finishing record in a game.
// Placement is 1-indexed; 0 means unranked (draws, forced ends).
type GameParticipant struct {
	PlayerID  uuid.UUID `json:"player_id"`
	Name      string    `json:"name"`
	Team      TeamColor `json:"team"`
	Placement int       `json:"placement,omitempty"`
	Payout    int       `json:"payout,omitempty"`
}
