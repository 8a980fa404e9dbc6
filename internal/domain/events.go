package domain

import "time"

// Event types for websocket and broker notifications
const (
	EventPlayerJoin     = "player_join"
	EventPlayerQuit     = "player_quit"
	EventPlayerLose     = "player_lose"
	EventPlayerWin      = "player_win"
	EventTeamEliminated = "team_eliminated"
	EventCountdown      = "countdown"
	EventGameStart      = "game_start"
	EventGameDraw       = "game_draw"
	EventGameEnd        = "game_end"
	EventStageChange    = "stage_change"
	EventRegenerated    = "arena_regenerated"
	EventSignUpdate     = "sign_update"
	EventCommand        = "command"
)

// Event represents a real-time arena event
type Event struct {
	Type      string      `json:"event"`
	Arena     string      `json:"arena"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// PlayerEvent is sent when a participant joins, quits, loses or wins
type PlayerEvent struct {
	PlayerID string    `json:"player_id"`
	Name     string    `json:"name"`
	Team     TeamColor `json:"team,omitempty"`
	Players  int       `json:"players"`
}

// TeamEliminatedEvent is sent when a team's last alive member is eliminated
type TeamEliminatedEvent struct {
	Team  TeamColor `json:"team"`
	Order int       `json:"order"` // 1 for the first team out
}

// CountdownEvent is sent when a countdown is armed
type CountdownEvent struct {
	Seconds int `json:"seconds"`
}

// StageChangeEvent is sent whenever the stored stage changes
type StageChangeEvent struct {
	From Stage `json:"from"`
	To   Stage `json:"to"`
}

// SignUpdateEvent carries the rendered lines of an arena sign
type SignUpdateEvent struct {
	Lines []string `json:"lines"`
}

// CommandEvent is sent when a reward or start command is dispatched
type CommandEvent struct {
	Sender  string `json:"sender"`
	Player  string `json:"player,omitempty"`
	Command string `json:"command"`
}
