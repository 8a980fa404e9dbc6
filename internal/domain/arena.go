package domain

// Stage is the lifecycle stage of an arena
type Stage string

// Arena stages. DISABLED and NEEDS_SETUP are derived on every read and never stored.
const (
	StageDisabled     Stage = "DISABLED"
	StageNeedsSetup   Stage = "NEEDS_SETUP"
	StageWaiting      Stage = "WAITING"
	StageCountdown    Stage = "COUNTDOWN"
	StageActive       Stage = "ACTIVE"
	StageRegenerating Stage = "REGENERATING"
)

// Joinable reports whether players may join an arena in this stage
func (s Stage) Joinable() bool {
	return s == StageWaiting || s == StageCountdown
}

// ArenaType selects free-for-all or team play
type ArenaType string

const (
	FreeForAll ArenaType = "FREE_FOR_ALL"
	Teams      ArenaType = "TEAMS"
)

// ParseArenaType accepts the config spellings of an arena type
func ParseArenaType(s string) (ArenaType, bool) {
	switch s {
	case "FREE_FOR_ALL", "ffa", "free_for_all":
		return FreeForAll, true
	case "TEAMS", "teams":
		return Teams, true
	}
	return "", false
}

// TeamColor identifies a team. FFA is the implicit team of free-for-all arenas.
type TeamColor string

const (
	TeamFFA    TeamColor = "FFA"
	TeamRed    TeamColor = "RED"
	TeamBlue   TeamColor = "BLUE"
	TeamGreen  TeamColor = "GREEN"
	TeamYellow TeamColor = "YELLOW"
	TeamPink   TeamColor = "PINK"
	TeamAqua   TeamColor = "AQUA"
	TeamGray   TeamColor = "GRAY"
	TeamWhite  TeamColor = "WHITE"
)

// ArenaStatus is a read-only summary of an arena for displays and the API
type ArenaStatus struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"display_name"`
	Mode        string    `json:"mode"`
	Type        ArenaType `json:"type"`
	Stage       Stage     `json:"stage"`
	Players     int       `json:"players"`
	Alive       int       `json:"alive"`
	Minimum     int       `json:"minimum"`
	Maximum     int       `json:"maximum"`
	Countdown   int       `json:"countdown"`
	TimeLeft    int       `json:"time_left"`
	Bet         int       `json:"bet,omitempty"`
}
