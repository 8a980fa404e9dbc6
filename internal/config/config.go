package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Auth     AuthConfig        `yaml:"auth"`
	NATS     NATSConfig        `yaml:"nats"`
	Settings Settings          `yaml:"settings"`
	Messages map[string]string `yaml:"messages"`
	Signs    SignConfig        `yaml:"signs"`
	Modes    map[string]*Mode  `yaml:"modes"`
	Perks    map[string]*Perk  `yaml:"perks"`
	Arenas   []ArenaConfig     `yaml:"arenas"`
}

// ServerConfig holds HTTP server and tick settings
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	HTTPPort     int           `yaml:"http_port"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token settings
type AuthConfig struct {
	JWTSecret     string        `yaml:"jwt_secret"`
	TokenDuration time.Duration `yaml:"token_duration"`
}

// NATSConfig holds broker settings. An empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Settings are the global game settings shared by all arenas
type Settings struct {
	CountdownOnEnoughPlayers  int            `yaml:"countdown_on_enough_players"`
	DisplayCountdownOnExpBar  bool           `yaml:"display_countdown_on_exp_bar"`
	CountdownTitles           CountdownTitle `yaml:"countdown_titles"`
	CountdownSound            CountdownSound `yaml:"countdown_sound"`
	TimeOutWarn               map[int]string `yaml:"time_out_warn"`
	ArenaUpdateInterval       int            `yaml:"arena_update_interval"` // ticks between elimination sweeps
	RequireEmptyInventory     bool           `yaml:"require_empty_inventory"`
	RegenerateBeforeCountdown bool           `yaml:"regenerate_before_countdown"`
	CancelTeamDamage          bool           `yaml:"cancel_team_damage"`
}

// CountdownTitle configures titles shown at specific countdown values
type CountdownTitle struct {
	Enabled  bool           `yaml:"enabled"`
	Numbers  map[int]string `yaml:"numbers"`
	Subtitle string         `yaml:"subtitle"`
	FadeIn   int            `yaml:"fade_in"`
	Stay     int            `yaml:"stay"`
	FadeOut  int            `yaml:"fade_out"`
}

// CountdownSound configures the sound played at specific countdown values
type CountdownSound struct {
	Sound string `yaml:"sound"`
	When  []int  `yaml:"when"`
}

// SignConfig holds sign line templates per stage
type SignConfig struct {
	Lines map[domain.Stage][]string `yaml:"lines"`
}

// Mode is a game ruleset (spleef, splegg, ...) shared by the arenas that use it
type Mode struct {
	Key                    string                `yaml:"-"`
	DisplayName            string                `yaml:"display_name"`
	Enabled                bool                  `yaml:"enabled"`
	WaitingGameMode        host.GameMode         `yaml:"waiting_game_mode"`
	InGameMode             host.GameMode         `yaml:"ingame_game_mode"`
	QuitItem               *SlotItem             `yaml:"quit_item"`
	Items                  map[int]host.Item     `yaml:"items"`
	Armor                  map[string]host.Item  `yaml:"armor"`
	PotionEffects          []host.PotionEffect   `yaml:"potion_effects"`
	DoubleJump             DoubleJump            `yaml:"double_jump"`
	CommandsWhenGameFills  []string              `yaml:"commands_when_game_fills"`
	CommandsWhenGameStarts []string              `yaml:"commands_when_game_starts"`
	FFARewards             map[int]Reward        `yaml:"ffa_rewards"`
	TeamRewards            map[int]Reward        `yaml:"team_rewards"`
	Titles                 map[string]host.Title `yaml:"titles"`
	CancelledDamageWaiting []string              `yaml:"cancelled_damage_waiting"`
	CancelledDamageInGame  []string              `yaml:"cancelled_damage_ingame"`
	PreventItemDropping    bool                  `yaml:"prevent_item_dropping"`
	AllowedCommands        []string              `yaml:"allowed_commands"`
	GiveDroppedItems       bool                  `yaml:"give_dropped_items"`
}

// Title keys in Mode.Titles
const (
	TitleLose = "lose"
	TitleDraw = "draw"
	TitleWin  = "win"
)

// SlotItem is an item bound to an inventory slot
type SlotItem struct {
	Slot int       `yaml:"slot"`
	Item host.Item `yaml:"item"`
}

// DoubleJump configures the double jump ability
type DoubleJump struct {
	Enabled       bool            `yaml:"enabled"`
	DefaultAmount int             `yaml:"default_amount"`
	Power         float64         `yaml:"power"`
	Items         DoubleJumpItems `yaml:"items"`
}

// DoubleJumpItems are the indicator items for double jump availability
type DoubleJumpItems struct {
	Enabled     bool      `yaml:"enabled"`
	Slot        int       `yaml:"slot"`
	Available   host.Item `yaml:"available"`
	Unavailable host.Item `yaml:"unavailable"`
}

// Reward holds the commands run for a placement, keyed by who runs them
type Reward struct {
	Console []string `yaml:"console"`
	Player  []string `yaml:"player"`
}

// Commands returns the reward commands grouped by sender, console first
func (r Reward) Commands() map[host.SenderType][]string {
	return map[host.SenderType][]string{
		host.SenderConsole: r.Console,
		host.SenderPlayer:  r.Player,
	}
}

// Perk is a purchasable in-game boost
type Perk struct {
	Key           string              `yaml:"-"`
	DisplayName   string              `yaml:"display_name"`
	IngameAmount  int                 `yaml:"ingame_amount"`
	AllowedModes  []string            `yaml:"allowed_modes"`
	Items         []host.Item         `yaml:"items"`
	PotionEffects []host.PotionEffect `yaml:"potion_effects"`
}

// UsableIn reports whether the perk may be given in a mode. No list means every mode.
func (p *Perk) UsableIn(mode string) bool {
	if len(p.AllowedModes) == 0 {
		return true
	}
	for _, m := range p.AllowedModes {
		if m == mode {
			return true
		}
	}
	return false
}

// ArenaConfig describes one arena
type ArenaConfig struct {
	Key             string                             `yaml:"key"`
	DisplayName     string                             `yaml:"display_name"`
	Mode            string                             `yaml:"mode"`
	Type            string                             `yaml:"type"`
	Enabled         *bool                              `yaml:"enabled"`
	Minimum         int                                `yaml:"minimum"`
	Maximum         int                                `yaml:"maximum"`
	MembersPerTeam  int                                `yaml:"members_per_team"`
	GameTime        int                                `yaml:"game_time"` // minutes
	DeathLevel      float64                            `yaml:"death_level"`
	Bet             int                                `yaml:"bet"`
	DropMinedBlocks bool                               `yaml:"drop_mined_blocks"`
	Lobby           *host.Location                     `yaml:"lobby"`
	Teams           []domain.TeamColor                 `yaml:"teams"`
	SpawnPoints     map[domain.TeamColor]host.Location `yaml:"spawn_points"`
	FFASpawns       []host.Location                    `yaml:"ffa_spawns"`
	Floor           *Floor                             `yaml:"floor"`
}

// IsEnabled defaults to true when unset
func (a ArenaConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Floor is the breakable block layer restored on regeneration
type Floor struct {
	World    string        `yaml:"world"`
	Min      host.BlockPos `yaml:"min"`
	Max      host.BlockPos `yaml:"max"`
	Material string        `yaml:"material"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) setDefaults() {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = "127.0.0.1"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.TickInterval == 0 {
		cfg.Server.TickInterval = time.Second / host.TicksPerSecond
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/spleefx/spleefx.db"
	}
	if cfg.Auth.TokenDuration == 0 {
		cfg.Auth.TokenDuration = 24 * time.Hour
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "spleefx"
	}

	s := &cfg.Settings
	if s.CountdownOnEnoughPlayers == 0 {
		s.CountdownOnEnoughPlayers = 20
	}
	if s.ArenaUpdateInterval == 0 {
		s.ArenaUpdateInterval = 20
	}
	if s.CountdownTitles.Stay == 0 {
		s.CountdownTitles.Stay = 20
	}

	for key, m := range cfg.Modes {
		if m == nil {
			m = &Mode{}
			cfg.Modes[key] = m
		}
		m.Key = key
		if m.DisplayName == "" {
			m.DisplayName = key
		}
		if m.WaitingGameMode == "" {
			m.WaitingGameMode = host.Adventure
		}
		if m.InGameMode == "" {
			m.InGameMode = host.Survival
		}
		if m.DoubleJump.Power == 0 {
			m.DoubleJump.Power = 1.0
		}
	}
	for key, p := range cfg.Perks {
		if p == nil {
			p = &Perk{}
			cfg.Perks[key] = p
		}
		p.Key = key
		if p.IngameAmount == 0 {
			p.IngameAmount = 1
		}
	}

	for i := range cfg.Arenas {
		a := &cfg.Arenas[i]
		if a.DisplayName == "" {
			a.DisplayName = a.Key
		}
		if a.Type == "" {
			a.Type = string(domain.FreeForAll)
		}
		if a.GameTime == 0 {
			a.GameTime = 5
		}
		if a.Minimum == 0 {
			a.Minimum = 2
		}
		if at, ok := domain.ParseArenaType(a.Type); ok && at == domain.Teams && a.MembersPerTeam == 0 && len(a.Teams) > 0 && a.Maximum > 0 {
			a.MembersPerTeam = a.Maximum / len(a.Teams)
		}
	}
}

// Validate checks cross references and bounds
func (cfg *Config) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for _, a := range cfg.Arenas {
		if a.Key == "" {
			errs = append(errs, errors.New("arena with empty key"))
			continue
		}
		if seen[a.Key] {
			errs = append(errs, fmt.Errorf("arena %q: duplicate key", a.Key))
		}
		seen[a.Key] = true
		if _, ok := cfg.Modes[a.Mode]; !ok {
			errs = append(errs, fmt.Errorf("arena %q: unknown mode %q", a.Key, a.Mode))
		}
		at, ok := domain.ParseArenaType(a.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("arena %q: unknown type %q", a.Key, a.Type))
		}
		if a.Minimum < 1 || a.Maximum < a.Minimum {
			errs = append(errs, fmt.Errorf("arena %q: need 1 <= minimum <= maximum, got %d and %d", a.Key, a.Minimum, a.Maximum))
		}
		if a.Bet < 0 {
			errs = append(errs, fmt.Errorf("arena %q: negative bet", a.Key))
		}
		if at == domain.Teams && a.MembersPerTeam < 1 {
			errs = append(errs, fmt.Errorf("arena %q: team arenas need members_per_team", a.Key))
		}
	}
	for key, p := range cfg.Perks {
		for _, m := range p.AllowedModes {
			if _, ok := cfg.Modes[m]; !ok {
				errs = append(errs, fmt.Errorf("perk %q: unknown mode %q", key, m))
			}
		}
	}
	return errors.Join(errs...)
}

// Environment variables that override the config file
const (
	EnvConfigPath = "SPLEEFX_CONFIG"
	EnvDatabase   = "SPLEEFX_DB"
	EnvJWTSecret  = "SPLEEFX_JWT_SECRET"
	EnvNATSURL    = "SPLEEFX_NATS_URL"
)

// LoadEnv loads variables from .env files if present. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// ApplyEnv overrides file settings with environment variables
func (cfg *Config) ApplyEnv() {
	if v := os.Getenv(EnvDatabase); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.NATS.URL = v
	}
}

// Mode returns the mode referenced by an arena config
func (cfg *Config) Mode(key string) *Mode {
	return cfg.Modes[key]
}
