// Package message holds the player-facing notices and their templates.
package message

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
)

// Key identifies a notice
type Key string

const (
	ArenaDisabled      Key = "ARENA_DISABLED"
	MustHaveEmptyInv   Key = "MUST_HAVE_EMPTY_INV"
	ArenaFull          Key = "ARENA_FULL"
	NotEnoughToBet     Key = "NOT_ENOUGH_TO_BET"
	ArenaAlreadyActive Key = "ARENA_ALREADY_ACTIVE"
	ArenaRegenerating  Key = "ARENA_REGENERATING"
	ArenaNeedsSetup    Key = "ARENA_NEEDS_SETUP"
	AlreadyInArena     Key = "ALREADY_IN_ARENA"
	PlayerJoinedTeam   Key = "PLAYER_JOINED_T"
	PlayerJoinedFFA    Key = "PLAYER_JOINED_FFA"
	BetTaken           Key = "BET_TAKEN"
	NotEnoughPlayers   Key = "NOT_ENOUGH_PLAYERS"
	PlayerLostTeam     Key = "PLAYER_LOST_T"
	PlayerLostFFA      Key = "PLAYER_LOST_FFA"
	TeamEliminated     Key = "TEAM_ELIMINATED"
	GameStarting       Key = "GAME_STARTING"
	GameCountdown      Key = "GAME_COUNTDOWN"
	GameTimeout        Key = "GAME_TIMEOUT"
	WonGameBet         Key = "WON_GAME_BET"
	ServerStopped      Key = "SERVER_STOPPED"
	DisallowedCommand  Key = "DISALLOWED_COMMAND"
	NotInArena         Key = "NOT_IN_ARENA"
	UnknownArena       Key = "UNKNOWN_ARENA"
)

// Defaults are the built-in English templates
var Defaults = map[Key]string{
	ArenaDisabled:      "Arena {arena} is currently disabled.",
	MustHaveEmptyInv:   "You must have an empty inventory to join {arena}.",
	ArenaFull:          "Arena {arena} is full.",
	NotEnoughToBet:     "You need {extra} coins to join {arena}.",
	ArenaAlreadyActive: "A game is already running in {arena}.",
	ArenaRegenerating:  "Arena {arena} is regenerating, try again shortly.",
	ArenaNeedsSetup:    "Arena {arena} has not been set up yet.",
	AlreadyInArena:     "You are already in an arena.",
	PlayerJoinedTeam:   "{player} joined {arena} on team {team}.",
	PlayerJoinedFFA:    "{player} joined {arena}.",
	BetTaken:           "{extra} coins were taken as your bet.",
	NotEnoughPlayers:   "Not enough players, the countdown has been cancelled.",
	PlayerLostTeam:     "{player} from team {team} has been eliminated!",
	PlayerLostFFA:      "{player} has been eliminated!",
	TeamEliminated:     "Team {team} has been eliminated!",
	GameStarting:       "The game starts in {time} seconds.",
	GameCountdown:      "Starting in {extra}...",
	GameTimeout:        "{extra} left!",
	WonGameBet:         "You won {portion} coins from the bets!",
	ServerStopped:      "The server is stopping, your game has ended.",
	DisallowedCommand:  "You cannot use {extra} while in a game.",
	NotInArena:         "You are not in an arena.",
	UnknownArena:       "No arena named {extra}.",
}

// Context carries the values substituted into a template. Number is omitted
// when negative.
type Context struct {
	Arena    string
	ArenaKey string
	Mode     string
	Team     domain.TeamColor
	Player   string
	Extra    string
	Number   int
	Pairs    map[string]string
}

// Placeholders returns the substitution pairs for the context
func (c Context) Placeholders() map[string]string {
	m := map[string]string{
		"{arena}":     c.Arena,
		"{arena_key}": c.ArenaKey,
		"{mode}":      c.Mode,
		"{team}":      string(c.Team),
		"{player}":    c.Player,
		"{extra}":     c.Extra,
		"{time}":      "",
	}
	if c.Number >= 0 {
		m["{time}"] = strconv.Itoa(c.Number)
	}
	for k, v := range c.Pairs {
		m[k] = v
	}
	return m
}

// Replace substitutes every placeholder in s
func Replace(s string, pairs map[string]string) string {
	if len(pairs) == 0 || !strings.Contains(s, "{") {
		return s
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	// longest first so {arena_key} wins over {arena}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	args := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k, pairs[k])
	}
	return strings.NewReplacer(args...).Replace(s)
}

// Sender delivers notices to players
type Sender interface {
	Send(p host.Player, key Key, ctx Context)
}

// Catalog is a Sender backed by templates. An empty template silences a key.
type Catalog struct {
	templates map[Key]string
	prefix    string
}

// NewCatalog builds a catalog from the defaults and config overrides. The
// special override key PREFIX is prepended to every notice.
func NewCatalog(overrides map[string]string) *Catalog {
	c := &Catalog{templates: make(map[Key]string, len(Defaults))}
	for k, v := range Defaults {
		c.templates[k] = v
	}
	for k, v := range overrides {
		if k == "PREFIX" {
			c.prefix = v
			continue
		}
		c.templates[Key(strings.ToUpper(k))] = v
	}
	return c
}

// Format renders a notice. Unknown keys render as the key itself.
func (c *Catalog) Format(key Key, ctx Context) string {
	tmpl, ok := c.templates[key]
	if !ok {
		tmpl = string(key)
	}
	if tmpl == "" {
		return ""
	}
	return c.prefix + Replace(tmpl, ctx.Placeholders())
}

func (c *Catalog) Send(p host.Player, key Key, ctx Context) {
	if p == nil {
		return
	}
	if msg := c.Format(key, ctx); msg != "" {
		p.SendMessage(msg)
	}
}
