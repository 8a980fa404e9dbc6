// Package arena implements the per-arena game engine: joining, countdown,
// the game loop, eliminations, rewards and regeneration.
package arena

import (
	"errors"
	"fmt"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/team"
)

// Arena is a configured playing field plus its mode
type Arena struct {
	Key             string
	DisplayName     string
	Mode            *config.Mode
	Type            domain.ArenaType
	Enabled         bool
	Minimum         int
	Maximum         int
	MembersPerTeam  int
	GameTime        int // minutes
	DeathLevel      float64
	Bet             int
	DropMinedBlocks bool
	Lobby           *host.Location
	Teams           []domain.TeamColor
	SpawnPoints     map[domain.TeamColor]host.Location
	FFASpawns       []host.Location
	Floor           *config.Floor
}

// FromConfig builds an arena from its config entry
func FromConfig(ac config.ArenaConfig, mode *config.Mode) (*Arena, error) {
	if mode == nil {
		return nil, fmt.Errorf("arena %q: unknown mode %q", ac.Key, ac.Mode)
	}
	typ, ok := domain.ParseArenaType(ac.Type)
	if !ok {
		return nil, fmt.Errorf("arena %q: unknown type %q", ac.Key, ac.Type)
	}
	a := &Arena{
		Key:             ac.Key,
		DisplayName:     ac.DisplayName,
		Mode:            mode,
		Type:            typ,
		Enabled:         ac.IsEnabled(),
		Minimum:         ac.Minimum,
		Maximum:         ac.Maximum,
		MembersPerTeam:  ac.MembersPerTeam,
		GameTime:        ac.GameTime,
		DeathLevel:      ac.DeathLevel,
		Bet:             ac.Bet,
		DropMinedBlocks: ac.DropMinedBlocks,
		Lobby:           ac.Lobby,
		Teams:           ac.Teams,
		SpawnPoints:     ac.SpawnPoints,
		FFASpawns:       ac.FFASpawns,
		Floor:           ac.Floor,
	}
	if a.Type == domain.FreeForAll {
		a.Teams = []domain.TeamColor{domain.TeamFFA}
		a.MembersPerTeam = a.Maximum
	}
	return a, nil
}

// TakesBets reports whether joining requires a wager
func (a *Arena) TakesBets() bool { return a.Bet > 0 }

// GameSeconds is the game duration in seconds
func (a *Arena) GameSeconds() int { return a.GameTime * 60 }

// CheckSetup returns why the arena cannot host games yet, or nil
func (a *Arena) CheckSetup() error {
	return strategyFor(a.Type).ready(a)
}

// strategy is the behaviour that differs between free-for-all and team arenas
type strategy struct {
	ready     func(a *Arena) error
	newTeams  func(a *Arena) *team.Registry
	lobby     func(e *Engine, p *player.ArenaPlayer, t *team.Team) host.Location
	spawn     func(e *Engine, p *player.ArenaPlayer, t *team.Team) host.Location
	joinedKey message.Key
	lostKey   message.Key
	rewards   func(m *config.Mode) map[int]config.Reward
}

var strategies = map[domain.ArenaType]strategy{
	domain.FreeForAll: {
		ready: func(a *Arena) error {
			if len(a.FFASpawns) < a.Maximum {
				return fmt.Errorf("need %d spawn points, have %d", a.Maximum, len(a.FFASpawns))
			}
			return nil
		},
		newTeams: func(*Arena) *team.Registry { return team.NewFFA() },
		lobby: func(e *Engine, p *player.ArenaPlayer, _ *team.Team) host.Location {
			slot := e.ffa.Spawnpoint(p.ID())
			if e.arena.Lobby != nil {
				return *e.arena.Lobby
			}
			return e.ffa.Location(slot)
		},
		spawn: func(e *Engine, p *player.ArenaPlayer, _ *team.Team) host.Location {
			return e.ffa.Location(e.ffa.Spawnpoint(p.ID()))
		},
		joinedKey: message.PlayerJoinedFFA,
		lostKey:   message.PlayerLostFFA,
		rewards:   func(m *config.Mode) map[int]config.Reward { return m.FFARewards },
	},
	domain.Teams: {
		ready: func(a *Arena) error {
			var errs []error
			if len(a.Teams) < 2 {
				errs = append(errs, fmt.Errorf("need at least 2 teams, have %d", len(a.Teams)))
			}
			for _, c := range a.Teams {
				if _, ok := a.SpawnPoints[c]; !ok {
					errs = append(errs, fmt.Errorf("team %s has no spawn point", c))
				}
			}
			return errors.Join(errs...)
		},
		newTeams: func(a *Arena) *team.Registry { return team.NewRegistry(a.Teams) },
		lobby: func(e *Engine, _ *player.ArenaPlayer, t *team.Team) host.Location {
			if e.arena.Lobby != nil {
				return *e.arena.Lobby
			}
			return e.arena.SpawnPoints[t.Color]
		},
		spawn: func(e *Engine, _ *player.ArenaPlayer, t *team.Team) host.Location {
			return e.arena.SpawnPoints[t.Color]
		},
		joinedKey: message.PlayerJoinedTeam,
		lostKey:   message.PlayerLostTeam,
		rewards:   func(m *config.Mode) map[int]config.Reward { return m.TeamRewards },
	},
}

func strategyFor(t domain.ArenaType) strategy {
	if s, ok := strategies[t]; ok {
		return s
	}
	return strategies[domain.FreeForAll]
}
