// Package player tracks participants: their lifecycle state, the arena they
// belong to and the context saved when they entered it.
package player

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
)

// ErrInOtherArena is returned by Enter when the player already belongs to another arena
var ErrInOtherArena = errors.New("player is in another arena")

// Context is what a player had before entering an arena
type Context struct {
	Inventory   *host.Inventory
	Location    host.Location
	GameMode    host.GameMode
	AllowFlight bool
	Level       int
}

// ArenaPlayer is a tracked participant
type ArenaPlayer struct {
	host.Player

	state domain.PlayerState
	arena string
	saved *Context
}

// State returns the lifecycle state
func (p *ArenaPlayer) State() domain.PlayerState {
	if p.state == "" {
		return domain.NotInGame
	}
	return p.state
}

// SetState changes the lifecycle state
func (p *ArenaPlayer) SetState(s domain.PlayerState) { p.state = s }

// Arena returns the key of the arena the player belongs to, or ""
func (p *ArenaPlayer) Arena() string { return p.arena }

// HasContext reports whether a saved context is waiting to be restored
func (p *ArenaPlayer) HasContext() bool { return p.saved != nil }

// SaveContext snapshots the player's inventory, position and modes
func (p *ArenaPlayer) SaveContext() {
	p.saved = &Context{
		Inventory:   p.Inventory().Snapshot(),
		Location:    p.Location(),
		GameMode:    p.GameMode(),
		AllowFlight: p.AllowFlight(),
		Level:       p.Level(),
	}
}

// RestoreContext applies the saved context once and clears it. It reports
// whether there was anything to restore.
func (p *ArenaPlayer) RestoreContext() bool {
	c := p.saved
	if c == nil {
		return false
	}
	p.saved = nil
	p.ClearPotionEffects()
	p.Inventory().Restore(c.Inventory)
	p.SetGameMode(c.GameMode)
	p.SetAllowFlight(c.AllowFlight)
	p.SetLevel(c.Level)
	p.ResetFallDistance()
	p.Teleport(c.Location)
	return true
}

// Directory resolves host players to participants
type Directory struct {
	mu      sync.Mutex
	players map[uuid.UUID]*ArenaPlayer
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{players: make(map[uuid.UUID]*ArenaPlayer)}
}

// Adapt returns the participant record for hp, creating it on first use. A
// reconnecting player keeps their record but gets the new handle.
func (d *Directory) Adapt(hp host.Player) *ArenaPlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.players[hp.ID()]; ok {
		p.Player = hp
		return p
	}
	p := &ArenaPlayer{Player: hp, state: domain.NotInGame}
	d.players[hp.ID()] = p
	return p
}

// Get returns the participant for id, or nil
func (d *Directory) Get(id uuid.UUID) *ArenaPlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.players[id]
}

// Remove forgets a player entirely
func (d *Directory) Remove(id uuid.UUID) {
	d.mu.Lock()
	delete(d.players, id)
	d.mu.Unlock()
}

// Enter associates p with an arena. Entering the same arena again is allowed.
func (d *Directory) Enter(p *ArenaPlayer, arena string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.arena != "" && p.arena != arena {
		return ErrInOtherArena
	}
	p.arena = arena
	return nil
}

// Leave clears the arena association and resets the state. It reports false
// if the player was not associated with any arena.
func (d *Directory) Leave(p *ArenaPlayer) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.arena == "" {
		return false
	}
	p.arena = ""
	p.state = domain.NotInGame
	return true
}

// InArena returns every participant associated with an arena
func (d *Directory) InArena(arena string) []*ArenaPlayer {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*ArenaPlayer
	for _, p := range d.players {
		if p.arena == arena {
			out = append(out, p)
		}
	}
	return out
}
