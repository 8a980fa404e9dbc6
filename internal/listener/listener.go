// Package listener turns raw platform events into arena engine calls.
package listener

import (
	"context"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/spleefx/spleefx/internal/arena"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/world"
)

// CommandExemptPermission lets a player run any command while in a game
const CommandExemptPermission = "spleefx.arena.command-exempt"

// DamageEvent is a player taking damage. Handlers set Cancelled to stop it.
type DamageEvent struct {
	Player    host.Player
	Damager   host.Player // nil unless another player caused it
	Cause     string
	Damage    float64
	Health    float64
	Cancelled bool
}

// BlockBreakEvent is a player breaking a block
type BlockBreakEvent struct {
	Player    host.Player
	World     string
	Pos       host.BlockPos
	Cancelled bool
}

// Listener routes platform events to the engines. Its methods must run on
// the scheduler's tick goroutine.
type Listener struct {
	arenas   *arena.Manager
	players  *player.Directory
	stats    arena.Stats
	messages message.Sender
	world    *world.Store

	cancelTeamDamage func() bool
}

// New creates a listener for the arenas of a manager
func New(m *arena.Manager) *Listener {
	svc := m.Services()
	return &Listener{
		arenas:   m,
		players:  svc.Players,
		stats:    svc.Stats,
		messages: svc.Messages,
		world:    m.World(),

		cancelTeamDamage: func() bool { return svc.Settings.CancelTeamDamage },
	}
}

func (l *Listener) lookup(hp host.Player) (*player.ArenaPlayer, *arena.Engine) {
	if hp == nil {
		return nil, nil
	}
	p := l.players.Get(hp.ID())
	if p == nil {
		return nil, nil
	}
	return p, l.arenas.EngineOf(p)
}

// OnJoin starts tracking a connecting player
func (l *Listener) OnJoin(hp host.Player) *player.ArenaPlayer {
	return l.players.Adapt(hp)
}

// OnDamage cancels configured damage causes and turns lethal damage in a
// game into an elimination
func (l *Listener) OnDamage(ev *DamageEvent) {
	p, e := l.lookup(ev.Player)
	if e == nil {
		return
	}
	mode := e.Arena().Mode
	switch p.State() {
	case domain.Waiting:
		if slices.Contains(mode.CancelledDamageWaiting, ev.Cause) {
			ev.Cancelled = true
		}
	case domain.InGame:
		if ev.Damager != nil && l.sameTeam(e, p, ev.Damager) {
			ev.Cancelled = true
		}
		if slices.Contains(mode.CancelledDamageInGame, ev.Cause) {
			ev.Cancelled = true
		}
		if ev.Health-ev.Damage < 1 {
			ev.Cancelled = true
			if err := e.Lose(p, e.TeamOf(p.ID()), false); err != nil {
				log.Printf("Warning: arena %s: %v", e.Arena().Key, err)
			}
			if _, err := e.CheckTerminal(); err != nil {
				log.Printf("Warning: arena %s: %v", e.Arena().Key, err)
			}
		}
	}
}

func (l *Listener) sameTeam(e *arena.Engine, p *player.ArenaPlayer, damager host.Player) bool {
	if e.Arena().Type == domain.FreeForAll || !l.cancelTeamDamage() {
		return false
	}
	mine, theirs := e.TeamOf(p.ID()), e.TeamOf(damager.ID())
	return mine != nil && mine == theirs
}

// OnDisconnect removes a leaving player from their arena. Players in a game
// are eliminated without a title; waiting players simply quit.
func (l *Listener) OnDisconnect(hp host.Player) {
	p, e := l.lookup(hp)
	if p == nil {
		return
	}
	if e != nil && e.Size() > 0 {
		var err error
		switch p.State() {
		case domain.Waiting, domain.Spectating:
			err = e.Quit(p)
		case domain.InGame:
			if err = e.Lose(p, e.TeamOf(p.ID()), true); err == nil {
				_, err = e.CheckTerminal()
			}
		}
		if err != nil {
			log.Printf("Warning: arena %s: disconnect of %s: %v", e.Arena().Key, p.Name(), err)
		}
	}
	l.players.Remove(hp.ID())
}

// OnBlockBreak breaks blocks for players in a game and counts them. It
// reports whether a block was broken.
func (l *Listener) OnBlockBreak(ev *BlockBreakEvent) bool {
	p, e := l.lookup(ev.Player)
	if e == nil || p.State() != domain.InGame {
		ev.Cancelled = true
		return false
	}
	material, ok := l.world.Break(ev.World, ev.Pos)
	if !ok {
		ev.Cancelled = true
		return false
	}
	a := e.Arena()
	if !a.DropMinedBlocks && a.Mode.GiveDroppedItems {
		p.Inventory().AddItem(host.Item{Material: material, Count: 1})
	}
	if l.stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.stats.AddStat(ctx, p.ID(), p.Name(), a.Mode.Key, domain.StatBlocksMined, 1); err != nil {
			log.Printf("Warning: counting mined block of %s: %v", p.Name(), err)
		}
	}
	return true
}

// OnDropItem reports whether dropping an item must be prevented
func (l *Listener) OnDropItem(hp host.Player) bool {
	p, e := l.lookup(hp)
	if e == nil {
		return false
	}
	s := p.State()
	return (s == domain.Waiting || s == domain.InGame) && e.Arena().Mode.PreventItemDropping
}

// OnCommand reports whether a command must be blocked for a player in an arena
func (l *Listener) OnCommand(hp host.Player, command string) bool {
	p, e := l.lookup(hp)
	if e == nil {
		return false
	}
	if s := p.State(); s != domain.Waiting && s != domain.InGame {
		return false
	}
	mode := e.Arena().Mode
	for _, allowed := range mode.AllowedCommands {
		if strings.HasPrefix(command, allowed) {
			return false
		}
	}
	if hp.HasPermission(CommandExemptPermission) {
		return false
	}
	l.messages.Send(hp, message.DisallowedCommand, message.Context{
		Arena:    e.Arena().DisplayName,
		ArenaKey: e.Arena().Key,
		Mode:     mode.DisplayName,
		Player:   hp.Name(),
		Extra:    command,
		Number:   -1,
	})
	return true
}

// OnToggleFlight uses a double jump. It reports whether the flight toggle
// must be cancelled, which is always the case for players in a game.
func (l *Listener) OnToggleFlight(hp host.Player) bool {
	p, e := l.lookup(hp)
	if e == nil || p.State() != domain.InGame {
		return false
	}
	e.DoubleJump(p)
	return true
}
