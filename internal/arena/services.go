package arena

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
)

// storeTimeout bounds every statistics call made from the tick goroutine
const storeTimeout = 5 * time.Second

// Stats is the statistics and currency store
type Stats interface {
	AddStat(ctx context.Context, id uuid.UUID, name, mode string, stat domain.Statistic, delta int64) error
	Coins(ctx context.Context, id uuid.UUID) (int, error)
	TakeCoins(ctx context.Context, id uuid.UUID, amount int) error
	GiveCoins(ctx context.Context, id uuid.UUID, amount int) error
	Perks(ctx context.Context, id uuid.UUID) (map[string]int, error)
	ConsumePerk(ctx context.Context, id uuid.UUID, perk string) (bool, error)
}

// SignRefresher pushes an arena's state to its displays
type SignRefresher interface {
	Refresh(status domain.ArenaStatus)
}

// Regenerator restores an arena's terrain
type Regenerator interface {
	RegenerateArena(key string) error
}

// EventSink receives arena events
type EventSink interface {
	Publish(ev domain.Event)
}

// Services are the collaborators shared by every engine
type Services struct {
	Stats       Stats
	Messages    message.Sender
	Signs       SignRefresher
	Regenerator Regenerator
	Events      EventSink
	Commands    host.CommandDispatcher
	Scheduler   *host.Scheduler
	Players     *player.Directory
	Settings    config.Settings
	Perks       map[string]*config.Perk
	Rand        *rand.Rand
	Now         func() time.Time
}

func (s *Services) fillDefaults() {
	if s.Messages == nil {
		s.Messages = message.NewCatalog(nil)
	}
	if s.Commands == nil {
		s.Commands = host.LogDispatcher{}
	}
	if s.Scheduler == nil {
		s.Scheduler = host.NewScheduler()
	}
	if s.Players == nil {
		s.Players = player.NewDirectory()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Settings.CountdownOnEnoughPlayers <= 0 {
		s.Settings.CountdownOnEnoughPlayers = 20
	}
	if s.Settings.ArenaUpdateInterval <= 0 {
		s.Settings.ArenaUpdateInterval = 20
	}
}

func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func (e *Engine) publish(typ string, data interface{}) {
	if e.svc.Events == nil {
		return
	}
	e.svc.Events.Publish(domain.Event{
		Type:      typ,
		Arena:     e.arena.Key,
		Timestamp: e.svc.Now(),
		Data:      data,
	})
}

func (e *Engine) refreshSigns() {
	if e.svc.Signs != nil {
		e.svc.Signs.Refresh(e.Status())
	}
}

func (e *Engine) addStat(p *player.ArenaPlayer, stat domain.Statistic) error {
	if e.svc.Stats == nil {
		return nil
	}
	ctx, cancel := storeCtx()
	defer cancel()
	if err := e.svc.Stats.AddStat(ctx, p.ID(), p.Name(), e.arena.Mode.Key, stat, 1); err != nil {
		return fmt.Errorf("adding %s for %s: %w", stat, p.Name(), err)
	}
	return nil
}

func (e *Engine) giveCoins(id uuid.UUID, amount int) error {
	if e.svc.Stats == nil || amount <= 0 {
		return nil
	}
	ctx, cancel := storeCtx()
	defer cancel()
	if err := e.svc.Stats.GiveCoins(ctx, id, amount); err != nil {
		return fmt.Errorf("crediting %d coins to %s: %w", amount, id, err)
	}
	return nil
}

func (e *Engine) dispatch(sender host.SenderType, p host.Player, command string) {
	if command == "" {
		return
	}
	if err := e.svc.Commands.Dispatch(sender, p, command); err != nil {
		log.Printf("Warning: arena %s: command %q failed: %v", e.arena.Key, command, err)
	}
	ev := domain.CommandEvent{Sender: string(sender), Command: command}
	if p != nil {
		ev.Player = p.Name()
	}
	e.publish(domain.EventCommand, ev)
}
