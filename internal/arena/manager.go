package arena

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/world"
)

// ErrUnknownArena is returned when no arena has the requested key
var ErrUnknownArena = errors.New("unknown arena")

// Manager owns every arena engine and restores arena terrain
type Manager struct {
	svc    *Services
	world  *world.Store
	arenas map[string]*Engine
	keys   []string
}

// NewManager builds an engine for every configured arena. Arenas with a floor
// get it placed in the world and snapshotted for regeneration.
func NewManager(cfg *config.Config, svc *Services, w *world.Store) (*Manager, error) {
	if w == nil {
		w = world.NewStore()
	}
	m := &Manager{
		svc:    svc,
		world:  w,
		arenas: make(map[string]*Engine),
	}
	if svc.Regenerator == nil {
		svc.Regenerator = m
	}
	if svc.Perks == nil {
		svc.Perks = cfg.Perks
	}
	svc.Settings = cfg.Settings
	svc.fillDefaults()

	for _, ac := range cfg.Arenas {
		a, err := FromConfig(ac, cfg.Mode(ac.Mode))
		if err != nil {
			return nil, err
		}
		if err := m.Add(a); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add registers an arena
func (m *Manager) Add(a *Arena) error {
	if _, ok := m.arenas[a.Key]; ok {
		return fmt.Errorf("arena %q already exists", a.Key)
	}
	if f := a.Floor; f != nil {
		name := f.World
		if name == "" && a.Lobby != nil {
			name = a.Lobby.World
		}
		m.world.Fill(name, f.Min, f.Max, f.Material)
		n := m.world.Snapshot(a.Key, name, f.Min, f.Max)
		log.Printf("Arena %s: saved %d floor blocks", a.Key, n)
	}
	if err := a.CheckSetup(); err != nil {
		log.Printf("Warning: arena %s needs setup: %v", a.Key, err)
	}
	m.arenas[a.Key] = NewEngine(a, m.svc)
	m.keys = append(m.keys, a.Key)
	sort.Strings(m.keys)
	return nil
}

// Get returns the engine of an arena
func (m *Manager) Get(key string) (*Engine, error) {
	e, ok := m.arenas[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArena, key)
	}
	return e, nil
}

// All returns every engine ordered by arena key
func (m *Manager) All() []*Engine {
	out := make([]*Engine, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.arenas[k])
	}
	return out
}

// EngineOf returns the engine of the arena a participant belongs to, or nil
func (m *Manager) EngineOf(p *player.ArenaPlayer) *Engine {
	if p == nil || p.Arena() == "" {
		return nil
	}
	return m.arenas[p.Arena()]
}

// Services returns the collaborators shared by the engines
func (m *Manager) Services() *Services { return m.svc }

// World returns the block store the arenas regenerate into
func (m *Manager) World() *world.Store { return m.world }

// RegenerateArena restores the saved floor of an arena. Arenas without a
// floor have nothing to restore.
func (m *Manager) RegenerateArena(key string) error {
	e, ok := m.arenas[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownArena, key)
	}
	if e.arena.Floor == nil || !m.world.HasSnapshot(key) {
		return nil
	}
	return m.world.Restore(key)
}

// Status returns a summary of every arena
func (m *Manager) Status() []domain.ArenaStatus {
	out := make([]domain.ArenaStatus, 0, len(m.keys))
	for _, e := range m.All() {
		out = append(out, e.Status())
	}
	return out
}

// ForceEndAll stops every arena with players in it
func (m *Manager) ForceEndAll() error {
	var errs []error
	for _, e := range m.All() {
		if e.Size() == 0 {
			continue
		}
		if err := e.ForceEnd(); err != nil {
			errs = append(errs, fmt.Errorf("arena %s: %w", e.arena.Key, err))
		}
	}
	return errors.Join(errs...)
}
