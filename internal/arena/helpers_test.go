package arena

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/player"
)

type memStats struct {
	counters map[uuid.UUID]map[domain.Statistic]int64
	coins    map[uuid.UUID]int
	perks    map[uuid.UUID]map[string]int
	credited int
	debited  int
	fail     error
}

func newMemStats() *memStats {
	return &memStats{
		counters: make(map[uuid.UUID]map[domain.Statistic]int64),
		coins:    make(map[uuid.UUID]int),
		perks:    make(map[uuid.UUID]map[string]int),
	}
}

func (s *memStats) AddStat(_ context.Context, id uuid.UUID, _, _ string, stat domain.Statistic, delta int64) error {
	if s.fail != nil {
		return s.fail
	}
	if s.counters[id] == nil {
		s.counters[id] = make(map[domain.Statistic]int64)
	}
	s.counters[id][stat] += delta
	return nil
}

func (s *memStats) stat(id uuid.UUID, stat domain.Statistic) int64 { return s.counters[id][stat] }

func (s *memStats) Coins(_ context.Context, id uuid.UUID) (int, error) { return s.coins[id], nil }

func (s *memStats) TakeCoins(_ context.Context, id uuid.UUID, amount int) error {
	if s.coins[id] < amount {
		return errors.New("insufficient funds")
	}
	s.coins[id] -= amount
	s.debited += amount
	return nil
}

func (s *memStats) GiveCoins(_ context.Context, id uuid.UUID, amount int) error {
	s.coins[id] += amount
	s.credited += amount
	return nil
}

func (s *memStats) Perks(_ context.Context, id uuid.UUID) (map[string]int, error) {
	out := make(map[string]int)
	for k, v := range s.perks[id] {
		out[k] = v
	}
	return out, nil
}

func (s *memStats) ConsumePerk(_ context.Context, id uuid.UUID, perk string) (bool, error) {
	if s.perks[id][perk] <= 0 {
		return false, nil
	}
	s.perks[id][perk]--
	return true, nil
}

type recorder struct {
	events []domain.Event
}

func (r *recorder) Publish(ev domain.Event) { r.events = append(r.events, ev) }

func (r *recorder) ofType(typ string) []domain.Event {
	var out []domain.Event
	for _, ev := range r.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	t        *testing.T
	e        *Engine
	svc      *Services
	stats    *memStats
	events   *recorder
	commands []string
}

func testMode() *config.Mode {
	return &config.Mode{
		Key:             "spleef",
		DisplayName:     "Spleef",
		Enabled:         true,
		WaitingGameMode: host.Adventure,
		InGameMode:      host.Survival,
		Items:           map[int]host.Item{0: {Material: "DIAMOND_SHOVEL"}},
		DoubleJump: config.DoubleJump{
			Enabled:       true,
			DefaultAmount: 2,
			Power:         1,
			Items: config.DoubleJumpItems{
				Enabled:     true,
				Slot:        4,
				Available:   host.Item{Material: "FEATHER"},
				Unavailable: host.Item{Material: "GRAY_DYE"},
			},
		},
		Titles: map[string]host.Title{
			config.TitleLose: {Title: "You lost"},
			config.TitleDraw: {Title: "Draw"},
		},
	}
}

func ffaArena(minimum, maximum int) *Arena {
	a := &Arena{
		Key:            "classic",
		DisplayName:    "Classic",
		Mode:           testMode(),
		Type:           domain.FreeForAll,
		Enabled:        true,
		Minimum:        minimum,
		Maximum:        maximum,
		MembersPerTeam: maximum,
		GameTime:       5,
		DeathLevel:     10,
		Teams:          []domain.TeamColor{domain.TeamFFA},
	}
	for i := 0; i < maximum; i++ {
		a.FFASpawns = append(a.FFASpawns, host.Location{World: "world", X: float64(i * 5), Y: 65})
	}
	return a
}

func teamArena(minimum, perTeam int) *Arena {
	return &Arena{
		Key:            "duos",
		DisplayName:    "Duos",
		Mode:           testMode(),
		Type:           domain.Teams,
		Enabled:        true,
		Minimum:        minimum,
		Maximum:        2 * perTeam,
		MembersPerTeam: perTeam,
		GameTime:       5,
		DeathLevel:     10,
		Teams:          []domain.TeamColor{domain.TeamRed, domain.TeamBlue},
		SpawnPoints: map[domain.TeamColor]host.Location{
			domain.TeamRed:  {World: "world", X: 100, Y: 65},
			domain.TeamBlue: {World: "world", X: 120, Y: 65},
		},
	}
}

func newHarness(t *testing.T, a *Arena) *harness {
	t.Helper()
	h := &harness{t: t, stats: newMemStats(), events: &recorder{}}
	h.svc = &Services{
		Stats:     h.stats,
		Events:    h.events,
		Scheduler: host.NewScheduler(),
		Players:   player.NewDirectory(),
		Commands: host.CommandFunc(func(_ host.SenderType, _ host.Player, cmd string) error {
			h.commands = append(h.commands, cmd)
			return nil
		}),
		Settings: config.Settings{
			CountdownOnEnoughPlayers: 20,
			DisplayCountdownOnExpBar: true,
			ArenaUpdateInterval:      20,
		},
	}
	h.e = NewEngine(a, h.svc)
	return h
}

var home = host.Location{World: "lobby", Y: 70}

// newPlayer creates a tracked player standing at home with some coins
func (h *harness) newPlayer(name string, coins int) (*player.ArenaPlayer, *host.VirtualPlayer) {
	vp := host.NewVirtualPlayer(uuid.New(), name)
	vp.MoveTo(home)
	h.stats.coins[vp.ID()] = coins
	return h.svc.Players.Adapt(vp), vp
}

func (h *harness) join(name string, coins int) (*player.ArenaPlayer, *host.VirtualPlayer) {
	h.t.Helper()
	p, vp := h.newPlayer(name, coins)
	ok, err := h.e.Join(p, nil)
	if err != nil || !ok {
		h.t.Fatalf("join %s: ok=%v err=%v messages=%v", name, ok, err, vp.Messages())
	}
	return p, vp
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.svc.Scheduler.Tick()
	}
}

func hasMessage(vp *host.VirtualPlayer, substr string) bool {
	for _, m := range vp.Messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func assertCleared(t *testing.T, e *Engine) {
	t.Helper()
	if len(e.roster) != 0 || len(e.order) != 0 {
		t.Errorf("roster not cleared: %d entries", len(e.roster))
	}
	if e.escrow.Len() != 0 {
		t.Errorf("escrow not cleared: %d stakes", e.escrow.Len())
	}
	if len(e.alive) != 0 || len(e.dead) != 0 || len(e.deadTeams) != 0 {
		t.Errorf("alive/elimination lists not cleared: %d %d %d", len(e.alive), len(e.dead), len(e.deadTeams))
	}
	if len(e.abilities) != 0 || len(e.perks) != 0 {
		t.Errorf("ability counters not cleared")
	}
	for _, tm := range e.Teams() {
		if tm.Size() != 0 || len(tm.Alive()) != 0 {
			t.Errorf("team %s not cleared", tm.Color)
		}
	}
	if e.countdownTask.Active() || e.timerTask.Active() || e.gameTask.Active() {
		t.Errorf("timers still running")
	}
}
