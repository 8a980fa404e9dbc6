package arena

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
)

func TestFFATwoPlayerGame(t *testing.T) {
	h := newHarness(t, ffaArena(2, 2))
	e := h.e

	p1, vp1 := h.join("p1", 0)
	if e.countdownTask.Active() || e.Stage() != domain.StageWaiting {
		t.Fatalf("countdown armed with one player")
	}
	p2, _ := h.join("p2", 0)
	if !e.countdownTask.Active() || e.Stage() != domain.StageCountdown {
		t.Fatalf("expected countdown after second join, stage %s", e.Stage())
	}

	h.tick(20 * 20)
	if e.Stage() != domain.StageActive {
		t.Fatalf("expected ACTIVE after countdown, got %s (countdown %d)", e.Stage(), e.Countdown())
	}
	if p1.State() != domain.InGame || len(e.Alive()) != 2 {
		t.Fatalf("players not moved into the game")
	}
	if vp1.Location().Y != 65 {
		t.Fatalf("p1 not at a spawn point: %v", vp1.Location())
	}

	vp1.MoveTo(host.Location{World: "world", Y: 5})
	h.tick(20)

	if e.Stage() != domain.StageWaiting {
		t.Fatalf("expected WAITING after the game, got %s", e.Stage())
	}
	if got := h.stats.stat(p2.ID(), domain.StatWins); got != 1 {
		t.Errorf("p2 wins = %d", got)
	}
	if got := h.stats.stat(p1.ID(), domain.StatLosses); got != 1 {
		t.Errorf("p1 losses = %d", got)
	}
	if got := h.stats.stat(p1.ID(), domain.StatGamesPlayed); got != 1 {
		t.Errorf("p1 games played = %d", got)
	}
	assertCleared(t, e)
	if p1.Arena() != "" || p2.State() != domain.NotInGame {
		t.Errorf("participants still associated with the arena")
	}
	if vp1.Location() != home {
		t.Errorf("p1 not returned home: %v", vp1.Location())
	}

	ends := h.events.ofType(domain.EventGameEnd)
	if len(ends) != 1 {
		t.Fatalf("expected one game_end event, got %d", len(ends))
	}
	res := ends[0].Data.(domain.GameResult)
	if res.Draw || len(res.Players) != 2 || res.Players[1].Placement != 1 || res.Players[0].Placement != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestFFAEliminationEndsInSameTick(t *testing.T) {
	h := newHarness(t, ffaArena(2, 3))
	p1, _ := h.join("p1", 0)
	h.join("p2", 0)
	h.e.Start()

	if err := h.e.Lose(p1, nil, false); err != nil {
		t.Fatal(err)
	}
	if len(h.e.Alive()) != 1 {
		t.Fatalf("expected one alive")
	}
	ended, err := h.e.CheckTerminal()
	if err != nil || !ended {
		t.Fatalf("CheckTerminal = %v, %v", ended, err)
	}
	if h.e.Stage() != domain.StageWaiting {
		t.Fatalf("stage %s", h.e.Stage())
	}
	if ended, _ := h.e.CheckTerminal(); ended {
		t.Fatalf("second terminal check must not end again")
	}
	if n := len(h.events.ofType(domain.EventGameEnd)); n != 1 {
		t.Fatalf("expected exactly one end, got %d", n)
	}
}

func TestTeamWagerSplit(t *testing.T) {
	h := newHarness(t, teamArena(2, 2))
	e := h.e
	red, blue := e.teams.ByColor(domain.TeamRed), e.teams.ByColor(domain.TeamBlue)
	e.arena.Bet = 10

	var players []*host.VirtualPlayer
	for i, tm := range []string{"RED", "RED", "BLUE", "BLUE"} {
		p, vp := h.newPlayer(fmt.Sprintf("p%d", i), 100)
		target := red
		if tm == "BLUE" {
			target = blue
		}
		if ok, err := e.Join(p, target); !ok || err != nil {
			t.Fatalf("join: %v %v", ok, err)
		}
		players = append(players, vp)
	}
	if e.Pool() != 40 || h.stats.debited != 40 {
		t.Fatalf("expected pool 40, got %d", e.Pool())
	}

	e.Start()
	players[0].MoveTo(host.Location{World: "world", Y: 0})
	players[1].MoveTo(host.Location{World: "world", Y: 0})
	h.tick(20)

	if e.Stage() != domain.StageWaiting {
		t.Fatalf("expected the game to end, stage %s", e.Stage())
	}
	for i, want := range []int{90, 90, 110, 110} {
		if got := h.stats.coins[players[i].ID()]; got != want {
			t.Errorf("player %d coins = %d, want %d", i, got, want)
		}
	}
	if h.stats.credited != h.stats.debited {
		t.Errorf("credited %d != debited %d", h.stats.credited, h.stats.debited)
	}
	if !hasMessage(players[2], "You won 20 coins") {
		t.Errorf("winner not told about the payout: %v", players[2].Messages())
	}
	if !hasMessage(players[3], "Team RED has been eliminated") {
		t.Errorf("no elimination broadcast: %v", players[3].Messages())
	}
	if n := len(h.events.ofType(domain.EventTeamEliminated)); n != 1 {
		t.Errorf("team eliminated %d times", n)
	}
	assertCleared(t, e)
}

func TestTeamEliminationOnlyOnTransition(t *testing.T) {
	h := newHarness(t, teamArena(2, 2))
	e := h.e
	red, blue := e.teams.ByColor(domain.TeamRed), e.teams.ByColor(domain.TeamBlue)
	a1, _ := h.newPlayer("a1", 0)
	a2, _ := h.newPlayer("a2", 0)
	b1, _ := h.newPlayer("b1", 0)
	e.Join(a1, red)
	e.Join(a2, red)
	e.Join(b1, blue)
	e.Start()

	e.Lose(a1, red, false)
	if len(e.deadTeams) != 0 || red.Eliminated() {
		t.Fatalf("red eliminated with a member alive")
	}
	e.Lose(a2, red, false)
	e.Lose(a2, red, false)
	if len(e.deadTeams) != 1 || e.deadTeams[0] != red {
		t.Fatalf("expected red recorded once, got %d", len(e.deadTeams))
	}
}

func TestPlacementRewardsSkipMissingPlaces(t *testing.T) {
	a := ffaArena(2, 4)
	a.Mode.FFARewards = make(map[int]config.Reward)
	for i := 1; i <= 5; i++ {
		a.Mode.FFARewards[i] = config.Reward{Console: []string{"reward {placement} {winner} {portion}"}}
	}
	h := newHarness(t, a)
	p1, _ := h.join("p1", 0)
	p2, _ := h.join("p2", 0)
	p3, _ := h.join("p3", 0)
	h.join("p4", 0)
	h.e.Start()
	h.commands = nil

	h.e.Lose(p1, nil, false)
	h.e.Lose(p2, nil, false)
	h.e.Lose(p3, nil, false)
	if ended, err := h.e.CheckTerminal(); !ended || err != nil {
		t.Fatalf("CheckTerminal = %v, %v", ended, err)
	}

	want := []string{"reward 1 p4 0", "reward 2 p3 0", "reward 3 p2 0", "reward 4 p1 0"}
	if len(h.commands) != len(want) {
		t.Fatalf("commands = %v", h.commands)
	}
	for i := range want {
		if h.commands[i] != want[i] {
			t.Errorf("command %d = %q, want %q", i, h.commands[i], want[i])
		}
	}
}

func TestFFAPoolGoesToWinnerOnly(t *testing.T) {
	a := ffaArena(2, 3)
	a.Bet = 10
	h := newHarness(t, a)
	p1, _ := h.join("p1", 50)
	p2, _ := h.join("p2", 50)
	p3, _ := h.join("p3", 50)
	h.e.Start()
	h.e.Lose(p1, nil, false)
	h.e.Lose(p2, nil, false)
	h.e.CheckTerminal()

	if got := h.stats.coins[p3.ID()]; got != 70 {
		t.Errorf("winner coins = %d, want 70", got)
	}
	if h.stats.coins[p1.ID()] != 40 || h.stats.coins[p2.ID()] != 40 {
		t.Errorf("losers should not be paid")
	}
	if h.stats.credited != h.stats.debited {
		t.Errorf("credited %d != debited %d", h.stats.credited, h.stats.debited)
	}
}

func TestDrawOnTimeoutRefundsBets(t *testing.T) {
	a := ffaArena(2, 2)
	a.Bet = 5
	h := newHarness(t, a)
	h.svc.Settings.TimeOutWarn = map[int]string{0: "no time"}
	p1, vp1 := h.join("p1", 20)
	p2, _ := h.join("p2", 20)
	h.e.Start()
	h.e.timeLeft = 1
	h.tick(20)

	if h.e.Stage() != domain.StageWaiting {
		t.Fatalf("expected draw to end the game, stage %s", h.e.Stage())
	}
	if h.stats.stat(p1.ID(), domain.StatDraws) != 1 || h.stats.stat(p2.ID(), domain.StatDraws) != 1 {
		t.Errorf("draw not counted")
	}
	if h.stats.coins[p1.ID()] != 20 || h.stats.coins[p2.ID()] != 20 {
		t.Errorf("bets not refunded: %d %d", h.stats.coins[p1.ID()], h.stats.coins[p2.ID()])
	}
	if !hasMessage(vp1, "no time left") {
		t.Errorf("no timeout warning: %v", vp1.Messages())
	}
	var drawTitle bool
	for _, n := range vp1.Notices() {
		drawTitle = drawTitle || (n.Kind == host.NoticeTitle && n.Title.Title == "Draw")
	}
	if !drawTitle {
		t.Errorf("no draw title")
	}
	res := h.events.ofType(domain.EventGameEnd)[0].Data.(domain.GameResult)
	if !res.Draw {
		t.Errorf("result not marked as draw")
	}
	assertCleared(t, h.e)
}

func TestCountdownCancelledWhenPlayersLeave(t *testing.T) {
	h := newHarness(t, ffaArena(2, 4))
	p1, vp1 := h.join("p1", 0)
	_, vp2 := h.join("p2", 0)
	h.tick(40)
	if h.e.Countdown() != 18 {
		t.Fatalf("countdown = %d, want 18", h.e.Countdown())
	}

	if err := h.e.Quit(p1); err != nil {
		t.Fatal(err)
	}
	if h.e.Stage() != domain.StageWaiting || h.e.Countdown() != 20 || h.e.countdownTask.Active() {
		t.Fatalf("countdown not reset: stage %s countdown %d", h.e.Stage(), h.e.Countdown())
	}
	if !hasMessage(vp2, "Not enough players") || vp2.Level() != 0 {
		t.Fatalf("remaining player not notified")
	}
	h.tick(100)
	if h.e.Countdown() != 20 {
		t.Fatalf("countdown moved after cancel: %d", h.e.Countdown())
	}

	var levels []int
	for _, n := range vp1.Notices() {
		if n.Kind == host.NoticeLevel {
			levels = append(levels, n.Level)
		}
	}
	// 19, 18 during the countdown, then the saved level on restore
	if len(levels) != 3 || levels[0] != 19 || levels[1] != 18 || levels[2] != 0 {
		t.Fatalf("unexpected level notices %v", levels)
	}
}

func TestCountdownNeverNegative(t *testing.T) {
	h := newHarness(t, ffaArena(1, 2))
	h.svc.Settings.CountdownOnEnoughPlayers = 3
	h.e.countdown = 3
	h.join("p1", 0)

	last := 4
	for i := 0; i < 3; i++ {
		h.tick(20)
		if h.e.Stage() == domain.StageActive {
			break
		}
		if h.e.Countdown() >= last || h.e.Countdown() < 0 {
			t.Fatalf("countdown not strictly decreasing: %d after %d", h.e.Countdown(), last)
		}
		last = h.e.Countdown()
	}
	if h.e.Stage() != domain.StageActive {
		t.Fatalf("expected game start, stage %s", h.e.Stage())
	}
	if h.e.Countdown() != 3 {
		t.Fatalf("countdown not reset after start: %d", h.e.Countdown())
	}
}

func TestJoinPreconditions(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		a := ffaArena(2, 2)
		a.Enabled = false
		h := newHarness(t, a)
		p, vp := h.newPlayer("p", 0)
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "disabled") || h.e.Stage() != domain.StageDisabled {
			t.Fatalf("disabled arena accepted a player")
		}
	})
	t.Run("needs setup", func(t *testing.T) {
		a := ffaArena(2, 3)
		a.FFASpawns = a.FFASpawns[:1]
		h := newHarness(t, a)
		p, vp := h.newPlayer("p", 0)
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "not been set up") {
			t.Fatalf("arena without spawns accepted a player")
		}
		if h.e.Stage() != domain.StageNeedsSetup {
			t.Fatalf("stage %s", h.e.Stage())
		}
	})
	t.Run("team needs setup", func(t *testing.T) {
		a := teamArena(2, 2)
		delete(a.SpawnPoints, domain.TeamBlue)
		h := newHarness(t, a)
		if h.e.Stage() != domain.StageNeedsSetup {
			t.Fatalf("stage %s", h.e.Stage())
		}
	})
	t.Run("full", func(t *testing.T) {
		h := newHarness(t, ffaArena(3, 2))
		h.join("a", 0)
		h.join("b", 0)
		p, vp := h.newPlayer("c", 0)
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "is full") || h.e.Size() != 2 {
			t.Fatalf("full arena accepted a player")
		}
		if p.Arena() != "" || vp.Location() != home {
			t.Fatalf("rejected player was mutated")
		}
	})
	t.Run("active", func(t *testing.T) {
		h := newHarness(t, ffaArena(2, 3))
		h.join("a", 0)
		h.join("b", 0)
		h.e.Start()
		p, vp := h.newPlayer("c", 0)
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "already running") {
			t.Fatalf("active arena accepted a player")
		}
	})
	t.Run("already joined", func(t *testing.T) {
		h := newHarness(t, ffaArena(3, 3))
		p, vp := h.join("a", 0)
		before := len(vp.Messages())
		if ok, err := h.e.Join(p, nil); ok || err != nil || len(vp.Messages()) != before {
			t.Fatalf("second join should be silently rejected")
		}
	})
	t.Run("other arena", func(t *testing.T) {
		h := newHarness(t, ffaArena(3, 3))
		p, vp := h.newPlayer("a", 0)
		h.svc.Players.Enter(p, "elsewhere")
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "already in an arena") {
			t.Fatalf("player joined two arenas")
		}
	})
	t.Run("bet", func(t *testing.T) {
		a := ffaArena(3, 3)
		a.Bet = 10
		h := newHarness(t, a)
		p, vp := h.newPlayer("a", 5)
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "need 10 coins") || h.stats.coins[p.ID()] != 5 {
			t.Fatalf("poor player joined a betting arena")
		}
	})
	t.Run("empty inventory", func(t *testing.T) {
		h := newHarness(t, ffaArena(3, 3))
		h.svc.Settings.RequireEmptyInventory = true
		p, vp := h.newPlayer("a", 0)
		vp.Inventory().SetItem(3, host.Item{Material: "STONE"})
		if ok, _ := h.e.Join(p, nil); ok || !hasMessage(vp, "empty inventory") {
			t.Fatalf("player with items joined")
		}
	})
}

func TestRosterNeverExceedsMaximum(t *testing.T) {
	h := newHarness(t, ffaArena(5, 3))
	for i := 0; i < 10; i++ {
		p, _ := h.newPlayer(fmt.Sprintf("p%d", i), 0)
		h.e.Join(p, nil)
		if h.e.Size() > 3 {
			t.Fatalf("roster size %d exceeds maximum", h.e.Size())
		}
	}
}

func TestQuitIsIdempotentAndRefunds(t *testing.T) {
	a := ffaArena(3, 3)
	a.Bet = 7
	h := newHarness(t, a)
	p, vp := h.join("a", 10)
	if h.stats.coins[p.ID()] != 3 || !hasMessage(vp, "7 coins were taken") {
		t.Fatalf("bet not taken")
	}
	if err := h.e.Quit(p); err != nil {
		t.Fatal(err)
	}
	if err := h.e.Quit(p); err != nil {
		t.Fatal(err)
	}
	if h.stats.coins[p.ID()] != 10 || h.stats.credited != 7 {
		t.Fatalf("expected a single refund, coins %d credited %d", h.stats.coins[p.ID()], h.stats.credited)
	}
	if h.e.Size() != 0 || p.Arena() != "" || vp.Location() != home {
		t.Fatalf("quit did not restore the player")
	}
}

func TestForceEndRefundsAndNotifies(t *testing.T) {
	a := ffaArena(2, 3)
	a.Bet = 10
	a.Mode.FFARewards = map[int]config.Reward{1: {Console: []string{"reward {winner}"}}}
	h := newHarness(t, a)
	p1, vp1 := h.join("a", 10)
	p2, _ := h.join("b", 10)
	h.e.Start()
	h.commands = nil

	if err := h.e.ForceEnd(); err != nil {
		t.Fatal(err)
	}
	if h.stats.coins[p1.ID()] != 10 || h.stats.coins[p2.ID()] != 10 {
		t.Fatalf("bets not refunded")
	}
	if !hasMessage(vp1, "server is stopping") {
		t.Fatalf("no stop notice")
	}
	if len(h.commands) != 0 {
		t.Fatalf("rewards given on force end: %v", h.commands)
	}
	assertCleared(t, h.e)
}

func TestEndIsReentrantSafe(t *testing.T) {
	h := newHarness(t, ffaArena(2, 3))
	var order []string
	h.e.RegisterEndTask(GameTask{Phase: After, Run: func(e *Engine) { order = append(order, "after") }})
	h.e.RegisterEndTask(GameTask{Phase: Before, Run: func(e *Engine) {
		order = append(order, "before")
		if err := e.End(true); err != nil {
			t.Errorf("nested end: %v", err)
		}
	}})
	h.e.RegisterEndTask(GameTask{Phase: Before, Run: func(e *Engine) { order = append(order, "before2") }})
	h.join("a", 0)
	h.join("b", 0)
	h.e.Start()

	if err := h.e.End(false); err != nil {
		t.Fatal(err)
	}
	want := []string{"before", "before2", "after"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("hooks ran as %v, want %v", order, want)
	}
	if n := len(h.events.ofType(domain.EventGameEnd)); n != 1 {
		t.Fatalf("expected one end, got %d", n)
	}
}

type regenFunc func(key string) error

func (f regenFunc) RegenerateArena(key string) error { return f(key) }

func TestRegenerateBracketsStage(t *testing.T) {
	h := newHarness(t, ffaArena(2, 2))
	var during domain.Stage
	h.svc.Regenerator = regenFunc(func(key string) error {
		during = h.e.Stage()
		return nil
	})
	if err := h.e.Regenerate(); err != nil {
		t.Fatal(err)
	}
	if during != domain.StageRegenerating || h.e.Stage() != domain.StageWaiting {
		t.Fatalf("during=%s after=%s", during, h.e.Stage())
	}

	h.svc.Regenerator = regenFunc(func(string) error { return errors.New("boom") })
	if err := h.e.Regenerate(); err == nil {
		t.Fatalf("expected regeneration error")
	}
	if h.e.Stage() != domain.StageWaiting {
		t.Fatalf("stage not restored after failure")
	}
}

func TestEndClearsEvenWhenStatsFail(t *testing.T) {
	h := newHarness(t, ffaArena(2, 2))
	p1, _ := h.join("a", 0)
	h.join("b", 0)
	h.e.Start()
	h.stats.fail = errors.New("store down")
	if err := h.e.Lose(p1, nil, false); err == nil {
		t.Fatalf("expected store error from Lose")
	}
	if _, err := h.e.CheckTerminal(); err == nil {
		t.Fatalf("expected store error from the win")
	}
	assertCleared(t, h.e)
	if h.e.Stage() != domain.StageWaiting {
		t.Fatalf("stage %s", h.e.Stage())
	}
}

func TestEliminatedPlayerKeepsLaterArena(t *testing.T) {
	h := newHarness(t, ffaArena(2, 3))
	second := ffaArena(2, 3)
	second.Key = "second"
	second.DisplayName = "Second"
	other := NewEngine(second, h.svc)

	p1, vp1 := h.join("p1", 0)
	h.join("p2", 0)
	h.join("p3", 0)
	h.e.Start()
	if err := h.e.Lose(p1, nil, false); err != nil {
		t.Fatal(err)
	}
	if ended, _ := h.e.CheckTerminal(); ended {
		t.Fatalf("game ended with two players alive")
	}

	ok, err := other.Join(p1, nil)
	if err != nil || !ok {
		t.Fatalf("join second arena: ok=%v err=%v", ok, err)
	}
	at := vp1.Location()

	if err := h.e.ForceEnd(); err != nil {
		t.Fatal(err)
	}
	if p1.Arena() != "second" || p1.State() != domain.Waiting {
		t.Fatalf("second arena association lost: arena=%q state=%s", p1.Arena(), p1.State())
	}
	if !other.Has(p1.ID()) || !p1.HasContext() {
		t.Fatalf("second arena roster or saved context lost")
	}
	if vp1.Location() != at {
		t.Fatalf("player moved to %v, want %v", vp1.Location(), at)
	}
	if hasMessage(vp1, "server is stopping") {
		t.Errorf("stop notice sent to a player of another arena")
	}
	assertCleared(t, h.e)

	if err := other.Quit(p1); err != nil {
		t.Fatal(err)
	}
	if p1.Arena() != "" || vp1.Location() != home {
		t.Fatalf("quit did not restore: arena=%q loc=%v", p1.Arena(), vp1.Location())
	}
}

func TestTeamsFallingTogetherDraw(t *testing.T) {
	h := newHarness(t, teamArena(2, 1))
	e := h.e
	e.arena.Bet = 10
	red, blue := e.teams.ByColor(domain.TeamRed), e.teams.ByColor(domain.TeamBlue)
	p1, vp1 := h.newPlayer("p1", 50)
	p2, vp2 := h.newPlayer("p2", 50)
	if ok, err := e.Join(p1, red); !ok || err != nil {
		t.Fatalf("join: %v %v", ok, err)
	}
	if ok, err := e.Join(p2, blue); !ok || err != nil {
		t.Fatalf("join: %v %v", ok, err)
	}
	e.Start()
	vp1.MoveTo(host.Location{World: "world", Y: 0})
	vp2.MoveTo(host.Location{World: "world", Y: 0})
	h.tick(20)

	if e.Stage() != domain.StageWaiting {
		t.Fatalf("expected a draw to end the game, stage %s", e.Stage())
	}
	ends := h.events.ofType(domain.EventGameEnd)
	if len(ends) != 1 {
		t.Fatalf("expected one end, got %d", len(ends))
	}
	if res := ends[0].Data.(domain.GameResult); !res.Draw {
		t.Errorf("result not marked as draw")
	}
	for _, p := range []uuid.UUID{p1.ID(), p2.ID()} {
		if h.stats.stat(p, domain.StatDraws) != 1 || h.stats.stat(p, domain.StatWins) != 0 {
			t.Errorf("player %s: draws=%d wins=%d", p, h.stats.stat(p, domain.StatDraws), h.stats.stat(p, domain.StatWins))
		}
		if h.stats.coins[p] != 50 {
			t.Errorf("player %s: bet not refunded, coins %d", p, h.stats.coins[p])
		}
	}
	if h.stats.credited != h.stats.debited {
		t.Errorf("credited %d != debited %d", h.stats.credited, h.stats.debited)
	}
	assertCleared(t, e)
}

func TestFFAFallingTogetherDraw(t *testing.T) {
	h := newHarness(t, ffaArena(2, 2))
	p1, vp1 := h.join("p1", 0)
	p2, vp2 := h.join("p2", 0)
	h.e.Start()
	vp1.MoveTo(host.Location{World: "world", Y: 0})
	vp2.MoveTo(host.Location{World: "world", Y: 0})
	h.tick(20)

	ends := h.events.ofType(domain.EventGameEnd)
	if len(ends) != 1 || !ends[0].Data.(domain.GameResult).Draw {
		t.Fatalf("expected a single drawn game, got %d ends", len(ends))
	}
	if h.stats.stat(p1.ID(), domain.StatWins) != 0 || h.stats.stat(p2.ID(), domain.StatWins) != 0 {
		t.Errorf("win counted in a draw")
	}
	assertCleared(t, h.e)
}

func TestLowerPlacementsSeePortion(t *testing.T) {
	a := ffaArena(2, 3)
	a.Bet = 10
	a.Mode.FFARewards = map[int]config.Reward{
		1: {Console: []string{"first {winner} {portion}"}},
		2: {Console: []string{"second {winner} {portion}"}},
	}
	h := newHarness(t, a)
	p1, _ := h.join("p1", 50)
	p2, _ := h.join("p2", 50)
	h.join("p3", 50)
	h.e.Start()
	h.commands = nil
	h.e.Lose(p1, nil, false)
	h.e.Lose(p2, nil, false)
	h.e.CheckTerminal()

	want := []string{"first p3 30", "second p2 30"}
	if fmt.Sprint(h.commands) != fmt.Sprint(want) {
		t.Fatalf("commands = %v, want %v", h.commands, want)
	}
	if h.stats.coins[p2.ID()] != 40 {
		t.Errorf("second place paid: %d", h.stats.coins[p2.ID()])
	}
}

func TestGameResultPlacements(t *testing.T) {
	a := ffaArena(2, 3)
	a.Bet = 10
	h := newHarness(t, a)
	p1, _ := h.join("p1", 50)
	p2, _ := h.join("p2", 50)
	p3, _ := h.join("p3", 50)
	h.e.Start()
	h.e.Lose(p1, nil, false)
	h.e.Lose(p2, nil, false)
	h.e.CheckTerminal()

	ends := h.events.ofType(domain.EventGameEnd)
	if len(ends) != 1 {
		t.Fatalf("expected one end, got %d", len(ends))
	}
	res := ends[0].Data.(domain.GameResult)
	want := map[uuid.UUID][2]int{
		p3.ID(): {1, 30},
		p2.ID(): {2, 0},
		p1.ID(): {3, 0},
	}
	if len(res.Players) != len(want) {
		t.Fatalf("result has %d players", len(res.Players))
	}
	for _, gp := range res.Players {
		w, ok := want[gp.PlayerID]
		if !ok {
			t.Fatalf("unexpected player %s in result", gp.PlayerID)
		}
		if gp.Placement != w[0] || gp.Payout != w[1] {
			t.Errorf("%s: placement %d payout %d, want %d %d", gp.Name, gp.Placement, gp.Payout, w[0], w[1])
		}
	}
	if res.Pool != 30 || res.Draw {
		t.Errorf("pool %d draw %v", res.Pool, res.Draw)
	}
}
