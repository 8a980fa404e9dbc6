package arena

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/team"
)

type member struct {
	p    *player.ArenaPlayer
	team *team.Team
}

// Engine is the runtime state machine of one arena. Every method must be
// called from the scheduler's tick goroutine.
type Engine struct {
	arena    *Arena
	svc      *Services
	strategy strategy

	stage     domain.Stage
	teams     *team.Registry
	ffa       *SpawnAllocator
	roster    map[uuid.UUID]*member
	order     []uuid.UUID
	alive     []uuid.UUID
	dead      []uuid.UUID
	deadTeams []*team.Team
	escrow    *Escrow
	abilities map[uuid.UUID]map[domain.Ability]int
	perks     map[uuid.UUID]map[string]int

	countdown int
	timeLeft  int

	countdownTask *host.Task
	timerTask     *host.Task
	gameTask      *host.Task

	endTasks  []GameTask
	ending    bool
	gameID    uuid.UUID
	startedAt time.Time
}

// NewEngine creates the engine of an arena. The engine starts out WAITING.
func NewEngine(a *Arena, svc *Services) *Engine {
	svc.fillDefaults()
	s := strategyFor(a.Type)
	return &Engine{
		arena:     a,
		svc:       svc,
		strategy:  s,
		stage:     domain.StageWaiting,
		teams:     s.newTeams(a),
		ffa:       NewSpawnAllocator(a.FFASpawns),
		roster:    make(map[uuid.UUID]*member),
		escrow:    NewEscrow(),
		abilities: make(map[uuid.UUID]map[domain.Ability]int),
		perks:     make(map[uuid.UUID]map[string]int),
		countdown: svc.Settings.CountdownOnEnoughPlayers,
		timeLeft:  a.GameSeconds(),
	}
}

// Arena returns the arena definition
func (e *Engine) Arena() *Arena { return e.arena }

// Stage returns the current stage. DISABLED and NEEDS_SETUP are derived from
// the arena definition on every call and take precedence over the stored stage.
func (e *Engine) Stage() domain.Stage {
	if !e.arena.Enabled || !e.arena.Mode.Enabled {
		return domain.StageDisabled
	}
	if e.strategy.ready(e.arena) != nil {
		return domain.StageNeedsSetup
	}
	return e.stage
}

func (e *Engine) setStage(s domain.Stage) {
	if e.stage == s {
		return
	}
	from := e.stage
	e.stage = s
	e.publish(domain.EventStageChange, domain.StageChangeEvent{From: from, To: s})
}

// Size returns the number of participants on the roster
func (e *Engine) Size() int { return len(e.roster) }

// Full reports whether the roster has reached the maximum
func (e *Engine) Full() bool { return len(e.roster) >= e.arena.Maximum }

// Players returns the roster in join order
func (e *Engine) Players() []*player.ArenaPlayer {
	out := make([]*player.ArenaPlayer, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.roster[id].p)
	}
	return out
}

// Has reports whether id is on the roster
func (e *Engine) Has(id uuid.UUID) bool {
	_, ok := e.roster[id]
	return ok
}

// TeamOf returns the team of a rostered participant, or nil
func (e *Engine) TeamOf(id uuid.UUID) *team.Team {
	if m, ok := e.roster[id]; ok {
		return m.team
	}
	return nil
}

// Teams returns the arena's teams
func (e *Engine) Teams() []*team.Team { return e.teams.Teams() }

// Alive returns a copy of the alive participants in join order
func (e *Engine) Alive() []uuid.UUID {
	return append([]uuid.UUID(nil), e.alive...)
}

// IsAlive reports whether id is still in the game
func (e *Engine) IsAlive(id uuid.UUID) bool { return indexOf(e.alive, id) >= 0 }

// Countdown returns the seconds left on the countdown
func (e *Engine) Countdown() int { return e.countdown }

// TimeLeft returns the seconds left in the game
func (e *Engine) TimeLeft() int { return e.timeLeft }

// Pool returns the total of escrowed wagers
func (e *Engine) Pool() int { return e.escrow.Pool() }

// Ability returns a participant's remaining uses of an ability
func (e *Engine) Ability(id uuid.UUID, a domain.Ability) int { return e.abilities[id][a] }

// Status summarizes the arena for displays
func (e *Engine) Status() domain.ArenaStatus {
	return domain.ArenaStatus{
		Key:         e.arena.Key,
		DisplayName: e.arena.DisplayName,
		Mode:        e.arena.Mode.Key,
		Type:        e.arena.Type,
		Stage:       e.Stage(),
		Players:     len(e.roster),
		Alive:       len(e.alive),
		Minimum:     e.arena.Minimum,
		Maximum:     e.arena.Maximum,
		Countdown:   e.countdown,
		TimeLeft:    e.timeLeft,
		Bet:         e.arena.Bet,
	}
}

func indexOf(list []uuid.UUID, id uuid.UUID) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func remove(list []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if i := indexOf(list, id); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

func (e *Engine) msgCtx(p host.Player, t *team.Team) message.Context {
	ctx := message.Context{
		Arena:    e.arena.DisplayName,
		ArenaKey: e.arena.Key,
		Mode:     e.arena.Mode.DisplayName,
		Number:   -1,
	}
	if p != nil {
		ctx.Player = p.Name()
	}
	if t != nil {
		ctx.Team = t.Color
	}
	return ctx
}

func (e *Engine) send(p host.Player, key message.Key, ctx message.Context) {
	e.svc.Messages.Send(p, key, ctx)
}

// broadcast sends a notice to every participant, each with their own team
func (e *Engine) broadcast(key message.Key, fill func(ctx *message.Context)) {
	for _, id := range e.order {
		m := e.roster[id]
		ctx := e.msgCtx(m.p, m.team)
		if fill != nil {
			fill(&ctx)
		}
		e.send(m.p, key, ctx)
	}
}

func (e *Engine) title(p host.Player, key string) {
	if t, ok := e.arena.Mode.Titles[key]; ok {
		ctx := e.msgCtx(p, e.TeamOf(p.ID()))
		t.Title = message.Replace(t.Title, ctx.Placeholders())
		t.Subtitle = message.Replace(t.Subtitle, ctx.Placeholders())
		p.DisplayTitle(t)
	}
}

func (e *Engine) event(p *player.ArenaPlayer, t *team.Team) domain.PlayerEvent {
	ev := domain.PlayerEvent{PlayerID: p.ID().String(), Name: p.Name(), Players: len(e.roster)}
	if t != nil {
		ev.Team = t.Color
	}
	return ev
}

// Join adds a participant to the arena. A nil team picks one at random. It
// returns false, after notifying the player, when a precondition fails.
func (e *Engine) Join(p *player.ArenaPlayer, t *team.Team) (bool, error) {
	ctx := e.msgCtx(p, nil)
	if !e.arena.Enabled || !e.arena.Mode.Enabled {
		e.send(p, message.ArenaDisabled, ctx)
		return false, nil
	}
	if e.svc.Settings.RequireEmptyInventory && !p.Inventory().IsEmpty() {
		e.send(p, message.MustHaveEmptyInv, ctx)
		return false, nil
	}
	if e.Full() {
		e.send(p, message.ArenaFull, ctx)
		return false, nil
	}
	switch e.Stage() {
	case domain.StageDisabled:
		e.send(p, message.ArenaDisabled, ctx)
		return false, nil
	case domain.StageActive:
		e.send(p, message.ArenaAlreadyActive, ctx)
		return false, nil
	case domain.StageRegenerating:
		e.send(p, message.ArenaRegenerating, ctx)
		return false, nil
	case domain.StageNeedsSetup:
		e.send(p, message.ArenaNeedsSetup, ctx)
		return false, nil
	}
	if e.Has(p.ID()) {
		return false, nil
	}
	if p.Arena() != "" && p.Arena() != e.arena.Key {
		e.send(p, message.AlreadyInArena, ctx)
		return false, nil
	}
	if e.arena.TakesBets() && e.svc.Stats != nil {
		sctx, cancel := storeCtx()
		coins, err := e.svc.Stats.Coins(sctx, p.ID())
		cancel()
		if err != nil {
			return false, fmt.Errorf("reading balance of %s: %w", p.Name(), err)
		}
		if coins < e.arena.Bet {
			ctx.Extra = fmt.Sprint(e.arena.Bet)
			e.send(p, message.NotEnoughToBet, ctx)
			return false, nil
		}
	}

	if t == nil {
		t = e.teams.Select(e.svc.Rand, e.arena.MembersPerTeam)
	}
	if t == nil {
		e.send(p, message.ArenaFull, ctx)
		return false, nil
	}
	if err := e.svc.Players.Enter(p, e.arena.Key); err != nil {
		e.send(p, message.AlreadyInArena, ctx)
		return false, nil
	}
	t.Add(p.ID())
	e.roster[p.ID()] = &member{p: p, team: t}
	e.order = append(e.order, p.ID())
	e.prepare(p, t)

	e.broadcast(e.strategy.joinedKey, func(c *message.Context) {
		c.Player = p.Name()
		c.Team = t.Color
	})
	e.publish(domain.EventPlayerJoin, e.event(p, t))
	e.refreshSigns()
	if len(e.roster) >= e.arena.Minimum {
		e.armCountdown()
	}
	e.abilities[p.ID()] = map[domain.Ability]int{
		domain.AbilityDoubleJump: e.arena.Mode.DoubleJump.DefaultAmount,
	}

	if e.arena.TakesBets() && e.svc.Stats != nil {
		sctx, cancel := storeCtx()
		err := e.svc.Stats.TakeCoins(sctx, p.ID(), e.arena.Bet)
		cancel()
		if err != nil {
			qerr := e.Quit(p)
			return false, errors.Join(fmt.Errorf("taking bet from %s: %w", p.Name(), err), qerr)
		}
		e.escrow.Hold(p.ID(), e.arena.Bet)
		ctx.Extra = fmt.Sprint(e.arena.Bet)
		e.send(p, message.BetTaken, ctx)
	}
	return true, nil
}

// prepare saves the player's context and moves them into the waiting lobby
func (e *Engine) prepare(p *player.ArenaPlayer, t *team.Team) {
	p.SaveContext()
	p.SetState(domain.Waiting)
	p.SetGameMode(e.arena.Mode.WaitingGameMode)
	p.Teleport(e.strategy.lobby(e, p, t))
	if q := e.arena.Mode.QuitItem; q != nil {
		p.Inventory().SetItem(q.Slot, q.Item)
	}
}

// restore gives the player back what they had before joining and detaches
// them from the arena. The roster is left untouched. Players already detached,
// such as the eliminated who went on to join another arena, keep their state.
func (e *Engine) restore(p *player.ArenaPlayer) {
	if e.arena.Type == domain.FreeForAll {
		e.ffa.Remove(p.ID())
	}
	delete(e.abilities, p.ID())
	if p.Arena() != e.arena.Key {
		return
	}
	if !p.RestoreContext() {
		p.ResetFallDistance()
	}
	e.svc.Players.Leave(p)
}

// Quit removes a participant and refunds their wager. Quitting twice is a no-op.
func (e *Engine) Quit(p *player.ArenaPlayer) error {
	m, ok := e.roster[p.ID()]
	if !ok {
		return nil
	}
	e.restore(p)
	delete(e.roster, p.ID())
	e.order = remove(e.order, p.ID())
	m.team.Remove(p.ID())
	e.alive = remove(e.alive, p.ID())
	delete(e.perks, p.ID())

	if len(e.roster) < e.arena.Minimum && e.stage == domain.StageCountdown {
		e.countdownTask.Cancel()
		e.countdown = e.svc.Settings.CountdownOnEnoughPlayers
		e.setStage(domain.StageWaiting)
		e.broadcast(message.NotEnoughPlayers, nil)
		for _, rp := range e.Players() {
			rp.SetLevel(0)
		}
	}

	var err error
	if amount, ok := e.escrow.Release(p.ID()); ok {
		err = e.giveCoins(p.ID(), amount)
	}
	e.publish(domain.EventPlayerQuit, e.event(p, m.team))
	e.refreshSigns()
	return err
}

// Lose eliminates an alive participant. It does not check whether the game
// is over; callers follow up with CheckTerminal.
func (e *Engine) Lose(p *player.ArenaPlayer, t *team.Team, disconnect bool) error {
	if !e.IsAlive(p.ID()) {
		return nil
	}
	if t == nil {
		t = e.TeamOf(p.ID())
	}
	e.dead = append(e.dead, p.ID())
	err := e.addStat(p, domain.StatLosses)
	e.restore(p)
	e.alive = remove(e.alive, p.ID())
	if t != nil && t.Kill(p.ID()) && e.arena.Type == domain.Teams {
		e.eliminateTeam(t)
	}
	e.broadcast(e.strategy.lostKey, func(c *message.Context) {
		c.Player = p.Name()
		if t != nil {
			c.Team = t.Color
		}
	})
	if !disconnect {
		e.title(p, config.TitleLose)
	}
	e.publish(domain.EventPlayerLose, e.event(p, t))
	return err
}

func (e *Engine) eliminateTeam(t *team.Team) {
	for _, d := range e.deadTeams {
		if d == t {
			return
		}
	}
	e.deadTeams = append(e.deadTeams, t)
	e.broadcast(message.TeamEliminated, func(c *message.Context) {
		c.Team = t.Color
		c.Player = ""
	})
	e.publish(domain.EventTeamEliminated, domain.TeamEliminatedEvent{Team: t.Color, Order: len(e.deadTeams)})
}

// Win records a winner. In free-for-all the winner takes the last place in
// the elimination order; in team arenas their team does.
func (e *Engine) Win(p *player.ArenaPlayer, t *team.Team) error {
	if t == nil {
		t = e.TeamOf(p.ID())
	}
	err := e.addStat(p, domain.StatWins)
	if e.arena.Type == domain.FreeForAll {
		if indexOf(e.dead, p.ID()) < 0 {
			e.dead = append(e.dead, p.ID())
		}
	} else if t != nil {
		known := false
		for _, d := range e.deadTeams {
			known = known || d == t
		}
		if !known {
			e.deadTeams = append(e.deadTeams, t)
		}
	}
	e.restore(p)
	e.title(p, config.TitleWin)
	e.publish(domain.EventPlayerWin, e.event(p, t))
	return err
}

// Draw ends the game without a winner
func (e *Engine) Draw() error {
	e.timerTask.Cancel()
	e.gameTask.Cancel()
	e.timeLeft = e.arena.GameSeconds()
	var errs []error
	for _, p := range e.Players() {
		elsewhere := p.Arena() != "" && p.Arena() != e.arena.Key
		e.restore(p)
		if !elsewhere {
			e.title(p, config.TitleDraw)
		}
		errs = append(errs, e.addStat(p, domain.StatDraws))
	}
	e.publish(domain.EventGameDraw, nil)
	errs = append(errs, e.End(false))
	return errors.Join(errs...)
}

// ScoreboardMap returns lazily evaluated placeholder values for a participant
func (e *Engine) ScoreboardMap(p host.Player) map[string]func() string {
	if p == nil || !p.Online() {
		return map[string]func() string{}
	}
	id := p.ID()
	return map[string]func() string{
		"{double_jumps}": func() string { return fmt.Sprint(e.Ability(id, domain.AbilityDoubleJump)) },
		"{time_left}":    func() string { return formatSeconds(e.timeLeft) },
		"{players}":      func() string { return fmt.Sprint(len(e.roster)) },
		"{alive}":        func() string { return fmt.Sprint(len(e.alive)) },
		"{stage}":        func() string { return string(e.Stage()) },
		"{countdown}":    func() string { return fmt.Sprint(e.countdown) },
	}
}

func formatSeconds(s int) string {
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
