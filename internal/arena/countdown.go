package arena

import (
	"log"
	"slices"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
)

// armCountdown starts the pre-game countdown. It does nothing while a
// countdown task is already live.
func (e *Engine) armCountdown() {
	if e.countdownTask.Active() {
		return
	}
	e.setStage(domain.StageCountdown)
	if e.svc.Settings.RegenerateBeforeCountdown {
		if err := e.Regenerate(); err != nil {
			log.Printf("Warning: arena %s: regenerating before countdown: %v", e.arena.Key, err)
		}
	}
	e.broadcast(message.GameStarting, func(c *message.Context) { c.Number = e.countdown })
	for _, c := range e.arena.Mode.CommandsWhenGameFills {
		e.dispatch(host.SenderConsole, nil, message.Replace(c, e.msgCtx(nil, nil).Placeholders()))
	}
	e.publish(domain.EventCountdown, domain.CountdownEvent{Seconds: e.countdown})
	e.countdownTask = e.svc.Scheduler.RunTaskTimer(host.TicksPerSecond, host.TicksPerSecond, e.countdownTick)
}

func (e *Engine) countdownTick() {
	if e.countdown > 0 {
		e.countdown--
	}
	s := e.svc.Settings
	titleText, hasTitle := s.CountdownTitles.Numbers[e.countdown]
	for _, id := range e.order {
		m := e.roster[id]
		if s.DisplayCountdownOnExpBar {
			m.p.SetLevel(e.countdown)
		}
		if hasTitle && s.CountdownTitles.Enabled {
			m.p.DisplayTitle(host.Title{
				Title:    titleText,
				Subtitle: s.CountdownTitles.Subtitle,
				FadeIn:   s.CountdownTitles.FadeIn,
				Stay:     s.CountdownTitles.Stay,
				FadeOut:  s.CountdownTitles.FadeOut,
			})
			ctx := e.msgCtx(m.p, m.team)
			ctx.Extra = titleText
			ctx.Number = e.countdown
			e.send(m.p, message.GameCountdown, ctx)
		}
		if s.CountdownSound.Sound != "" && slices.Contains(s.CountdownSound.When, e.countdown) {
			m.p.PlaySound(s.CountdownSound.Sound)
		}
	}
	if e.countdown == 0 {
		e.countdownTask.Cancel()
		e.countdown = s.CountdownOnEnoughPlayers
		e.Start()
	}
}

// Start begins the game for everyone on the roster
func (e *Engine) Start() {
	e.countdownTask.Cancel()
	e.setStage(domain.StageActive)
	e.gameID = uuid.New()
	e.startedAt = e.svc.Now()
	for _, id := range e.order {
		m := e.roster[id]
		e.alive = append(e.alive, id)
		e.prepareForGame(m)
	}
	e.timeLeft = e.arena.GameSeconds()
	for _, c := range e.arena.Mode.CommandsWhenGameStarts {
		e.dispatch(host.SenderConsole, nil, message.Replace(c, e.msgCtx(nil, nil).Placeholders()))
	}
	e.publish(domain.EventGameStart, domain.PlayerEvent{Players: len(e.roster)})
	e.refreshSigns()
	e.loop()
}

func (e *Engine) prepareForGame(m *member) {
	p, mode := m.p, e.arena.Mode
	m.team.Revive(p.ID())
	p.SetState(domain.InGame)
	p.SetGameMode(mode.InGameMode)
	for _, eff := range mode.PotionEffects {
		p.AddPotionEffect(eff)
	}
	p.Teleport(e.strategy.spawn(e, p, m.team))
	inv := p.Inventory()
	inv.Clear()
	for slot, it := range mode.Items {
		inv.SetItem(slot, it)
	}
	for slot, it := range mode.Armor {
		inv.SetArmor(slot, it)
	}
	if err := e.addStat(p, domain.StatGamesPlayed); err != nil {
		log.Printf("Warning: arena %s: %v", e.arena.Key, err)
	}

	if dj := mode.DoubleJump; dj.Enabled && dj.DefaultAmount > 0 {
		p.SetAllowFlight(true)
		e.setDoubleJumpItem(p, true)
	}
	e.applyPerks(p)
}

func (e *Engine) setDoubleJumpItem(p host.Player, available bool) {
	dj := e.arena.Mode.DoubleJump
	if !dj.Enabled || !dj.Items.Enabled || dj.DefaultAmount <= 0 {
		return
	}
	if available {
		p.Inventory().SetItem(dj.Items.Slot, dj.Items.Available)
	} else {
		p.Inventory().SetItem(dj.Items.Slot, dj.Items.Unavailable)
	}
}
