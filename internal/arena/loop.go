package arena

import (
	"errors"
	"log"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
)

// loop starts the time ticker and the elimination sweep
func (e *Engine) loop() {
	if e.Stage() != domain.StageActive {
		return
	}
	e.timerTask.Cancel()
	e.gameTask.Cancel()
	e.timerTask = e.svc.Scheduler.RunTaskTimer(host.TicksPerSecond, host.TicksPerSecond, e.timeTick)
	interval := e.svc.Settings.ArenaUpdateInterval
	e.gameTask = e.svc.Scheduler.RunTaskTimer(interval, interval, e.sweep)
}

func (e *Engine) timeTick() {
	if e.timeLeft > 0 {
		e.timeLeft--
	}
	warn, ok := e.svc.Settings.TimeOutWarn[e.timeLeft]
	if !ok {
		return
	}
	e.broadcast(message.GameTimeout, func(c *message.Context) {
		c.Extra = warn
		c.Number = e.timeLeft
	})
}

// sweep eliminates everyone at or below the death level, then checks whether
// the game is over. It iterates over snapshots so eliminations cannot disturb it.
func (e *Engine) sweep() {
	if e.stage != domain.StageActive || e.ending {
		return
	}
	if e.timeLeft <= 0 {
		if err := e.Draw(); err != nil {
			log.Printf("Warning: arena %s: draw on timeout: %v", e.arena.Key, err)
		}
		return
	}
	var errs []error
	if e.arena.Type == domain.FreeForAll {
		ffa := e.teams.ByColor(domain.TeamFFA)
		for _, id := range e.Alive() {
			m := e.roster[id]
			if m != nil && m.p.Location().Y <= e.arena.DeathLevel {
				errs = append(errs, e.Lose(m.p, ffa, false))
			}
		}
	} else {
		for _, t := range e.teams.Teams() {
			for _, id := range t.Alive() {
				m := e.roster[id]
				if m != nil && m.p.Location().Y <= e.arena.DeathLevel {
					errs = append(errs, e.Lose(m.p, t, false))
				}
			}
		}
	}
	_, err := e.CheckTerminal()
	errs = append(errs, err)
	for _, err := range errs {
		if err != nil {
			log.Printf("Warning: arena %s: elimination sweep: %v", e.arena.Key, err)
		}
	}
}

// CheckTerminal ends the game if at most one player (free-for-all) or one
// team remains. It reports whether the game ended and is safe to call any
// number of times in the same tick.
func (e *Engine) CheckTerminal() (bool, error) {
	if e.stage != domain.StageActive || e.ending {
		return false, nil
	}
	if e.arena.Type == domain.FreeForAll {
		switch len(e.alive) {
		case 0:
			return true, e.Draw()
		case 1:
			m := e.roster[e.alive[0]]
			err := e.Win(m.p, m.team)
			return true, errors.Join(err, e.End(true))
		}
		return false, nil
	}

	left := e.teams.Remaining()
	switch len(left) {
	case 0:
		return true, e.Draw()
	case 1:
		t := left[0]
		var errs []error
		for _, id := range t.Alive() {
			if m := e.roster[id]; m != nil {
				errs = append(errs, e.Win(m.p, t))
			}
		}
		errs = append(errs, e.End(true))
		return true, errors.Join(errs...)
	}
	return false, nil
}
