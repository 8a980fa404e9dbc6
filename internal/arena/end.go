package arena

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/host"
	"github.com/spleefx/spleefx/internal/message"
	"github.com/spleefx/spleefx/internal/player"
	"github.com/spleefx/spleefx/internal/team"
)

// End finishes the game: end hooks, rewards, refunds, cleanup and
// regeneration. Every runtime collection is empty afterwards, even when a
// collaborator fails. Calls made while an End is in progress are ignored.
func (e *Engine) End(giveRewards bool) error {
	if e.ending {
		return nil
	}
	e.ending = true
	defer func() { e.ending = false }()

	e.runEndTasks(Before)
	e.countdownTask.Cancel()
	e.timerTask.Cancel()
	e.gameTask.Cancel()
	e.setStage(domain.StageWaiting)

	result := e.result(!giveRewards)
	var errs []error
	if giveRewards {
		errs = append(errs, e.payout(&result)...)
	}
	for _, s := range e.escrow.Drain() {
		errs = append(errs, e.giveCoins(s.Player, s.Amount))
	}
	for _, p := range e.Players() {
		e.restore(p)
	}

	e.roster = make(map[uuid.UUID]*member)
	e.order = nil
	e.alive = nil
	e.dead = nil
	e.deadTeams = nil
	e.abilities = make(map[uuid.UUID]map[domain.Ability]int)
	e.perks = make(map[uuid.UUID]map[string]int)
	e.teams.Reset()
	e.ffa.Reset()
	e.countdown = e.svc.Settings.CountdownOnEnoughPlayers
	e.timeLeft = e.arena.GameSeconds()

	result.EndedAt = e.svc.Now()
	e.publish(domain.EventGameEnd, result)
	e.runEndTasks(After)
	errs = append(errs, e.Regenerate())
	return errors.Join(errs...)
}

// ForceEnd refunds and notifies everyone, then ends the game without rewards
func (e *Engine) ForceEnd() error {
	var errs []error
	for _, p := range e.Players() {
		stillHere := p.Arena() == e.arena.Key
		e.restore(p)
		if amount, ok := e.escrow.Release(p.ID()); ok {
			errs = append(errs, e.giveCoins(p.ID(), amount))
		}
		if stillHere {
			e.send(p, message.ServerStopped, e.msgCtx(p, e.TeamOf(p.ID())))
		}
	}
	errs = append(errs, e.End(false))
	return errors.Join(errs...)
}

// Regenerate restores the arena terrain, keeping the stage it had before
func (e *Engine) Regenerate() error {
	old := e.stage
	e.setStage(domain.StageRegenerating)
	var err error
	if e.svc.Regenerator != nil {
		if err = e.svc.Regenerator.RegenerateArena(e.arena.Key); err != nil {
			err = fmt.Errorf("regenerating arena %s: %w", e.arena.Key, err)
		}
	}
	e.setStage(old)
	e.publish(domain.EventRegenerated, nil)
	e.refreshSigns()
	return err
}

func (e *Engine) result(draw bool) domain.GameResult {
	r := domain.GameResult{
		UUID:      e.gameID.String(),
		Arena:     e.arena.Key,
		Mode:      e.arena.Mode.Key,
		Type:      e.arena.Type,
		StartedAt: e.startedAt,
		Draw:      draw,
		Pool:      e.escrow.Pool(),
	}
	if e.gameID == uuid.Nil {
		r.UUID = uuid.NewString()
	}
	for _, id := range e.order {
		m := e.roster[id]
		r.Players = append(r.Players, domain.GameParticipant{
			PlayerID: id,
			Name:     m.p.Name(),
			Team:     m.team.Color,
		})
	}
	return r
}

// placements returns the rewarded entities in finishing order, winner first
func (e *Engine) placements() [][]*player.ArenaPlayer {
	var out [][]*player.ArenaPlayer
	if e.arena.Type == domain.FreeForAll {
		for i := len(e.dead) - 1; i >= 0; i-- {
			if m := e.roster[e.dead[i]]; m != nil {
				out = append(out, []*player.ArenaPlayer{m.p})
			}
		}
		return out
	}
	for i := len(e.deadTeams) - 1; i >= 0; i-- {
		out = append(out, e.membersOf(e.deadTeams[i]))
	}
	return out
}

func (e *Engine) membersOf(t *team.Team) []*player.ArenaPlayer {
	var out []*player.ArenaPlayer
	for _, id := range t.Members() {
		if m := e.roster[id]; m != nil {
			out = append(out, m.p)
		}
	}
	return out
}

// payout pays the pool to first place and runs the configured placement
// rewards. Placements nobody reached are skipped.
func (e *Engine) payout(r *domain.GameResult) []error {
	var errs []error
	places := e.placements()
	pool := e.escrow.Pool()
	shares := make(map[uuid.UUID]int)
	if len(places) > 0 && len(places[0]) > 0 && pool > 0 {
		winners := places[0]
		each, rest := pool/len(winners), pool%len(winners)
		for i, p := range winners {
			share := each
			if i < rest {
				share++
			}
			shares[p.ID()] = share
		}
	}

	for i, group := range places {
		for _, p := range group {
			for j := range r.Players {
				if r.Players[j].PlayerID == p.ID() {
					r.Players[j].Placement = i + 1
					r.Players[j].Payout = shares[p.ID()]
				}
			}
		}
	}

	rewards := e.strategy.rewards(e.arena.Mode)
	keys := make([]int, 0, len(rewards))
	for k := range rewards {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, placement := range keys {
		if placement < 1 || placement > len(places) {
			continue
		}
		for _, p := range places[placement-1] {
			portion, ok := shares[p.ID()]
			if !ok {
				portion = e.portion(pool)
			}
			e.reward(p, placement, portion, rewards[placement])
		}
	}

	if len(shares) > 0 {
		// the stakes become the winners' shares
		e.escrow.Drain()
		for _, p := range places[0] {
			share := shares[p.ID()]
			if share <= 0 {
				continue
			}
			if err := e.giveCoins(p.ID(), share); err != nil {
				errs = append(errs, err)
				continue
			}
			ctx := e.msgCtx(p, e.TeamOf(p.ID()))
			ctx.Pairs = map[string]string{"{portion}": strconv.Itoa(share)}
			e.send(p, message.WonGameBet, ctx)
		}
	}
	return errs
}

// portion is the share of the pool one winner is entitled to. Placements
// below first see it in their reward commands but are not paid it.
func (e *Engine) portion(pool int) int {
	if e.arena.Type == domain.FreeForAll || e.arena.MembersPerTeam <= 0 {
		return pool
	}
	return pool / e.arena.MembersPerTeam
}

func (e *Engine) reward(p *player.ArenaPlayer, placement, portion int, r config.Reward) {
	ctx := e.msgCtx(p, e.TeamOf(p.ID()))
	pairs := ctx.Placeholders()
	pairs["{winner}"] = p.Name()
	pairs["{portion}"] = strconv.Itoa(portion)
	pairs["{placement}"] = strconv.Itoa(placement)
	for _, c := range r.Console {
		e.dispatch(host.SenderConsole, nil, message.Replace(c, pairs))
	}
	for _, c := range r.Player {
		e.dispatch(host.SenderPlayer, p, message.Replace(c, pairs))
	}
	log.Printf("Arena %s: placement %d rewarded to %s", e.arena.Key, placement, p.Name())
}
