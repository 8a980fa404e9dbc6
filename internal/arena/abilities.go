package arena

import (
	"log"
	"math"
	"sort"

	"github.com/spleefx/spleefx/internal/domain"
	"github.com/spleefx/spleefx/internal/player"
)

// applyPerks consumes one of each perk the player owns and gives the usable
// ones for this game
func (e *Engine) applyPerks(p *player.ArenaPlayer) {
	if e.svc.Stats == nil || len(e.svc.Perks) == 0 {
		return
	}
	ctx, cancel := storeCtx()
	defer cancel()
	owned, err := e.svc.Stats.Perks(ctx, p.ID())
	if err != nil {
		log.Printf("Warning: arena %s: loading perks of %s: %v", e.arena.Key, p.Name(), err)
		return
	}
	keys := make([]string, 0, len(owned))
	for k := range owned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		perk, ok := e.svc.Perks[key]
		if !ok || owned[key] <= 0 || !perk.UsableIn(e.arena.Mode.Key) {
			continue
		}
		consumed, err := e.svc.Stats.ConsumePerk(ctx, p.ID(), key)
		if err != nil {
			log.Printf("Warning: arena %s: consuming perk %s of %s: %v", e.arena.Key, key, p.Name(), err)
			continue
		}
		if !consumed {
			continue
		}
		if e.perks[p.ID()] == nil {
			e.perks[p.ID()] = make(map[string]int)
		}
		e.perks[p.ID()][key] = perk.IngameAmount
		for _, it := range perk.Items {
			p.Inventory().AddItem(it)
		}
		for _, eff := range perk.PotionEffects {
			p.AddPotionEffect(eff)
		}
	}
}

// Perk returns the in-game amount left of a perk
func (e *Engine) Perk(p *player.ArenaPlayer, key string) int { return e.perks[p.ID()][key] }

// DoubleJump launches the player forward and up if they have a double jump
// left. It reports whether a jump was used.
func (e *Engine) DoubleJump(p *player.ArenaPlayer) bool {
	dj := e.arena.Mode.DoubleJump
	if !dj.Enabled || p.State() != domain.InGame || !e.IsAlive(p.ID()) {
		return false
	}
	left := e.abilities[p.ID()][domain.AbilityDoubleJump]
	if left <= 0 {
		p.SetAllowFlight(false)
		return false
	}
	left--
	e.abilities[p.ID()][domain.AbilityDoubleJump] = left

	yaw := float64(p.Location().Yaw) * math.Pi / 180
	p.Push(-math.Sin(yaw)*dj.Power, dj.Power, math.Cos(yaw)*dj.Power)
	p.ResetFallDistance()
	if left == 0 {
		p.SetAllowFlight(false)
		e.setDoubleJumpItem(p, false)
	}
	return true
}
