// Package team holds team membership and the alive subset of each team.
package team

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/domain"
)

// Team is one side of an arena. Alive is always a subset of Members and both
// keep join order.
type Team struct {
	Color   domain.TeamColor
	members []uuid.UUID
	alive   []uuid.UUID
}

// New creates an empty team
func New(color domain.TeamColor) *Team {
	return &Team{Color: color}
}

func indexOf(list []uuid.UUID, id uuid.UUID) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func without(list []uuid.UUID, id uuid.UUID) []uuid.UUID {
	if i := indexOf(list, id); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

// Add puts id on the roster. Adding an existing member does nothing.
func (t *Team) Add(id uuid.UUID) {
	if indexOf(t.members, id) < 0 {
		t.members = append(t.members, id)
	}
}

// Remove drops id from both the roster and the alive set
func (t *Team) Remove(id uuid.UUID) {
	t.members = without(t.members, id)
	t.alive = without(t.alive, id)
}

// Revive marks a member alive. Non-members are ignored.
func (t *Team) Revive(id uuid.UUID) {
	if indexOf(t.members, id) >= 0 && indexOf(t.alive, id) < 0 {
		t.alive = append(t.alive, id)
	}
}

// Kill removes id from the alive set and reports whether that emptied it
func (t *Team) Kill(id uuid.UUID) bool {
	before := len(t.alive)
	t.alive = without(t.alive, id)
	return before > 0 && len(t.alive) == 0
}

// Eliminated reports whether the team had members and none are alive
func (t *Team) Eliminated() bool {
	return len(t.members) > 0 && len(t.alive) == 0
}

// Has reports whether id is on the roster
func (t *Team) Has(id uuid.UUID) bool { return indexOf(t.members, id) >= 0 }

// IsAlive reports whether id is in the alive set
func (t *Team) IsAlive(id uuid.UUID) bool { return indexOf(t.alive, id) >= 0 }

// Size returns the number of members
func (t *Team) Size() int { return len(t.members) }

// Members returns a copy of the roster in join order
func (t *Team) Members() []uuid.UUID {
	return append([]uuid.UUID(nil), t.members...)
}

// Alive returns a copy of the alive set in join order
func (t *Team) Alive() []uuid.UUID {
	return append([]uuid.UUID(nil), t.alive...)
}

// Reset empties the roster and the alive set
func (t *Team) Reset() {
	t.members = nil
	t.alive = nil
}

// Registry is the ordered set of teams of one arena
type Registry struct {
	teams []*Team
	ffa   bool
}

// NewRegistry creates a registry with one team per color
func NewRegistry(colors []domain.TeamColor) *Registry {
	r := &Registry{}
	for _, c := range colors {
		r.teams = append(r.teams, New(c))
	}
	return r
}

// NewFFA creates a registry holding only the implicit free-for-all team
func NewFFA() *Registry {
	return &Registry{teams: []*Team{New(domain.TeamFFA)}, ffa: true}
}

// Teams returns the teams in configured order
func (r *Registry) Teams() []*Team {
	return append([]*Team(nil), r.teams...)
}

// ByColor returns the team with the given color, or nil
func (r *Registry) ByColor(c domain.TeamColor) *Team {
	if r.ffa {
		return r.teams[0]
	}
	for _, t := range r.teams {
		if t.Color == c {
			return t
		}
	}
	return nil
}

// Of returns the team id is a member of, or nil
func (r *Registry) Of(id uuid.UUID) *Team {
	for _, t := range r.teams {
		if t.Has(id) {
			return t
		}
	}
	return nil
}

// Remaining returns the teams that still have alive members
func (r *Registry) Remaining() []*Team {
	var out []*Team
	for _, t := range r.teams {
		if len(t.alive) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Select picks a uniformly random team with fewer than capacity members,
// retrying until one has room. It returns nil when every team is full.
func (r *Registry) Select(rng *rand.Rand, capacity int) *Team {
	if r.ffa {
		return r.teams[0]
	}
	open := 0
	for _, t := range r.teams {
		if capacity <= 0 || t.Size() < capacity {
			open++
		}
	}
	if open == 0 {
		return nil
	}
	for {
		var t *Team
		if rng != nil {
			t = r.teams[rng.IntN(len(r.teams))]
		} else {
			t = r.teams[rand.IntN(len(r.teams))]
		}
		if capacity <= 0 || t.Size() < capacity {
			return t
		}
	}
}

// Reset empties every team
func (r *Registry) Reset() {
	for _, t := range r.teams {
		t.Reset()
	}
}
