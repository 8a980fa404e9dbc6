package arena

import "github.com/google/uuid"

// Stake is one escrowed wager
type Stake struct {
	Player uuid.UUID
	Amount int
}

// Escrow holds wagers for the duration of a game. Every held stake leaves
// exactly once, through Release or Drain.
type Escrow struct {
	stakes map[uuid.UUID]int
	order  []uuid.UUID
}

// NewEscrow creates an empty escrow
func NewEscrow() *Escrow {
	return &Escrow{stakes: make(map[uuid.UUID]int)}
}

// Hold escrows amount for a player. Holding again adds to the stake.
func (e *Escrow) Hold(id uuid.UUID, amount int) {
	if amount < 0 {
		return
	}
	if _, ok := e.stakes[id]; !ok {
		e.order = append(e.order, id)
	}
	e.stakes[id] += amount
}

// Release removes and returns a player's stake
func (e *Escrow) Release(id uuid.UUID) (int, bool) {
	amount, ok := e.stakes[id]
	if !ok {
		return 0, false
	}
	delete(e.stakes, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return amount, true
}

// Pool is the sum of every held stake
func (e *Escrow) Pool() int {
	sum := 0
	for _, v := range e.stakes {
		sum += v
	}
	return sum
}

// Drain empties the escrow and returns the stakes in the order they were held
func (e *Escrow) Drain() []Stake {
	out := make([]Stake, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, Stake{Player: id, Amount: e.stakes[id]})
	}
	e.stakes = make(map[uuid.UUID]int)
	e.order = nil
	return out
}

// Len returns the number of held stakes
func (e *Escrow) Len() int { return len(e.stakes) }
