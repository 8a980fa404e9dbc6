package arena

import (
	"github.com/google/uuid"

	"github.com/spleefx/spleefx/internal/host"
)

// SpawnAllocator hands out the spawn slots of a free-for-all arena. A player
// keeps their slot until released.
type SpawnAllocator struct {
	spawns []host.Location
	slots  []uuid.UUID
}

// NewSpawnAllocator creates an allocator over the given spawn points
func NewSpawnAllocator(spawns []host.Location) *SpawnAllocator {
	return &SpawnAllocator{
		spawns: spawns,
		slots:  make([]uuid.UUID, len(spawns)),
	}
}

// Spawnpoint returns the player's slot, assigning the lowest free one on
// first use. It returns -1 when every slot is taken.
func (s *SpawnAllocator) Spawnpoint(id uuid.UUID) int {
	if i := s.Index(id); i >= 0 {
		return i
	}
	for i, v := range s.slots {
		if v == uuid.Nil {
			s.slots[i] = id
			return i
		}
	}
	return -1
}

// Index returns the player's slot, or -1
func (s *SpawnAllocator) Index(id uuid.UUID) int {
	for i, v := range s.slots {
		if v == id {
			return i
		}
	}
	return -1
}

// Location returns the spawn point of a slot
func (s *SpawnAllocator) Location(slot int) host.Location {
	if slot < 0 || slot >= len(s.spawns) {
		return host.Location{}
	}
	return s.spawns[slot]
}

// Remove frees the player's slot
func (s *SpawnAllocator) Remove(id uuid.UUID) {
	if i := s.Index(id); i >= 0 {
		s.slots[i] = uuid.Nil
	}
}

// Reset frees every slot
func (s *SpawnAllocator) Reset() {
	for i := range s.slots {
		s.slots[i] = uuid.Nil
	}
}

// Taken returns the number of assigned slots
func (s *SpawnAllocator) Taken() int {
	n := 0
	for _, v := range s.slots {
		if v != uuid.Nil {
			n++
		}
	}
	return n
}
