// Package world is an in-memory block store with per-arena snapshots used to
// regenerate arena floors.
package world

import (
	"fmt"
	"sync"

	"github.com/spleefx/spleefx/internal/host"
)

// Air is the material of an empty block
const Air = "AIR"

// Block is a located block
type Block struct {
	World    string        `json:"world"`
	Pos      host.BlockPos `json:"pos"`
	Material string        `json:"material"`
}

type key struct {
	world string
	pos   host.BlockPos
}

// Store holds block materials and the saved snapshot of each arena
type Store struct {
	mu        sync.RWMutex
	blocks    map[key]string
	snapshots map[string][]Block
}

// NewStore creates an empty world
func NewStore() *Store {
	return &Store{
		blocks:    make(map[key]string),
		snapshots: make(map[string][]Block),
	}
}

// Set places a block. Air removes it.
func (s *Store) Set(b Block) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(b)
}

func (s *Store) set(b Block) {
	k := key{b.World, b.Pos}
	if b.Material == "" || b.Material == Air {
		delete(s.blocks, k)
		return
	}
	s.blocks[k] = b.Material
}

// At returns the material at a position, Air when empty
func (s *Store) At(world string, pos host.BlockPos) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.blocks[key{world, pos}]; ok {
		return m
	}
	return Air
}

// Fill sets every block in the inclusive cuboid between lo and hi
func (s *Store) Fill(world string, lo, hi host.BlockPos, material string) int {
	lo, hi = order(lo, hi)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				s.set(Block{World: world, Pos: host.BlockPos{X: x, Y: y, Z: z}, Material: material})
				n++
			}
		}
	}
	return n
}

func order(a, b host.BlockPos) (host.BlockPos, host.BlockPos) {
	if a.X > b.X {
		a.X, b.X = b.X, a.X
	}
	if a.Y > b.Y {
		a.Y, b.Y = b.Y, a.Y
	}
	if a.Z > b.Z {
		a.Z, b.Z = b.Z, a.Z
	}
	return a, b
}

// Break turns a solid block into air and returns its old material
func (s *Store) Break(world string, pos host.BlockPos) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{world, pos}
	m, ok := s.blocks[k]
	if !ok {
		return "", false
	}
	delete(s.blocks, k)
	return m, true
}

// Snapshot saves the current contents of a cuboid under an arena key
func (s *Store) Snapshot(arena, world string, lo, hi host.BlockPos) int {
	lo, hi = order(lo, hi)
	s.mu.Lock()
	defer s.mu.Unlock()
	var saved []Block
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				pos := host.BlockPos{X: x, Y: y, Z: z}
				m, ok := s.blocks[key{world, pos}]
				if !ok {
					m = Air
				}
				saved = append(saved, Block{World: world, Pos: pos, Material: m})
			}
		}
	}
	s.snapshots[arena] = saved
	return len(saved)
}

// Restore writes an arena's snapshot back into the world
func (s *Store) Restore(arena string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.snapshots[arena]
	if !ok {
		return fmt.Errorf("no snapshot for arena %q", arena)
	}
	for _, b := range saved {
		s.set(b)
	}
	return nil
}

// HasSnapshot reports whether an arena has been snapshotted
func (s *Store) HasSnapshot(arena string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.snapshots[arena]
	return ok
}
