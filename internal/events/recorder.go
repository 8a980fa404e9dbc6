package events

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spleefx/spleefx/internal/domain"
)

const recordTimeout = 10 * time.Second

// GameStore persists finished games
type GameStore interface {
	RecordGame(ctx context.Context, g *domain.GameResult) error
}

// Recorder stores every game_end result. Writes happen on its own goroutine
// so the tick goroutine never waits on the database.
type Recorder struct {
	store GameStore
	queue chan domain.GameResult

	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	recorded int
}

// NewRecorder creates a recorder and starts its writer
func NewRecorder(store GameStore) *Recorder {
	r := &Recorder{
		store: store,
		queue: make(chan domain.GameResult, 64),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Publish queues game_end results. Other events are ignored.
func (r *Recorder) Publish(ev domain.Event) {
	if ev.Type != domain.EventGameEnd {
		return
	}
	var result domain.GameResult
	switch d := ev.Data.(type) {
	case domain.GameResult:
		result = d
	case *domain.GameResult:
		if d == nil {
			return
		}
		result = *d
	default:
		log.Printf("Warning: game_end for %s carried %T, not recording", ev.Arena, ev.Data)
		return
	}
	if len(result.Players) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- result:
	default:
		log.Printf("Warning: game recorder queue full, dropping game %s of %s", result.UUID, result.Arena)
	}
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for result := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		err := r.store.RecordGame(ctx, &result)
		cancel()
		if err != nil {
			log.Printf("Warning: failed to record game %s of %s: %v", result.UUID, result.Arena, err)
			continue
		}
		r.mu.Lock()
		r.recorded++
		r.mu.Unlock()
	}
}

// Recorded returns how many games have been written so far
func (r *Recorder) Recorded() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorded
}

// Close stops accepting results and waits for queued ones to be written
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	r.wg.Wait()
}
