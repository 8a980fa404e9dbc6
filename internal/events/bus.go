// Package events fans arena events out to the websocket hub, the game
// recorder and the message broker.
package events

import (
	"sync"

	"github.com/spleefx/spleefx/internal/domain"
)

// Sink receives published events. Implementations must not block: they are
// called from the tick goroutine.
type Sink interface {
	Publish(ev domain.Event)
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(ev domain.Event)

func (f SinkFunc) Publish(ev domain.Event) { f(ev) }

// Bus delivers every event to each subscribed sink in subscription order
type Bus struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewBus creates a bus with the given sinks
func NewBus(sinks ...Sink) *Bus {
	b := &Bus{}
	for _, s := range sinks {
		b.Subscribe(s)
	}
	return b
}

// Subscribe adds a sink. Nil sinks are ignored.
func (b *Bus) Subscribe(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

// Publish sends ev to every sink
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Publish(ev)
	}
}
