// Package signs renders the join signs of each arena.
package signs

import (
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spleefx/spleefx/internal/config"
	"github.com/spleefx/spleefx/internal/domain"
)

// DefaultLines is used for stages the config does not list
var DefaultLines = []string{"[Spleef]", "{arena}", "{count}/{max}", "{stage}"}

// Publisher receives sign_update events
type Publisher interface {
	Publish(ev domain.Event)
}

// Board keeps the rendered lines of every arena sign
type Board struct {
	templates map[domain.Stage][]string
	events    Publisher
	now       func() time.Time

	mu       sync.RWMutex
	rendered map[string][]string
}

// NewBoard creates a board from the configured templates. events may be nil.
func NewBoard(cfg config.SignConfig, events Publisher) *Board {
	return &Board{
		templates: cfg.Lines,
		events:    events,
		now:       time.Now,
		rendered:  make(map[string][]string),
	}
}

// Render fills the template lines of a stage for status
func (b *Board) Render(status domain.ArenaStatus) []string {
	tmpl, ok := b.templates[status.Stage]
	if !ok || len(tmpl) == 0 {
		tmpl = DefaultLines
	}
	r := strings.NewReplacer(
		"{arena}", status.DisplayName,
		"{arena_key}", status.Key,
		"{count}", strconv.Itoa(status.Players),
		"{max}", strconv.Itoa(status.Maximum),
		"{stage}", stageLabel(status.Stage),
		"{mode}", status.Mode,
	)
	lines := make([]string, len(tmpl))
	for i, l := range tmpl {
		lines[i] = r.Replace(l)
	}
	return lines
}

// Refresh re-renders an arena's sign and publishes it when the text changed
func (b *Board) Refresh(status domain.ArenaStatus) {
	lines := b.Render(status)

	b.mu.Lock()
	prev, seen := b.rendered[status.Key]
	changed := !seen || !slices.Equal(prev, lines)
	b.rendered[status.Key] = lines
	b.mu.Unlock()

	if changed && b.events != nil {
		b.events.Publish(domain.Event{
			Type:      domain.EventSignUpdate,
			Arena:     status.Key,
			Timestamp: b.now(),
			Data:      domain.SignUpdateEvent{Lines: lines},
		})
	}
}

// Lines returns the last rendered lines of an arena's sign
func (b *Board) Lines(key string) ([]string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	lines, ok := b.rendered[key]
	if !ok {
		return nil, false
	}
	out := make([]string, len(lines))
	copy(out, lines)
	return out, true
}

func stageLabel(s domain.Stage) string {
	switch s {
	case domain.StageWaiting:
		return "Waiting"
	case domain.StageCountdown:
		return "Starting"
	case domain.StageActive:
		return "In game"
	case domain.StageRegenerating:
		return "Regenerating"
	case domain.StageNeedsSetup:
		return "Needs setup"
	case domain.StageDisabled:
		return "Disabled"
	}
	return string(s)
}
