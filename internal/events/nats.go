package events

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/spleefx/spleefx/internal/domain"
)

// DefaultSubjectPrefix is used when the config leaves the prefix empty
const DefaultSubjectPrefix = "spleefx"

// NATSPublisher publishes every event as JSON on <prefix>.<arena>.<event>
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to the broker at url
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("spleefx"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("Warning: NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("NATS reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the subject an event is published on
func (p *NATSPublisher) Subject(ev domain.Event) string {
	return Subject(p.prefix, ev)
}

// Subject builds <prefix>.<arena>.<event>. Characters NATS treats as
// separators or wildcards are replaced in the arena key.
func Subject(prefix string, ev domain.Event) string {
	arena := ev.Arena
	if arena == "" {
		arena = "_"
	}
	arena = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(arena)
	return prefix + "." + arena + "." + ev.Type
}

// Publish sends ev without waiting for the broker. The nats client buffers
// while reconnecting, so failures here are only logged.
func (p *NATSPublisher) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Warning: marshaling %s event: %v", ev.Type, err)
		return
	}
	if err := p.conn.Publish(p.Subject(ev), data); err != nil {
		log.Printf("Warning: publishing %s event for %s: %v", ev.Type, ev.Arena, err)
	}
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
