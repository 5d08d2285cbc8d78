// Package event is a small in-process pub/sub bus for application events.
package event

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type identifies a category of event.
type Type string

// Known event types.
const (
	RunStarted           Type = "run.started"
	RunCompleted         Type = "run.completed"
	RunCanceled          Type = "run.canceled"
	DisambiguationNeeded Type = "disambiguation.needed"
	PlaylistCreated      Type = "playlist.created"
)

// Event records something that happened in the system.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Handler processes one event.
type Handler func(Event)

// Bus fans events out to subscribers from a single draining goroutine.
// Publishing never blocks; if the buffer is full the event is dropped
// with a warning.
type Bus struct {
	ch     chan Event
	mu     sync.RWMutex
	subs   map[Type][]Handler
	logger *slog.Logger
}

// NewBus creates a bus with the given buffer size.
func NewBus(logger *slog.Logger, bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{
		ch:     make(chan Event, bufSize),
		subs:   make(map[Type][]Handler),
		logger: logger,
	}
}

// Subscribe registers a handler for the given event type.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[t] = append(b.subs[t], h)
}

// Publish enqueues an event stamped with the current time.
func (b *Bus) Publish(t Type, data map[string]any) {
	e := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	select {
	case b.ch <- e:
	default:
		b.logger.Warn("event bus full, dropping event", "type", string(t))
	}
}

// Run drains the channel and dispatches events until ctx is canceled,
// then flushes whatever is still buffered. Call it in a goroutine.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case e := <-b.ch:
			b.dispatch(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-b.ch:
					b.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Type]
	b.mu.RUnlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panicked", "type", string(e.Type), "panic", r)
				}
			}()
			h(e)
		}()
	}
}
