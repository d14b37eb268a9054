// Package events provides the in-process observer bus used to fan out
// notifications to logging/reporting collaborators.
package events

import (
	"sync"
	"time"

	"github.com/vietddude/triage/internal/core/domain"
)

// Handler receives one event. Handlers must not block for long; delivery is
// synchronous within the publishing call.
type Handler func(domain.Event)

// Bus delivers events to registered handlers. Delivery is at-least-once per
// registered handler; ordering across different event types is not guaranteed.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler
	all      []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[domain.EventType][]Handler),
	}
}

// Subscribe registers a handler for one event type.
func (b *Bus) Subscribe(t domain.EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers the event to every handler registered for its type.
func (b *Bus) Publish(t domain.EventType, payload any) {
	ev := domain.Event{
		Type:      t,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	b.mu.RLock()
	typed := b.handlers[t]
	all := b.all
	b.mu.RUnlock()

	for _, h := range typed {
		h(ev)
	}
	for _, h := range all {
		h(ev)
	}
}
