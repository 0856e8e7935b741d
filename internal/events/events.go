// Package events provides an in-process publish/subscribe bus connecting the
// scheduling engine, the ledger and the background jobs to live consumers
// such as the websocket stream.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of bus events
type EventType string

const (
	GenerationStarted   EventType = "generation.started"
	GenerationCompleted EventType = "generation.completed"
	GenerationFailed    EventType = "generation.failed"
	SwapValidated       EventType = "swap.validated"
	CompOffCredited     EventType = "compoff.credited"
	CompOffDebited      EventType = "compoff.debited"
	BalanceAdjusted     EventType = "compoff.balance_adjusted"
	RotationCycled      EventType = "rotation.cycled"
	BackupCompleted     EventType = "backup.completed"
	SystemStatusChanged EventType = "system.status_changed"
	ErrorOccurred       EventType = "system.error"
	JobStarted          EventType = "job.started"
	JobCompleted        EventType = "job.completed"
	JobFailed           EventType = "job.failed"
)

// Handler processes one event. Handlers run synchronously on the emitter's
// goroutine and must not block; slow consumers buffer on their own channels.
type Handler func(EventWithData)

// Bus is a synchronous in-process event hub. Subscription is by type or for
// the full stream; emission stamps the timestamp and fans out.
type Bus struct {
	log         zerolog.Logger
	nextID      uint64
	handlers    map[EventType][]subscription
	allHandlers []subscription
	mu          sync.RWMutex
}

type subscription struct {
	id uint64
	h  Handler
}

// NewBus creates an event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:      log.With().Str("component", "event_bus").Logger(),
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for one event type. The returned function
// removes the subscription; long-lived consumers may discard it.
func (b *Bus) Subscribe(t EventType, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[t] = removeSubscription(b.handlers[t], id)
	}
}

// SubscribeAll registers a handler for every event type. The returned
// function removes the subscription.
func (b *Bus) SubscribeAll(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.allHandlers = append(b.allHandlers, subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allHandlers = removeSubscription(b.allHandlers, id)
	}
}

// removeSubscription copies rather than shifting in place; an in-flight Emit
// may still be iterating the old backing array outside the lock.
func removeSubscription(subs []subscription, id uint64) []subscription {
	for i, s := range subs {
		if s.id != id {
			continue
		}
		out := make([]subscription, 0, len(subs)-1)
		out = append(out, subs[:i]...)
		return append(out, subs[i+1:]...)
	}
	return subs
}

// Emit publishes typed event data. The event type comes from the payload
// itself, so emitters cannot mislabel events.
func (b *Bus) Emit(module string, data EventData) {
	if data == nil {
		return
	}

	event := EventWithData{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	typed := b.handlers[event.Type]
	all := b.allHandlers
	b.mu.RUnlock()

	for _, s := range typed {
		b.dispatch(s.h, event)
	}
	for _, s := range all {
		b.dispatch(s.h, event)
	}

	b.log.Debug().
		Str("event", string(event.Type)).
		Str("module", module).
		Int("handlers", len(typed)+len(all)).
		Msg("Event emitted")
}

// dispatch isolates handler panics so one bad consumer cannot take down
// the emitter.
func (b *Bus) dispatch(h Handler, event EventWithData) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(event.Type)).
				Interface("panic", r).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}
