// Package events provides the in-process event bus used to stream weekly cycle progress.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	WeeklyCycleStarted   EventType = "WEEKLY_CYCLE_STARTED"
	InstrumentResolved   EventType = "INSTRUMENT_RESOLVED"
	InstrumentFailed     EventType = "INSTRUMENT_FAILED"
	SafetyLockTriggered  EventType = "SAFETY_LOCK_TRIGGERED"
	WeeklyCycleCompleted EventType = "WEEKLY_CYCLE_COMPLETED"
	WeeklyArchived       EventType = "WEEKLY_ARCHIVED"
	HumanLockChanged     EventType = "HUMAN_LOCK_CHANGED"
	ErrorOccurred        EventType = "ERROR_OCCURRED"
)

// AllEventTypes lists every event type the bus carries
var AllEventTypes = []EventType{
	WeeklyCycleStarted,
	InstrumentResolved,
	InstrumentFailed,
	SafetyLockTriggered,
	WeeklyCycleCompleted,
	WeeklyArchived,
	HumanLockChanged,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
	Module    string    `json:"module"`
}

// Handler receives emitted events. Handlers run synchronously on the emitting
// goroutine and must not block.
type Handler func(event *Event)

// Bus fans events out to subscribers
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[uint64]Handler
	nextID      uint64
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[EventType]map[uint64]Handler),
		log:         log.With().Str("service", "events").Logger(),
	}
}

// Subscribe registers handler for eventType and returns a function that removes it
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subscribers[eventType] == nil {
		b.subscribers[eventType] = make(map[uint64]Handler)
	}
	b.subscribers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[eventType], id)
	}
}

// Emit emits an event to every subscriber of its type. A nil bus is a no-op.
func (b *Bus) Emit(module string, data EventData) {
	if b == nil || data == nil {
		return
	}

	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type]))
	for _, h := range b.subscribers[event.Type] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(event.Type)).
		Str("module", module).
		Int("subscribers", len(handlers)).
		Msg("Event emitted")

	for _, h := range handlers {
		h(event)
	}
}

// SubscriberCount returns the number of handlers registered for eventType
func (b *Bus) SubscriberCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
