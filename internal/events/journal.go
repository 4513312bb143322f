// Package events provides the append-only journal of the simulation.
// Everything that changes the world economy leaves a trace here, so that
// balance problems can be audited after the fact.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeTimeTick       EventType = "TIME_TICK"
	EventTypeEventTriggered EventType = "WORLD_EVENT_TRIGGERED"
	EventTypeEventExpired   EventType = "WORLD_EVENT_EXPIRED"
	EventTypeTrade          EventType = "TRADE"
	EventTypeRestock        EventType = "RESTOCK"
	EventTypeIncomePaid     EventType = "INCOME_PAID"
	EventTypeRepair         EventType = "REPAIR"
	EventTypeUpgrade        EventType = "UPGRADE"
	EventTypeTierUpgrade    EventType = "TIER_UPGRADE"
	EventTypeTravel         EventType = "TRAVEL"
)

// SimEvent represents an immutable record of something that happened.
type SimEvent struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Actor     string      `json:"actor"`  // Who caused it ("PLAYER" or "WORLD")
	Target    string      `json:"target"` // What was affected (optional)
	Payload   interface{} `json:"payload"`
	GameDay   int64       `json:"game_day"` // Absolute day index from the clock
}

// Persister defines how an event is durably stored.
type Persister interface {
	Append(event SimEvent) error
}

// Journal is the in-memory append-only log of simulation events.
type Journal struct {
	mu        sync.RWMutex
	events    []SimEvent
	persister Persister
}

// NewJournal creates a new journal with an optional persister.
func NewJournal(persister Persister) *Journal {
	return &Journal{
		events:    make([]SimEvent, 0),
		persister: persister,
	}
}

// Append adds a new event to the journal. Events are immutable once appended.
func (j *Journal) Append(event SimEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event)

	if j.persister != nil {
		// Write through to persistent storage off the tick path.
		go func(e SimEvent) {
			_ = j.persister.Append(e)
		}(event)
	}
}

// Replay returns the full history of events.
func (j *Journal) Replay() []SimEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.events
}

// GetByType returns all events of a given type.
func (j *Journal) GetByType(t EventType) []SimEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []SimEvent
	for _, e := range j.events {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

// GetByDay returns all events that occurred on a specific absolute game day.
func (j *Journal) GetByDay(day int64) []SimEvent {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []SimEvent
	for _, e := range j.events {
		if e.GameDay == day {
			result = append(result, e)
		}
	}
	return result
}

// NewEventID creates a unique event identifier.
func NewEventID() string {
	return uuid.NewString()
}
