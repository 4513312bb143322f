// Package scheduler fires world events and tracks their time-boxed effects.
// It is the only producer of gameplay modifiers: the market and the property
// ledger read aggregate multipliers from here every tick.
package scheduler

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
)

// Modifier categories. Effect deltas are folded per category into one
// aggregate multiplier: Π(1+delta) over the active effects.
const (
	CategoryPrice  = "price"
	CategoryTravel = "travel"
	CategoryIncome = "income"
)

// RandomRollChance is the per-tick probability that some random event fires.
const RandomRollChance = 0.002

// Clock is the time source. Satisfied by *clock.GameClock.
type Clock interface {
	TotalMinutes() int64
	DayIndex() int64
}

// FireHook is an optional collaborator invoked whenever an event fires,
// scheduled or random. A nil hook is a documented no-op.
type FireHook interface {
	EventFired(defID string, payload Payload)
}

// EventDef is the immutable definition of a world event type.
type EventDef struct {
	ID          string             `yaml:"id" json:"id"`
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description"`
	Effects     map[string]float64 `yaml:"effects" json:"effects"` // category -> delta
	Duration    int64              `yaml:"duration" json:"duration"`
	Probability float64            `yaml:"probability" json:"probability"` // weight for random pick
}

// Payload customizes a single firing of an event.
type Payload struct {
	Effects map[string]float64 `json:"effects,omitempty"` // overrides merged over the def's effect set
	Data    map[string]string  `json:"data,omitempty"`    // opaque, forwarded to the fire hook
}

// ActiveEffect is one in-force instance of a triggered event.
type ActiveEffect struct {
	DefID    string             `json:"def_id"`
	Name     string             `json:"name"`
	Start    int64              `json:"start"`    // absolute minutes
	Duration int64              `json:"duration"` // minutes
	Effects  map[string]float64 `json:"effects"`
}

// Expired reports whether the effect window has elapsed at the given time.
func (e ActiveEffect) Expired(now int64) bool {
	return now >= e.Start+e.Duration
}

// ScheduledEvent is a one-shot event queued for a future absolute time.
type ScheduledEvent struct {
	DefID     string  `json:"def_id"`
	TriggerAt int64   `json:"trigger_at"` // absolute minutes
	Payload   Payload `json:"payload"`
	Triggered bool    `json:"triggered"`
}

// State is the serializable scheduler snapshot.
type State struct {
	Active    []ActiveEffect   `json:"active"`
	Scheduled []ScheduledEvent `json:"scheduled"`
}

// Scheduler holds the event definitions, the active effects and the queue of
// one-shot scheduled events.
type Scheduler struct {
	clk     Clock
	rng     *rand.Rand
	logger  *logger.Logger
	journal *events.Journal
	hook    FireHook

	defs  map[string]EventDef
	order []string // sorted def IDs, for a deterministic random pick

	active    []ActiveEffect
	scheduled []ScheduledEvent
}

// New creates a scheduler over the given definitions. Journal and hook may be
// nil; the scheduler then skips those notifications.
func New(clk Clock, defs []EventDef, rng *rand.Rand, log *logger.Logger, journal *events.Journal) *Scheduler {
	s := &Scheduler{
		clk:     clk,
		rng:     rng,
		logger:  log,
		journal: journal,
		defs:    make(map[string]EventDef, len(defs)),
	}
	for _, d := range defs {
		s.defs[d.ID] = d
		s.order = append(s.order, d.ID)
	}
	sort.Strings(s.order)
	return s
}

// SetFireHook injects the optional collaborator notified on every firing.
func (s *Scheduler) SetFireHook(hook FireHook) {
	s.hook = hook
}

// Schedule queues a one-shot event for a future absolute minute. Duplicate
// schedules are allowed and all fire. Unknown IDs are accepted here and
// ignored at fire time; a bad schedule must never halt the clock.
func (s *Scheduler) Schedule(defID string, triggerAt int64, payload Payload) {
	s.scheduled = append(s.scheduled, ScheduledEvent{
		DefID:     defID,
		TriggerAt: triggerAt,
		Payload:   payload,
	})
}

// Trigger fires an event immediately. Unknown IDs are logged and ignored.
// Returns the created effect, or nil for unknown IDs.
func (s *Scheduler) Trigger(defID string, payload Payload) *ActiveEffect {
	def, ok := s.defs[defID]
	if !ok {
		if s.logger != nil {
			s.logger.Warn("Ignoring trigger for unknown event type: " + defID)
		}
		return nil
	}

	effects := make(map[string]float64, len(def.Effects))
	for k, v := range def.Effects {
		effects[k] = v
	}
	for k, v := range payload.Effects {
		effects[k] = v
	}

	eff := ActiveEffect{
		DefID:    def.ID,
		Name:     def.Name,
		Start:    s.clk.TotalMinutes(),
		Duration: def.Duration,
		Effects:  effects,
	}
	s.active = append(s.active, eff)

	if s.journal != nil {
		s.journal.Append(events.SimEvent{
			ID:        events.NewEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeEventTriggered,
			Actor:     "WORLD",
			Target:    def.ID,
			Payload:   eff,
			GameDay:   s.clk.DayIndex(),
		})
	}
	if s.logger != nil {
		s.logger.Event("WORLD_EVENT", "WORLD", fmt.Sprintf("%s fired for %d min", def.ID, def.Duration))
	}
	if s.hook != nil {
		s.hook.EventFired(def.ID, payload)
	}
	return &s.active[len(s.active)-1]
}

// Tick runs one scheduler pass in fixed order: fire due scheduled events,
// expire elapsed effects, then roll for a random event.
func (s *Scheduler) Tick() {
	now := s.clk.TotalMinutes()

	// 1. Fire due one-shots. Marked triggered so they never fire twice.
	for i := range s.scheduled {
		ev := &s.scheduled[i]
		if !ev.Triggered && now >= ev.TriggerAt {
			ev.Triggered = true
			s.Trigger(ev.DefID, ev.Payload)
		}
	}
	s.compactScheduled()

	// 2. Expire elapsed effects.
	kept := s.active[:0]
	for _, eff := range s.active {
		if eff.Expired(now) {
			s.expire(eff)
			continue
		}
		kept = append(kept, eff)
	}
	s.active = kept

	// 3. One random roll; on success pick a definition weighted by its
	// probability field.
	if len(s.order) > 0 && s.rng.Float64() < RandomRollChance {
		s.Trigger(s.pickRandom(), Payload{})
	}
}

// Modifier recomputes the aggregate multiplier for a category by folding over
// the CURRENT active list. Recomputing from scratch (instead of keeping a
// running product) means apply/expire cycles cannot accumulate float drift.
func (s *Scheduler) Modifier(category string) float64 {
	agg := 1.0
	for _, eff := range s.active {
		if delta, ok := eff.Effects[category]; ok {
			agg *= 1 + delta
		}
	}
	return agg
}

// ActiveEffects returns a copy of the in-force effects for UI collaborators.
func (s *Scheduler) ActiveEffects() []ActiveEffect {
	out := make([]ActiveEffect, len(s.active))
	copy(out, s.active)
	return out
}

// PendingEvents returns a copy of the not-yet-fired scheduled events.
func (s *Scheduler) PendingEvents() []ScheduledEvent {
	out := make([]ScheduledEvent, len(s.scheduled))
	copy(out, s.scheduled)
	return out
}

// Definition looks up an event definition.
func (s *Scheduler) Definition(defID string) (EventDef, bool) {
	def, ok := s.defs[defID]
	return def, ok
}

// Snapshot exports active and pending events for the save collaborator.
func (s *Scheduler) Snapshot() State {
	return State{Active: s.ActiveEffects(), Scheduled: s.PendingEvents()}
}

// Restore loads a snapshot, replacing all runtime event state.
func (s *Scheduler) Restore(st State) {
	s.active = append([]ActiveEffect(nil), st.Active...)
	s.scheduled = append([]ScheduledEvent(nil), st.Scheduled...)
}

func (s *Scheduler) expire(eff ActiveEffect) {
	if s.journal != nil {
		s.journal.Append(events.SimEvent{
			ID:        events.NewEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeEventExpired,
			Actor:     "WORLD",
			Target:    eff.DefID,
			Payload:   eff,
			GameDay:   s.clk.DayIndex(),
		})
	}
	if s.logger != nil {
		s.logger.Event("WORLD_EVENT_OVER", "WORLD", eff.DefID)
	}
}

func (s *Scheduler) compactScheduled() {
	kept := s.scheduled[:0]
	for _, ev := range s.scheduled {
		if !ev.Triggered {
			kept = append(kept, ev)
		}
	}
	s.scheduled = kept
}

// pickRandom chooses a definition weighted by Probability. Definitions with
// zero weight (e.g. travel arrivals) are never picked at random.
func (s *Scheduler) pickRandom() string {
	total := 0.0
	for _, id := range s.order {
		total += s.defs[id].Probability
	}
	if total <= 0 {
		return ""
	}
	roll := s.rng.Float64() * total
	for _, id := range s.order {
		roll -= s.defs[id].Probability
		if roll < 0 {
			return id
		}
	}
	return s.order[len(s.order)-1]
}
