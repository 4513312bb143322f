// Package sim wires the clock, scheduler, market and property ledger into one
// simulation context and enforces the tick order between them.
//
// ORDERING RULE: within one reported minute advance, the scheduler always
// ticks before the market and the property ledger, so an effect triggered
// this minute is visible to this minute's pricing and income.
package sim

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/davigarmo/MercaderErrante/server/internal/clock"
	"github.com/davigarmo/MercaderErrante/server/internal/config"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/player"
	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/market"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/metrics"
	"github.com/davigarmo/MercaderErrante/server/internal/property"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
)

// PriceTickInterval is how often (in sim-minutes) market prices recompute.
const PriceTickInterval = 60

var (
	ErrUnknownDestination = errors.New("unknown destination")
	ErrNoRoute            = errors.New("no route to destination")
	ErrAlreadyThere       = errors.New("already at destination")
)

// Notifier is the optional push collaborator (the websocket hub). A nil
// notifier is a documented no-op.
type Notifier interface {
	StateChanged(view StateView)
}

// StateView is the read model pushed to UI collaborators after each change.
type StateView struct {
	Time       clock.Info               `json:"time"`
	Player     player.Player            `json:"player"`
	Effects    []scheduler.ActiveEffect `json:"effects"`
	Locations  []market.Location        `json:"locations"`
	Properties []property.Property      `json:"properties"`
}

// Snapshot is the full serializable simulation state. Restoring it leaves no
// hidden state behind: time, accumulator, effects, queue, listings,
// reputation, properties and the merchant all round-trip.
type Snapshot struct {
	SavedAt   time.Time       `json:"saved_at"`
	Clock     clock.State     `json:"clock"`
	Scheduler scheduler.State `json:"scheduler"`
	Market    market.State    `json:"market"`
	Ledger    property.State  `json:"ledger"`
	Player    player.Player   `json:"player"`

	LastPriceMinute int64 `json:"last_price_minute"`
	LastDay         int64 `json:"last_day"`
}

// Simulation owns single instances of the four subsystems and the merchant.
type Simulation struct {
	clk      *clock.GameClock
	sched    *scheduler.Scheduler
	market   *market.Market
	ledger   *property.Ledger
	merchant *player.Player

	journal  *events.Journal
	logger   *logger.Logger
	notifier Notifier

	routes map[string]int64 // "from->to" -> base minutes

	lastPriceMinute int64
	lastDay         int64
}

// New builds a simulation from a world definition. The journal may be nil.
func New(world *config.World, rng *rand.Rand, log *logger.Logger, journal *events.Journal) (*Simulation, error) {
	if err := world.Validate(); err != nil {
		return nil, err
	}

	clk := clock.New(log)

	merchant := player.New("Mercader")
	merchant.Gold = world.StartGold
	merchant.Location = world.StartLocation

	sched := scheduler.New(clk, world.Events, rng, log, journal)
	mkt := market.New(clk, sched, locationsFrom(world), rng, log, journal)
	ledger := property.NewLedger(clk, sched, merchant, world.PropertyTypes, world.Upgrades, log, journal)
	for _, sp := range world.StartingProperties {
		if err := ledger.Add(property.Property{ID: sp.ID, TypeID: sp.Type, Location: sp.Location}); err != nil {
			return nil, fmt.Errorf("seed property %s: %w", sp.ID, err)
		}
	}

	s := &Simulation{
		clk:             clk,
		sched:           sched,
		market:          mkt,
		ledger:          ledger,
		merchant:        merchant,
		journal:         journal,
		logger:          log,
		routes:          routesFrom(world),
		lastPriceMinute: clk.TotalMinutes(),
		lastDay:         clk.DayIndex(),
	}
	sched.SetFireHook(s)

	// Opening prices, so the UI never sees bare base prices.
	mkt.PriceTick()
	return s, nil
}

// SetNotifier injects the optional state-push collaborator.
func (s *Simulation) SetNotifier(n Notifier) {
	s.notifier = n
}

// AdvanceTime feeds an elapsed real-time delta to the clock and, when at
// least one whole sim-minute passed, runs the dependent subsystems once in
// the fixed order. Multi-minute jumps are applied in a single pass using the
// final time value; they are NOT replayed minute by minute.
func (s *Simulation) AdvanceTime(deltaMillis int64) bool {
	if !s.clk.Advance(deltaMillis) {
		return false
	}
	now := s.clk.TotalMinutes()

	s.sched.Tick()

	if now-s.lastPriceMinute >= PriceTickInterval {
		s.market.PriceTick()
		s.lastPriceMinute = now
	}

	if day := s.clk.DayIndex(); day > s.lastDay {
		elapsed := int(day - s.lastDay)
		s.market.Restock()
		s.ledger.Tick(elapsed)
		s.lastDay = day
		metrics.Get().RecordIncomePayout()
	}

	s.notify()
	return true
}

// SetSpeed forwards to the clock. Unknown labels return false.
func (s *Simulation) SetSpeed(label string) bool {
	ok := s.clk.SetSpeed(label)
	if ok {
		s.notify()
	}
	return ok
}

// TogglePause forwards to the clock and reports the new pause state.
func (s *Simulation) TogglePause() bool {
	paused := s.clk.TogglePause()
	s.notify()
	return paused
}

// Buy purchases goods at the merchant's current location.
func (s *Simulation) Buy(locID string, id item.ID, qty int) (market.TradeResult, error) {
	res, err := s.market.Buy(s.merchant, locID, id, qty)
	if err == nil {
		s.merchant.GainReputation(0.02 * float64(qty))
		s.notify()
	}
	return res, err
}

// Sell sells goods from the merchant's inventory.
func (s *Simulation) Sell(locID string, id item.ID, qty int) (market.TradeResult, error) {
	res, err := s.market.Sell(s.merchant, locID, id, qty)
	if err == nil {
		s.merchant.GainReputation(0.02 * float64(qty))
		s.notify()
	}
	return res, err
}

// TriggerEvent fires a world event immediately. Unknown IDs are ignored.
func (s *Simulation) TriggerEvent(defID string, payload scheduler.Payload) {
	s.sched.Trigger(defID, payload)
	s.notify()
}

// ScheduleEvent queues a world event at an absolute sim-minute.
func (s *Simulation) ScheduleEvent(defID string, triggerAt int64, payload scheduler.Payload) {
	s.sched.Schedule(defID, triggerAt, payload)
}

// Travel schedules the merchant's arrival at a connected location. The travel
// time is the route's base minutes scaled by the active travel modifier.
func (s *Simulation) Travel(dest string) (arriveAt int64, err error) {
	if _, ok := s.market.Location(dest); !ok {
		return 0, fmt.Errorf("travel to %q: %w", dest, ErrUnknownDestination)
	}
	if dest == s.merchant.Location {
		return 0, fmt.Errorf("travel to %q: %w", dest, ErrAlreadyThere)
	}
	base, ok := s.routes[routeKey(s.merchant.Location, dest)]
	if !ok {
		return 0, fmt.Errorf("travel %s -> %s: %w", s.merchant.Location, dest, ErrNoRoute)
	}

	minutes := int64(math.Round(float64(base) * s.sched.Modifier(scheduler.CategoryTravel)))
	if minutes < 1 {
		minutes = 1
	}
	arriveAt = s.clk.TotalMinutes() + minutes
	s.sched.Schedule(config.ArrivalEventID, arriveAt, scheduler.Payload{
		Data: map[string]string{"destination": dest},
	})

	if s.journal != nil {
		s.journal.Append(events.SimEvent{
			ID:        events.NewEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeTravel,
			Actor:     "PLAYER",
			Target:    dest,
			Payload:   map[string]interface{}{"departs": s.merchant.Location, "arrives_at": arriveAt},
			GameDay:   s.clk.DayIndex(),
		})
	}
	return arriveAt, nil
}

// EventFired implements scheduler.FireHook. Arrival events move the merchant;
// everything else is effect-only and needs no handling here.
func (s *Simulation) EventFired(defID string, payload scheduler.Payload) {
	metrics.Get().RecordEventFired()
	if defID != config.ArrivalEventID {
		return
	}
	dest := payload.Data["destination"]
	if _, ok := s.market.Location(dest); !ok {
		if s.logger != nil {
			s.logger.Warn("Arrival at unknown destination ignored: " + dest)
		}
		return
	}
	s.merchant.Location = dest
	if s.logger != nil {
		s.logger.Event("ARRIVAL", "PLAYER", dest)
	}
}

// UpgradeProperty buys a modular upgrade for an owned property.
func (s *Simulation) UpgradeProperty(propID, upgID string) error {
	err := s.ledger.Upgrade(propID, upgID)
	if err == nil {
		s.notify()
	}
	return err
}

// RepairProperty restores an owned property to full condition.
func (s *Simulation) RepairProperty(propID string) error {
	err := s.ledger.Repair(propID)
	if err == nil {
		s.notify()
	}
	return err
}

// UpgradePropertyTier replaces a property's type with its next tier.
func (s *Simulation) UpgradePropertyTier(propID string) error {
	err := s.ledger.UpgradeTier(propID)
	if err == nil {
		s.notify()
	}
	return err
}

// Subsystem accessors for read-only collaborators.

func (s *Simulation) Clock() *clock.GameClock         { return s.clk }
func (s *Simulation) Scheduler() *scheduler.Scheduler { return s.sched }
func (s *Simulation) Market() *market.Market          { return s.market }
func (s *Simulation) Ledger() *property.Ledger        { return s.ledger }
func (s *Simulation) Player() *player.Player          { return s.merchant }

// View builds the UI read model.
func (s *Simulation) View() StateView {
	locs := s.market.Snapshot().Locations
	props := s.ledger.Snapshot().Properties
	return StateView{
		Time:       s.clk.TimeInfo(),
		Player:     *s.merchant,
		Effects:    s.sched.ActiveEffects(),
		Locations:  locs,
		Properties: props,
	}
}

// Snapshot exports the whole simulation for the save collaborator.
func (s *Simulation) Snapshot() Snapshot {
	return Snapshot{
		SavedAt:         time.Now(),
		Clock:           s.clk.Snapshot(),
		Scheduler:       s.sched.Snapshot(),
		Market:          s.market.Snapshot(),
		Ledger:          s.ledger.Snapshot(),
		Player:          *s.merchant,
		LastPriceMinute: s.lastPriceMinute,
		LastDay:         s.lastDay,
	}
}

// Restore loads a snapshot, replacing all simulation state.
func (s *Simulation) Restore(snap Snapshot) {
	s.clk.Restore(snap.Clock)
	s.sched.Restore(snap.Scheduler)
	s.market.Restore(snap.Market)
	s.ledger.Restore(snap.Ledger)
	*s.merchant = snap.Player
	s.lastPriceMinute = snap.LastPriceMinute
	s.lastDay = snap.LastDay
	s.notify()
}

func (s *Simulation) notify() {
	if s.notifier != nil {
		s.notifier.StateChanged(s.View())
	}
}

// locationsFrom converts world config into market locations, falling back to
// the item registry's base value when a listing omits its price.
func locationsFrom(world *config.World) []market.Location {
	out := make([]market.Location, 0, len(world.Locations))
	for _, ld := range world.Locations {
		loc := market.Location{
			ID:       ld.ID,
			Name:     ld.Name,
			Type:     market.LocationType(ld.Type),
			Listings: make(map[item.ID]*market.Listing, len(ld.Listings)),
		}
		for _, l := range ld.Listings {
			id := item.ID(l.Item)
			base := l.BasePrice
			if base == 0 {
				if def, ok := item.Get(id); ok {
					base = def.BaseValue
				}
			}
			loc.Listings[id] = &market.Listing{
				Item:      id,
				BasePrice: base,
				Price:     base,
				Stock:     l.Stock,
				Demand:    1.0,
			}
		}
		out = append(out, loc)
	}
	return out
}

func routesFrom(world *config.World) map[string]int64 {
	routes := make(map[string]int64, len(world.Routes)*2)
	for _, r := range world.Routes {
		routes[routeKey(r.From, r.To)] = r.Minutes
		routes[routeKey(r.To, r.From)] = r.Minutes
	}
	return routes
}

func routeKey(from, to string) string {
	return from + "->" + to
}
