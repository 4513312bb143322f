// Package market models per-location goods prices and stock.
// Prices always fluctuate around an immutable base price, so no sequence of
// ticks can inflate or crash an economy permanently.
package market

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/player"
	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
)

// Validation failures. Returned wrapped with context; callers match with
// errors.Is to build user-facing messages. None of these halt the simulation.
var (
	ErrUnknownLocation   = errors.New("unknown location")
	ErrUnknownItem       = errors.New("unknown item at location")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInsufficientGoods = errors.New("insufficient goods held")
	ErrBadQuantity       = errors.New("quantity must be positive")
)

// Trend values returned by Trend.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendStable  = "stable"
)

// Pricing constants.
const (
	fluctuationBound = 0.05 // symmetric random swing around base
	morningFactor    = 1.05 // markets open dearer
	eveningFactor    = 0.97 // sellers clear stock before closing
	sellMargin       = 0.90 // merchants always sell below the posted price
	historyDepth     = 12   // price points kept for trend detection

	demandPerUnit = 0.01 // demand ratio nudge per unit traded
	demandMax     = 2.0
	demandMin     = 0.5

	reputationPerUnit = 0.05 // location reputation gain per unit traded
)

// LocationType determines restock ceilings.
type LocationType string

const (
	LocationVillage LocationType = "village"
	LocationTown    LocationType = "town"
	LocationCity    LocationType = "city"
)

// restockCaps is the per-listing stock ceiling by location type.
var restockCaps = map[LocationType]int{
	LocationVillage: 20,
	LocationTown:    50,
	LocationCity:    120,
}

// Clock is the time surface the market needs. Satisfied by *clock.GameClock.
type Clock interface {
	TotalMinutes() int64
	DayIndex() int64
	HourOfDay() int
}

// ModifierSource supplies the aggregate event multiplier per category.
// Satisfied by *scheduler.Scheduler; a nil source means multiplier 1.0.
type ModifierSource interface {
	Modifier(category string) float64
}

// Listing is the price/stock record for one good at one location.
type Listing struct {
	Item      item.ID `json:"item"`
	Price     int     `json:"price"`
	Stock     int     `json:"stock"`
	BasePrice int     `json:"base_price"` // immutable baseline

	// Demand is the supply/demand ratio; 1.0 is balanced. Buying pushes it
	// up, selling pushes it down, and it biases the next fluctuation.
	Demand  float64 `json:"demand"`
	History []int   `json:"history"`
}

// Location is one trading place with its reputation and listings.
type Location struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Type       LocationType        `json:"type"`
	Reputation float64             `json:"reputation"` // 0-100
	Listings   map[item.ID]*Listing `json:"listings"`
}

// TradeResult reports the outcome of a completed buy or sell.
type TradeResult struct {
	Location  string  `json:"location"`
	Item      item.ID `json:"item"`
	Quantity  int     `json:"quantity"`
	UnitPrice int     `json:"unit_price"`
	Total     int     `json:"total"` // cost for buys, revenue for sells
}

// State is the serializable market snapshot.
type State struct {
	Locations []Location `json:"locations"`
}

// Market holds every location's listings and recomputes prices on tick.
type Market struct {
	clk     Clock
	mods    ModifierSource
	rng     *rand.Rand
	logger  *logger.Logger
	journal *events.Journal

	locations map[string]*Location
	order     []string // stable iteration order for deterministic ticks
}

// New creates a market over the given locations. The slice order is kept as
// the deterministic tick order.
func New(clk Clock, mods ModifierSource, locations []Location, rng *rand.Rand, log *logger.Logger, journal *events.Journal) *Market {
	m := &Market{
		clk:       clk,
		mods:      mods,
		rng:       rng,
		logger:    log,
		journal:   journal,
		locations: make(map[string]*Location, len(locations)),
	}
	for i := range locations {
		loc := locations[i]
		if loc.Listings == nil {
			loc.Listings = make(map[item.ID]*Listing)
		}
		for _, l := range loc.Listings {
			if l.Demand == 0 {
				l.Demand = 1.0
			}
			if l.Price == 0 {
				l.Price = l.BasePrice
			}
		}
		m.locations[loc.ID] = &loc
		m.order = append(m.order, loc.ID)
	}
	return m
}

// Location returns a location by ID.
func (m *Market) Location(id string) (*Location, bool) {
	loc, ok := m.locations[id]
	return loc, ok
}

// Locations returns all locations in tick order.
func (m *Market) Locations() []*Location {
	out := make([]*Location, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.locations[id])
	}
	return out
}

// PriceTick recomputes every listing's price: base price, bounded random
// fluctuation biased by the demand ratio, time-of-day factor, the scheduler's
// aggregate price modifier, and a small reputation discount. Rounded to the
// nearest integer and clamped at zero.
func (m *Market) PriceTick() {
	hour := m.clk.HourOfDay()
	eventMod := 1.0
	if m.mods != nil {
		eventMod = m.mods.Modifier(scheduler.CategoryPrice)
	}

	for _, locID := range m.order {
		loc := m.locations[locID]
		for _, l := range loc.Listings {
			fluct := (m.rng.Float64()*2 - 1) * fluctuationBound
			fluct += (l.Demand - 1.0) * fluctuationBound // scarcity raises, glut lowers

			price := float64(l.BasePrice) * (1 + fluct)
			price *= timeOfDayFactor(hour)
			price *= eventMod
			price *= reputationFactor(loc.Reputation)

			l.Price = int(math.Round(price))
			if l.Price < 0 {
				l.Price = 0
			}
			l.History = append(l.History, l.Price)
			if len(l.History) > historyDepth {
				l.History = l.History[len(l.History)-historyDepth:]
			}
		}
	}
}

// Buy purchases goods for the merchant. All validation happens before any
// mutation; a request either fully succeeds or fully fails.
func (m *Market) Buy(p *player.Player, locID string, id item.ID, qty int) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, fmt.Errorf("buy %d %s: %w", qty, id, ErrBadQuantity)
	}
	loc, ok := m.locations[locID]
	if !ok {
		return TradeResult{}, fmt.Errorf("buy at %q: %w", locID, ErrUnknownLocation)
	}
	l, ok := loc.Listings[id]
	if !ok {
		return TradeResult{}, fmt.Errorf("buy %s at %s: %w", id, locID, ErrUnknownItem)
	}
	if l.Stock < qty {
		return TradeResult{}, fmt.Errorf("buy %d %s at %s (stock %d): %w", qty, id, locID, l.Stock, ErrInsufficientStock)
	}
	cost := l.Price * qty
	if !p.CanAfford(cost) {
		return TradeResult{}, fmt.Errorf("buy %d %s at %s for %d: %w", qty, id, locID, cost, ErrInsufficientFunds)
	}

	// Validation complete; mutate.
	p.Spend(cost)
	p.AddItem(id, qty)
	l.Stock -= qty
	if l.Stock < 0 {
		l.Stock = 0
	}
	m.recordTrade(loc, l, qty, true)

	res := TradeResult{Location: locID, Item: id, Quantity: qty, UnitPrice: l.Price, Total: cost}
	m.journalTrade("BUY", res)
	return res, nil
}

// Sell sells goods from the merchant's inventory. The sell price sits below
// the posted buy price, so buy-then-sell can never mint gold.
func (m *Market) Sell(p *player.Player, locID string, id item.ID, qty int) (TradeResult, error) {
	if qty <= 0 {
		return TradeResult{}, fmt.Errorf("sell %d %s: %w", qty, id, ErrBadQuantity)
	}
	loc, ok := m.locations[locID]
	if !ok {
		return TradeResult{}, fmt.Errorf("sell at %q: %w", locID, ErrUnknownLocation)
	}
	l, ok := loc.Listings[id]
	if !ok {
		return TradeResult{}, fmt.Errorf("sell %s at %s: %w", id, locID, ErrUnknownItem)
	}
	if p.Holding(id) < qty {
		return TradeResult{}, fmt.Errorf("sell %d %s (held %d): %w", qty, id, p.Holding(id), ErrInsufficientGoods)
	}

	unit := int(math.Floor(float64(l.Price) * sellMargin))
	if unit < 0 {
		unit = 0
	}
	revenue := unit * qty

	p.RemoveItem(id, qty)
	p.Earn(revenue)
	l.Stock += qty
	m.recordTrade(loc, l, qty, false)

	res := TradeResult{Location: locID, Item: id, Quantity: qty, UnitPrice: unit, Total: revenue}
	m.journalTrade("SELL", res)
	return res, nil
}

// Restock raises stock toward the location-type ceiling. Called on the daily
// boundary. Listings at zero stock stay listed and refill here.
func (m *Market) Restock() {
	for _, locID := range m.order {
		loc := m.locations[locID]
		ceiling := restockCaps[loc.Type]
		if ceiling == 0 {
			ceiling = restockCaps[LocationVillage]
		}
		for _, l := range loc.Listings {
			if l.Stock >= ceiling {
				continue
			}
			refill := ceiling / 4
			if refill < 1 {
				refill = 1
			}
			l.Stock += refill
			if l.Stock > ceiling {
				l.Stock = ceiling
			}
		}
	}
	if m.journal != nil {
		m.journal.Append(events.SimEvent{
			ID:        events.NewEventID(),
			Timestamp: time.Now(),
			Type:      events.EventTypeRestock,
			Actor:     "WORLD",
			GameDay:   m.clk.DayIndex(),
		})
	}
}

// Trend classifies the short-term price direction of one listing from its
// rolling history alone. The trend never feeds back into pricing.
func (m *Market) Trend(locID string, id item.ID) (string, error) {
	loc, ok := m.locations[locID]
	if !ok {
		return "", fmt.Errorf("trend at %q: %w", locID, ErrUnknownLocation)
	}
	l, ok := loc.Listings[id]
	if !ok {
		return "", fmt.Errorf("trend for %s at %s: %w", id, locID, ErrUnknownItem)
	}
	if len(l.History) < 6 {
		return TrendStable, nil
	}

	recent := average(l.History[len(l.History)-3:])
	older := average(l.History[len(l.History)-6 : len(l.History)-3])
	if older == 0 {
		return TrendStable, nil
	}
	change := (recent - older) / older
	switch {
	case change > 0.02:
		return TrendRising, nil
	case change < -0.02:
		return TrendFalling, nil
	default:
		return TrendStable, nil
	}
}

// Snapshot exports every location for the save collaborator.
func (m *Market) Snapshot() State {
	st := State{Locations: make([]Location, 0, len(m.order))}
	for _, id := range m.order {
		loc := m.locations[id]
		cp := *loc
		cp.Listings = make(map[item.ID]*Listing, len(loc.Listings))
		for k, l := range loc.Listings {
			lc := *l
			lc.History = append([]int(nil), l.History...)
			cp.Listings[k] = &lc
		}
		st.Locations = append(st.Locations, cp)
	}
	return st
}

// Restore loads a snapshot, replacing all market state.
func (m *Market) Restore(st State) {
	m.locations = make(map[string]*Location, len(st.Locations))
	m.order = m.order[:0]
	for i := range st.Locations {
		loc := st.Locations[i]
		m.locations[loc.ID] = &loc
		m.order = append(m.order, loc.ID)
	}
}

func (m *Market) recordTrade(loc *Location, l *Listing, qty int, isBuy bool) {
	delta := demandPerUnit * float64(qty)
	if isBuy {
		l.Demand += delta
	} else {
		l.Demand -= delta
	}
	if l.Demand > demandMax {
		l.Demand = demandMax
	}
	if l.Demand < demandMin {
		l.Demand = demandMin
	}

	loc.Reputation += reputationPerUnit * float64(qty)
	if loc.Reputation > 100 {
		loc.Reputation = 100
	}
}

func (m *Market) journalTrade(direction string, res TradeResult) {
	if m.journal == nil {
		return
	}
	m.journal.Append(events.SimEvent{
		ID:        events.NewEventID(),
		Timestamp: time.Now(),
		Type:      events.EventTypeTrade,
		Actor:     "PLAYER",
		Target:    res.Location,
		Payload:   map[string]interface{}{"direction": direction, "trade": res},
		GameDay:   m.clk.DayIndex(),
	})
	if m.logger != nil {
		m.logger.Event("TRADE", "PLAYER", fmt.Sprintf("%s %d %s @%d in %s", direction, res.Quantity, res.Item, res.UnitPrice, res.Location))
	}
}

func timeOfDayFactor(hour int) float64 {
	switch {
	case hour >= 6 && hour < 12:
		return morningFactor
	case hour >= 18 && hour < 22:
		return eveningFactor
	default:
		return 1.0
	}
}

// reputationFactor gives well-known merchants a small discount, up to 10%.
func reputationFactor(rep float64) float64 {
	if rep > 100 {
		rep = 100
	}
	if rep < 0 {
		rep = 0
	}
	return 1 - rep*0.001
}

func average(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}
