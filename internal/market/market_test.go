package market

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/player"
)

type fakeClock struct {
	minutes int64
	hour    int
}

func (f *fakeClock) TotalMinutes() int64 { return f.minutes }
func (f *fakeClock) DayIndex() int64     { return f.minutes / (24 * 60) }
func (f *fakeClock) HourOfDay() int      { return f.hour }

type fixedMods struct {
	value float64
}

func (m *fixedMods) Modifier(string) float64 { return m.value }

func newTestMarket(clk *fakeClock) *Market {
	locs := []Location{
		{
			ID: "aldea", Name: "Aldea", Type: LocationVillage,
			Listings: map[item.ID]*Listing{
				item.ItemBread: {Item: item.ItemBread, BasePrice: 10, Price: 10, Stock: 3, Demand: 1.0},
				item.ItemWine:  {Item: item.ItemWine, BasePrice: 22, Price: 22, Stock: 8, Demand: 1.0},
			},
		},
	}
	return New(clk, &fixedMods{value: 1.0}, locs, rand.New(rand.NewSource(7)), nil, nil)
}

func TestBuyIsAllOrNothing(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")

	_, err := m.Buy(p, "aldea", item.ItemBread, 5) // only 3 in stock
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("Expected ErrInsufficientStock, got %v", err)
	}

	loc, _ := m.Location("aldea")
	if loc.Listings[item.ItemBread].Stock != 3 {
		t.Errorf("Expected stock untouched after rejected buy, got %d", loc.Listings[item.ItemBread].Stock)
	}
	if p.Gold != 500 {
		t.Errorf("Expected gold untouched after rejected buy, got %d", p.Gold)
	}
	if p.Holding(item.ItemBread) != 0 {
		t.Error("Expected no partial delivery on a rejected buy")
	}
}

func TestBuyRejectsUnaffordable(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")
	p.Gold = 10 // one loaf's worth

	_, err := m.Buy(p, "aldea", item.ItemWine, 8)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}
	if p.Gold != 10 {
		t.Errorf("Expected gold untouched, got %d", p.Gold)
	}
}

func TestBuyValidatesInputs(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")

	if _, err := m.Buy(p, "aldea", item.ItemBread, 0); !errors.Is(err, ErrBadQuantity) {
		t.Errorf("Expected ErrBadQuantity for zero quantity, got %v", err)
	}
	if _, err := m.Buy(p, "atlantis", item.ItemBread, 1); !errors.Is(err, ErrUnknownLocation) {
		t.Errorf("Expected ErrUnknownLocation, got %v", err)
	}
	if _, err := m.Buy(p, "aldea", item.ItemSilk, 1); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem for unlisted good, got %v", err)
	}
}

func TestSellRequiresGoodsHeld(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")

	_, err := m.Sell(p, "aldea", item.ItemWine, 2)
	if !errors.Is(err, ErrInsufficientGoods) {
		t.Fatalf("Expected ErrInsufficientGoods, got %v", err)
	}
}

func TestBuyThenSellNeverMintsGold(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")
	start := p.Gold

	if _, err := m.Buy(p, "aldea", item.ItemWine, 4); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if _, err := m.Sell(p, "aldea", item.ItemWine, 4); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}

	// The sell margin keeps the round trip strictly below break-even.
	if p.Gold >= start {
		t.Errorf("Expected a net loss on buy-then-sell, started with %d and ended with %d", start, p.Gold)
	}
}

func TestSellPriceSitsBelowPostedPrice(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")
	p.AddItem(item.ItemWine, 1)

	loc, _ := m.Location("aldea")
	posted := loc.Listings[item.ItemWine].Price

	res, err := m.Sell(p, "aldea", item.ItemWine, 1)
	if err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if res.UnitPrice >= posted {
		t.Errorf("Expected sell price below the posted %d, got %d", posted, res.UnitPrice)
	}
}

func TestPriceTickKeepsPricesNonNegative(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	m.mods = &fixedMods{value: 0.0} // catastrophic crash

	for i := 0; i < 10; i++ {
		m.PriceTick()
	}
	loc, _ := m.Location("aldea")
	for id, l := range loc.Listings {
		if l.Price < 0 {
			t.Errorf("Expected non-negative price for %s, got %d", id, l.Price)
		}
		if l.BasePrice != 10 && l.BasePrice != 22 {
			t.Errorf("Expected base price immutable, got %d for %s", l.BasePrice, id)
		}
	}
}

func TestPriceTickStaysNearBaseWithoutEvents(t *testing.T) {
	clk := &fakeClock{hour: 14} // afternoon, no time-of-day factor
	m := newTestMarket(clk)

	for i := 0; i < 50; i++ {
		m.PriceTick()
	}
	loc, _ := m.Location("aldea")
	l := loc.Listings[item.ItemWine]
	// Balanced demand, no events: the swing is bounded around base.
	lo := int(float64(l.BasePrice) * 0.90)
	hi := int(float64(l.BasePrice)*1.10) + 1
	if l.Price < lo || l.Price > hi {
		t.Errorf("Expected price within [%d,%d] around base %d, got %d", lo, hi, l.BasePrice, l.Price)
	}
}

func TestEventModifierMovesPrices(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	m.mods = &fixedMods{value: 0.7} // market crash in force

	m.PriceTick()
	loc, _ := m.Location("aldea")
	l := loc.Listings[item.ItemWine]
	if l.Price >= l.BasePrice {
		t.Errorf("Expected crashed price below base %d, got %d", l.BasePrice, l.Price)
	}
}

func TestRestockRespectsLocationCeiling(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	loc, _ := m.Location("aldea")
	loc.Listings[item.ItemBread].Stock = 0

	for i := 0; i < 30; i++ {
		m.Restock()
	}
	if got := loc.Listings[item.ItemBread].Stock; got != restockCaps[LocationVillage] {
		t.Errorf("Expected stock to converge on the village ceiling %d, got %d", restockCaps[LocationVillage], got)
	}
}

func TestRestockRefillsZeroStockListings(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	loc, _ := m.Location("aldea")
	loc.Listings[item.ItemBread].Stock = 0

	m.Restock()
	if loc.Listings[item.ItemBread].Stock <= 0 {
		t.Error("Expected a sold-out listing to refill, not vanish")
	}
}

func TestTrendNeedsHistory(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)

	trend, err := m.Trend("aldea", item.ItemWine)
	if err != nil {
		t.Fatalf("Trend failed: %v", err)
	}
	if trend != TrendStable {
		t.Errorf("Expected stable with no history, got %s", trend)
	}
}

func TestTrendDetectsDirection(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	loc, _ := m.Location("aldea")
	l := loc.Listings[item.ItemWine]

	l.History = []int{20, 20, 20, 25, 25, 25}
	if trend, _ := m.Trend("aldea", item.ItemWine); trend != TrendRising {
		t.Errorf("Expected rising, got %s", trend)
	}

	l.History = []int{25, 25, 25, 20, 20, 20}
	if trend, _ := m.Trend("aldea", item.ItemWine); trend != TrendFalling {
		t.Errorf("Expected falling, got %s", trend)
	}

	l.History = []int{22, 22, 22, 22, 22, 22}
	if trend, _ := m.Trend("aldea", item.ItemWine); trend != TrendStable {
		t.Errorf("Expected stable, got %s", trend)
	}
}

func TestDemandShiftsWithTrades(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	p := player.New("Test")
	p.Gold = 10000

	loc, _ := m.Location("aldea")
	l := loc.Listings[item.ItemWine]
	before := l.Demand

	if _, err := m.Buy(p, "aldea", item.ItemWine, 5); err != nil {
		t.Fatalf("Buy failed: %v", err)
	}
	if l.Demand <= before {
		t.Errorf("Expected buying to raise demand, %0.3f -> %0.3f", before, l.Demand)
	}

	after := l.Demand
	if _, err := m.Sell(p, "aldea", item.ItemWine, 5); err != nil {
		t.Fatalf("Sell failed: %v", err)
	}
	if l.Demand >= after {
		t.Errorf("Expected selling to lower demand, %0.3f -> %0.3f", after, l.Demand)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	clk := &fakeClock{hour: 14}
	m := newTestMarket(clk)
	m.PriceTick()

	snap := m.Snapshot()

	restored := newTestMarket(clk)
	restored.Restore(snap)
	orig, _ := m.Location("aldea")
	got, ok := restored.Location("aldea")
	if !ok {
		t.Fatal("Expected restored market to keep the location")
	}
	for id, l := range orig.Listings {
		rl, ok := got.Listings[id]
		if !ok {
			t.Fatalf("Expected restored listing for %s", id)
		}
		if rl.Price != l.Price || rl.Stock != l.Stock || rl.Demand != l.Demand {
			t.Errorf("Expected listing %s to round-trip, got %+v want %+v", id, rl, l)
		}
	}
}
