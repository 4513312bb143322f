package scheduler

import (
	"math"
	"math/rand"
	"testing"
)

type fakeClock struct {
	minutes int64
}

func (f *fakeClock) TotalMinutes() int64 { return f.minutes }
func (f *fakeClock) DayIndex() int64     { return f.minutes / (24 * 60) }

func testDefs() []EventDef {
	// Probability 0 keeps the random roll inert in deterministic tests.
	return []EventDef{
		{ID: "boom", Name: "Boom", Effects: map[string]float64{CategoryPrice: 0.2}, Duration: 120},
		{ID: "crash", Name: "Crash", Effects: map[string]float64{CategoryPrice: -0.3}, Duration: 60},
		{ID: "raid", Name: "Raid", Effects: map[string]float64{CategoryTravel: 0.5}, Duration: 90},
	}
}

func newTestScheduler(clk *fakeClock) *Scheduler {
	return New(clk, testDefs(), rand.New(rand.NewSource(1)), nil, nil)
}

func TestModifierComposesActiveEffects(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	s.Trigger("crash", Payload{})
	s.Trigger("boom", Payload{})

	got := s.Modifier(CategoryPrice)
	want := 0.7 * 1.2 // (1-0.3)*(1+0.2)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected price modifier %.4f, got %.4f", want, got)
	}
	if s.Modifier(CategoryTravel) != 1.0 {
		t.Errorf("Expected untouched travel modifier 1.0, got %.4f", s.Modifier(CategoryTravel))
	}
}

func TestModifierReturnsToExactIdentityAfterExpiry(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	s.Trigger("crash", Payload{})
	s.Trigger("boom", Payload{})

	// Crash (60 min) expires first.
	clk.minutes = 60
	s.Tick()
	if got := s.Modifier(CategoryPrice); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("Expected 1.2 after crash expiry, got %.6f", got)
	}

	// Boom (120 min) expires next. Recomputing from scratch means the
	// modifier is exactly 1.0, not merely close to it.
	clk.minutes = 120
	s.Tick()
	if got := s.Modifier(CategoryPrice); got != 1.0 {
		t.Errorf("Expected exact identity 1.0 after all expiries, got %v", got)
	}
	if len(s.ActiveEffects()) != 0 {
		t.Errorf("Expected no active effects, got %d", len(s.ActiveEffects()))
	}
}

func TestScheduledEventFiresExactlyOnce(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	s.Schedule("raid", 10, Payload{})

	clk.minutes = 5
	s.Tick()
	if len(s.ActiveEffects()) != 0 {
		t.Fatal("Expected nothing fired before the trigger time")
	}
	if len(s.PendingEvents()) != 1 {
		t.Fatalf("Expected 1 pending event, got %d", len(s.PendingEvents()))
	}

	clk.minutes = 10
	s.Tick()
	if len(s.ActiveEffects()) != 1 {
		t.Fatalf("Expected 1 active effect at the trigger time, got %d", len(s.ActiveEffects()))
	}
	if len(s.PendingEvents()) != 0 {
		t.Errorf("Expected fired event removed from the queue, got %d pending", len(s.PendingEvents()))
	}

	clk.minutes = 11
	s.Tick()
	if len(s.ActiveEffects()) != 1 {
		t.Errorf("Expected the effect to fire once, got %d active", len(s.ActiveEffects()))
	}
}

func TestDuplicateSchedulesAllFire(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	s.Schedule("boom", 10, Payload{})
	s.Schedule("boom", 10, Payload{})

	clk.minutes = 10
	s.Tick()
	if got := len(s.ActiveEffects()); got != 2 {
		t.Errorf("Expected both duplicate schedules to fire, got %d active", got)
	}
}

func TestTriggerUnknownEventIgnored(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	if eff := s.Trigger("comet_strike", Payload{}); eff != nil {
		t.Error("Expected nil effect for unknown event type")
	}
	if len(s.ActiveEffects()) != 0 {
		t.Error("Expected no active effect from an unknown trigger")
	}
}

func TestPayloadOverridesDefEffects(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	s.Trigger("boom", Payload{Effects: map[string]float64{CategoryPrice: 0.5}})
	if got := s.Modifier(CategoryPrice); math.Abs(got-1.5) > 1e-9 {
		t.Errorf("Expected payload override to yield 1.5, got %.4f", got)
	}
}

func TestZeroDurationEffectExpiresOnNextTick(t *testing.T) {
	clk := &fakeClock{}
	s := New(clk, []EventDef{{ID: "flash", Name: "Flash", Duration: 0}}, rand.New(rand.NewSource(1)), nil, nil)

	s.Trigger("flash", Payload{})
	s.Tick()
	if len(s.ActiveEffects()) != 0 {
		t.Error("Expected zero-duration effect to expire immediately")
	}
}

func TestFireHookReceivesPayloadData(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)

	var gotID string
	var gotDest string
	s.SetFireHook(hookFunc(func(defID string, payload Payload) {
		gotID = defID
		gotDest = payload.Data["destination"]
	}))

	s.Schedule("raid", 0, Payload{Data: map[string]string{"destination": "villa_mercado"}})
	s.Tick()

	if gotID != "raid" {
		t.Errorf("Expected hook called with def raid, got %q", gotID)
	}
	if gotDest != "villa_mercado" {
		t.Errorf("Expected payload data forwarded, got %q", gotDest)
	}
}

type hookFunc func(defID string, payload Payload)

func (f hookFunc) EventFired(defID string, payload Payload) { f(defID, payload) }

func TestPickRandomSkipsZeroWeightDefs(t *testing.T) {
	clk := &fakeClock{}
	defs := []EventDef{
		{ID: "arrival", Probability: 0},
		{ID: "boom", Probability: 0.25},
	}
	for seed := int64(0); seed < 20; seed++ {
		s := New(clk, defs, rand.New(rand.NewSource(seed)), nil, nil)
		if got := s.pickRandom(); got != "boom" {
			t.Fatalf("Expected only the weighted def to be picked, got %q (seed %d)", got, seed)
		}
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	clk := &fakeClock{}
	s := newTestScheduler(clk)
	s.Trigger("boom", Payload{})
	s.Schedule("raid", 500, Payload{})

	snap := s.Snapshot()

	restored := newTestScheduler(clk)
	restored.Restore(snap)
	if len(restored.ActiveEffects()) != 1 {
		t.Errorf("Expected 1 restored active effect, got %d", len(restored.ActiveEffects()))
	}
	if len(restored.PendingEvents()) != 1 {
		t.Errorf("Expected 1 restored pending event, got %d", len(restored.PendingEvents()))
	}
	if got := restored.Modifier(CategoryPrice); math.Abs(got-1.2) > 1e-9 {
		t.Errorf("Expected restored modifier 1.2, got %.4f", got)
	}
}
