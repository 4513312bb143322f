package property

import (
	"errors"
	"testing"

	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/player"
)

type fakeClock struct {
	day int64
}

func (f *fakeClock) DayIndex() int64 { return f.day }

type fixedMods struct {
	value float64
}

func (m *fixedMods) Modifier(string) float64 { return m.value }

func testTypes() []TypeDef {
	return []TypeDef{
		{ID: "stall", Name: "Puesto", BasePrice: 1000, BaseIncome: 100, NextTier: "shop"},
		{
			ID: "shop", Name: "Tienda", BasePrice: 3000, BaseIncome: 250,
			Materials: map[item.ID]int{item.ItemTimber: 5},
		},
	}
}

func testUpgrades() []UpgradeDef {
	return []UpgradeDef{
		{ID: UpgradeSecurity, Name: "Guardia", CostMultiplier: 0.4, Benefits: map[string]float64{"guards": 2}},
		{ID: "warehouse", Name: "Almacén", CostMultiplier: 0.5, Benefits: map[string]float64{"storage": 50}},
		{
			ID: "counting_room", Name: "Sala de Cuentas", CostMultiplier: 0.8,
			Requires: []string{"warehouse"},
			Benefits: map[string]float64{"income": 0.15},
		},
	}
}

func newTestLedger(clk *fakeClock, owner *player.Player) *Ledger {
	lg := NewLedger(clk, &fixedMods{value: 1.0}, owner, testTypes(), testUpgrades(), nil, nil)
	if err := lg.Add(Property{ID: "p1", TypeID: "stall", Location: "aldea"}); err != nil {
		panic(err)
	}
	return lg
}

func TestAddDefaultsConditionAndLevel(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	p, ok := lg.Get("p1")
	if !ok {
		t.Fatal("Expected property registered")
	}
	if p.Condition != 100 {
		t.Errorf("Expected condition 100, got %.1f", p.Condition)
	}
	if p.Level != 1 {
		t.Errorf("Expected level 1, got %d", p.Level)
	}
	if p.Benefits.IncomeMultiplier != 1.0 {
		t.Errorf("Expected base income multiplier 1.0, got %.2f", p.Benefits.IncomeMultiplier)
	}
}

func TestRepairCostProportionalToDamage(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	p, _ := lg.Get("p1")
	p.Condition = 20

	// basePrice 1000 x 0.1 x (100-20)/100 = 80, no discounts apply.
	if got := lg.RepairCost(p); got != 80 {
		t.Errorf("Expected repair cost 80, got %d", got)
	}
}

func TestRepairCostDiscounts(t *testing.T) {
	owner := player.New("Test")
	owner.Skills.Crafting = 10 // 20% discount
	owner.Reputation = 50     // 10% discount
	lg := newTestLedger(&fakeClock{}, owner)

	p, _ := lg.Get("p1")
	p.Condition = 20
	p.Upgrades = append(p.Upgrades, UpgradeSecurity) // 10% discount

	// 80 x 0.9 x 0.8 x 0.9 = 51.84 -> 52
	if got := lg.RepairCost(p); got != 52 {
		t.Errorf("Expected discounted repair cost 52, got %d", got)
	}
}

func TestRepairRestoresConditionAndGrantsBonus(t *testing.T) {
	owner := player.New("Test")
	clk := &fakeClock{day: 10}
	lg := newTestLedger(clk, owner)

	p, _ := lg.Get("p1")
	p.Condition = 40

	if err := lg.Repair("p1"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if p.Condition != 100 {
		t.Errorf("Expected condition restored to 100, got %.1f", p.Condition)
	}
	if p.Bonus == nil {
		t.Fatal("Expected a repair bonus")
	}
	if p.Bonus.ExpiresDay != 13 {
		t.Errorf("Expected bonus to expire on day 13, got %d", p.Bonus.ExpiresDay)
	}
}

func TestRepairRejectsFullCondition(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.Repair("p1"); !errors.Is(err, ErrFullCondition) {
		t.Errorf("Expected ErrFullCondition, got %v", err)
	}
}

func TestUpgradeRejectsDuplicates(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.Upgrade("p1", "warehouse"); err != nil {
		t.Fatalf("First upgrade failed: %v", err)
	}
	if err := lg.Upgrade("p1", "warehouse"); !errors.Is(err, ErrAlreadyOwned) {
		t.Errorf("Expected ErrAlreadyOwned, got %v", err)
	}
}

func TestUpgradeEnforcesPrerequisites(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.Upgrade("p1", "counting_room"); !errors.Is(err, ErrMissingPrereq) {
		t.Fatalf("Expected ErrMissingPrereq, got %v", err)
	}

	if err := lg.Upgrade("p1", "warehouse"); err != nil {
		t.Fatalf("Prerequisite upgrade failed: %v", err)
	}
	if err := lg.Upgrade("p1", "counting_room"); err != nil {
		t.Errorf("Expected counting_room to succeed after prerequisite, got %v", err)
	}

	p, _ := lg.Get("p1")
	if p.Benefits.IncomeMultiplier != 1.15 {
		t.Errorf("Expected income multiplier 1.15, got %.2f", p.Benefits.IncomeMultiplier)
	}
	if p.Benefits.Storage != 50 {
		t.Errorf("Expected +50 storage, got %d", p.Benefits.Storage)
	}
}

func TestUpgradeCostChargesGold(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	lg := newTestLedger(&fakeClock{}, owner)

	// stall basePrice 1000 x 0.5 multiplier, level 1, no reputation.
	cost, err := lg.UpgradeCost("p1", "warehouse")
	if err != nil {
		t.Fatalf("UpgradeCost failed: %v", err)
	}
	if cost != 500 {
		t.Errorf("Expected upgrade cost 500, got %d", cost)
	}

	if err := lg.Upgrade("p1", "warehouse"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if owner.Gold != 9500 {
		t.Errorf("Expected gold 9500 after upgrade, got %d", owner.Gold)
	}
}

func TestUpgradeRejectsPoorOwner(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.Upgrade("p1", "warehouse"); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got %v", err)
	}
	if owner.Gold != 10 {
		t.Errorf("Expected gold untouched, got %d", owner.Gold)
	}
}

func TestTierUpgradeRequiresMaterialsAndGold(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.UpgradeTier("p1"); !errors.Is(err, ErrMissingMaterials) {
		t.Fatalf("Expected ErrMissingMaterials, got %v", err)
	}

	owner.AddItem(item.ItemTimber, 5)
	if err := lg.UpgradeTier("p1"); err != nil {
		t.Fatalf("Tier upgrade failed: %v", err)
	}

	p, _ := lg.Get("p1")
	if p.TypeID != "shop" {
		t.Errorf("Expected type shop after tier upgrade, got %s", p.TypeID)
	}
	// (3000-1000) x 1.2 labor surcharge = 2400
	if owner.Gold != 10000-2400 {
		t.Errorf("Expected gold %d, got %d", 10000-2400, owner.Gold)
	}
	if owner.Holding(item.ItemTimber) != 0 {
		t.Errorf("Expected materials consumed, still holding %d timber", owner.Holding(item.ItemTimber))
	}
}

func TestTierUpgradeRejectsTopTier(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 100000
	owner.AddItem(item.ItemTimber, 5)
	lg := newTestLedger(&fakeClock{}, owner)

	if err := lg.UpgradeTier("p1"); err != nil {
		t.Fatalf("Tier upgrade failed: %v", err)
	}
	if err := lg.UpgradeTier("p1"); !errors.Is(err, ErrNoNextTier) {
		t.Errorf("Expected ErrNoNextTier at the top, got %v", err)
	}
}

func TestTickDecaysConditionAndPaysIncome(t *testing.T) {
	owner := player.New("Test")
	clk := &fakeClock{day: 1}
	lg := newTestLedger(clk, owner)
	start := owner.Gold

	lg.Tick(1)

	p, _ := lg.Get("p1")
	if p.Condition != 99.5 {
		t.Errorf("Expected condition 99.5 after one day, got %.1f", p.Condition)
	}
	// baseIncome 100 x level 1 x full condition = 100
	if owner.Gold != start+100 {
		t.Errorf("Expected income of 100, gold went %d -> %d", start, owner.Gold)
	}
}

func TestSecurityUpgradeHalvesDecay(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	p, _ := lg.Get("p1")
	p.Upgrades = append(p.Upgrades, UpgradeSecurity)

	lg.Tick(4)
	if p.Condition != 99 { // 4 days x 0.5 x 0.5
		t.Errorf("Expected condition 99 with security, got %.1f", p.Condition)
	}
}

func TestIncomeDegradesBelowThreshold(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	p, _ := lg.Get("p1")
	p.Condition = 25.5 // decays to 25 during the tick
	start := owner.Gold

	lg.Tick(1)
	// Condition 25 is half the threshold: income 100 x 0.5 = 50.
	if owner.Gold != start+50 {
		t.Errorf("Expected degraded income of 50, gold went %d -> %d", start, owner.Gold)
	}
}

func TestZeroConditionPaysNothing(t *testing.T) {
	owner := player.New("Test")
	lg := newTestLedger(&fakeClock{}, owner)

	p, _ := lg.Get("p1")
	p.Condition = 0.4 // decays to zero
	start := owner.Gold

	lg.Tick(1)
	if owner.Gold != start {
		t.Errorf("Expected no income at zero condition, gold went %d -> %d", start, owner.Gold)
	}
	if p.Condition != 0 {
		t.Errorf("Expected condition clamped at 0, got %.2f", p.Condition)
	}
}

func TestIncomeModifierApplies(t *testing.T) {
	owner := player.New("Test")
	clk := &fakeClock{}
	lg := NewLedger(clk, &fixedMods{value: 0.75}, owner, testTypes(), testUpgrades(), nil, nil)
	if err := lg.Add(Property{ID: "p1", TypeID: "stall", Location: "aldea"}); err != nil {
		t.Fatal(err)
	}
	start := owner.Gold

	lg.Tick(1)
	if owner.Gold != start+75 {
		t.Errorf("Expected modified income of 75, gold went %d -> %d", start, owner.Gold)
	}
}

func TestRepairBonusExpires(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	clk := &fakeClock{day: 0}
	lg := newTestLedger(clk, owner)

	p, _ := lg.Get("p1")
	p.Condition = 50
	if err := lg.Repair("p1"); err != nil {
		t.Fatalf("Repair failed: %v", err)
	}

	clk.day = 3
	lg.Tick(1)
	if p.Bonus != nil {
		t.Error("Expected repair bonus cleared after its window")
	}
}

func TestSnapshotRestoreRecomputesBenefits(t *testing.T) {
	owner := player.New("Test")
	owner.Gold = 10000
	lg := newTestLedger(&fakeClock{}, owner)
	if err := lg.Upgrade("p1", "warehouse"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	snap := lg.Snapshot()

	restored := NewLedger(&fakeClock{}, &fixedMods{value: 1.0}, owner, testTypes(), testUpgrades(), nil, nil)
	restored.Restore(snap)

	p, ok := restored.Get("p1")
	if !ok {
		t.Fatal("Expected property restored")
	}
	if !p.HasUpgrade("warehouse") {
		t.Error("Expected owned upgrades to survive the round trip")
	}
	if p.Benefits.Storage != 50 {
		t.Errorf("Expected derived benefits recomputed on restore, storage %d", p.Benefits.Storage)
	}
}
