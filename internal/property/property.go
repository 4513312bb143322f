// Package property manages the merchant's real estate: condition decay,
// daily income, modular upgrades and tier replacement.
package property

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
	"github.com/davigarmo/MercaderErrante/server/internal/domain/player"
	"github.com/davigarmo/MercaderErrante/server/internal/events"
	"github.com/davigarmo/MercaderErrante/server/internal/platform/logger"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
)

// Validation failures, matched with errors.Is by callers.
var (
	ErrUnknownProperty   = errors.New("unknown property")
	ErrUnknownUpgrade    = errors.New("unknown upgrade")
	ErrUnknownType       = errors.New("unknown property type")
	ErrAlreadyOwned      = errors.New("upgrade already owned")
	ErrMissingPrereq     = errors.New("prerequisite upgrade missing")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrFullCondition     = errors.New("condition already full")
	ErrNoNextTier        = errors.New("no next tier for this type")
	ErrMissingMaterials  = errors.New("missing tier materials")
)

// Balance constants.
const (
	decayPerDay        = 0.5  // condition points lost per elapsed day
	securityDecayMult  = 0.5  // security upgrade halves decay
	conditionThreshold = 50.0 // below this, income degrades linearly
	repairCostRate     = 0.1  // of base price, scaled by missing condition
	repairBonusMult    = 1.10 // income boost after a fresh repair
	repairBonusDays    = 3
	tierLaborSurcharge = 1.2

	craftDiscountPerPoint = 0.02 // crafting skill -> repair discount
	craftDiscountCap      = 0.30
	repDiscountPerPoint   = 0.002 // reputation -> repair/upgrade discount
	repDiscountCap        = 0.20
)

// UpgradeSecurity is the upgrade ID with special decay/repair behavior.
const UpgradeSecurity = "security_detail"

// Clock is the time surface the ledger needs. Satisfied by *clock.GameClock.
type Clock interface {
	DayIndex() int64
}

// ModifierSource supplies the scheduler's aggregate income multiplier.
type ModifierSource interface {
	Modifier(category string) float64
}

// TypeDef is the immutable definition of a property type.
type TypeDef struct {
	ID         string         `yaml:"id" json:"id"`
	Name       string         `yaml:"name" json:"name"`
	BasePrice  int            `yaml:"base_price" json:"base_price"`
	BaseIncome int            `yaml:"base_income" json:"base_income"` // gold per day at level 1
	NextTier   string         `yaml:"next_tier" json:"next_tier"`     // empty for top tier
	Materials  map[item.ID]int `yaml:"materials" json:"materials"`    // required for tier upgrade

	Storage    int `yaml:"storage" json:"storage"`
	Production int `yaml:"production" json:"production"`
	Workers    int `yaml:"workers" json:"workers"`
	Merchants  int `yaml:"merchants" json:"merchants"`
	Guards     int `yaml:"guards" json:"guards"`
}

// UpgradeDef is the immutable definition of a modular upgrade.
type UpgradeDef struct {
	ID             string             `yaml:"id" json:"id"`
	Name           string             `yaml:"name" json:"name"`
	CostMultiplier float64            `yaml:"cost_multiplier" json:"cost_multiplier"` // of the property's base price
	Requires       []string           `yaml:"requires" json:"requires"`
	Benefits       map[string]float64 `yaml:"benefits" json:"benefits"` // storage/production/workers/merchants/guards/income
}

// Benefits are derived from type + level + owned upgrades. Never stored in a
// save; always recomputed.
type Benefits struct {
	Storage          int     `json:"storage"`
	Production       int     `json:"production"`
	Workers          int     `json:"workers"`
	Merchants        int     `json:"merchants"`
	Guards           int     `json:"guards"`
	IncomeMultiplier float64 `json:"income_multiplier"`
}

// RepairBonus is the temporary efficiency boost granted by a repair.
type RepairBonus struct {
	Multiplier float64 `json:"multiplier"`
	ExpiresDay int64   `json:"expires_day"` // absolute day index
}

// Property is one owned building.
type Property struct {
	ID        string       `json:"id"`
	TypeID    string       `json:"type_id"`
	Location  string       `json:"location"`
	Level     int          `json:"level"`
	Condition float64      `json:"condition"` // 0-100
	Upgrades  []string     `json:"upgrades"`
	Benefits  Benefits     `json:"benefits"` // derived
	Bonus     *RepairBonus `json:"bonus,omitempty"`
}

// HasUpgrade reports whether an upgrade ID is owned.
func (p *Property) HasUpgrade(id string) bool {
	for _, u := range p.Upgrades {
		if u == id {
			return true
		}
	}
	return false
}

// State is the serializable property snapshot.
type State struct {
	Properties []Property `json:"properties"`
}

// Ledger tracks every owned property and ticks their economy.
type Ledger struct {
	clk     Clock
	mods    ModifierSource
	logger  *logger.Logger
	journal *events.Journal
	owner   *player.Player

	types    map[string]TypeDef
	upgrades map[string]UpgradeDef
	props    map[string]*Property
	order    []string
}

// NewLedger creates the property ledger for one merchant.
func NewLedger(clk Clock, mods ModifierSource, owner *player.Player, types []TypeDef, upgrades []UpgradeDef, log *logger.Logger, journal *events.Journal) *Ledger {
	lg := &Ledger{
		clk:      clk,
		mods:     mods,
		logger:   log,
		journal:  journal,
		owner:    owner,
		types:    make(map[string]TypeDef, len(types)),
		upgrades: make(map[string]UpgradeDef, len(upgrades)),
		props:    make(map[string]*Property),
	}
	for _, t := range types {
		lg.types[t.ID] = t
	}
	for _, u := range upgrades {
		lg.upgrades[u.ID] = u
	}
	return lg
}

// Add registers a property. Condition defaults to 100, level to 1.
func (lg *Ledger) Add(p Property) error {
	if _, ok := lg.types[p.TypeID]; !ok {
		return fmt.Errorf("add property %s: %w", p.TypeID, ErrUnknownType)
	}
	if p.Level < 1 {
		p.Level = 1
	}
	if p.Condition <= 0 {
		p.Condition = 100
	}
	lg.recomputeBenefits(&p)
	lg.props[p.ID] = &p
	lg.order = append(lg.order, p.ID)
	return nil
}

// Get returns a property by ID.
func (lg *Ledger) Get(id string) (*Property, bool) {
	p, ok := lg.props[id]
	return p, ok
}

// Properties returns all properties in insertion order.
func (lg *Ledger) Properties() []*Property {
	out := make([]*Property, 0, len(lg.order))
	for _, id := range lg.order {
		out = append(out, lg.props[id])
	}
	return out
}

// Tick advances the property economy by whole elapsed days: condition decays
// and daily income is paid out. Called by the simulation on day boundaries.
func (lg *Ledger) Tick(elapsedDays int) {
	if elapsedDays <= 0 {
		return
	}
	today := lg.clk.DayIndex()
	incomeMod := 1.0
	if lg.mods != nil {
		incomeMod = lg.mods.Modifier(scheduler.CategoryIncome)
	}

	for _, id := range lg.order {
		p := lg.props[id]

		decay := decayPerDay * float64(elapsedDays)
		if p.HasUpgrade(UpgradeSecurity) {
			decay *= securityDecayMult
		}
		p.Condition -= decay
		if p.Condition < 0 {
			p.Condition = 0
		}

		if p.Bonus != nil && today >= p.Bonus.ExpiresDay {
			p.Bonus = nil
		}

		income := lg.dailyIncome(p) * float64(elapsedDays) * incomeMod
		paid := int(math.Round(income))
		if paid > 0 {
			lg.owner.Earn(paid)
			lg.journalEvent(events.EventTypeIncomePaid, p.ID, map[string]interface{}{
				"gold": paid, "days": elapsedDays, "condition": p.Condition,
			})
		}
	}
}

// dailyIncome computes one day of income before event modifiers:
// base(type, level) x upgrade multipliers x condition factor x repair bonus.
func (lg *Ledger) dailyIncome(p *Property) float64 {
	typ, ok := lg.types[p.TypeID]
	if !ok {
		return 0
	}
	income := float64(typ.BaseIncome * p.Level)
	income *= p.Benefits.IncomeMultiplier
	income *= conditionFactor(p.Condition)
	if p.Bonus != nil {
		income *= p.Bonus.Multiplier
	}
	return income
}

// conditionFactor degrades income linearly once condition falls below the
// threshold. This is what makes repairing economically meaningful.
func conditionFactor(condition float64) float64 {
	if condition >= conditionThreshold {
		return 1.0
	}
	if condition <= 0 {
		return 0
	}
	return condition / conditionThreshold
}

// Upgrade buys a modular upgrade. Validation is complete before any mutation.
func (lg *Ledger) Upgrade(propID, upgID string) error {
	p, ok := lg.props[propID]
	if !ok {
		return fmt.Errorf("upgrade %s: %w", propID, ErrUnknownProperty)
	}
	upg, ok := lg.upgrades[upgID]
	if !ok {
		return fmt.Errorf("upgrade %s with %s: %w", propID, upgID, ErrUnknownUpgrade)
	}
	if p.HasUpgrade(upgID) {
		return fmt.Errorf("upgrade %s with %s: %w", propID, upgID, ErrAlreadyOwned)
	}
	for _, req := range upg.Requires {
		if !p.HasUpgrade(req) {
			return fmt.Errorf("upgrade %s with %s needs %s: %w", propID, upgID, req, ErrMissingPrereq)
		}
	}

	cost := lg.upgradeCost(p, upg)
	if !lg.owner.CanAfford(cost) {
		return fmt.Errorf("upgrade %s with %s costs %d: %w", propID, upgID, cost, ErrInsufficientFunds)
	}

	lg.owner.Spend(cost)
	p.Upgrades = append(p.Upgrades, upgID)
	lg.recomputeBenefits(p)
	lg.journalEvent(events.EventTypeUpgrade, p.ID, map[string]interface{}{"upgrade": upgID, "gold": cost})
	return nil
}

// UpgradeCost exposes the price the merchant would pay, for UI previews.
func (lg *Ledger) UpgradeCost(propID, upgID string) (int, error) {
	p, ok := lg.props[propID]
	if !ok {
		return 0, fmt.Errorf("cost for %s: %w", propID, ErrUnknownProperty)
	}
	upg, ok := lg.upgrades[upgID]
	if !ok {
		return 0, fmt.Errorf("cost for %s: %w", upgID, ErrUnknownUpgrade)
	}
	return lg.upgradeCost(p, upg), nil
}

func (lg *Ledger) upgradeCost(p *Property, upg UpgradeDef) int {
	typ := lg.types[p.TypeID]
	levelFactor := 1 + 0.25*float64(p.Level-1)
	repFactor := 1 - repDiscount(lg.owner.Reputation)
	return int(math.Round(float64(typ.BasePrice) * upg.CostMultiplier * levelFactor * repFactor))
}

// Repair restores condition to 100 for a cost proportional to the damage,
// and grants a temporary efficiency bonus.
func (lg *Ledger) Repair(propID string) error {
	p, ok := lg.props[propID]
	if !ok {
		return fmt.Errorf("repair %s: %w", propID, ErrUnknownProperty)
	}
	if p.Condition >= 100 {
		return fmt.Errorf("repair %s: %w", propID, ErrFullCondition)
	}

	cost := lg.RepairCost(p)
	if !lg.owner.CanAfford(cost) {
		return fmt.Errorf("repair %s costs %d: %w", propID, cost, ErrInsufficientFunds)
	}

	lg.owner.Spend(cost)
	p.Condition = 100
	p.Bonus = &RepairBonus{
		Multiplier: repairBonusMult,
		ExpiresDay: lg.clk.DayIndex() + repairBonusDays,
	}
	lg.journalEvent(events.EventTypeRepair, p.ID, map[string]interface{}{"gold": cost})
	return nil
}

// RepairCost computes the discounted repair price:
// basePrice x 0.1 x missing-condition share, minus the security, crafting
// (capped 30%) and reputation (capped 20%) discounts.
func (lg *Ledger) RepairCost(p *Property) int {
	typ := lg.types[p.TypeID]
	base := float64(typ.BasePrice) * repairCostRate * (100 - p.Condition) / 100

	if p.HasUpgrade(UpgradeSecurity) {
		base *= 0.9
	}
	craft := craftDiscountPerPoint * float64(lg.owner.Skills.Crafting)
	if craft > craftDiscountCap {
		craft = craftDiscountCap
	}
	base *= 1 - craft
	base *= 1 - repDiscount(lg.owner.Reputation)

	cost := int(math.Round(base))
	if cost < 1 {
		cost = 1
	}
	return cost
}

// UpgradeTier replaces the property's type with its designated next tier.
// Requires the gold difference with a labor surcharge plus materials.
func (lg *Ledger) UpgradeTier(propID string) error {
	p, ok := lg.props[propID]
	if !ok {
		return fmt.Errorf("tier upgrade %s: %w", propID, ErrUnknownProperty)
	}
	typ := lg.types[p.TypeID]
	if typ.NextTier == "" {
		return fmt.Errorf("tier upgrade %s: %w", propID, ErrNoNextTier)
	}
	next, ok := lg.types[typ.NextTier]
	if !ok {
		return fmt.Errorf("tier upgrade %s to %s: %w", propID, typ.NextTier, ErrUnknownType)
	}

	goldCost := int(math.Round(float64(next.BasePrice-typ.BasePrice) * tierLaborSurcharge))
	if goldCost < 0 {
		goldCost = 0
	}
	if !lg.owner.CanAfford(goldCost) {
		return fmt.Errorf("tier upgrade %s costs %d: %w", propID, goldCost, ErrInsufficientFunds)
	}
	for id, qty := range next.Materials {
		if lg.owner.Holding(id) < qty {
			return fmt.Errorf("tier upgrade %s needs %d %s: %w", propID, qty, id, ErrMissingMaterials)
		}
	}

	lg.owner.Spend(goldCost)
	for id, qty := range next.Materials {
		lg.owner.RemoveItem(id, qty)
	}
	p.TypeID = next.ID
	lg.recomputeBenefits(p)
	lg.journalEvent(events.EventTypeTierUpgrade, p.ID, map[string]interface{}{
		"from": typ.ID, "to": next.ID, "gold": goldCost,
	})
	return nil
}

// recomputeBenefits rebuilds the derived benefit block from type + level +
// owned upgrades. Always rebuilt from scratch, never adjusted incrementally.
func (lg *Ledger) recomputeBenefits(p *Property) {
	typ, ok := lg.types[p.TypeID]
	if !ok {
		p.Benefits = Benefits{IncomeMultiplier: 1}
		return
	}
	b := Benefits{
		Storage:          typ.Storage * p.Level,
		Production:       typ.Production * p.Level,
		Workers:          typ.Workers,
		Merchants:        typ.Merchants,
		Guards:           typ.Guards,
		IncomeMultiplier: 1.0,
	}
	for _, id := range p.Upgrades {
		upg, ok := lg.upgrades[id]
		if !ok {
			continue
		}
		b.Storage += int(upg.Benefits["storage"])
		b.Production += int(upg.Benefits["production"])
		b.Workers += int(upg.Benefits["workers"])
		b.Merchants += int(upg.Benefits["merchants"])
		b.Guards += int(upg.Benefits["guards"])
		if inc, ok := upg.Benefits["income"]; ok {
			b.IncomeMultiplier *= 1 + inc
		}
	}
	p.Benefits = b
}

// Snapshot exports every property for the save collaborator.
func (lg *Ledger) Snapshot() State {
	st := State{Properties: make([]Property, 0, len(lg.order))}
	for _, id := range lg.order {
		p := *lg.props[id]
		p.Upgrades = append([]string(nil), p.Upgrades...)
		if p.Bonus != nil {
			bonus := *p.Bonus
			p.Bonus = &bonus
		}
		st.Properties = append(st.Properties, p)
	}
	return st
}

// Restore loads a snapshot and recomputes all derived benefits.
func (lg *Ledger) Restore(st State) {
	lg.props = make(map[string]*Property, len(st.Properties))
	lg.order = lg.order[:0]
	for i := range st.Properties {
		p := st.Properties[i]
		lg.recomputeBenefits(&p)
		lg.props[p.ID] = &p
		lg.order = append(lg.order, p.ID)
	}
}

func (lg *Ledger) journalEvent(t events.EventType, target string, payload interface{}) {
	if lg.journal == nil {
		return
	}
	lg.journal.Append(events.SimEvent{
		ID:        events.NewEventID(),
		Timestamp: time.Now(),
		Type:      t,
		Actor:     "PLAYER",
		Target:    target,
		Payload:   payload,
		GameDay:   lg.clk.DayIndex(),
	})
}

func repDiscount(rep float64) float64 {
	d := repDiscountPerPoint * rep
	if d > repDiscountCap {
		d = repDiscountCap
	}
	if d < 0 {
		d = 0
	}
	return d
}
