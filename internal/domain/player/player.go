// Package player defines the core domain entity for the merchant.
// This package is PURE and must NOT import any infrastructure packages
// (network, events, platform).
package player

import "github.com/davigarmo/MercaderErrante/server/internal/domain/item"

// Skills holds the merchant's learned abilities. All range 0-100.
type Skills struct {
	Trading     int `json:"trading"`     // Widens profitable margins (flavor, read by UI)
	Crafting    int `json:"crafting"`    // Discounts property repairs
	Negotiation int `json:"negotiation"` // Reserved for caravan contracts
}

// Player represents the state of the merchant.
type Player struct {
	Name       string          `json:"name"`
	Gold       int             `json:"gold"`
	Location   string          `json:"location"`   // Current location ID
	Inventory  map[item.ID]int `json:"inventory"`  // Goods carried
	Skills     Skills          `json:"skills"`
	Reputation float64         `json:"reputation"` // 0-100 merchant renown, grows with trade
}

// New creates a fresh merchant with default starting state.
func New(name string) *Player {
	return &Player{
		Name:      name,
		Gold:      500,
		Inventory: make(map[item.ID]int),
		Skills:    Skills{Trading: 5, Crafting: 0, Negotiation: 0},
	}
}

// AddItem places goods into the merchant's inventory.
func (p *Player) AddItem(id item.ID, quantity int) {
	if quantity <= 0 {
		return
	}
	if p.Inventory == nil {
		p.Inventory = make(map[item.ID]int)
	}
	p.Inventory[id] += quantity
}

// RemoveItem takes goods out of the inventory. Returns false (and leaves the
// inventory untouched) if the merchant does not hold enough.
func (p *Player) RemoveItem(id item.ID, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	if p.Inventory[id] < quantity {
		return false
	}
	p.Inventory[id] -= quantity
	if p.Inventory[id] == 0 {
		delete(p.Inventory, id)
	}
	return true
}

// Holding returns how many of a good the merchant carries.
func (p *Player) Holding(id item.ID) int {
	return p.Inventory[id]
}

// CanAfford reports whether the merchant has at least the given gold.
func (p *Player) CanAfford(cost int) bool {
	return p.Gold >= cost
}

// Spend deducts gold. Returns false (no deduction) if funds are insufficient.
func (p *Player) Spend(cost int) bool {
	if cost < 0 || p.Gold < cost {
		return false
	}
	p.Gold -= cost
	return true
}

// Earn credits gold to the merchant.
func (p *Player) Earn(amount int) {
	if amount > 0 {
		p.Gold += amount
	}
}

// GainReputation raises renown, capped at 100.
func (p *Player) GainReputation(delta float64) {
	p.Reputation += delta
	if p.Reputation > 100 {
		p.Reputation = 100
	}
	if p.Reputation < 0 {
		p.Reputation = 0
	}
}
