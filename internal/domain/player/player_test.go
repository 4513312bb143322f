package player

import (
	"testing"

	"github.com/davigarmo/MercaderErrante/server/internal/domain/item"
)

func TestInventoryNeverGoesNegative(t *testing.T) {
	p := New("Test")
	p.AddItem(item.ItemBread, 3)

	if p.RemoveItem(item.ItemBread, 5) {
		t.Error("Expected removal of more than held to fail")
	}
	if p.Holding(item.ItemBread) != 3 {
		t.Errorf("Expected inventory untouched, got %d", p.Holding(item.ItemBread))
	}

	if !p.RemoveItem(item.ItemBread, 3) {
		t.Error("Expected exact removal to succeed")
	}
	if p.Holding(item.ItemBread) != 0 {
		t.Errorf("Expected empty inventory, got %d", p.Holding(item.ItemBread))
	}
}

func TestSpendRequiresFunds(t *testing.T) {
	p := New("Test")

	if p.Spend(p.Gold + 1) {
		t.Error("Expected overspend to fail")
	}
	if p.Gold != 500 {
		t.Errorf("Expected gold untouched, got %d", p.Gold)
	}
	if !p.Spend(500) {
		t.Error("Expected exact spend to succeed")
	}
	if p.Gold != 0 {
		t.Errorf("Expected zero gold, got %d", p.Gold)
	}
}

func TestReputationIsCapped(t *testing.T) {
	p := New("Test")
	p.GainReputation(250)
	if p.Reputation != 100 {
		t.Errorf("Expected reputation capped at 100, got %.1f", p.Reputation)
	}
	p.GainReputation(-500)
	if p.Reputation != 0 {
		t.Errorf("Expected reputation floored at 0, got %.1f", p.Reputation)
	}
}
