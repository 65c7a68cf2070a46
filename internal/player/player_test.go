package player

import (
	"math"
	"testing"
)

func TestLoadoutsReferenceStartingWeapons(t *testing.T) {
	loadouts := Loadouts()
	if len(loadouts) == 0 {
		t.Fatalf("expected loadouts to load")
	}
	for _, loadout := range loadouts {
		if loadout.StartingWeapon == "" {
			t.Fatalf("loadout %s has no starting weapon", loadout.ID)
		}
		if loadout.BaseMaxHP <= 0 || loadout.BaseMoveSpeed <= 0 {
			t.Fatalf("loadout %s has non-positive base stats", loadout.ID)
		}
	}
	if DefaultLoadoutID() != "knight" {
		t.Fatalf("expected knight as default loadout, got %q", DefaultLoadoutID())
	}
}

func TestNewBaselineAppliesShopLevels(t *testing.T) {
	base, err := NewBaseline("knight", ShopLevels{Damage: 2, Speed: 1, Health: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(base.MaxHP-180) > 1e-9 {
		t.Fatalf("expected 180 max hp, got %v", base.MaxHP)
	}
	if math.Abs(base.MoveSpeed-4.635) > 1e-9 {
		t.Fatalf("expected 4.635 move speed, got %v", base.MoveSpeed)
	}
	if math.Abs(base.DamageMultiplier-1.1) > 1e-9 {
		t.Fatalf("expected 1.1 damage multiplier, got %v", base.DamageMultiplier)
	}
	if base.StartingWeapon != "greatsword" {
		t.Fatalf("unexpected starting weapon %q", base.StartingWeapon)
	}
}

func TestNewBaselineClampsLevels(t *testing.T) {
	base, err := NewBaseline("knight", ShopLevels{Damage: 99, Health: -3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.Shop.Damage != Shop().MaxLevel || base.Shop.Health != 0 {
		t.Fatalf("expected levels clamped, got %+v", base.Shop)
	}
	if _, err := NewBaseline("ghost", nil); err == nil {
		t.Fatalf("expected unknown loadout error")
	}
}

func TestStatsSinkBehaviour(t *testing.T) {
	stats := NewStats(Baseline{MaxHP: 100, MoveSpeed: 5})
	stats.TakeDamage(30)
	stats.IncreaseMaxHP(10)
	snap := stats.Snapshot()
	if snap.MaxHP != 110 || snap.HP != 80 {
		t.Fatalf("expected max 110 hp 80, got %+v", snap)
	}
	stats.IncreaseMaxHP(-5)
	if stats.Snapshot().MaxHP != 110 {
		t.Fatalf("non-positive increases must be ignored")
	}
	stats.SetMoveSpeed(stats.MoveSpeed() * 1.1)
	if math.Abs(stats.MoveSpeed()-5.5) > 1e-9 {
		t.Fatalf("expected 5.5 move speed, got %v", stats.MoveSpeed())
	}
	if stats.DamageMultiplier() != 1 {
		t.Fatalf("expected default damage multiplier 1, got %v", stats.DamageMultiplier())
	}
}
