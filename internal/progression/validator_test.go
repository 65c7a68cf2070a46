package progression

import (
	"errors"
	"testing"

	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

func TestScenarioWeaponSpecificNeedsMatchingKind(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	def := ptr(specific("crossbow_pierce_1", weapons.KindCrossbow, weapons.EffectAddPierce, 1))
	if IsEligible(def, state, roster) {
		t.Fatalf("crossbow upgrade must not be eligible with only a greatsword")
	}
	if err := Check(def, state, roster); !errors.Is(err, ErrNoMatchingWeapon) {
		t.Fatalf("expected ErrNoMatchingWeapon, got %v", err)
	}
	own := ptr(specific("greatsword_arc_1", weapons.KindGreatsword, weapons.EffectScaleArea, 1.2))
	if !IsEligible(own, state, roster) {
		t.Fatalf("greatsword upgrade should be eligible")
	}
}

func TestScenarioPassiveSlotsFull(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	applicator := NewApplicator()
	for i, kind := range []upgrades.PassiveKind{upgrades.PassiveLifesteal, upgrades.PassiveGoldBonus, upgrades.PassiveMagnet} {
		def := ptr(passive(string(kind), kind, float64(i+1)))
		if err := applicator.Apply(def, state, roster, nil); err != nil {
			t.Fatalf("apply %s: %v", kind, err)
		}
	}
	if state.PassiveSlots() != MaxPassiveSlots {
		t.Fatalf("expected %d passive slots, got %d", MaxPassiveSlots, state.PassiveSlots())
	}
	fourth := ptr(passive("lifesteal_extra", upgrades.PassiveLifesteal, 2))
	if err := Check(fourth, state, roster); !errors.Is(err, ErrPassiveSlotsFull) {
		t.Fatalf("expected ErrPassiveSlotsFull, got %v", err)
	}
	if !IsEligible(ptr(maxHP("max_hp", 10)), state, roster) {
		t.Fatalf("max hp must stay eligible when passive slots are full")
	}
}

func TestScenarioFullRosterBlocksNewWeapons(t *testing.T) {
	state, roster := testRoster(t, "greatsword", "crossbow", "fire_staff", "poison_flask")
	for _, weaponID := range []string{"orbit_blades", "twin_daggers", "crossbow"} {
		if IsEligible(ptr(newWeapon("new_"+weaponID, weaponID)), state, roster) {
			t.Fatalf("new weapon %s must be ineligible on a full roster", weaponID)
		}
	}
	if err := Check(ptr(newWeapon("new_orbit", "orbit_blades")), state, roster); !errors.Is(err, ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull, got %v", err)
	}
}

func TestNewWeaponAlreadyEquipped(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	if err := Check(ptr(newWeapon("new_greatsword", "greatsword")), state, roster); !errors.Is(err, ErrWeaponEquipped) {
		t.Fatalf("expected ErrWeaponEquipped, got %v", err)
	}
}

func TestPrerequisiteGating(t *testing.T) {
	state, roster := testRoster(t, "crossbow")
	first := specific("crossbow_multishot_1", weapons.KindCrossbow, weapons.EffectAddProjectile, 1)
	second := specific("crossbow_multishot_2", weapons.KindCrossbow, weapons.EffectAddProjectile, 1)
	second.Prerequisite = first.ID

	if err := Check(&second, state, roster); !errors.Is(err, ErrPrerequisiteMissing) {
		t.Fatalf("expected ErrPrerequisiteMissing, got %v", err)
	}
	if err := NewApplicator().Apply(&first, state, roster, nil); err != nil {
		t.Fatalf("apply first tier: %v", err)
	}
	if err := Check(&first, state, roster); !errors.Is(err, ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}
	if !IsEligible(&second, state, roster) {
		t.Fatalf("second tier should unlock once the first is applied")
	}
}

func TestRepeatablesAlwaysEligible(t *testing.T) {
	state, roster := testRoster(t, "greatsword", "crossbow", "fire_staff", "poison_flask")
	for _, kind := range []upgrades.CategoryKind{
		upgrades.CategoryPlayerMoveSpeed,
		upgrades.CategoryPlayerMaxHP,
		upgrades.CategoryWeaponDamageGlobal,
		upgrades.CategoryWeaponAttackSpeedGlobal,
	} {
		def := &upgrades.Definition{ID: string(kind), Category: upgrades.Category{Kind: kind}, Magnitude: 5, RarityWeight: 1}
		state.recordApplied(def.ID)
		if !IsEligible(def, state, roster) {
			t.Fatalf("%s must always be eligible", kind)
		}
	}
}

func TestMalformedDefinitionsAreIneligible(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	tests := []*upgrades.Definition{
		nil,
		{ID: "", Category: upgrades.Category{Kind: upgrades.CategoryPlayerMaxHP}, RarityWeight: 1},
		{ID: "x", Category: upgrades.Category{Kind: "mystery"}, RarityWeight: 1},
		{ID: "y", Category: upgrades.Category{Kind: upgrades.CategoryPlayerMaxHP}, RarityWeight: -2},
	}
	for i, def := range tests {
		if err := Check(def, state, roster); !errors.Is(err, ErrMalformedDefinition) {
			t.Fatalf("case %d: expected ErrMalformedDefinition, got %v", i, err)
		}
	}
}

func TestCheckNeverMutates(t *testing.T) {
	state, roster := testRoster(t, "crossbow")
	before := state.Snapshot()
	beforeRoster := roster.Snapshot()
	for _, def := range upgrades.Default().All() {
		_ = Check(def, state, roster)
	}
	after := state.Snapshot()
	if len(after.Applied) != len(before.Applied) || len(after.Equipped) != len(before.Equipped) || after.PassiveSlots != before.PassiveSlots {
		t.Fatalf("validator mutated state: %+v -> %+v", before, after)
	}
	if len(roster.Snapshot()) != len(beforeRoster) || roster.Snapshot()[0] != beforeRoster[0] {
		t.Fatalf("validator mutated roster")
	}
}
