package progression

import (
	"errors"
	"fmt"

	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

var (
	// ErrMalformedDefinition marks nil or structurally invalid definitions.
	ErrMalformedDefinition = upgrades.ErrMalformedDefinition
	// ErrAlreadyApplied marks a non-repeatable upgrade that was already taken.
	ErrAlreadyApplied = errors.New("upgrade already applied")
	// ErrWeaponEquipped marks a new-weapon upgrade for a weapon already held.
	ErrWeaponEquipped = errors.New("weapon already equipped")
	// ErrRosterFull marks a new-weapon upgrade offered to a full roster.
	ErrRosterFull = weapons.ErrRosterFull
	// ErrNoMatchingWeapon marks a weapon-specific upgrade with no matching weapon kind.
	ErrNoMatchingWeapon = errors.New("no equipped weapon of the required kind")
	// ErrPrerequisiteMissing marks a tiered upgrade whose prerequisite was not taken.
	ErrPrerequisiteMissing = errors.New("prerequisite upgrade not applied")
	// ErrPassiveSlotsFull marks a passive upgrade when every passive slot is occupied.
	ErrPassiveSlotsFull = errors.New("passive slots are full")
)

// Check returns nil when def may be offered, or the first rule it breaks.
// It never mutates state or roster.
func Check(def *upgrades.Definition, state *State, roster *weapons.Roster) error {
	if err := def.Validate(); err != nil {
		return err
	}
	//1.- Stackable stat upgrades are always on the table.
	if def.IsRepeatable() {
		return nil
	}
	//2.- Everything else is taken at most once per run.
	if state.HasApplied(def.ID) {
		return fmt.Errorf("%w: %s", ErrAlreadyApplied, def.ID)
	}
	switch def.Category.Kind {
	case upgrades.CategoryNewWeapon:
		//3.- A new weapon needs a free slot and must not already be held.
		if state.IsEquipped(def.Category.WeaponID) || roster.Has(def.Category.WeaponID) {
			return fmt.Errorf("%w: %s", ErrWeaponEquipped, def.Category.WeaponID)
		}
		if roster.Len() >= weapons.Capacity {
			return ErrRosterFull
		}
	case upgrades.CategoryWeaponSpecific:
		//4.- Weapon-specific upgrades need a weapon of that family on the roster.
		if !roster.HasKind(def.Category.WeaponKind) {
			return fmt.Errorf("%w: %s", ErrNoMatchingWeapon, def.Category.WeaponKind)
		}
	}
	//5.- Tiered upgrades wait for their predecessor.
	if err := checkPrerequisite(def, state); err != nil {
		return err
	}
	//6.- Passives compete for a bounded number of slots.
	if def.Category.Kind == upgrades.CategoryPassive && state.PassiveSlots() >= MaxPassiveSlots {
		return ErrPassiveSlotsFull
	}
	return nil
}

func checkPrerequisite(def *upgrades.Definition, state *State) error {
	if def.Prerequisite != "" && !state.HasApplied(def.Prerequisite) {
		return fmt.Errorf("%w: %s needs %s", ErrPrerequisiteMissing, def.ID, def.Prerequisite)
	}
	return nil
}

// IsEligible reports whether Check passes.
func IsEligible(def *upgrades.Definition, state *State, roster *weapons.Roster) bool {
	return Check(def, state, roster) == nil
}
