package progression

import (
	"testing"

	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

func testCatalog(t *testing.T, defs ...upgrades.Definition) *upgrades.Catalog {
	t.Helper()
	catalog, err := upgrades.NewCatalog(defs)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return catalog
}

func testRoster(t *testing.T, weaponIDs ...string) (*State, *weapons.Roster) {
	t.Helper()
	state := NewState()
	roster := weapons.NewRoster()
	applicator := NewApplicator()
	for _, id := range weaponIDs {
		if err := applicator.EquipStarter(id, state, roster); err != nil {
			t.Fatalf("equip %s: %v", id, err)
		}
	}
	return state, roster
}

func maxHP(id string, flat float64) upgrades.Definition {
	return upgrades.Definition{ID: id, Category: upgrades.Category{Kind: upgrades.CategoryPlayerMaxHP}, Magnitude: flat, RarityWeight: 1}
}

func passive(id string, kind upgrades.PassiveKind, magnitude float64) upgrades.Definition {
	return upgrades.Definition{ID: id, Category: upgrades.Category{Kind: upgrades.CategoryPassive, Passive: kind}, Magnitude: magnitude, RarityWeight: 1}
}

func newWeapon(id, weaponID string) upgrades.Definition {
	return upgrades.Definition{ID: id, Category: upgrades.Category{Kind: upgrades.CategoryNewWeapon, WeaponID: weaponID}, RarityWeight: 1}
}

func specific(id string, kind weapons.Kind, effect weapons.Effect, magnitude float64) upgrades.Definition {
	return upgrades.Definition{ID: id, Category: upgrades.Category{Kind: upgrades.CategoryWeaponSpecific, WeaponKind: kind, Effect: effect}, Magnitude: magnitude, RarityWeight: 1}
}

func ptr(def upgrades.Definition) *upgrades.Definition { return &def }

type recordedEvent struct {
	kind    string
	payload any
}

type memoryRecorder struct {
	events    []recordedEvent
	snapshots []Snapshot
}

func (m *memoryRecorder) Record(kind string, payload any) error {
	m.events = append(m.events, recordedEvent{kind: kind, payload: payload})
	return nil
}

func (m *memoryRecorder) Snapshot(payload any) error {
	if snap, ok := payload.(Snapshot); ok {
		m.snapshots = append(m.snapshots, snap)
	}
	return nil
}

func (m *memoryRecorder) kinds() []string {
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.kind
	}
	return out
}

type fakePickups struct {
	live        int
	multipliers []float64
}

func (f *fakePickups) ScaleMagnetRadius(multiplier float64) int {
	f.multipliers = append(f.multipliers, multiplier)
	return f.live
}
