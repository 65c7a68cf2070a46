package upgrades

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hordeforge/engine/internal/weapons"
)

func TestDefaultCatalogLoadsCleanly(t *testing.T) {
	catalog := Default()
	if catalog.Len() == 0 {
		t.Fatalf("expected embedded upgrades")
	}
	if bad := catalog.Malformed(); len(bad) != 0 {
		t.Fatalf("expected no malformed entries, got %v", bad)
	}
	balance := weapons.Balance()
	for _, def := range catalog.All() {
		if def.Category.Kind == CategoryNewWeapon {
			if _, ok := balance.Weapons[def.Category.WeaponID]; !ok {
				t.Fatalf("%s grants unknown weapon %q", def.ID, def.Category.WeaponID)
			}
		}
	}
}

func TestAllReturnsCopies(t *testing.T) {
	catalog := Default()
	first := catalog.All()
	first[0].RarityWeight = 999
	if catalog.All()[0].RarityWeight == 999 {
		t.Fatalf("mutating a returned definition must not change the catalog")
	}
}

func TestNewCatalogRejectsStructuralProblems(t *testing.T) {
	repeat := Category{Kind: CategoryPlayerMaxHP}
	tests := []struct {
		name string
		defs []Definition
		want error
	}{
		{
			name: "duplicate",
			defs: []Definition{{ID: "a", Category: repeat, RarityWeight: 1}, {ID: "a", Category: repeat, RarityWeight: 1}},
			want: ErrDuplicateID,
		},
		{
			name: "dangling",
			defs: []Definition{{ID: "a", Category: repeat, RarityWeight: 1, Prerequisite: "ghost"}},
			want: ErrDanglingPrerequisite,
		},
		{
			name: "cycle",
			defs: []Definition{
				{ID: "a", Category: repeat, RarityWeight: 1, Prerequisite: "b"},
				{ID: "b", Category: repeat, RarityWeight: 1, Prerequisite: "c"},
				{ID: "c", Category: repeat, RarityWeight: 1, Prerequisite: "a"},
			},
			want: ErrPrerequisiteCycle,
		},
	}
	for _, tc := range tests {
		_, err := NewCatalog(tc.defs)
		if err == nil || !strings.Contains(err.Error(), tc.want.Error()) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestNewCatalogKeepsMalformedEntries(t *testing.T) {
	catalog, err := NewCatalog([]Definition{
		{ID: "ok", Category: Category{Kind: CategoryPlayerMoveSpeed}, Magnitude: 5, RarityWeight: 1},
		{ID: "bad", Category: Category{Kind: "teleport"}, RarityWeight: 1},
		{Category: Category{Kind: CategoryPlayerMoveSpeed}, RarityWeight: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog.Len() != 3 {
		t.Fatalf("expected all entries retained, got %d", catalog.Len())
	}
	bad := catalog.Malformed()
	if len(bad) != 2 {
		t.Fatalf("expected two malformed entries, got %v", bad)
	}
	if !errors.Is(bad["bad"], ErrMalformedDefinition) || bad["#2"] == nil {
		t.Fatalf("unexpected malformed map %v", bad)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
		ok   bool
	}{
		{name: "nil", def: nil},
		{name: "zero weight allowed", def: &Definition{ID: "z", Category: Category{Kind: CategoryPlayerMaxHP}}, ok: true},
		{name: "negative weight", def: &Definition{ID: "n", Category: Category{Kind: CategoryPlayerMaxHP}, RarityWeight: -1}},
		{name: "new weapon without id", def: &Definition{ID: "w", Category: Category{Kind: CategoryNewWeapon}, RarityWeight: 1}},
		{name: "specific with mismatched effect", def: &Definition{ID: "s", Category: Category{Kind: CategoryWeaponSpecific, WeaponKind: weapons.KindGreatsword, Effect: weapons.EffectAddPierce}, RarityWeight: 1}},
		{name: "specific ok", def: &Definition{ID: "s", Category: Category{Kind: CategoryWeaponSpecific, WeaponKind: weapons.KindCrossbow, Effect: weapons.EffectAddPierce}, RarityWeight: 1}, ok: true},
		{name: "unknown passive", def: &Definition{ID: "p", Category: Category{Kind: CategoryPassive, Passive: "thorns"}, RarityWeight: 1}},
		{name: "self prerequisite", def: &Definition{ID: "p", Category: Category{Kind: CategoryPassive, Passive: PassiveMagnet}, RarityWeight: 1, Prerequisite: "p"}},
	}
	for _, tc := range tests {
		err := tc.def.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, ErrMalformedDefinition) {
			t.Fatalf("%s: expected malformed error, got %v", tc.name, err)
		}
	}
}

func TestRepeatableCategories(t *testing.T) {
	for _, kind := range []CategoryKind{CategoryPlayerMoveSpeed, CategoryPlayerMaxHP, CategoryWeaponDamageGlobal, CategoryWeaponAttackSpeedGlobal} {
		if !kind.Repeatable() {
			t.Fatalf("%s should be repeatable", kind)
		}
	}
	for _, kind := range []CategoryKind{CategoryNewWeapon, CategoryWeaponSpecific, CategoryPassive} {
		if kind.Repeatable() {
			t.Fatalf("%s should not be repeatable", kind)
		}
	}
	var missing *Definition
	if missing.IsRepeatable() {
		t.Fatalf("nil definition is not repeatable")
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `upgrades:
  - id: crossbow_pierce_1
    category:
      kind: weapon_specific
      weaponKind: crossbow
      effect: add_pierce
    magnitude: 1
    rarityWeight: 3
  - id: crossbow_pierce_2
    category:
      kind: weapon_specific
      weaponKind: crossbow
      effect: add_pierce
    magnitude: 1
    rarityWeight: 1
    prerequisite: crossbow_pierce_1
    tier: 2
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	catalog, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def, ok := catalog.Lookup("crossbow_pierce_2")
	if !ok {
		t.Fatalf("expected crossbow_pierce_2")
	}
	if def.Prerequisite != "crossbow_pierce_1" || def.Tier != 2 || def.Category.Effect != weapons.EffectAddPierce {
		t.Fatalf("unexpected definition %+v", def)
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	catalog, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if catalog != Default() {
		t.Fatalf("expected embedded catalog")
	}
}
