package weapons

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// ArchetypeConfig defines the baseline balance values for a weapon family.
type ArchetypeConfig struct {
	Damage                float64 `json:"damage"`
	CooldownSeconds       float64 `json:"cooldownSeconds"`
	Knockback             float64 `json:"knockback"`
	ProjectileCount       int     `json:"projectileCount,omitempty"`
	Pierce                int     `json:"pierce,omitempty"`
	AreaRadius            float64 `json:"areaRadius,omitempty"`
	PuddleRadius          float64 `json:"puddleRadius,omitempty"`
	PuddleDurationSeconds float64 `json:"puddleDurationSeconds,omitempty"`
	PuddleHPScaling       float64 `json:"puddleHpScaling,omitempty"`
	OrbitRadius           float64 `json:"orbitRadius,omitempty"`
	BladeCount            int     `json:"bladeCount,omitempty"`
}

// VariantConfig customises an archetype for a specific weapon identifier.
type VariantConfig struct {
	Kind                  Kind     `json:"kind"`
	Damage                *float64 `json:"damage,omitempty"`
	CooldownSeconds       *float64 `json:"cooldownSeconds,omitempty"`
	Knockback             *float64 `json:"knockback,omitempty"`
	ProjectileCount       *int     `json:"projectileCount,omitempty"`
	Pierce                *int     `json:"pierce,omitempty"`
	AreaRadius            *float64 `json:"areaRadius,omitempty"`
	PuddleRadius          *float64 `json:"puddleRadius,omitempty"`
	PuddleDurationSeconds *float64 `json:"puddleDurationSeconds,omitempty"`
	PuddleHPScaling       *float64 `json:"puddleHpScaling,omitempty"`
	OrbitRadius           *float64 `json:"orbitRadius,omitempty"`
	BladeCount            *int     `json:"bladeCount,omitempty"`
}

// BalanceCatalog mirrors the structure of weapon_balance.json.
type BalanceCatalog struct {
	Archetypes map[Kind]ArchetypeConfig `json:"archetypes"`
	Weapons    map[string]VariantConfig `json:"weapons"`
}

// Clone produces a defensive copy to protect the cached catalog from mutation.
func (c BalanceCatalog) Clone() BalanceCatalog {
	clones := BalanceCatalog{
		Archetypes: make(map[Kind]ArchetypeConfig, len(c.Archetypes)),
		Weapons:    make(map[string]VariantConfig, len(c.Weapons)),
	}
	for key, value := range c.Archetypes {
		clones.Archetypes[key] = value
	}
	for key, value := range c.Weapons {
		clones.Weapons[key] = value
	}
	return clones
}

// WeaponIDs lists every weapon identifier in the catalog.
func (c BalanceCatalog) WeaponIDs() []string {
	ids := make([]string, 0, len(c.Weapons))
	for id := range c.Weapons {
		ids = append(ids, id)
	}
	return ids
}

var (
	balanceOnce sync.Once
	balanceData BalanceCatalog
	balanceErr  error
)

//go:embed weapon_balance.json
var balancePayload []byte

// Balance exposes the parsed weapon balance catalog shared across runs.
func Balance() BalanceCatalog {
	balanceOnce.Do(func() {
		//1.- Parse the embedded JSON payload once so concurrent callers share the same data.
		balanceErr = json.Unmarshal(balancePayload, &balanceData)
	})
	//2.- Surface configuration errors immediately; a broken table must never start a run.
	if balanceErr != nil {
		panic(balanceErr)
	}
	return balanceData.Clone()
}
