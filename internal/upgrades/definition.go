package upgrades

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"hordeforge/engine/internal/weapons"
)

// ErrMalformedDefinition marks a definition that can never be offered.
var ErrMalformedDefinition = errors.New("malformed upgrade definition")

// CategoryKind tags the variant carried by Category.
type CategoryKind string

const (
	CategoryPlayerMoveSpeed         CategoryKind = "player_move_speed"
	CategoryPlayerMaxHP             CategoryKind = "player_max_hp"
	CategoryWeaponDamageGlobal      CategoryKind = "weapon_damage_global"
	CategoryWeaponAttackSpeedGlobal CategoryKind = "weapon_attack_speed_global"
	CategoryNewWeapon               CategoryKind = "new_weapon"
	CategoryWeaponSpecific          CategoryKind = "weapon_specific"
	CategoryPassive                 CategoryKind = "passive"
)

// Repeatable reports whether upgrades of this kind stack without limit.
func (k CategoryKind) Repeatable() bool {
	switch k {
	case CategoryPlayerMoveSpeed, CategoryPlayerMaxHP, CategoryWeaponDamageGlobal, CategoryWeaponAttackSpeedGlobal:
		return true
	default:
		return false
	}
}

func (k CategoryKind) known() bool {
	switch k {
	case CategoryPlayerMoveSpeed, CategoryPlayerMaxHP, CategoryWeaponDamageGlobal, CategoryWeaponAttackSpeedGlobal,
		CategoryNewWeapon, CategoryWeaponSpecific, CategoryPassive:
		return true
	default:
		return false
	}
}

// PassiveKind names the accumulator a passive upgrade feeds.
type PassiveKind string

const (
	PassiveLifesteal PassiveKind = "lifesteal"
	PassiveGoldBonus PassiveKind = "gold_bonus"
	PassiveMagnet    PassiveKind = "magnet"
)

func (p PassiveKind) known() bool {
	return p == PassiveLifesteal || p == PassiveGoldBonus || p == PassiveMagnet
}

// Category is a tagged variant; only the fields relevant to Kind are set.
type Category struct {
	Kind       CategoryKind   `json:"kind" yaml:"kind"`
	WeaponID   string         `json:"weaponId,omitempty" yaml:"weaponId,omitempty"`
	WeaponKind weapons.Kind   `json:"weaponKind,omitempty" yaml:"weaponKind,omitempty"`
	Effect     weapons.Effect `json:"effect,omitempty" yaml:"effect,omitempty"`
	Passive    PassiveKind    `json:"passive,omitempty" yaml:"passive,omitempty"`
}

// String renders the category for logs, e.g. weapon_specific(crossbow,add_pierce).
func (c Category) String() string {
	switch c.Kind {
	case CategoryNewWeapon:
		return fmt.Sprintf("%s(%s)", c.Kind, c.WeaponID)
	case CategoryWeaponSpecific:
		return fmt.Sprintf("%s(%s,%s)", c.Kind, c.WeaponKind, c.Effect)
	case CategoryPassive:
		return fmt.Sprintf("%s(%s)", c.Kind, c.Passive)
	default:
		return string(c.Kind)
	}
}

// Definition is one immutable catalog entry. Magnitude is a percentage for
// move speed, global damage, global attack speed and the lifesteal/gold
// passives, a flat amount for max HP, a multiplier for magnet and scaling
// weapon effects, and a count for additive weapon effects.
type Definition struct {
	ID             string   `json:"id" yaml:"id"`
	Category       Category `json:"category" yaml:"category"`
	Magnitude      float64  `json:"magnitude" yaml:"magnitude"`
	RarityWeight   int      `json:"rarityWeight" yaml:"rarityWeight"`
	Prerequisite   string   `json:"prerequisite,omitempty" yaml:"prerequisite,omitempty"`
	Tier           int      `json:"tier,omitempty" yaml:"tier,omitempty"`
	NameKey        string   `json:"nameKey,omitempty" yaml:"nameKey,omitempty"`
	DescriptionKey string   `json:"descriptionKey,omitempty" yaml:"descriptionKey,omitempty"`
}

// IsRepeatable reports whether the definition stacks and is never recorded as applied.
func (d *Definition) IsRepeatable() bool {
	return d != nil && d.Category.Kind.Repeatable()
}

// Validate reports the first structural problem that makes the definition unusable.
// A zero rarity weight is structurally valid.
func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil definition", ErrMalformedDefinition)
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedDefinition)
	}
	if !d.Category.Kind.known() {
		return fmt.Errorf("%w: %s has unknown category %q", ErrMalformedDefinition, d.ID, d.Category.Kind)
	}
	if math.IsNaN(d.Magnitude) || math.IsInf(d.Magnitude, 0) {
		return fmt.Errorf("%w: %s has non-finite magnitude", ErrMalformedDefinition, d.ID)
	}
	if d.RarityWeight < 0 {
		return fmt.Errorf("%w: %s has negative rarity weight %d", ErrMalformedDefinition, d.ID, d.RarityWeight)
	}
	if d.Prerequisite == d.ID {
		return fmt.Errorf("%w: %s requires itself", ErrMalformedDefinition, d.ID)
	}
	switch d.Category.Kind {
	case CategoryNewWeapon:
		if strings.TrimSpace(d.Category.WeaponID) == "" {
			return fmt.Errorf("%w: %s is missing a weapon id", ErrMalformedDefinition, d.ID)
		}
	case CategoryWeaponSpecific:
		if _, err := weapons.ParseKind(string(d.Category.WeaponKind)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedDefinition, d.ID, err)
		}
		if _, err := weapons.ParseEffect(string(d.Category.Effect)); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedDefinition, d.ID, err)
		}
		if !d.Category.WeaponKind.Supports(d.Category.Effect) {
			return fmt.Errorf("%w: %s: %s cannot %s", ErrMalformedDefinition, d.ID, d.Category.WeaponKind, d.Category.Effect)
		}
	case CategoryPassive:
		if !d.Category.Passive.known() {
			return fmt.Errorf("%w: %s has unknown passive %q", ErrMalformedDefinition, d.ID, d.Category.Passive)
		}
	}
	return nil
}
