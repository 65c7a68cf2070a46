package weapons

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnsupportedEffect reports an effect the handle's weapon family cannot express.
var ErrUnsupportedEffect = errors.New("effect not supported by weapon kind")

// Capability holds the tunable parameters of one live weapon. Kind-specific
// fields stay zero for families that do not use them.
type Capability struct {
	Damage          float64       `json:"damage"`
	Cooldown        time.Duration `json:"cooldown"`
	Knockback       float64       `json:"knockback"`
	ProjectileCount int           `json:"projectileCount,omitempty"`
	Pierce          int           `json:"pierce,omitempty"`
	AreaRadius      float64       `json:"areaRadius,omitempty"`
	PuddleRadius    float64       `json:"puddleRadius,omitempty"`
	PuddleDuration  time.Duration `json:"puddleDuration,omitempty"`
	PuddleHPScaling float64       `json:"puddleHpScaling,omitempty"`
	OrbitRadius     float64       `json:"orbitRadius,omitempty"`
	BladeCount      int           `json:"bladeCount,omitempty"`
}

// Handle is a live weapon instance owned by a run roster.
type Handle struct {
	weaponID   string
	kind       Kind
	capability Capability
}

// NewHandle wraps a resolved capability for the given weapon.
func NewHandle(weaponID string, kind Kind, capability Capability) *Handle {
	return &Handle{weaponID: weaponID, kind: kind, capability: capability}
}

// WeaponID returns the catalog identifier the handle was instantiated from.
func (h *Handle) WeaponID() string { return h.weaponID }

// Kind returns the weapon family.
func (h *Handle) Kind() Kind { return h.kind }

// Capability returns a copy of the current parameters.
func (h *Handle) Capability() Capability { return h.capability }

// EffectiveDamage multiplies the accumulated damage by an externally tracked
// character multiplier at read time.
func (h *Handle) EffectiveDamage(characterMultiplier float64) float64 {
	if !(characterMultiplier > 0) {
		characterMultiplier = 1
	}
	return h.capability.Damage * characterMultiplier
}

// ScaleDamage multiplies the weapon damage.
func (h *Handle) ScaleDamage(multiplier float64) {
	if !validMultiplier(multiplier) {
		return
	}
	h.capability.Damage *= multiplier
}

// ScaleCooldown multiplies the cooldown and clamps the result to floor.
func (h *Handle) ScaleCooldown(multiplier float64, floor time.Duration) {
	if !validMultiplier(multiplier) {
		multiplier = 0
	}
	scaled := time.Duration(float64(h.capability.Cooldown) * multiplier)
	if scaled < floor {
		scaled = floor
	}
	//1.- A cooldown already under the floor is never raised back up by an upgrade.
	if scaled > h.capability.Cooldown && h.capability.Cooldown <= floor {
		return
	}
	h.capability.Cooldown = scaled
}

// ScaleKnockback multiplies the knockback impulse.
func (h *Handle) ScaleKnockback(multiplier float64) {
	if !validMultiplier(multiplier) {
		return
	}
	h.capability.Knockback *= multiplier
}

// ApplyEffect runs a kind-specific modification. Additive effects add
// magnitude rounded to a whole count (minimum one); scaling effects multiply
// by magnitude.
func (h *Handle) ApplyEffect(effect Effect, magnitude float64) error {
	if !h.kind.Supports(effect) {
		return fmt.Errorf("%w: %s on %s", ErrUnsupportedEffect, effect, h.kind)
	}
	switch h.kind {
	case KindGreatsword:
		return h.applyScale(&h.capability.AreaRadius, magnitude)
	case KindCrossbow:
		if effect == EffectAddPierce {
			h.capability.Pierce += wholeCount(magnitude)
			return nil
		}
		h.capability.ProjectileCount += wholeCount(magnitude)
		return nil
	case KindFireStaff:
		if effect == EffectScaleArea {
			return h.applyScale(&h.capability.AreaRadius, magnitude)
		}
		h.capability.ProjectileCount += wholeCount(magnitude)
		return nil
	case KindPoisonFlask:
		switch effect {
		case EffectScalePuddleRadius:
			return h.applyScale(&h.capability.PuddleRadius, magnitude)
		case EffectScalePuddleDuration:
			if !validMultiplier(magnitude) {
				return fmt.Errorf("invalid multiplier %v", magnitude)
			}
			h.capability.PuddleDuration = time.Duration(float64(h.capability.PuddleDuration) * magnitude)
			return nil
		case EffectScalePuddleHPScaling:
			return h.applyScale(&h.capability.PuddleHPScaling, magnitude)
		default:
			h.capability.ProjectileCount += wholeCount(magnitude)
			return nil
		}
	case KindOrbitBlades:
		if effect == EffectAddOrbitBlade {
			h.capability.BladeCount += wholeCount(magnitude)
			return nil
		}
		return h.applyScale(&h.capability.OrbitRadius, magnitude)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrUnsupportedEffect, h.kind)
	}
}

func (h *Handle) applyScale(field *float64, multiplier float64) error {
	if !validMultiplier(multiplier) {
		return fmt.Errorf("invalid multiplier %v", multiplier)
	}
	*field *= multiplier
	return nil
}

func validMultiplier(value float64) bool {
	return value > 0 && !math.IsInf(value, 0)
}

func wholeCount(magnitude float64) int {
	if math.IsNaN(magnitude) {
		return 1
	}
	n := int(math.Round(magnitude))
	if n < 1 {
		return 1
	}
	return n
}
