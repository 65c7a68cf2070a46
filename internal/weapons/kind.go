package weapons

import (
	"fmt"
	"strings"
)

// Kind enumerates the closed set of weapon families a roster may hold.
type Kind string

const (
	KindGreatsword  Kind = "greatsword"
	KindCrossbow    Kind = "crossbow"
	KindFireStaff   Kind = "fire_staff"
	KindPoisonFlask Kind = "poison_flask"
	KindOrbitBlades Kind = "orbit_blades"
)

// Kinds lists every supported weapon family in catalog order.
func Kinds() []Kind {
	return []Kind{KindGreatsword, KindCrossbow, KindFireStaff, KindPoisonFlask, KindOrbitBlades}
}

// ParseKind validates a textual weapon kind.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Kinds() {
		if kind == known {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown weapon kind %q", raw)
}

// Effect names a weapon-kind-specific modification.
type Effect string

const (
	EffectAddProjectile        Effect = "add_projectile"
	EffectAddPierce            Effect = "add_pierce"
	EffectScaleArea            Effect = "scale_area"
	EffectScalePuddleRadius    Effect = "scale_puddle_radius"
	EffectScalePuddleDuration  Effect = "scale_puddle_duration"
	EffectScalePuddleHPScaling Effect = "scale_puddle_hp_scaling"
	EffectScaleOrbitRadius     Effect = "scale_orbit_radius"
	EffectAddOrbitBlade        Effect = "add_orbit_blade"
)

// Effects lists every known effect.
func Effects() []Effect {
	return []Effect{
		EffectAddProjectile,
		EffectAddPierce,
		EffectScaleArea,
		EffectScalePuddleRadius,
		EffectScalePuddleDuration,
		EffectScalePuddleHPScaling,
		EffectScaleOrbitRadius,
		EffectAddOrbitBlade,
	}
}

// ParseEffect validates a textual effect name.
func ParseEffect(raw string) (Effect, error) {
	effect := Effect(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Effects() {
		if effect == known {
			return effect, nil
		}
	}
	return "", fmt.Errorf("unknown weapon effect %q", raw)
}

// Supports reports whether the weapon family understands effect.
func (k Kind) Supports(effect Effect) bool {
	switch k {
	case KindGreatsword:
		return effect == EffectScaleArea
	case KindCrossbow:
		return effect == EffectAddProjectile || effect == EffectAddPierce
	case KindFireStaff:
		return effect == EffectAddProjectile || effect == EffectScaleArea
	case KindPoisonFlask:
		switch effect {
		case EffectAddProjectile, EffectScalePuddleRadius, EffectScalePuddleDuration, EffectScalePuddleHPScaling:
			return true
		}
		return false
	case KindOrbitBlades:
		return effect == EffectScaleOrbitRadius || effect == EffectAddOrbitBlade
	default:
		return false
	}
}
