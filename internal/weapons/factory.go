package weapons

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownWeapon is returned when a weapon id is absent from the balance catalog.
var ErrUnknownWeapon = errors.New("unknown weapon identifier")

// Factory produces live handles for new-weapon upgrades and starter weapons.
type Factory interface {
	Instantiate(weaponID string) (*Handle, error)
}

// Attacher binds a freshly built handle to the surrounding game world.
type Attacher func(*Handle) error

// BalanceFactory instantiates handles from a BalanceCatalog.
type BalanceFactory struct {
	catalog BalanceCatalog
	attach  Attacher
}

// FactoryOption customises a BalanceFactory.
type FactoryOption func(*BalanceFactory)

// WithCatalog swaps the embedded balance table.
func WithCatalog(catalog BalanceCatalog) FactoryOption {
	return func(f *BalanceFactory) { f.catalog = catalog.Clone() }
}

// WithAttacher installs a callback invoked for every instantiated handle.
func WithAttacher(attach Attacher) FactoryOption {
	return func(f *BalanceFactory) { f.attach = attach }
}

// NewBalanceFactory builds a factory over the embedded balance catalog.
func NewBalanceFactory(opts ...FactoryOption) *BalanceFactory {
	factory := &BalanceFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	if factory.catalog.Weapons == nil {
		factory.catalog = Balance()
	}
	return factory
}

// Resolve merges the archetype defaults with the per-weapon overrides.
func (f *BalanceFactory) Resolve(weaponID string) (Kind, Capability, error) {
	variant, ok := f.catalog.Weapons[weaponID]
	if !ok {
		return "", Capability{}, fmt.Errorf("%w: %q", ErrUnknownWeapon, weaponID)
	}
	base, ok := f.catalog.Archetypes[variant.Kind]
	if !ok {
		return "", Capability{}, fmt.Errorf("missing archetype configuration for %q", variant.Kind)
	}
	capability := Capability{
		Damage:          pickFloat(base.Damage, variant.Damage),
		Cooldown:        durationFromSeconds(pickFloat(base.CooldownSeconds, variant.CooldownSeconds)),
		Knockback:       pickFloat(base.Knockback, variant.Knockback),
		ProjectileCount: pickInt(base.ProjectileCount, variant.ProjectileCount),
		Pierce:          pickInt(base.Pierce, variant.Pierce),
		AreaRadius:      pickFloat(base.AreaRadius, variant.AreaRadius),
		PuddleRadius:    pickFloat(base.PuddleRadius, variant.PuddleRadius),
		PuddleDuration:  durationFromSeconds(pickFloat(base.PuddleDurationSeconds, variant.PuddleDurationSeconds)),
		PuddleHPScaling: pickFloat(base.PuddleHPScaling, variant.PuddleHPScaling),
		OrbitRadius:     pickFloat(base.OrbitRadius, variant.OrbitRadius),
		BladeCount:      pickInt(base.BladeCount, variant.BladeCount),
	}
	return variant.Kind, capability, nil
}

// Known reports whether the catalog defines weaponID.
func (f *BalanceFactory) Known(weaponID string) bool {
	_, ok := f.catalog.Weapons[weaponID]
	return ok
}

// Instantiate resolves weaponID and hands the result to the attacher.
func (f *BalanceFactory) Instantiate(weaponID string) (*Handle, error) {
	kind, capability, err := f.Resolve(weaponID)
	if err != nil {
		return nil, err
	}
	handle := NewHandle(weaponID, kind, capability)
	if f.attach != nil {
		if err := f.attach(handle); err != nil {
			return nil, fmt.Errorf("attach %s: %w", weaponID, err)
		}
	}
	return handle, nil
}

func pickFloat(base float64, override *float64) float64 {
	//1.- Overrides win when present and non-negative; negative tuning falls back to the archetype.
	if override != nil && *override >= 0 {
		return *override
	}
	if base < 0 {
		return 0
	}
	return base
}

func pickInt(base int, override *int) int {
	if override != nil && *override >= 0 {
		return *override
	}
	if base < 0 {
		return 0
	}
	return base
}

func durationFromSeconds(seconds float64) time.Duration {
	if !(seconds > 0) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
