package progression

import (
	"errors"
	"fmt"
	"time"

	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

// DefaultCooldownFloor is the lowest cooldown attack-speed upgrades may reach.
const DefaultCooldownFloor = 500 * time.Millisecond

// ErrInvariantViolated reports roster or passive caps broken by an apply.
var ErrInvariantViolated = errors.New("progression invariant violated")

// PickupField lets a magnet passive reach pickups that are already spawned.
type PickupField interface {
	// ScaleMagnetRadius multiplies the attraction radius of every live pickup
	// once and returns how many were touched.
	ScaleMagnetRadius(multiplier float64) int
}

// Applicator is the single writer of State and weapon rosters.
type Applicator struct {
	factory weapons.Factory
	pickups PickupField
	floor   time.Duration
	logger  *logging.Logger
}

// ApplicatorOption customises an Applicator.
type ApplicatorOption func(*Applicator)

// WithFactory sets the factory used by new-weapon upgrades.
func WithFactory(factory weapons.Factory) ApplicatorOption {
	return func(a *Applicator) { a.factory = factory }
}

// WithPickups sets the pickup field reached by magnet passives.
func WithPickups(pickups PickupField) ApplicatorOption {
	return func(a *Applicator) { a.pickups = pickups }
}

// WithCooldownFloor overrides DefaultCooldownFloor.
func WithCooldownFloor(floor time.Duration) ApplicatorOption {
	return func(a *Applicator) {
		if floor > 0 {
			a.floor = floor
		}
	}
}

// WithApplicatorLogger sets the logger for warnings.
func WithApplicatorLogger(logger *logging.Logger) ApplicatorOption {
	return func(a *Applicator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewApplicator builds an applicator backed by the embedded balance factory
// unless WithFactory says otherwise.
func NewApplicator(opts ...ApplicatorOption) *Applicator {
	applicator := &Applicator{floor: DefaultCooldownFloor, logger: logging.L()}
	for _, opt := range opts {
		if opt != nil {
			opt(applicator)
		}
	}
	if applicator.factory == nil {
		applicator.factory = weapons.NewBalanceFactory()
	}
	return applicator
}

// CooldownFloor returns the configured clamp.
func (a *Applicator) CooldownFloor() time.Duration { return a.floor }

// EquipStarter instantiates the run's first weapon.
func (a *Applicator) EquipStarter(weaponID string, state *State, roster *weapons.Roster) error {
	if state == nil || roster == nil {
		return errors.New("equip starter: state and roster are required")
	}
	handle, err := a.factory.Instantiate(weaponID)
	if err != nil {
		return fmt.Errorf("equip starter: %w", err)
	}
	if err := roster.Add(handle); err != nil {
		return fmt.Errorf("equip starter: %w", err)
	}
	state.recordEquipped(weaponID)
	return nil
}

// Apply mutates state, roster and the player for one accepted upgrade.
// Rejected or unreachable upgrades log a warning and change nothing; only a
// broken cap after dispatch yields an error.
func (a *Applicator) Apply(def *upgrades.Definition, state *State, roster *weapons.Roster, sink player.StatSink) error {
	if state == nil || roster == nil {
		return errors.New("apply: state and roster are required")
	}
	//1.- Re-run the rules; a missing weapon kind is still recorded as a no-op
	// once the tier order holds.
	err := Check(def, state, roster)
	if errors.Is(err, ErrNoMatchingWeapon) {
		err = checkPrerequisite(def, state)
	}
	if err != nil {
		a.logger.Warn("upgrade rejected at apply", logging.String("upgrade", definitionID(def)), logging.Error(err))
		return nil
	}

	//2.- Dispatch by category.
	magnitude := def.Magnitude
	switch def.Category.Kind {
	case upgrades.CategoryPlayerMoveSpeed:
		if sink == nil {
			a.logger.Warn("move speed upgrade without player", logging.String("upgrade", def.ID))
			return nil
		}
		sink.SetMoveSpeed(sink.MoveSpeed() * (1 + magnitude/100))
	case upgrades.CategoryPlayerMaxHP:
		if sink == nil {
			a.logger.Warn("max hp upgrade without player", logging.String("upgrade", def.ID))
			return nil
		}
		sink.IncreaseMaxHP(magnitude)
	case upgrades.CategoryWeaponDamageGlobal:
		multiplier := 1 + magnitude/100
		roster.Each(func(h *weapons.Handle) { h.ScaleDamage(multiplier) })
	case upgrades.CategoryWeaponAttackSpeedGlobal:
		multiplier := 1 - magnitude/100
		roster.Each(func(h *weapons.Handle) { h.ScaleCooldown(multiplier, a.floor) })
	case upgrades.CategoryNewWeapon:
		if !a.addWeapon(def, state, roster) {
			return nil
		}
	case upgrades.CategoryWeaponSpecific:
		a.applyWeaponEffect(def, roster)
	case upgrades.CategoryPassive:
		a.applyPassive(def, state)
	}

	//3.- Bookkeeping for upgrades taken at most once.
	if !def.IsRepeatable() {
		state.recordApplied(def.ID)
	}
	return checkInvariants(state, roster)
}

func (a *Applicator) addWeapon(def *upgrades.Definition, state *State, roster *weapons.Roster) bool {
	weaponID := def.Category.WeaponID
	handle, err := a.factory.Instantiate(weaponID)
	if err != nil {
		a.logger.Warn("weapon instantiation failed", logging.String("upgrade", def.ID), logging.String("weapon", weaponID), logging.Error(err))
		return false
	}
	if err := roster.Add(handle); err != nil {
		a.logger.Warn("weapon not added to roster", logging.String("upgrade", def.ID), logging.String("weapon", weaponID), logging.Error(err))
		return false
	}
	state.recordEquipped(weaponID)
	return true
}

func (a *Applicator) applyWeaponEffect(def *upgrades.Definition, roster *weapons.Roster) {
	matched := 0
	roster.Each(func(h *weapons.Handle) {
		if h.Kind() != def.Category.WeaponKind {
			return
		}
		matched++
		if err := h.ApplyEffect(def.Category.Effect, def.Magnitude); err != nil {
			a.logger.Warn("weapon effect failed", logging.String("upgrade", def.ID), logging.String("weapon", h.WeaponID()), logging.Error(err))
		}
	})
	if matched == 0 {
		a.logger.Debug("weapon effect matched no weapon", logging.String("upgrade", def.ID))
	}
}

func (a *Applicator) applyPassive(def *upgrades.Definition, state *State) {
	switch def.Category.Passive {
	case upgrades.PassiveLifesteal:
		state.addLifesteal(def.Magnitude)
	case upgrades.PassiveGoldBonus:
		state.addGoldBonus(def.Magnitude)
	case upgrades.PassiveMagnet:
		//1.- Only pickups alive right now are touched; nothing is stored for later spawns.
		touched := 0
		if a.pickups != nil {
			touched = a.pickups.ScaleMagnetRadius(def.Magnitude)
		}
		state.countMagnetBroadcast()
		a.logger.Debug("magnet broadcast", logging.String("upgrade", def.ID), logging.Int("pickups", touched))
	}
	state.occupyPassiveSlot()
}

func checkInvariants(state *State, roster *weapons.Roster) error {
	if roster.Len() > weapons.Capacity {
		return fmt.Errorf("%w: roster holds %d weapons", ErrInvariantViolated, roster.Len())
	}
	if state.PassiveSlots() > MaxPassiveSlots {
		return fmt.Errorf("%w: %d passive slots occupied", ErrInvariantViolated, state.PassiveSlots())
	}
	return nil
}

func definitionID(def *upgrades.Definition) string {
	if def == nil {
		return ""
	}
	return def.ID
}
