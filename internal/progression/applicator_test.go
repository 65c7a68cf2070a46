package progression

import (
	"errors"
	"math"
	"testing"
	"time"

	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

func TestScenarioMaxHPStacks(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	stats := player.NewStats(player.Baseline{MaxHP: 100, MoveSpeed: 5})
	applicator := NewApplicator()
	def := ptr(maxHP("max_hp", 10))
	for i := 1; i <= 2; i++ {
		if err := applicator.Apply(def, state, roster, stats); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if got := stats.Snapshot().MaxHP; got != 100+float64(10*i) {
			t.Fatalf("after %d applies expected max hp %d, got %v", i, 100+10*i, got)
		}
	}
	if len(state.AppliedIDs()) != 0 {
		t.Fatalf("repeatable upgrade must not be recorded, got %v", state.AppliedIDs())
	}
}

func TestMoveSpeedScalesByPercent(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	stats := player.NewStats(player.Baseline{MaxHP: 100, MoveSpeed: 4})
	def := &upgrades.Definition{ID: "move", Category: upgrades.Category{Kind: upgrades.CategoryPlayerMoveSpeed}, Magnitude: 25, RarityWeight: 1}
	if err := NewApplicator().Apply(def, state, roster, stats); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if math.Abs(stats.MoveSpeed()-5) > 1e-9 {
		t.Fatalf("expected move speed 5, got %v", stats.MoveSpeed())
	}
}

func TestCooldownFloorHolds(t *testing.T) {
	state, roster := testRoster(t, "greatsword", "crossbow", "orbit_blades")
	def := &upgrades.Definition{ID: "haste", Category: upgrades.Category{Kind: upgrades.CategoryWeaponAttackSpeedGlobal}, Magnitude: 30, RarityWeight: 1}
	applicator := NewApplicator()
	for i := 0; i < 25; i++ {
		if err := applicator.Apply(def, state, roster, nil); err != nil {
			t.Fatalf("apply: %v", err)
		}
		roster.Each(func(h *weapons.Handle) {
			if h.Capability().Cooldown < DefaultCooldownFloor {
				t.Fatalf("%s cooldown %s fell below floor", h.WeaponID(), h.Capability().Cooldown)
			}
		})
	}
	roster.Each(func(h *weapons.Handle) {
		if h.Capability().Cooldown != DefaultCooldownFloor {
			t.Fatalf("%s expected to rest on the floor, got %s", h.WeaponID(), h.Capability().Cooldown)
		}
	})
}

func TestCustomCooldownFloor(t *testing.T) {
	state, roster := testRoster(t, "crossbow")
	def := &upgrades.Definition{ID: "haste", Category: upgrades.Category{Kind: upgrades.CategoryWeaponAttackSpeedGlobal}, Magnitude: 90, RarityWeight: 1}
	if err := NewApplicator(WithCooldownFloor(time.Second)).Apply(def, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := roster.Handles()[0].Capability().Cooldown; got != time.Second {
		t.Fatalf("expected custom floor, got %s", got)
	}
}

func TestGlobalDamageComposesMultiplicatively(t *testing.T) {
	state, roster := testRoster(t, "greatsword", "crossbow")
	base := map[string]float64{}
	roster.Each(func(h *weapons.Handle) { base[h.WeaponID()] = h.Capability().Damage })
	def := &upgrades.Definition{ID: "might", Category: upgrades.Category{Kind: upgrades.CategoryWeaponDamageGlobal}, Magnitude: 10, RarityWeight: 1}
	applicator := NewApplicator()
	for i := 0; i < 2; i++ {
		if err := applicator.Apply(def, state, roster, nil); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	roster.Each(func(h *weapons.Handle) {
		want := base[h.WeaponID()] * 1.1 * 1.1
		if math.Abs(h.Capability().Damage-want) > 1e-9 {
			t.Fatalf("%s expected damage %v, got %v", h.WeaponID(), want, h.Capability().Damage)
		}
		if math.Abs(h.EffectiveDamage(1.5)-want*1.5) > 1e-9 {
			t.Fatalf("%s expected character multiplier applied at read time", h.WeaponID())
		}
	})
}

func TestNewWeaponAppendsAndRecords(t *testing.T) {
	var attached []string
	factory := weapons.NewBalanceFactory(weapons.WithAttacher(func(h *weapons.Handle) error {
		attached = append(attached, h.WeaponID())
		return nil
	}))
	state, roster := testRoster(t, "greatsword")
	def := ptr(newWeapon("new_crossbow", "crossbow"))
	if err := NewApplicator(WithFactory(factory)).Apply(def, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if roster.Len() != 2 || !roster.Has("crossbow") {
		t.Fatalf("expected crossbow on roster, got %v", roster.IDs())
	}
	if !state.IsEquipped("crossbow") || !state.HasApplied("new_crossbow") {
		t.Fatalf("expected bookkeeping for the new weapon, got %+v", state.Snapshot())
	}
	if len(attached) != 1 {
		t.Fatalf("expected factory attacher to run once, got %v", attached)
	}
}

func TestNewWeaponOnFullRosterIsANoOp(t *testing.T) {
	state, roster := testRoster(t, "greatsword", "crossbow", "fire_staff", "poison_flask")
	logger, capture := logging.NewCaptureLogger()
	def := ptr(newWeapon("new_orbit_blades", "orbit_blades"))
	if err := NewApplicator(WithApplicatorLogger(logger)).Apply(def, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if roster.Len() != weapons.Capacity || state.IsEquipped("orbit_blades") || state.HasApplied(def.ID) {
		t.Fatalf("full roster must be left untouched")
	}
	if len(capture.Messages(logging.WarnLevel)) != 1 {
		t.Fatalf("expected a warning for the rejected upgrade")
	}
}

func TestWeaponSpecificTouchesOnlyMatchingKinds(t *testing.T) {
	state, roster := testRoster(t, "crossbow", "heavy_crossbow", "greatsword")
	def := ptr(specific("crossbow_pierce_1", weapons.KindCrossbow, weapons.EffectAddPierce, 1))
	if err := NewApplicator().Apply(def, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	pierce := map[string]int{}
	roster.Each(func(h *weapons.Handle) { pierce[h.WeaponID()] = h.Capability().Pierce })
	if pierce["crossbow"] != 1 || pierce["heavy_crossbow"] != 2 || pierce["greatsword"] != 0 {
		t.Fatalf("unexpected pierce values %v", pierce)
	}
}

func TestWeaponSpecificWithoutMatchIsRecordedNoOp(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	before := roster.Snapshot()
	def := ptr(specific("orbit_radius_1", weapons.KindOrbitBlades, weapons.EffectScaleOrbitRadius, 1.3))
	if err := NewApplicator().Apply(def, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if roster.Snapshot()[0] != before[0] {
		t.Fatalf("unmatched weapon effect must not touch other weapons")
	}
	if !state.HasApplied(def.ID) {
		t.Fatalf("expected no-op weapon effect to still be recorded")
	}
}

func TestWeaponSpecificWithoutMatchKeepsTierOrder(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	applicator := NewApplicator()
	tier2 := specific("xbow_multi_2", weapons.KindCrossbow, weapons.EffectAddProjectile, 1)
	tier3 := specific("xbow_multi_3", weapons.KindCrossbow, weapons.EffectAddProjectile, 1)
	tier3.Prerequisite = tier2.ID

	//1.- Without its predecessor the tier is rejected even though no crossbow is held.
	if err := applicator.Apply(&tier3, state, roster, nil); err != nil {
		t.Fatalf("apply tier 3: %v", err)
	}
	if state.HasApplied(tier3.ID) {
		t.Fatalf("tier 3 must not be recorded before tier 2, applied %v", state.AppliedIDs())
	}

	//2.- With the predecessor recorded, the unmatched tier becomes a recorded no-op.
	if err := applicator.Apply(&tier2, state, roster, nil); err != nil {
		t.Fatalf("apply tier 2: %v", err)
	}
	if err := applicator.Apply(&tier3, state, roster, nil); err != nil {
		t.Fatalf("apply tier 3: %v", err)
	}
	if !state.HasApplied(tier2.ID) || !state.HasApplied(tier3.ID) {
		t.Fatalf("expected both tiers recorded, got %v", state.AppliedIDs())
	}
}

func TestPassivesAccumulate(t *testing.T) {
	state, roster := testRoster(t, "greatsword")
	pickups := &fakePickups{live: 12}
	applicator := NewApplicator(WithPickups(pickups))
	steps := []upgrades.Definition{
		passive("lifesteal_1", upgrades.PassiveLifesteal, 3),
		passive("gold_bonus_1", upgrades.PassiveGoldBonus, 10),
		passive("magnet_1", upgrades.PassiveMagnet, 1.5),
	}
	for i := range steps {
		if err := applicator.Apply(&steps[i], state, roster, nil); err != nil {
			t.Fatalf("apply %s: %v", steps[i].ID, err)
		}
	}
	if state.LifestealPercent() != 3 || state.GoldBonusPercent() != 10 {
		t.Fatalf("unexpected accumulators %+v", state.Snapshot())
	}
	if len(pickups.multipliers) != 1 || pickups.multipliers[0] != 1.5 {
		t.Fatalf("expected one magnet broadcast of 1.5, got %v", pickups.multipliers)
	}
	if state.MagnetBroadcasts() != 1 || state.PassiveSlots() != 3 {
		t.Fatalf("unexpected passive bookkeeping %+v", state.Snapshot())
	}
	again := passive("lifesteal_2", upgrades.PassiveLifesteal, 3)
	if err := applicator.Apply(&again, state, roster, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if state.PassiveSlots() != MaxPassiveSlots || state.LifestealPercent() != 3 {
		t.Fatalf("a fourth passive must be rejected, got %+v", state.Snapshot())
	}
}

func TestAppliedIDsNeverDuplicate(t *testing.T) {
	state, roster := testRoster(t, "crossbow")
	def := ptr(specific("crossbow_multishot_1", weapons.KindCrossbow, weapons.EffectAddProjectile, 1))
	applicator := NewApplicator()
	for i := 0; i < 3; i++ {
		if err := applicator.Apply(def, state, roster, nil); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if len(state.AppliedIDs()) != 1 {
		t.Fatalf("expected a single applied entry, got %v", state.AppliedIDs())
	}
	if got := roster.Handles()[0].Capability().ProjectileCount; got != 2 {
		t.Fatalf("expected the effect to land once, got %d projectiles", got)
	}
}

func TestCheckInvariantsReportsBreaches(t *testing.T) {
	state := NewState()
	for i := 0; i < MaxPassiveSlots+1; i++ {
		state.occupyPassiveSlot()
	}
	if err := checkInvariants(state, weapons.NewRoster()); !errors.Is(err, ErrInvariantViolated) {
		t.Fatalf("expected ErrInvariantViolated, got %v", err)
	}
}
