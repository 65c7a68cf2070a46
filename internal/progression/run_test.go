package progression

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/weapons"
)

func knightBaseline(t *testing.T) player.Baseline {
	t.Helper()
	baseline, err := player.NewBaseline("knight", nil)
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	return baseline
}

func TestNewRunEquipsStarter(t *testing.T) {
	recorder := &memoryRecorder{}
	run, err := NewRun("run-1", "seed", knightBaseline(t), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if run.Roster().Len() != 1 || !run.State().IsEquipped("greatsword") {
		t.Fatalf("expected greatsword equipped, got %v", run.Roster().IDs())
	}
	if len(recorder.events) != 1 || recorder.events[0].kind != EventRunStarted {
		t.Fatalf("expected run_started event, got %v", recorder.kinds())
	}
	if run.Current() != nil || run.Pending() != 0 {
		t.Fatalf("a fresh run has nothing to choose")
	}
}

func TestNewRunRejectsUnknownStarter(t *testing.T) {
	baseline := knightBaseline(t)
	baseline.StartingWeapon = "catapult"
	if _, err := NewRun("run-x", "seed", baseline); !errors.Is(err, weapons.ErrUnknownWeapon) {
		t.Fatalf("expected ErrUnknownWeapon, got %v", err)
	}
}

func TestLevelUpChooseLoop(t *testing.T) {
	recorder := &memoryRecorder{}
	run, err := NewRun("run-2", "seed", knightBaseline(t), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	offer := run.LevelUp()
	if offer == nil || len(offer.Upgrades) != 3 {
		t.Fatalf("expected a three-way offer, got %+v", offer)
	}
	if _, err := run.Choose("not-offered"); !errors.Is(err, ErrNotOffered) {
		t.Fatalf("expected ErrNotOffered, got %v", err)
	}
	next, err := run.Choose(offer.Upgrades[0].ID)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if next != nil || run.Pending() != 0 {
		t.Fatalf("expected no further offers, got %+v pending %d", next, run.Pending())
	}
	if _, err := run.Choose(offer.Upgrades[0].ID); !errors.Is(err, ErrNoPendingOffer) {
		t.Fatalf("expected ErrNoPendingOffer, got %v", err)
	}
	want := []string{EventRunStarted, EventLevelUp, EventOffer, EventChoice}
	if !reflect.DeepEqual(recorder.kinds(), want) {
		t.Fatalf("expected events %v, got %v", want, recorder.kinds())
	}
	if len(recorder.snapshots) != 1 || recorder.snapshots[0].Level != 1 {
		t.Fatalf("expected one post-choice snapshot, got %d", len(recorder.snapshots))
	}
}

func TestPendingLevelUpsQueue(t *testing.T) {
	run, err := NewRun("run-3", "seed", knightBaseline(t))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	first := run.LevelUp()
	second := run.LevelUp()
	if first != second {
		t.Fatalf("a second level-up must not replace the open offer")
	}
	if run.Pending() != 2 || first.Level != 1 {
		t.Fatalf("expected two pending with the first offer for level 1, got %d/%d", run.Pending(), first.Level)
	}
	next, err := run.Choose(first.Upgrades[0].ID)
	if err != nil {
		t.Fatalf("choose: %v", err)
	}
	if next == nil || next.Level != 2 || next.Draw != 1 {
		t.Fatalf("expected the level 2 offer to open, got %+v", next)
	}
	if remaining, err := run.Decline(); err != nil || remaining != nil {
		t.Fatalf("decline: %v %+v", err, remaining)
	}
	if run.Pending() != 0 {
		t.Fatalf("expected queue drained, got %d", run.Pending())
	}
}

func TestEmptyPoolSkipsLevelUp(t *testing.T) {
	catalog := testCatalog(t, specific("crossbow_only", weapons.KindCrossbow, weapons.EffectAddPierce, 1))
	recorder := &memoryRecorder{}
	run, err := NewRun("run-4", "seed", knightBaseline(t), WithCatalog(catalog), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	if offer := run.LevelUp(); offer != nil {
		t.Fatalf("expected no offer, got %+v", offer)
	}
	if run.Pending() != 0 {
		t.Fatalf("an empty pool must resolve the level-up, pending %d", run.Pending())
	}
	kinds := recorder.kinds()
	if kinds[len(kinds)-1] != EventSkipped {
		t.Fatalf("expected skipped event, got %v", kinds)
	}
}

func TestRunsWithSameSeedDrawSameOffers(t *testing.T) {
	play := func() [][]string {
		run, err := NewRun("run", "fixed-seed", knightBaseline(t), WithClock(func() time.Time { return time.Unix(0, 0) }))
		if err != nil {
			t.Fatalf("new run: %v", err)
		}
		var offers [][]string
		for i := 0; i < 10; i++ {
			offer := run.LevelUp()
			if offer == nil {
				continue
			}
			offers = append(offers, offer.IDs())
			if _, err := run.Choose(offer.Upgrades[len(offer.Upgrades)-1].ID); err != nil {
				t.Fatalf("choose: %v", err)
			}
		}
		return offers
	}
	first, second := play(), play()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical offer sequences\n%v\n%v", first, second)
	}
}

func TestCapInvariantsHoldOverLongRuns(t *testing.T) {
	for seed := 0; seed < 20; seed++ {
		rng := rand.New(rand.NewSource(int64(seed)))
		run, err := NewRun("cap", NewRunSeed(), knightBaseline(t), WithApplicatorOptions(WithPickups(&fakePickups{live: 3})))
		if err != nil {
			t.Fatalf("new run: %v", err)
		}
		for level := 0; level < 60; level++ {
			offer := run.LevelUp()
			if offer == nil {
				continue
			}
			pick := offer.Upgrades[rng.Intn(len(offer.Upgrades))]
			if _, err := run.Choose(pick.ID); err != nil {
				t.Fatalf("choose %s: %v", pick.ID, err)
			}
			if run.Roster().Len() > weapons.Capacity {
				t.Fatalf("roster exceeded capacity: %v", run.Roster().IDs())
			}
			if run.State().PassiveSlots() > MaxPassiveSlots {
				t.Fatalf("passive slots exceeded: %d", run.State().PassiveSlots())
			}
			seen := map[string]bool{}
			for _, id := range run.State().AppliedIDs() {
				if seen[id] {
					t.Fatalf("applied twice: %s", id)
				}
				seen[id] = true
			}
		}
	}
}

func TestSnapshotFoldsCharacterMultiplier(t *testing.T) {
	baseline, err := player.NewBaseline("pyromancer", player.ShopLevels{Damage: 2})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}
	run, err := NewRun("run-5", "seed", baseline)
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	snap := run.Snapshot()
	if len(snap.Weapons) != 1 || snap.Player == nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	weapon := snap.Weapons[0]
	if weapon.EffectiveDamage <= weapon.Capability.Damage {
		t.Fatalf("expected effective damage above base, got %v vs %v", weapon.EffectiveDamage, weapon.Capability.Damage)
	}
}

func TestQueueDrainsInOrder(t *testing.T) {
	run, err := NewRun("run-6", "seed", knightBaseline(t), WithCatalog(testCatalog(t, maxHP("max_hp", 10))))
	if err != nil {
		t.Fatalf("new run: %v", err)
	}
	var queue Queue
	queue.Push(Command{Kind: CommandLevelUp})
	queue.Push(Command{Kind: CommandKill})
	queue.Push(Command{Kind: CommandChoose, UpgradeID: "max_hp"})
	queue.Push(Command{Kind: "teleport"})
	results := queue.Drain(run)
	if len(results) != 4 || queue.Len() != 0 {
		t.Fatalf("expected four results and an empty queue, got %d/%d", len(results), queue.Len())
	}
	if results[0].Offer == nil || results[0].Offer.IDs()[0] != "max_hp" {
		t.Fatalf("expected max_hp offer, got %+v", results[0].Offer)
	}
	if results[2].Err != nil || results[2].Offer != nil {
		t.Fatalf("unexpected choose result %+v", results[2])
	}
	var unknown *UnknownCommandError
	if !errors.As(results[3].Err, &unknown) {
		t.Fatalf("expected UnknownCommandError, got %v", results[3].Err)
	}
	if run.Kills() != 1 {
		t.Fatalf("expected one kill, got %d", run.Kills())
	}
	if got := run.Snapshot().Player.MaxHP; got != 130 {
		t.Fatalf("expected max hp 130, got %v", got)
	}
}
