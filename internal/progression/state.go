package progression

import "sort"

// MaxPassiveSlots bounds concurrently held passive upgrades.
const MaxPassiveSlots = 3

// State is the mutable bookkeeping for one run. Read accessors are safe on a
// nil receiver; only the applicator mutates it.
type State struct {
	applied          map[string]struct{}
	appliedOrder     []string
	equipped         map[string]struct{}
	passiveSlots     int
	lifesteal        float64
	goldBonus        float64
	magnetBroadcasts int
}

// NewState returns zeroed bookkeeping for a fresh run.
func NewState() *State {
	return &State{
		applied:  make(map[string]struct{}),
		equipped: make(map[string]struct{}),
	}
}

// HasApplied reports whether a non-repeatable upgrade id was taken.
func (s *State) HasApplied(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.applied[id]
	return ok
}

// AppliedIDs lists taken non-repeatable ids in the order they were applied.
func (s *State) AppliedIDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.appliedOrder))
	copy(out, s.appliedOrder)
	return out
}

// IsEquipped reports whether a weapon id is equipped.
func (s *State) IsEquipped(weaponID string) bool {
	if s == nil {
		return false
	}
	_, ok := s.equipped[weaponID]
	return ok
}

// EquippedIDs lists equipped weapon ids in lexical order.
func (s *State) EquippedIDs() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.equipped))
	for id := range s.equipped {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// PassiveSlots returns the number of occupied passive slots.
func (s *State) PassiveSlots() int {
	if s == nil {
		return 0
	}
	return s.passiveSlots
}

// LifestealPercent returns the accumulated lifesteal bonus.
func (s *State) LifestealPercent() float64 {
	if s == nil {
		return 0
	}
	return s.lifesteal
}

// GoldBonusPercent returns the accumulated gold bonus.
func (s *State) GoldBonusPercent() float64 {
	if s == nil {
		return 0
	}
	return s.goldBonus
}

// MagnetBroadcasts counts magnet passives that were broadcast to live pickups.
func (s *State) MagnetBroadcasts() int {
	if s == nil {
		return 0
	}
	return s.magnetBroadcasts
}

func (s *State) recordApplied(id string) {
	if _, ok := s.applied[id]; ok {
		return
	}
	s.applied[id] = struct{}{}
	s.appliedOrder = append(s.appliedOrder, id)
}

func (s *State) recordEquipped(weaponID string) {
	s.equipped[weaponID] = struct{}{}
}

func (s *State) occupyPassiveSlot() {
	s.passiveSlots++
}

func (s *State) addLifesteal(percent float64) {
	if percent > 0 {
		s.lifesteal += percent
	}
}

func (s *State) addGoldBonus(percent float64) {
	if percent > 0 {
		s.goldBonus += percent
	}
}

func (s *State) countMagnetBroadcast() {
	s.magnetBroadcasts++
}

// StateSnapshot is a serialisable view of State.
type StateSnapshot struct {
	Applied          []string `json:"applied"`
	Equipped         []string `json:"equipped"`
	PassiveSlots     int      `json:"passiveSlots"`
	LifestealPercent float64  `json:"lifestealPercent"`
	GoldBonusPercent float64  `json:"goldBonusPercent"`
	MagnetBroadcasts int      `json:"magnetBroadcasts"`
}

// Snapshot copies the current bookkeeping.
func (s *State) Snapshot() StateSnapshot {
	return StateSnapshot{
		Applied:          s.AppliedIDs(),
		Equipped:         s.EquippedIDs(),
		PassiveSlots:     s.PassiveSlots(),
		LifestealPercent: s.LifestealPercent(),
		GoldBonusPercent: s.GoldBonusPercent(),
		MagnetBroadcasts: s.MagnetBroadcasts(),
	}
}
