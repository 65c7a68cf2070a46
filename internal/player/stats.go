package player

import "sync"

// StatSink is the slice of the player entity the progression engine writes to.
type StatSink interface {
	IncreaseMaxHP(flat float64)
	SetMoveSpeed(value float64)
	MoveSpeed() float64
}

// Stats is the in-process player entity used by hosted runs.
type Stats struct {
	mu               sync.RWMutex
	maxHP            float64
	hp               float64
	moveSpeed        float64
	damageMultiplier float64
}

// NewStats seeds a player entity from a baseline at full health.
func NewStats(base Baseline) *Stats {
	multiplier := base.DamageMultiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	return &Stats{
		maxHP:            base.MaxHP,
		hp:               base.MaxHP,
		moveSpeed:        base.MoveSpeed,
		damageMultiplier: multiplier,
	}
}

// IncreaseMaxHP raises the cap and heals by the same amount.
func (s *Stats) IncreaseMaxHP(flat float64) {
	if !(flat > 0) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxHP += flat
	s.hp += flat
	if s.hp > s.maxHP {
		s.hp = s.maxHP
	}
}

// SetMoveSpeed replaces the movement speed; negative values clamp to zero.
func (s *Stats) SetMoveSpeed(value float64) {
	if value < 0 {
		value = 0
	}
	s.mu.Lock()
	s.moveSpeed = value
	s.mu.Unlock()
}

// MoveSpeed returns the current movement speed.
func (s *Stats) MoveSpeed() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moveSpeed
}

// TakeDamage reduces current health, never below zero.
func (s *Stats) TakeDamage(amount float64) {
	if !(amount > 0) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hp -= amount
	if s.hp < 0 {
		s.hp = 0
	}
}

// DamageMultiplier is the character multiplier weapons apply at read time.
func (s *Stats) DamageMultiplier() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.damageMultiplier
}

// Snapshot is a serialisable view of Stats.
type Snapshot struct {
	MaxHP            float64 `json:"maxHp"`
	HP               float64 `json:"hp"`
	MoveSpeed        float64 `json:"moveSpeed"`
	DamageMultiplier float64 `json:"damageMultiplier"`
}

// Snapshot copies the current values.
func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{MaxHP: s.maxHP, HP: s.hp, MoveSpeed: s.moveSpeed, DamageMultiplier: s.damageMultiplier}
}
