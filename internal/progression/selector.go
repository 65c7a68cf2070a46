package progression

import (
	"errors"
	"math/rand"

	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/upgrades"
	"hordeforge/engine/internal/weapons"
)

// ErrZeroTotalWeight is the panic value raised by debug selectors when every
// remaining candidate has zero rarity weight.
var ErrZeroTotalWeight = errors.New("candidate pool has zero total weight")

// Selector draws weighted offers without replacement.
type Selector struct {
	rng    *rand.Rand
	debug  bool
	logger *logging.Logger
}

// SelectorOption customises a Selector.
type SelectorOption func(*Selector)

// WithRand injects the random source.
func WithRand(rng *rand.Rand) SelectorOption {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// WithSeed seeds a private random source.
func WithSeed(seed int64) SelectorOption {
	return func(s *Selector) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithDebug makes zero-total-weight pools panic instead of falling back to a uniform draw.
func WithDebug(debug bool) SelectorOption {
	return func(s *Selector) { s.debug = debug }
}

// WithSelectorLogger sets the logger used for skipped definitions.
func WithSelectorLogger(logger *logging.Logger) SelectorOption {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelector builds a selector. Without WithRand or WithSeed it seeds from
// a fresh run seed.
func NewSelector(opts ...SelectorOption) *Selector {
	selector := &Selector{logger: logging.L()}
	for _, opt := range opts {
		if opt != nil {
			opt(selector)
		}
	}
	if selector.rng == nil {
		selector.rng = rand.New(rand.NewSource(DrawSeed(NewRunSeed(), 0)))
	}
	return selector
}

// Reseed restarts the random stream.
func (s *Selector) Reseed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// Eligible filters defs through Check, dropping repeated ids and logging
// malformed entries.
func (s *Selector) Eligible(defs []*upgrades.Definition, state *State, roster *weapons.Roster) []*upgrades.Definition {
	eligible := make([]*upgrades.Definition, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))
	for _, def := range defs {
		err := Check(def, state, roster)
		if err != nil {
			if errors.Is(err, ErrMalformedDefinition) {
				s.logger.Warn("skipping malformed upgrade", logging.Error(err))
			}
			continue
		}
		if _, dup := seen[def.ID]; dup {
			continue
		}
		seen[def.ID] = struct{}{}
		eligible = append(eligible, def)
	}
	return eligible
}

// Select returns up to count distinct eligible definitions in pick order.
// It never mutates state or roster.
func (s *Selector) Select(defs []*upgrades.Definition, state *State, roster *weapons.Roster, count int) []*upgrades.Definition {
	//1.- Filter through the validator; an empty pool is an empty offer.
	pool := s.Eligible(defs, state, roster)
	if len(pool) == 0 || count <= 0 {
		return []*upgrades.Definition{}
	}
	//2.- Never ask for more picks than there are candidates.
	if count > len(pool) {
		count = len(pool)
	}
	picks := make([]*upgrades.Definition, 0, count)
	for len(picks) < count {
		//3.- Draw one pick and remove it so an offer never repeats an id.
		idx := s.pick(pool)
		picks = append(picks, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return picks
}

func (s *Selector) pick(pool []*upgrades.Definition) int {
	var total int64
	for _, def := range pool {
		total += int64(def.RarityWeight)
	}
	if total <= 0 {
		if s.debug {
			panic(ErrZeroTotalWeight)
		}
		s.logger.Warn("zero total rarity weight, drawing uniformly", logging.Int("candidates", len(pool)))
		return s.rng.Intn(len(pool))
	}
	roll := s.rng.Int63n(total)
	var acc int64
	for i, def := range pool {
		acc += int64(def.RarityWeight)
		if roll < acc {
			return i
		}
	}
	return len(pool) - 1
}
