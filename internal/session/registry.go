// Package session tracks live runs and serialises access to each of them.
package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hordeforge/engine/internal/journal"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/player"
	"hordeforge/engine/internal/progression"
	"hordeforge/engine/internal/upgrades"
)

var (
	// ErrRegistryFull is returned when the run limit is reached.
	ErrRegistryFull = errors.New("run limit reached")
	// ErrUnknownRun is returned for identifiers the registry does not track.
	ErrUnknownRun = errors.New("unknown run")
	// ErrSessionClosed is returned when a finished run receives input.
	ErrSessionClosed = errors.New("run finished")
)

// StartRequest describes a run to create.
type StartRequest struct {
	Loadout string            `json:"loadout"`
	Shop    player.ShopLevels `json:"shop"`
	Seed    string            `json:"seed,omitempty"`
}

// Stats aggregates registry counters for the metrics endpoint.
type Stats struct {
	Active   int
	Started  int
	Finished int
	Choices  int
}

// Registry owns every live session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	started  int
	finished int
	choices  int

	catalog    *upgrades.Catalog
	maxRuns    int
	offerCount int
	debug      bool
	floor      time.Duration
	journalDir string
	logger     *logging.Logger
	now        func() time.Time
	newID      func() string
}

// Option customises a Registry.
type Option func(*Registry)

// WithCatalog sets the upgrade pool shared by every run.
func WithCatalog(catalog *upgrades.Catalog) Option {
	return func(r *Registry) {
		if catalog != nil {
			r.catalog = catalog
		}
	}
}

// WithMaxRuns bounds concurrently tracked runs. Zero disables the limit.
func WithMaxRuns(limit int) Option {
	return func(r *Registry) {
		if limit >= 0 {
			r.maxRuns = limit
		}
	}
}

// WithOfferCount sets how many candidates each level-up presents.
func WithOfferCount(count int) Option {
	return func(r *Registry) {
		if count > 0 {
			r.offerCount = count
		}
	}
}

// WithDebug enables debug selection for new runs.
func WithDebug(debug bool) Option {
	return func(r *Registry) { r.debug = debug }
}

// WithCooldownFloor sets the weapon cooldown floor for new runs.
func WithCooldownFloor(floor time.Duration) Option {
	return func(r *Registry) {
		if floor > 0 {
			r.floor = floor
		}
	}
}

// WithJournalDir journals every run under dir. Empty disables journaling.
func WithJournalDir(dir string) Option {
	return func(r *Registry) { r.journalDir = strings.TrimSpace(dir) }
}

// WithLogger sets the registry logger.
func WithLogger(logger *logging.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source; primarily used in tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides run identifier generation; primarily used in tests.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:   make(map[string]*Session),
		catalog:    upgrades.Default(),
		offerCount: progression.DefaultOfferCount,
		floor:      progression.DefaultCooldownFloor,
		logger:     logging.L(),
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Catalog exposes the shared upgrade pool.
func (r *Registry) Catalog() *upgrades.Catalog { return r.catalog }

// Start creates a run for req and begins tracking it.
func (r *Registry) Start(req StartRequest) (*Session, error) {
	loadoutID := strings.TrimSpace(req.Loadout)
	if loadoutID == "" {
		loadoutID = player.DefaultLoadoutID()
	}
	loadout, err := player.LookupLoadout(loadoutID)
	if err != nil {
		return nil, err
	}
	if !loadout.Selectable {
		return nil, fmt.Errorf("%w: %s", player.ErrLoadoutLocked, loadoutID)
	}
	baseline, err := player.NewBaseline(loadoutID, req.Shop)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.maxRuns > 0 && len(r.sessions) >= r.maxRuns {
		r.mu.Unlock()
		return nil, ErrRegistryFull
	}
	id := r.newID()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("run id %q already tracked", id)
	}
	// Reserve the slot so concurrent starts respect the limit.
	r.sessions[id] = nil
	r.mu.Unlock()

	session, err := r.build(id, baseline, req.Seed)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.sessions, id)
		return nil, err
	}
	r.sessions[id] = session
	r.started++
	return session, nil
}

func (r *Registry) build(id string, baseline player.Baseline, seed string) (*Session, error) {
	logger := r.logger.ForRun(id)
	if seed == "" {
		seed = progression.NewRunSeed()
	}
	session := &Session{id: id, loadout: baseline.LoadoutID, createdAt: r.now(), logger: logger, registry: r}

	stats := player.NewStats(baseline)
	opts := []progression.RunOption{
		progression.WithCatalog(r.catalog),
		progression.WithPlayer(stats),
		progression.WithLogger(r.logger),
		progression.WithOfferCount(r.offerCount),
		progression.WithDebugSelection(r.debug),
		progression.WithClock(r.now),
		progression.WithApplicatorOptions(progression.WithCooldownFloor(r.floor)),
	}
	//1.- Journal first so run_started lands in the bundle.
	if r.journalDir != "" {
		writer, _, err := journal.NewWriter(r.journalDir, id, r.now)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		writer.SetSeed(seed)
		writer.SetLoadout(baseline.LoadoutID)
		session.journal = writer
		opts = append(opts, progression.WithRecorder(writer))
	}
	run, err := progression.NewRun(id, seed, baseline, opts...)
	if err != nil {
		if session.journal != nil {
			_ = session.journal.Close()
		}
		return nil, err
	}
	session.run = run
	return session, nil
}

// Get returns the session for id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	if !ok || session == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return session, nil
}

// IDs lists tracked runs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id, session := range r.sessions {
		if session != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Finish closes the run's journal and stops tracking it.
func (r *Registry) Finish(id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if !ok || session == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	delete(r.sessions, id)
	r.finished++
	r.mu.Unlock()
	return session.close()
}

// Shutdown finishes every tracked run, returning the first journal error.
func (r *Registry) Shutdown() error {
	var firstErr error
	for _, id := range r.IDs() {
		if err := r.Finish(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stats returns the registry counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{Active: len(r.sessions), Started: r.started, Finished: r.finished, Choices: r.choices}
}

func (r *Registry) countChoice() {
	r.mu.Lock()
	r.choices++
	r.mu.Unlock()
}
