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

var (
	// ErrNoPendingOffer is returned when Choose or Decline has nothing to answer.
	ErrNoPendingOffer = errors.New("no offer is awaiting a choice")
	// ErrNotOffered is returned when a choice is absent from the current offer.
	ErrNotOffered = errors.New("upgrade was not offered")
)

// DefaultOfferCount is how many candidates a level-up presents unless overridden.
const DefaultOfferCount = 3

// Journal event kinds written through Recorder.
const (
	EventRunStarted = "run_started"
	EventLevelUp    = "level_up"
	EventOffer      = "offer"
	EventChoice     = "choice"
	EventDeclined   = "declined"
	EventSkipped    = "skipped"
)

// Recorder receives the run's event stream and post-choice snapshots.
type Recorder interface {
	Record(kind string, payload any) error
	Snapshot(payload any) error
}

// RunStartedEvent opens a journal.
type RunStartedEvent struct {
	RunID      string          `json:"runId"`
	Seed       string          `json:"seed"`
	OfferCount int             `json:"offerCount"`
	Baseline   player.Baseline `json:"baseline"`
}

// LevelUpEvent records an incoming level-up signal.
type LevelUpEvent struct {
	Level int `json:"level"`
}

// ChoiceEvent records the player's pick for an offer.
type ChoiceEvent struct {
	Draw      int    `json:"draw"`
	UpgradeID string `json:"upgradeId"`
}

// DeclineEvent records an offer dismissed without a pick.
type DeclineEvent struct {
	Draw int `json:"draw"`
}

// SkippedEvent records a level-up that produced no candidates.
type SkippedEvent struct {
	Draw  int `json:"draw"`
	Level int `json:"level"`
}

// Offer is one level-up's candidate list.
type Offer struct {
	Draw     int                    `json:"draw"`
	Level    int                    `json:"level"`
	Upgrades []*upgrades.Definition `json:"upgrades"`
}

// IDs lists the offered upgrade ids in presentation order.
func (o *Offer) IDs() []string {
	if o == nil {
		return nil
	}
	ids := make([]string, len(o.Upgrades))
	for i, def := range o.Upgrades {
		ids[i] = def.ID
	}
	return ids
}

func (o *Offer) find(id string) *upgrades.Definition {
	if o == nil {
		return nil
	}
	for _, def := range o.Upgrades {
		if def.ID == id {
			return def
		}
	}
	return nil
}

// OfferEvent records a drawn offer by id.
type OfferEvent struct {
	Draw  int      `json:"draw"`
	Level int      `json:"level"`
	IDs   []string `json:"ids"`
}

// Run owns one session's progression: state, roster, player and the
// level-up/choose loop. It is not safe for concurrent use.
type Run struct {
	id         string
	seed       string
	startedAt  time.Time
	baseline   player.Baseline
	catalog    *upgrades.Catalog
	state      *State
	roster     *weapons.Roster
	sink       player.StatSink
	selector   *Selector
	applicator *Applicator
	recorder   Recorder
	logger     *logging.Logger
	offerCount int

	level   int
	kills   int
	draws   int
	pending int
	current *Offer
}

type runOptions struct {
	catalog      *upgrades.Catalog
	sink         player.StatSink
	recorder     Recorder
	logger       *logging.Logger
	offerCount   int
	debug        bool
	now          func() time.Time
	applicatorOp []ApplicatorOption
}

// RunOption customises NewRun.
type RunOption func(*runOptions)

// WithCatalog sets the upgrade pool; the embedded default is used otherwise.
func WithCatalog(catalog *upgrades.Catalog) RunOption {
	return func(o *runOptions) { o.catalog = catalog }
}

// WithPlayer sets the stat sink; a Stats built from the baseline is used otherwise.
func WithPlayer(sink player.StatSink) RunOption {
	return func(o *runOptions) { o.sink = sink }
}

// WithRecorder attaches a journal.
func WithRecorder(recorder Recorder) RunOption {
	return func(o *runOptions) { o.recorder = recorder }
}

// WithLogger sets the run logger.
func WithLogger(logger *logging.Logger) RunOption {
	return func(o *runOptions) { o.logger = logger }
}

// WithOfferCount sets how many candidates each level-up presents.
func WithOfferCount(count int) RunOption {
	return func(o *runOptions) {
		if count > 0 {
			o.offerCount = count
		}
	}
}

// WithDebugSelection makes degenerate pools panic.
func WithDebugSelection(debug bool) RunOption {
	return func(o *runOptions) { o.debug = debug }
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) RunOption {
	return func(o *runOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithApplicatorOptions forwards options to the run's applicator.
func WithApplicatorOptions(opts ...ApplicatorOption) RunOption {
	return func(o *runOptions) { o.applicatorOp = append(o.applicatorOp, opts...) }
}

// NewRun creates state and roster, equips the baseline's starting weapon and
// journals the start.
func NewRun(id, seed string, baseline player.Baseline, opts ...RunOption) (*Run, error) {
	options := runOptions{offerCount: DefaultOfferCount, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.catalog == nil {
		options.catalog = upgrades.Default()
	}
	if options.logger == nil {
		options.logger = logging.L()
	}
	if seed == "" {
		seed = NewRunSeed()
	}
	if options.sink == nil {
		options.sink = player.NewStats(baseline)
	}
	logger := options.logger.ForRun(id)

	applicatorOpts := append([]ApplicatorOption{WithApplicatorLogger(logger)}, options.applicatorOp...)
	run := &Run{
		id:         id,
		seed:       seed,
		startedAt:  options.now(),
		baseline:   baseline,
		catalog:    options.catalog,
		state:      NewState(),
		roster:     weapons.NewRoster(),
		sink:       options.sink,
		selector:   NewSelector(WithDebug(options.debug), WithSelectorLogger(logger), WithSeed(DrawSeed(seed, 0))),
		applicator: NewApplicator(applicatorOpts...),
		recorder:   options.recorder,
		logger:     logger,
		offerCount: options.offerCount,
	}
	if baseline.StartingWeapon != "" {
		if err := run.applicator.EquipStarter(baseline.StartingWeapon, run.state, run.roster); err != nil {
			return nil, err
		}
	}
	run.record(EventRunStarted, RunStartedEvent{RunID: id, Seed: seed, OfferCount: run.offerCount, Baseline: baseline})
	logger.Info("run started", logging.String("loadout", baseline.LoadoutID), logging.String("starter", baseline.StartingWeapon))
	return run, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Seed returns the seed draws are derived from.
func (r *Run) Seed() string { return r.seed }

// State exposes read access to the bookkeeping.
func (r *Run) State() *State { return r.state }

// Roster exposes the live weapons.
func (r *Run) Roster() *weapons.Roster { return r.roster }

// Catalog returns the upgrade pool the run draws from.
func (r *Run) Catalog() *upgrades.Catalog { return r.catalog }

// Level returns the number of level-ups received.
func (r *Run) Level() int { return r.level }

// Pending returns level-ups that still await a choice, the current one included.
func (r *Run) Pending() int { return r.pending }

// Current returns the offer awaiting a choice, or nil.
func (r *Run) Current() *Offer { return r.current }

// RecordKill bumps the run's kill counter.
func (r *Run) RecordKill() { r.kills++ }

// Kills returns the run's kill counter.
func (r *Run) Kills() int { return r.kills }

// LevelUp queues a level-up. When no offer is open it draws one; an empty
// pool is journaled as skipped and the queue moves on. The returned offer is
// whatever now awaits a choice, possibly nil.
func (r *Run) LevelUp() *Offer {
	r.level++
	r.pending++
	r.record(EventLevelUp, LevelUpEvent{Level: r.level})
	if r.current == nil {
		r.advance()
	}
	return r.current
}

// Choose applies an offered upgrade and opens the next pending offer, if any.
func (r *Run) Choose(upgradeID string) (*Offer, error) {
	if r.current == nil {
		return nil, ErrNoPendingOffer
	}
	def := r.current.find(upgradeID)
	if def == nil {
		return r.current, fmt.Errorf("%w: %s", ErrNotOffered, upgradeID)
	}
	draw := r.current.Draw
	//1.- Apply the choice; a broken invariant is logged and surfaced but the offer still closes.
	applyErr := r.applicator.Apply(def, r.state, r.roster, r.sink)
	if applyErr != nil {
		r.logger.Error("upgrade broke a progression invariant", logging.String("upgrade", def.ID), logging.Error(applyErr))
	}
	r.record(EventChoice, ChoiceEvent{Draw: draw, UpgradeID: def.ID})
	r.snapshot()
	r.logger.Info("upgrade chosen", logging.String("upgrade", def.ID), logging.String("category", def.Category.String()))
	//2.- Close this offer and move to the next queued level-up.
	r.current = nil
	r.pending--
	r.advance()
	return r.current, applyErr
}

// Decline discards the open offer without touching state.
func (r *Run) Decline() (*Offer, error) {
	if r.current == nil {
		return nil, ErrNoPendingOffer
	}
	r.record(EventDeclined, DeclineEvent{Draw: r.current.Draw})
	r.current = nil
	r.pending--
	r.advance()
	return r.current, nil
}

func (r *Run) advance() {
	for r.pending > 0 && r.current == nil {
		offer := r.draw()
		if len(offer.Upgrades) > 0 {
			r.current = offer
			return
		}
		//1.- Nothing eligible: the level-up resolves on its own and play resumes.
		r.record(EventSkipped, SkippedEvent{Draw: offer.Draw, Level: offer.Level})
		r.logger.Info("no upgrade offered", logging.Int("level", offer.Level))
		r.pending--
	}
}

func (r *Run) draw() *Offer {
	draw := r.draws
	r.draws++
	r.selector.Reseed(DrawSeed(r.seed, draw))
	//1.- The level this offer answers is the oldest unanswered one.
	level := r.level - r.pending + 1
	picks := r.selector.Select(r.catalog.All(), r.state, r.roster, r.offerCount)
	offer := &Offer{Draw: draw, Level: level, Upgrades: picks}
	if len(picks) > 0 {
		r.record(EventOffer, OfferEvent{Draw: draw, Level: level, IDs: offer.IDs()})
	}
	return offer
}

func (r *Run) record(kind string, payload any) {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Record(kind, payload); err != nil {
		r.logger.Warn("journal write failed", logging.String("event", kind), logging.Error(err))
	}
}

func (r *Run) snapshot() {
	if r.recorder == nil {
		return
	}
	if err := r.recorder.Snapshot(r.Snapshot()); err != nil {
		r.logger.Warn("journal snapshot failed", logging.Error(err))
	}
}

// WeaponView is a roster entry with the character multiplier folded in.
type WeaponView struct {
	weapons.Snapshot
	EffectiveDamage float64 `json:"effectiveDamage"`
}

// Snapshot is a serialisable view of a whole run.
type Snapshot struct {
	ID        string           `json:"id"`
	Seed      string           `json:"seed"`
	StartedAt time.Time        `json:"startedAt"`
	Level     int              `json:"level"`
	Kills     int              `json:"kills"`
	Draws     int              `json:"draws"`
	Pending   int              `json:"pending"`
	Offer     *Offer           `json:"offer,omitempty"`
	State     StateSnapshot    `json:"state"`
	Weapons   []WeaponView     `json:"weapons"`
	Player    *player.Snapshot `json:"player,omitempty"`
}

// Snapshot copies the run for journals and network payloads.
func (r *Run) Snapshot() Snapshot {
	multiplier := r.baseline.DamageMultiplier
	var playerView *player.Snapshot
	if stats, ok := r.sink.(interface{ Snapshot() player.Snapshot }); ok {
		view := stats.Snapshot()
		playerView = &view
		multiplier = view.DamageMultiplier
	}
	handles := r.roster.Handles()
	views := make([]WeaponView, len(handles))
	for i, h := range handles {
		views[i] = WeaponView{
			Snapshot:        weapons.Snapshot{WeaponID: h.WeaponID(), Kind: h.Kind(), Capability: h.Capability()},
			EffectiveDamage: h.EffectiveDamage(multiplier),
		}
	}
	return Snapshot{
		ID:        r.id,
		Seed:      r.seed,
		StartedAt: r.startedAt,
		Level:     r.level,
		Kills:     r.kills,
		Draws:     r.draws,
		Pending:   r.pending,
		Offer:     r.current,
		State:     r.state.Snapshot(),
		Weapons:   views,
		Player:    playerView,
	}
}
