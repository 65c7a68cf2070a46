package session

import (
	"errors"
	"sync"
	"time"

	"hordeforge/engine/internal/journal"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/progression"
)

// Session guards one run. Network handlers and the frame loop share it, so
// every access to the run happens under the session mutex.
type Session struct {
	mu        sync.Mutex
	id        string
	loadout   string
	createdAt time.Time
	run       *progression.Run
	journal   *journal.Writer
	queue     progression.Queue
	logger    *logging.Logger
	registry  *Registry
	closed    bool

	subMu       sync.Mutex
	subscribers map[chan progression.Snapshot]struct{}
}

// ID returns the run identifier.
func (s *Session) ID() string { return s.id }

// Loadout returns the character loadout the run started with.
func (s *Session) Loadout() string { return s.loadout }

// CreatedAt reports when the run started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// JournalDir returns the run's journal bundle, or "" when journaling is off.
func (s *Session) JournalDir() string {
	if s.journal == nil {
		return ""
	}
	return s.journal.Directory()
}

// Snapshot copies the run state.
func (s *Session) Snapshot() (progression.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return progression.Snapshot{}, ErrSessionClosed
	}
	return s.run.Snapshot(), nil
}

// LevelUp grants a level-up and returns the resulting run state.
func (s *Session) LevelUp() (progression.Snapshot, error) {
	return s.apply(progression.Command{Kind: progression.CommandLevelUp})
}

// Choose applies an offered upgrade.
func (s *Session) Choose(upgradeID string) (progression.Snapshot, error) {
	return s.apply(progression.Command{Kind: progression.CommandChoose, UpgradeID: upgradeID})
}

// Decline closes the open offer without applying anything.
func (s *Session) Decline() (progression.Snapshot, error) {
	return s.apply(progression.Command{Kind: progression.CommandDecline})
}

// RecordKill bumps the run's kill counter.
func (s *Session) RecordKill() (progression.Snapshot, error) {
	return s.apply(progression.Command{Kind: progression.CommandKill})
}

// Execute runs cmd immediately and returns the resulting run state.
func (s *Session) Execute(cmd progression.Command) (progression.Snapshot, error) {
	return s.apply(cmd)
}

func (s *Session) apply(cmd progression.Command) (progression.Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return progression.Snapshot{}, ErrSessionClosed
	}
	result := progression.Execute(s.run, cmd)
	snapshot := s.run.Snapshot()
	//1.- Rejected commands leave the run untouched, so subscribers hear nothing.
	// Publishing under mu keeps subscriber order equal to command order.
	if result.Err == nil || errors.Is(result.Err, progression.ErrInvariantViolated) {
		s.publish(snapshot)
	}
	s.mu.Unlock()

	s.observe(result)
	return snapshot, result.Err
}

// Submit queues cmd for the next Flush.
func (s *Session) Submit(cmd progression.Command) {
	s.queue.Push(cmd)
}

// Flush drains queued commands in arrival order. The frame loop calls it once
// per tick.
func (s *Session) Flush() ([]progression.Result, error) {
	if s.queue.Len() == 0 {
		return nil, nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	results := s.queue.Drain(s.run)
	s.publish(s.run.Snapshot())
	s.mu.Unlock()

	for _, result := range results {
		s.observe(result)
	}
	return results, nil
}

func (s *Session) observe(result progression.Result) {
	if result.Command.Kind != progression.CommandChoose {
		return
	}
	//1.- An invariant failure still consumed the offer, so it counts as a choice.
	if result.Err == nil || errors.Is(result.Err, progression.ErrInvariantViolated) {
		if s.registry != nil {
			s.registry.countChoice()
		}
	}
	if result.Err != nil {
		s.logger.Debug("choice rejected", logging.String("upgrade", result.Command.UpgradeID), logging.Error(result.Err))
	}
}

// Subscribe returns a channel that receives the run state after every change.
// Slow subscribers miss intermediate states rather than block the run.
func (s *Session) Subscribe(buffer int) (<-chan progression.Snapshot, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan progression.Snapshot, buffer)
	s.subMu.Lock()
	if s.subscribers == nil {
		s.subscribers = make(map[chan progression.Snapshot]struct{})
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
			s.subMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) publish(snapshot progression.Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			s.logger.Debug("dropping run update for slow subscriber")
		}
	}
}

func (s *Session) close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.journal != nil {
		err = s.journal.Close()
	}
	s.mu.Unlock()

	s.subMu.Lock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subMu.Unlock()
	s.logger.Info("run finished", logging.Bool("journaled", s.journal != nil))
	return err
}
