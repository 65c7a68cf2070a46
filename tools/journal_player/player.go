package journalplayer

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"hordeforge/engine/internal/journal"
	"hordeforge/engine/internal/logging"
	"hordeforge/engine/internal/progression"
	"hordeforge/engine/internal/upgrades"
)

// ErrNoRunStarted is returned when a journal lacks its opening event.
var ErrNoRunStarted = errors.New("journal has no run_started event")

// Mismatch describes the first point where a replay diverged from the journal.
type Mismatch struct {
	Index    int             `json:"index"`
	Recorded string          `json:"recorded"`
	Replayed string          `json:"replayed"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Got      json.RawMessage `json:"got,omitempty"`
}

// Report summarises a verification pass.
type Report struct {
	RunID     string    `json:"run_id"`
	Seed      string    `json:"seed"`
	Events    int       `json:"events"`
	Offers    int       `json:"offers"`
	Choices   int       `json:"choices"`
	Snapshots int       `json:"snapshots"`
	Match     bool      `json:"match"`
	Mismatch  *Mismatch `json:"mismatch,omitempty"`
}

type recordedEvent struct {
	kind    string
	payload json.RawMessage
}

// capture is a progression.Recorder that keeps events in memory.
type capture struct {
	events []recordedEvent
}

func (c *capture) Record(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.events = append(c.events, recordedEvent{kind: kind, payload: data})
	return nil
}

func (c *capture) Snapshot(any) error { return nil }

// Verify re-runs the journal at dir from its seed and recorded inputs and
// compares every event the replay produces with the journaled one. A nil
// catalog means the embedded default.
func Verify(dir string, catalog *upgrades.Catalog) (Report, error) {
	j, err := journal.Open(dir)
	if err != nil {
		return Report{}, err
	}
	if len(j.Events) == 0 || j.Events[0].Type != progression.EventRunStarted {
		return Report{}, ErrNoRunStarted
	}
	var started progression.RunStartedEvent
	if err := j.Events[0].Decode(&started); err != nil {
		return Report{}, fmt.Errorf("decode run_started: %w", err)
	}

	//1.- Rebuild the run from the recorded seed and baseline.
	rec := &capture{}
	opts := []progression.RunOption{
		progression.WithRecorder(rec),
		progression.WithLogger(logging.NewTestLogger()),
		progression.WithOfferCount(started.OfferCount),
	}
	if catalog != nil {
		opts = append(opts, progression.WithCatalog(catalog))
	}
	run, err := progression.NewRun(started.RunID, started.Seed, started.Baseline, opts...)
	if err != nil {
		return Report{}, fmt.Errorf("rebuild run: %w", err)
	}

	//2.- Feed the journaled inputs back in; offers and skips are outputs to compare.
	report := Report{RunID: started.RunID, Seed: started.Seed, Events: len(j.Events), Snapshots: len(j.Snapshots)}
	for _, event := range j.Events[1:] {
		switch event.Type {
		case progression.EventLevelUp:
			run.LevelUp()
		case progression.EventChoice:
			var choice progression.ChoiceEvent
			if err := event.Decode(&choice); err != nil {
				return report, fmt.Errorf("decode choice: %w", err)
			}
			// Errors are part of the comparison; a rejected choice leaves no choice event.
			_, _ = run.Choose(choice.UpgradeID)
			report.Choices++
		case progression.EventDeclined:
			_, _ = run.Decline()
		case progression.EventOffer:
			report.Offers++
		}
	}

	//3.- Walk both streams in order and stop at the first divergence.
	for i := 0; i < len(j.Events) || i < len(rec.events); i++ {
		var recorded, replayed recordedEvent
		if i < len(j.Events) {
			recorded = recordedEvent{kind: j.Events[i].Type, payload: j.Events[i].Payload}
		}
		if i < len(rec.events) {
			replayed = rec.events[i]
		}
		if recorded.kind != replayed.kind || !samePayload(recorded.payload, replayed.payload) {
			report.Mismatch = &Mismatch{
				Index:    i,
				Recorded: recorded.kind,
				Replayed: replayed.kind,
				Payload:  recorded.payload,
				Got:      replayed.payload,
			}
			return report, nil
		}
	}
	report.Match = true
	return report, nil
}

func samePayload(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	var left, right any
	if err := json.Unmarshal(a, &left); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &right); err != nil {
		return false
	}
	return reflect.DeepEqual(left, right)
}
