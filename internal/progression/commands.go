package progression

import "sync"

// CommandKind identifies a queued run input.
type CommandKind string

const (
	CommandLevelUp CommandKind = "level_up"
	CommandChoose  CommandKind = "choose"
	CommandDecline CommandKind = "decline"
	CommandKill    CommandKind = "kill"
)

// Command is one input for a run, produced by the game loop or a network client.
type Command struct {
	Kind      CommandKind `json:"kind"`
	UpgradeID string      `json:"upgradeId,omitempty"`
}

// Result pairs a command with the offer left open after it ran.
type Result struct {
	Command Command
	Offer   *Offer
	Err     error
}

// Queue buffers commands from any goroutine until the owner drains them
// once per frame.
type Queue struct {
	mu    sync.Mutex
	items []Command
}

// Push appends a command.
func (q *Queue) Push(cmd Command) {
	q.mu.Lock()
	q.items = append(q.items, cmd)
	q.mu.Unlock()
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drain executes every queued command against run in arrival order.
func (q *Queue) Drain(run *Run) []Result {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	results := make([]Result, 0, len(items))
	for _, cmd := range items {
		results = append(results, Execute(run, cmd))
	}
	return results
}

// Execute runs a single command.
func Execute(run *Run, cmd Command) Result {
	result := Result{Command: cmd}
	switch cmd.Kind {
	case CommandLevelUp:
		result.Offer = run.LevelUp()
	case CommandChoose:
		result.Offer, result.Err = run.Choose(cmd.UpgradeID)
	case CommandDecline:
		result.Offer, result.Err = run.Decline()
	case CommandKill:
		run.RecordKill()
		result.Offer = run.Current()
	default:
		result.Err = &UnknownCommandError{Kind: cmd.Kind}
		result.Offer = run.Current()
	}
	return result
}

// UnknownCommandError reports a command kind the run does not understand.
type UnknownCommandError struct {
	Kind CommandKind
}

func (e *UnknownCommandError) Error() string {
	return "unknown run command " + string(e.Kind)
}
