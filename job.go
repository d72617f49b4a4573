package pgjobq

import "time"

// Status is the lifecycle state of a job. The state machine is strictly
// forward: scheduled → acquired → completed | failed. Completed and failed
// are terminal.
type Status string

const (
	// StatusScheduled means the job is waiting to be acquired by a worker.
	StatusScheduled Status = "scheduled"
	// StatusAcquired means a worker has exclusively claimed the job.
	StatusAcquired Status = "acquired"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job finished unsuccessfully.
	StatusFailed Status = "failed"
)

// transitions is the allowed-transition table. Anything not listed here is a
// state conflict, never a silent no-op.
var transitions = map[Status][]Status{
	StatusScheduled: {StatusAcquired},
	StatusAcquired:  {StatusCompleted, StatusFailed},
	StatusCompleted: nil,
	StatusFailed:    nil,
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether the transition s → to is allowed.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority bounds. Priorities are stored as a smallint; Schedule rejects
// values outside this range before any write.
const (
	MinPriority = -32768
	MaxPriority = 32767
)

// DefaultQueue is the queue used when the caller does not name one.
const DefaultQueue = "default"

// Job is one schedulable, independently claimable unit of work.
type Job struct {
	// ID is assigned at schedule time and never changes.
	ID string
	// Queue is the logical partition the job belongs to.
	Queue string
	// Payload is the caller-supplied job body. Opaque to the engine.
	Payload map[string]any
	// Priority orders acquisition within a queue; higher is served first.
	Priority int16
	// Status is the current lifecycle state.
	Status Status
	// Worker is the identifier passed to Acquire; nil until acquired.
	Worker *string
	// Result is the outcome document; nil until completed or failed.
	Result map[string]any
	// CreatedAt is set at insertion and never changes.
	CreatedAt time.Time
	// UpdatedAt is stamped on every state transition.
	UpdatedAt time.Time
}
