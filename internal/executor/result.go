package executor

import (
	"time"

	"github.com/Iron-Ham/forge/internal/errors"
)

// Outcome is the terminal state of one task in a run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	// OutcomeSkipped marks a task that never started, either because a
	// dependency did not succeed or because the run was cancelled first.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCancelled marks a task whose action was interrupted by run
	// cancellation.
	OutcomeCancelled Outcome = "cancelled"
)

// Status is the aggregate result of a run.
type Status string

const (
	StatusSuccess Status = "success"
	// StatusPartialFailure means some task failed but at least one
	// requested target still succeeded.
	StatusPartialFailure Status = "partial-failure"
	StatusFailure        Status = "failure"
	StatusCancelled      Status = "cancelled"
)

// TaskOutcome records how a single task ended.
type TaskOutcome struct {
	State    Outcome
	Err      error // *errors.ActionFailure for OutcomeFailure
	Duration time.Duration
}

// RunResult is the immutable summary of one run. It is owned by the caller
// once Run returns; no other run writes to it.
type RunResult struct {
	ID        string
	Targets   []string
	Order     []string // plan order
	Started   []string // dispatch order
	Status    Status
	Outcomes  map[string]TaskOutcome
	StartedAt time.Time
	Duration  time.Duration
}

// Failed returns the names of failed tasks in plan order.
func (r *RunResult) Failed() []string {
	return r.withState(OutcomeFailure)
}

// Skipped returns the names of skipped tasks in plan order.
func (r *RunResult) Skipped() []string {
	return r.withState(OutcomeSkipped)
}

// Succeeded returns the names of successful tasks in plan order.
func (r *RunResult) Succeeded() []string {
	return r.withState(OutcomeSuccess)
}

func (r *RunResult) withState(state Outcome) []string {
	var out []string
	for _, name := range r.Order {
		if r.Outcomes[name].State == state {
			out = append(out, name)
		}
	}
	return out
}

func (r *RunResult) outcomeStates() map[string]string {
	states := make(map[string]string, len(r.Outcomes))
	for name, o := range r.Outcomes {
		states[name] = string(o.State)
	}
	return states
}

// OK reports whether every task succeeded.
func (r *RunResult) OK() bool {
	return r.Status == StatusSuccess
}

// Err returns nil for a successful run. Otherwise it returns the joined
// action failures, wrapped in ErrRunCancelled or ErrRunFailed.
func (r *RunResult) Err() error {
	if r.Status == StatusSuccess {
		return nil
	}

	var causes []error
	for _, name := range r.Failed() {
		if err := r.Outcomes[name].Err; err != nil {
			causes = append(causes, err)
		}
	}

	sentinel := errors.ErrRunFailed
	if r.Status == StatusCancelled {
		sentinel = errors.ErrRunCancelled
	}
	if len(causes) == 0 {
		return sentinel
	}
	return errors.Join(append([]error{sentinel}, causes...)...)
}

// aggregateStatus applies the run status rule: any task that did not
// succeed makes the run a failure, softened to partial-failure when at
// least one requested target still succeeded.
func aggregateStatus(targets []string, outcomes map[string]TaskOutcome, cancelled bool) Status {
	if cancelled {
		return StatusCancelled
	}

	clean := true
	for _, o := range outcomes {
		if o.State != OutcomeSuccess {
			clean = false
			break
		}
	}
	if clean {
		return StatusSuccess
	}

	for _, target := range targets {
		if outcomes[target].State == OutcomeSuccess {
			return StatusPartialFailure
		}
	}
	return StatusFailure
}
