// Package executor runs a resolved plan with maximal safe concurrency.
//
// The coordinator goroutine owns all run state. Each ready task's action runs
// on its own goroutine and reports back over a completion channel; the
// coordinator then releases dependents, or marks them skipped when the task
// did not succeed. Independent branches keep running after a failure.
package executor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/logging"
	"github.com/Iron-Ham/forge/internal/taskgraph"
)

// Options tune an Executor.
type Options struct {
	// MaxParallel bounds the number of actions in flight. Zero means no bound.
	MaxParallel int
	// TaskTimeout bounds each action. Zero means no timeout.
	TaskTimeout time.Duration
}

// Executor runs plans. It is safe to call Run from multiple goroutines; runs
// share nothing but the bus and logger.
type Executor struct {
	opts   Options
	bus    *event.Bus
	logger *logging.Logger
}

// New creates an Executor. A nil bus or logger is replaced by a private
// bus and a no-op logger.
func New(bus *event.Bus, logger *logging.Logger, opts Options) *Executor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}
	if opts.MaxParallel < 0 {
		opts.MaxParallel = 0
	}
	return &Executor{opts: opts, bus: bus, logger: logger}
}

type taskState int

const (
	statePending taskState = iota
	stateRunning
	stateDone
)

type completion struct {
	index    int
	err      error
	duration time.Duration
}

// run is the coordinator-owned state of one Run call.
type run struct {
	id     string
	tasks  []taskgraph.Task
	state  []taskState
	result *RunResult
	logger *logging.Logger

	remaining  []int   // unfinished dependency count per task
	dependents [][]int // reverse edges, by plan position
	ready      []int   // plan positions, kept sorted
}

// Run executes plan and blocks until every task reached a terminal state.
// Cancelling ctx stops dispatch; Run still waits for in-flight actions to
// return before reporting StatusCancelled.
func (e *Executor) Run(ctx context.Context, plan *taskgraph.Plan) *RunResult {
	r := e.newRun(plan)

	e.bus.Publish(event.NewRunStartedEvent(r.id, r.result.Targets, r.result.Order))
	r.logger.Info("run started",
		"targets", r.result.Targets,
		"tasks", len(r.tasks),
		"max_parallel", e.opts.MaxParallel,
	)

	completions := make(chan completion, len(r.tasks))
	var wg conc.WaitGroup
	inFlight := 0
	cancelled := false
	done := ctx.Done()

	for {
		for ctx.Err() == nil && len(r.ready) > 0 && (e.opts.MaxParallel == 0 || inFlight < e.opts.MaxParallel) {
			idx := r.ready[0]
			r.ready = r.ready[1:]
			task := r.tasks[idx]

			r.state[idx] = stateRunning
			r.result.Started = append(r.result.Started, task.Name)
			e.bus.Publish(event.NewTaskStartedEvent(r.id, task.Name))

			if task.IsGroup() {
				e.finish(r, completion{index: idx}, false)
				continue
			}

			r.logger.WithTask(task.Name).Debug("task dispatched")
			inFlight++
			wg.Go(func() {
				completions <- e.invoke(ctx, r.id, idx, task)
			})
		}

		if inFlight == 0 {
			break
		}

		select {
		case c := <-completions:
			inFlight--
			e.finish(r, c, cancelled || ctx.Err() != nil)
		case <-done:
			cancelled = true
			done = nil
			r.logger.Warn("run cancelled, waiting for in-flight tasks", "in_flight", inFlight)
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		cancelled = true
	}
	for idx, st := range r.state {
		if st == statePending {
			e.skip(r, idx, "cancelled before start")
		}
	}

	r.result.Duration = time.Since(r.result.StartedAt)
	r.result.Status = aggregateStatus(r.result.Targets, r.result.Outcomes, cancelled)

	finished := event.NewRunFinishedEvent(r.id, string(r.result.Status), r.result.Failed(), r.result.Duration)
	finished.Outcomes = r.result.outcomeStates()
	e.bus.Publish(finished)
	r.logger.Info("run finished",
		"status", string(r.result.Status),
		"failed", r.result.Failed(),
		"skipped", len(r.result.Skipped()),
		"duration", r.result.Duration.String(),
	)
	return r.result
}

func (e *Executor) newRun(plan *taskgraph.Plan) *run {
	id := uuid.NewString()
	tasks := plan.Tasks()
	n := len(tasks)

	r := &run{
		id:         id,
		tasks:      tasks,
		state:      make([]taskState, n),
		logger:     e.logger.WithRun(id),
		remaining:  make([]int, n),
		dependents: make([][]int, n),
		result: &RunResult{
			ID:        id,
			Targets:   plan.Targets(),
			Order:     plan.Names(),
			Outcomes:  make(map[string]TaskOutcome, n),
			StartedAt: time.Now(),
		},
	}

	for idx, task := range tasks {
		seen := make(map[int]bool, len(task.Dependencies))
		for _, dep := range task.Dependencies {
			depIdx, ok := plan.Position(dep)
			if !ok || seen[depIdx] {
				continue
			}
			seen[depIdx] = true
			r.remaining[idx]++
			r.dependents[depIdx] = append(r.dependents[depIdx], idx)
		}
		if r.remaining[idx] == 0 {
			r.ready = append(r.ready, idx)
		}
	}
	return r
}

// invoke runs one action on the calling goroutine, converting a panic into
// an ordinary error.
func (e *Executor) invoke(ctx context.Context, runID string, idx int, task taskgraph.Task) completion {
	actx := ctx
	if e.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = task.Action(actx) })
	if rec := pc.Recovered(); rec != nil {
		e.logger.WithRun(runID).WithTask(task.Name).Error("task panicked", "stack", string(rec.Stack))
		err = fmt.Errorf("panic: %v", rec.Value)
	}
	return completion{index: idx, err: err, duration: time.Since(start)}
}

// finish records a completed task and releases or skips its dependents.
func (e *Executor) finish(r *run, c completion, interrupted bool) {
	task := r.tasks[c.index]
	r.state[c.index] = stateDone
	logger := r.logger.WithTask(task.Name)

	outcome := TaskOutcome{State: OutcomeSuccess, Duration: c.duration}
	switch {
	case c.err == nil:
	case interrupted:
		outcome.State = OutcomeCancelled
		outcome.Err = c.err
	default:
		outcome.State = OutcomeFailure
		outcome.Err = errors.NewActionFailure(task.Name, c.err)
	}
	r.result.Outcomes[task.Name] = outcome
	e.bus.Publish(event.NewTaskFinishedEvent(r.id, task.Name, string(outcome.State), outcome.Err, c.duration))

	if outcome.State != OutcomeSuccess {
		logger.Warn("task did not succeed",
			"outcome", string(outcome.State),
			"error", c.err.Error(),
			"duration", c.duration.String(),
		)
		e.skipDependents(r, c.index, task.Name)
		return
	}

	logger.Info("task succeeded", "duration", c.duration.String())
	released := false
	for _, dep := range r.dependents[c.index] {
		r.remaining[dep]--
		if r.remaining[dep] == 0 && r.state[dep] == statePending {
			r.ready = append(r.ready, dep)
			released = true
		}
	}
	if released {
		slices.Sort(r.ready)
	}
}

// skipDependents marks every pending transitive dependent of idx skipped.
func (e *Executor) skipDependents(r *run, idx int, cause string) {
	queue := slices.Clone(r.dependents[idx])
	visited := make(map[int]bool)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited[next] {
			continue
		}
		visited[next] = true

		if r.state[next] == statePending {
			e.skip(r, next, "dependency '"+cause+"' did not succeed")
		}
		queue = append(queue, r.dependents[next]...)
	}
}

func (e *Executor) skip(r *run, idx int, reason string) {
	name := r.tasks[idx].Name
	r.state[idx] = stateDone
	r.result.Outcomes[name] = TaskOutcome{State: OutcomeSkipped}
	r.ready = slices.DeleteFunc(r.ready, func(i int) bool { return i == idx })

	r.logger.WithTask(name).Debug("task skipped", "reason", reason)
	e.bus.Publish(event.NewTaskFinishedEvent(r.id, name, string(OutcomeSkipped), nil, 0))
}
