// Package taskgraph holds the task registry and dependency resolver.
//
// Tasks are registered once at startup, the registry is sealed, and each run
// resolves the requested names into a [Plan]: a topological order of the
// transitive dependency closure. A Plan holds value copies of the tasks it
// was built from, so later registry changes never affect a run in progress.
//
//	reg := taskgraph.NewRegistry()
//	_ = reg.Register(taskgraph.Task{Name: "clean", Action: cleanFn})
//	_ = reg.Register(taskgraph.Task{Name: "build", Dependencies: []string{"clean"}})
//	if err := reg.Seal(); err != nil {
//	    return err
//	}
//	plan, err := reg.Resolve("build")
package taskgraph

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// Action is a task's unit of work. It completes when it returns; a non-nil
// error marks the task failed. Actions must observe ctx for cancellation.
type Action func(ctx context.Context) error

// Task is a named unit of work with ordered dependencies. A Task without an
// Action is a grouping node that succeeds once its dependencies succeed.
type Task struct {
	Name         string
	Dependencies []string
	Action       Action
	Description  string
	Hidden       bool
}

// IsGroup reports whether the task has no action of its own.
func (t Task) IsGroup() bool {
	return t.Action == nil
}

// clone returns a copy whose dependency slice is not shared with t.
func (t Task) clone() Task {
	t.Dependencies = slices.Clone(t.Dependencies)
	return t
}

// Sync adapts a synchronous function into an Action. The function runs on
// the calling goroutine and is not interrupted by cancellation.
func Sync(fn func() error) Action {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	}
}

// CancelGrace bounds how long Callback and Await actions are given to
// report completion after their context is cancelled.
var CancelGrace = 2 * time.Second

// Callback adapts a function that signals completion by calling done.
// Only the first call to done counts. A panic in fn fails the action. Once
// ctx is cancelled the action waits up to CancelGrace for done and then
// returns ctx.Err().
func Callback(fn func(ctx context.Context, done func(error))) Action {
	return func(ctx context.Context) error {
		result := make(chan error, 1)
		done := func(err error) {
			select {
			case result <- err:
			default:
			}
		}
		go func() {
			var pc panics.Catcher
			pc.Try(func() { fn(ctx, done) })
			if rec := pc.Recovered(); rec != nil {
				done(fmt.Errorf("panic: %v", rec.Value))
			}
		}()
		return await(ctx, result)
	}
}

// Await adapts a function returning a completion handle. The action
// completes when the channel yields a value or is closed (success). After
// cancellation the handle gets CancelGrace to settle.
func Await(fn func(ctx context.Context) <-chan error) Action {
	return func(ctx context.Context) error {
		handle := fn(ctx)
		if handle == nil {
			return nil
		}
		return await(ctx, handle)
	}
}

func await(ctx context.Context, handle <-chan error) error {
	select {
	case err := <-handle:
		return err
	case <-ctx.Done():
	}

	timer := time.NewTimer(CancelGrace)
	defer timer.Stop()
	select {
	case <-handle:
	case <-timer.C:
	}
	return ctx.Err()
}
