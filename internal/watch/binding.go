// Package watch re-runs tasks when files change.
//
// A [Binding] ties glob patterns to task names and owns the coalescing rule:
// at most one run per binding is in flight, and any number of triggers that
// arrive during that run collapse into exactly one follow-up run. Bindings
// are independent; two bindings may run at the same time.
//
// A [Watcher] feeds bindings from fsnotify events.
package watch

import (
	"context"
	"slices"
	"sync"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/logging"
)

// RunFunc performs one run of a binding's tasks. It should return once the
// run reached a terminal state.
type RunFunc func(ctx context.Context, tasks []string)

// Binding is a watch binding. Create it with NewBinding.
type Binding struct {
	name     string
	tasks    []string
	patterns PatternSet
	run      RunFunc
	bus      *event.Bus
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	idle     *sync.Cond
	running  bool
	pending  bool
	closed   bool
	runs     int
	triggers int
}

// NewBinding creates a binding that runs tasks through run whenever it is
// triggered. Runs receive a context derived from ctx that is cancelled by
// Close. bus and logger may be nil.
func NewBinding(ctx context.Context, name string, patterns, tasks []string, run RunFunc, bus *event.Bus, logger *logging.Logger) (*Binding, error) {
	if name == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "watch binding needs a name")
	}
	if len(tasks) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "watch binding %q has no tasks", name)
	}
	if run == nil {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "watch binding %q has no run function", name)
	}
	set, err := CompilePatterns(patterns)
	if err != nil {
		return nil, errors.Wrapf(err, "watch binding %q", name)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}

	bctx, cancel := context.WithCancel(ctx)
	b := &Binding{
		name:     name,
		tasks:    slices.Clone(tasks),
		patterns: set,
		run:      run,
		bus:      bus,
		logger:   logger.WithBinding(name),
		ctx:      bctx,
		cancel:   cancel,
	}
	b.idle = sync.NewCond(&b.mu)
	return b, nil
}

// Name returns the binding name.
func (b *Binding) Name() string { return b.name }

// Tasks returns the task names run on each trigger.
func (b *Binding) Tasks() []string { return slices.Clone(b.tasks) }

// Patterns returns the compiled pattern set.
func (b *Binding) Patterns() PatternSet { return b.patterns }

// Matches reports whether a slash-separated path relative to the watch root
// belongs to this binding.
func (b *Binding) Matches(rel string) bool { return b.patterns.Match(rel) }

// Trigger requests a run. When no run is in flight one starts immediately.
// Otherwise the request is folded into the single pending follow-up run and
// Trigger returns true. Triggers after Close are ignored.
func (b *Binding) Trigger() (coalesced bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.triggers++
	if b.running {
		b.pending = true
		coalesced = true
	} else {
		b.running = true
		go b.loop()
	}
	b.mu.Unlock()

	b.bus.Publish(event.NewWatchTriggeredEvent(b.name, coalesced))
	if coalesced {
		b.logger.Debug("trigger coalesced into pending run")
	} else {
		b.logger.Info("trigger starting run", "tasks", b.tasks)
	}
	return coalesced
}

// loop runs until no follow-up is pending.
func (b *Binding) loop() {
	for {
		b.run(b.ctx, slices.Clone(b.tasks))

		b.mu.Lock()
		b.runs++
		if !b.pending || b.closed {
			b.running = false
			b.pending = false
			b.idle.Broadcast()
			b.mu.Unlock()
			return
		}
		b.pending = false
		b.mu.Unlock()
		b.logger.Debug("starting follow-up run")
	}
}

// Running reports whether a run is in flight.
func (b *Binding) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Runs returns the number of completed runs.
func (b *Binding) Runs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.runs
}

// Triggers returns the number of accepted triggers, coalesced or not.
func (b *Binding) Triggers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.triggers
}

// Wait blocks until no run is in flight and none is pending.
func (b *Binding) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.running {
		b.idle.Wait()
	}
}

// Close cancels the in-flight run, drops any pending run, and waits for the
// binding to go idle. Close is idempotent.
func (b *Binding) Close() {
	b.mu.Lock()
	b.closed = true
	b.pending = false
	b.mu.Unlock()

	b.cancel()
	b.Wait()
}
