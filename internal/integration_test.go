// Package internal contains integration tests that verify the forge packages
// work together: a task file feeds the registry, the executor publishes on
// the event bus, and the metrics recorder, dashboard model and report all
// observe the same run.
package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/executor"
	"github.com/Iron-Ham/forge/internal/metrics"
	"github.com/Iron-Ham/forge/internal/report"
	"github.com/Iron-Ham/forge/internal/taskfile"
	"github.com/Iron-Ham/forge/internal/taskgraph"
	"github.com/Iron-Ham/forge/internal/watch"
)

const frontendTaskfile = `
tasks:
  clean: rm -rf dist
  copy:
    deps: [clean]
    cmd: cp -r app/static dist/
  build-css:
    deps: [clean]
    cmd: sass app/css:dist/css
  build-js:
    deps: [clean]
    cmd: esbuild app/js/main.js
  build: [copy, build-css, build-js]
watch:
  - name: js
    patterns: ["app/js/**/*.js"]
    tasks: [build-js]
`

// fakeActions records which tasks ran instead of running their commands.
type fakeActions struct {
	mu    sync.Mutex
	ran   []string
	fail  map[string]error
	delay time.Duration
}

func (f *fakeActions) Action(spec taskfile.TaskSpec) taskgraph.Action {
	if len(spec.Commands()) == 0 {
		return nil
	}
	return func(ctx context.Context) error {
		if f.delay > 0 {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f.mu.Lock()
		f.ran = append(f.ran, spec.Name)
		f.mu.Unlock()
		return f.fail[spec.Name]
	}
}

func (f *fakeActions) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.ran {
		if r == name {
			n++
		}
	}
	return n
}

func loadFrontend(t *testing.T, actions *fakeActions) (*taskfile.File, *taskgraph.Registry) {
	t.Helper()
	f, err := taskfile.Parse("forge.yaml", []byte(frontendTaskfile))
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	reg, err := f.Registry(actions)
	if err != nil {
		t.Fatalf("Registry() = %v", err)
	}
	return f, reg
}

func TestBuildPipelineIntegration(t *testing.T) {
	actions := &fakeActions{fail: map[string]error{"build-css": errors.New("sass: syntax error")}}
	_, reg := loadFrontend(t, actions)

	bus := event.NewBus(nil)
	rec := metrics.NewRecorder(prometheus.NewRegistry())
	rec.Attach(bus)
	defer rec.Detach()

	var mu sync.Mutex
	var types []string
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.EventType())
	})

	plan, err := reg.Resolve("build")
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	result := executor.New(bus, nil, executor.Options{}).Run(context.Background(), plan)

	if result.Status != executor.StatusFailure {
		t.Errorf("Status = %s, want failure", result.Status)
	}
	if got := result.Outcomes["build"].State; got != executor.OutcomeSkipped {
		t.Errorf("build = %s, want skipped", got)
	}
	for _, name := range []string{"clean", "copy", "build-js"} {
		if got := result.Outcomes[name].State; got != executor.OutcomeSuccess {
			t.Errorf("%s = %s, want success", name, got)
		}
	}
	if actions.count("clean") != 1 {
		t.Errorf("clean ran %d times, want 1", actions.count("clean"))
	}

	if got := testutil.ToFloat64(rec.Runs.WithLabelValues("failure")); got != 1 {
		t.Errorf("forge_runs_total{status=failure} = %v", got)
	}
	if got := testutil.ToFloat64(rec.TaskOutcomes.WithLabelValues("build", "skipped")); got != 1 {
		t.Errorf("skipped build not counted: %v", got)
	}

	mu.Lock()
	if types[0] != event.TypeRunStarted || types[len(types)-1] != event.TypeRunFinished {
		t.Errorf("event order = %v", types)
	}
	mu.Unlock()

	var buf bytes.Buffer
	report.Render(&buf, result, false)
	if !strings.Contains(buf.String(), "sass: syntax error") {
		t.Errorf("report missing failure cause:\n%s", buf.String())
	}
	if report.ExitCode(result) != report.ExitFailed {
		t.Errorf("ExitCode = %d", report.ExitCode(result))
	}
}

func TestWatchCoalescingIntegration(t *testing.T) {
	actions := &fakeActions{delay: 50 * time.Millisecond}
	f, reg := loadFrontend(t, actions)
	spec, ok := f.Binding("js")
	if !ok {
		t.Fatal("binding js not found")
	}

	bus := event.NewBus(nil)
	exec := executor.New(bus, nil, executor.Options{})
	var runs atomic.Int32
	run := func(ctx context.Context, tasks []string) {
		plan, err := reg.Resolve(tasks...)
		if err != nil {
			t.Errorf("Resolve(%v) = %v", tasks, err)
			return
		}
		exec.Run(ctx, plan)
		runs.Add(1)
	}

	b, err := watch.NewBinding(context.Background(), spec.Name, spec.Patterns, spec.Tasks, run, bus, nil)
	if err != nil {
		t.Fatalf("NewBinding() = %v", err)
	}
	defer b.Close()

	if !b.Matches("app/js/lib/util.js") || b.Matches("app/css/site.css") {
		t.Error("binding patterns do not match as declared")
	}

	for range 5 {
		b.Trigger()
	}
	b.Wait()

	if got := runs.Load(); got != 2 {
		t.Errorf("runs = %d, want 2 (one run plus one coalesced follow-up)", got)
	}
	if actions.count("build-js") != 2 || actions.count("clean") != 2 {
		t.Errorf("ran = %v", actions.ran)
	}
}
