// Package metrics exports run and watch activity as Prometheus metrics.
//
// A Recorder subscribes to the event bus, so nothing in the executor or the
// watcher depends on Prometheus directly.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/logging"
)

// Recorder holds the forge metric families.
type Recorder struct {
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	TaskOutcomes  *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	TasksInFlight prometheus.Gauge
	WatchTriggers *prometheus.CounterVec
	FileChanges   prometheus.Counter

	gatherer prometheus.Gatherer
	subs     []string
	bus      *event.Bus
}

// NewRecorder registers the metric families with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_runs_total",
				Help: "Total number of finished runs by status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forge_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		),
		TaskOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_task_outcomes_total",
				Help: "Total number of task outcomes by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forge_task_duration_seconds",
				Help:    "Task action duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		TasksInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "forge_tasks_in_flight",
				Help: "Number of task actions currently running",
			},
		),
		WatchTriggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forge_watch_triggers_total",
				Help: "Total number of watch triggers by binding and whether they were coalesced",
			},
			[]string{"binding", "coalesced"},
		),
		FileChanges: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "forge_watch_file_changes_total",
				Help: "Total number of debounced file changes that matched a binding",
			},
		),
		gatherer: reg,
	}
}

// Attach subscribes the recorder to bus. Call Detach to unsubscribe.
func (r *Recorder) Attach(bus *event.Bus) {
	r.bus = bus
	r.subs = append(r.subs,
		bus.Subscribe(event.TypeRunFinished, r.onRunFinished),
		bus.Subscribe(event.TypeTaskStarted, r.onTaskStarted),
		bus.Subscribe(event.TypeTaskFinished, r.onTaskFinished),
		bus.Subscribe(event.TypeWatchTriggered, r.onWatchTriggered),
		bus.Subscribe(event.TypeFileChanged, r.onFileChanged),
	)
}

// Detach removes the recorder's subscriptions.
func (r *Recorder) Detach() {
	if r.bus == nil {
		return
	}
	for _, id := range r.subs {
		r.bus.Unsubscribe(id)
	}
	r.subs = nil
}

func (r *Recorder) onRunFinished(e event.Event) {
	ev := e.(event.RunFinishedEvent)
	r.Runs.WithLabelValues(ev.Status).Inc()
	r.RunDuration.WithLabelValues(ev.Status).Observe(ev.Duration.Seconds())
}

func (r *Recorder) onTaskStarted(e event.Event) {
	r.TasksInFlight.Inc()
}

func (r *Recorder) onTaskFinished(e event.Event) {
	ev := e.(event.TaskFinishedEvent)
	r.TaskOutcomes.WithLabelValues(ev.Task, ev.Outcome).Inc()
	// Skipped tasks never started.
	if ev.Outcome == "skipped" {
		return
	}
	r.TasksInFlight.Dec()
	r.TaskDuration.WithLabelValues(ev.Task).Observe(ev.Duration.Seconds())
}

func (r *Recorder) onWatchTriggered(e event.Event) {
	ev := e.(event.WatchTriggeredEvent)
	r.WatchTriggers.WithLabelValues(ev.Binding, strconv.FormatBool(ev.Coalesced)).Inc()
}

func (r *Recorder) onFileChanged(e event.Event) {
	r.FileChanges.Inc()
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.NopLogger()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
