package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/executor"
	"github.com/Iron-Ham/forge/internal/metrics"
	"github.com/Iron-Ham/forge/internal/report"
	"github.com/Iron-Ham/forge/internal/taskfile"
	"github.com/Iron-Ham/forge/internal/tui"
	"github.com/Iron-Ham/forge/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [task...]",
	Short: "Re-run tasks when files change",
	Long: `Watch the project and re-run tasks when matching files change.

Without arguments, uses the watch bindings declared in the task file.
With task names, watches the --pattern globs and runs those tasks:

  forge watch build-js -p 'app/**/*.js'

A binding never runs twice at once. Changes made while its tasks are running
are collected into a single follow-up run. Stop with Ctrl+C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringArrayP("pattern", "p", nil, "glob to watch for the tasks given as arguments (repeatable)")
	watchCmd.Flags().Bool("tui", false, "show a live dashboard instead of plain output")
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	watchCmd.Flags().Bool("run-on-start", true, "run every binding once before watching")
	bindFlag("metrics.addr", watchCmd, "metrics-addr")
	bindFlag("watch.run_on_start", watchCmd, "run-on-start")
}

// adHocBinding names the binding built from command line arguments.
const adHocBinding = "cli"

func runWatch(cmd *cobra.Command, args []string) error {
	patterns, _ := cmd.Flags().GetStringArray("pattern")
	useTUI, _ := cmd.Flags().GetBool("tui")

	// The dashboard owns the terminal; task output would tear it.
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if useTUI {
		stdout, stderr = io.Discard, io.Discard
	}

	s, err := newSession(cmd, stdout, stderr)
	if err != nil {
		return err
	}
	defer s.close()

	specs, err := watchSpecs(s, args, patterns)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exec := s.executor()
	out := cmd.OutOrStdout()
	var renderMu sync.Mutex
	run := func(ctx context.Context, tasks []string) {
		plan, err := s.reg.Resolve(tasks...)
		if err != nil {
			logError(s.logger, "resolve failed", err, "tasks", tasks)
			return
		}
		result := exec.Run(ctx, plan)
		if err := result.Err(); err != nil && result.Status != executor.StatusCancelled {
			logError(s.logger, "watch run did not succeed", err, "tasks", tasks, "status", string(result.Status))
		}
		if useTUI {
			return
		}
		renderMu.Lock()
		defer renderMu.Unlock()
		report.Render(out, result, s.color)
		_, _ = fmt.Fprintln(out)
	}

	bindings := make([]*watch.Binding, 0, len(specs))
	defer func() {
		for _, b := range bindings {
			b.Close()
		}
	}()
	for _, spec := range specs {
		b, err := watch.NewBinding(ctx, spec.Name, spec.Patterns, spec.Tasks, run, s.bus, s.logger)
		if err != nil {
			return err
		}
		bindings = append(bindings, b)
	}

	w, err := watch.NewWatcher(s.file.Dir(), bindings, s.bus, s.logger, watch.Options{
		Debounce: s.cfg.Watch.Debounce(),
		Ignore:   s.cfg.Watch.Ignore,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	if addr := s.cfg.Metrics.Addr; addr != "" {
		rec := metrics.NewRecorder(prometheus.NewRegistry())
		rec.Attach(s.bus)
		defer rec.Detach()
		go func() {
			if err := rec.Serve(ctx, addr, s.logger); err != nil {
				s.logger.Error("metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	var app *tui.App
	if useTUI {
		// Subscribe before the initial runs so the dashboard sees them.
		infos := make([]tui.BindingInfo, 0, len(specs))
		for _, spec := range specs {
			infos = append(infos, tui.BindingInfo{Name: spec.Name, Patterns: spec.Patterns, Tasks: spec.Tasks})
		}
		app = tui.New(s.bus, infos)
	}

	if app == nil {
		for _, spec := range specs {
			_, _ = fmt.Fprintf(out, "watching %s -> %s\n", strings.Join(spec.Patterns, " "), strings.Join(spec.Tasks, ", "))
		}
		_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop.")
	}

	if s.cfg.Watch.RunOnStart {
		for _, b := range bindings {
			b.Trigger()
		}
	}

	if app != nil {
		if err := app.Run(ctx); err != nil {
			return fmt.Errorf("TUI error: %w", err)
		}
		return nil
	}
	<-ctx.Done()
	return nil
}

// watchSpecs returns the bindings to watch: an ad-hoc binding when tasks
// are given on the command line, otherwise the task file's bindings. Every
// task must exist.
func watchSpecs(s *session, args, patterns []string) ([]taskfile.WatchSpec, error) {
	var specs []taskfile.WatchSpec
	switch {
	case len(args) > 0:
		if len(patterns) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidInput, "--pattern is required when tasks are given")
		}
		specs = []taskfile.WatchSpec{{Name: adHocBinding, Patterns: patterns, Tasks: args}}
	case len(patterns) > 0:
		return nil, errors.Wrap(errors.ErrInvalidInput, "--pattern needs at least one task to run")
	default:
		specs = s.file.Watch
		if len(specs) == 0 {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "%s declares no watch bindings; pass tasks and --pattern", s.file.Path)
		}
	}

	for _, spec := range specs {
		if _, err := s.reg.Resolve(spec.Tasks...); err != nil {
			return nil, errors.Wrapf(err, "watch binding %q", spec.Name)
		}
	}
	return specs, nil
}
