// Package report prints run results and task listings for the CLI.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/executor"
	"github.com/Iron-Ham/forge/internal/taskgraph"
	"github.com/Iron-Ham/forge/internal/tui/styles"
)

// Exit codes returned by ExitCode.
const (
	ExitOK        = 0
	ExitFailed    = 1
	ExitUsage     = 2
	ExitCancelled = 130
)

// ExitCode maps a run status to a process exit code.
func ExitCode(result *executor.RunResult) int {
	if result == nil {
		return ExitFailed
	}
	switch result.Status {
	case executor.StatusSuccess:
		return ExitOK
	case executor.StatusCancelled:
		return ExitCancelled
	default:
		return ExitFailed
	}
}

// printer applies styles only when color is enabled.
type printer struct {
	w     io.Writer
	color bool
}

func (p printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p printer) state(state, text string) string {
	if !p.color {
		return text
	}
	return styles.State(state, text)
}

// Render prints one line per task in plan order, a status summary, and the
// cause of every failure.
func Render(w io.Writer, result *executor.RunResult, color bool) {
	p := printer{w: w, color: color}

	width := 0
	for _, name := range result.Order {
		width = max(width, len(name))
	}

	for _, name := range result.Order {
		outcome := result.Outcomes[name]
		state := string(outcome.State)
		detail := formatDuration(outcome.Duration)
		if outcome.State == executor.OutcomeSkipped || outcome.State == executor.OutcomeCancelled {
			detail = state
		}
		_, _ = fmt.Fprintf(w, "  %s %s  %s\n",
			p.state(state, styles.StateIcon(state)),
			p.style(styles.TaskName, fmt.Sprintf("%-*s", width, name)),
			p.style(styles.Muted, detail),
		)
	}

	succeeded := len(result.Succeeded())
	failed := len(result.Failed())
	skipped := len(result.Skipped())
	_, _ = fmt.Fprintf(w, "\n%s %s\n",
		p.state(string(result.Status), strings.ToUpper(string(result.Status))),
		p.style(styles.Muted, fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
			succeeded, failed, skipped, formatDuration(result.Duration))),
	)

	if failed == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "\n"+p.style(styles.Error, "Failures:"))
	for _, name := range result.Failed() {
		msg := "failed"
		if _, cause, ok := errors.FailedTask(result.Outcomes[name].Err); ok && cause != nil {
			msg = cause.Error()
		}
		_, _ = fmt.Fprintf(w, "  %s: %s\n", p.style(styles.Error, name), msg)
	}
}

// List prints task names with their descriptions in registration order.
// Hidden tasks are included only when all is set; dependencies are shown for
// grouping tasks without a description.
func List(w io.Writer, tasks []taskgraph.Task, all, color bool) {
	p := printer{w: w, color: color}

	var shown []taskgraph.Task
	width := 0
	for _, t := range tasks {
		if t.Hidden && !all {
			continue
		}
		shown = append(shown, t)
		width = max(width, len(t.Name))
	}
	if len(shown) == 0 {
		_, _ = fmt.Fprintln(w, p.style(styles.Muted, "No tasks registered."))
		return
	}

	_, _ = fmt.Fprintln(w, p.style(styles.Title, "Tasks:"))
	for _, t := range shown {
		desc := t.Description
		if desc == "" && len(t.Dependencies) > 0 {
			desc = "runs " + strings.Join(t.Dependencies, ", ")
		}
		if t.Hidden {
			desc = strings.TrimSpace(desc + " (hidden)")
		}
		_, _ = fmt.Fprintf(w, "  %s  %s\n",
			p.style(styles.Primary, fmt.Sprintf("%-*s", width, t.Name)),
			p.style(styles.Muted, desc),
		)
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}
