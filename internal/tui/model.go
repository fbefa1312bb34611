package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/tui/styles"
)

// maxRecentChanges bounds the file change list in the footer.
const maxRecentChanges = 5

// BindingInfo describes a watch binding for display.
type BindingInfo struct {
	Name     string
	Patterns []string
	Tasks    []string
}

// eventMsg carries a bus event into the bubbletea loop.
type eventMsg struct {
	event event.Event
}

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type bindingState struct {
	info     BindingInfo
	running  bool
	triggers int
	runs     int
	last     string // status of the last finished run
}

// Model is the watch dashboard. It is driven entirely by bus events.
type Model struct {
	bindings []*bindingState

	tasks  []string // display order, first seen first
	states map[string]string
	times  map[string]time.Duration
	owner  map[string]string // task -> ID of the run that last scheduled it

	runs      map[string][]*bindingState // in-flight run ID -> bindings
	lastRun   string
	lastState string
	changes   []string

	spinner  spinner.Model
	width    int
	quitting bool
}

// NewModel creates a dashboard for the given bindings.
func NewModel(bindings []BindingInfo) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.StateRunning)

	m := Model{
		states:  make(map[string]string),
		times:   make(map[string]time.Duration),
		owner:   make(map[string]string),
		runs:    make(map[string][]*bindingState),
		spinner: s,
	}
	for _, b := range bindings {
		bs := &bindingState{info: b}
		m.bindings = append(m.bindings, bs)
	}
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles key presses, window resizes, spinner ticks, and bus events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.apply(msg.event)
	}
	return m, nil
}

func (m *Model) apply(e event.Event) {
	switch ev := e.(type) {
	case event.RunStartedEvent:
		m.lastRun = ev.RunID
		for _, name := range ev.Tasks {
			if !slices.Contains(m.tasks, name) {
				m.tasks = append(m.tasks, name)
			}
			m.states[name] = "pending"
			m.times[name] = 0
			m.owner[name] = ev.RunID
		}
		owners := m.bindingsFor(ev.Targets)
		for _, bs := range owners {
			bs.running = true
		}
		m.runs[ev.RunID] = owners
	case event.TaskStartedEvent:
		m.states[ev.Task] = "running"
	case event.TaskFinishedEvent:
		m.states[ev.Task] = ev.Outcome
		m.times[ev.Task] = ev.Duration
	case event.RunFinishedEvent:
		// Task events may have been dropped under load; the run's final
		// outcomes are authoritative unless a newer run owns the task.
		for name, outcome := range ev.Outcomes {
			if m.owner[name] == ev.RunID {
				m.states[name] = outcome
			}
		}
		if ev.RunID == m.lastRun {
			m.lastState = ev.Status
		}
		for _, bs := range m.runs[ev.RunID] {
			bs.running = false
			bs.runs++
			bs.last = ev.Status
		}
		delete(m.runs, ev.RunID)
	case event.WatchTriggeredEvent:
		for _, bs := range m.bindings {
			if bs.info.Name == ev.Binding {
				bs.triggers++
			}
		}
	case event.FileChangedEvent:
		m.changes = append([]string{ev.Path}, m.changes...)
		if len(m.changes) > maxRecentChanges {
			m.changes = m.changes[:maxRecentChanges]
		}
	}
}

// bindingsFor returns the bindings whose task list matches targets.
func (m *Model) bindingsFor(targets []string) []*bindingState {
	var out []*bindingState
	for _, bs := range m.bindings {
		if slices.Equal(bs.info.Tasks, targets) {
			out = append(out, bs)
		}
	}
	return out
}

// State returns the displayed state of a task, for tests.
func (m Model) State(task string) string {
	return m.states[task]
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("forge watch"))
	if m.lastState != "" {
		b.WriteString("  " + styles.State(m.lastState, m.lastState))
	}
	b.WriteString("\n\n")

	var bindings []string
	for _, bs := range m.bindings {
		icon := styles.State("pending", "○")
		if bs.running {
			icon = m.spinner.View()
		}
		line := fmt.Sprintf("%s %s %s", icon,
			styles.Primary.Render(bs.info.Name),
			styles.Muted.Render(fmt.Sprintf("→ %s  (%d triggers, %d runs)",
				strings.Join(bs.info.Tasks, ", "), bs.triggers, bs.runs)))
		if bs.last != "" {
			line += " " + styles.State(bs.last, bs.last)
		}
		bindings = append(bindings, line)
	}
	if len(bindings) > 0 {
		b.WriteString(styles.Box.Render(strings.Join(bindings, "\n")))
		b.WriteString("\n\n")
	}

	width := 0
	for _, name := range m.tasks {
		width = max(width, len(name))
	}
	for _, name := range m.tasks {
		state := m.states[name]
		icon := styles.State(state, styles.StateIcon(state))
		if state == "running" {
			icon = m.spinner.View()
		}
		detail := state
		if d := m.times[name]; d > 0 && state != "running" {
			detail = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(&b, "  %s %s  %s\n", icon, fmt.Sprintf("%-*s", width, name), styles.Muted.Render(detail))
	}

	if len(m.changes) > 0 {
		b.WriteString("\n" + styles.Subtitle.Render("recent changes: "+strings.Join(m.changes, ", ")) + "\n")
	}
	b.WriteString("\n" + styles.Help.Render(keys.Quit.Help().Key+" "+keys.Quit.Help().Desc) + "\n")
	return b.String()
}
