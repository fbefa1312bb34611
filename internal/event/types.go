package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.started", "run.finished")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeRunStarted     = "run.started"
	TypeRunFinished    = "run.finished"
	TypeTaskStarted    = "task.started"
	TypeTaskFinished   = "task.finished"
	TypeFileChanged    = "watch.changed"
	TypeWatchTriggered = "watch.triggered"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once a plan has been accepted for execution.
type RunStartedEvent struct {
	baseEvent
	RunID   string
	Targets []string // requested task names
	Tasks   []string // full plan in topological order
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, targets, tasks []string) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Targets:   targets,
		Tasks:     tasks,
	}
}

// RunFinishedEvent is emitted after every task in a run reached a terminal state.
type RunFinishedEvent struct {
	baseEvent
	RunID    string
	Status   string   // success, partial-failure, failure, cancelled
	Failed   []string // tasks whose action failed
	Duration time.Duration
	// Outcomes maps every task of the run to its final outcome.
	Outcomes map[string]string
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(runID, status string, failed []string, duration time.Duration) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent(TypeRunFinished),
		RunID:     runID,
		Status:    status,
		Failed:    failed,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Task Events
// -----------------------------------------------------------------------------

// TaskStartedEvent is emitted when a task is dispatched.
type TaskStartedEvent struct {
	baseEvent
	RunID string
	Task  string
}

// NewTaskStartedEvent creates a TaskStartedEvent.
func NewTaskStartedEvent(runID, task string) TaskStartedEvent {
	return TaskStartedEvent{
		baseEvent: newBaseEvent(TypeTaskStarted),
		RunID:     runID,
		Task:      task,
	}
}

// TaskFinishedEvent is emitted when a task reaches a terminal state,
// including tasks skipped because a dependency failed.
type TaskFinishedEvent struct {
	baseEvent
	RunID    string
	Task     string
	Outcome  string // success, failure, skipped, cancelled
	Err      error
	Duration time.Duration
}

// NewTaskFinishedEvent creates a TaskFinishedEvent.
func NewTaskFinishedEvent(runID, task, outcome string, err error, duration time.Duration) TaskFinishedEvent {
	return TaskFinishedEvent{
		baseEvent: newBaseEvent(TypeTaskFinished),
		RunID:     runID,
		Task:      task,
		Outcome:   outcome,
		Err:       err,
		Duration:  duration,
	}
}

// -----------------------------------------------------------------------------
// Watch Events
// -----------------------------------------------------------------------------

// FileChangedEvent is emitted for a debounced filesystem change that
// matched at least one watch binding.
type FileChangedEvent struct {
	baseEvent
	Path     string
	Bindings []string
}

// NewFileChangedEvent creates a FileChangedEvent.
func NewFileChangedEvent(path string, bindings []string) FileChangedEvent {
	return FileChangedEvent{
		baseEvent: newBaseEvent(TypeFileChanged),
		Path:      path,
		Bindings:  bindings,
	}
}

// WatchTriggeredEvent is emitted when a watch binding is triggered.
// Coalesced is true when the trigger arrived during an in-flight run and was
// folded into the single pending follow-up run.
type WatchTriggeredEvent struct {
	baseEvent
	Binding   string
	Coalesced bool
}

// NewWatchTriggeredEvent creates a WatchTriggeredEvent.
func NewWatchTriggeredEvent(binding string, coalesced bool) WatchTriggeredEvent {
	return WatchTriggeredEvent{
		baseEvent: newBaseEvent(TypeWatchTriggered),
		Binding:   binding,
		Coalesced: coalesced,
	}
}
