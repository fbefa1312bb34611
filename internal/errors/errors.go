// Package errors provides centralized error definitions and error handling utilities
// for forge. It defines the task-graph error taxonomy, error constructors with
// context, and classification helpers used by the CLI to decide how a failure
// is reported.
//
// # Error Types
//
// Registration and resolution errors are fatal and surface before any task runs:
//   - DuplicateTaskError: a task name was registered twice
//   - UnknownTaskError: a requested task or a dependency is not registered
//   - CyclicDependencyError: the dependency graph reachable from a request is not acyclic
//
// Execution errors are local to the failing task:
//   - ActionFailure: a task's action returned an error, panicked, or signaled failure
//
// Input errors:
//   - TaskfileError: the task file could not be parsed or is semantically invalid
//
// # Usage
//
//	if errors.Is(err, errors.ErrDependencyCycle) { ... }
//
//	var cycle *errors.CyclicDependencyError
//	if errors.As(err, &cycle) {
//	    fmt.Println(strings.Join(cycle.Cycle, " -> "))
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task graph sentinel errors
var (
	// ErrDuplicateTask indicates that a task name is already registered.
	ErrDuplicateTask = New("task already registered")
	// ErrUnknownTask indicates that a task name is not registered.
	ErrUnknownTask = New("unknown task")
	// ErrDependencyCycle indicates a circular dependency between tasks.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrRegistrySealed indicates a registration attempt after the registration phase ended.
	ErrRegistrySealed = New("task registry is sealed")
)

// Execution sentinel errors
var (
	// ErrActionFailed indicates that a task action reported failure.
	ErrActionFailed = New("task action failed")
	// ErrRunCancelled indicates that a run was cancelled before it completed.
	ErrRunCancelled = New("run cancelled")
	// ErrRunFailed indicates that a run finished with at least one failed task.
	ErrRunFailed = New("run failed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrTaskfileInvalid indicates that the task file is malformed.
	ErrTaskfileInvalid = New("invalid task file")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ForgeError is the base interface for all forge errors.
type ForgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users without further context.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Task Graph Errors
// -----------------------------------------------------------------------------

// DuplicateTaskError reports a second registration under an existing name.
//
// Example:
//
//	err := errors.NewDuplicateTaskError("build")
//	fmt.Println(err) // "task 'build' already registered"
type DuplicateTaskError struct {
	baseError
	Name string
}

// NewDuplicateTaskError creates a new DuplicateTaskError.
func NewDuplicateTaskError(name string) *DuplicateTaskError {
	return &DuplicateTaskError{
		baseError: baseError{
			message:    fmt.Sprintf("task '%s' already registered", name),
			severity:   SeverityError,
			userFacing: true,
		},
		Name: name,
	}
}

// Is matches ErrDuplicateTask and any *DuplicateTaskError.
func (e *DuplicateTaskError) Is(target error) bool {
	if target == ErrDuplicateTask {
		return true
	}
	if _, ok := target.(*DuplicateTaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// UnknownTaskError reports a task name that is not registered. Referrer is
// the task whose dependency list named it, or empty when the name was
// requested directly.
//
// Example:
//
//	err := errors.NewUnknownTaskError("lint").WithReferrer("build")
//	fmt.Println(err) // "unknown task 'lint' (dependency of 'build')"
type UnknownTaskError struct {
	baseError
	Name     string
	Referrer string
}

// NewUnknownTaskError creates a new UnknownTaskError.
func NewUnknownTaskError(name string) *UnknownTaskError {
	return &UnknownTaskError{
		baseError: baseError{
			message:    fmt.Sprintf("unknown task '%s'", name),
			severity:   SeverityError,
			userFacing: true,
		},
		Name: name,
	}
}

// WithReferrer records the task whose dependency list referenced the unknown name.
func (e *UnknownTaskError) WithReferrer(referrer string) *UnknownTaskError {
	e.Referrer = referrer
	return e
}

// Error returns the formatted error message.
func (e *UnknownTaskError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("unknown task '%s' (dependency of '%s')", e.Name, e.Referrer)
	}
	return e.message
}

// Is matches ErrUnknownTask and any *UnknownTaskError.
func (e *UnknownTaskError) Is(target error) bool {
	if target == ErrUnknownTask {
		return true
	}
	if _, ok := target.(*UnknownTaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CyclicDependencyError reports a dependency cycle. Cycle lists the member
// task names in traversal order; the first name is repeated at the end to
// close the loop.
//
// Example:
//
//	err := errors.NewCyclicDependencyError([]string{"a", "b", "a"})
//	fmt.Println(err) // "dependency cycle detected: a -> b -> a"
type CyclicDependencyError struct {
	baseError
	Cycle []string
}

// NewCyclicDependencyError creates a new CyclicDependencyError.
func NewCyclicDependencyError(cycle []string) *CyclicDependencyError {
	path := make([]string, len(cycle))
	copy(path, cycle)
	return &CyclicDependencyError{
		baseError: baseError{
			message:    ErrDependencyCycle.Error(),
			severity:   SeverityError,
			userFacing: true,
		},
		Cycle: path,
	}
}

// Error returns the formatted error message.
func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, strings.Join(e.Cycle, " -> "))
}

// Members returns the distinct task names in the cycle, in traversal order.
func (e *CyclicDependencyError) Members() []string {
	if len(e.Cycle) > 1 && e.Cycle[0] == e.Cycle[len(e.Cycle)-1] {
		return e.Cycle[:len(e.Cycle)-1]
	}
	return e.Cycle
}

// Is matches ErrDependencyCycle and any *CyclicDependencyError.
func (e *CyclicDependencyError) Is(target error) bool {
	if target == ErrDependencyCycle {
		return true
	}
	if _, ok := target.(*CyclicDependencyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Execution Errors
// -----------------------------------------------------------------------------

// ActionFailure reports that a task's action failed. It carries the task
// name and the underlying cause.
//
// Example:
//
//	err := errors.NewActionFailure("build-css", exitErr)
//	fmt.Println(err) // "task 'build-css' failed: exit status 1"
type ActionFailure struct {
	baseError
	Task string
}

// NewActionFailure creates a new ActionFailure.
func NewActionFailure(task string, cause error) *ActionFailure {
	return &ActionFailure{
		baseError: baseError{
			message:    fmt.Sprintf("task '%s' failed", task),
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
		Task: task,
	}
}

// Cause returns the error the action reported.
func (e *ActionFailure) Cause() error {
	return e.cause
}

// Is matches ErrActionFailed, any *ActionFailure, and the wrapped cause.
func (e *ActionFailure) Is(target error) bool {
	if target == ErrActionFailed {
		return true
	}
	if _, ok := target.(*ActionFailure); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Input Errors
// -----------------------------------------------------------------------------

// TaskfileError reports a malformed or invalid task file.
//
// Example:
//
//	err := errors.NewTaskfileError("task has both cmd and cmds", nil).WithPath("forge.yaml").WithLine(12)
//	fmt.Println(err) // "forge.yaml:12: task has both cmd and cmds"
type TaskfileError struct {
	baseError
	Path string
	Line int
}

// NewTaskfileError creates a new TaskfileError.
func NewTaskfileError(message string, cause error) *TaskfileError {
	return &TaskfileError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath records the task file path.
func (e *TaskfileError) WithPath(path string) *TaskfileError {
	e.Path = path
	return e
}

// WithLine records the 1-based line the problem was found on.
func (e *TaskfileError) WithLine(line int) *TaskfileError {
	e.Line = line
	return e
}

// Error returns the formatted error message.
func (e *TaskfileError) Error() string {
	var prefix string
	switch {
	case e.Path != "" && e.Line > 0:
		prefix = fmt.Sprintf("%s:%d: ", e.Path, e.Line)
	case e.Path != "":
		prefix = e.Path + ": "
	}
	return prefix + e.baseError.Error()
}

// Is matches ErrTaskfileInvalid and any *TaskfileError.
func (e *TaskfileError) Is(target error) bool {
	if target == ErrTaskfileInvalid {
		return true
	}
	if _, ok := target.(*TaskfileError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var forgeErr ForgeError
	if As(err, &forgeErr) {
		return forgeErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ForgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var forgeErr ForgeError
	if As(err, &forgeErr) {
		return forgeErr.Severity()
	}
	return SeverityError
}

// IsGraphError returns true if the error rejects the task graph itself
// (duplicate, unknown, or cyclic tasks). Graph errors are always reported
// before any task runs.
func IsGraphError(err error) bool {
	return Is(err, ErrDuplicateTask) || Is(err, ErrUnknownTask) ||
		Is(err, ErrDependencyCycle) || Is(err, ErrRegistrySealed)
}

// FailedTask returns the task whose action failed and the error the action
// reported, if err carries an ActionFailure.
func FailedTask(err error) (task string, cause error, ok bool) {
	var af *ActionFailure
	if As(err, &af) {
		return af.Task, af.cause, true
	}
	return "", nil, false
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
// Unlike fmt.Errorf with %w, this returns nil for a nil error.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to load task file")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
