package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Task Graph Error Tests
// -----------------------------------------------------------------------------

func TestDuplicateTaskError(t *testing.T) {
	err := NewDuplicateTaskError("build")

	if err.Error() != "task 'build' already registered" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrDuplicateTask) {
		t.Error("expected errors.Is(err, ErrDuplicateTask)")
	}
	if errors.Is(err, ErrUnknownTask) {
		t.Error("DuplicateTaskError should not match ErrUnknownTask")
	}
	if !err.IsUserFacing() {
		t.Error("IsUserFacing() = false, want true")
	}
}

func TestUnknownTaskError(t *testing.T) {
	tests := []struct {
		name     string
		err      *UnknownTaskError
		expected string
	}{
		{
			name:     "requested directly",
			err:      NewUnknownTaskError("lint"),
			expected: "unknown task 'lint'",
		},
		{
			name:     "referenced as dependency",
			err:      NewUnknownTaskError("lint").WithReferrer("build"),
			expected: "unknown task 'lint' (dependency of 'build')",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if !errors.Is(tt.err, ErrUnknownTask) {
				t.Error("expected errors.Is(err, ErrUnknownTask)")
			}
		})
	}
}

func TestCyclicDependencyError(t *testing.T) {
	err := NewCyclicDependencyError([]string{"a", "b", "c", "a"})

	if got := err.Error(); got != "dependency cycle detected: a -> b -> c -> a" {
		t.Errorf("Error() = %q", got)
	}
	members := err.Members()
	if len(members) != 3 || members[0] != "a" || members[2] != "c" {
		t.Errorf("Members() = %v, want [a b c]", members)
	}

	wrapped := fmt.Errorf("resolving: %w", err)
	var cycleErr *CyclicDependencyError
	if !errors.As(wrapped, &cycleErr) {
		t.Fatal("expected errors.As to find CyclicDependencyError")
	}
	if !errors.Is(wrapped, ErrDependencyCycle) {
		t.Error("expected wrapped error to match ErrDependencyCycle")
	}
}

func TestCyclicDependencyError_CopiesPath(t *testing.T) {
	path := []string{"x", "x"}
	err := NewCyclicDependencyError(path)
	path[0] = "mutated"

	if err.Cycle[0] != "x" {
		t.Errorf("Cycle[0] = %q, want %q", err.Cycle[0], "x")
	}
}

// -----------------------------------------------------------------------------
// Execution Error Tests
// -----------------------------------------------------------------------------

func TestActionFailure(t *testing.T) {
	cause := errors.New("exit status 2")
	err := NewActionFailure("build-css", cause)

	if got := err.Error(); got != "task 'build-css' failed: exit status 2" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrActionFailed) {
		t.Error("expected errors.Is(err, ErrActionFailed)")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is(err, cause)")
	}
	if err.Cause() != cause {
		t.Errorf("Cause() = %v, want %v", err.Cause(), cause)
	}

	task, gotCause, ok := FailedTask(fmt.Errorf("run: %w", err))
	if !ok || task != "build-css" || gotCause != cause {
		t.Errorf("FailedTask() = %q, %v, %v; want build-css, cause, true", task, gotCause, ok)
	}
}

func TestFailedTask_NonActionError(t *testing.T) {
	if _, _, ok := FailedTask(errors.New("plain")); ok {
		t.Error("FailedTask() should report false for a plain error")
	}
}

func TestTaskfileError(t *testing.T) {
	tests := []struct {
		name     string
		err      *TaskfileError
		expected string
	}{
		{
			name:     "message only",
			err:      NewTaskfileError("no tasks defined", nil),
			expected: "no tasks defined",
		},
		{
			name:     "with path",
			err:      NewTaskfileError("no tasks defined", nil).WithPath("forge.yaml"),
			expected: "forge.yaml: no tasks defined",
		},
		{
			name:     "with path and line",
			err:      NewTaskfileError("bad task", errors.New("cmd and cmds both set")).WithPath("forge.yaml").WithLine(7),
			expected: "forge.yaml:7: bad task: cmd and cmds both set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
			if !errors.Is(tt.err, ErrTaskfileInvalid) {
				t.Error("expected errors.Is(err, ErrTaskfileInvalid)")
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsGraphError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate", NewDuplicateTaskError("a"), true},
		{"unknown", NewUnknownTaskError("a"), true},
		{"cycle", NewCyclicDependencyError([]string{"a", "a"}), true},
		{"sealed", Wrap(ErrRegistrySealed, "register"), true},
		{"action failure", NewActionFailure("a", errors.New("boom")), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGraphError(tt.err); got != tt.want {
				t.Errorf("IsGraphError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want debug", got)
	}
	if got := GetSeverity(errors.New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}
	if got := GetSeverity(NewUnknownTaskError("x")); got != SeverityError {
		t.Errorf("GetSeverity(unknown) = %v, want error", got)
	}
	if got := GetSeverity(Join(ErrRunFailed, NewActionFailure("a", errors.New("boom")))); got != SeverityWarning {
		t.Errorf("GetSeverity(run failure) = %v, want warning", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("IsUserFacing(nil) = true")
	}
	if IsUserFacing(errors.New("internal")) {
		t.Error("IsUserFacing(plain) = true")
	}
	if !IsUserFacing(Wrap(NewDuplicateTaskError("x"), "register")) {
		t.Error("IsUserFacing(wrapped duplicate) = false")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrInvalidInput, "task %q", "x")
	if err.Error() != `task "x": invalid input` {
		t.Errorf("Wrapf() = %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("Wrapf should preserve the wrapped error")
	}
}
