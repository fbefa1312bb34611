package taskgraph

import (
	"strings"
	"sync"

	"github.com/Iron-Ham/forge/internal/errors"
)

// Registry is the process-wide set of tasks keyed by name.
//
// Registration is a distinct phase: once Seal succeeds, Register fails with
// ErrRegistrySealed. Reads are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]Task
	order  []string // registration order, for listing
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tasks: make(map[string]Task),
	}
}

// Register adds a task. A name that is already registered is rejected with
// a DuplicateTaskError; the existing task is kept. Dependencies may name
// tasks that are registered later; they are checked by Seal.
func (r *Registry) Register(task Task) error {
	if strings.TrimSpace(task.Name) == "" {
		return errors.Wrap(errors.ErrInvalidInput, "task name cannot be empty")
	}
	for _, dep := range task.Dependencies {
		if strings.TrimSpace(dep) == "" {
			return errors.Wrapf(errors.ErrInvalidInput, "task %q has an empty dependency name", task.Name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return errors.Wrapf(errors.ErrRegistrySealed, "cannot register %q", task.Name)
	}
	if _, exists := r.tasks[task.Name]; exists {
		return errors.NewDuplicateTaskError(task.Name)
	}

	r.tasks[task.Name] = task.clone()
	r.order = append(r.order, task.Name)
	return nil
}

// Seal ends the registration phase. It fails with an UnknownTaskError if any
// dependency names an unregistered task; in that case the registry stays
// open so the caller can report every problem before exiting.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, name := range r.order {
		for _, dep := range r.tasks[name].Dependencies {
			if _, ok := r.tasks[dep]; !ok {
				errs = append(errs, errors.NewUnknownTaskError(dep).WithReferrer(name))
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.sealed = true
	return nil
}

// Sealed reports whether the registration phase has ended.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Get returns a copy of the named task.
func (r *Registry) Get(name string) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[name]
	if !ok {
		return Task{}, errors.NewUnknownTaskError(name)
	}
	return task.clone(), nil
}

// Has reports whether a task with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tasks[name]
	return ok
}

// Tasks returns copies of all tasks in registration order.
func (r *Registry) Tasks() []Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name].clone())
	}
	return out
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
