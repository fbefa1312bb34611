package taskgraph

import (
	"github.com/Iron-Ham/forge/internal/errors"
)

// Plan is a resolved, immutable execution order for a set of requested
// targets. Every task appears after all of its dependencies.
type Plan struct {
	targets []string
	tasks   []Task
	index   map[string]int
}

// Targets returns the requested task names in request order, without duplicates.
func (p *Plan) Targets() []string {
	out := make([]string, len(p.targets))
	copy(out, p.targets)
	return out
}

// Tasks returns the tasks in topological order.
func (p *Plan) Tasks() []Task {
	out := make([]Task, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.clone()
	}
	return out
}

// Names returns the task names in topological order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.Name
	}
	return out
}

// Len returns the number of tasks in the plan.
func (p *Plan) Len() int {
	return len(p.tasks)
}

// Position returns the index of the named task in the plan order.
func (p *Plan) Position(name string) (int, bool) {
	i, ok := p.index[name]
	return i, ok
}

// IsTarget reports whether name was requested explicitly.
func (p *Plan) IsTarget(name string) bool {
	for _, t := range p.targets {
		if t == name {
			return true
		}
	}
	return false
}

// visit marks used by the depth-first traversal.
type mark int

const (
	unvisited mark = iota
	inProgress
	done
)

// Resolve computes a topological order of the transitive dependency closure
// of names.
//
// Requested names are traversed in the order given and each task's
// dependencies in declared order, emitting a task only after all of its
// dependencies (post-order). Meeting a task that is still in progress means
// the graph has a cycle: Resolve fails with a CyclicDependencyError naming
// the members in traversal order and never returns a partial order.
func (r *Registry) Resolve(names ...string) (*Plan, error) {
	if len(names) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no tasks requested")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	plan := &Plan{index: make(map[string]int)}
	marks := make(map[string]mark)
	var stack []string

	var visit func(name, referrer string) error
	visit = func(name, referrer string) error {
		switch marks[name] {
		case done:
			return nil
		case inProgress:
			return errors.NewCyclicDependencyError(cycleFrom(stack, name))
		}

		task, ok := r.tasks[name]
		if !ok {
			err := errors.NewUnknownTaskError(name)
			if referrer != "" {
				err = err.WithReferrer(referrer)
			}
			return err
		}

		marks[name] = inProgress
		stack = append(stack, name)
		for _, dep := range task.Dependencies {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[name] = done

		plan.index[name] = len(plan.tasks)
		plan.tasks = append(plan.tasks, task.clone())
		return nil
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		plan.targets = append(plan.targets, name)

		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

// cycleFrom extracts the cycle closed by revisiting name: the stack suffix
// starting at name, followed by name again.
func cycleFrom(stack []string, name string) []string {
	start := 0
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == name {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(stack)-start+1)
	cycle = append(cycle, stack[start:]...)
	return append(cycle, name)
}
