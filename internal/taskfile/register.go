package taskfile

import (
	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/taskgraph"
)

// ActionFactory builds the action for a task spec. A nil action makes the
// task a grouping node.
type ActionFactory interface {
	Action(spec TaskSpec) taskgraph.Action
}

// Register adds every task in f to reg in declaration order. It does not
// seal the registry. Failures are reported together, each tagged with the
// line the task was declared on.
func (f *File) Register(reg *taskgraph.Registry, actions ActionFactory) error {
	var errs []error
	for _, spec := range f.Tasks {
		task := taskgraph.Task{
			Name:         spec.Name,
			Dependencies: spec.Deps,
			Description:  spec.Description,
			Hidden:       spec.Hidden,
		}
		if actions != nil {
			task.Action = actions.Action(spec)
		}
		if err := reg.Register(task); err != nil {
			errs = append(errs, errors.NewTaskfileError("register task "+spec.Name, err).WithPath(f.Path).WithLine(spec.Line))
		}
	}
	return errors.Join(errs...)
}

// Registry registers f's tasks on a fresh registry and seals it.
func (f *File) Registry(actions ActionFactory) (*taskgraph.Registry, error) {
	reg := taskgraph.NewRegistry()
	if err := f.Register(reg, actions); err != nil {
		return nil, err
	}
	if err := reg.Seal(); err != nil {
		return nil, errors.Wrapf(err, "%s", f.Path)
	}
	return reg, nil
}

// LoadRegistry loads path, registers its tasks on a fresh registry, and
// seals it.
func LoadRegistry(path string, actions ActionFactory) (*File, *taskgraph.Registry, error) {
	f, err := Load(path)
	if err != nil {
		return nil, nil, err
	}
	reg, err := f.Registry(actions)
	if err != nil {
		return nil, nil, err
	}
	return f, reg, nil
}
