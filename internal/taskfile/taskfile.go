// Package taskfile loads task declarations from forge.yaml.
//
// A task file declares tasks and watch bindings:
//
//	tasks:
//	  clean:
//	    description: Remove build output
//	    cmd: rm -rf dist
//	  copy:
//	    deps: [clean]
//	    cmd: cp -r app/static dist/
//	  build: [copy, build-css, build-js]
//	watch:
//	  - name: frontend
//	    patterns: ["app/**/*"]
//	    tasks: [build-dev]
//
// A task written as a list is shorthand for a grouping task with those
// dependencies; a task written as a string is shorthand for cmd. Tasks keep
// their declaration order, which is also the order used by "forge list".
package taskfile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/forge/internal/errors"
)

// DefaultFileName is the task file looked up when none is configured.
const DefaultFileName = "forge.yaml"

// File is a parsed task file.
type File struct {
	Path  string
	Tasks []TaskSpec
	Watch []WatchSpec
}

// TaskSpec is one declared task.
type TaskSpec struct {
	Name        string            `yaml:"-"`
	Description string            `yaml:"description"`
	Hidden      bool              `yaml:"hidden"`
	Deps        []string          `yaml:"deps"`
	Cmd         string            `yaml:"cmd"`
	Cmds        []string          `yaml:"cmds"`
	Dir         string            `yaml:"dir"`
	Env         map[string]string `yaml:"env"`
	Line        int               `yaml:"-"`
}

// Commands returns the shell commands of the task in execution order.
func (t TaskSpec) Commands() []string {
	if t.Cmd != "" {
		return []string{t.Cmd}
	}
	return slices.Clone(t.Cmds)
}

// WatchSpec is one declared watch binding.
type WatchSpec struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
	Tasks    []string `yaml:"tasks"`
	Line     int      `yaml:"-"`
}

var (
	topLevelKeys = []string{"tasks", "watch"}
	taskKeys     = []string{"description", "hidden", "deps", "cmd", "cmds", "dir", "env"}
	watchKeys    = []string{"name", "patterns", "tasks"}
)

// Load reads and parses the task file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTaskfileError("read task file", err).WithPath(path)
	}
	return Parse(path, data)
}

// Parse parses task file content. path is used for error messages and as
// the base directory for relative task dirs.
func Parse(path string, data []byte) (*File, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewTaskfileError("invalid YAML", err).WithPath(path)
	}
	if len(doc.Content) == 0 {
		return nil, errors.NewTaskfileError("task file is empty", nil).WithPath(path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fail(path, root, "top level must be a mapping")
	}

	f := &File{Path: path}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		var err error
		switch key.Value {
		case "tasks":
			f.Tasks, err = parseTasks(path, val)
		case "watch":
			f.Watch, err = parseWatch(path, val)
		default:
			err = fail(path, key, "unknown key %q (expected one of %v)", key.Value, topLevelKeys)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(f.Tasks) == 0 {
		return nil, errors.NewTaskfileError("no tasks declared", nil).WithPath(path)
	}
	return f, nil
}

func parseTasks(path string, node *yaml.Node) ([]TaskSpec, error) {
	if node.Kind != yaml.MappingNode {
		return nil, fail(path, node, "tasks must be a mapping of name to task")
	}

	seen := make(map[string]int)
	var specs []TaskSpec
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		name := key.Value
		if name == "" {
			return nil, fail(path, key, "task name must not be empty")
		}
		if line, dup := seen[name]; dup {
			return nil, fail(path, key, "task %q already declared on line %d", name, line)
		}
		seen[name] = key.Line

		spec, err := parseTask(path, val)
		if err != nil {
			return nil, err
		}
		spec.Name = name
		spec.Line = key.Line
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseTask(path string, node *yaml.Node) (TaskSpec, error) {
	var spec TaskSpec
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			spec.Cmd = node.Value
		}
		return spec, nil
	case yaml.SequenceNode:
		if err := node.Decode(&spec.Deps); err != nil {
			return spec, fail(path, node, "task shorthand must be a list of dependency names: %v", err)
		}
		return spec, nil
	case yaml.MappingNode:
	default:
		return spec, fail(path, node, "task must be a mapping, a command string, or a dependency list")
	}

	if err := checkKeys(path, node, taskKeys); err != nil {
		return spec, err
	}
	if err := node.Decode(&spec); err != nil {
		return spec, fail(path, node, "%v", err)
	}
	if spec.Cmd != "" && len(spec.Cmds) > 0 {
		return spec, fail(path, node, "cmd and cmds are mutually exclusive")
	}
	for _, dep := range spec.Deps {
		if dep == "" {
			return spec, fail(path, node, "dependency names must not be empty")
		}
	}
	return spec, nil
}

func parseWatch(path string, node *yaml.Node) ([]WatchSpec, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fail(path, node, "watch must be a list of bindings")
	}

	seen := make(map[string]bool)
	var specs []WatchSpec
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fail(path, item, "watch binding must be a mapping")
		}
		if err := checkKeys(path, item, watchKeys); err != nil {
			return nil, err
		}
		var spec WatchSpec
		if err := item.Decode(&spec); err != nil {
			return nil, fail(path, item, "%v", err)
		}
		spec.Line = item.Line

		switch {
		case spec.Name == "":
			return nil, fail(path, item, "watch binding needs a name")
		case seen[spec.Name]:
			return nil, fail(path, item, "watch binding %q already declared", spec.Name)
		case len(spec.Patterns) == 0:
			return nil, fail(path, item, "watch binding %q has no patterns", spec.Name)
		case len(spec.Tasks) == 0:
			return nil, fail(path, item, "watch binding %q has no tasks", spec.Name)
		}
		seen[spec.Name] = true
		specs = append(specs, spec)
	}
	return specs, nil
}

func checkKeys(path string, node *yaml.Node, allowed []string) error {
	for i := 0; i < len(node.Content); i += 2 {
		key := node.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return fail(path, key, "unknown field %q (expected one of %v)", key.Value, allowed)
		}
	}
	return nil
}

func fail(path string, node *yaml.Node, format string, args ...any) error {
	return errors.NewTaskfileError(fmt.Sprintf(format, args...), nil).WithPath(path).WithLine(node.Line)
}

// Task returns the named task spec.
func (f *File) Task(name string) (TaskSpec, bool) {
	for _, t := range f.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// Binding returns the named watch binding.
func (f *File) Binding(name string) (WatchSpec, bool) {
	for _, w := range f.Watch {
		if w.Name == name {
			return w, true
		}
	}
	return WatchSpec{}, false
}

// Dir returns the directory containing the task file. Commands and watch
// patterns are relative to it.
func (f *File) Dir() string {
	dir := filepath.Dir(f.Path)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}
