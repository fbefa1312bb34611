package taskfile

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/forge/internal/errors"
	"github.com/Iron-Ham/forge/internal/logging"
	"github.com/Iron-Ham/forge/internal/taskgraph"
)

// DefaultGracePeriod is how long an interrupted command may take to exit
// before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Shell turns task specs into actions that run their commands with sh -c.
// Output lines are prefixed with the task name; writes from concurrent tasks
// never interleave within a line.
type Shell struct {
	Dir         string
	Stdout      io.Writer
	Stderr      io.Writer
	GracePeriod time.Duration
	Logger      *logging.Logger

	mu sync.Mutex
}

// NewShell creates a Shell whose commands run relative to dir.
func NewShell(dir string, stdout, stderr io.Writer, logger *logging.Logger) *Shell {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Shell{
		Dir:         dir,
		Stdout:      stdout,
		Stderr:      stderr,
		GracePeriod: DefaultGracePeriod,
		Logger:      logger,
	}
}

// Action returns the action for spec, or nil when the task has no commands
// and is only a grouping node.
func (s *Shell) Action(spec TaskSpec) taskgraph.Action {
	commands := spec.Commands()
	if len(commands) == 0 {
		return nil
	}

	dir := s.Dir
	if spec.Dir != "" {
		if filepath.IsAbs(spec.Dir) {
			dir = spec.Dir
		} else {
			dir = filepath.Join(s.Dir, spec.Dir)
		}
	}
	env := os.Environ()
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}

	return func(ctx context.Context) error {
		stdout := s.prefixed(s.Stdout, spec.Name)
		stderr := s.prefixed(s.Stderr, spec.Name)
		defer stdout.Flush()
		defer stderr.Flush()

		for _, line := range commands {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.Logger.WithTask(spec.Name).Debug("running command", "command", line, "dir", dir)
			if err := s.run(ctx, line, dir, env, stdout, stderr); err != nil {
				return errors.Wrapf(err, "command %q", line)
			}
		}
		return nil
	}
}

func (s *Shell) run(ctx context.Context, line, dir string, env []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	cmd.WaitDelay = s.GracePeriod

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

func (s *Shell) prefixed(w io.Writer, task string) *prefixWriter {
	if w == nil {
		w = io.Discard
	}
	return &prefixWriter{mu: &s.mu, w: w, prefix: []byte("[" + task + "] ")}
}

// prefixWriter buffers partial lines and writes each complete line with a
// prefix while holding the shared lock.
type prefixWriter struct {
	mu     *sync.Mutex
	w      io.Writer
	prefix []byte
	buf    []byte
	local  sync.Mutex
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.local.Lock()
	defer p.local.Unlock()

	p.buf = append(p.buf, b...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		if err := p.emit(p.buf[:i+1]); err != nil {
			return len(b), err
		}
		p.buf = p.buf[i+1:]
	}
	return len(b), nil
}

// Flush writes any trailing partial line.
func (p *prefixWriter) Flush() {
	p.local.Lock()
	defer p.local.Unlock()
	if len(p.buf) == 0 {
		return
	}
	_ = p.emit(append(p.buf, '\n'))
	p.buf = nil
}

func (p *prefixWriter) emit(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.w.Write(p.prefix); err != nil {
		return err
	}
	_, err := p.w.Write(line)
	return err
}
