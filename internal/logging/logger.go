// Package logging provides structured logging for forge runs.
//
// It wraps log/slog with a JSON handler and adds child loggers that carry
// run, task, and watch binding context:
//
//	logger, err := logging.NewLogger(".forge/logs", "info", logging.DefaultRotation())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithRun(result.ID)
//	runLog.WithTask("build-css").Info("task finished", "duration_ms", 120)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"task finished","run_id":"...","task":"build-css","duration_ms":120}
//
// Use [NopLogger] in tests to discard output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the file created inside the log directory.
const LogFileName = "forge.log"

// sink owns the log file shared by a logger and all of its children.
type sink struct {
	mu   sync.Mutex
	file *rotatingFile
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	sink   *sink
}

// NewLogger creates a Logger that writes JSON-formatted logs to
// {dir}/forge.log, rotated according to rotation. If dir is empty, logs go
// to stderr.
//
// Unrecognized levels fall back to INFO.
func NewLogger(dir string, level string, rotation Rotation) (*Logger, error) {
	var writer io.Writer = os.Stderr
	s := &sink{}

	if dir != "" {
		file, err := openRotatingFile(filepath.Join(dir, LogFileName), rotation)
		if err != nil {
			return nil, err
		}
		s.file = file
		writer = file
	}

	return newLogger(writer, level, s), nil
}

// NewWithWriter creates a Logger writing JSON lines to w. The caller keeps
// ownership of w.
func NewWithWriter(w io.Writer, level string) *Logger {
	return newLogger(w, level, &sink{})
}

func newLogger(w io.Writer, level string, s *sink) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler), sink: s}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRun returns a child logger tagged with a run ID.
func (l *Logger) WithRun(runID string) *Logger {
	return l.With("run_id", runID)
}

// WithTask returns a child logger tagged with a task name.
func (l *Logger) WithTask(task string) *Logger {
	return l.With("task", task)
}

// WithBinding returns a child logger tagged with a watch binding name.
func (l *Logger) WithBinding(binding string) *Logger {
	return l.With("binding", binding)
}

// With returns a child logger with arbitrary key-value attributes.
// Keys and values are provided as alternating arguments.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), sink: l.sink}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Close flushes and closes the log file. Loggers writing to stderr or a
// caller-owned writer treat this as a no-op.
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// ParseLevel normalizes a user-provided level string.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return strings.ToUpper(level)
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
