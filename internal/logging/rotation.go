package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Rotation limits the size of forge.log. A zero MaxSizeMB disables rotation.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
}

// DefaultRotation keeps three 10 MB backups.
func DefaultRotation() Rotation {
	return Rotation{MaxSizeMB: 10, MaxBackups: 3}
}

// rotatingFile is an append-only file that is renamed to path.1 once it
// would grow past the size limit. Older backups shift up to path.N and the
// oldest is removed.
type rotatingFile struct {
	mu      sync.Mutex
	path    string
	limit   int64
	backups int

	file *os.File
	size int64
}

func openRotatingFile(path string, r Rotation) (*rotatingFile, error) {
	rf := &rotatingFile{
		path:    path,
		limit:   int64(r.MaxSizeMB) * 1024 * 1024,
		backups: r.MaxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// open must be called with mu held (or before rf is shared).
func (rf *rotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(rf.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	rf.file = file
	rf.size = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, fmt.Errorf("log file is closed")
	}
	if rf.limit > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.limit {
		if err := rf.rotate(); err != nil {
			// Keep logging to whatever file is open.
			fmt.Fprintf(os.Stderr, "forge: log rotation failed: %v\n", err)
			if rf.file == nil {
				return 0, err
			}
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *rotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rf.file = nil

	if rf.backups <= 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			_ = rf.open()
			return fmt.Errorf("failed to truncate log file: %w", err)
		}
		return rf.open()
	}

	_ = os.Remove(rf.backupPath(rf.backups))
	for i := rf.backups - 1; i >= 1; i-- {
		_ = os.Rename(rf.backupPath(i), rf.backupPath(i+1))
	}
	if err := os.Rename(rf.path, rf.backupPath(1)); err != nil {
		_ = rf.open()
		return fmt.Errorf("failed to rename log file: %w", err)
	}
	return rf.open()
}

func (rf *rotatingFile) backupPath(n int) string {
	return fmt.Sprintf("%s.%d", rf.path, n)
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	if err := rf.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	if err := rf.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	rf.file = nil
	return nil
}
