package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// smallRotating opens a rotating file with a limit of a few hundred bytes so
// tests don't have to write megabytes.
func smallRotating(t *testing.T, backups int) *rotatingFile {
	t.Helper()
	rf, err := openRotatingFile(filepath.Join(t.TempDir(), LogFileName), Rotation{MaxSizeMB: 1, MaxBackups: backups})
	if err != nil {
		t.Fatalf("openRotatingFile: %v", err)
	}
	rf.limit = 256
	t.Cleanup(func() { _ = rf.Close() })
	return rf
}

func TestRotatingFile_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", LogFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("previous\n"), 0644); err != nil {
		t.Fatal(err)
	}

	rf, err := openRotatingFile(path, DefaultRotation())
	if err != nil {
		t.Fatalf("openRotatingFile: %v", err)
	}
	if rf.size != int64(len("previous\n")) {
		t.Errorf("size = %d, want existing file size", rf.size)
	}
	if _, err := rf.Write([]byte("next\n")); err != nil {
		t.Fatal(err)
	}
	_ = rf.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "previous\nnext\n" {
		t.Errorf("content = %q", data)
	}
}

func TestRotatingFile_Rotates(t *testing.T) {
	tests := []struct {
		name        string
		backups     int
		writes      int
		wantBackups []int
		missing     []int
	}{
		{"one rotation", 3, 3, []int{1}, []int{2}},
		{"shifts backups", 3, 7, []int{1, 2, 3}, []int{4}},
		{"oldest dropped", 2, 12, []int{1, 2}, []int{3}},
		{"no backups", 0, 5, nil, []int{1}},
	}

	line := []byte(strings.Repeat("x", 99) + "\n")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rf := smallRotating(t, tt.backups)
			for range tt.writes {
				if _, err := rf.Write(line); err != nil {
					t.Fatalf("Write: %v", err)
				}
			}
			for _, n := range tt.wantBackups {
				if _, err := os.Stat(rf.backupPath(n)); err != nil {
					t.Errorf("backup %d missing: %v", n, err)
				}
			}
			for _, n := range tt.missing {
				if _, err := os.Stat(rf.backupPath(n)); !os.IsNotExist(err) {
					t.Errorf("backup %d should not exist", n)
				}
			}
			if rf.size > rf.limit {
				t.Errorf("current size %d exceeds limit %d", rf.size, rf.limit)
			}
		})
	}
}

func TestRotatingFile_DisabledWhenZero(t *testing.T) {
	rf, err := openRotatingFile(filepath.Join(t.TempDir(), LogFileName), Rotation{})
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	line := []byte(strings.Repeat("y", 1023) + "\n")
	for range 10 {
		if _, err := rf.Write(line); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := os.Stat(rf.backupPath(1)); !os.IsNotExist(err) {
		t.Error("rotation happened with MaxSizeMB=0")
	}
}

func TestRotatingFile_Concurrent(t *testing.T) {
	rf := smallRotating(t, 5)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if _, err := rf.Write([]byte("concurrent line\n")); err != nil {
					t.Errorf("Write: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf := smallRotating(t, 1)
	if err := rf.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rf.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := rf.Write([]byte("late\n")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestNewLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelDebug, Rotation{MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatal(err)
	}
	logger.sink.file.limit = 512

	for i := range 20 {
		logger.Info("task finished", "task", "build-css", "i", i)
	}
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, LogFileName+".1")); err != nil {
		t.Errorf("expected a rotated backup: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LogFileName+".2")); !os.IsNotExist(err) {
		t.Error("MaxBackups=1 should keep a single backup")
	}
}
