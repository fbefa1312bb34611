package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/testutil"
)

func TestWatcher_TriggersMatchingBinding(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "app", "js", "main.js"), "v1")
	testutil.WriteFile(t, filepath.Join(root, "app", "css", "site.css"), "v1")

	jsRuns := make(chan []string, 8)
	cssRuns := make(chan []string, 8)
	js, err := NewBinding(context.Background(), "js", []string{"app/js/**/*.js"}, []string{"build-js"},
		func(ctx context.Context, tasks []string) { jsRuns <- tasks }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Close()
	css, err := NewBinding(context.Background(), "css", []string{"app/css/*.css"}, []string{"build-css"},
		func(ctx context.Context, tasks []string) { cssRuns <- tasks }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer css.Close()

	bus := event.NewBus(nil)
	var mu sync.Mutex
	var changed []string
	bus.Subscribe(event.TypeFileChanged, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		changed = append(changed, e.(event.FileChangedEvent).Path)
	})

	w, err := NewWatcher(root, []*Binding{js, css}, bus, nil, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatcher() = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer w.Stop()

	if w.WatchedDirs() != 2 {
		t.Errorf("WatchedDirs() = %d, want 2", w.WatchedDirs())
	}

	testutil.WriteFile(t, filepath.Join(root, "app", "js", "main.js"), "v2")

	select {
	case tasks := <-jsRuns:
		if len(tasks) != 1 || tasks[0] != "build-js" {
			t.Errorf("run tasks = %v", tasks)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("js binding was not triggered")
	}

	select {
	case <-cssRuns:
		t.Error("css binding should not be triggered by a js change")
	case <-time.After(100 * time.Millisecond):
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changed) == 0 || changed[0] != "app/js/main.js" {
		t.Errorf("file change events = %v", changed)
	}
}

func TestWatcher_IgnoresUnchangedContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "src", "index.js")
	testutil.WriteFile(t, path, "same")

	runs := make(chan struct{}, 8)
	b, err := NewBinding(context.Background(), "src", []string{"src/*.js"}, []string{"build"},
		func(ctx context.Context, tasks []string) { runs <- struct{}{} }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	w, err := NewWatcher(root, []*Binding{b}, nil, nil, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	testutil.WriteFile(t, path, "same")

	select {
	case <-runs:
		t.Error("rewriting identical content should not trigger a run")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_TriggersForFilesInNewDirectory(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "app", "main.js"), "v1")
	testutil.WriteFile(t, filepath.Join(root, "staging", "lib", "new.js"), "v1")

	runs := make(chan struct{}, 8)
	b, err := NewBinding(context.Background(), "js", []string{"app/**/*.js"}, []string{"build-js"},
		func(ctx context.Context, tasks []string) { runs <- struct{}{} }, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	w, err := NewWatcher(root, []*Binding{b}, nil, nil, Options{Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Rename(filepath.Join(root, "staging", "lib"), filepath.Join(root, "app", "lib")); err != nil {
		t.Fatal(err)
	}

	select {
	case <-runs:
	case <-time.After(3 * time.Second):
		t.Fatal("moving in a directory with a matching file did not trigger the binding")
	}

	// The moved-in directory is now watched like any other.
	testutil.WriteFile(t, filepath.Join(root, "app", "lib", "new.js"), "v2")
	select {
	case <-runs:
	case <-time.After(3 * time.Second):
		t.Fatal("editing a file in the new directory did not trigger the binding")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, nil, nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
