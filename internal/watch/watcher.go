package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/forge/internal/event"
	"github.com/Iron-Ham/forge/internal/logging"
)

// DefaultDebounce is the quiet period after the last filesystem event
// before bindings are triggered. Editors emit several events per save.
const DefaultDebounce = 50 * time.Millisecond

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	Ignore   []string // globs matched against each path element; nil uses DefaultIgnore
}

// Watcher observes the directories below every binding's pattern roots and
// triggers the bindings whose patterns match a changed file.
type Watcher struct {
	root     string
	watcher  *fsnotify.Watcher
	bindings []*Binding
	ignore   *IgnoreList
	digests  *Digests
	debounce time.Duration
	bus      *event.Bus
	logger   *logging.Logger

	mu       sync.Mutex
	watched  map[string]bool
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher creates a watcher rooted at root. Binding patterns are
// interpreted relative to root.
func NewWatcher(root string, bindings []*Binding, bus *event.Bus, logger *logging.Logger, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	patterns := opts.Ignore
	if patterns == nil {
		patterns = DefaultIgnore
	}
	ignore, err := NewIgnoreList(patterns)
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		root:     abs,
		watcher:  fw,
		bindings: bindings,
		ignore:   ignore,
		digests:  NewDigests(),
		debounce: opts.Debounce,
		bus:      bus,
		logger:   logger,
		watched:  make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Root returns the absolute watch root.
func (w *Watcher) Root() string { return w.root }

// Start adds watches for every binding root and begins processing events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	for _, b := range w.bindings {
		for _, root := range b.Patterns().Roots() {
			dir := filepath.Join(w.root, filepath.FromSlash(root))
			if err := w.watchDirRecursive(dir, w.seed); err != nil {
				return err
			}
		}
	}
	w.started = true
	w.logger.Info("watching for changes",
		"root", w.root,
		"directories", len(w.watched),
		"bindings", len(w.bindings),
	)

	go w.watchLoop()
	return nil
}

// Stop stops event processing and releases the underlying watcher. It does
// not close the bindings.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()

		w.mu.Lock()
		started := w.started
		w.mu.Unlock()
		if started {
			<-w.doneCh
		}
	})
}

// WatchedDirs returns the number of directories under watch.
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// watchDirRecursive adds dir and its subdirectories, skipping ignored
// entries, and passes every file a binding matches to onFile. Callers hold
// w.mu.
func (w *Watcher) watchDirRecursive(dir string, onFile func(path string)) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		w.logger.Warn("watch root does not exist", "path", dir)
		return nil
	}

	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel := w.rel(path)
		if rel != "." && w.ignore.Match(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			if len(w.matching(rel)) > 0 {
				onFile(path)
			}
			return nil
		}
		if w.watched[path] {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err.Error())
			return nil
		}
		w.watched[path] = true
		return nil
	})
}

func (w *Watcher) seed(path string) {
	_ = w.digests.Seed(path)
}

func (w *Watcher) watchLoop() {
	defer close(w.doneCh)

	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C

	pending := make(map[string]fsnotify.Op)

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// Files moved or copied in with the directory get no
					// events of their own.
					w.mu.Lock()
					_ = w.watchDirRecursive(ev.Name, func(path string) {
						pending[path] |= fsnotify.Create
					})
					w.mu.Unlock()
					debounceTimer.Reset(w.debounce)
					continue
				}
			}
			pending[ev.Name] |= ev.Op
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			batch := pending
			pending = make(map[string]fsnotify.Op)
			w.flush(batch)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err.Error())
		}
	}
}

// flush triggers each binding at most once per debounced batch.
func (w *Watcher) flush(batch map[string]fsnotify.Op) {
	hit := make(map[*Binding]bool)

	for path, op := range batch {
		rel := w.rel(path)
		if w.ignore.Match(rel) {
			continue
		}
		matched := w.matching(rel)
		if len(matched) == 0 {
			continue
		}

		if op&(fsnotify.Remove|fsnotify.Rename) == 0 {
			changed, err := w.digests.Changed(path)
			if err != nil {
				w.logger.Debug("failed to hash changed file", "path", rel, "error", err.Error())
			} else if !changed {
				w.logger.Debug("content unchanged, ignoring", "path", rel)
				continue
			}
		}

		names := make([]string, len(matched))
		for i, b := range matched {
			names[i] = b.Name()
			hit[b] = true
		}
		w.logger.Debug("file changed", "path", rel, "bindings", names)
		w.bus.Publish(event.NewFileChangedEvent(rel, names))
	}

	for _, b := range w.bindings {
		if hit[b] {
			b.Trigger()
		}
	}
}

func (w *Watcher) matching(rel string) []*Binding {
	var out []*Binding
	for _, b := range w.bindings {
		if b.Matches(rel) {
			out = append(out, b)
		}
	}
	return out
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
