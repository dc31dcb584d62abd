// Package watch re-triggers test runs when Python sources change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"simatest/internal/logging"
	"simatest/internal/runner"
)

// DefaultDebounce is the quiet period before a batch of edits fires.
const DefaultDebounce = 500 * time.Millisecond

// Change is one debounced batch of modified files.
type Change struct {
	Paths []string
	At    time.Time
}

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Ignored  int
	Triggers int
	Errors   int
}

// Watcher watches the directories holding the configured targets and emits
// a Change once edits to .py files have settled for the debounce window.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	root     string
	dirs     []string
	debounce time.Duration
	pending  map[string]time.Time
	changes  chan Change
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// New creates a watcher for the directories of targets under root.
func New(root string, targets []runner.Target, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:  fw,
		root:     root,
		dirs:     targetDirs(root, targets),
		debounce: debounce,
		pending:  make(map[string]time.Time),
		changes:  make(chan Change, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

func targetDirs(root string, targets []runner.Target) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, t := range targets {
		dir := filepath.Join(root, filepath.Dir(filepath.FromSlash(t.Path)))
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Changes delivers debounced batches. It is closed when the watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start adds the directories and begins the event loop. At least one
// directory must be watchable.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	added := 0
	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			logging.Get(logging.CategoryWatch).Warnf("cannot watch %s: %v", dir, err)
			continue
		}
		added++
		logging.WatchDebug("watching %s", dir)
	}
	if added == 0 {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.watcher.Close()
		return fmt.Errorf("no watchable directories under %s", w.root)
	}

	go w.run(ctx)
	return nil
}

// Stop ends the event loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatch).Errorf("error closing watcher: %v", err)
	}
	logging.WatchDebug("watcher stopped")
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)
	defer close(w.changes)

	tick := w.debounce / 5
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryWatch).Errorf("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++

	if !strings.HasSuffix(event.Name, ".py") || event.Op == fsnotify.Chmod {
		w.stats.Ignored++
		return
	}
	logging.WatchDebug("%s %s", event.Op, event.Name)
	w.pending[event.Name] = time.Now()
}

// flush emits pending paths once the newest edit is older than the debounce
// window. A Change still unread by the consumer keeps the batch pending.
func (w *Watcher) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return
	}

	var newest time.Time
	for _, at := range w.pending {
		if at.After(newest) {
			newest = at
		}
	}
	if time.Since(newest) < w.debounce {
		return
	}

	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	select {
	case w.changes <- Change{Paths: paths, At: time.Now()}:
		w.pending = make(map[string]time.Time)
		w.stats.Triggers++
		logging.Watch("change detected in %d file(s)", len(paths))
	default:
	}
}
