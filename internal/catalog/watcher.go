package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sotugyo/pkg/logging"
)

// ChangeOperation describes what happened to a watched path.
type ChangeOperation string

const (
	OperationCreate ChangeOperation = "create"
	OperationUpdate ChangeOperation = "update"
	OperationDelete ChangeOperation = "delete"
)

// ChangeEvent reports that something under a repository root changed.
// Rapid successive changes under one root are collapsed into a single event.
type ChangeEvent struct {
	Root      string
	Path      string
	Operation ChangeOperation
	Timestamp time.Time
}

// Watcher watches package repository roots for changes.
//
// Each root is watched together with its candidate directories and their
// version directories, which is where descriptors live.
type Watcher struct {
	mu sync.RWMutex

	roots []string

	watcher *fsnotify.Watcher

	debounceInterval time.Duration

	// pendingEvents tracks pending debounced events per root
	pendingEvents map[string]*debounceEntry

	stopCh chan struct{}

	running bool
}

type debounceEntry struct {
	event ChangeEvent
	timer *time.Timer
}

// NewWatcher creates a watcher for roots.
func NewWatcher(roots []string, debounceInterval time.Duration) *Watcher {
	if debounceInterval == 0 {
		debounceInterval = 500 * time.Millisecond
	}

	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		cleaned = append(cleaned, filepath.Clean(r))
	}

	return &Watcher{
		roots:            cleaned,
		debounceInterval: debounceInterval,
		pendingEvents:    make(map[string]*debounceEntry),
		stopCh:           make(chan struct{}),
	}
}

// Start begins watching. Events are sent on changes until ctx is done or
// Stop is called. Roots that do not exist are skipped.
func (w *Watcher) Start(ctx context.Context, changes chan<- ChangeEvent) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}

	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	for _, root := range w.roots {
		w.addTree(root, 2)
	}

	go w.processEvents(ctx, changes)

	logging.Info("Catalog", "Watching %d package root(s) for changes", len(w.roots))
	return nil
}

// addTree watches dir and its subdirectories down to depth levels.
func (w *Watcher) addTree(dir string, depth int) {
	w.mu.RLock()
	fw := w.watcher
	w.mu.RUnlock()
	if fw == nil {
		return
	}

	if err := fw.Add(dir); err != nil {
		if !os.IsNotExist(err) {
			logging.Warn("Catalog", "Failed to watch %s: %v", dir, err)
		}
		return
	}
	logging.Debug("Catalog", "Watching directory: %s", dir)

	if depth == 0 {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			w.addTree(filepath.Join(dir, entry.Name()), depth-1)
		}
	}
}

func (w *Watcher) processEvents(ctx context.Context, changes chan<- ChangeEvent) {
	w.mu.RLock()
	fw := w.watcher
	stopCh := w.stopCh
	w.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			w.cleanupPendingEvents()
			return

		case <-stopCh:
			w.cleanupPendingEvents()
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleFsEvent(event, changes)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error("Catalog", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFsEvent(event fsnotify.Event, changes chan<- ChangeEvent) {
	root, depth := w.locate(event.Name)
	if root == "" {
		return
	}

	var operation ChangeOperation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		operation = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		operation = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		operation = OperationDelete
	default:
		return
	}

	if !relevant(event.Name, depth, operation) {
		return
	}

	// New directories need their own watches so that descriptors written
	// into them later are seen.
	if operation == OperationCreate && depth < 3 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name, 2-depth)
		}
	}

	w.debounceEvent(ChangeEvent{
		Root:      root,
		Path:      event.Name,
		Operation: operation,
		Timestamp: time.Now(),
	}, changes)
}

// locate returns the watched root containing path and how many levels
// below the root path is.
func (w *Watcher) locate(path string) (string, int) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return root, len(strings.Split(rel, string(filepath.Separator)))
	}
	return "", 0
}

// relevant filters out noise: only directory changes near the root and
// descriptor files matter to a scan.
func relevant(path string, depth int, op ChangeOperation) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if isDescriptorName(base) {
		return true
	}
	// Removed entries cannot be stat'ed; treat them as directories.
	if op == OperationDelete {
		return depth <= 2
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir() && depth <= 2
}

func isDescriptorName(base string) bool {
	for _, name := range DescriptorNames {
		if base == name {
			return true
		}
	}
	return false
}

func (w *Watcher) debounceEvent(event ChangeEvent, changes chan<- ChangeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := event.Root

	if entry, ok := w.pendingEvents[key]; ok {
		entry.timer.Stop()
		event.Operation = mergeOperations(entry.event.Operation, event.Operation)
	}

	timer := time.AfterFunc(w.debounceInterval, func() {
		w.mu.Lock()
		entry, ok := w.pendingEvents[key]
		if ok {
			delete(w.pendingEvents, key)
		}
		w.mu.Unlock()

		if ok {
			select {
			case changes <- entry.event:
				logging.Debug("Catalog", "Emitted change event: %s %s", entry.event.Operation, entry.event.Path)
			default:
				logging.Warn("Catalog", "Change event channel full, dropping event for %s", entry.event.Root)
			}
		}
	})

	w.pendingEvents[key] = &debounceEntry{
		event: event,
		timer: timer,
	}
}

// mergeOperations merges two operations into a single logical operation.
func mergeOperations(old, new ChangeOperation) ChangeOperation {
	if old == OperationCreate {
		if new == OperationDelete {
			return OperationDelete
		}
		return OperationCreate
	}
	if old == OperationUpdate && new == OperationDelete {
		return OperationDelete
	}
	return new
}

func (w *Watcher) cleanupPendingEvents() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, entry := range w.pendingEvents {
		entry.timer.Stop()
	}
	w.pendingEvents = make(map[string]*debounceEntry)
}

// Stop stops watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.stopCh)

	if w.watcher != nil {
		if err := w.watcher.Close(); err != nil {
			logging.Error("Catalog", err, "Error closing filesystem watcher")
		}
		w.watcher = nil
	}

	logging.Info("Catalog", "Stopped package root watcher")
	return nil
}
