package registry

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	// eventChannelBuffer is the size of the change channel.
	eventChannelBuffer = 100

	// DefaultDebounce is how long changes are collected before being reported.
	DefaultDebounce = 250 * time.Millisecond
)

// Change reports that the documents of a profile changed on disk.
type Change struct {
	ID string
	// Removed is true when no document for the id remains.
	Removed bool
}

// Watcher reports changed profile ids under a profiles directory.
type Watcher struct {
	dir      string
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	pendingMu sync.Mutex
	pending   map[string]bool

	changes chan Change
	dropped atomic.Int64
}

// NewWatcher creates a watcher for dir. reg resolves ids to decide whether a
// profile was removed; it should be rooted at the same directory.
func NewWatcher(dir string, reg *Registry, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		registry: reg,
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]bool),
		changes:  make(chan Change, eventChannelBuffer),
	}, nil
}

// Changes returns the channel of profile changes. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Start watches the profiles directory and its package subdirectories.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	ids, err := w.registry.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		w.addPackageDir(filepath.Join(w.dir, id))
	}

	go w.processEvents(ctx)

	w.logger.Info("Profile watcher started",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.debounce))
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// DroppedChanges returns the number of changes dropped due to a full channel.
func (w *Watcher) DroppedChanges() int64 {
	return w.dropped.Load()
}

func (w *Watcher) addPackageDir(dir string) {
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Debug("Skipping package directory", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.changes)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.dir, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	// A new package directory needs its own watch.
	if event.Has(fsnotify.Create) && !strings.Contains(rel, "/") && filepath.Ext(rel) == "" {
		w.addPackageDir(event.Name)
	}

	id, ok := profileIDForPath(rel)
	if !ok {
		return
	}
	w.pendingMu.Lock()
	w.pending[id] = true
	w.pendingMu.Unlock()
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	for _, id := range ids {
		change := Change{ID: id, Removed: !w.registry.Exists(id)}
		select {
		case w.changes <- change:
			w.logger.Debug("Profile changed", slog.String("profile", id), slog.Bool("removed", change.Removed))
		default:
			dropped := w.dropped.Add(1)
			w.logger.Warn("Change channel full, dropping change",
				slog.String("profile", id),
				slog.Int64("total_dropped", dropped))
		}
	}
}

// profileIDForPath maps a path relative to the profiles directory to the id
// whose documents it belongs to.
func profileIDForPath(rel string) (string, bool) {
	dir, file := filepath.Split(filepath.FromSlash(rel))
	dir = strings.TrimSuffix(filepath.ToSlash(dir), "/")
	switch {
	case dir == "" && strings.HasSuffix(file, ".yaml"):
		id := strings.TrimSuffix(file, ".yaml")
		return id, idPattern.MatchString(id)
	case dir != "" && !strings.Contains(dir, "/") && (file == profileFile || file == metadataFile):
		return dir, idPattern.MatchString(dir)
	}
	return "", false
}
