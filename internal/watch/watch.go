// Package watch re-runs incremental indexing when source files change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/codememory-mcp/internal/walker"
)

// DefaultDebounce collapses bursts of editor writes into one batch
const DefaultDebounce = 500 * time.Millisecond

var watcherEvents = promauto.NewCounter(prometheus.CounterOpts{
	Name: "codememory_watcher_events_total",
	Help: "Total number of file system events received by the watcher.",
})

// ChangeFunc receives the sorted, slash-separated relative paths that
// changed during one debounce window
type ChangeFunc func(ctx context.Context, paths []string) error

// Watcher watches a project tree using the discovery filters
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	root      string
	filter    *walker.Walker
	debounce  time.Duration
	onChange  ChangeFunc
	logger    *slog.Logger
	ready     chan struct{}
}

// New creates a watcher for root. filter decides which directories are
// descended into and which files are relevant.
func New(root string, filter *walker.Walker, debounce time.Duration, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	if onChange == nil || filter == nil {
		return nil, os.ErrInvalid
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		root:      absRoot,
		filter:    filter,
		debounce:  debounce,
		onChange:  onChange,
		logger:    logger,
		ready:     make(chan struct{}),
	}, nil
}

// Ready is closed once the initial directory tree is being watched
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is done. Changes are batched per debounce window and
// handed to the ChangeFunc; its errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsWatcher.Close() }()

	if _, err := w.watchRecursive(w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	close(w.ready)
	w.logger.Info("watching for changes", "root", w.root, "debounce", w.debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			watcherEvents.Inc()
			if changed := w.handle(event); len(changed) > 0 {
				for _, rel := range changed {
					pending[rel] = struct{}{}
				}
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			w.logger.Debug("changes detected", "files", len(paths))
			if err := w.onChange(ctx, paths); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("change handler failed", "error", err)
			}
		}
	}
}

// handle registers new directories and returns the relevant files touched
// by event. Files already present in a new directory count as changed.
func (w *Watcher) handle(event fsnotify.Event) []string {
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.excluded(rel) {
				return nil
			}
			files, err := w.watchRecursive(event.Name)
			if err != nil {
				w.logger.Warn("failed to watch new directory", "path", rel, "error", err)
			}
			return files
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return nil
	}
	if !w.filter.MatchFile(rel) {
		return nil
	}
	return []string{rel}
}

// watchRecursive adds dir and its non-excluded subdirectories and returns
// the relevant files found below dir
func (w *Watcher) watchRecursive(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if rel, err := filepath.Rel(w.root, p); err == nil && w.filter.MatchFile(filepath.ToSlash(rel)) {
				files = append(files, filepath.ToSlash(rel))
			}
			return nil
		}
		if p != w.root && w.filter.ExcludeDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(p)
	})
	return files, err
}

// excluded reports whether any directory component of rel is excluded
func (w *Watcher) excluded(rel string) bool {
	for dir := rel; dir != "." && dir != "" && dir != "/"; dir = path.Dir(dir) {
		if w.filter.ExcludeDir(path.Base(dir)) {
			return true
		}
	}
	return false
}
