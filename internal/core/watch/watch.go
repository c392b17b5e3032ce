// Package watch keeps a live dependency graph current by reacting to
// filesystem changes. Events are debounced, rate limited and applied as
// incremental re-analysis through the scanner.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"guardrail/internal/core/config"
	"guardrail/internal/core/scan"
	"guardrail/internal/core/store"
	"guardrail/internal/engine/graph"
	"guardrail/internal/engine/similarity"
	"guardrail/internal/shared/observability"
	"guardrail/internal/shared/util"
)

// Update describes one debounced batch of applied changes, with paths in
// project-relative form.
type Update struct {
	Changed []string
	Removed []string
}

type Watcher struct {
	cfg      *config.Config
	scanner  *scan.Scanner
	store    store.AnalysisStore
	graph    *graph.Graph
	detector *similarity.Detector
	logger   *slog.Logger
	limiter  *util.EventLimiter

	fsWatcher *fsnotify.Watcher
	onUpdate  func(Update)

	pending   map[string]bool
	pendingMu sync.Mutex
	timer     *time.Timer

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher wires incremental re-analysis. The graph is mutated in place so
// concurrent readers always see the latest merged state.
func NewWatcher(cfg *config.Config, scanner *scan.Scanner, st store.AnalysisStore, g *graph.Graph, det *similarity.Detector, logger *slog.Logger) (*Watcher, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if st == nil {
		st = store.NoopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		cfg:       cfg,
		scanner:   scanner,
		store:     st,
		graph:     g,
		detector:  det,
		logger:    logger,
		limiter:   util.NewEventLimiter(cfg.Watch.MaxEventsPerSecond),
		fsWatcher: fsw,
		pending:   make(map[string]bool),
		done:      make(chan struct{}),
	}, nil
}

// OnUpdate registers a callback invoked after each applied batch. Must be
// called before Start.
func (w *Watcher) OnUpdate(fn func(Update)) {
	w.onUpdate = fn
}

// Start watches the project root recursively and runs the event loop until
// the context ends or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watchRecursive(w.cfg.Paths.ProjectRoot); err != nil {
		return err
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.excludedDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			if !w.limiter.Allow() {
				w.logger.Warn("filesystem event dropped, rate limit exceeded",
					"path", event.Name, "budget", w.cfg.Watch.MaxEventsPerSecond)
				continue
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.excludedDir(filepath.Base(event.Name)) {
				return
			}
			if err := w.watchRecursive(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
				return
			}
			w.enqueueExistingFiles(event.Name)
			return
		}
	}

	if !w.scanner.Supports(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.schedule(event.Name)
	}
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() {
			return nil
		}
		if w.scanner.Supports(path) {
			w.schedule(path)
		}
		return nil
	})
}

// schedule adds a path to the pending batch and restarts the debounce timer,
// so a burst of events yields one flush after the quiet period.
func (w *Watcher) schedule(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Watch.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}

	var update Update
	for _, path := range paths {
		rel := w.scanner.RelPath(path)
		if _, err := os.Stat(path); err != nil {
			w.applyRemoval(rel)
			update.Removed = append(update.Removed, rel)
			continue
		}
		if err := w.applyChange(path); err != nil {
			w.logger.Warn("incremental re-analysis degraded", "path", rel, "error", err)
		}
		update.Changed = append(update.Changed, rel)
	}

	w.logger.Info("applied filesystem changes",
		"changed", len(update.Changed), "removed", len(update.Removed))
	if w.onUpdate != nil {
		w.onUpdate(update)
	}
}

// applyChange re-analyzes one file and merges its partial graph. The merge
// drops the node's stale outgoing edges before adding the fresh ones.
func (w *Watcher) applyChange(path string) error {
	_, partial, err := w.scanner.ScanFile(context.Background(), path)
	w.graph.Merge(partial)
	return err
}

func (w *Watcher) applyRemoval(rel string) {
	w.graph.RemoveNode(rel)
	w.scanner.Forget(rel)
	if w.detector != nil {
		w.detector.Remove(rel)
	}
	if err := w.store.Evict(rel); err != nil {
		w.logger.Warn("cache eviction failed", "path", rel, "error", err)
	}
}

func (w *Watcher) excludedDir(name string) bool {
	for _, dir := range w.cfg.Scan.ExcludeDirs {
		if name == dir {
			return true
		}
	}
	return false
}

func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.pendingMu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.pendingMu.Unlock()
	})
	return w.fsWatcher.Close()
}
