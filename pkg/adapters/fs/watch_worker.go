package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// watchWorker feeds edits made to the document files back into the
// database while it runs.
type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
}

func newWatchWorker(repo *Repository) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.repo.recursiveAdd(watcher, w.repo.Path); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(50 * time.Millisecond)
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// recursiveAdd watches root and every non-hidden directory below it.
func (r *Repository) recursiveAdd(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != r.Path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// shouldIgnore filters out events that can not concern a document file.
func (r *Repository) shouldIgnore(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, TempFilePrefix) || strings.HasPrefix(base, ".") {
		return true
	}
	rel := r.relPath(event.Name)
	return strings.HasPrefix(rel, r.config.SystemDir+"/") || rel == r.config.SystemDir
}

// processFilesystemEvent schedules a sync of the file an event refers to.
// New directories are watched as they appear.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if w.repo.shouldIgnore(event) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.repo.recursiveAdd(w.watcher, event.Name); err != nil {
				w.handleWatcherError(err)
			}
			// files may have been created before the directory was watched
			_ = filepath.WalkDir(event.Name, func(path string, d os.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					w.schedule(ctx, path)
				}
				return nil
			})
			return true
		}
	}

	if filepath.Ext(event.Name) != w.repo.serializer.Ext() {
		return false
	}
	w.schedule(ctx, event.Name)
	return true
}

// schedule syncs path once the burst of events touching it is over.
func (w *watchWorker) schedule(ctx context.Context, path string) {
	if filepath.Ext(path) != w.repo.serializer.Ext() {
		return
	}
	w.debouncer.add(path, func(path string) {
		if ctx.Err() != nil {
			return
		}
		id, err := w.repo.resolveID(path)
		if err != nil {
			w.repo.config.Logger.Debug("resolveID failed", "path", path, "err", err)
			return
		}
		if _, err := w.repo.syncFile(ctx, path, id); err != nil {
			w.repo.reportError(err)
		}
	})
}

// handleWatcherError processes errors from the fsnotify watcher.
func (w *watchWorker) handleWatcherError(err error) {
	w.repo.config.Logger.Error("fsnotify error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.repo.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// in-flight syncs must finish before the worker reports stopped
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
