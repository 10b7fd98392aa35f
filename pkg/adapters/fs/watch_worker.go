package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/jotter/pkg/core"
)

// DefaultDebounce coalesces the bursts of events a single save produces.
const DefaultDebounce = 50 * time.Millisecond

type watchWorker struct {
	repo      *Repository
	events    chan core.FileEvent
	watcher   *fsnotify.Watcher
	debouncer *debouncer
}

// Watch reports note files created, modified, or removed by other
// processes until ctx is done. Files this repository wrote itself are not
// reported. When history is on, events are paused while git holds its
// index lock and the missed changes are reconciled afterwards.
func (r *Repository) Watch(ctx context.Context) (<-chan core.FileEvent, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(r.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", r.Path, err)
	}
	if r.config.History {
		_ = watcher.Add(filepath.Join(r.Path, ".git"))
	}

	// Seed the index so a later reconcile has a baseline.
	if _, err := r.Titles(ctx); err != nil {
		r.config.Logger.Warn("failed to build title index", "error", err)
	}

	w := &watchWorker{
		repo:      r,
		events:    make(chan core.FileEvent, 64),
		watcher:   watcher,
		debouncer: newDebouncer(DefaultDebounce),
	}
	r.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		r.reportError(fmt.Errorf("watcher failed: %w", err))
	}))
	return w.events, nil
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Error("notes watcher error", "error", err)
}

// handleGitLockEvent processes .git/index.lock events (git operations pause/resume).
// Returns true if event was handled.
func (w *watchWorker) handleGitLockEvent(event fsnotify.Event, gitLocked bool) (handled bool, gitLockedNew bool) {
	gitLockedNew = gitLocked

	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false, gitLockedNew
	}

	if event.Has(fsnotify.Create) {
		gitLockedNew = true
		w.repo.config.Logger.Debug("git operations detected, pausing watcher")
	} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		gitLockedNew = false
		w.repo.config.Logger.Debug("git operations finished, reconciling")
	}
	return true, gitLockedNew
}

// reconcileAfterGitUnlock emits the changes git made while events were paused.
func (w *watchWorker) reconcileAfterGitUnlock(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		events, err := w.repo.Reconcile(ctx)
		if err != nil {
			return err
		}
		for _, e := range events {
			w.sendEvent(ctx, e)
		}
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		w.repo.reportError(fmt.Errorf("reconcile failed: %w", err))
	}))
}

func mapOp(event fsnotify.Event) core.FileOp {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.FileRemoved
	case event.Has(fsnotify.Create):
		return core.FileCreated
	case event.Has(fsnotify.Write):
		return core.FileModified
	default:
		return ""
	}
}

// processFilesystemEvent filters, maps, and debounces one fsnotify event.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	if !w.repo.isNoteFile(event.Name) || w.repo.isOwnWrite(event.Name) {
		return false
	}
	op := mapOp(event)
	if op == "" {
		return false
	}

	w.sendEvent(ctx, core.FileEvent{Op: op, Path: event.Name})
	return true
}

// sendEvent enqueues an event via the debouncer, protecting against channel closure during shutdown.
func (w *watchWorker) sendEvent(ctx context.Context, event core.FileEvent) {
	w.debouncer.add(event, func(e core.FileEvent) {
		defer func() {
			// Recover from panic if channel was closed (worker stopping)
			_ = recover()
		}()
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// run is the main event loop for the watcher.
func (w *watchWorker) run(ctx context.Context) (err error) {
	logger := w.repo.config.Logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			// Full stack only when debugging.
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer close(w.events)
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.mainEventLoop(ctx)

	// Stop accepting new events and wait for in-flight deliveries before
	// the channel is closed.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	gitLocked := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}

			if handled, locked := w.handleGitLockEvent(event, gitLocked); handled {
				wasLocked := gitLocked
				gitLocked = locked
				if wasLocked && !gitLocked {
					w.reconcileAfterGitUnlock(ctx)
				}
				continue
			}
			if gitLocked {
				continue
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.repo.reportError(wErr)
		}
	}
}
