package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// DraftChange is called when a draft file appears or disappears.
type DraftChange func(id int64, open bool)

type watchWorker struct {
	*worker.BaseWorker
	drafts   *DraftDir
	onChange DraftChange
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
}

// NewWatcher returns a worker that keeps the draft set in sync with the
// directory. onChange may be nil.
func (d *DraftDir) NewWatcher(onChange DraftChange) worker.Worker {
	return newWatchWorker(d, onChange)
}

func newWatchWorker(d *DraftDir, onChange DraftChange) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("draft-watcher"),
		drafts:     d,
		onChange:   onChange,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("draft watcher already started (status: %s)", status)
	}

	if err := os.MkdirAll(w.drafts.Path, 0755); err != nil {
		return fmt.Errorf("failed to create drafts dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.drafts.Path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.drafts.Path, err)
	}
	// Scan after Add so a file created in between is not missed.
	if err := w.drafts.Scan(); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.drafts.setWatching(true)

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
			"path":              w.drafts.Path,
		}
	})
}

// handleEvent updates the draft set for one filesystem event.
func (w *watchWorker) handleEvent(event fsnotify.Event) {
	id, ok := w.drafts.resolveID(event.Name)
	if !ok {
		return
	}

	var open bool
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		open = true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename fires for the old name; the file may still exist if an
		// editor replaced it in place.
		_, err := os.Stat(event.Name)
		open = err == nil
	default:
		return
	}

	if w.drafts.HasDraft(id) == open {
		return
	}
	w.drafts.set(id, open)
	w.drafts.logger.Debug("draft changed", "id", id, "open", open)
	if w.onChange != nil {
		w.onChange(id, open)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("draft watcher panic: %v", recovered)
			if w.drafts.logger.Enabled(ctx, slog.LevelDebug) {
				w.drafts.logger.Error("draft watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.drafts.logger.Error("draft watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.drafts.setWatching(false)
	defer w.watcher.Close()

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
			w.handleEvent(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.drafts.logger.Error("fsnotify error", "error", wErr)
		}
	}
}
