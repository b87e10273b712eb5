package shortcuts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/suggestd/internal/suggest"
)

// Executor runs refresh tasks off the caller's goroutine. The engine's
// worker pool satisfies it.
type Executor interface {
	Execute(task func())
}

// RefreshReceiver is told the outcome of revalidating one shortcut.
// A nil refreshed suggestion means the shortcut is no longer valid.
// Calls arrive on executor goroutines.
type RefreshReceiver interface {
	OnShortcutRefreshed(source suggest.ComponentID, shortcutID string, refreshed *suggest.Suggestion)
}

type refreshKey struct {
	source     suggest.ComponentID
	shortcutID string
}

// Refresher revalidates displayed shortcuts against their sources in
// the background. One refresher belongs to one query's fan-out; Cancel
// silences any tasks still in flight when the query is abandoned.
type Refresher struct {
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	canceled bool
	launched map[refreshKey]struct{}
}

// NewRefresher creates a refresher that gives each validation call at
// most timeout to complete.
func NewRefresher(exec Executor, timeout time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		exec:     exec,
		timeout:  timeout,
		logger:   logger,
		launched: make(map[refreshKey]struct{}),
	}
}

// Refresh schedules revalidation of one shortcut. Repeated calls for
// the same (source, shortcut id) pair are collapsed into one task.
// The receiver is not called if the refresher is canceled first, nor
// when validation fails transiently; a failed lookup is not evidence
// the shortcut is gone.
func (f *Refresher) Refresh(source suggest.Source, shortcutID string, receiver RefreshReceiver) {
	if source == nil || shortcutID == "" || shortcutID == suggest.NeverMakeShortcut {
		return
	}

	key := refreshKey{source.ComponentID(), shortcutID}
	f.mu.Lock()
	if f.canceled {
		f.mu.Unlock()
		return
	}
	if _, dup := f.launched[key]; dup {
		f.mu.Unlock()
		return
	}
	f.launched[key] = struct{}{}
	f.mu.Unlock()

	f.exec.Execute(func() {
		if f.isCanceled() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()

		refreshed, err := source.ValidateShortcut(ctx, shortcutID)
		if err != nil {
			f.logger.Warn("shortcut refresh failed",
				"source", string(key.source), "shortcut_id", shortcutID, "error", err)
			return
		}
		if f.isCanceled() {
			return
		}
		receiver.OnShortcutRefreshed(key.source, shortcutID, refreshed)
	})
}

// Cancel stops all pending refresh reporting. Tasks already running
// finish their source call but their results are dropped.
func (f *Refresher) Cancel() {
	f.mu.Lock()
	f.canceled = true
	f.mu.Unlock()
}

func (f *Refresher) isCanceled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canceled
}
