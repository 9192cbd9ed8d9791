package registry

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Handle holds the current registry snapshot behind an atomic pointer.
// Readers grab a snapshot once per run and keep using it; a reload swaps
// the pointer without touching the snapshot anyone already holds.
type Handle struct {
	ptr atomic.Pointer[Snapshot]
}

// NewHandle creates a handle seeded with the given snapshot.
func NewHandle(s *Snapshot) *Handle {
	h := &Handle{}
	h.ptr.Store(s)
	return h
}

// Snapshot returns the current snapshot.
func (h *Handle) Snapshot() *Snapshot {
	return h.ptr.Load()
}

// ReloadCallback is invoked after a successful watcher-driven reload.
type ReloadCallback func(s *Snapshot)

// Watch starts an fsnotify watcher on the registry file's directory and
// reloads the file on write until ctx is cancelled. Reload failures keep
// the previous snapshot in place; a broken edit never takes down a
// running service. Events are debounced because editors commonly emit
// several writes per save.
func (h *Handle) Watch(ctx context.Context, path string, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	logger.Info("registry watcher: started", slog.String("path", abs))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(200 * time.Millisecond)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("registry watcher: stopped")
			return nil

		case <-reloadCh:
			s, loadErr := Load(abs)
			if loadErr != nil {
				logger.Warn("registry watcher: reload failed, keeping current snapshot",
					slog.String("path", abs),
					slog.String("error", loadErr.Error()))
				continue
			}
			h.ptr.Store(s)
			logger.Info("registry watcher: reloaded",
				slog.String("version", s.Version()),
				slog.Int("templates", s.Len()))
			if cb != nil {
				cb(s)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("registry watcher: error", slog.String("error", werr.Error()))
		}
	}
}
