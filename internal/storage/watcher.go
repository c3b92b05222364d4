package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/edrak/internal/checksum"
	"github.com/starford/edrak/internal/models"
)

// reloadDelay debounces bursts of events produced by one atomic replace.
const reloadDelay = 200 * time.Millisecond

// Watch observes the slot file until ctx is cancelled. When the file is
// replaced with content this process did not write, the new snapshot is
// decoded and passed to onChange. Unreadable content is logged and ignored.
//
// The parent directory is watched rather than the file so that atomic
// renames (ours and other tools') are seen.
func Watch(ctx context.Context, slot *FileSlot, logger *slog.Logger, onChange func(*models.Workspace)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(slot.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("slot", slot.Path()))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time
	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(reloadDelay)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(reloadDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			reload(ctx, slot, logger, onChange)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != slot.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func reload(ctx context.Context, slot *FileSlot, logger *slog.Logger, onChange func(*models.Workspace)) {
	data, err := os.ReadFile(slot.Path())
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("error", err.Error()))
		return
	}
	if checksum.Sum(data) == slot.LastChecksum() {
		return
	}
	ws, err := slot.Load(ctx)
	if err != nil {
		logger.Warn("watcher: ignoring external edit", slog.String("error", err.Error()))
		return
	}
	logger.Info("watcher: external edit loaded", slog.Int("pages", len(ws.Pages)))
	onChange(ws)
}
