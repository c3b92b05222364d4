package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/starford/edrak/internal/models"
)

// Restore loads the snapshot held by slot. When the slot is empty or its
// content cannot be used, it logs the reason and returns fallback instead.
// The boolean reports whether the snapshot came from the slot.
func Restore(ctx context.Context, slot Slot, fallback *models.Workspace, logger *slog.Logger) (*models.Workspace, bool) {
	ws, err := slot.Load(ctx)
	switch {
	case err == nil:
		logger.Info("storage: snapshot loaded",
			slog.String("slot", slot.Name()),
			slog.Int("pages", len(ws.Pages)),
			slog.Int("blocks", len(ws.Blocks)))
		return ws, true
	case errors.Is(err, os.ErrNotExist):
		logger.Info("storage: no snapshot yet, using seed", slog.String("slot", slot.Name()))
	default:
		logger.Warn("storage: snapshot unreadable, using seed",
			slog.String("slot", slot.Name()),
			slog.String("error", err.Error()))
	}
	return fallback, false
}
