// Package storage persists whole workspace snapshots to a named durable slot.
package storage

import (
	"context"

	"github.com/starford/edrak/internal/models"
)

// Slot is a single named record holding one workspace snapshot.
type Slot interface {
	// Name identifies the slot in logs.
	Name() string
	// Load returns the stored snapshot. A slot that was never written
	// returns an error matching os.ErrNotExist.
	Load(ctx context.Context) (*models.Workspace, error)
	// Save replaces the stored snapshot with ws.
	Save(ctx context.Context, ws *models.Workspace) error
}
