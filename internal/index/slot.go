package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/checksum"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/storage"
)

// Slot stores a workspace snapshot as one row of the slots table.
type Slot struct {
	db   *DB
	name string
}

var _ storage.Slot = (*Slot)(nil)

// Slot returns the snapshot slot called name.
func (db *DB) Slot(name string) *Slot {
	return &Slot{db: db, name: name}
}

// Name returns the slot name.
func (s *Slot) Name() string {
	return s.name
}

// Load reads and decodes the snapshot row.
func (s *Slot) Load(ctx context.Context) (*models.Workspace, error) {
	var data []byte
	err := s.db.conn.QueryRowContext(ctx, `SELECT data FROM slots WHERE name = ?`, s.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: slot %s: %w", s.name, os.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: index: read slot %s: %w", apperr.ErrPersistence, s.name, err)
	}
	return storage.Decode(data)
}

// Save replaces the snapshot row.
func (s *Slot) Save(ctx context.Context, ws *models.Workspace) error {
	data, err := storage.Encode(ws)
	if err != nil {
		return err
	}
	_, err = s.db.conn.ExecContext(ctx, `
		INSERT INTO slots (name, data, checksum, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			data       = excluded.data,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, s.name, data, checksum.Sum(data))
	if err != nil {
		return fmt.Errorf("%w: index: write slot %s: %w", apperr.ErrPersistence, s.name, err)
	}
	return nil
}
