package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/checksum"
	"github.com/starford/edrak/internal/models"
)

// FileSlot implements Slot as a JSON file replaced atomically on every save.
type FileSlot struct {
	path string // absolute path of the snapshot file

	mu      sync.Mutex
	lastSum string // checksum of the bytes last written or read
}

// NewFileSlot returns a slot stored at path. The parent directory is
// created if needed; the file itself appears on the first save.
func NewFileSlot(path string) (*FileSlot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve slot path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("storage: slot path is a directory: %s", abs)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	return &FileSlot{path: abs}, nil
}

// Name returns the slot file name.
func (f *FileSlot) Name() string {
	return filepath.Base(f.path)
}

// Path returns the absolute path of the slot file.
func (f *FileSlot) Path() string {
	return f.path
}

// LastChecksum returns the checksum of the content this slot last wrote or
// read, or "" before the first access.
func (f *FileSlot) LastChecksum() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSum
}

// Load reads and decodes the snapshot file.
func (f *FileSlot) Load(_ context.Context) (*models.Workspace, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", f.Name(), err)
	}
	ws, err := Decode(data)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.lastSum = checksum.Sum(data)
	f.mu.Unlock()
	return ws, nil
}

// Save encodes ws and atomically replaces the snapshot file.
func (f *FileSlot) Save(_ context.Context, ws *models.Workspace) error {
	data, err := Encode(ws)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := writeAtomic(f.path, data); err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
	}
	f.lastSum = checksum.Sum(data)
	return nil
}

// Encode serializes ws in the persisted layout.
func Encode(ws *models.Workspace) ([]byte, error) {
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %w", apperr.ErrPersistence, err)
	}
	return data, nil
}

// Decode parses a persisted snapshot and checks its invariants.
func Decode(data []byte) (*models.Workspace, error) {
	var ws models.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", apperr.ErrPersistence, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrPersistence, err)
	}
	return &ws, nil
}

// writeAtomic writes content next to path and renames it into place:
// tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".edrak-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
