package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/starford/edrak/internal/assist"
	"github.com/starford/edrak/internal/index"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/pageservice"
	"github.com/starford/edrak/internal/storage"
	"github.com/starford/edrak/internal/workspace"
)

// runtime is the workspace core shared by every entry point: the store, its
// persistence and index followers, and the page service on top.
type runtime struct {
	cfg    *Config
	logger *slog.Logger

	db       *index.DB
	slot     storage.Slot
	fileSlot *storage.FileSlot // nil with the sqlite backend

	store   *workspace.Store
	persist *workspace.Follower
	indexer *workspace.Follower
	svc     *pageservice.Service
}

func openRuntime(ctx context.Context, cfg *Config, logger *slog.Logger) (*runtime, error) {
	if err := os.MkdirAll(cfg.Workspace.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.SQLite.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, db: db}

	switch cfg.Workspace.Backend {
	case BackendSQLite:
		rt.slot = db.Slot(cfg.Workspace.Slot)
	default:
		fs, err := storage.NewFileSlot(cfg.Workspace.SlotPath())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("init storage: %w", err)
		}
		rt.slot, rt.fileSlot = fs, fs
	}

	initial, _ := storage.Restore(ctx, rt.slot, workspace.Seed(time.Now()), logger)
	rt.store = workspace.New(initial, workspace.WithLogger(logger))

	if err := index.Sync(db, rt.store.Snapshot(), logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	rt.persist = workspace.NewFollower("persist", rt.slot.Save, cfg.Workspace.SaveTimeout, logger)
	rt.indexer = workspace.NewFollower("index", func(_ context.Context, ws *models.Workspace) error {
		return index.Sync(db, ws, logger)
	}, 0, logger)
	rt.store.Subscribe(rt.persist.Observe)
	rt.store.Subscribe(rt.indexer.Observe)

	assistant, err := assist.NewGemini(ctx, cfg.Assist.options(), logger)
	if err != nil {
		rt.close()
		return nil, fmt.Errorf("init assistant: %w", err)
	}
	rt.svc = pageservice.NewService(rt.store, db, assistant, logger)
	return rt, nil
}

// watch reloads the store whenever another process replaces the snapshot
// file. It returns immediately unless the file backend is used with watch
// enabled. Watcher failures are logged, not returned.
func (rt *runtime) watch(ctx context.Context) error {
	if rt.fileSlot == nil || !rt.cfg.Workspace.Watch {
		return nil
	}
	if err := storage.Watch(ctx, rt.fileSlot, rt.logger, rt.store.Restore); err != nil {
		rt.logger.Warn("slot watcher stopped", slog.String("error", err.Error()))
	}
	return nil
}

// close waits for the followers to write the latest snapshot, then releases
// the database.
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, f := range []*workspace.Follower{rt.persist, rt.indexer} {
		if f == nil {
			continue
		}
		if err := f.Flush(ctx); err != nil {
			rt.logger.Warn("flush on shutdown failed", slog.String("error", err.Error()))
		}
		f.Close()
	}
	if err := rt.db.Close(); err != nil {
		rt.logger.Warn("close index failed", slog.String("error", err.Error()))
	}
}
