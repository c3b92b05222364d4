// Package testutil provides shared test helpers for setting up stores and
// index databases.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/edrak/internal/assist"
	"github.com/starford/edrak/internal/index"
	"github.com/starford/edrak/internal/pageservice"
	"github.com/starford/edrak/internal/workspace"
)

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "edrak-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService builds a page service over a seeded store and a fresh index.
// The assistant has no API key, so assist calls take the missing-key path.
func TestService(t *testing.T) (*pageservice.Service, *index.DB) {
	t.Helper()
	logger := QuietLogger()
	db := TestDB(t)
	store := workspace.New(nil, workspace.WithLogger(logger))
	assistant, err := assist.NewGemini(context.Background(), assist.Config{}, logger)
	if err != nil {
		t.Fatal(err)
	}
	return pageservice.NewService(store, db, assistant, logger), db
}

// SyncIndex reindexes the current store snapshot synchronously.
func SyncIndex(t *testing.T, svc *pageservice.Service, db *index.DB) {
	t.Helper()
	if err := index.Sync(db, svc.Store().Snapshot(), QuietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}
