package internal

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/edrak/internal/models"
)

func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Workspace.Backend = backend
	cfg.Workspace.DataDir = dir
	cfg.Workspace.Watch = false
	cfg.SQLite.Path = filepath.Join(dir, "edrak.db")
	cfg.Assist.APIKey = ""
	return cfg
}

func TestRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
	if err := Export(context.Background(), "p1"); err == nil {
		t.Error("Export without config should fail")
	}
}

func TestImportThenExport(t *testing.T) {
	for _, backend := range []string{BackendFile, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			cfg := testConfig(t, backend)
			md := filepath.Join(t.TempDir(), "garden.md")
			if err := os.WriteFile(md, []byte("# Garden\n\n- [ ] plant tomatoes #spring"), 0o644); err != nil {
				t.Fatal(err)
			}

			var out bytes.Buffer
			err := Import(context.Background(), []string{md}, models.CategoryAreas,
				WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
			if err != nil {
				t.Fatalf("Import: %v", err)
			}
			id, name, ok := strings.Cut(strings.TrimSpace(out.String()), "\t")
			if !ok || name != "garden.md" || id == "" {
				t.Fatalf("import output = %q", out.String())
			}

			// A fresh runtime sees the page the import persisted.
			out.Reset()
			err = Export(context.Background(), id, WithConfig(cfg), WithOutput(&out), WithLogOutput(io.Discard))
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			got := out.String()
			for _, want := range []string{"title: Garden", "category: Areas", "- spring", "- [ ] plant tomatoes #spring"} {
				if !strings.Contains(got, want) {
					t.Errorf("export missing %q:\n%s", want, got)
				}
			}

			if _, err := os.Stat(cfg.Workspace.SlotPath()); (err == nil) != (backend == BackendFile) {
				t.Errorf("slot file presence wrong for %s backend: %v", backend, err)
			}
		})
	}
}

func TestExport_UnknownPage(t *testing.T) {
	cfg := testConfig(t, BackendFile)
	err := Export(context.Background(), "ghost", WithConfig(cfg), WithOutput(io.Discard), WithLogOutput(io.Discard))
	if err == nil {
		t.Fatal("expected error for unknown page")
	}
}
