package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/workspace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempSlot(t *testing.T) *FileSlot {
	t.Helper()
	slot, err := NewFileSlot(filepath.Join(t.TempDir(), "data", "edrak-storage.json"))
	require.NoError(t, err)
	return slot
}

func sampleWorkspace(title string) *models.Workspace {
	ws := models.NewWorkspace()
	ws.Pages["p1"] = models.Page{
		ID: "p1", Title: title, Emoji: "🚀", Category: models.CategoryProjects,
		Blocks: []string{"b1", "b2"}, CreatedAt: 1, UpdatedAt: 2, Tags: []string{"a"},
	}
	ws.Blocks["b1"] = models.Block{ID: "b1", Type: models.BlockHeading1, Content: "Hello"}
	ws.Blocks["b2"] = models.Block{
		ID: "b2", Type: models.BlockTodo, Content: "task",
		Props: &models.BlockProps{Checked: models.Ptr(true)},
	}
	ws.ActivePageID = models.Ptr("p1")
	return ws
}

func TestFileSlot_LoadMissing(t *testing.T) {
	slot := tempSlot(t)
	_, err := slot.Load(context.Background())
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}

func TestFileSlot_SaveLoadRoundTrip(t *testing.T) {
	slot := tempSlot(t)
	ctx := context.Background()
	ws := sampleWorkspace("Round trip")

	require.NoError(t, slot.Save(ctx, ws))
	got, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws, got)
	assert.NotEmpty(t, slot.LastChecksum())
	assert.Equal(t, "edrak-storage.json", slot.Name())
}

func TestFileSlot_SaveLeavesNoTempFiles(t *testing.T) {
	slot := tempSlot(t)
	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, sampleWorkspace("one")))
	require.NoError(t, slot.Save(ctx, sampleWorkspace("two")))

	entries, err := os.ReadDir(filepath.Dir(slot.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "edrak-storage.json", entries[0].Name())
}

func TestFileSlot_PersistedLayout(t *testing.T) {
	slot := tempSlot(t)
	require.NoError(t, slot.Save(context.Background(), sampleWorkspace("Layout")))

	data, err := os.ReadFile(slot.Path())
	require.NoError(t, err)
	for _, key := range []string{`"pages"`, `"blocks"`, `"activePageId":"p1"`, `"createdAt":1`, `"checked":true`} {
		assert.Contains(t, string(data), key)
	}
	assert.NotContains(t, string(data), `"language"`)
}

func TestFileSlot_RejectsDirectory(t *testing.T) {
	_, err := NewFileSlot(t.TempDir())
	assert.Error(t, err)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	assert.ErrorIs(t, err, apperr.ErrPersistence)

	_, err = Decode([]byte(`{"pages":{"p1":{"id":"p1","blocks":["ghost"]}},"blocks":{}}`))
	assert.ErrorIs(t, err, apperr.ErrPersistence)
}

func TestRestore_FallsBack(t *testing.T) {
	ctx := context.Background()
	fallback := sampleWorkspace("seed")

	slot := tempSlot(t)
	got, loaded := Restore(ctx, slot, fallback, quietLogger())
	assert.False(t, loaded)
	assert.Same(t, fallback, got)

	require.NoError(t, os.WriteFile(slot.Path(), []byte("garbage"), 0o644))
	got, loaded = Restore(ctx, slot, fallback, quietLogger())
	assert.False(t, loaded)
	assert.Same(t, fallback, got)

	stored := sampleWorkspace("stored")
	require.NoError(t, slot.Save(ctx, stored))
	got, loaded = Restore(ctx, slot, fallback, quietLogger())
	assert.True(t, loaded)
	assert.Equal(t, "stored", got.Pages["p1"].Title)
}

func TestWatch_ExternalEditOnly(t *testing.T) {
	slot := tempSlot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, slot.Save(ctx, sampleWorkspace("initial")))

	changes := make(chan *models.Workspace, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, slot, quietLogger(), func(ws *models.Workspace) { changes <- ws })
	}()
	time.Sleep(100 * time.Millisecond)

	// Our own save must not come back as an external edit.
	require.NoError(t, slot.Save(ctx, sampleWorkspace("own write")))
	select {
	case ws := <-changes:
		t.Fatalf("own write reported as external: %q", ws.Pages["p1"].Title)
	case <-time.After(500 * time.Millisecond):
	}

	data, err := Encode(sampleWorkspace("from elsewhere"))
	require.NoError(t, err)
	require.NoError(t, writeAtomic(slot.Path(), data))

	select {
	case ws := <-changes:
		assert.Equal(t, "from elsewhere", ws.Pages["p1"].Title)
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestFileSlot_RoundTripInvalidUTF8(t *testing.T) {
	store := workspace.New(nil, workspace.WithLogger(quietLogger()))
	require.NoError(t, store.UpdateBlock(workspace.SeedTextID, models.BlockPatch{Content: models.Ptr("caf\xe9")}))

	slot := tempSlot(t)
	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, store.Snapshot()))
	got, err := slot.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Snapshot(), got)
}

// textGen yields arbitrary byte strings, including invalid UTF-8.
func textGen() gopter.Gen {
	return gen.SliceOf(gen.UInt8()).Map(func(b []uint8) string { return string(b) })
}

func nth[V any](m map[string]V, n int) string {
	if len(m) == 0 {
		return "missing"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys[n%len(keys)]
}

func TestProperty_EncodeDecodeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150

	properties := gopter.NewProperties(parameters)

	properties.Property("every reachable snapshot survives encode and decode", prop.ForAll(
		func(ops []int, texts []string) bool {
			store := workspace.New(nil, workspace.WithLogger(quietLogger()))
			for i, op := range ops {
				ws := store.Snapshot()
				text := texts[i%len(texts)]
				arg := op / 8
				page, block := nth(ws.Pages, arg), nth(ws.Blocks, arg)
				switch op % 8 {
				case 0:
					store.ImportPage(models.Page{Title: text, Emoji: text, Category: models.CategoryResources, Tags: []string{text}},
						[]models.Block{{Type: models.BlockCode, Content: text, Props: &models.BlockProps{Language: models.Ptr(text)}}})
				case 1:
					_, _ = store.AddBlock(page, models.BlockTypes[arg%len(models.BlockTypes)], block)
				case 2:
					_ = store.UpdateBlock(block, models.BlockPatch{Content: models.Ptr(text)})
				case 3:
					_ = store.UpdateBlock(block, models.BlockPatch{Props: &models.BlockProps{URL: models.Ptr(text), Checked: models.Ptr(arg%2 == 0)}})
				case 4:
					_ = store.UpdatePage(page, models.PagePatch{Title: models.Ptr(text), Tags: &[]string{text, "x"}})
				case 5:
					_, _ = store.MergePageTags(page, []string{text})
				case 6:
					_ = store.DeleteBlock(page, block)
				case 7:
					if arg%3 == 0 {
						_ = store.DeletePage(page)
					} else {
						store.SetActivePage(models.Ptr(page))
					}
				}

				snap := store.Snapshot()
				data, err := Encode(snap)
				if err != nil {
					return false
				}
				got, err := Decode(data)
				if err != nil || !reflect.DeepEqual(snap, got) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(25, gen.IntRange(0, 799)),
		gen.SliceOfN(5, textGen()),
	))

	properties.TestingRun(t)
}
