package workspace

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/models"
)

// tickClock advances by one millisecond on every call.
type tickClock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Millisecond)
	return c.cur
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(opts ...Option) *Store {
	clock := &tickClock{cur: time.UnixMilli(1_000_000)}
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(seqIDs()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(nil, append(base, opts...)...)
}

func TestSeed(t *testing.T) {
	s := newTestStore()
	ws := s.Snapshot()

	require.Len(t, ws.Pages, 1)
	p := ws.Pages[SeedPageID]
	assert.Equal(t, []string{SeedHeadingID, SeedTextID}, p.Blocks)
	assert.Equal(t, models.CategoryProjects, p.Category)
	assert.Equal(t, SeedPageID, *ws.ActivePageID)
	assert.NoError(t, ws.Validate())
}

func TestAddBlock_AfterAnchor(t *testing.T) {
	s := newTestStore()

	id, err := s.AddBlock(SeedPageID, models.BlockText, SeedHeadingID)
	require.NoError(t, err)

	p, _ := s.Page(SeedPageID)
	assert.Equal(t, []string{SeedHeadingID, id, SeedTextID}, p.Blocks)
	b, ok := s.Block(id)
	require.True(t, ok)
	assert.Equal(t, models.Block{ID: id, Type: models.BlockText}, b)
}

func TestAddBlock_Positions(t *testing.T) {
	s := newTestStore()

	atEnd, err := s.AddBlock(SeedPageID, models.BlockDivider, "")
	require.NoError(t, err)
	missing, err := s.AddBlock(SeedPageID, models.BlockQuote, "no-such-block")
	require.NoError(t, err)

	p, _ := s.Page(SeedPageID)
	assert.Equal(t, []string{SeedHeadingID, SeedTextID, atEnd, missing}, p.Blocks)
}

func TestAddBlock_UnknownPage(t *testing.T) {
	s := newTestStore()
	before := s.Snapshot()

	_, err := s.AddBlock("ghost", models.BlockText, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Same(t, before, s.Snapshot())
}

func TestDeleteBlock_Idempotent(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.DeleteBlock(SeedPageID, SeedTextID))
	_, ok := s.Block(SeedTextID)
	assert.False(t, ok)

	require.NoError(t, s.DeleteBlock(SeedPageID, SeedTextID))
	_, ok = s.Block(SeedTextID)
	assert.False(t, ok)

	p, _ := s.Page(SeedPageID)
	assert.Equal(t, []string{SeedHeadingID}, p.Blocks)
}

func TestDeleteBlock_ForeignBlockUntouched(t *testing.T) {
	s := newTestStore()
	other := s.AddPage(models.CategoryAreas)
	otherBlocks := s.Snapshot().Pages[other].Blocks
	before := s.Snapshot()

	require.NoError(t, s.DeleteBlock(SeedPageID, otherBlocks[0]))
	assert.Same(t, before, s.Snapshot())
	_, ok := s.Block(otherBlocks[0])
	assert.True(t, ok)
}

func TestAddPage(t *testing.T) {
	s := newTestStore()

	id := s.AddPage(models.CategoryAreas)
	ws := s.Snapshot()

	require.Len(t, ws.Pages, 2)
	p := ws.Pages[id]
	assert.Equal(t, models.CategoryAreas, p.Category)
	assert.Equal(t, id, *ws.ActivePageID)
	assert.Equal(t, DefaultPageTitle, p.Title)
	assert.Equal(t, DefaultPageEmoji, p.Emoji)
	assert.Equal(t, []string{}, p.Tags)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	require.Len(t, p.Blocks, 1)
	assert.Equal(t, models.BlockText, ws.Blocks[p.Blocks[0]].Type)
	assert.Empty(t, ws.Blocks[p.Blocks[0]].Content)
}

func TestFreshIDSkipsCollisions(t *testing.T) {
	ids := []string{SeedPageID, SeedHeadingID, "x1", "x1", "x2"}
	s := newTestStore(WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))

	pageID := s.AddPage(models.CategoryResources)
	assert.Equal(t, "x1", pageID)
	p, _ := s.Page(pageID)
	assert.Equal(t, []string{"x2"}, p.Blocks)
}

func TestUpdatePage_MergesAndStamps(t *testing.T) {
	s := newTestStore()
	before, _ := s.Page(SeedPageID)

	require.NoError(t, s.UpdatePage(SeedPageID, models.PagePatch{Title: models.Ptr("Renamed")}))

	after, _ := s.Page(SeedPageID)
	assert.Equal(t, "Renamed", after.Title)
	assert.Equal(t, before.Emoji, after.Emoji)
	assert.Equal(t, before.Tags, after.Tags)
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Greater(t, after.UpdatedAt, before.UpdatedAt)
}

func TestUpdatePage_UnknownID(t *testing.T) {
	s := newTestStore()
	before := s.Snapshot()
	err := s.UpdatePage("ghost", models.PagePatch{Title: models.Ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Same(t, before, s.Snapshot())
}

func TestUpdatedAtNeverGoesBackwards(t *testing.T) {
	now := time.UnixMilli(5_000)
	s := newTestStore(WithClock(func() time.Time { return now }))

	require.NoError(t, s.UpdatePage(SeedPageID, models.PagePatch{Emoji: models.Ptr("✅")}))
	first, _ := s.Page(SeedPageID)

	now = time.UnixMilli(1_000)
	require.NoError(t, s.UpdatePage(SeedPageID, models.PagePatch{Emoji: models.Ptr("❌")}))
	second, _ := s.Page(SeedPageID)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestMergePageTags(t *testing.T) {
	s := newTestStore()

	tags, err := s.MergePageTags(SeedPageID, []string{"welcome", "ai", "ai"})
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome", "getting-started", "ai"}, tags)

	_, err = s.MergePageTags("ghost", []string{"x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateBlock_LeavesPageTimestamp(t *testing.T) {
	s := newTestStore()
	before, _ := s.Page(SeedPageID)

	require.NoError(t, s.UpdateBlock(SeedTextID, models.BlockPatch{Content: models.Ptr("edited")}))

	b, _ := s.Block(SeedTextID)
	assert.Equal(t, "edited", b.Content)
	assert.Equal(t, models.BlockText, b.Type)
	after, _ := s.Page(SeedPageID)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
}

func TestUpdateBlock_PropsMerge(t *testing.T) {
	s := newTestStore()
	id, _ := s.AddBlock(SeedPageID, models.BlockCode, "")

	require.NoError(t, s.UpdateBlock(id, models.BlockPatch{Props: &models.BlockProps{Language: models.Ptr("go")}}))
	require.NoError(t, s.UpdateBlock(id, models.BlockPatch{Props: &models.BlockProps{Checked: models.Ptr(false)}}))

	b, _ := s.Block(id)
	require.NotNil(t, b.Props)
	assert.Equal(t, "go", *b.Props.Language)
	assert.False(t, *b.Props.Checked)
}

func TestUpdateBlock_UnknownID(t *testing.T) {
	s := newTestStore()
	err := s.UpdateBlock("ghost", models.BlockPatch{Content: models.Ptr("x")})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeletePage_CascadesAndReassignsActive(t *testing.T) {
	s := newTestStore()
	second := s.AddPage(models.CategoryAreas)
	secondBlock := s.Snapshot().Pages[second].Blocks[0]

	require.NoError(t, s.DeletePage(second))
	ws := s.Snapshot()
	assert.NotContains(t, ws.Pages, second)
	assert.NotContains(t, ws.Blocks, secondBlock)
	assert.Equal(t, SeedPageID, *ws.ActivePageID)

	require.NoError(t, s.DeletePage(SeedPageID))
	ws = s.Snapshot()
	assert.Empty(t, ws.Pages)
	assert.Empty(t, ws.Blocks)
	assert.Nil(t, ws.ActivePageID)

	assert.ErrorIs(t, s.DeletePage(SeedPageID), apperr.ErrNotFound)
}

func TestDeletePage_DropsReservedChildren(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.UpdateBlock(SeedTextID, models.BlockPatch{Children: &[]string{SeedHeadingID, "orphan"}}))

	require.NoError(t, s.DeletePage(SeedPageID))
	assert.Empty(t, s.Snapshot().Blocks)
}

func TestSetActivePage(t *testing.T) {
	s := newTestStore()

	s.SetActivePage(models.Ptr("not-a-page"))
	assert.Equal(t, "not-a-page", *s.Snapshot().ActivePageID)
	_, ok := s.Snapshot().ActivePage()
	assert.False(t, ok)

	s.SetActivePage(nil)
	assert.Nil(t, s.Snapshot().ActivePageID)
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := newTestStore()
	before := s.Snapshot()
	beforePage := before.Pages[SeedPageID]

	_, err := s.AddBlock(SeedPageID, models.BlockText, SeedHeadingID)
	require.NoError(t, err)

	assert.Equal(t, beforePage, before.Pages[SeedPageID])
	assert.Len(t, before.Blocks, 2)
}

func TestSubscribe_ReceivesEvents(t *testing.T) {
	s := newTestStore()
	var events []Event
	s.Subscribe(func(ev Event, snap *models.Workspace) {
		events = append(events, ev)
	})

	pageID := s.AddPage(models.CategoryArchives)
	blockID, _ := s.AddBlock(pageID, models.BlockTodo, "")
	_ = s.UpdateBlock(blockID, models.BlockPatch{Content: models.Ptr("x")})
	_ = s.DeleteBlock(pageID, blockID)
	_ = s.DeletePage(pageID)

	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []string{EventPageCreated, EventBlockCreated, EventBlockUpdated, EventBlockDeleted, EventPageDeleted}, kinds)
	assert.Equal(t, pageID, events[2].PageID)
	assert.True(t, events[0].Structural())
	assert.False(t, events[2].Structural())
}

func TestRestore(t *testing.T) {
	s := newTestStore()
	ws := models.NewWorkspace()
	s.Restore(ws)

	assert.Empty(t, s.Snapshot().Pages)
	assert.NotSame(t, ws, s.Snapshot())
}

func TestConcurrentMutations(t *testing.T) {
	s := New(nil, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, _ = s.AddBlock(SeedPageID, models.BlockText, SeedHeadingID)
			}
		}()
	}
	wg.Wait()

	ws := s.Snapshot()
	assert.Len(t, ws.Pages[SeedPageID].Blocks, 2+8*25)
	assert.NoError(t, ws.Validate())
}

// sortedKeys returns the keys of m in a stable order so generated indexes
// pick deterministic targets.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func pick(keys []string, n int) string {
	if len(keys) == 0 {
		return "missing"
	}
	return keys[n%len(keys)]
}

// applyOp runs one store operation chosen by op against the current state.
func applyOp(s *Store, op int) {
	ws := s.Snapshot()
	pages, blocks := sortedKeys(ws.Pages), sortedKeys(ws.Blocks)
	arg := op / 7
	switch op % 7 {
	case 0:
		s.AddPage(models.Categories[arg%len(models.Categories)])
	case 1:
		_ = s.DeletePage(pick(pages, arg))
	case 2:
		_, _ = s.AddBlock(pick(pages, arg), models.BlockTypes[arg%len(models.BlockTypes)], pick(blocks, arg))
	case 3:
		page := pick(pages, arg)
		if p, ok := ws.Pages[page]; ok && len(p.Blocks) > 0 {
			_ = s.DeleteBlock(page, p.Blocks[arg%len(p.Blocks)])
		}
	case 4:
		_ = s.UpdateBlock(pick(blocks, arg), models.BlockPatch{Content: models.Ptr(fmt.Sprint(arg))})
	case 5:
		_ = s.UpdatePage(pick(pages, arg), models.PagePatch{Title: models.Ptr(fmt.Sprint(arg))})
	case 6:
		_, _ = s.MergePageTags(pick(pages, arg), []string{fmt.Sprint(arg % 3)})
	}
}

func TestProperty_NoDanglingReferences(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("every operation sequence keeps the workspace consistent", prop.ForAll(
		func(ops []int) bool {
			s := newTestStore()
			for _, op := range ops {
				ws := s.Snapshot()
				applyOp(s, op)

				next := s.Snapshot()
				if next.Validate() != nil {
					return false
				}
				for id := range next.Blocks {
					if !slices.ContainsFunc(sortedKeys(next.Pages), func(pid string) bool {
						return slices.Contains(next.Pages[pid].Blocks, id)
					}) {
						return false
					}
				}
				if next.ActivePageID != nil {
					if _, ok := next.Pages[*next.ActivePageID]; !ok {
						return false
					}
				}
				for id, p := range next.Pages {
					if prev, ok := ws.Pages[id]; ok && p.UpdatedAt < prev.UpdatedAt {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(40, gen.IntRange(0, 699)),
	))

	properties.TestingRun(t)
}

// Anchor kinds for the insertion property.
const (
	anchorNone = iota
	anchorInPage
	anchorUnknown
	anchorOtherPage
)

func TestProperty_InsertionPosition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)

	properties.Property("a new block lands right after its anchor, or at the end", prop.ForAll(
		func(ops []int, pageSel, kind, anchorSel int) bool {
			s := newTestStore()
			for _, op := range ops {
				applyOp(s, op)
			}
			if len(s.Snapshot().Pages) == 0 {
				s.AddPage(models.CategoryAreas)
			}
			ws := s.Snapshot()
			pageID := pick(sortedKeys(ws.Pages), pageSel)
			before := ws.Pages[pageID].Blocks

			anchor, want := "", len(before)
			switch kind {
			case anchorInPage:
				if len(before) > 0 {
					i := anchorSel % len(before)
					anchor, want = before[i], i+1
				}
			case anchorUnknown:
				anchor = "no-such-block"
			case anchorOtherPage:
				for _, id := range sortedKeys(ws.Blocks) {
					if !slices.Contains(before, id) {
						anchor = id
						break
					}
				}
			}

			id, err := s.AddBlock(pageID, models.BlockText, anchor)
			if err != nil {
				return false
			}
			after, _ := s.Page(pageID)
			if slices.Index(after.Blocks, id) != want {
				return false
			}
			return slices.Equal(slices.Delete(slices.Clone(after.Blocks), want, want+1), before)
		},
		gen.SliceOfN(30, gen.IntRange(0, 699)),
		gen.IntRange(0, 1000),
		gen.IntRange(anchorNone, anchorOtherPage),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t)
}

func TestInvalidBlockTypeRejected(t *testing.T) {
	s := newTestStore()
	before := s.Snapshot()

	_, err := s.AddBlock(SeedPageID, models.BlockType("table"), "")
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	err = s.UpdateBlock(SeedTextID, models.BlockPatch{Type: models.Ptr(models.BlockType("table"))})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	assert.Same(t, before, s.Snapshot())
}

func TestInvalidUTF8IsNormalized(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.UpdateBlock(SeedTextID, models.BlockPatch{
		Content: models.Ptr("caf\xe9"),
		Props:   &models.BlockProps{Language: models.Ptr("g\xffo")},
	}))
	require.NoError(t, s.UpdatePage(SeedPageID, models.PagePatch{
		Title: models.Ptr("t\xe9st"),
		Tags:  &[]string{"\xff"},
	}))
	id := s.ImportPage(models.Page{Title: "\xc3", Category: models.CategoryAreas},
		[]models.Block{{Type: models.BlockText, Content: "a\x80b"}})

	b, _ := s.Block(SeedTextID)
	assert.Equal(t, "caf\uFFFD", b.Content)
	assert.Equal(t, "g\uFFFDo", *b.Props.Language)
	p, _ := s.Page(SeedPageID)
	assert.Equal(t, "t\uFFFDst", p.Title)
	assert.Equal(t, []string{"\uFFFD"}, p.Tags)

	imported, _ := s.Page(id)
	assert.Equal(t, "\uFFFD", imported.Title)
	assert.Equal(t, "a\uFFFDb", s.PageBlocks(id)[0].Content)
}

func TestImportPage(t *testing.T) {
	s := newTestStore()
	blocks := []models.Block{
		{ID: "ignored", Type: models.BlockHeading1, Content: "Title", Children: []string{"x"}},
		{Type: models.BlockTodo, Content: "task", Props: &models.BlockProps{Checked: models.Ptr(true)}},
	}

	id := s.ImportPage(models.Page{
		ID:       "ignored-too",
		Title:    "Imported",
		Category: models.CategoryResources,
		Tags:     []string{"a", "a", "b"},
	}, blocks)

	ws := s.Snapshot()
	p := ws.Pages[id]
	assert.NotEqual(t, "ignored-too", id)
	assert.Equal(t, "Imported", p.Title)
	assert.Equal(t, DefaultPageEmoji, p.Emoji)
	assert.Equal(t, []string{"a", "b"}, p.Tags)
	assert.Equal(t, id, *ws.ActivePageID)

	got := ws.PageBlocks(id)
	require.Len(t, got, 2)
	assert.NotEqual(t, "ignored", got[0].ID)
	assert.Nil(t, got[0].Children)
	assert.Equal(t, "task", got[1].Content)
	assert.True(t, *got[1].Props.Checked)
	assert.NoError(t, ws.Validate())

	// The caller's blocks are not aliased by the store.
	*blocks[1].Props.Checked = false
	b, _ := s.Block(got[1].ID)
	assert.True(t, *b.Props.Checked)
}
