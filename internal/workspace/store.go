// Package workspace owns the in-memory workspace aggregate. Every mutation
// is a single atomic transition that publishes a new immutable snapshot.
package workspace

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/models"
)

// Defaults applied to pages created by AddPage.
const (
	DefaultPageTitle = "New page"
	DefaultPageEmoji = "📄"
)

// Observer is called after every transition with the event that caused it
// and the snapshot it produced. Observers run while the store admits no
// other mutation, so they must return quickly and must not call back into
// the store's write operations.
type Observer func(ev Event, snap *models.Workspace)

// Store is the sole owner and mutator of a workspace.
//
// Mutations serialize on mu; the current snapshot lives in an atomic
// pointer so readers never wait and never observe a partial write.
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[models.Workspace]
	observers []Observer

	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for page timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the page and block id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store holding a private copy of initial, or the seed
// workspace when initial is nil.
func New(initial *models.Workspace, opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if initial == nil {
		initial = Seed(s.now())
	}
	s.current.Store(initial.Clone())
	return s
}

// Subscribe registers an observer for all future transitions.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Snapshot returns the current workspace. The value is shared and must not
// be modified.
func (s *Store) Snapshot() *models.Workspace {
	return s.current.Load()
}

// Page returns the page with the given id.
func (s *Store) Page(id string) (models.Page, bool) {
	p, ok := s.current.Load().Pages[id]
	return p, ok
}

// Block returns the block with the given id.
func (s *Store) Block(id string) (models.Block, bool) {
	b, ok := s.current.Load().Blocks[id]
	return b, ok
}

// PageBlocks returns the blocks of page id in document order.
func (s *Store) PageBlocks(id string) []models.Block {
	return s.current.Load().PageBlocks(id)
}

// AddPage creates a page in category with one empty text block, makes it
// the active page and returns its id. category must be one of
// models.Categories; callers validate it.
func (s *Store) AddPage(category models.Category) string {
	return s.ImportPage(models.Page{Category: category}, nil)
}

// ImportPage creates a page from tpl holding blocks in the given order, makes
// it the active page and returns its id. Ids, block order and timestamps in
// the arguments are ignored; fresh ones are assigned. An empty title or emoji
// takes the default, and an empty block list yields one empty text block.
// As with AddPage, tpl.Category and the block types must already be valid.
func (s *Store) ImportPage(tpl models.Page, blocks []models.Block) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fork(s.current.Load())
	pageID := s.freshID(next)
	now := s.now().UnixMilli()

	if len(blocks) == 0 {
		blocks = []models.Block{{Type: models.BlockText}}
	}
	order := make([]string, 0, len(blocks))
	for _, b := range blocks {
		b = models.BlockPatch{Content: &b.Content, Props: b.Props}.Apply(models.Block{
			ID:   s.freshID(next, pageID),
			Type: b.Type,
		})
		next.Blocks[b.ID] = b
		order = append(order, b.ID)
	}

	page := models.PagePatch{Title: &tpl.Title, Emoji: &tpl.Emoji}.Apply(models.Page{
		ID:        pageID,
		Category:  tpl.Category,
		Blocks:    order,
		CreatedAt: now,
		UpdatedAt: now,
		Tags:      models.MergeTags(nil, tpl.Tags),
	})
	if page.Title == "" {
		page.Title = DefaultPageTitle
	}
	if page.Emoji == "" {
		page.Emoji = DefaultPageEmoji
	}
	next.Pages[pageID] = page
	next.ActivePageID = &pageID

	s.commit(next, Event{Kind: EventPageCreated, PageID: pageID, BlockID: order[0]})
	s.logger.Debug("workspace: page created",
		slog.String("page_id", pageID),
		slog.String("category", string(page.Category)),
		slog.Int("blocks", len(order)))
	return pageID
}

// UpdatePage merges patch into page id and refreshes its updatedAt.
// An unknown id leaves the workspace untouched and returns ErrNotFound.
func (s *Store) UpdatePage(id string, patch models.PagePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.updatePageLocked(id, patch)
	return err
}

// MergePageTags adds tags to page id's tag set, suppressing duplicates, and
// returns the resulting set.
func (s *Store) MergePageTags(id string, tags []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, ok := s.current.Load().Pages[id]
	if !ok {
		return nil, apperr.NotFound("page", id)
	}
	merged := models.MergeTags(page.Tags, tags)
	updated, err := s.updatePageLocked(id, models.PagePatch{Tags: &merged})
	if err != nil {
		return nil, err
	}
	return updated.Tags, nil
}

func (s *Store) updatePageLocked(id string, patch models.PagePatch) (models.Page, error) {
	cur := s.current.Load()
	page, ok := cur.Pages[id]
	if !ok {
		return models.Page{}, apperr.NotFound("page", id)
	}
	page = patch.Apply(page)
	page.UpdatedAt = s.stamp(page.UpdatedAt)

	next := fork(cur)
	next.Pages[id] = page
	s.commit(next, Event{Kind: EventPageUpdated, PageID: id})
	return page, nil
}

// DeletePage removes page id together with its blocks. When the page was
// active, the earliest remaining page becomes active, or none if the
// workspace is empty.
func (s *Store) DeletePage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	page, ok := cur.Pages[id]
	if !ok {
		return apperr.NotFound("page", id)
	}

	next := fork(cur)
	delete(next.Pages, id)
	dropBlocks(next, page.Blocks)

	if cur.ActivePageID != nil && *cur.ActivePageID == id {
		next.ActivePageID = nil
		if remaining := next.PagesIn(""); len(remaining) > 0 {
			next.ActivePageID = models.Ptr(remaining[0].ID)
		}
	}

	s.commit(next, Event{Kind: EventPageDeleted, PageID: id})
	s.logger.Debug("workspace: page deleted",
		slog.String("page_id", id),
		slog.Int("blocks", len(page.Blocks)))
	return nil
}

// SetActivePage points the workspace at id, or at no page when id is nil.
// The id is not validated.
func (s *Store) SetActivePage(id *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := fork(s.current.Load())
	next.ActivePageID = nil
	ev := Event{Kind: EventPageActivated}
	if id != nil {
		next.ActivePageID = models.Ptr(models.ValidText(*id))
		ev.PageID = *next.ActivePageID
	}
	s.commit(next, ev)
}

// AddBlock creates an empty block of type typ in page pageID and returns its
// id. The block goes right after afterID when that id is in the page's
// sequence, otherwise at the end. A type outside models.BlockTypes returns
// ErrInvalid.
func (s *Store) AddBlock(pageID string, typ models.BlockType, afterID string) (string, error) {
	if !typ.Valid() {
		return "", apperr.Invalid("block type", string(typ))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	page, ok := cur.Pages[pageID]
	if !ok {
		return "", apperr.NotFound("page", pageID)
	}

	next := fork(cur)
	id := s.freshID(next)

	pos := len(page.Blocks)
	if afterID != "" {
		if i := slices.Index(page.Blocks, afterID); i >= 0 {
			pos = i + 1
		}
	}
	page.Blocks = slices.Insert(slices.Clone(page.Blocks), pos, id)
	page.UpdatedAt = s.stamp(page.UpdatedAt)

	next.Blocks[id] = models.Block{ID: id, Type: typ}
	next.Pages[pageID] = page

	s.commit(next, Event{Kind: EventBlockCreated, PageID: pageID, BlockID: id})
	return id, nil
}

// UpdateBlock merges patch into block id. Content edits are not structural,
// so the owning page's updatedAt is left alone. A patch naming a type outside
// models.BlockTypes returns ErrInvalid.
func (s *Store) UpdateBlock(id string, patch models.BlockPatch) error {
	if patch.Type != nil && !patch.Type.Valid() {
		return apperr.Invalid("block type", string(*patch.Type))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	block, ok := cur.Blocks[id]
	if !ok {
		return apperr.NotFound("block", id)
	}

	next := fork(cur)
	next.Blocks[id] = patch.Apply(block)
	s.commit(next, Event{Kind: EventBlockUpdated, PageID: ownerOf(cur, id), BlockID: id})
	return nil
}

// DeleteBlock removes blockID from page pageID's sequence and from the block
// mapping in one transition. A block that is not in the page's sequence is
// left alone, which makes repeated calls harmless.
func (s *Store) DeleteBlock(pageID, blockID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	page, ok := cur.Pages[pageID]
	if !ok {
		return apperr.NotFound("page", pageID)
	}
	i := slices.Index(page.Blocks, blockID)
	if i < 0 {
		return nil
	}

	next := fork(cur)
	page.Blocks = slices.Delete(slices.Clone(page.Blocks), i, i+1)
	page.UpdatedAt = s.stamp(page.UpdatedAt)
	next.Pages[pageID] = page
	dropBlocks(next, []string{blockID})

	s.commit(next, Event{Kind: EventBlockDeleted, PageID: pageID, BlockID: blockID})
	return nil
}

// Restore replaces the whole workspace with a private copy of ws.
func (s *Store) Restore(ws *models.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(ws.Clone(), Event{Kind: EventWorkspaceRestored})
	s.logger.Info("workspace: restored", slog.Int("pages", len(ws.Pages)))
}

// commit publishes next. Callers hold mu.
func (s *Store) commit(next *models.Workspace, ev Event) {
	s.current.Store(next)
	for _, obs := range s.observers {
		obs(ev, next)
	}
}

// stamp returns the current time in milliseconds, never earlier than prev.
func (s *Store) stamp(prev int64) int64 {
	return max(s.now().UnixMilli(), prev)
}

// freshID returns an id that is not a page or block key in ws and differs
// from taken.
func (s *Store) freshID(ws *models.Workspace, taken ...string) string {
	for {
		id := s.newID()
		_, page := ws.Pages[id]
		_, block := ws.Blocks[id]
		if !page && !block && !slices.Contains(taken, id) {
			return id
		}
	}
}

// fork returns a shallow copy of ws whose maps may be modified. Page and
// block values are copied on write by the callers.
func fork(ws *models.Workspace) *models.Workspace {
	return &models.Workspace{
		Pages:        maps.Clone(ws.Pages),
		Blocks:       maps.Clone(ws.Blocks),
		ActivePageID: ws.ActivePageID,
	}
}

// dropBlocks deletes ids and their reserved children from ws.Blocks. A child
// that some page still orders is kept.
func dropBlocks(ws *models.Workspace, ids []string) {
	var children []string
	for _, id := range ids {
		if b, ok := ws.Blocks[id]; ok {
			children = append(children, b.Children...)
		}
		delete(ws.Blocks, id)
	}
	for _, id := range children {
		if ownerOf(ws, id) == "" {
			delete(ws.Blocks, id)
		}
	}
}

// ownerOf returns the id of the page whose sequence contains blockID.
func ownerOf(ws *models.Workspace, blockID string) string {
	for id, p := range ws.Pages {
		if slices.Contains(p.Blocks, blockID) {
			return id
		}
	}
	return ""
}
