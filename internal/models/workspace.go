// Package models defines the document model of an Edrak workspace: pages,
// blocks and the aggregate that owns them.
package models

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// BlockType is the closed vocabulary of block kinds. The string values are
// the persisted wire names.
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockHeading1 BlockType = "h1"
	BlockHeading2 BlockType = "h2"
	BlockTodo     BlockType = "todo"
	BlockBullet   BlockType = "bullet"
	BlockQuote    BlockType = "quote"
	BlockCode     BlockType = "code"
	BlockImage    BlockType = "image"
	BlockCallout  BlockType = "callout"
	BlockDivider  BlockType = "divider"
)

// BlockTypes lists every valid block type in display order.
var BlockTypes = []BlockType{
	BlockText, BlockHeading1, BlockHeading2, BlockTodo, BlockBullet,
	BlockQuote, BlockCode, BlockImage, BlockCallout, BlockDivider,
}

// Valid reports whether t is one of BlockTypes.
func (t BlockType) Valid() bool {
	return slices.Contains(BlockTypes, t)
}

// Category is a PARA category.
type Category string

const (
	CategoryProjects  Category = "Projects"
	CategoryAreas     Category = "Areas"
	CategoryResources Category = "Resources"
	CategoryArchives  Category = "Archives"
)

// Categories lists the PARA categories in sidebar order.
var Categories = []Category{CategoryProjects, CategoryAreas, CategoryResources, CategoryArchives}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// BlockProps holds type-specific attributes. Fields that do not apply to a
// block's type stay nil and are omitted from the persisted form.
type BlockProps struct {
	Checked  *bool   `json:"checked,omitempty"`
	Language *string `json:"language,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// Merge returns p with every non-nil field of patch applied.
func (p BlockProps) Merge(patch BlockProps) BlockProps {
	if patch.Checked != nil {
		p.Checked = Ptr(*patch.Checked)
	}
	if patch.Language != nil {
		p.Language = Ptr(ValidText(*patch.Language))
	}
	if patch.URL != nil {
		p.URL = Ptr(ValidText(*patch.URL))
	}
	return p
}

// Block is the atomic content unit. Its position is defined by the owning
// page's Blocks sequence, never by the block itself.
type Block struct {
	ID       string      `json:"id"`
	Type     BlockType   `json:"type"`
	Content  string      `json:"content"`
	Props    *BlockProps `json:"props,omitempty"`
	Children []string    `json:"children,omitempty"`
}

// Page is a titled document composed of an ordered sequence of root blocks.
type Page struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Emoji     string   `json:"emoji"`
	Category  Category `json:"category"`
	Blocks    []string `json:"blocks"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	Tags      []string `json:"tags"`
}

// Workspace is the aggregate root: every page, every block and the
// active-page pointer. Values published by the store are shared snapshots
// and must not be modified; use Clone to obtain a private copy.
type Workspace struct {
	Pages        map[string]Page  `json:"pages"`
	Blocks       map[string]Block `json:"blocks"`
	ActivePageID *string          `json:"activePageId"`
}

// NewWorkspace returns an empty workspace with no active page.
func NewWorkspace() *Workspace {
	return &Workspace{
		Pages:  make(map[string]Page),
		Blocks: make(map[string]Block),
	}
}

// Clone returns a deep copy of w.
func (w *Workspace) Clone() *Workspace {
	out := &Workspace{
		Pages:  make(map[string]Page, len(w.Pages)),
		Blocks: make(map[string]Block, len(w.Blocks)),
	}
	for id, p := range w.Pages {
		p.Blocks = slices.Clone(p.Blocks)
		p.Tags = slices.Clone(p.Tags)
		out.Pages[id] = p
	}
	for id, b := range w.Blocks {
		out.Blocks[id] = b.Clone()
	}
	if w.ActivePageID != nil {
		out.ActivePageID = Ptr(*w.ActivePageID)
	}
	return out
}

// Clone returns a copy of b that shares no memory with it.
func (b Block) Clone() Block {
	if b.Props != nil {
		b.Props = Ptr(BlockProps{}.Merge(*b.Props))
	}
	b.Children = slices.Clone(b.Children)
	return b
}

// Validate checks the structural invariants: map keys match ids, every id in
// a page's block sequence exists in the block mapping, and no block is
// ordered by more than one page.
func (w *Workspace) Validate() error {
	if w.Pages == nil || w.Blocks == nil {
		return fmt.Errorf("workspace: pages and blocks must be present")
	}
	owner := make(map[string]string, len(w.Blocks))
	for key, p := range w.Pages {
		if p.ID != key {
			return fmt.Errorf("workspace: page key %q holds id %q", key, p.ID)
		}
		for _, bid := range p.Blocks {
			if _, ok := w.Blocks[bid]; !ok {
				return fmt.Errorf("workspace: page %q references missing block %q", key, bid)
			}
			if prev, dup := owner[bid]; dup {
				return fmt.Errorf("workspace: block %q ordered by pages %q and %q", bid, prev, key)
			}
			owner[bid] = key
		}
	}
	for key, b := range w.Blocks {
		if b.ID != key {
			return fmt.Errorf("workspace: block key %q holds id %q", key, b.ID)
		}
	}
	return nil
}

// ActivePage returns the page the active pointer refers to. A nil or
// dangling pointer yields false.
func (w *Workspace) ActivePage() (Page, bool) {
	if w.ActivePageID == nil {
		return Page{}, false
	}
	p, ok := w.Pages[*w.ActivePageID]
	return p, ok
}

// PageBlocks returns the blocks of page id in document order.
func (w *Workspace) PageBlocks(id string) []Block {
	p, ok := w.Pages[id]
	if !ok {
		return nil
	}
	out := make([]Block, 0, len(p.Blocks))
	for _, bid := range p.Blocks {
		if b, ok := w.Blocks[bid]; ok {
			out = append(out, b)
		}
	}
	return out
}

// PageText concatenates the contents of page id's blocks, one per line.
func (w *Workspace) PageText(id string) string {
	blocks := w.PageBlocks(id)
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Content
	}
	return strings.Join(parts, "\n")
}

// PagesIn returns the pages of category c (all pages when c is empty)
// ordered by creation time, then id.
func (w *Workspace) PagesIn(c Category) []Page {
	out := make([]Page, 0, len(w.Pages))
	for _, p := range w.Pages {
		if c == "" || p.Category == c {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PagePatch lists the page fields an update may touch. Nil fields are left
// unchanged. Id, block order and timestamps are owned by the store.
type PagePatch struct {
	Title    *string   `json:"title,omitempty"`
	Emoji    *string   `json:"emoji,omitempty"`
	Category *Category `json:"category,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
}

// Apply returns p with the patch merged in.
func (pp PagePatch) Apply(p Page) Page {
	if pp.Title != nil {
		p.Title = ValidText(*pp.Title)
	}
	if pp.Emoji != nil {
		p.Emoji = ValidText(*pp.Emoji)
	}
	if pp.Category != nil {
		p.Category = *pp.Category
	}
	if pp.Tags != nil {
		p.Tags = make([]string, len(*pp.Tags))
		for i, t := range *pp.Tags {
			p.Tags[i] = ValidText(t)
		}
	}
	return p
}

// BlockPatch lists the block fields an update may touch. Nil fields are left
// unchanged; Props merges field by field.
type BlockPatch struct {
	Type     *BlockType  `json:"type,omitempty"`
	Content  *string     `json:"content,omitempty"`
	Props    *BlockProps `json:"props,omitempty"`
	Children *[]string   `json:"children,omitempty"`
}

// Apply returns b with the patch merged in.
func (bp BlockPatch) Apply(b Block) Block {
	b = b.Clone()
	if bp.Type != nil {
		b.Type = *bp.Type
	}
	if bp.Content != nil {
		b.Content = ValidText(*bp.Content)
	}
	if bp.Props != nil {
		var base BlockProps
		if b.Props != nil {
			base = *b.Props
		}
		b.Props = Ptr(base.Merge(*bp.Props))
	}
	if bp.Children != nil {
		b.Children = nil
		if len(*bp.Children) > 0 {
			b.Children = slices.Clone(*bp.Children)
		}
	}
	return b
}

// MergeTags returns the union of existing and extra, keeping first
// occurrences in order. Tags are compared by exact string equality.
func MergeTags(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, list := range [][]string{existing, extra} {
		for _, t := range list {
			t = ValidText(t)
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// ValidText returns s with every run of invalid UTF-8 replaced by U+FFFD.
// Text stored in a workspace is always valid so that it survives a JSON
// round trip unchanged.
func ValidText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
