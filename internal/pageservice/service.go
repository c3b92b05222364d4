// Package pageservice coordinates the workspace store with the search index,
// the Markdown codec and the AI assistant.
package pageservice

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/assist"
	"github.com/starford/edrak/internal/index"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/parser"
	"github.com/starford/edrak/internal/workspace"
)

// Summary texts returned when the assistant cannot produce one.
const (
	SummaryMissingKey = "AI API key missing."
	SummaryFailed     = "AI processing failed."
	SummaryEmpty      = "Could not extract a summary."
)

// PageDetail is a page with its blocks in document order.
type PageDetail struct {
	Page      models.Page    `json:"page"`
	Blocks    []models.Block `json:"blocks"`
	Backlinks []string       `json:"backlinks"`
}

// AssistResult is the outcome of one assist run.
type AssistResult struct {
	Summary   string   `json:"summary"`
	Suggested []string `json:"suggested"`
	Tags      []string `json:"tags"`
}

// Service coordinates the store, the index and the assistant.
type Service struct {
	store     *workspace.Store
	index     index.PageIndex
	assistant assist.Assistant
	logger    *slog.Logger
}

// NewService creates a new page service.
func NewService(store *workspace.Store, idx index.PageIndex, assistant assist.Assistant, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, index: idx, assistant: assistant, logger: logger}
}

// Store returns the workspace store the service operates on.
func (s *Service) Store() *workspace.Store {
	return s.store
}

// GetPage returns page id with its ordered blocks and backlinks.
func (s *Service) GetPage(_ context.Context, id string) (*PageDetail, error) {
	ws := s.store.Snapshot()
	page, ok := ws.Pages[id]
	if !ok {
		return nil, apperr.NotFound("page", id)
	}
	backlinks, err := s.index.Backlinks(id)
	if err != nil {
		s.logger.Warn("pageservice: backlinks failed", slog.String("page_id", id), slog.String("error", err.Error()))
	}
	return &PageDetail{
		Page:      page,
		Blocks:    ws.PageBlocks(id),
		Backlinks: nonNilSlice(backlinks),
	}, nil
}

// ListPages returns the pages of category (all pages when empty) in creation
// order.
func (s *Service) ListPages(_ context.Context, category models.Category) []models.Page {
	return s.store.Snapshot().PagesIn(category)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.index.Search(query, limit)
	return nonNilSlice(res), err
}

// Graph returns all page nodes and resolved wikilinks for the knowledge graph.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.index.Graph()
}

// Backlinks returns the ids of pages linking to page id.
func (s *Service) Backlinks(_ context.Context, id string) ([]string, error) {
	if _, ok := s.store.Page(id); !ok {
		return nil, apperr.NotFound("page", id)
	}
	links, err := s.index.Backlinks(id)
	return nonNilSlice(links), err
}

// Markdown renders page id as a Markdown document.
func (s *Service) Markdown(_ context.Context, id string) ([]byte, error) {
	ws := s.store.Snapshot()
	page, ok := ws.Pages[id]
	if !ok {
		return nil, apperr.NotFound("page", id)
	}
	return parser.Render(page, ws.PageBlocks(id)), nil
}

// Import creates a page from a Markdown document. The document's category
// wins over fallback; an empty result defaults to Projects.
func (s *Service) Import(_ context.Context, data []byte, fallback models.Category) (string, error) {
	draft, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	category := draft.Category
	if category == "" {
		category = fallback
	}
	if category == "" {
		category = models.CategoryProjects
	}
	id := s.store.ImportPage(models.Page{
		Title:    draft.Title,
		Emoji:    draft.Emoji,
		Category: category,
		Tags:     draft.Tags,
	}, draft.Blocks)
	s.logger.Info("pageservice: imported page",
		slog.String("page_id", id),
		slog.Int("blocks", len(draft.Blocks)))
	return id, nil
}

// Assist summarizes page id and merges suggested tags into it. Both
// assistant calls run concurrently and neither cancels the other; failures
// degrade to a neutral summary and no suggestions. The store is not locked
// while the calls are in flight.
func (s *Service) Assist(ctx context.Context, id string) (*AssistResult, error) {
	ws := s.store.Snapshot()
	if _, ok := ws.Pages[id]; !ok {
		return nil, apperr.NotFound("page", id)
	}
	text := ws.PageText(id)

	var (
		summary   string
		suggested []string
		g         errgroup.Group
	)
	g.Go(func() error {
		summary = s.summarize(ctx, id, text)
		return nil
	})
	g.Go(func() error {
		suggested = s.suggestTags(ctx, id, text)
		return nil
	})
	_ = g.Wait()

	// Without suggestions the page is left untouched.
	if len(suggested) == 0 {
		page, ok := s.store.Page(id)
		if !ok {
			return nil, apperr.NotFound("page", id)
		}
		return &AssistResult{Summary: summary, Suggested: suggested, Tags: nonNilSlice(slices.Clone(page.Tags))}, nil
	}
	tags, err := s.store.MergePageTags(id, suggested)
	if err != nil {
		return nil, err
	}
	return &AssistResult{Summary: summary, Suggested: suggested, Tags: tags}, nil
}

func (s *Service) summarize(ctx context.Context, id, text string) string {
	summary, err := s.assistant.Summarize(ctx, text)
	switch {
	case errors.Is(err, apperr.ErrMissingCredential):
		return SummaryMissingKey
	case err != nil:
		s.logger.Warn("pageservice: summarize failed", slog.String("page_id", id), slog.String("error", err.Error()))
		return SummaryFailed
	case summary == "":
		return SummaryEmpty
	}
	return summary
}

func (s *Service) suggestTags(ctx context.Context, id, text string) []string {
	tags, err := s.assistant.SuggestTags(ctx, text)
	if err != nil {
		if !errors.Is(err, apperr.ErrMissingCredential) {
			s.logger.Warn("pageservice: suggest tags failed", slog.String("page_id", id), slog.String("error", err.Error()))
		}
		return []string{}
	}
	return nonNilSlice(tags)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
