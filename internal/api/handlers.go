package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/index"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/pageservice"
	"github.com/starford/edrak/internal/sse"
)

type notifier interface {
	Publish(sse.Event)
}

// Handler holds API route handlers.
type Handler struct {
	svc    *pageservice.Service
	notify notifier
}

// NewHandler creates a new Handler.
func NewHandler(svc *pageservice.Service) *Handler {
	return &Handler{svc: svc}
}

// GetWorkspace handles GET /api/workspace.
//
//	@Summary		Get the full workspace snapshot
//	@Tags			workspace
//	@Produce		json
//	@Success		200	{object}	models.Workspace
//	@Security		BearerAuth
//	@Router			/workspace [get]
func (h *Handler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().Snapshot())
}

// ListPages handles GET /api/pages.
//
//	@Summary		List pages, optionally filtered by category
//	@Tags			pages
//	@Produce		json
//	@Param			category	query		string	false	"PARA category"	Enums(Projects, Areas, Resources, Archives)
//	@Success		200			{object}	PageListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages [get]
func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	category := models.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown category"))
		return
	}
	writeJSON(w, http.StatusOK, PageListResponse{Pages: h.svc.ListPages(r.Context(), category)})
}

// CreatePage handles POST /api/pages.
//
//	@Summary		Create an empty page in a category
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePageRequest	true	"Page to create"
//	@Success		201		{object}	PageDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages [post]
func (h *Handler) CreatePage(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "create page")
		return
	}
	id := h.svc.Store().AddPage(req.Category)
	h.writePage(w, r, http.StatusCreated, id)
}

// ImportPage handles POST /api/pages/import. The body is either an
// ImportPageRequest or a raw text/markdown document with the fallback
// category in the query string.
//
//	@Summary		Create a page from a Markdown document
//	@Tags			pages
//	@Accept			json,text/markdown
//	@Produce		json
//	@Param			category	query		string				false	"Fallback category for raw bodies"
//	@Param			body		body		ImportPageRequest	true	"Markdown source"
//	@Success		201			{object}	PageDetail
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/import [post]
func (h *Handler) ImportPage(w http.ResponseWriter, r *http.Request) {
	var req ImportPageRequest
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/") {
		data, err := readAll(w, r)
		if err != nil {
			writeError(w, err, "import page")
			return
		}
		req = ImportPageRequest{Markdown: string(data), Category: models.Category(r.URL.Query().Get("category"))}
		if err := req.Validate(); err != nil {
			writeError(w, fmt.Errorf("%w: %w", apperr.ErrInvalid, err), "import page")
			return
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "import page")
		return
	}
	id, err := h.svc.Import(r.Context(), []byte(req.Markdown), req.Category)
	if err != nil {
		writeError(w, err, "import page")
		return
	}
	h.writePage(w, r, http.StatusCreated, id)
}

// GetPage handles GET /api/pages/{id}.
//
//	@Summary		Get a page with its ordered blocks and backlinks
//	@Tags			pages
//	@Produce		json
//	@Param			id	path		string	true	"Page id"
//	@Success		200	{object}	PageDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id} [get]
func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	h.writePage(w, r, http.StatusOK, chi.URLParam(r, "id"))
}

// UpdatePage handles PATCH /api/pages/{id}.
//
//	@Summary		Update page metadata
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Page id"
//	@Param			body	body		UpdatePageRequest	true	"Fields to change"
//	@Success		200		{object}	PageDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id} [patch]
func (h *Handler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "update page")
		return
	}
	if err := h.svc.Store().UpdatePage(id, req.PagePatch); err != nil {
		writeError(w, err, "update page", slog.String("id", id))
		return
	}
	h.writePage(w, r, http.StatusOK, id)
}

// DeletePage handles DELETE /api/pages/{id}.
//
//	@Summary		Delete a page and its blocks
//	@Tags			pages
//	@Param			id	path	string	true	"Page id"
//	@Success		204	"Page deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id} [delete]
func (h *Handler) DeletePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Store().DeletePage(id); err != nil {
		writeError(w, err, "delete page", slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PageMarkdown handles GET /api/pages/{id}/markdown.
//
//	@Summary		Export a page as Markdown with YAML frontmatter
//	@Tags			pages
//	@Produce		text/markdown
//	@Param			id	path		string	true	"Page id"
//	@Success		200	{string}	string
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id}/markdown [get]
func (h *Handler) PageMarkdown(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	md, err := h.svc.Markdown(r.Context(), id)
	if err != nil {
		writeError(w, err, "export page", slog.String("id", id))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(md)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(md)
}

// AssistPage handles POST /api/pages/{id}/assist.
//
//	@Summary		Summarize a page and merge AI-suggested tags
//	@Tags			assist
//	@Produce		json
//	@Param			id	path		string	true	"Page id"
//	@Success		200	{object}	AssistResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id}/assist [post]
func (h *Handler) AssistPage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.svc.Assist(r.Context(), id)
	if err != nil {
		writeError(w, err, "assist page", slog.String("id", id))
		return
	}
	if h.notify != nil {
		h.notify.Publish(sse.Event{Type: sse.EventAssistCompleted, Data: map[string]string{"pageId": id}})
	}
	writeJSON(w, http.StatusOK, res)
}

// Backlinks handles GET /api/pages/{id}/backlinks.
//
//	@Summary		List pages linking to a page
//	@Tags			graph
//	@Produce		json
//	@Param			id	path		string	true	"Page id"
//	@Success		200	{object}	BacklinksResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id}/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	links, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, err, "backlinks", slog.String("id", id))
		return
	}
	if links == nil {
		links = []string{}
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: links})
}

// AddBlock handles POST /api/pages/{id}/blocks.
//
//	@Summary		Insert a block after an anchor, or at the end
//	@Tags			blocks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Page id"
//	@Param			body	body		AddBlockRequest	true	"Block to insert"
//	@Success		201		{object}	AddBlockResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id}/blocks [post]
func (h *Handler) AddBlock(w http.ResponseWriter, r *http.Request) {
	pageID := chi.URLParam(r, "id")
	var req AddBlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "add block")
		return
	}
	store := h.svc.Store()
	id, err := store.AddBlock(pageID, req.Type, req.After)
	if err != nil {
		writeError(w, err, "add block", slog.String("page", pageID))
		return
	}
	b, ok := store.Block(id)
	if !ok {
		// Deleted by a concurrent request between the two calls.
		writeError(w, apperr.NotFound("block", id), "add block")
		return
	}
	writeJSON(w, http.StatusCreated, AddBlockResponse{ID: id, Block: b})
}

// DeleteBlock handles DELETE /api/pages/{id}/blocks/{blockID}.
//
//	@Summary		Remove a block from a page
//	@Tags			blocks
//	@Param			id		path	string	true	"Page id"
//	@Param			blockID	path	string	true	"Block id"
//	@Success		204		"Block deleted or already absent"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pages/{id}/blocks/{blockID} [delete]
func (h *Handler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	pageID, blockID := chi.URLParam(r, "id"), chi.URLParam(r, "blockID")
	if err := h.svc.Store().DeleteBlock(pageID, blockID); err != nil {
		writeError(w, err, "delete block", slog.String("page", pageID), slog.String("block", blockID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateBlock handles PATCH /api/blocks/{id}.
//
//	@Summary		Update block content, type or props
//	@Tags			blocks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Block id"
//	@Param			body	body		UpdateBlockRequest	true	"Fields to change"
//	@Success		200		{object}	models.Block
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blocks/{id} [patch]
func (h *Handler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateBlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "update block")
		return
	}
	store := h.svc.Store()
	if err := store.UpdateBlock(id, req.BlockPatch); err != nil {
		writeError(w, err, "update block", slog.String("id", id))
		return
	}
	b, ok := store.Block(id)
	if !ok {
		writeError(w, apperr.NotFound("block", id), "update block")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// SetActive handles PUT /api/active.
//
//	@Summary		Select the page shown in the editor
//	@Tags			workspace
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SetActiveRequest	true	"Page id or null"
//	@Success		200		{object}	ActiveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/active [put]
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, "set active")
		return
	}
	store := h.svc.Store()
	store.SetActivePage(req.ID)
	writeJSON(w, http.StatusOK, ActiveResponse{ActivePageID: store.Snapshot().ActivePageID})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across pages
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the knowledge graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, err, "graph")
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

func (h *Handler) writePage(w http.ResponseWriter, r *http.Request, status int, id string) {
	detail, err := h.svc.GetPage(r.Context(), id)
	if err != nil {
		writeError(w, err, "get page", slog.String("id", id))
		return
	}
	writeJSON(w, status, detail)
}

func readAll(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body", apperr.ErrInvalid)
	}
	return data, nil
}
