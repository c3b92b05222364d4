// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Edrak pages to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/edrak/internal/apperr"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/pageservice"
)

// Server wraps the MCP server with Edrak tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *pageservice.Service
	dataDir string
	logger  *slog.Logger
}

func categoryNames() []string {
	out := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = string(c)
	}
	return out
}

func blockTypeNames() []string {
	out := make([]string, len(models.BlockTypes))
	for i, t := range models.BlockTypes {
		out[i] = string(t)
	}
	return out
}

// New creates a new MCP server with all tools registered. Images added
// through add_image are written under dataDir/attachments.
func New(svc *pageservice.Service, dataDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, dataDir: dataDir, logger: logger}

	s.mcp = server.NewMCPServer(
		"Edrak",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List pages as id, emoji and title, optionally limited to one PARA category."),
		mcp.WithString("category", mcp.Enum(categoryNames()...), mcp.Description("Optional category filter")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read a page as Markdown with YAML frontmatter. See the edrak://page-format resource."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("create_page",
		mcp.WithDescription("Create an empty page and make it the active page. Returns the new page id."),
		mcp.WithString("category", mcp.Required(), mcp.Enum(categoryNames()...)),
		mcp.WithString("title", mcp.Description("Optional title")),
		mcp.WithString("emoji", mcp.Description("Optional emoji icon")),
	), s.createPage)

	s.mcp.AddTool(mcp.NewTool("import_page",
		mcp.WithDescription("Create a page from Markdown. Content MUST follow the Edrak page format "+
			"(read the edrak://page-format resource first). Returns the new page id."),
		mcp.WithString("markdown", mcp.Required(), mcp.Description("Markdown document")),
		mcp.WithString("category", mcp.Enum(categoryNames()...), mcp.Description("Used when the frontmatter has no valid category")),
	), s.importPage)

	s.mcp.AddTool(mcp.NewTool("delete_page",
		mcp.WithDescription("Delete a page and all of its blocks."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id")),
	), s.deletePage)

	s.mcp.AddTool(mcp.NewTool("add_block",
		mcp.WithDescription("Insert a block into a page, directly after another block or at the end."),
		mcp.WithString("page_id", mcp.Required()),
		mcp.WithString("type", mcp.Required(), mcp.Enum(blockTypeNames()...)),
		mcp.WithString("after", mcp.Description("Id of the block to insert after; omit to append")),
		mcp.WithString("content", mcp.Description("Initial text")),
	), s.addBlock)

	s.mcp.AddTool(mcp.NewTool("update_block",
		mcp.WithDescription("Change a block's text, type or properties. Omitted fields are left as they are."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Block id")),
		mcp.WithString("content"),
		mcp.WithString("type", mcp.Enum(blockTypeNames()...)),
		mcp.WithBoolean("checked", mcp.Description("Todo state")),
		mcp.WithString("language", mcp.Description("Code block language")),
		mcp.WithString("url", mcp.Description("Image block URL")),
	), s.updateBlock)

	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("Remove a block from a page. Removing an absent block succeeds."),
		mcp.WithString("page_id", mcp.Required()),
		mcp.WithString("block_id", mcp.Required()),
	), s.deleteBlock)

	s.mcp.AddTool(mcp.NewTool("search_pages",
		mcp.WithDescription("Full-text search through page titles, block text and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchPages)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List the ids of pages that link to the given page with [[title]]."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("assist_page",
		mcp.WithDescription("Summarize a page with the configured AI model and merge suggested tags into it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Page id")),
	), s.assistPage)

	s.mcp.AddTool(mcp.NewTool("add_image",
		mcp.WithDescription("Store an image from an http(s) URL or base64 data URI and append an image block to a page."),
		mcp.WithString("page_id", mcp.Required()),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,...")),
		mcp.WithString("caption", mcp.Description("Optional caption")),
		mcp.WithString("after", mcp.Description("Id of the block to insert after; omit to append")),
	), s.addImage)

	s.mcp.AddResource(
		mcp.NewResource(PageFormatURI, "Page Format",
			mcp.WithResourceDescription("Markdown dialect used by read_page and import_page."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPageFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError turns a domain error into a tool result. Not-found and invalid
// input are reported to the caller; anything else is logged as well.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if !errors.Is(err, apperr.ErrNotFound) && !errors.Is(err, apperr.ErrInvalid) {
		s.logger.Error("mcp tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	}
	return mcp.NewToolResultError(err.Error())
}

func parseCategory(raw string) (models.Category, error) {
	c := models.Category(raw)
	if raw != "" && !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", apperr.ErrInvalid, raw)
	}
	return c, nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := parseCategory(req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages := s.svc.ListPages(ctx, category)
	if len(pages) == 0 {
		return mcp.NewToolResultText("no pages"), nil
	}
	lines := make([]string, len(pages))
	for i, p := range pages {
		lines[i] = fmt.Sprintf("%s\t%s %s\t[%s]", p.ID, p.Emoji, p.Title, p.Category)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	md, err := s.svc.Markdown(ctx, id)
	if err != nil {
		return s.toolError("read_page", err), nil
	}
	return mcp.NewToolResultText(string(md)), nil
}

func (s *Server) createPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := parseCategory(raw)
	if err != nil || category == "" {
		return mcp.NewToolResultErrorf("unknown category %q", raw), nil
	}

	id := s.svc.Store().ImportPage(models.Page{
		Title:    req.GetString("title", ""),
		Emoji:    req.GetString("emoji", ""),
		Category: category,
	}, nil)
	return mcp.NewToolResultText(id), nil
}

func (s *Server) importPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	markdown, err := req.RequireString("markdown")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := parseCategory(req.GetString("category", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.svc.Import(ctx, []byte(markdown), category)
	if err != nil {
		return s.toolError("import_page", err), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) deletePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Store().DeletePage(id); err != nil {
		return s.toolError("delete_page", err), nil
	}
	return mcp.NewToolResultText("deleted: " + id), nil
}

func (s *Server) addBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	typ := models.BlockType(raw)
	if !typ.Valid() {
		return mcp.NewToolResultErrorf("unknown block type %q", raw), nil
	}

	store := s.svc.Store()
	id, err := store.AddBlock(pageID, typ, req.GetString("after", ""))
	if err != nil {
		return s.toolError("add_block", err), nil
	}
	if content := req.GetString("content", ""); content != "" {
		if err := store.UpdateBlock(id, models.BlockPatch{Content: &content}); err != nil {
			return s.toolError("add_block", err), nil
		}
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) updateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	has := func(key string) bool {
		_, ok := args[key]
		return ok
	}

	var patch models.BlockPatch
	if has("content") {
		patch.Content = models.Ptr(req.GetString("content", ""))
	}
	if has("type") {
		typ := models.BlockType(req.GetString("type", ""))
		if !typ.Valid() {
			return mcp.NewToolResultErrorf("unknown block type %q", typ), nil
		}
		patch.Type = &typ
	}
	var props models.BlockProps
	if has("checked") {
		props.Checked = models.Ptr(req.GetBool("checked", false))
	}
	if has("language") {
		props.Language = models.Ptr(req.GetString("language", ""))
	}
	if has("url") {
		props.URL = models.Ptr(req.GetString("url", ""))
	}
	if props != (models.BlockProps{}) {
		patch.Props = &props
	}

	if err := s.svc.Store().UpdateBlock(id, patch); err != nil {
		return s.toolError("update_block", err), nil
	}
	b, _ := s.svc.Store().Block(id)
	out, _ := json.MarshalIndent(b, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) deleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	blockID, err := req.RequireString("block_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Store().DeleteBlock(pageID, blockID); err != nil {
		return s.toolError("delete_block", err), nil
	}
	return mcp.NewToolResultText("deleted: " + blockID), nil
}

func (s *Server) searchPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return s.toolError("search_pages", err), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.svc.Backlinks(ctx, id)
	if err != nil {
		return s.toolError("get_backlinks", err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) assistPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.Assist(ctx, id)
	if err != nil {
		return s.toolError("assist_page", err), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readPageFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PageFormatURI,
			MIMEType: "text/markdown",
			Text:     PageFormatContract,
		},
	}, nil
}
