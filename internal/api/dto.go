package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/edrak/internal/index"
	"github.com/starford/edrak/internal/models"
	"github.com/starford/edrak/internal/pageservice"
)

func categoryValues() []any {
	out := make([]any, len(models.Categories))
	for i, c := range models.Categories {
		out[i] = c
	}
	return out
}

func blockTypeValues() []any {
	out := make([]any, len(models.BlockTypes))
	for i, t := range models.BlockTypes {
		out[i] = t
	}
	return out
}

// CreatePageRequest is the request body for creating a page.
type CreatePageRequest struct {
	Category models.Category `json:"category" example:"Projects" validate:"required"`
}

// Validate validates the request.
func (r *CreatePageRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Category, validation.Required, validation.In(categoryValues()...)),
	)
}

// ImportPageRequest is the request body for importing a Markdown document.
type ImportPageRequest struct {
	Markdown string          `json:"markdown" example:"# Hello\nWorld" validate:"required"`
	Category models.Category `json:"category,omitempty" example:"Resources"`
}

// Validate validates the request.
func (r *ImportPageRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Markdown, validation.Required),
		validation.Field(&r.Category, validation.In(categoryValues()...)),
	)
}

// UpdatePageRequest carries the page fields to change. Absent fields are
// left as they are.
type UpdatePageRequest struct {
	models.PagePatch
}

// Validate validates the request.
func (r *UpdatePageRequest) Validate() error {
	return validation.ValidateStruct(&r.PagePatch,
		validation.Field(&r.Category, validation.NilOrNotEmpty, validation.In(categoryValues()...)),
		validation.Field(&r.Tags, validation.By(func(v any) error {
			tags, _ := v.(*[]string)
			if tags == nil {
				return nil
			}
			return validation.Validate(*tags, validation.Each(validation.Required))
		})),
	)
}

// AddBlockRequest is the request body for inserting a block.
type AddBlockRequest struct {
	Type  models.BlockType `json:"type" example:"text" validate:"required"`
	After string           `json:"after,omitempty" example:"welcome-1"`
}

// Validate validates the request.
func (r *AddBlockRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.In(blockTypeValues()...)),
	)
}

// UpdateBlockRequest carries the block fields to change. Props merge field
// by field.
type UpdateBlockRequest struct {
	models.BlockPatch
}

// Validate validates the request.
func (r *UpdateBlockRequest) Validate() error {
	return validation.ValidateStruct(&r.BlockPatch,
		validation.Field(&r.Type, validation.NilOrNotEmpty, validation.In(blockTypeValues()...)),
	)
}

// SetActiveRequest selects the active page; a null id clears it.
type SetActiveRequest struct {
	ID *string `json:"id" example:"p1"`
}

// PageDetail is the page response type (aliased from the domain layer).
type PageDetail = pageservice.PageDetail

// AssistResponse is returned by the assist endpoint.
type AssistResponse = pageservice.AssistResult

// PageListResponse wraps page listings.
type PageListResponse struct {
	Pages []models.Page `json:"pages" validate:"required"`
}

// AddBlockResponse is returned after a block is inserted.
type AddBlockResponse struct {
	ID    string       `json:"id" example:"3f2b..." validate:"required"`
	Block models.Block `json:"block" validate:"required"`
}

// ActiveResponse reports the active page pointer.
type ActiveResponse struct {
	ActivePageID *string `json:"activePageId"`
}

// BacklinksResponse lists the pages linking to a page.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []index.GraphNode `json:"nodes" validate:"required"`
	Links []index.GraphLink `json:"links" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"3f2b.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/attachments/3f2b.png" validate:"required"`
}
