package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/edrak/internal/pageservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events behind the same auth.
// When it can also publish events, assist results are announced on it.
// dataDir is the directory that holds the attachments folder.
func NewRouter(svc *pageservice.Service, authEnabled bool, token string, sseHandler http.Handler, dataDir string) chi.Router {
	h := NewHandler(svc)
	if n, ok := sseHandler.(notifier); ok {
		h.notify = n
	}
	ah := NewAttachmentHandler(dataDir)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/workspace", h.GetWorkspace)
	r.Put("/active", h.SetActive)

	r.Route("/pages", func(r chi.Router) {
		r.Get("/", h.ListPages)
		r.Post("/", h.CreatePage)
		r.Post("/import", h.ImportPage)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPage)
			r.Patch("/", h.UpdatePage)
			r.Delete("/", h.DeletePage)
			r.Get("/markdown", h.PageMarkdown)
			r.Get("/backlinks", h.Backlinks)
			r.Post("/assist", h.AssistPage)
			r.Post("/blocks", h.AddBlock)
			r.Delete("/blocks/{blockID}", h.DeleteBlock)
		})
	})
	r.Patch("/blocks/{id}", h.UpdateBlock)

	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	r.Post("/attachments", ah.Upload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
