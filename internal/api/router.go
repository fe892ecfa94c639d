package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/tools"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *tools.Service, db *index.DB, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)

	r.Get("/search", h.Search)

	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{name}", h.GetNote)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
