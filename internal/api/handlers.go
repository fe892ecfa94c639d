package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/tools"
)

// Snippet delimiters for web consumers; the viewer renders them as markup.
const (
	webSnippetOpen  = "<b>"
	webSnippetClose = "</b>"
)

// Handler holds API route handlers. Reads go through the tool service so
// both boundaries serve identical payloads; search talks to the index
// directly because the web boundary highlights with HTML tags.
type Handler struct {
	svc *tools.Service
	db  *index.DB
}

// NewHandler creates a new Handler.
func NewHandler(svc *tools.Service, db *index.DB) *Handler {
	return &Handler{svc: svc, db: db}
}

// docPath extracts the document path from the URL (everything after
// /documents/). Supports encoded slashes (e.g. notes%2Fa.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// serveToolPayload re-serves a tool payload, mapping its error field to an
// HTTP status. "Not found" errors map to 404, everything else to 400.
func serveToolPayload(w http.ResponseWriter, payload []byte) {
	var probe struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.Error == "" {
		writeRaw(w, http.StatusOK, payload)
		return
	}
	status := http.StatusBadRequest
	if strings.HasPrefix(probe.Error, "Not found") {
		status = http.StatusNotFound
	}
	writeRaw(w, status, payload)
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	serveToolPayload(w, h.svc.List(topic))
}

// GetDocument handles GET /api/documents/*.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var page *int
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("page must be a number"))
			return
		}
		page = &n
	}
	serveToolPayload(w, h.svc.Read(path, page))
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 5
	}

	hits, err := h.db.Search(q, limit, webSnippetOpen, webSnippetClose)
	if err != nil {
		if index.IsQuerySyntaxErr(err) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"query": q, "results": []tools.Hit{}, "error": "invalid query syntax",
			})
			return
		}
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	results := make([]tools.Hit, 0, len(hits))
	for _, hit := range hits {
		results = append(results, tools.Hit{Path: hit.Path, Snippet: hit.Snippet})
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "results": results})
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	serveToolPayload(w, h.svc.ListNotes())
}

// GetNote handles GET /api/notes/{name}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	decoded, err := url.PathUnescape(name)
	if err == nil {
		name = decoded
	}
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	serveToolPayload(w, h.svc.ReadNote(name))
}
