// Package tools implements the tool-serving layer: the only boundary the
// agent loop and the web UI may call. Every operation returns a
// JSON-serializable payload — errors are data, never panics or Go errors
// crossing the boundary.
package tools

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/sagekb/sage/internal/extract"
	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/models"
	"github.com/sagekb/sage/internal/workspace"
)

const (
	// maxReadChars caps content returned by Read.
	maxReadChars = 8000

	readTruncationMarker = "\n…[truncated — specify page for more]"

	// Snippet highlight delimiters for tool consumers. The web boundary
	// requests HTML tags instead.
	snippetOpen  = "«"
	snippetClose = "»"
)

// Hit is one search result in a tool payload.
type Hit struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// Service serves the fixed tool set over one indexed workspace. The card
// list is fixed at construction (the upfront indexing pass) and never
// mutated by tool calls.
type Service struct {
	ws    *workspace.Workspace
	db    *index.DB
	cards []models.Card
}

// NewService creates the tool service over an already-indexed workspace.
func NewService(ws *workspace.Workspace, db *index.DB, cards []models.Card) *Service {
	return &Service{ws: ws, db: db, cards: cards}
}

// Cards returns the indexed card sequence (input to the system-prompt builder).
func (s *Service) Cards() []models.Card { return s.cards }

// List returns all indexed cards, optionally filtered by a case-insensitive
// substring match over each card's topics.
func (s *Service) List(topic string) []byte {
	cards := s.cards
	if topic != "" {
		cards = nil
		for _, c := range s.cards {
			if c.HasTopic(topic) {
				cards = append(cards, c)
			}
		}
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return payload(map[string]any{"documents": cards})
}

// Read returns document content. With a page argument on a PDF it returns
// exactly that 0-indexed page; otherwise the indexed body, falling back to
// on-demand extraction. Content beyond the cap is truncated with a marker.
func (s *Service) Read(path string, page *int) []byte {
	abs, err := s.ws.Abs(path)
	if err != nil || !s.ws.Exists(path) {
		return errPayload("Not found: " + path)
	}

	var content string
	switch {
	case page != nil && extract.IsPDF(path):
		count, err := extract.PageCount(abs)
		if err != nil {
			return errPayload(fmt.Sprintf("Cannot read %s as a PDF", path))
		}
		if *page < 0 || *page >= count {
			return errPayload(fmt.Sprintf("Page %d out of range (document has %d pages)", *page, count))
		}
		content, err = extract.Page(abs, *page)
		if err != nil {
			return errPayload(fmt.Sprintf("Cannot read page %d of %s", *page, path))
		}
	default:
		body, ok, err := s.db.Body(path)
		if err == nil && ok {
			content = body
		} else {
			content, err = extract.Text(abs)
			if err != nil {
				return errPayload("Not found: " + path)
			}
		}
	}

	if len(content) > maxReadChars {
		content = truncateAtRune(content, maxReadChars) + readTruncationMarker
	}
	return payload(map[string]any{"path": path, "content": content})
}

// truncateAtRune cuts s at max bytes, backing up so a multibyte character is
// never split mid-sequence. Assumes len(s) > max.
func truncateAtRune(s string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Search runs a ranked full-text query. A query the backend rejects yields a
// structured error result with empty results, never a raised error.
func (s *Service) Search(query string, maxResults int) []byte {
	if maxResults <= 0 {
		maxResults = 5
	}
	hits, err := s.db.Search(query, maxResults, snippetOpen, snippetClose)
	if err != nil {
		msg := "search failed"
		if index.IsQuerySyntaxErr(err) {
			msg = "invalid query syntax"
		}
		return payload(map[string]any{"query": query, "results": []Hit{}, "error": msg})
	}

	results := make([]Hit, 0, len(hits))
	for _, h := range hits {
		results = append(results, Hit{Path: h.Path, Snippet: h.Snippet})
	}
	return payload(map[string]any{"query": query, "results": results})
}

// WriteNote creates or overwrites a note in the notes area. Notes are not
// cached or card-indexed; the watcher folds them into search scope.
func (s *Service) WriteNote(path, content string) []byte {
	if err := s.ws.WriteNote(path, []byte(content)); err != nil {
		return errPayload("Cannot write note: " + path)
	}
	return payload(map[string]any{"path": path, "written": true})
}

// ReadNote returns a note's content; a missing note is an error result.
func (s *Service) ReadNote(path string) []byte {
	data, err := s.ws.ReadNote(path)
	if err != nil {
		return errPayload("Not found: " + path)
	}
	return payload(map[string]any{"path": path, "content": string(data)})
}

// ListNotes returns all note names, alphabetically.
func (s *Service) ListNotes() []byte {
	notes := s.ws.ListNotes()
	if notes == nil {
		notes = []string{}
	}
	return payload(map[string]any{"notes": notes})
}

func payload(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal: encode result"}`)
	}
	return data
}

func errPayload(msg string) []byte {
	return payload(map[string]string{"error": msg})
}
