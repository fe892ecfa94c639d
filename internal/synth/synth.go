// Package synth derives structured cards from raw document text via a
// metadata-extraction collaborator.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sagekb/sage/internal/models"
)

const (
	// maxInputChars caps the content sample sent per document.
	maxInputChars = 15000

	truncationMarker = "\n…[truncated]"
)

// cardPrompt is the fixed instruction template for the metadata-extraction
// request. It mandates page ranges for PDF locations and heading names for
// markdown, and forbids prose and code fences in the response.
const cardPrompt = `Extract metadata from this document for an AI tutor. Return JSON only — no prose, no fences:
{"title": "...", "type": "paper|chapter|notes|article|other", "topics": ["3-6 key concepts"],
 "summary": "1-2 sentences", "sections": [{"loc": "page or heading", "desc": "what it covers"}],
 "key_terms": ["important terms/definitions introduced"],
 "prerequisites": ["concepts the reader should already know"],
 "key_results": ["main theorems, equations, or conclusions"]}
For PDFs use page numbers (e.g. "p3-5"). For markdown use heading names.
`

// Completer is the opaque LLM collaborator: one prompt in, one text
// completion out. Retry and timeout policy belong to the implementation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Synthesizer turns document text into validated cards.
type Synthesizer struct {
	llm Completer
}

// New creates a synthesizer on the given collaborator.
func New(llm Completer) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize issues exactly one metadata-extraction request for the document
// and parses the response into a card. Input beyond the cap is cut with a
// truncation marker. The response may arrive wrapped in a markdown code
// fence; anything that still fails to decode or validate after stripping is
// a synthesis failure for the caller to log and skip.
func (s *Synthesizer) Synthesize(ctx context.Context, text, name string) (*models.Card, error) {
	if len(text) > maxInputChars {
		text = truncateAtRune(text, maxInputChars) + truncationMarker
	}

	raw, err := s.llm.Complete(ctx, cardPrompt, "path: "+name+"\n\n"+text)
	if err != nil {
		return nil, fmt.Errorf("synth: extract metadata for %s: %w", name, err)
	}

	var card models.Card
	if err := json.Unmarshal([]byte(stripFence(strings.TrimSpace(raw))), &card); err != nil {
		return nil, fmt.Errorf("synth: decode card for %s: %w", name, err)
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("synth: invalid card for %s: %w", name, err)
	}
	return &card, nil
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

// stripFence removes one leading/trailing triple-backtick fence, including
// an optional language tag on the opening line.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if _, rest, ok := strings.Cut(s, "\n"); ok {
		s = rest
	}
	return strings.TrimSpace(strings.TrimRight(s, "`"))
}
