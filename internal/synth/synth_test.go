package synth

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sagekb/sage/internal/models"
)

// stubCompleter returns a canned response and records the last user prompt.
type stubCompleter struct {
	response string
	lastUser string
	calls    int
}

func (s *stubCompleter) Complete(_ context.Context, _, user string) (string, error) {
	s.calls++
	s.lastUser = user
	return s.response, nil
}

func cardJSON(t *testing.T) string {
	t.Helper()
	data, err := json.Marshal(models.Card{
		Title:   "Test Doc",
		Type:    "paper",
		Topics:  []string{"volatility"},
		Summary: "A test.",
		Sections: []models.Section{
			{Loc: "p1-2", Desc: "intro"},
		},
		KeyTerms:      []string{"volatility"},
		Prerequisites: []string{"calculus"},
		KeyResults:    []string{"BS formula"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSynthesize_ParsesJSON(t *testing.T) {
	stub := &stubCompleter{response: cardJSON(t)}
	card, err := New(stub).Synthesize(context.Background(), "some content", "doc.txt")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if card.Title != "Test Doc" {
		t.Errorf("title = %q", card.Title)
	}
	if len(card.KeyTerms) != 1 || card.KeyTerms[0] != "volatility" {
		t.Errorf("key_terms = %v", card.KeyTerms)
	}
	if stub.calls != 1 {
		t.Errorf("calls = %d, want exactly one request", stub.calls)
	}
}

func TestSynthesize_StripsCodeFences(t *testing.T) {
	plain := cardJSON(t)
	for name, fenced := range map[string]string{
		"tagged":   "```json\n" + plain + "\n```",
		"untagged": "```\n" + plain + "\n```",
	} {
		stub := &stubCompleter{response: fenced}
		card, err := New(stub).Synthesize(context.Background(), "content", "doc.txt")
		if err != nil {
			t.Fatalf("%s fence: %v", name, err)
		}
		if card.Title != "Test Doc" {
			t.Errorf("%s fence: title = %q", name, card.Title)
		}
	}
}

func TestSynthesize_TruncatesInput(t *testing.T) {
	stub := &stubCompleter{response: cardJSON(t)}
	long := strings.Repeat("a", 20000)
	if _, err := New(stub).Synthesize(context.Background(), long, "doc.txt"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stub.lastUser, "…[truncated]") {
		t.Error("expected truncation marker in prompt")
	}
	// Prompt = "path: doc.txt\n\n" + 15000 chars + marker.
	wantLen := len("path: doc.txt\n\n") + 15000 + len(truncationMarker)
	if len(stub.lastUser) != wantLen {
		t.Errorf("prompt length = %d, want %d", len(stub.lastUser), wantLen)
	}
}

func TestSynthesize_TruncationKeepsRunesIntact(t *testing.T) {
	stub := &stubCompleter{response: cardJSON(t)}
	// One ASCII byte up front misaligns the 3-byte runes with the cap.
	long := "a" + strings.Repeat("€", maxInputChars/3+100)
	if _, err := New(stub).Synthesize(context.Background(), long, "doc.txt"); err != nil {
		t.Fatal(err)
	}
	if !utf8.ValidString(stub.lastUser) {
		t.Error("truncation split a multibyte character")
	}
	body := strings.TrimSuffix(strings.TrimPrefix(stub.lastUser, "path: doc.txt\n\n"), truncationMarker)
	// 14998 is the last rune boundary at or below the cap for this input.
	if len(body) != maxInputChars-2 {
		t.Errorf("truncated length = %d, want %d", len(body), maxInputChars-2)
	}
}

func TestSynthesize_ShortInputUntouched(t *testing.T) {
	stub := &stubCompleter{response: cardJSON(t)}
	if _, err := New(stub).Synthesize(context.Background(), "short", "doc.txt"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(stub.lastUser, "truncated") {
		t.Error("short input must not be marked truncated")
	}
}

func TestSynthesize_DecodeFailure(t *testing.T) {
	stub := &stubCompleter{response: "I am sorry, I cannot produce JSON."}
	if _, err := New(stub).Synthesize(context.Background(), "content", "doc.txt"); err == nil {
		t.Error("non-JSON response must be a synthesis failure")
	}
}

func TestSynthesize_SchemaViolation(t *testing.T) {
	stub := &stubCompleter{response: `{"title":"","type":"paper"}`}
	if _, err := New(stub).Synthesize(context.Background(), "content", "doc.txt"); err == nil {
		t.Error("schema-violating response must be a synthesis failure")
	}
}
