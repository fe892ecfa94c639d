package tools

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sagekb/sage/internal/models"
	"github.com/sagekb/sage/internal/testutil"
	"github.com/sagekb/sage/internal/workspace"
)

func testService(t *testing.T) (*Service, *workspace.Workspace) {
	t.Helper()
	ws, _, db := testutil.TestWorkspace(t)

	docs := map[string]string{
		"vol.md":   "Local volatility models calibrate the smile surface directly.",
		"rates.md": "Short rate models describe the evolution of interest rates.",
	}
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(ws.Root(), name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := db.Insert(name, body); err != nil {
			t.Fatal(err)
		}
	}

	cards := []models.Card{
		{
			Path: "rates.md", Title: "Short Rate Models", Type: "notes",
			Topics: []string{"interest rates", "stochastic calculus"}, Summary: "Short rate dynamics.",
		},
		{
			Path: "vol.md", Title: "Local Volatility", Type: "notes",
			Topics: []string{"volatility", "calibration"}, Summary: "Dupire local volatility.",
		},
	}
	return NewService(ws, db, cards), ws
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("payload is not valid JSON: %v\n%s", err, raw)
	}
	return m
}

func TestList_All(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.List(""))
	docs, ok := got["documents"].([]any)
	if !ok {
		t.Fatalf("documents missing from %s", svc.List(""))
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
}

func TestList_TopicFilterCaseInsensitive(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.List("VOLAT"))
	docs := got["documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("expected 1 document for topic filter, got %d", len(docs))
	}
	doc := docs[0].(map[string]any)
	if doc["path"] != "vol.md" {
		t.Fatalf("expected vol.md, got %v", doc["path"])
	}
}

func TestList_NoMatchesYieldsEmptyList(t *testing.T) {
	svc, _ := testService(t)

	raw := svc.List("cooking")
	got := decode(t, raw)
	docs, ok := got["documents"].([]any)
	if !ok {
		t.Fatalf("documents must be a list even when empty: %s", raw)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
}

func TestRead_ReturnsIndexedBody(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.Read("vol.md", nil))
	content, _ := got["content"].(string)
	if !strings.Contains(content, "smile surface") {
		t.Fatalf("unexpected content: %q", content)
	}
	if got["path"] != "vol.md" {
		t.Fatalf("expected path vol.md, got %v", got["path"])
	}
}

func TestRead_FallsBackToExtraction(t *testing.T) {
	svc, ws := testService(t)

	// On disk but never indexed.
	if err := os.WriteFile(filepath.Join(ws.Root(), "fresh.txt"), []byte("fresh body"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := decode(t, svc.Read("fresh.txt", nil))
	if got["content"] != "fresh body" {
		t.Fatalf("expected extracted content, got %v", got["content"])
	}
}

func TestRead_TruncatesAtCap(t *testing.T) {
	svc, ws := testService(t)

	long := strings.Repeat("a", maxReadChars+500)
	if err := os.WriteFile(filepath.Join(ws.Root(), "long.txt"), []byte(long), 0o644); err != nil {
		t.Fatal(err)
	}

	got := decode(t, svc.Read("long.txt", nil))
	content := got["content"].(string)
	if !strings.HasSuffix(content, readTruncationMarker) {
		t.Fatalf("expected truncation marker, got tail %q", content[len(content)-50:])
	}
	if len(content) != maxReadChars+len(readTruncationMarker) {
		t.Fatalf("expected %d chars, got %d", maxReadChars+len(readTruncationMarker), len(content))
	}
}

func TestRead_TruncationKeepsRunesIntact(t *testing.T) {
	svc, ws := testService(t)

	// 3-byte runes: the cap lands mid-rune, so the cut backs up to 7998.
	long := strings.Repeat("€", maxReadChars/3+500)
	if err := os.WriteFile(filepath.Join(ws.Root(), "uni.txt"), []byte(long), 0o644); err != nil {
		t.Fatal(err)
	}

	got := decode(t, svc.Read("uni.txt", nil))
	content := got["content"].(string)
	body := strings.TrimSuffix(content, readTruncationMarker)
	if body == content {
		t.Fatal("expected truncation marker")
	}
	if !utf8.ValidString(body) {
		t.Fatal("truncation split a multibyte character")
	}
	if len(body) != maxReadChars-2 {
		t.Fatalf("truncated length = %d, want %d", len(body), maxReadChars-2)
	}
}

func TestRead_NotFound(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.Read("ghost.md", nil))
	if got["error"] != "Not found: ghost.md" {
		t.Fatalf("expected not-found error, got %v", got["error"])
	}
}

func TestRead_TraversalRejected(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.Read("../secret.txt", nil))
	if _, ok := got["error"]; !ok {
		t.Fatalf("expected error for traversal path, got %s", svc.Read("../secret.txt", nil))
	}
}

func TestRead_PageOnNonPDFIgnoresPage(t *testing.T) {
	svc, _ := testService(t)

	page := 3
	got := decode(t, svc.Read("vol.md", &page))
	if _, ok := got["error"]; ok {
		t.Fatalf("page argument on a non-PDF must not error: %v", got["error"])
	}
	if got["content"] == "" {
		t.Fatal("expected full content")
	}
}

func TestRead_PDFPageBounds(t *testing.T) {
	svc, ws := testService(t)
	testutil.MinimalPDF(t, filepath.Join(ws.Root(), "deep.pdf"), "spectral sequences")

	page := 0
	got := decode(t, svc.Read("deep.pdf", &page))
	if _, ok := got["error"]; ok {
		t.Fatalf("valid page must not error: %v", got["error"])
	}
	if !strings.Contains(got["content"].(string), "spectral sequences") {
		t.Fatalf("page content = %v", got["content"])
	}

	page = 3
	got = decode(t, svc.Read("deep.pdf", &page))
	if got["error"] != "Page 3 out of range (document has 1 pages)" {
		t.Fatalf("error = %v", got["error"])
	}

	page = -1
	got = decode(t, svc.Read("deep.pdf", &page))
	if got["error"] != "Page -1 out of range (document has 1 pages)" {
		t.Fatalf("error = %v", got["error"])
	}
}

func TestRead_PageOnUnreadablePDF(t *testing.T) {
	svc, ws := testService(t)

	if err := os.WriteFile(filepath.Join(ws.Root(), "fake.pdf"), []byte("not a pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	page := 0
	got := decode(t, svc.Read("fake.pdf", &page))
	if got["error"] != "Cannot read fake.pdf as a PDF" {
		t.Fatalf("error = %v", got["error"])
	}
}

func TestSearch_SingleHit(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.Search("local volatility", 5))
	results := got["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("expected exactly 1 result, got %d", len(results))
	}
	hit := results[0].(map[string]any)
	if hit["path"] != "vol.md" {
		t.Fatalf("expected vol.md, got %v", hit["path"])
	}
	if hit["snippet"] == "" {
		t.Fatal("expected a non-empty snippet")
	}
}

func TestSearch_NoMatches(t *testing.T) {
	svc, _ := testService(t)

	raw := svc.Search("zzzqqq", 5)
	got := decode(t, raw)
	results, ok := got["results"].([]any)
	if !ok {
		t.Fatalf("results must be a list even when empty: %s", raw)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if _, hasErr := got["error"]; hasErr {
		t.Fatal("empty result set is not an error")
	}
}

func TestWriteAndReadNote(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.WriteNote("ideas.md", "try HJM next"))
	if got["written"] != true {
		t.Fatalf("expected written=true, got %s", svc.WriteNote("ideas.md", "try HJM next"))
	}

	read := decode(t, svc.ReadNote("ideas.md"))
	if read["content"] != "try HJM next" {
		t.Fatalf("expected note content, got %v", read["content"])
	}
}

func TestReadNote_Missing(t *testing.T) {
	svc, _ := testService(t)

	got := decode(t, svc.ReadNote("nope.md"))
	if got["error"] != "Not found: nope.md" {
		t.Fatalf("expected not-found error, got %v", got["error"])
	}
}

func TestListNotes(t *testing.T) {
	svc, _ := testService(t)

	raw := svc.ListNotes()
	got := decode(t, raw)
	notes, ok := got["notes"].([]any)
	if !ok {
		t.Fatalf("notes must be a list even when empty: %s", raw)
	}
	if len(notes) != 0 {
		t.Fatalf("expected no notes yet, got %d", len(notes))
	}

	svc.WriteNote("b.md", "two")
	svc.WriteNote("a.md", "one")

	got = decode(t, svc.ListNotes())
	notes = got["notes"].([]any)
	if len(notes) != 2 || notes[0] != "a.md" || notes[1] != "b.md" {
		t.Fatalf("expected sorted [a.md b.md], got %v", notes)
	}
}
