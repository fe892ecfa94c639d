// Package testutil provides shared test helpers for setting up workspaces
// and index databases.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"testing"

	"github.com/sagekb/sage/internal/cardcache"
	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/workspace"
)

// TestWorkspace creates a temporary workspace with its state dirs, a card
// cache, and an index database, all cleaned up automatically.
func TestWorkspace(t *testing.T) (*workspace.Workspace, *cardcache.Cache, *index.DB) {
	t.Helper()

	ws, err := workspace.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.EnsureStateDirs(); err != nil {
		t.Fatal(err)
	}
	return ws, cardcache.New(ws), TestDB(t)
}

// MinimalPDF writes a parseable one-page PDF whose single page shows the
// given text. Cross-reference offsets are computed while building so the
// file is always well-formed. The text must not contain the PDF string
// delimiters ( ) or \.
func MinimalPDF(t *testing.T, path, text string) {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	obj("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] " +
		"/Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>\nendobj\n")
	stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	obj(fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(stream), stream))
	obj("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>\nendobj\n")

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	// Entries are exactly 20 bytes each.
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestDB creates a temporary index database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sage-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
