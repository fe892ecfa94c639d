// Package extract converts workspace files into plain text, dispatching on
// file type. PDFs are read with a pure-Go parser; everything else is treated
// as UTF-8 text with invalid sequences replaced.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sagekb/sage/internal/apperr"
)

// PDFSentinel is returned in place of body text when a PDF cannot be parsed.
// Callers must treat it as valid (if unhelpful) content, not an error.
const PDFSentinel = "[PDF text unavailable]"

// IsPDF reports whether the path names a PDF by extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Text extracts the full plain-text body of a file. For PDFs each page's
// text is concatenated with a blank-line separator in page order; a PDF that
// cannot be parsed degrades to PDFSentinel. For other types the raw bytes
// are decoded as UTF-8 with undecodable sequences replaced.
func Text(path string) (string, error) {
	if IsPDF(path) {
		return pdfText(path), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// PageCount returns the number of pages in a PDF.
func PageCount(path string) (int, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Page returns the extracted text of one PDF page, 0-indexed. A page outside
// [0, PageCount) yields apperr.ErrOutOfRange wrapped with the valid bound.
func Page(path string, page int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	count := r.NumPage()
	if page < 0 || page >= count {
		return "", fmt.Errorf("%w: page %d of %d", apperr.ErrOutOfRange, page, count)
	}
	return pageText(r, page+1), nil
}

// pdfText concatenates per-page text. Any failure, from open through page
// extraction, degrades to the sentinel rather than failing the pipeline.
func pdfText(path string) (out string) {
	// The pdf package panics on some malformed files.
	defer func() {
		if recover() != nil {
			out = PDFSentinel
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return PDFSentinel
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		pages = append(pages, pageText(r, i))
	}
	return strings.Join(pages, "\n\n")
}

// pageText extracts one page (1-indexed, the pdf package's convention),
// returning an empty string for pages it cannot read.
func pageText(r *pdf.Reader, n int) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()

	p := r.Page(n)
	if p.V.IsNull() {
		return ""
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
