// Package cardcache persists one structured card per document, keyed by
// filename, with staleness detection against the source file's modification
// time. Any cache-read error is treated as "stale, recompute" rather than
// surfaced as a hard error.
package cardcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sagekb/sage/internal/models"
	"github.com/sagekb/sage/internal/workspace"
)

// Cache reads and writes card files under the workspace state directory.
type Cache struct {
	ws *workspace.Workspace
}

// New creates a cache scoped to the given workspace.
func New(ws *workspace.Workspace) *Cache {
	return &Cache{ws: ws}
}

// cardPath returns the on-disk location of a document's card.
func (c *Cache) cardPath(rel string) string {
	return filepath.Join(c.ws.CardDir(), filepath.Base(rel)+".json")
}

// Stale reports whether the document needs (re)synthesis: no cached card,
// an unreadable or schema-invalid card, or a card older than the document.
func (c *Cache) Stale(rel string) bool {
	card, err := c.Load(rel)
	if err != nil {
		return true
	}
	mtime, err := c.docMtime(rel)
	if err != nil {
		return true
	}
	return card.Mtime < mtime
}

// Load reads the persisted card for a document. Errors indicate staleness,
// not failure: callers are expected to fall through to resynthesis.
func (c *Cache) Load(rel string) (*models.Card, error) {
	data, err := os.ReadFile(c.cardPath(rel))
	if err != nil {
		return nil, fmt.Errorf("cardcache: read %s: %w", rel, err)
	}
	var card models.Card
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("cardcache: decode %s: %w", rel, err)
	}
	if err := card.Validate(); err != nil {
		return nil, fmt.Errorf("cardcache: invalid card %s: %w", rel, err)
	}
	return &card, nil
}

// Store persists a card, stamping it with the document's path and current
// modification time. The card is overwritten whole, never merged.
func (c *Cache) Store(rel string, card *models.Card) error {
	mtime, err := c.docMtime(rel)
	if err != nil {
		return fmt.Errorf("cardcache: stat %s: %w", rel, err)
	}
	card.Path = rel
	card.Mtime = mtime

	data, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return fmt.Errorf("cardcache: encode %s: %w", rel, err)
	}
	if err := os.WriteFile(c.cardPath(rel), data, 0o644); err != nil {
		return fmt.Errorf("cardcache: write %s: %w", rel, err)
	}
	return nil
}

// Remove deletes the cached card for a document, if any.
func (c *Cache) Remove(rel string) {
	_ = os.Remove(c.cardPath(rel))
}

// All returns every readable cached card, sorted by card filename. Cards
// that fail to decode are skipped.
func (c *Cache) All() []models.Card {
	matches, err := filepath.Glob(filepath.Join(c.ws.CardDir(), "*.json"))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	var out []models.Card
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		var card models.Card
		if err := json.Unmarshal(data, &card); err != nil {
			continue
		}
		out = append(out, card)
	}
	return out
}

func (c *Cache) docMtime(rel string) (int64, error) {
	abs, err := c.ws.Abs(rel)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}
