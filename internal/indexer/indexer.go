// Package indexer brings the card cache and the full-text index up to date
// with the workspace's document set.
package indexer

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/sagekb/sage/internal/cardcache"
	"github.com/sagekb/sage/internal/extract"
	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/models"
	"github.com/sagekb/sage/internal/workspace"
)

// Synthesizer derives a card from document text. Satisfied by *synth.Synthesizer.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, name string) (*models.Card, error)
}

// EnsureIndexed walks the located documents and, for each one: synthesizes
// and stores a card when the cache is stale, loads the cached card when
// fresh, and inserts the full body into the full-text index when no entry
// exists for the path (insert-if-absent; an existing entry is never
// refreshed here — only the watcher updates live entries).
//
// Per-document failures are logged and skipped; one bad document never
// aborts the pass. A failed synthesis still leaves the document searchable.
// Notes bodies are indexed too (without cards). Returns the complete card
// sequence in locate order; re-running with no file changes performs zero
// synthesis calls and yields the same cards.
func EnsureIndexed(ctx context.Context, ws *workspace.Workspace, cache *cardcache.Cache, db *index.DB, syn Synthesizer, logger *slog.Logger) ([]models.Card, error) {
	if err := ws.EnsureStateDirs(); err != nil {
		return nil, err
	}

	var cards []models.Card
	for _, rel := range ws.Locate() {
		abs, err := ws.Abs(rel)
		if err != nil {
			logger.Warn("index: bad path", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}

		// Body is extracted at most once per document per pass.
		body := ""
		extracted := false
		readBody := func() (string, bool) {
			if !extracted {
				text, err := extract.Text(abs)
				if err != nil {
					logger.Warn("index: extract failed", slog.String("path", rel), slog.String("error", err.Error()))
					return "", false
				}
				body = text
				extracted = true
			}
			return body, true
		}

		if cache.Stale(rel) {
			logger.Info("index: synthesizing card", slog.String("path", rel))
			if text, ok := readBody(); ok {
				card, err := syn.Synthesize(ctx, text, filepath.Base(rel))
				if err != nil {
					logger.Warn("index: synthesis failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else if err := cache.Store(rel, card); err != nil {
					logger.Warn("index: store card failed", slog.String("path", rel), slog.String("error", err.Error()))
				} else {
					cards = append(cards, *card)
				}
			}
		} else {
			card, err := cache.Load(rel)
			if err != nil {
				logger.Warn("index: load card failed", slog.String("path", rel), slog.String("error", err.Error()))
			} else {
				cards = append(cards, *card)
			}
		}

		ok, err := db.Contains(rel)
		if err != nil {
			logger.Warn("index: contains failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if !ok {
			if text, okRead := readBody(); okRead {
				if err := db.Insert(rel, text); err != nil {
					logger.Warn("index: insert failed", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}
		}
	}

	indexNotes(ws, db, logger)
	return cards, nil
}

// indexNotes inserts note bodies into the search scope. Notes carry no card.
func indexNotes(ws *workspace.Workspace, db *index.DB, logger *slog.Logger) {
	for _, name := range ws.ListNotes() {
		rel := filepath.Join(workspace.NotesDirName, name)
		ok, err := db.Contains(rel)
		if err != nil || ok {
			continue
		}
		data, err := ws.ReadNote(name)
		if err != nil {
			logger.Warn("index: read note failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if err := db.Insert(rel, string(data)); err != nil {
			logger.Warn("index: insert note failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
}
