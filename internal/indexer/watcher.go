package indexer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/sagekb/sage/internal/cardcache"
	"github.com/sagekb/sage/internal/extract"
	"github.com/sagekb/sage/internal/index"
	"github.com/sagekb/sage/internal/workspace"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, path string)

// Watch keeps the full-text index consistent with on-disk changes while the
// server runs: a created or written document (or note) gets its body
// re-extracted and refreshed in the index; a removed one has its index row
// and cached card dropped. Cards are never re-synthesized here — that costs
// an LLM call and stays in the upfront pass.
func Watch(ctx context.Context, ws *workspace.Workspace, cache *cardcache.Cache, db *index.DB, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(ws.Root()); err != nil {
		return err
	}
	// The notes area may not exist yet; it is added when created.
	if info, err := os.Stat(ws.NotesDir()); err == nil && info.IsDir() {
		if err := w.Add(ws.NotesDir()); err != nil {
			return err
		}
	}

	logger.Info("watcher: started", slog.String("root", ws.Root()))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			rel, relErr := filepath.Rel(ws.Root(), ev.Name)
			if relErr != nil || strings.HasPrefix(rel, workspace.StateDirName) {
				continue
			}

			// Watch the notes dir once it appears.
			if ev.Op&fsnotify.Create != 0 && rel == workspace.NotesDirName {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						logger.Warn("watcher: add notes dir failed", slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !watchable(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				body, extErr := extract.Text(ev.Name)
				if extErr != nil {
					logger.Warn("watcher: extract failed", slog.String("path", rel), slog.String("error", extErr.Error()))
					continue
				}
				if idxErr := db.Refresh(rel, body); idxErr != nil {
					logger.Warn("watcher: refresh failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				logger.Debug("watcher: refreshed", slog.String("path", rel), slog.String("op", kind))
				if cb != nil {
					cb(kind, rel)
				}

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if delErr := db.Delete(rel); delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				cache.Remove(rel)
				logger.Debug("watcher: deleted", slog.String("path", rel))
				if cb != nil {
					cb("deleted", rel)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// watchable reports whether a workspace-relative path belongs to the search
// scope: an allowed-extension document at the root, or a note in notes/.
// Dot-prefixed names are invisible, matching ListNotes; that also covers the
// temp files WriteNote renames into place.
func watchable(rel string) bool {
	if strings.HasPrefix(filepath.Base(rel), ".") {
		return false
	}
	dir := filepath.Dir(rel)
	if dir == workspace.NotesDirName {
		return true
	}
	return dir == "." && workspace.IsDocument(rel)
}
