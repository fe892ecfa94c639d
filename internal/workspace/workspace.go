// Package workspace defines the directory context that scopes all documents,
// notes, and derived state for one session.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sagekb/sage/internal/apperr"
)

// StateDirName is the hidden directory holding the card cache and the
// full-text index store.
const StateDirName = ".sage"

// NotesDirName is the learner-authored notes area under the workspace root.
const NotesDirName = "notes"

// docExts is the extension allow-list for indexable documents.
var docExts = map[string]bool{
	".pdf":  true,
	".md":   true,
	".txt":  true,
	".html": true,
	".org":  true,
}

// Workspace is the explicit context object passed to every component that
// needs workspace scope. It replaces any notion of process-global state and
// lets tests run multiple workspaces in one process.
type Workspace struct {
	root string // absolute path
}

// New creates a workspace rooted at the given directory. The directory does
// not have to exist yet; a missing root simply locates zero documents.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolve root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string { return w.root }

// StateDir returns the hidden state directory path.
func (w *Workspace) StateDir() string { return filepath.Join(w.root, StateDirName) }

// CardDir returns the directory holding per-document card files.
func (w *Workspace) CardDir() string { return filepath.Join(w.StateDir(), "index") }

// IndexPath returns the full-text index store path.
func (w *Workspace) IndexPath() string { return filepath.Join(w.StateDir(), "search.db") }

// NotesDir returns the notes area path.
func (w *Workspace) NotesDir() string { return filepath.Join(w.root, NotesDirName) }

// EnsureStateDirs creates the state directory tree if absent.
func (w *Workspace) EnsureStateDirs() error {
	if err := os.MkdirAll(w.CardDir(), 0o755); err != nil {
		return fmt.Errorf("workspace: create state dir: %w", err)
	}
	return nil
}

// IsDocument reports whether the path carries an allowed document extension.
func IsDocument(path string) bool {
	return docExts[strings.ToLower(filepath.Ext(path))]
}

// Locate returns the relative paths of all indexable documents directly
// under the workspace root, sorted for determinism. A missing root yields an
// empty sequence, not an error.
func (w *Workspace) Locate() []string {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !IsDocument(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// Abs resolves a relative path against the root and rejects any result that
// escapes it (directory traversal).
func (w *Workspace) Abs(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("workspace: empty path")
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("workspace: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(w.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("workspace: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, w.root+string(os.PathSeparator)) && abs != w.root {
		return "", fmt.Errorf("workspace: path escapes root: %s", rel)
	}
	return abs, nil
}

// ReadFile returns the raw bytes of a workspace-relative file, with the
// same traversal guard as Abs. Missing files yield apperr.ErrNotFound.
func (w *Workspace) ReadFile(rel string) ([]byte, error) {
	abs, err := w.Abs(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("workspace: read %s: %w", rel, err)
	}
	return data, nil
}

// Exists reports whether a workspace-relative file exists.
func (w *Workspace) Exists(rel string) bool {
	abs, err := w.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && !info.IsDir()
}

// WriteNote atomically writes a note (tmp file, fsync, rename), overwriting
// any existing content and creating parent directories as needed.
func (w *Workspace) WriteNote(name string, content []byte) error {
	abs, err := w.noteAbs(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("workspace: mkdir notes: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sage-tmp-*")
	if err != nil {
		return fmt.Errorf("workspace: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("workspace: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("workspace: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("workspace: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("workspace: rename: %w", err)
	}
	success = true
	return nil
}

// ReadNote returns the content of a note, or apperr.ErrNotFound.
func (w *Workspace) ReadNote(name string) ([]byte, error) {
	abs, err := w.noteAbs(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("workspace: read note %s: %w", name, err)
	}
	return data, nil
}

// ListNotes returns the names of all notes, alphabetically.
func (w *Workspace) ListNotes() []string {
	entries, err := os.ReadDir(w.NotesDir())
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

// Instructions reads the two optional plain-text prompt documents (tutor
// instructions and learner profile) consumed verbatim by the system-prompt
// builder. Missing files yield empty strings.
func (w *Workspace) Instructions() (tutor, learner string) {
	if data, err := w.ReadFile("tutor.md"); err == nil {
		tutor = string(data)
	}
	if data, err := w.ReadFile("learner.md"); err == nil {
		learner = string(data)
	}
	return tutor, learner
}

// noteAbs resolves a note name inside the notes area with the same traversal
// guard as Abs.
func (w *Workspace) noteAbs(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("workspace: empty note name")
	}
	abs, err := w.Abs(filepath.Join(NotesDirName, name))
	if err != nil {
		return "", err
	}
	// The joined path must still be inside the notes area.
	notesDir := w.NotesDir()
	if !strings.HasPrefix(abs, notesDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("workspace: note path escapes notes dir: %s", name)
	}
	return abs, nil
}
