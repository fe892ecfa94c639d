package indexer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sagekb/sage/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_RefreshOnWrite(t *testing.T) {
	ws, cache, db := testutil.TestWorkspace(t)
	_ = db.Insert("doc.txt", "stale body")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, ws, cache, db, discard(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(ws.Root(), "doc.txt"), []byte("fresh body"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		body, _, _ := db.Body("doc.txt")
		return body == "fresh body"
	}, "changed document not refreshed in index")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, "no watcher event delivered")
}

func TestWatcher_DeleteRemovesEntry(t *testing.T) {
	ws, cache, db := testutil.TestWorkspace(t)
	path := filepath.Join(ws.Root(), "gone.txt")
	_ = os.WriteFile(path, []byte("body"), 0o644)
	_ = db.Insert("gone.txt", "body")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, ws, cache, db, discard(), nil)

	time.Sleep(100 * time.Millisecond)
	_ = os.Remove(path)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		ok, _ := db.Contains("gone.txt")
		return !ok
	}, "deleted document still in index")
}

func TestWatcher_IgnoresNoteTempFiles(t *testing.T) {
	ws, cache, db := testutil.TestWorkspace(t)
	if err := os.MkdirAll(ws.NotesDir(), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go Watch(ctx, ws, cache, db, discard(), func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	// An atomic note write surfaces as a dot-prefixed temp file plus the
	// renamed final name; only the final name may reach the index.
	if err := ws.WriteNote("idea.md", []byte("riemann")); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		ok, _ := db.Contains("notes/idea.md")
		return ok
	}, "written note not indexed")

	mu.Lock()
	defer mu.Unlock()
	for _, e := range events {
		if strings.Contains(e, ".sage-tmp-") {
			t.Errorf("temp file leaked into events: %s", e)
		}
	}
	rows, _ := db.Search("riemann", 10, "", "")
	for _, r := range rows {
		if strings.Contains(r.Path, ".sage-tmp-") {
			t.Errorf("temp file leaked into index: %s", r.Path)
		}
	}
}

func TestWatcher_IgnoresStateDir(t *testing.T) {
	ws, cache, db := testutil.TestWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	fired := false
	go Watch(ctx, ws, cache, db, discard(), func(kind, path string) {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)
	// Writes inside the state dir (e.g. the index store itself) are not documents.
	_ = os.WriteFile(filepath.Join(ws.StateDir(), "scratch.txt"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired {
		t.Error("state dir writes must not produce document events")
	}
}
