package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(_ context.Context, changed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, changed)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatcher_DebouncesDocumentWrites(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "reg.pdf")
	if err := os.WriteFile(doc, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{doc}, rec.onChange, WithDebounce(100*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(doc, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) > 0 })
	time.Sleep(250 * time.Millisecond)

	calls := rec.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected one debounced call, got %d: %v", len(calls), calls)
	}
	if len(calls[0]) != 1 || calls[0][0] != doc {
		t.Errorf("changed = %v, want [%s]", calls[0], doc)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "reg.pdf")
	rec := &recorder{}
	w := NewWatcher([]string{doc}, rec.onChange, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Fatalf("expected no calls, got %d", n)
	}

	// Creating the missing document is a change.
	if err := os.WriteFile(doc, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
}

func TestWatcher_RemoveTriggers(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "reg.pdf")
	if err := os.WriteFile(doc, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{doc}, rec.onChange, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(doc); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "reg.pdf")
	rec := &recorder{}
	w := NewWatcher([]string{doc}, rec.onChange, WithDebounce(200*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(doc, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	time.Sleep(300 * time.Millisecond)
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected no call after Stop, got %d", n)
	}
	// Stop is idempotent.
	w.Stop()
}

func TestWatcher_Directories(t *testing.T) {
	a := filepath.Join(t.TempDir(), "a.pdf")
	b := filepath.Join(filepath.Dir(a), "b.pdf")
	c := filepath.Join(t.TempDir(), "c.pdf")
	w := NewWatcher([]string{a, b, c}, nil)
	dirs := w.Directories()
	if len(dirs) != 2 {
		t.Fatalf("Directories() = %v", dirs)
	}
}

func TestWatcher_MissingDirectorySkipped(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope", "reg.pdf")
	w := NewWatcher([]string{missing}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	w.Stop()
}
