package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcherDispatchesSettledFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	s := New(dir, rec.handle, testLogger())
	s.SetSettle(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Start(ctx)
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "new.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) == 1 }) {
		t.Fatalf("handler calls = %v, want one for %s", rec.snapshot(), path)
	}
	if got := rec.snapshot()[0]; got != path {
		t.Errorf("handled path = %q, want %q", got, path)
	}

	cancel()
	<-done
}

func TestWatcherIgnoresNonAudio(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	s := New(dir, rec.handle, testLogger())
	s.SetSettle(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("img"), 0o600); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("handler calls = %v, want none", got)
	}
}

func TestWatcherCoalescesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	s := New(dir, rec.handle, testLogger())
	s.SetSettle(150 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "track.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// Simulate a slow copy: several writes inside the settle window.
	for i := 0; i < 3; i++ {
		if _, err := f.Write([]byte("chunk")); err != nil {
			t.Fatal(err)
		}
		_ = f.Sync()
		time.Sleep(50 * time.Millisecond)
	}
	_ = f.Close()

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.snapshot()) > 0 }) {
		t.Fatal("handler never called")
	}
	time.Sleep(200 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Errorf("handler calls = %d, want 1 (writes coalesced)", len(got))
	}
}

func TestWatcherBadDirectory(t *testing.T) {
	s := New("/nonexistent-tonearm-test", func(context.Context, string) {}, testLogger())
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start on missing directory succeeded, want error")
	}
}
