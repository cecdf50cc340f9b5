package cache

import (
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tonearm/tonearm/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), 30, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func entryPath(c *Cache, key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}

func TestSetGetRoundTrip(t *testing.T) {
	c := newTestCache(t)

	want := &source.Candidate{
		Title:      "七里香",
		Artist:     "周杰伦",
		Album:      "七里香",
		Confidence: 95,
		Source:     source.NameMusicBrainz,
		ReleaseID:  "rel-123",
		CoverURL:   "https://example.com/cover.jpg",
	}
	c.Set("search_七里香_周杰伦", want)

	got, ok := c.Get("search_七里香_周杰伦")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Title != want.Title || got.Artist != want.Artist || got.Album != want.Album {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Confidence != 95 || got.Source != source.NameMusicBrainz {
		t.Errorf("confidence/source not preserved: %+v", got)
	}
	if got.ReleaseID != "rel-123" || got.CoverURL != "https://example.com/cover.jpg" {
		t.Errorf("optional fields not preserved: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Get("never-set"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiredEntryRemovedOnRead(t *testing.T) {
	c := newTestCache(t)
	c.Set("stale", &source.Candidate{Title: "x", Confidence: 90, Source: "a"})

	// Move the clock past the 30-day expiry.
	c.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }

	if _, ok := c.Get("stale"); ok {
		t.Fatal("expected expired entry to be a miss")
	}
	if _, err := os.Stat(entryPath(c, "stale")); !os.IsNotExist(err) {
		t.Error("expected expired entry file to be physically removed")
	}
}

func TestEntryWithinExpiryServed(t *testing.T) {
	c := newTestCache(t)
	c.Set("fresh", &source.Candidate{Title: "x", Confidence: 90, Source: "a"})

	c.now = func() time.Time { return time.Now().Add(29 * 24 * time.Hour) }

	if _, ok := c.Get("fresh"); !ok {
		t.Error("expected entry inside the expiry window to be served")
	}
}

func TestCorruptEntryRemovedOnRead(t *testing.T) {
	c := newTestCache(t)

	path := entryPath(c, "broken")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("writing corrupt entry: %v", err)
	}

	if _, ok := c.Get("broken"); ok {
		t.Fatal("expected miss for corrupt entry")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected corrupt entry file to be removed")
	}
}

func TestSetOverwrites(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", &source.Candidate{Title: "old", Confidence: 50, Source: "a"})
	c.Set("k", &source.Candidate{Title: "new", Confidence: 80, Source: "b"})

	got, ok := c.Get("k")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Title != "new" || got.Source != "b" {
		t.Errorf("expected overwritten entry, got %+v", got)
	}
}

func TestSetFailureIsSwallowed(t *testing.T) {
	c := newTestCache(t)
	if err := os.Chmod(c.dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(c.dir, 0o750) }) //nolint:errcheck

	// Must not panic or surface an error.
	c.Set("k", &source.Candidate{Title: "x", Confidence: 90, Source: "a"})
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	if _, err := New(dir, 0, testLogger()); err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected cache directory to exist: %v", err)
	}
}
