package musicbrainz

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/tonearm/tonearm/internal/source"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("loading fixture %s: %v", name, err)
	}
	return data
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/recording":
			if r.URL.Query().Get("fmt") != "json" {
				t.Errorf("missing fmt=json in query: %s", r.URL.RawQuery)
			}
			if strings.Contains(r.URL.Query().Get("query"), "no-results") {
				w.Write([]byte(`{"count":0,"recordings":[]}`))
				return
			}
			w.Write(loadFixture(t, "search_qilixiang.json"))

		case strings.HasPrefix(r.URL.Path, "/release/"):
			w.Write(loadFixture(t, "cover_listing.json"))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	limiter := source.NewRateLimiterMap()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWithBaseURL(limiter, logger, baseURL, baseURL)
}

func TestName(t *testing.T) {
	a := newTestAdapter(t, "http://localhost")
	if a.Name() != source.NameMusicBrainz {
		t.Errorf("expected %q, got %q", source.NameMusicBrainz, a.Name())
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	cand, err := a.Search(context.Background(), "七里香", "周杰伦")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if cand == nil {
		t.Fatal("expected a candidate")
	}
	if cand.Title != "七里香" || cand.Artist != "周杰伦" {
		t.Errorf("unexpected candidate: %+v", cand)
	}
	if cand.Album != "七里香" || cand.ReleaseID != "rel-3333" {
		t.Errorf("release not mapped: %+v", cand)
	}
	if cand.Confidence != 100 {
		t.Errorf("exact match should score 100, got %v", cand.Confidence)
	}
	if cand.Source != source.NameMusicBrainz {
		t.Errorf("unexpected source %q", cand.Source)
	}
	if !strings.HasPrefix(cand.CoverURL, "https://") {
		t.Errorf("cover URL should be upgraded to https: %q", cand.CoverURL)
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	cand, err := a.Search(context.Background(), "no-results", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if cand != nil {
		t.Errorf("expected nil candidate, got %+v", cand)
	}
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	a := newTestAdapter(t, srv.URL)

	_, err := a.Search(context.Background(), "anything", "")
	if err == nil {
		t.Fatal("expected error for server failure")
	}
	var unavail *source.ErrSourceUnavailable
	if !errors.As(err, &unavail) {
		t.Errorf("expected ErrSourceUnavailable, got %T: %v", err, err)
	}
}
