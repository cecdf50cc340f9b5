package tagger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tonearm/tonearm/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteTagsEmptyCandidate(t *testing.T) {
	tg := New(testLogger())
	// No fields set means no write; the path does not need to exist.
	if err := tg.WriteTags("/nonexistent/file.mp3", &source.Candidate{}); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}
}

func TestEmbedCoverSkipsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.m4a")
	if err := os.WriteFile(path, []byte("not audio"), 0o600); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	tg := New(testLogger())
	art := &source.CoverArt{Data: []byte("img"), MIMEType: "image/jpeg"}
	if err := tg.EmbedCover(path, art); err != nil {
		t.Fatalf("EmbedCover: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(data) != "not audio" {
		t.Error("unsupported format was modified")
	}
}

func TestEmbedCoverNilArt(t *testing.T) {
	tg := New(testLogger())
	if err := tg.EmbedCover("/nonexistent/file.mp3", nil); err != nil {
		t.Fatalf("EmbedCover(nil): %v", err)
	}
}

func TestWriteLyricsSidecar(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "track.mp3")

	tg := New(testLogger())
	lyr := &source.Lyrics{Text: "[00:01.00]line one\n", Language: "zh-CN"}

	lrcPath, err := tg.WriteLyricsSidecar(audio, lyr)
	if err != nil {
		t.Fatalf("WriteLyricsSidecar: %v", err)
	}
	if lrcPath != filepath.Join(dir, "track.lrc") {
		t.Errorf("sidecar path = %q", lrcPath)
	}

	data, err := os.ReadFile(lrcPath)
	if err != nil {
		t.Fatalf("reading sidecar: %v", err)
	}
	if string(data) != lyr.Text {
		t.Errorf("sidecar content = %q", data)
	}
}

func TestWriteLyricsSidecarNil(t *testing.T) {
	tg := New(testLogger())
	path, err := tg.WriteLyricsSidecar("/music/track.mp3", nil)
	if err != nil {
		t.Fatalf("WriteLyricsSidecar(nil): %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
}
