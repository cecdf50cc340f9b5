package organize

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

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestTargetPath(t *testing.T) {
	o := New("/library", "", testLogger())
	c := &source.Candidate{Title: "七里香", Artist: "周杰伦", Album: "七里香"}

	got := o.TargetPath("/incoming/07. some file.MP3", c)
	want := filepath.Join("/library", "周杰伦", "七里香", "七里香.mp3")
	if got != want {
		t.Errorf("TargetPath = %q, want %q", got, want)
	}
}

func TestTargetPathMissingFields(t *testing.T) {
	o := New("/library", "", testLogger())
	c := &source.Candidate{Title: "Track"}

	got := o.TargetPath("/incoming/a.flac", c)
	want := filepath.Join("/library", "Unknown", "Unknown", "Track.flac")
	if got != want {
		t.Errorf("TargetPath = %q, want %q", got, want)
	}
}

func TestTargetPathSanitizes(t *testing.T) {
	o := New("/library", "", testLogger())
	c := &source.Candidate{Title: "What: A Song?", Artist: "AC/DC", Album: "Live <1991>"}

	got := o.TargetPath("/incoming/a.mp3", c)
	want := filepath.Join("/library", "AC_DC", "Live _1991_", "What_ A Song_.mp3")
	if got != want {
		t.Errorf("TargetPath = %q, want %q", got, want)
	}
}

func TestPlace(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.mp3")
	writeFile(t, src, "audio")

	o := New(root, "", testLogger())
	c := &source.Candidate{Title: "Song", Artist: "Artist", Album: "Album"}

	placed, err := o.Place(src, c)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	want := filepath.Join(root, "Artist", "Album", "Song.mp3")
	if placed != want {
		t.Errorf("placed = %q, want %q", placed, want)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file still exists after move")
	}
	data, err := os.ReadFile(placed)
	if err != nil {
		t.Fatalf("reading placed file: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("placed content = %q", data)
	}
}

func TestPlaceCollision(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	o := New(root, "", testLogger())
	c := &source.Candidate{Title: "Song", Artist: "Artist", Album: "Album"}

	first := filepath.Join(srcDir, "a.mp3")
	writeFile(t, first, "first")
	if _, err := o.Place(first, c); err != nil {
		t.Fatalf("Place (first): %v", err)
	}

	second := filepath.Join(srcDir, "b.mp3")
	writeFile(t, second, "second")
	placed, err := o.Place(second, c)
	if err != nil {
		t.Fatalf("Place (second): %v", err)
	}
	want := filepath.Join(root, "Artist", "Album", "Song (1).mp3")
	if placed != want {
		t.Errorf("placed = %q, want %q", placed, want)
	}

	data, _ := os.ReadFile(filepath.Join(root, "Artist", "Album", "Song.mp3"))
	if string(data) != "first" {
		t.Error("existing file was overwritten")
	}
}

func TestPlaceSidecar(t *testing.T) {
	root := t.TempDir()
	srcDir := t.TempDir()
	o := New(root, "", testLogger())

	placedAudio := filepath.Join(root, "Artist", "Album", "Song.mp3")
	if err := os.MkdirAll(filepath.Dir(placedAudio), 0o755); err != nil {
		t.Fatal(err)
	}

	lrc := filepath.Join(srcDir, "a.lrc")
	writeFile(t, lrc, "[00:01.00]line")

	placed, err := o.PlaceSidecar(lrc, placedAudio)
	if err != nil {
		t.Fatalf("PlaceSidecar: %v", err)
	}
	want := filepath.Join(root, "Artist", "Album", "Song.lrc")
	if placed != want {
		t.Errorf("placed = %q, want %q", placed, want)
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a/b\\c", "a_b_c"},
		{"trailing. ", "trailing"},
		{"   ", "Unknown"},
		{"q?u*o\"t<e>s|", "q_u_o_t_e_s_"},
	}
	for _, tt := range tests {
		if got := sanitizeSegment(tt.in); got != tt.want {
			t.Errorf("sanitizeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
