package source

import "testing"

func TestSimilarityReflexive(t *testing.T) {
	for _, s := range []string{"", "Seven Mile Fragrance", "七里香", "a b c"} {
		if got := Similarity(s, s); got != 100 {
			t.Errorf("Similarity(%q, %q) = %v, want 100", s, s, got)
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"hello", "hallo"},
		{"周杰伦", "周杰倫"},
		{"Radiohead", "Radio head"},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity(%q, %q) = %v but reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	if got := Similarity("HELLO", "hello"); got != 100 {
		t.Errorf("expected case-insensitive match to score 100, got %v", got)
	}
}

func TestSimilarityRange(t *testing.T) {
	got := Similarity("completely different", "nothing alike at all")
	if got < 0 || got > 100 {
		t.Errorf("similarity %v outside [0,100]", got)
	}
}

func TestConfidenceNeutralArtist(t *testing.T) {
	// With no artist in the query, artist similarity contributes a fixed 100.
	got := Confidence("七里香", "", "七里香", "周杰伦")
	if got != 100 {
		t.Errorf("expected 100 with exact title and absent artist, got %v", got)
	}
}

func TestConfidenceMean(t *testing.T) {
	// Exact title, completely different artist: (100 + artistSim) / 2.
	artistSim := Similarity("abc", "xyz")
	want := (100 + artistSim) / 2
	got := Confidence("Song", "abc", "Song", "xyz")
	if got != want {
		t.Errorf("Confidence = %v, want %v", got, want)
	}
}
