package source

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

// Similarity returns a case-insensitive edit-distance ratio between a and b
// on a 0-100 scale. Symmetric, and 100 for identical inputs.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return 100
	}
	ratio, err := edlib.StringsSimilarity(a, b, edlib.Levenshtein)
	if err != nil {
		return 0
	}
	return float64(ratio) * 100
}

// Confidence scores how well a returned title/artist pair matches the query:
// the arithmetic mean of title similarity and artist similarity. An absent
// artist query term contributes a neutral 100 rather than a penalty.
func Confidence(queryTitle, queryArtist, foundTitle, foundArtist string) float64 {
	titleRatio := Similarity(queryTitle, foundTitle)
	artistRatio := 100.0
	if queryArtist != "" {
		artistRatio = Similarity(queryArtist, foundArtist)
	}
	return (titleRatio + artistRatio) / 2
}
