package resolver

import "github.com/tonearm/tonearm/internal/source"

// Completeness bonuses applied to the weighted score. Both can apply to the
// same candidate, compounding to 1.21.
const (
	albumBonus        = 1.1
	availabilityBonus = 1.1
)

// Weights maps a source name to its multiplicative score weight.
type Weights map[source.SourceName]float64

// Get returns the weight for name, defaulting to 1.0.
func (w Weights) Get(name source.SourceName) float64 {
	if v, ok := w[name]; ok {
		return v
	}
	return 1.0
}

// SelectBest ranks candidates and returns the winner, or nil when there is
// none worth keeping.
//
// Each candidate's score is its raw confidence multiplied by the source
// weight, by 1.1 when an album is present, and by 1.1 when a cover URL or
// release ID is present. The maximum score wins; ties keep the earliest
// candidate in input order. Because the coordinator collects results in
// completion order, a tie between sources can resolve differently across
// runs; no secondary key is imposed.
//
// The minimum-confidence floor gates on raw confidence, not the weighted
// score: a heavily weighted candidate below the floor is still no match.
func SelectBest(candidates []*source.Candidate, weights Weights, minConfidence float64) *source.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	for _, c := range candidates {
		score := c.Confidence
		score *= weights.Get(c.Source)
		if c.Album != "" {
			score *= albumBonus
		}
		if c.CoverURL != "" || c.ReleaseID != "" {
			score *= availabilityBonus
		}
		c.WeightedScore = score
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.WeightedScore > best.WeightedScore {
			best = c
		}
	}

	if best.Confidence < minConfidence {
		return nil
	}
	return best
}
