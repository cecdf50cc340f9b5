package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonearm/tonearm/internal/cache"
	"github.com/tonearm/tonearm/internal/source"
)

// DefaultTimeout bounds the fan-out when the config leaves it unset.
const DefaultTimeout = 30 * time.Second

// Options configures a Resolver. A zero Timeout falls back to
// DefaultTimeout. MinConfidence is taken as given: zero disables the
// floor rather than restoring a default, since the config layer already
// carries one. Weights may be nil for uniform 1.0 weighting.
type Options struct {
	MinConfidence float64
	Timeout       time.Duration
	Weights       Weights
}

// Resolver answers (title, artist) queries with the best candidate from the
// enabled sources, consulting and maintaining the result cache.
type Resolver struct {
	coordinator   *Coordinator
	cache         *cache.Cache
	weights       Weights
	minConfidence float64
	logger        *slog.Logger
}

// New creates a Resolver over the registry's enabled sources.
func New(registry *source.Registry, resultCache *cache.Cache, opts Options, logger *slog.Logger) *Resolver {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Resolver{
		coordinator:   NewCoordinator(registry.All(), opts.Timeout, logger),
		cache:         resultCache,
		weights:       opts.Weights,
		minConfidence: opts.MinConfidence,
		logger:        logger.With(slog.String("component", "resolver")),
	}
}

// Resolve returns the winning candidate for the query, or nil when there is
// no acceptable match. It never returns an error: adapter failures, cache
// trouble, and timeouts all degrade to partial or absent results.
//
// A winner is written back to the cache best-effort. A "no result" outcome
// is never cached, so a later run can retry as catalogs change.
func (r *Resolver) Resolve(ctx context.Context, title, artist string) *source.Candidate {
	if title == "" {
		return nil
	}

	key := cacheKey(title, artist)
	if cand, ok := r.cache.Get(key); ok {
		r.logger.Debug("cache hit",
			slog.String("title", title),
			slog.String("source", string(cand.Source)))
		return cand
	}

	candidates := r.coordinator.SearchAll(ctx, title, artist)

	best := SelectBest(candidates, r.weights, r.minConfidence)
	if best == nil {
		r.logger.Debug("no acceptable match",
			slog.String("title", title),
			slog.Int("candidates", len(candidates)))
		return nil
	}

	r.cache.Set(key, best)

	r.logger.Info("resolved",
		slog.String("title", title),
		slog.String("source", string(best.Source)),
		slog.Float64("confidence", best.Confidence),
		slog.Float64("score", best.WeightedScore))
	return best
}

// cacheKey derives the cache key for a query. The human-readable form is
// hashed by the cache itself.
func cacheKey(title, artist string) string {
	if artist == "" {
		artist = "unknown"
	}
	return fmt.Sprintf("search_%s_%s", title, artist)
}
