package source

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Default rate limits per source (requests per second). MusicBrainz
// documents a hard 1 req/s limit for anonymous clients; the Chinese catalogs
// are undocumented but throttle aggressive clients, so stay conservative.
var defaultRateLimits = map[SourceName]rate.Limit{
	NameMusicBrainz: 1,
	NameSpotify:     5,
	NameNetease:     2,
	NameQQMusic:     2,
}

// RateLimiterMap holds one rate.Limiter per source, created once at startup.
type RateLimiterMap struct {
	mu       sync.RWMutex
	limiters map[SourceName]*rate.Limiter
}

// NewRateLimiterMap creates all source rate limiters.
func NewRateLimiterMap() *RateLimiterMap {
	m := &RateLimiterMap{
		limiters: make(map[SourceName]*rate.Limiter, len(defaultRateLimits)),
	}
	for name, limit := range defaultRateLimits {
		m.limiters[name] = rate.NewLimiter(limit, 1)
	}
	return m
}

// Wait blocks until the rate limiter for the given source allows a request,
// or the context is canceled.
func (m *RateLimiterMap) Wait(ctx context.Context, name SourceName) error {
	m.mu.RLock()
	limiter, ok := m.limiters[name]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
