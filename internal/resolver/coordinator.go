// Package resolver contains the result-aggregation core: the concurrent
// fan-out over catalog sources, the weighted scoring and selection of a
// winner, and the query pipeline tying both to the result cache.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tonearm/tonearm/internal/source"
)

// defaultGracePeriod bounds how long the coordinator waits for cancelled
// lookups to unwind after the shared deadline fires.
const defaultGracePeriod = 2 * time.Second

// Coordinator fans a query out to every enabled source concurrently under a
// single shared deadline. One adapter's failure or slowness never affects
// its siblings or the overall call.
type Coordinator struct {
	sources []source.Source
	timeout time.Duration
	grace   time.Duration
	logger  *slog.Logger
}

// NewCoordinator creates a Coordinator over the given sources. The timeout
// applies to the whole fan-out, not to each source individually.
func NewCoordinator(sources []source.Source, timeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		sources: sources,
		timeout: timeout,
		grace:   defaultGracePeriod,
		logger:  logger.With(slog.String("component", "coordinator")),
	}
}

// SearchAll queries all sources concurrently and returns the candidates
// from those that answered before the shared deadline. Sources that error,
// panic, or outlive the deadline contribute nothing. The cut is taken the
// moment the deadline fires, so an adapter that ignores cancellation and
// finishes during the grace period is still excluded. An empty result is a
// normal outcome, not an error.
func (c *Coordinator) SearchAll(ctx context.Context, title, artist string) []*source.Candidate {
	if len(c.sources) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Buffered to capacity so a lookup finishing after the deadline can
	// still deposit its result and exit instead of leaking.
	results := make(chan *source.Candidate, len(c.sources))

	var wg sync.WaitGroup
	for _, s := range c.sources {
		wg.Add(1)
		go func(s source.Source) {
			defer wg.Done()
			results <- c.safeSearch(ctx, s, title, artist)
		}(s)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline fired. Snapshot what completed in time, then give the
		// cancelled lookups a bounded grace period to unwind; whatever is
		// still running after that is abandoned. Any result deposited after
		// the snapshot stays in the buffered channel and is never read.
		candidates := drain(results)
		select {
		case <-done:
		case <-time.After(c.grace):
			c.logger.Warn("abandoning outstanding source lookups",
				slog.String("title", title),
				slog.Duration("grace", c.grace))
		}
		return candidates
	}
	return drain(results)
}

// drain collects whatever is buffered in results right now, skipping nils.
func drain(results chan *source.Candidate) []*source.Candidate {
	var candidates []*source.Candidate
	for {
		select {
		case cand := <-results:
			if cand != nil {
				candidates = append(candidates, cand)
			}
		default:
			return candidates
		}
	}
}

// safeSearch runs one source lookup, converting any error or panic into
// "no candidate from this source".
func (c *Coordinator) safeSearch(ctx context.Context, s source.Source, title, artist string) (cand *source.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("source search panicked",
				slog.String("source", string(s.Name())),
				slog.Any("panic", r))
			cand = nil
		}
	}()

	cand, err := s.Search(ctx, title, artist)
	if err != nil {
		c.logger.Warn("source search failed",
			slog.String("source", string(s.Name())),
			slog.String("error", err.Error()))
		return nil
	}
	return cand
}
