package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tonearm/tonearm/internal/source"
)

const maxDownloadAttempts = 3

// Downloader fetches cover art through a source adapter, retrying transient
// failures, and normalizes the result for embedding.
type Downloader struct {
	logger *slog.Logger
}

// NewDownloader creates a cover art downloader.
func NewDownloader(logger *slog.Logger) *Downloader {
	return &Downloader{logger: logger.With(slog.String("component", "artwork"))}
}

// Fetch retrieves the candidate's cover through the adapter and returns it
// downscaled to embedding size with dimensions filled in. Transient source
// errors are retried with fibonacci backoff.
func (d *Downloader) Fetch(ctx context.Context, cs source.CoverSource, c *source.Candidate, quality source.CoverQuality) (*source.CoverArt, error) {
	var art *source.CoverArt

	backoff := retry.WithMaxRetries(maxDownloadAttempts-1, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := cs.FetchCover(ctx, c, quality)
		if err != nil {
			var unavail *source.ErrSourceUnavailable
			if errors.As(err, &unavail) {
				d.logger.Debug("cover fetch retrying",
					slog.String("source", string(c.Source)),
					slog.String("error", err.Error()))
				return retry.RetryableError(err)
			}
			return err
		}
		art = fetched
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching cover from %s: %w", c.Source, err)
	}

	scaled, format, err := Downscale(art.Data)
	if err != nil {
		return nil, fmt.Errorf("normalizing cover: %w", err)
	}
	art.Data = scaled
	art.MIMEType = MIMEType(format)

	if w, h, err := Dimensions(bytes.NewReader(art.Data)); err == nil {
		art.Width = w
		art.Height = h
	}

	d.logger.Debug("cover ready",
		slog.String("source", string(c.Source)),
		slog.Int("bytes", len(art.Data)),
		slog.Int("width", art.Width),
		slog.Int("height", art.Height))

	return art, nil
}
