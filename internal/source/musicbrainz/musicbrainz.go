package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tonearm/tonearm/internal/source"
)

const (
	defaultBaseURL    = "https://musicbrainz.org/ws/2"
	defaultCoverURL   = "https://coverartarchive.org"
	searchResultLimit = 5
)

// Adapter implements the source.Source interface for MusicBrainz, with
// cover art resolved through the Cover Art Archive.
type Adapter struct {
	client    *http.Client
	limiter   *source.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	coverURL  string
	userAgent string
}

// New creates a MusicBrainz adapter. MusicBrainz requires a meaningful
// User-Agent with contact information for anonymous API use.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, appName, version, contact string) *Adapter {
	a := NewWithBaseURL(limiter, logger, defaultBaseURL, defaultCoverURL)
	a.userAgent = fmt.Sprintf("%s/%s ( %s )", appName, version, contact)
	return a
}

// NewWithBaseURL creates a MusicBrainz adapter with custom API and Cover Art
// Archive base URLs (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL, coverURL string) *Adapter {
	return &Adapter{
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   limiter,
		logger:    logger.With(slog.String("source", "musicbrainz")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		coverURL:  strings.TrimRight(coverURL, "/"),
		userAgent: "tonearm/1.0",
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.SourceName { return source.NameMusicBrainz }

// RequiresAuth returns false; MusicBrainz serves anonymous clients.
func (a *Adapter) RequiresAuth() bool { return false }

// Search queries the recording index and returns the top hit as a scored
// candidate, or (nil, nil) when nothing matches.
func (a *Adapter) Search(ctx context.Context, title, artist string) (*source.Candidate, error) {
	if err := a.limiter.Wait(ctx, source.NameMusicBrainz); err != nil {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := fmt.Sprintf("recording:%q", title)
	if artist != "" {
		query += fmt.Sprintf(" AND artist:%q", artist)
	}
	params := url.Values{
		"query": {query},
		"fmt":   {"json"},
		"limit": {fmt.Sprintf("%d", searchResultLimit)},
	}
	reqURL := a.baseURL + "/recording?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Recordings) == 0 {
		return nil, nil
	}

	best := resp.Recordings[0]
	cand := &source.Candidate{
		Title:  best.Title,
		Source: source.NameMusicBrainz,
	}
	if len(best.ArtistCredit) > 0 {
		cand.Artist = best.ArtistCredit[0].Name
	}
	if len(best.Releases) > 0 {
		cand.Album = best.Releases[0].Title
		cand.ReleaseID = best.Releases[0].ID
	}
	cand.Confidence = source.Confidence(title, artist, cand.Title, cand.Artist)

	// Resolving a cover URL is opportunistic; a miss leaves the candidate
	// intact with only the release ID.
	if cand.ReleaseID != "" {
		if coverURL, err := a.frontCoverURL(ctx, cand.ReleaseID); err == nil {
			cand.CoverURL = coverURL
		} else {
			a.logger.Debug("no cover art listing",
				slog.String("release", cand.ReleaseID),
				slog.String("error", err.Error()))
		}
	}

	a.logger.Debug("recording search completed",
		slog.String("title", title),
		slog.Float64("confidence", cand.Confidence))

	return cand, nil
}

// FetchCover downloads the release's front cover via the Cover Art Archive.
func (a *Adapter) FetchCover(ctx context.Context, c *source.Candidate, _ source.CoverQuality) (*source.CoverArt, error) {
	coverURL := c.CoverURL
	if coverURL == "" {
		if c.ReleaseID == "" {
			return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Query: c.Title}
		}
		var err error
		coverURL, err = a.frontCoverURL(ctx, c.ReleaseID)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameMusicBrainz, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cover download: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, fmt.Errorf("reading cover: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return &source.CoverArt{Data: data, MIMEType: mime}, nil
}

// frontCoverURL resolves the front-cover image URL for a release via the
// Cover Art Archive listing, preferring explicit front images.
func (a *Adapter) frontCoverURL(ctx context.Context, releaseID string) (string, error) {
	reqURL := a.coverURL + "/release/" + url.PathEscape(releaseID)

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return "", err
	}

	var listing caaResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return "", fmt.Errorf("parsing cover listing: %w", err)
	}
	if len(listing.Images) == 0 {
		return "", &source.ErrNotFound{Source: source.NameMusicBrainz, Query: releaseID}
	}

	img := listing.Images[0]
	for _, candidate := range listing.Images {
		if candidate.Front {
			img = candidate
			break
		}
	}
	return normalizeURL(img.Image), nil
}

// doRequest executes a GET request and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameMusicBrainz, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, &source.ErrNotFound{Source: source.NameMusicBrainz, Query: reqURL}
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("rate limited by server"),
		}
	default:
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameMusicBrainz,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// normalizeURL upgrades plain-HTTP image links to HTTPS; the Cover Art
// Archive still returns http:// URLs in listings.
func normalizeURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
