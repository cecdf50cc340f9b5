package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/tonearm/tonearm/internal/source"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token" //nolint:gosec // endpoint URL, not a credential

	searchResultLimit = 5
)

// Adapter implements source.Source for the Spotify Web API using the
// client-credentials grant. Album images at their largest size serve as
// cover art.
type Adapter struct {
	client  *http.Client
	limiter *source.RateLimiterMap
	logger  *slog.Logger
	baseURL string
	hasAuth bool
}

// New creates a Spotify adapter. Without credentials the adapter is
// registered but every search fails with ErrAuthRequired.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, clientID, clientSecret string) *Adapter {
	a := &Adapter{
		limiter: limiter,
		logger:  logger.With(slog.String("source", "spotify")),
		baseURL: defaultBaseURL,
	}
	if clientID != "" && clientSecret != "" {
		cfg := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     defaultTokenURL,
		}
		a.client = cfg.Client(context.Background())
		a.client.Timeout = 10 * time.Second
		a.hasAuth = true
	}
	return a
}

// NewWithBaseURL creates a Spotify adapter that talks to a custom endpoint
// with a plain HTTP client (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "spotify")),
		baseURL: strings.TrimRight(baseURL, "/"),
		hasAuth: true,
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.SourceName { return source.NameSpotify }

// RequiresAuth returns true; the Web API needs client credentials.
func (a *Adapter) RequiresAuth() bool { return true }

// Search queries the track catalog and returns the top hit as a scored
// candidate, or (nil, nil) when nothing matches.
func (a *Adapter) Search(ctx context.Context, title, artist string) (*source.Candidate, error) {
	if !a.hasAuth {
		return nil, &source.ErrAuthRequired{Source: source.NameSpotify}
	}
	if err := a.limiter.Wait(ctx, source.NameSpotify); err != nil {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := fmt.Sprintf("track:%s", title)
	if artist != "" {
		query += fmt.Sprintf(" artist:%s", artist)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprintf("%d", searchResultLimit))

	body, err := a.doGet(ctx, a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Tracks.Items) == 0 {
		return nil, nil
	}

	best := resp.Tracks.Items[0]
	cand := &source.Candidate{
		Title:     best.Name,
		Album:     best.Album.Name,
		Source:    source.NameSpotify,
		ReleaseID: best.Album.ID,
		CoverURL:  largestImage(best.Album.Images),
	}
	if len(best.Artists) > 0 {
		cand.Artist = best.Artists[0].Name
	}
	cand.Confidence = source.Confidence(title, artist, cand.Title, cand.Artist)

	a.logger.Debug("track search completed",
		slog.String("title", title),
		slog.Float64("confidence", cand.Confidence))

	return cand, nil
}

// FetchCover downloads the candidate's album cover. Spotify serves fixed
// image renditions, so the quality hint only picks among what the album
// listing offered; the stored URL is already the largest.
func (a *Adapter) FetchCover(ctx context.Context, c *source.Candidate, _ source.CoverQuality) (*source.CoverArt, error) {
	if c.CoverURL == "" {
		return nil, &source.ErrNotFound{Source: source.NameSpotify, Query: c.Title}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CoverURL, nil)
	if err != nil {
		return nil, err
	}

	// Image CDN URLs are pre-signed; use a bare client so the OAuth
	// transport does not attach an API token.
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameSpotify, Cause: err}
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

// largestImage picks the URL of the widest rendition.
func largestImage(images []image) string {
	if len(images) == 0 {
		return ""
	}
	sorted := make([]image, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Width > sorted[j].Width })
	return sorted[0].URL
}

// doGet executes an authenticated GET against the Web API.
func (a *Adapter) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameSpotify, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &source.ErrAuthRequired{Source: source.NameSpotify}
	case http.StatusNotFound:
		return nil, &source.ErrNotFound{Source: source.NameSpotify, Query: reqURL}
	default:
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameSpotify,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
