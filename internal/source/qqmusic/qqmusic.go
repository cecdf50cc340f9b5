package qqmusic

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
	defaultBaseURL  = "https://c.y.qq.com"
	defaultCoverURL = "https://y.gtimg.cn"

	searchResultLimit = 5
)

// Cover image sizes encoded in the QQ Music photo URL path.
var coverSizes = map[source.CoverQuality]string{
	source.QualityLow:    "300x300",
	source.QualityMedium: "500x500",
	source.QualityHigh:   "800x800",
}

// Adapter implements source.Source for the QQ Music search API. A
// candidate's ReleaseID carries the song mid for lyric lookups.
type Adapter struct {
	client   *http.Client
	limiter  *source.RateLimiterMap
	logger   *slog.Logger
	baseURL  string
	coverURL string
}

// New creates a QQ Music adapter against the production endpoints.
func New(limiter *source.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL, defaultCoverURL)
}

// NewWithBaseURL creates a QQ Music adapter with custom endpoints (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL, coverURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		logger:   logger.With(slog.String("source", "qqmusic")),
		baseURL:  strings.TrimRight(baseURL, "/"),
		coverURL: strings.TrimRight(coverURL, "/"),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.SourceName { return source.NameQQMusic }

// RequiresAuth returns false; the search endpoint is open.
func (a *Adapter) RequiresAuth() bool { return false }

// Search queries the song index and returns the top hit as a scored
// candidate, or (nil, nil) when nothing matches.
func (a *Adapter) Search(ctx context.Context, title, artist string) (*source.Candidate, error) {
	if err := a.limiter.Wait(ctx, source.NameQQMusic); err != nil {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameQQMusic,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := title
	if artist != "" {
		query = artist + " " + title
	}

	params := url.Values{}
	params.Set("w", query)
	params.Set("format", "json")
	params.Set("p", "1")
	params.Set("n", fmt.Sprintf("%d", searchResultLimit))
	params.Set("cr", "1")

	body, err := a.doGet(ctx, a.baseURL+"/soso/fcgi-bin/client_search_cp?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if resp.Code != 0 {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameQQMusic,
			Cause:  fmt.Errorf("api error code %d", resp.Code),
		}
	}
	if len(resp.Data.Song.List) == 0 {
		return nil, nil
	}

	best := resp.Data.Song.List[0]
	cand := &source.Candidate{
		Title:     best.SongName,
		Album:     best.AlbumName,
		Source:    source.NameQQMusic,
		ReleaseID: best.SongMid,
	}
	if len(best.Singer) > 0 {
		cand.Artist = best.Singer[0].Name
	}
	if best.AlbumMid != "" {
		cand.CoverURL = a.albumCoverURL(best.AlbumMid, source.QualityHigh)
	}
	cand.Confidence = source.Confidence(title, artist, cand.Title, cand.Artist)

	a.logger.Debug("song search completed",
		slog.String("title", title),
		slog.Float64("confidence", cand.Confidence))

	return cand, nil
}

// FetchCover downloads the candidate's album cover at the requested size.
func (a *Adapter) FetchCover(ctx context.Context, c *source.Candidate, quality source.CoverQuality) (*source.CoverArt, error) {
	if c.CoverURL == "" {
		return nil, &source.ErrNotFound{Source: source.NameQQMusic, Query: c.Title}
	}

	coverURL := resizeCoverURL(c.CoverURL, quality)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameQQMusic, Cause: err}
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

// FetchLyrics retrieves lyrics for the candidate's song mid. A translated
// version, when available, is appended under a marker line.
func (a *Adapter) FetchLyrics(ctx context.Context, c *source.Candidate) (*source.Lyrics, error) {
	if c.ReleaseID == "" {
		return nil, &source.ErrNotFound{Source: source.NameQQMusic, Query: c.Title}
	}

	params := url.Values{}
	params.Set("songmid", c.ReleaseID)
	params.Set("format", "json")
	params.Set("nobase64", "1")

	body, err := a.doGet(ctx, a.baseURL+"/lyric/fcgi-bin/fcg_query_lyric_new.fcg?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp lyricResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing lyric response: %w", err)
	}
	if resp.Retcode != 0 || resp.Lyric == "" {
		return nil, nil
	}

	lyr := &source.Lyrics{
		Text:     resp.Lyric,
		Language: "zh-CN",
	}
	if resp.Trans != "" {
		lyr.Text += "\n[translated]\n" + resp.Trans
		lyr.Translated = true
	}
	return lyr, nil
}

// albumCoverURL builds the photo URL for an album mid at the given size.
func (a *Adapter) albumCoverURL(albumMid string, quality source.CoverQuality) string {
	size := coverSizes[quality]
	if size == "" {
		size = coverSizes[source.QualityMedium]
	}
	return fmt.Sprintf("%s/music/photo_new/T002R%sM000%s.jpg", a.coverURL, size, albumMid)
}

// resizeCoverURL swaps the size segment of an existing photo URL.
func resizeCoverURL(coverURL string, quality source.CoverQuality) string {
	size, ok := coverSizes[quality]
	if !ok {
		return coverURL
	}
	for _, s := range coverSizes {
		old := "T002R" + s + "M000"
		if strings.Contains(coverURL, old) {
			return strings.Replace(coverURL, old, "T002R"+size+"M000", 1)
		}
	}
	return coverURL
}

// doGet executes a GET with the Referer header the API requires.
func (a *Adapter) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Referer", "https://y.qq.com")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameQQMusic, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameQQMusic,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
