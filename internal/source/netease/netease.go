package netease

import (
	"context"
	"crypto/md5" //nolint:gosec // legacy API signing scheme, not security-sensitive
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tonearm/tonearm/internal/source"
)

const defaultBaseURL = "https://music.163.com/api"

// Cover size parameters appended to NetEase image URLs per quality level.
var coverParams = map[source.CoverQuality]string{
	source.QualityLow:    "?param=200y200",
	source.QualityMedium: "?param=400y400",
	source.QualityHigh:   "?param=1000y1000",
}

// Adapter implements source.Source for the NetEase Cloud Music API. It also
// serves sized cover images and lyrics (including translated variants).
// A candidate's ReleaseID carries the NetEase song ID for lyric lookups.
type Adapter struct {
	client    *http.Client
	limiter   *source.RateLimiterMap
	logger    *slog.Logger
	baseURL   string
	apiSecret string
}

// New creates a NetEase adapter. The API secret is optional; without it
// requests are sent unsigned.
func New(limiter *source.RateLimiterMap, logger *slog.Logger, apiSecret string) *Adapter {
	a := NewWithBaseURL(limiter, logger, defaultBaseURL)
	a.apiSecret = apiSecret
	return a
}

// NewWithBaseURL creates a NetEase adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *source.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("source", "netease")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the source identifier.
func (a *Adapter) Name() source.SourceName { return source.NameNetease }

// RequiresAuth returns false; the public search endpoints need no account.
func (a *Adapter) RequiresAuth() bool { return false }

// Search queries the song index and returns the top hit as a scored
// candidate, or (nil, nil) when nothing matches.
func (a *Adapter) Search(ctx context.Context, title, artist string) (*source.Candidate, error) {
	if err := a.limiter.Wait(ctx, source.NameNetease); err != nil {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameNetease,
			Cause:  fmt.Errorf("rate limiter: %w", err),
		}
	}

	query := title
	if artist != "" {
		query = artist + " " + title
	}
	form := a.signedParams(map[string]any{
		"s":      query,
		"type":   1, // songs
		"offset": 0,
		"limit":  5,
	})

	body, err := a.doPost(ctx, a.baseURL+"/search/get", form)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if len(resp.Result.Songs) == 0 {
		return nil, nil
	}

	best := resp.Result.Songs[0]
	cand := &source.Candidate{
		Title:     best.Name,
		Album:     best.Album.Name,
		Source:    source.NameNetease,
		ReleaseID: strconv.FormatInt(best.ID, 10),
	}
	if len(best.Artists) > 0 {
		cand.Artist = best.Artists[0].Name
	}
	if best.Album.PicURL != "" {
		cand.CoverURL = normalizeURL(best.Album.PicURL)
	}
	cand.Confidence = source.Confidence(title, artist, cand.Title, cand.Artist)

	a.logger.Debug("song search completed",
		slog.String("title", title),
		slog.Float64("confidence", cand.Confidence))

	return cand, nil
}

// FetchCover downloads the candidate's album cover at the requested size.
// NetEase serves arbitrary sizes through a URL parameter.
func (a *Adapter) FetchCover(ctx context.Context, c *source.Candidate, quality source.CoverQuality) (*source.CoverArt, error) {
	if c.CoverURL == "" {
		return nil, &source.ErrNotFound{Source: source.NameNetease, Query: c.Title}
	}

	param, ok := coverParams[quality]
	if !ok {
		param = coverParams[source.QualityMedium]
	}
	coverURL := strings.SplitN(c.CoverURL, "?", 2)[0] + param

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameNetease, Cause: err}
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

// FetchLyrics retrieves lyrics for the candidate's song ID. A translated
// version, when available, is appended under a marker line.
func (a *Adapter) FetchLyrics(ctx context.Context, c *source.Candidate) (*source.Lyrics, error) {
	if c.ReleaseID == "" {
		return nil, &source.ErrNotFound{Source: source.NameNetease, Query: c.Title}
	}

	songID, err := strconv.ParseInt(c.ReleaseID, 10, 64)
	if err != nil {
		return nil, &source.ErrNotFound{Source: source.NameNetease, Query: c.ReleaseID}
	}

	form := a.signedParams(map[string]any{
		"id": songID,
		"lv": 1,
		"kv": 1,
		"tv": -1,
	})

	body, err := a.doPost(ctx, a.baseURL+"/lyric", form)
	if err != nil {
		return nil, err
	}

	var resp lyricResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing lyric response: %w", err)
	}
	if resp.Lrc.Lyric == "" {
		return nil, nil
	}

	lyr := &source.Lyrics{
		Text:     resp.Lrc.Lyric,
		Language: "zh-CN",
	}
	if resp.Tlyric.Lyric != "" {
		lyr.Text += "\n[translated]\n" + resp.Tlyric.Lyric
		lyr.Translated = true
	}
	return lyr, nil
}

// signedParams wraps a request payload in the legacy form encoding: the JSON
// body base64-encoded under "params" with a millisecond timestamp, plus an
// MD5 signature when an API secret is configured.
func (a *Adapter) signedParams(payload map[string]any) url.Values {
	body, _ := json.Marshal(payload) //nolint:errcheck // map of scalars cannot fail

	form := url.Values{}
	form.Set("params", base64.StdEncoding.EncodeToString(body))
	form.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	if a.apiSecret != "" {
		raw := form.Get("params") + form.Get("timestamp") + a.apiSecret
		sum := md5.Sum([]byte(raw)) //nolint:gosec // see import comment
		form.Set("sign", hex.EncodeToString(sum[:]))
	}
	return form
}

// doPost executes a form POST and returns the response body.
func (a *Adapter) doPost(ctx context.Context, reqURL string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", "https://music.163.com")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &source.ErrSourceUnavailable{Source: source.NameNetease, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, &source.ErrSourceUnavailable{
			Source: source.NameNetease,
			Cause:  fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// normalizeURL upgrades plain-HTTP image links to HTTPS.
func normalizeURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
