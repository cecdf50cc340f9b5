package source

import (
	"context"
	"fmt"
)

// SourceName uniquely identifies a metadata catalog.
type SourceName string

// Known source names.
const (
	NameMusicBrainz SourceName = "musicbrainz"
	NameSpotify     SourceName = "spotify"
	NameNetease     SourceName = "netease"
	NameQQMusic     SourceName = "qqmusic"
)

// AllSourceNames returns all known source names in display order.
func AllSourceNames() []SourceName {
	return []SourceName{
		NameMusicBrainz,
		NameSpotify,
		NameNetease,
		NameQQMusic,
	}
}

// DisplayName returns a human-readable name for the source.
func (n SourceName) DisplayName() string {
	switch n {
	case NameMusicBrainz:
		return "MusicBrainz"
	case NameSpotify:
		return "Spotify"
	case NameNetease:
		return "NetEase Cloud Music"
	case NameQQMusic:
		return "QQ Music"
	default:
		return string(n)
	}
}

// Candidate is one catalog's proposed match for a track query, with an
// unweighted 0-100 confidence from the shared similarity calculator.
// WeightedScore is filled in by the selection engine and is only meaningful
// for ranking candidates of the same query.
type Candidate struct {
	Title         string     `json:"title"`
	Artist        string     `json:"artist"`
	Album         string     `json:"album"`
	Confidence    float64    `json:"confidence"`
	Source        SourceName `json:"source"`
	ReleaseID     string     `json:"release_id,omitempty"`
	CoverURL      string     `json:"cover_url,omitempty"`
	WeightedScore float64    `json:"-"`
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%s - %s (%s) [%.2f] [%s]", c.Artist, c.Title, c.Album, c.Confidence, c.Source)
}

// Source is the interface all catalog adapters must implement.
type Source interface {
	// Name returns the unique source identifier.
	Name() SourceName

	// RequiresAuth returns true if this source needs credentials to function.
	RequiresAuth() bool

	// Search returns the catalog's best match for the given title and
	// optional artist, or (nil, nil) when the catalog has no match.
	Search(ctx context.Context, title, artist string) (*Candidate, error)
}

// CoverQuality selects the size variant a source should return for cover art.
type CoverQuality string

// Known cover quality levels.
const (
	QualityLow    CoverQuality = "low"
	QualityMedium CoverQuality = "medium"
	QualityHigh   CoverQuality = "high"
)

// CoverArt is a fetched cover image.
type CoverArt struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// CoverSource is an optional interface for sources that can serve album
// cover images directly.
type CoverSource interface {
	Source
	FetchCover(ctx context.Context, c *Candidate, quality CoverQuality) (*CoverArt, error)
}

// Lyrics holds lyric text fetched from a source. Translated lyrics, when
// present, are appended to Text under a marker line.
type Lyrics struct {
	Text       string
	Language   string
	Translated bool
}

// LyricsSource is an optional interface for sources that can serve lyrics.
type LyricsSource interface {
	Source
	FetchLyrics(ctx context.Context, c *Candidate) (*Lyrics, error)
}

// ErrSourceUnavailable indicates a transient failure (rate limited, timeout,
// server error).
type ErrSourceUnavailable struct {
	Source SourceName
	Cause  error
}

func (e *ErrSourceUnavailable) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Cause)
}

func (e *ErrSourceUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the catalog has no entry for the query.
type ErrNotFound struct {
	Source SourceName
	Query  string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("source %s: no match for %q", e.Source, e.Query)
}

// ErrAuthRequired indicates the source needs credentials but none are configured.
type ErrAuthRequired struct {
	Source SourceName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("source %s: credentials not configured", e.Source)
}
