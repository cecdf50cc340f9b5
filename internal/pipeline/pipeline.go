// Package pipeline drives the per-file tagging flow: resolve metadata,
// write tags, embed cover art, save lyrics, and organize the result into
// the library.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tonearm/tonearm/internal/library"
	"github.com/tonearm/tonearm/internal/scanner"
	"github.com/tonearm/tonearm/internal/source"
)

// Status describes the outcome of processing one file.
type Status string

const (
	StatusTagged   Status = "tagged"
	StatusSkipped  Status = "skipped"
	StatusNoMatch  Status = "no_match"
	StatusDeclined Status = "declined"
	StatusFailed   Status = "failed"
)

// Result reports what happened to one file.
type Result struct {
	Path      string
	FinalPath string
	Status    Status
	Candidate *source.Candidate
	Err       error
}

// Summary aggregates results over a directory run.
type Summary struct {
	Tagged   int
	Skipped  int
	NoMatch  int
	Declined int
	Failed   int
}

// Total returns the number of files seen.
func (s Summary) Total() int {
	return s.Tagged + s.Skipped + s.NoMatch + s.Declined + s.Failed
}

func (s *Summary) add(r Result) {
	switch r.Status {
	case StatusTagged:
		s.Tagged++
	case StatusSkipped:
		s.Skipped++
	case StatusNoMatch:
		s.NoMatch++
	case StatusDeclined:
		s.Declined++
	default:
		s.Failed++
	}
}

// Resolver finds the best metadata candidate for a query, nil when there is
// no acceptable match.
type Resolver interface {
	Resolve(ctx context.Context, title, artist string) *source.Candidate
}

// Tagger writes metadata into audio files.
type Tagger interface {
	WriteTags(path string, c *source.Candidate) error
	EmbedCover(path string, art *source.CoverArt) error
	WriteLyricsSidecar(audioPath string, lyr *source.Lyrics) (string, error)
}

// Organizer places tagged files into the library tree.
type Organizer interface {
	Place(srcPath string, c *source.Candidate) (string, error)
	PlaceSidecar(sidecarPath, placedAudioPath string) (string, error)
}

// CoverFetcher downloads and normalizes cover art.
type CoverFetcher interface {
	Fetch(ctx context.Context, cs source.CoverSource, c *source.Candidate, quality source.CoverQuality) (*source.CoverArt, error)
}

// Tracker persists per-file processing state.
type Tracker interface {
	IsProcessed(ctx context.Context, path, hash string) (bool, error)
	Record(ctx context.Context, f *library.TrackedFile) error
	PruneMissing(ctx context.Context) (int, error)
}

// ConfirmFunc asks whether a candidate should be applied to a file.
type ConfirmFunc func(path string, c *source.Candidate) bool

// Options configure optional pipeline stages.
type Options struct {
	EmbedCovers  bool
	CoverQuality source.CoverQuality
	WriteLyrics  bool
	Organize     bool
	Confirm      ConfirmFunc // nil applies every match
}

// Pipeline processes audio files end to end.
type Pipeline struct {
	scanner   *scanner.Scanner
	resolver  Resolver
	registry  *source.Registry
	tagger    Tagger
	organizer Organizer
	covers    CoverFetcher
	tracker   Tracker // optional
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline. The tracker may be nil, disabling skip-on-rerun.
func New(sc *scanner.Scanner, res Resolver, reg *source.Registry, tg Tagger, org Organizer, covers CoverFetcher, tracker Tracker, opts Options, logger *slog.Logger) *Pipeline {
	if opts.CoverQuality == "" {
		opts.CoverQuality = source.QualityHigh
	}
	return &Pipeline{
		scanner:   sc,
		resolver:  res,
		registry:  reg,
		tagger:    tg,
		organizer: org,
		covers:    covers,
		tracker:   tracker,
		opts:      opts,
		logger:    logger.With(slog.String("component", "pipeline")),
	}
}

// ProcessDirectory scans dir and processes every audio file found, returning
// per-file results and an aggregate summary. Processing continues past
// individual failures.
func (p *Pipeline) ProcessDirectory(ctx context.Context, dir string) ([]Result, Summary, error) {
	files, err := p.scanner.Scan(ctx, dir)
	if err != nil {
		return nil, Summary{}, err
	}

	var results []Result
	var summary Summary
	for _, path := range files {
		if ctx.Err() != nil {
			return results, summary, ctx.Err()
		}
		r := p.ProcessFile(ctx, path)
		summary.add(r)
		results = append(results, r)
	}

	if p.tracker != nil {
		pruned, err := p.tracker.PruneMissing(ctx)
		if err != nil {
			p.logger.Warn("pruning tracked files failed",
				slog.String("error", err.Error()))
		} else if pruned > 0 {
			p.logger.Info("pruned records for files no longer on disk",
				slog.Int("count", pruned))
		}
	}

	p.logger.Info("directory processed",
		slog.String("dir", dir),
		slog.Int("tagged", summary.Tagged),
		slog.Int("skipped", summary.Skipped),
		slog.Int("no_match", summary.NoMatch),
		slog.Int("failed", summary.Failed))
	return results, summary, nil
}

// ProcessFile runs the full flow for one file. Errors in optional stages
// (covers, lyrics) are logged and do not fail the file.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Result {
	res := Result{Path: path, FinalPath: path}

	info, err := os.Stat(path)
	if err != nil {
		res.Status = StatusFailed
		res.Err = fmt.Errorf("stat: %w", err)
		return res
	}

	var hash string
	if p.tracker != nil {
		hash, err = library.FileHash(path)
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			return res
		}
		done, err := p.tracker.IsProcessed(ctx, path, hash)
		if err != nil {
			p.logger.Warn("tracker lookup failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		} else if done {
			p.logger.Debug("file unchanged since last run", slog.String("path", path))
			res.Status = StatusSkipped
			return res
		}
	}

	artist, title := scanner.ParseFilename(path)
	cand := p.resolver.Resolve(ctx, title, artist)
	if cand == nil {
		p.logger.Info("no confident match",
			slog.String("path", path),
			slog.String("title", title),
			slog.String("artist", artist))
		res.Status = StatusNoMatch
		return res
	}
	res.Candidate = cand

	if p.opts.Confirm != nil && !p.opts.Confirm(path, cand) {
		res.Status = StatusDeclined
		return res
	}

	if err := p.tagger.WriteTags(path, cand); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	if p.opts.EmbedCovers {
		p.embedCover(ctx, path, cand)
	}

	var lrcPath string
	if p.opts.WriteLyrics {
		lrcPath = p.writeLyrics(ctx, path, cand)
	}

	if p.opts.Organize && p.organizer != nil {
		placed, err := p.organizer.Place(path, cand)
		if err != nil {
			res.Status = StatusFailed
			res.Err = err
			return res
		}
		res.FinalPath = placed
		if lrcPath != "" {
			if _, err := p.organizer.PlaceSidecar(lrcPath, placed); err != nil {
				p.logger.Warn("moving lyrics sidecar failed",
					slog.String("path", lrcPath),
					slog.String("error", err.Error()))
			}
		}
	}

	if p.tracker != nil {
		rec := &library.TrackedFile{
			Path:        res.FinalPath,
			Hash:        hash,
			Size:        info.Size(),
			MTime:       info.ModTime().UTC(),
			Title:       cand.Title,
			Artist:      cand.Artist,
			Album:       cand.Album,
			MatchSource: string(cand.Source),
			Confidence:  cand.Confidence,
		}
		if err := p.tracker.Record(ctx, rec); err != nil {
			p.logger.Warn("recording tracked file failed",
				slog.String("path", res.FinalPath),
				slog.String("error", err.Error()))
		}
	}

	p.logger.Info("file tagged",
		slog.String("path", path),
		slog.String("title", cand.Title),
		slog.String("artist", cand.Artist),
		slog.String("source", string(cand.Source)),
		slog.Float64("confidence", cand.Confidence))
	res.Status = StatusTagged
	return res
}

func (p *Pipeline) embedCover(ctx context.Context, path string, cand *source.Candidate) {
	adapter := p.registry.Get(cand.Source)
	if adapter == nil {
		return
	}
	cs, ok := adapter.(source.CoverSource)
	if !ok {
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	art, err := p.covers.Fetch(fetchCtx, cs, cand, p.opts.CoverQuality)
	if err != nil {
		p.logger.Warn("cover fetch failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	if err := p.tagger.EmbedCover(path, art); err != nil {
		p.logger.Warn("cover embed failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (p *Pipeline) writeLyrics(ctx context.Context, path string, cand *source.Candidate) string {
	adapter := p.registry.Get(cand.Source)
	if adapter == nil {
		return ""
	}
	ls, ok := adapter.(source.LyricsSource)
	if !ok {
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	lyr, err := ls.FetchLyrics(fetchCtx, cand)
	if err != nil {
		p.logger.Warn("lyrics fetch failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return ""
	}
	lrcPath, err := p.tagger.WriteLyricsSidecar(path, lyr)
	if err != nil {
		p.logger.Warn("lyrics write failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return ""
	}
	return lrcPath
}
