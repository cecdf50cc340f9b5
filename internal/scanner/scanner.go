// Package scanner discovers audio files and derives search queries from
// their names.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// audioExtensions lists the formats the pipeline can process.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
}

var trackNumberPrefix = regexp.MustCompile(`^\d+\.\s*`)

// Scanner walks directories for audio files.
type Scanner struct {
	logger *slog.Logger
}

// New creates a scanner.
func New(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger.With(slog.String("component", "scanner"))}
}

// Scan returns the audio files under dir in sorted order, descending into
// subdirectories. The context is checked between entries so large trees can
// be interrupted.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		if IsAudioFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	sort.Strings(files)

	s.logger.Debug("scan completed",
		slog.String("dir", dir),
		slog.Int("files", len(files)))
	return files, nil
}

// IsAudioFile reports whether the path has a supported audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// ParseFilename derives (artist, title) from an audio file name. A leading
// track number ("07. ") is stripped, then the name splits once on " - " into
// artist and title. Without a separator the whole name is the title and the
// artist is empty.
func ParseFilename(path string) (artist, title string) {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = trackNumberPrefix.ReplaceAllString(name, "")

	parts := strings.SplitN(name, " - ", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", strings.TrimSpace(name)
}
