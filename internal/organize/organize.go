// Package organize places tagged audio files into a structured library tree
// derived from their resolved metadata.
package organize

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tonearm/tonearm/internal/source"
)

// DefaultPattern lays files out as artist/album/title.
const DefaultPattern = "{artist}/{album}/{title}"

const unknownSegment = "Unknown"

// Organizer moves files into a target root following a path pattern. Pattern
// placeholders are {artist}, {album}, and {title}; missing metadata fields
// fall back to "Unknown".
type Organizer struct {
	root    string
	pattern string
	logger  *slog.Logger
}

// New creates an organizer rooted at root. An empty pattern uses DefaultPattern.
func New(root, pattern string, logger *slog.Logger) *Organizer {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Organizer{
		root:    root,
		pattern: pattern,
		logger:  logger.With(slog.String("component", "organize")),
	}
}

// TargetPath computes where a file with the candidate's metadata belongs,
// keeping the source file's extension. The path is not created.
func (o *Organizer) TargetPath(srcPath string, c *source.Candidate) string {
	rel := o.pattern
	rel = strings.ReplaceAll(rel, "{artist}", sanitizeSegment(valueOr(c.Artist, unknownSegment)))
	rel = strings.ReplaceAll(rel, "{album}", sanitizeSegment(valueOr(c.Album, unknownSegment)))
	rel = strings.ReplaceAll(rel, "{title}", sanitizeSegment(valueOr(c.Title, unknownSegment)))
	return filepath.Join(o.root, rel+strings.ToLower(filepath.Ext(srcPath)))
}

// Place moves the file to its computed target, creating directories as
// needed. Existing files at the target are kept; the new file gets a " (N)"
// suffix instead. Returns the final path.
func (o *Organizer) Place(srcPath string, c *source.Candidate) (string, error) {
	target := o.TargetPath(srcPath, c)

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:gosec
		return "", fmt.Errorf("creating target directory: %w", err)
	}

	target = resolveCollision(target)

	if err := moveFile(srcPath, target); err != nil {
		return "", fmt.Errorf("moving %s: %w", srcPath, err)
	}

	o.logger.Info("file organized",
		slog.String("from", srcPath),
		slog.String("to", target))
	return target, nil
}

// PlaceSidecar moves a sidecar file (such as lyrics) next to the already
// placed audio file, matching its base name.
func (o *Organizer) PlaceSidecar(sidecarPath, placedAudioPath string) (string, error) {
	target := strings.TrimSuffix(placedAudioPath, filepath.Ext(placedAudioPath)) +
		strings.ToLower(filepath.Ext(sidecarPath))
	if err := moveFile(sidecarPath, target); err != nil {
		return "", fmt.Errorf("moving sidecar %s: %w", sidecarPath, err)
	}
	return target, nil
}

// resolveCollision returns the first free variant of target, appending
// " (1)", " (2)", ... before the extension while the name is taken.
func resolveCollision(target string) string {
	if _, err := os.Stat(target); os.IsNotExist(err) {
		return target
	}
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// sanitizeSegment strips path separators and characters that are invalid on
// common filesystems from a single path segment.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	s = replacer.Replace(s)
	// Trailing dots and spaces break Windows shares.
	s = strings.TrimRight(s, ". ")
	if s == "" {
		return unknownSegment
	}
	return s
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// moveFile attempts os.Rename first, then falls back to copy+delete for
// cross-device moves.
func moveFile(oldPath, newPath string) error {
	err := os.Rename(oldPath, newPath)
	if err == nil {
		return nil
	}
	if copyErr := copyFile(oldPath, newPath); copyErr != nil {
		return fmt.Errorf("copy fallback: %w (rename error: %w)", copyErr, err)
	}
	return os.Remove(oldPath)
}

// copyFile copies a file and flushes with fsync before closing.
func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // paths come from the pipeline, not user input
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck

	out, err := os.Create(dst) //nolint:gosec
	if err != nil {
		return err
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	return out.Close()
}
