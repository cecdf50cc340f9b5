// Package tagger writes resolved metadata into audio files: text tags
// through taglib, cover art through format-specific embedders, and lyrics
// as .lrc sidecar files.
package tagger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	flac "github.com/go-flac/go-flac"
	"go.senan.xyz/taglib"

	"github.com/tonearm/tonearm/internal/source"
)

// Tagger applies candidate metadata to audio files.
type Tagger struct {
	logger *slog.Logger
}

// New creates a tagger.
func New(logger *slog.Logger) *Tagger {
	return &Tagger{logger: logger.With(slog.String("component", "tagger"))}
}

// WriteTags writes the candidate's title, artist, and album into the file's
// native tag format. Empty fields are left untouched.
func (t *Tagger) WriteTags(path string, c *source.Candidate) error {
	tags := make(map[string][]string)

	if c.Title != "" {
		tags[taglib.Title] = []string{c.Title}
	}
	if c.Artist != "" {
		tags[taglib.Artist] = []string{c.Artist}
	}
	if c.Album != "" {
		tags[taglib.Album] = []string{c.Album}
	}
	if len(tags) == 0 {
		return nil
	}

	if err := taglib.WriteTags(path, tags, 0); err != nil {
		return fmt.Errorf("writing tags to %s: %w", path, err)
	}

	t.logger.Debug("tags written",
		slog.String("path", path),
		slog.String("title", c.Title),
		slog.String("artist", c.Artist))
	return nil
}

// EmbedCover embeds cover art into the file. MP3 and FLAC get native
// embedding; other formats are skipped with a debug log.
func (t *Tagger) EmbedCover(path string, art *source.CoverArt) error {
	if art == nil || len(art.Data) == 0 {
		return nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return t.embedMP3(path, art)
	case ".flac":
		return t.embedFLAC(path, art)
	default:
		t.logger.Debug("cover embedding not supported for format",
			slog.String("path", path))
		return nil
	}
}

func (t *Tagger) embedMP3(path string, art *source.CoverArt) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("opening mp3 tag: %w", err)
	}
	defer tag.Close() //nolint:errcheck

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    art.MIMEType,
		PictureType: id3v2.PTFrontCover,
		Description: "Front Cover",
		Picture:     art.Data,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("saving mp3 tag: %w", err)
	}
	return nil
}

func (t *Tagger) embedFLAC(path string, art *source.CoverArt) error {
	f, err := flac.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing flac: %w", err)
	}

	// Drop existing PICTURE blocks so the new cover replaces, not stacks.
	var kept []*flac.MetaDataBlock
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}
	f.Meta = kept

	picture, err := flacpicture.NewFromImageData(
		flacpicture.PictureTypeFrontCover, "Front Cover", art.Data, art.MIMEType)
	if err != nil {
		picture, err = flacpicture.NewFromImageData(
			flacpicture.PictureTypeOther, "Cover Art", art.Data, art.MIMEType)
		if err != nil {
			return fmt.Errorf("building picture block: %w", err)
		}
	}
	block := picture.Marshal()
	f.Meta = append(f.Meta, &block)

	if err := f.Save(path); err != nil {
		return fmt.Errorf("saving flac: %w", err)
	}
	return nil
}

// WriteLyricsSidecar writes lyrics next to the audio file with the same base
// name and an .lrc extension. Existing sidecars are overwritten.
func (t *Tagger) WriteLyricsSidecar(audioPath string, lyr *source.Lyrics) (string, error) {
	if lyr == nil || lyr.Text == "" {
		return "", nil
	}

	lrcPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".lrc"
	if err := os.WriteFile(lrcPath, []byte(lyr.Text), 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("writing lyrics sidecar: %w", err)
	}

	t.logger.Debug("lyrics sidecar written",
		slog.String("path", lrcPath),
		slog.Bool("translated", lyr.Translated))
	return lrcPath, nil
}
