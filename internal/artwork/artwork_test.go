package artwork

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"testing"

	"github.com/tonearm/tonearm/internal/source"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil); err != nil {
		t.Fatalf("encoding jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", encodePNG(t, 4, 4), FormatPNG},
		{"jpeg", encodeJPEG(t, 4, 4), FormatJPEG},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWebP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := DetectFormat(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("DetectFormat: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectFormatUnknown(t *testing.T) {
	_, _, err := DetectFormat(bytes.NewReader([]byte("not an image")))
	if err == nil {
		t.Fatal("DetectFormat accepted garbage")
	}
}

func TestDetectFormatReplay(t *testing.T) {
	data := encodePNG(t, 4, 4)
	_, replay, err := DetectFormat(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DetectFormat: %v", err)
	}
	all, err := io.ReadAll(replay)
	if err != nil {
		t.Fatalf("reading replay: %v", err)
	}
	if !bytes.Equal(all, data) {
		t.Error("replay reader did not return original bytes")
	}
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(bytes.NewReader(encodePNG(t, 640, 480)))
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 640 || h != 480 {
		t.Errorf("Dimensions = %dx%d, want 640x480", w, h)
	}
}

func TestDownscalePassthrough(t *testing.T) {
	data := encodeJPEG(t, 800, 800)
	out, format, err := Downscale(data)
	if err != nil {
		t.Fatalf("Downscale: %v", err)
	}
	if format != FormatJPEG {
		t.Errorf("format = %q, want jpeg", format)
	}
	if !bytes.Equal(out, data) {
		t.Error("image within bounds was re-encoded")
	}
}

func TestDownscaleShrinksLargeImage(t *testing.T) {
	out, format, err := Downscale(encodeJPEG(t, 2400, 1200))
	if err != nil {
		t.Fatalf("Downscale: %v", err)
	}
	if format != FormatJPEG {
		t.Errorf("format = %q, want jpeg", format)
	}
	w, h, err := Dimensions(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 1200 || h != 600 {
		t.Errorf("downscaled to %dx%d, want 1200x600", w, h)
	}
}

func TestFitDimensions(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH, wantW, wantH int
	}{
		{100, 100, 1200, 1200, 100, 100},
		{2400, 1200, 1200, 1200, 1200, 600},
		{1200, 2400, 1200, 1200, 600, 1200},
		{1201, 1201, 1200, 1200, 1200, 1200},
	}
	for _, tt := range tests {
		gotW, gotH := fitDimensions(tt.w, tt.h, tt.maxW, tt.maxH)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("fitDimensions(%d, %d) = %dx%d, want %dx%d",
				tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

type fakeCoverSource struct {
	failures int
	calls    int
	data     []byte
	err      error
}

func (f *fakeCoverSource) Name() source.SourceName { return source.NameNetease }
func (f *fakeCoverSource) RequiresAuth() bool      { return false }
func (f *fakeCoverSource) Search(context.Context, string, string) (*source.Candidate, error) {
	return nil, nil
}

func (f *fakeCoverSource) FetchCover(_ context.Context, c *source.Candidate, _ source.CoverQuality) (*source.CoverArt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.calls <= f.failures {
		return nil, &source.ErrSourceUnavailable{Source: c.Source, Cause: errors.New("flaky")}
	}
	return &source.CoverArt{Data: f.data, MIMEType: "image/png"}, nil
}

func TestDownloaderRetriesTransientFailure(t *testing.T) {
	cs := &fakeCoverSource{failures: 1, data: encodePNG(t, 100, 100)}
	d := NewDownloader(testLogger())
	cand := &source.Candidate{Title: "x", Source: source.NameNetease}

	art, err := d.Fetch(context.Background(), cs, cand, source.QualityHigh)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cs.calls != 2 {
		t.Errorf("calls = %d, want 2", cs.calls)
	}
	if art.Width != 100 || art.Height != 100 {
		t.Errorf("dimensions = %dx%d, want 100x100", art.Width, art.Height)
	}
	if art.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q, want image/png", art.MIMEType)
	}
}

func TestDownloaderPermanentFailure(t *testing.T) {
	cs := &fakeCoverSource{err: &source.ErrNotFound{Source: source.NameNetease, Query: "x"}}
	d := NewDownloader(testLogger())
	cand := &source.Candidate{Title: "x", Source: source.NameNetease}

	_, err := d.Fetch(context.Background(), cs, cand, source.QualityHigh)
	if err == nil {
		t.Fatal("Fetch succeeded, want error")
	}
	if cs.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", cs.calls)
	}
}
