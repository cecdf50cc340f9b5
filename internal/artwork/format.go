package artwork

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Supported image format names.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// maxCoverEdge caps embedded cover dimensions. Larger downloads are scaled
// down before tagging so players with small tag buffers still load them.
const maxCoverEdge = 1200

// DetectFormat reads the first bytes from r to identify the image format.
// Returns "jpeg", "png", or "webp". The returned reader replays the consumed bytes.
func DetectFormat(r io.Reader) (format string, replay io.Reader, err error) {
	buf := make([]byte, 12)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	buf = buf[:n]

	replay = io.MultiReader(bytes.NewReader(buf), r)

	if n >= 3 && buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF {
		return FormatJPEG, replay, nil
	}
	if n >= 8 && string(buf[:8]) == "\x89PNG\r\n\x1a\n" {
		return FormatPNG, replay, nil
	}
	if n >= 12 && string(buf[:4]) == "RIFF" && string(buf[8:12]) == "WEBP" {
		return FormatWebP, replay, nil
	}

	return "", replay, fmt.Errorf("unrecognized image format")
}

// MIMEType maps a detected format to its media type. Unknown formats fall
// back to JPEG, the dominant cover format.
func MIMEType(format string) string {
	switch format {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Dimensions decodes only the image header to read width and height.
func Dimensions(r io.Reader) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// Downscale decodes the image from src and scales it to fit within
// maxCoverEdge on both axes, preserving aspect ratio. Images that already
// fit are returned re-encoded only when the input was WebP, which taggers
// cannot embed; otherwise the original bytes pass through untouched.
func Downscale(data []byte) (out []byte, format string, err error) {
	format, replay, err := DetectFormat(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("detecting format: %w", err)
	}

	w, h, err := Dimensions(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	if w <= maxCoverEdge && h <= maxCoverEdge && format != FormatWebP {
		return data, format, nil
	}

	img, _, err := image.Decode(replay)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}

	newW, newH := fitDimensions(w, h, maxCoverEdge, maxCoverEdge)
	if newW != w || newH != h {
		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
		img = dst
	}

	// WebP input is converted to JPEG (no WebP encoder available)
	outFormat := format
	if outFormat == FormatWebP {
		outFormat = FormatJPEG
	}

	out, err = encode(img, outFormat, 85)
	if err != nil {
		return nil, "", err
	}
	return out, outFormat, nil
}

// fitDimensions scales (w, h) to fit within (maxW, maxH) preserving aspect ratio.
func fitDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	newW := int(float64(w) * ratio)
	newH := int(float64(h) * ratio)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

func encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding JPEG: %w", err)
		}
	}
	return buf.Bytes(), nil
}
