// Package imaging normalizes uploaded photos before they are sent to the
// vision model.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height of a processed image.
const MaxDimension = 1024

// MaxBytes is the largest accepted upload.
const MaxBytes = 10 << 20

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var (
	// ErrTooLarge is returned for uploads over MaxBytes.
	ErrTooLarge = fmt.Errorf("image larger than %d bytes", MaxBytes)
	// ErrUnsupported is returned when the sniffed format is not in AllowedMIME.
	ErrUnsupported = errors.New("unsupported image format")
)

// ProcessResult contains the processed image data.
type ProcessResult struct {
	Data       []byte
	MIME       string
	SourceMIME string
	Width      int
	Height     int
}

// Process reads image data, validates the format by sniffing bytes,
// downscales if larger than MaxDimension and re-encodes as JPEG.
// Transparent areas are flattened onto white.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, ErrTooLarge
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := Sniff(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", detected, err)
	}

	img = flatten(downscale(img, MaxDimension))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	bounds := img.Bounds()
	return &ProcessResult{
		Data:       buf.Bytes(),
		MIME:       "image/jpeg",
		SourceMIME: detected,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
	}, nil
}

// Sniff returns the MIME type detected from the leading bytes of data.
func Sniff(data []byte) string {
	return http.DetectContentType(data)
}

// downscale resizes the image so neither dimension exceeds maxDim,
// preserving the aspect ratio. Smaller images are returned unchanged.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(int(float64(h)*float64(maxDim)/float64(w)), 1)
	} else {
		newW = max(int(float64(w)*float64(maxDim)/float64(h)), 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// flatten composites img over an opaque white background.
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
