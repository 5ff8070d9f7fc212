// Package imaging encodes raw camera pixels into the published frame format.
package imaging

import (
	"fmt"
	"image"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// PixelFormat is the layout of Raw.Pix.
type PixelFormat int

const (
	Mono8 PixelFormat = iota
	RGB8
)

func (p PixelFormat) String() string {
	switch p {
	case Mono8:
		return "mono8"
	case RGB8:
		return "rgb8"
	default:
		return fmt.Sprintf("pixel_format(%d)", int(p))
	}
}

// Channels is the number of bytes per pixel.
func (p PixelFormat) Channels() int {
	if p == RGB8 {
		return 3
	}
	return 1
}

// Raw is an unencoded, tightly packed image.
type Raw struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// Validate checks the buffer size matches the geometry.
func (r Raw) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("imaging: invalid size %dx%d", r.Width, r.Height)
	}
	if want := r.Width * r.Height * r.Format.Channels(); len(r.Pix) != want {
		return fmt.Errorf("imaging: %s buffer has %d bytes, want %d", r.Format, len(r.Pix), want)
	}
	return nil
}

// Image wraps r as an image.Image without copying mono data.
func (r Raw) Image() image.Image {
	rect := image.Rect(0, 0, r.Width, r.Height)
	if r.Format == Mono8 {
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}
	}
	img := image.NewNRGBA(rect)
	for i, j := 0, 0; i < len(r.Pix); i, j = i+3, j+4 {
		img.Pix[j] = r.Pix[i]
		img.Pix[j+1] = r.Pix[i+1]
		img.Pix[j+2] = r.Pix[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// Encoder compresses raw frames.
type Encoder interface {
	// Supports reports whether e can be produced by this encoder.
	Supports(e camera.Encoding) bool
	// Encode compresses raw with f.Compression in (0,1).
	Encode(raw Raw, f camera.ImageFormat) ([]byte, error)
}

// JPEGQuality maps a compression level in (0,1) to a JPEG quality in [1,100].
func JPEGQuality(c float64) int { return clampInt(int(c*100), 1, 100) }

// PNGLevel maps a compression level to a zlib level in [0,9].
func PNGLevel(c float64) int { return clampInt(int(c*9), 0, 9) }

// WebPQuality maps a compression level to a WebP quality in [1,100].
func WebPQuality(c float64) int { return clampInt(int(c*99+1), 1, 100) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
