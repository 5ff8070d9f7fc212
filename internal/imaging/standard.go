package imaging

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// Standard encodes JPEG and PNG without cgo. WebP needs the OpenCV encoder.
type Standard struct{}

func (Standard) Supports(e camera.Encoding) bool {
	return e == camera.EncodingJPEG || e == camera.EncodingPNG
}

func (Standard) Encode(raw Raw, f camera.ImageFormat) ([]byte, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	switch f.Encoding {
	case camera.EncodingJPEG:
		if err := jpeg.Encode(&buf, raw.Image(), &jpeg.Options{Quality: JPEGQuality(f.Compression)}); err != nil {
			return nil, fmt.Errorf("imaging: jpeg encode: %w", err)
		}
	case camera.EncodingPNG:
		enc := png.Encoder{CompressionLevel: pngCompression(PNGLevel(f.Compression))}
		if err := enc.Encode(&buf, raw.Image()); err != nil {
			return nil, fmt.Errorf("imaging: png encode: %w", err)
		}
	default:
		return nil, fmt.Errorf("imaging: %s not supported without opencv", f.Encoding)
	}
	return buf.Bytes(), nil
}

// pngCompression folds a zlib level onto the four levels image/png offers.
func pngCompression(level int) png.CompressionLevel {
	switch {
	case level == 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}
