//go:build opencv

package imaging

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// OpenCV encodes JPEG, PNG and WebP through gocv.
type OpenCV struct{}

// Default returns the OpenCV encoder in builds tagged opencv.
func Default() Encoder { return OpenCV{} }

func (OpenCV) Supports(e camera.Encoding) bool {
	switch e {
	case camera.EncodingJPEG, camera.EncodingPNG, camera.EncodingWebP:
		return true
	default:
		return false
	}
}

func (OpenCV) Encode(raw Raw, f camera.ImageFormat) ([]byte, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}

	matType := gocv.MatTypeCV8UC1
	if raw.Format == RGB8 {
		matType = gocv.MatTypeCV8UC3
	}
	mat, err := gocv.NewMatFromBytes(raw.Height, raw.Width, matType, raw.Pix)
	if err != nil {
		return nil, fmt.Errorf("imaging: wrap pixels: %w", err)
	}
	defer mat.Close()

	src := mat
	if raw.Format == RGB8 {
		bgr := gocv.NewMat()
		defer bgr.Close()
		gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)
		src = bgr
	}

	var (
		ext    gocv.FileExt
		params []int
	)
	switch f.Encoding {
	case camera.EncodingJPEG:
		ext, params = gocv.JPEGFileExt, []int{gocv.IMWriteJpegQuality, JPEGQuality(f.Compression)}
	case camera.EncodingPNG:
		ext, params = gocv.PNGFileExt, []int{gocv.IMWritePngCompression, PNGLevel(f.Compression)}
	case camera.EncodingWebP:
		ext, params = gocv.FileExt(".webp"), []int{gocv.IMWriteWebpQuality, WebPQuality(f.Compression)}
	default:
		return nil, fmt.Errorf("imaging: unsupported encoding %s", f.Encoding)
	}

	buf, err := gocv.IMEncodeWithParams(ext, src, params)
	if err != nil {
		return nil, fmt.Errorf("imaging: %s encode: %w", f.Encoding, err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
