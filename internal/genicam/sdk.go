// Package genicam drives GenICam/GigE Vision cameras (the Spinnaker family)
// through the property node abstraction.
//
// The vendor SDK binding sits behind System, Device and Image. Driver turns
// those handles into a camera.Driver: lifecycle and capture control,
// bounded frame grabs, and the per-property mapping onto GenICam nodes.
package genicam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labvisio/is-spinnaker-gateway/internal/imaging"
	"github.com/labvisio/is-spinnaker-gateway/internal/property"
)

// ErrTimeout is returned by Device.NextImage when no image arrived in time.
var ErrTimeout = errors.New("genicam: image timeout")

// System is the process-wide SDK handle. It is acquired once at startup,
// shared by every Driver, and closed at shutdown by its owner.
type System interface {
	Devices(ctx context.Context) ([]Device, error)
	Close() error
}

// Device is one camera handle.
type Device interface {
	// TLDevice is the transport-layer device node map, readable before Init.
	TLDevice() property.NodeMap
	Init() error
	DeInit() error
	// Nodes is the GenICam device node map. Valid between Init and DeInit.
	Nodes() property.NodeMap
	// StreamNodes is the transport-layer stream node map.
	StreamNodes() property.NodeMap

	BeginAcquisition() error
	EndAcquisition() error
	IsStreaming() bool
	// NextImage waits at most timeout; it returns ErrTimeout when nothing
	// arrived.
	NextImage(timeout time.Duration) (Image, error)
}

// Image is a buffer owned by the SDK until Release.
type Image interface {
	Incomplete() bool
	// PixelFormat is the GenICam symbol of the buffer layout, e.g. "BayerRG8".
	PixelFormat() string
	// Convert copies the buffer into host memory, demosaicing Bayer data with
	// alg when to is RGB8.
	Convert(to imaging.PixelFormat, alg Algorithm) (imaging.Raw, error)
	Release()
}

// Algorithm selects host-side colour processing for Bayer frames.
type Algorithm string

const (
	AlgorithmNearestNeighbor           Algorithm = "nearest_neighbor"
	AlgorithmNearestNeighborAverage    Algorithm = "nearest_neighbor_average"
	AlgorithmEdgeSensing               Algorithm = "edge_sensing"
	AlgorithmHQLinear                  Algorithm = "hq_linear"
	AlgorithmBilinear                  Algorithm = "bilinear"
	AlgorithmDirectionalFilter         Algorithm = "directional_filter"
	AlgorithmWeightedDirectionalFilter Algorithm = "weighted_directional_filter"
	AlgorithmRigorous                  Algorithm = "rigorous"
	AlgorithmIPP                       Algorithm = "ipp"
)

// Algorithms lists every supported value.
var Algorithms = []Algorithm{
	AlgorithmNearestNeighbor, AlgorithmNearestNeighborAverage, AlgorithmEdgeSensing,
	AlgorithmHQLinear, AlgorithmBilinear, AlgorithmDirectionalFilter,
	AlgorithmWeightedDirectionalFilter, AlgorithmRigorous, AlgorithmIPP,
}

// ParseAlgorithm accepts any case; empty selects bilinear.
func ParseAlgorithm(s string) (Algorithm, error) {
	if s == "" {
		return AlgorithmBilinear, nil
	}
	a := Algorithm(strings.ToLower(s))
	for _, known := range Algorithms {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("genicam: unknown color processing algorithm %q", s)
}
