// Package camera defines the data model of the gateway and the Driver
// capability interface implemented once per camera family.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIncompleteFrame is returned by GrabFrame when the device delivered an
// incomplete image or the bounded grab timeout elapsed.
var ErrIncompleteFrame = errors.New("camera: incomplete frame")

// GrabTimeout bounds a single hardware grab.
const GrabTimeout = 3 * time.Second

// Info identifies one physical unit. Discovered at enumeration time and never
// mutated afterwards.
type Info struct {
	IPAddress    string `json:"ip_address"`
	SubnetMask   string `json:"subnet_mask"`
	MACAddress   string `json:"mac_address"`
	SerialNumber string `json:"serial_number"`
	ModelName    string `json:"model_name"`
	LinkSpeed    int64  `json:"link_speed"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, serial %s)", i.IPAddress, i.ModelName, i.SerialNumber)
}

// Frame is one grabbed image. Ownership moves from producer to consumer;
// Data is never shared by two holders.
type Frame struct {
	Data       []byte
	Encoding   Encoding
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time
}

// Tuning holds the static transport parameters applied after every connect.
// Nil fields are left at the device default.
type Tuning struct {
	PacketSize              *int64
	PacketDelay             *int64
	PacketResend            *bool
	PacketResendTimeout     *int64
	PacketResendMaxRequests *int64
	ReverseX                *bool
}

// State is the driver's connection/capture state.
//
//	Disconnected -> Connecting -> Idle <-> Streaming
//	      ^              |          |
//	      +--------------+----------+
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdle
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Connected reports whether a device handle is open.
func (s State) Connected() bool {
	return s == StateIdle || s == StateStreaming
}

// Driver is the capability interface of one camera family.
//
// Every property operation either works or answers a *status.Error of kind
// Unimplemented (reads) or Unsupported (writes); absence is an outcome, not a
// crash. Embed Unimplemented to get those defaults.
//
// Connect performs a single attempt; the retry bound is owned by the
// supervisor. StartCapture and StopCapture are idempotent. Capture
// transitions and Disconnect are exclusive with every other operation on the
// same handle. Property operations issued while Disconnected or Connecting
// fail fast with FailedPrecondition.
type Driver interface {
	FindDevices(ctx context.Context) ([]Info, error)
	Connect(ctx context.Context, info Info) error
	Disconnect() error
	StartCapture() error
	StopCapture() error
	// GrabFrame blocks for at most GrabTimeout.
	GrabFrame(ctx context.Context) (Frame, error)

	// ApplyTuning writes every set field of t. Each failure is independent;
	// the returned error aggregates them.
	ApplyTuning(t Tuning) error

	Properties
}

// Properties is the configurable surface of a driver, grouped the way
// Config is. Every getter and setter is independent of the others.
type Properties interface {
	State() State

	Resolution() (Resolution, error)
	SetResolution(r Resolution) error
	ColorSpace() (ColorSpace, error)
	SetColorSpace(c ColorSpace) error
	Format() (ImageFormat, error)
	SetFormat(f ImageFormat) error
	RegionOfInterest() (BoundingPoly, error)
	SetRegionOfInterest(p BoundingPoly) error

	SamplingRate() (float64, error)
	SetSamplingRate(hz float64) error
	Delay() (float64, error)
	SetDelay(seconds float64) error

	Setting(n SettingName) (Setting, error)
	SetSetting(n SettingName, s Setting) error
}
