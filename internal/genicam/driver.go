package genicam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/imaging"
	"github.com/labvisio/is-spinnaker-gateway/internal/property"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// Options configures a Driver.
type Options struct {
	// Algorithm demosaics Bayer frames on the host.
	Algorithm Algorithm
	// OnboardColorProcessing makes the RGB colour space use the camera's
	// RGB8Packed output instead of BayerRG8.
	OnboardColorProcessing bool
	// Encoder compresses frames. Defaults to imaging.Default().
	Encoder imaging.Encoder
	// Format is the initial output format. Defaults to JPEG at 0.8.
	Format camera.ImageFormat
	Logger *slog.Logger
}

// Driver implements camera.Driver for GenICam devices.
//
// Locking:
//   - mu is held exclusively by Connect, Disconnect, StartCapture and
//     StopCapture, and shared by every other operation.
//   - nodeMu serialises node map access between property operations.
//   - state is atomic so operations issued during a reconnect fail fast
//     instead of queueing behind the exclusive lock.
type Driver struct {
	camera.Unimplemented

	system System
	opts   Options
	logger *slog.Logger

	mu    sync.RWMutex
	state atomic.Int32

	nodeMu sync.Mutex
	dev    Device
	info   camera.Info
	nodes  *property.Accessor
	stream *property.Accessor
	codec  property.Codec
	format camera.ImageFormat

	seq atomic.Uint64
}

var _ camera.Driver = (*Driver)(nil)

// NewDriver returns a disconnected driver using system.
func NewDriver(system System, opts Options) *Driver {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmBilinear
	}
	if opts.Encoder == nil {
		opts.Encoder = imaging.Default()
	}
	if opts.Format.Encoding == camera.EncodingNone && opts.Format.Compression == 0 {
		opts.Format = camera.ImageFormat{Encoding: camera.EncodingJPEG, Compression: 0.8}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver{
		system: system,
		opts:   opts,
		logger: opts.Logger.With("component", "genicam"),
		format: opts.Format,
	}
}

func (d *Driver) State() camera.State {
	return camera.State(d.state.Load())
}

func (d *Driver) setState(s camera.State) {
	prev := camera.State(d.state.Swap(int32(s)))
	if prev != s {
		d.logger.Debug("driver state changed", "from", prev, "to", s)
	}
}

// FindDevices enumerates the cameras visible to the system and reads their
// transport-layer identification nodes.
func (d *Driver) FindDevices(ctx context.Context) ([]camera.Info, error) {
	devices, err := d.system.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("genicam: enumerate devices: %w", err)
	}
	infos := make([]camera.Info, 0, len(devices))
	for _, dev := range devices {
		info, err := readInfo(property.NewAccessor(dev.TLDevice()))
		if err != nil {
			d.logger.Warn("skipping device with unreadable identification", "error", err)
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func readInfo(tl *property.Accessor) (camera.Info, error) {
	var info camera.Info

	ip, _, err := tl.Int(nodeIPAddress)
	if err != nil {
		return info, err
	}
	info.IPAddress = ipv4(ip)

	if mask, _, err := tl.Int(nodeSubnetMask); err == nil {
		info.SubnetMask = ipv4(mask)
	}
	if mac, _, err := tl.Int(nodeMACAddress); err == nil {
		info.MACAddress = macAddress(mac)
	}
	if speed, _, err := tl.Int(nodeLinkSpeed); err == nil {
		info.LinkSpeed = speed
	}
	if model, err := tl.String(nodeModelName); err == nil {
		info.ModelName = model
	}
	if serial, err := tl.String(nodeSerial); err == nil {
		info.SerialNumber = serial
	}
	return info, nil
}

func ipv4(v int64) string {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).String()
}

func macAddress(v int64) string {
	hw := make(net.HardwareAddr, 6)
	for i := 0; i < 6; i++ {
		hw[i] = byte(v >> (8 * (5 - i)))
	}
	return hw.String()
}

// Connect opens the device whose IP matches info.IPAddress. It performs a
// single attempt: initialise the handle, load the default user set, select
// continuous acquisition and oldest-first buffer handling.
func (d *Driver) Connect(ctx context.Context, info camera.Info) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State().Connected() {
		if d.info.IPAddress == info.IPAddress {
			return nil
		}
		return status.FailedPreconditionf("connect", "driver already connected to %s", d.info.IPAddress)
	}

	d.setState(camera.StateConnecting)
	dev, found, err := d.open(ctx, info)
	if err != nil {
		d.setState(camera.StateDisconnected)
		return err
	}

	nodes := property.NewAccessor(dev.Nodes())
	stream := property.NewAccessor(dev.StreamNodes())
	if err := initialize(nodes, stream); err != nil {
		if derr := dev.DeInit(); derr != nil {
			d.logger.Warn("deinit after failed setup", "error", derr)
		}
		d.setState(camera.StateDisconnected)
		return fmt.Errorf("genicam: setup %s: %w", info.IPAddress, err)
	}

	d.nodeMu.Lock()
	d.dev = dev
	d.info = found
	d.nodes = nodes
	d.stream = stream
	d.codec = property.NewCodec(nodes)
	d.nodeMu.Unlock()

	d.setState(camera.StateIdle)
	d.logger.Info("camera connected",
		"ip", found.IPAddress,
		"model", found.ModelName,
		"serial", found.SerialNumber,
	)
	return nil
}

func (d *Driver) open(ctx context.Context, want camera.Info) (Device, camera.Info, error) {
	devices, err := d.system.Devices(ctx)
	if err != nil {
		return nil, camera.Info{}, status.DeviceError("connect", err)
	}
	for _, dev := range devices {
		info, err := readInfo(property.NewAccessor(dev.TLDevice()))
		if err != nil || info.IPAddress != want.IPAddress {
			continue
		}
		if err := dev.Init(); err != nil {
			return nil, camera.Info{}, status.DeviceError("connect", err)
		}
		return dev, info, nil
	}
	return nil, camera.Info{}, status.DeviceError("connect",
		fmt.Errorf("no camera with ip %s among %d devices", want.IPAddress, len(devices)))
}

func initialize(nodes, stream *property.Accessor) error {
	if err := nodes.SetEnum(nodeUserSetSelector, "Default"); err != nil {
		return err
	}
	if err := nodes.Execute(nodeUserSetLoad); err != nil {
		return err
	}
	if err := nodes.SetEnum(nodeAcquisitionMode, "Continuous"); err != nil {
		return err
	}
	return stream.SetEnum(nodeBufferHandling, "OldestFirst")
}

// Disconnect ends acquisition if needed and releases the handle. It is a
// no-op when already disconnected.
func (d *Driver) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev == nil {
		d.setState(camera.StateDisconnected)
		return nil
	}

	var err error
	if d.State() == camera.StateStreaming || d.dev.IsStreaming() {
		err = multierr.Append(err, d.dev.EndAcquisition())
	}
	err = multierr.Append(err, d.dev.DeInit())

	d.nodeMu.Lock()
	d.dev, d.nodes, d.stream = nil, nil, nil
	d.nodeMu.Unlock()

	d.setState(camera.StateDisconnected)
	d.logger.Info("camera disconnected", "ip", d.info.IPAddress)
	if err != nil {
		return status.DeviceError("disconnect", err)
	}
	return nil
}

// StartCapture begins acquisition. No-op while already streaming.
func (d *Driver) StartCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case camera.StateStreaming:
		return nil
	case camera.StateIdle:
	default:
		return status.FailedPreconditionf("start_capture", "camera is %s", d.State())
	}
	if err := d.dev.BeginAcquisition(); err != nil {
		return status.DeviceError("start_capture", err)
	}
	d.setState(camera.StateStreaming)
	return nil
}

// StopCapture ends acquisition. No-op unless streaming.
func (d *Driver) StopCapture() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() != camera.StateStreaming {
		return nil
	}
	if err := d.dev.EndAcquisition(); err != nil {
		return status.DeviceError("stop_capture", err)
	}
	d.setState(camera.StateIdle)
	return nil
}

// GrabFrame waits up to camera.GrabTimeout for the next image, converts it
// on the host and encodes it with the current format.
//
// Returns camera.ErrIncompleteFrame when the SDK timed out or delivered an
// incomplete buffer; the caller is expected to retry.
func (d *Driver) GrabFrame(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.State() != camera.StateStreaming {
		return camera.Frame{}, status.FailedPreconditionf("grab", "camera is %s", d.State())
	}

	img, err := d.dev.NextImage(camera.GrabTimeout)
	if errors.Is(err, ErrTimeout) {
		return camera.Frame{}, camera.ErrIncompleteFrame
	}
	if err != nil {
		return camera.Frame{}, status.DeviceError("grab", err)
	}
	defer img.Release()

	if img.Incomplete() {
		return camera.Frame{}, camera.ErrIncompleteFrame
	}

	to := imaging.RGB8
	if strings.HasPrefix(img.PixelFormat(), "Mono") {
		to = imaging.Mono8
	}
	raw, err := img.Convert(to, d.opts.Algorithm)
	if err != nil {
		return camera.Frame{}, status.DeviceError("grab", err)
	}

	d.nodeMu.Lock()
	format := d.format
	d.nodeMu.Unlock()

	frame := camera.Frame{
		Encoding:   format.Encoding,
		Width:      raw.Width,
		Height:     raw.Height,
		Seq:        d.seq.Add(1),
		CapturedAt: time.Now(),
	}
	if format.Encoding == camera.EncodingNone {
		frame.Data = raw.Pix
		return frame, nil
	}
	frame.Data, err = d.opts.Encoder.Encode(raw, format)
	if err != nil {
		return camera.Frame{}, status.DeviceError("encode", err)
	}
	return frame, nil
}

// withNodes runs fn with the node maps of a connected device. It fails fast
// when the driver is disconnected or reconnecting.
func (d *Driver) withNodes(op string, fn func() error) error {
	if !d.State().Connected() {
		return status.FailedPreconditionf(op, "camera is %s", d.State())
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.State().Connected() {
		return status.FailedPreconditionf(op, "camera is %s", d.State())
	}

	d.nodeMu.Lock()
	defer d.nodeMu.Unlock()
	return fn()
}

// ApplyTuning writes the transport parameters. Each node is attempted
// independently; failures are logged and aggregated.
func (d *Driver) ApplyTuning(t camera.Tuning) error {
	return d.withNodes("tuning", func() error {
		var errs error
		apply := func(node string, err error) {
			if err != nil {
				d.logger.Warn("failed to apply tuning", "node", node, "error", err)
				errs = multierr.Append(errs, err)
			}
		}
		if t.PacketSize != nil {
			apply(nodePacketSize, d.nodes.SetInt(nodePacketSize, *t.PacketSize))
		}
		if t.PacketDelay != nil {
			apply(nodePacketDelay, d.nodes.SetInt(nodePacketDelay, *t.PacketDelay))
		}
		if t.PacketResend != nil {
			apply(nodeResendEnable, d.stream.SetBool(nodeResendEnable, *t.PacketResend))
		}
		if t.PacketResendTimeout != nil {
			apply(nodeResendTimeout, d.stream.SetInt(nodeResendTimeout, *t.PacketResendTimeout))
		}
		if t.PacketResendMaxRequests != nil {
			apply(nodeResendMaxRequests, d.stream.SetInt(nodeResendMaxRequests, *t.PacketResendMaxRequests))
		}
		if t.ReverseX != nil {
			apply(nodeReverseX, d.nodes.SetBool(nodeReverseX, *t.ReverseX))
		}
		return errs
	})
}

// Info returns the identification of the connected unit.
func (d *Driver) Info() camera.Info {
	d.nodeMu.Lock()
	defer d.nodeMu.Unlock()
	return d.info
}
