// Package sim is an in-memory GenICam system. It models the node maps of a
// Blackfly-style GigE camera, including ranges that depend on each other,
// nodes that lock while streaming, and a default user set that resets every
// setting on load. The gateway runs against it with driver "simulated" and
// the tests use it in place of hardware.
package sim

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labvisio/is-spinnaker-gateway/internal/genicam"
	"github.com/labvisio/is-spinnaker-gateway/internal/imaging"
	"github.com/labvisio/is-spinnaker-gateway/internal/property"
)

// Camera describes one simulated unit.
type Camera struct {
	IP        string
	Serial    string
	Model     string
	Width     int64
	Height    int64
	LinkSpeed int64
	// IncompleteEvery marks every n-th image incomplete; 0 disables.
	IncompleteEvery int
}

func (c *Camera) defaults() {
	if c.Model == "" {
		c.Model = "Blackfly S BFS-PGE-16S2C"
	}
	if c.Serial == "" {
		c.Serial = "20000000"
	}
	if c.Width == 0 {
		c.Width = 1440
	}
	if c.Height == 0 {
		c.Height = 1080
	}
	if c.LinkSpeed == 0 {
		c.LinkSpeed = 125000000
	}
}

// System holds the simulated cameras. Devices returns the same handles on
// every call, so state survives reconnects just as it does on hardware.
type System struct {
	mu      sync.Mutex
	devices []*Device
	closed  bool
}

// NewSystem creates a system with one device per camera.
func NewSystem(cameras ...Camera) *System {
	s := &System{}
	for _, c := range cameras {
		s.devices = append(s.devices, NewDevice(c))
	}
	return s
}

func (s *System) Devices(ctx context.Context) ([]genicam.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("sim: system released")
	}
	out := make([]genicam.Device, len(s.devices))
	for i, d := range s.devices {
		out[i] = d
	}
	return out, nil
}

// Device returns the simulated device with the given IP, or nil.
func (s *System) Device(ip string) *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.devices {
		if d.cam.IP == ip {
			return d
		}
	}
	return nil
}

func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Device is one simulated camera handle.
type Device struct {
	cam Camera

	tl     *property.MemoryNodeMap
	nodes  *property.MemoryNodeMap
	stream *property.MemoryNodeMap

	mu          sync.Mutex
	initialized bool
	streaming   bool
	lastImage   time.Time
	frames      uint64

	failInit atomic.Int32
	inits    atomic.Int32

	// per-channel white balance ratios behind BalanceRatioSelector
	balance map[string]float64

	// algorithm passed to the most recent Convert
	converted atomic.Pointer[genicam.Algorithm]
}

// NewDevice builds a device with factory-default node maps.
func NewDevice(c Camera) *Device {
	c.defaults()
	d := &Device{
		cam:    c,
		tl:     property.NewMemoryNodeMap(),
		nodes:  property.NewMemoryNodeMap(),
		stream: property.NewMemoryNodeMap(),
	}
	d.defineTL()
	d.defineDevice()
	d.defineStream()
	return d
}

// FailInit makes the next n Init calls fail.
func (d *Device) FailInit(n int) { d.failInit.Store(int32(n)) }

// Inits returns how many times Init was attempted.
func (d *Device) Inits() int { return int(d.inits.Load()) }

// LastAlgorithm returns the colour processing requested by the most recent
// conversion, or "" before the first one.
func (d *Device) LastAlgorithm() genicam.Algorithm {
	if alg := d.converted.Load(); alg != nil {
		return *alg
	}
	return ""
}

// NodeMap exposes the device node map for assertions and fault injection.
func (d *Device) NodeMap() *property.MemoryNodeMap { return d.nodes }

// StreamNodeMap exposes the stream node map.
func (d *Device) StreamNodeMap() *property.MemoryNodeMap { return d.stream }

func (d *Device) defineTL() {
	ip := net.ParseIP(d.cam.IP).To4()
	var ipv int64
	if ip != nil {
		ipv = int64(ip[0])<<24 | int64(ip[1])<<16 | int64(ip[2])<<8 | int64(ip[3])
	}
	readOnly := func(name string, v int64) {
		d.tl.Define(name, property.MemoryNode{Kind: property.KindInt, Readable: true, Int: v, Max: float64(v)})
	}
	readOnly("GevDeviceIPAddress", ipv)
	readOnly("GevDeviceSubnetMask", 0xffffff00)
	readOnly("GevDeviceMACAddress", 0x2c_dd_a3_00_00_00|ipv&0xffffff)
	readOnly("DeviceLinkSpeed", d.cam.LinkSpeed)
	d.tl.DefineString("DeviceModelName", d.cam.Model, false)
	d.tl.DefineString("DeviceSerialNumber", d.cam.Serial, false)
}

func (d *Device) defineDevice() {
	n := d.nodes
	w, h := d.cam.Width, d.cam.Height

	n.DefineEnum("UserSetSelector", "Default", "Default", "UserSet0", "UserSet1")
	n.DefineCommand("UserSetLoad", d.loadDefaultUserSet)
	n.DefineEnum("AcquisitionMode", "Continuous", "Continuous", "SingleFrame", "MultiFrame")
	n.DefineEnum("PixelFormat", "BayerRG8", "Mono8", "BayerRG8", "RGB8Packed")

	n.DefineInt("Width", w, 16, w)
	n.DefineInt("Height", h, 16, h)
	n.DefineInt("OffsetX", 0, 0, 0)
	n.DefineInt("OffsetY", 0, 0, 0)
	n.DefineInt("WidthMax", w, w, w)
	n.DefineInt("HeightMax", h, h, h)
	n.Update("WidthMax", func(m *property.MemoryNode) { m.Writable = false })
	n.Update("HeightMax", func(m *property.MemoryNode) { m.Writable = false })
	d.linkWindow("Width", "OffsetX", w)
	d.linkWindow("Height", "OffsetY", h)

	n.DefineBool("AcquisitionFrameRateEnable", false)
	n.DefineFloat("AcquisitionFrameRate", 30, 1, 226)

	n.DefineFloat("BlackLevel", 0, 0, 10)
	n.DefineEnum("GainAuto", "Continuous", "Off", "Once", "Continuous")
	n.DefineFloat("Gain", 0, 0, 47.99)
	n.DefineEnum("ExposureAuto", "Continuous", "Off", "Once", "Continuous")
	n.DefineFloat("ExposureTime", 5000, 6, 30000000)

	d.balance = map[string]float64{"Red": 1.25, "Blue": 2.5}
	n.DefineEnum("BalanceWhiteAuto", "Continuous", "Off", "Once", "Continuous")
	n.DefineEnum("BalanceRatioSelector", "Red", "Red", "Blue")
	n.DefineFloat("BalanceRatio", d.balance["Red"], 0.25, 8)
	n.Update("BalanceRatioSelector", func(m *property.MemoryNode) { m.OnChange = d.selectBalance })
	n.Update("BalanceRatio", func(m *property.MemoryNode) { m.OnChange = d.storeBalance })

	n.DefineInt("GevSCPSPacketSize", 1400, 576, 9000)
	n.DefineInt("GevSCPD", 0, 0, 100000)
	n.DefineBool("ReverseX", false)
}

func (d *Device) defineStream() {
	s := d.stream
	s.DefineEnum("StreamBufferHandlingMode", "NewestOnly",
		"OldestFirst", "OldestFirstOverwrite", "NewestOnly", "NewestFirst")
	s.DefineBool("StreamPacketResendEnable", true)
	s.DefineInt("StreamPacketResendTimeout", 100, 0, 10000)
	s.DefineInt("StreamPacketResendMaxRequests", 25, 0, 100)
}

// linkWindow keeps size + offset within the sensor: the live max of one
// follows the current value of the other.
func (d *Device) linkWindow(size, offset string, sensor int64) {
	d.nodes.Update(size, func(m *property.MemoryNode) {
		m.OnChange = func() {
			v, _ := d.nodes.Int(size)
			d.nodes.Update(offset, func(o *property.MemoryNode) { o.Max = float64(sensor - v) })
		}
	})
	d.nodes.Update(offset, func(m *property.MemoryNode) {
		m.OnChange = func() {
			v, _ := d.nodes.Int(offset)
			d.nodes.Update(size, func(s *property.MemoryNode) { s.Max = float64(sensor - v) })
		}
	})
}

func (d *Device) selectBalance() {
	sel, err := d.nodes.EnumEntry("BalanceRatioSelector")
	if err != nil {
		return
	}
	d.mu.Lock()
	v := d.balance[sel.Symbol]
	d.mu.Unlock()
	d.nodes.Update("BalanceRatio", func(m *property.MemoryNode) { m.Float = v })
}

func (d *Device) storeBalance() {
	sel, err := d.nodes.EnumEntry("BalanceRatioSelector")
	if err != nil {
		return
	}
	v, _ := d.nodes.Float("BalanceRatio")
	d.mu.Lock()
	d.balance[sel.Symbol] = v
	d.mu.Unlock()
}

// loadDefaultUserSet restores factory defaults, like UserSetLoad with the
// Default set selected.
func (d *Device) loadDefaultUserSet() error {
	d.mu.Lock()
	streaming := d.streaming
	d.mu.Unlock()
	if streaming {
		return fmt.Errorf("sim: UserSetLoad not allowed while streaming")
	}
	fresh := NewDevice(d.cam)
	for _, name := range fresh.nodes.Names() {
		switch name {
		case "UserSetSelector", "UserSetLoad":
			continue
		}
		src := name
		fresh.nodes.Update(src, func(m *property.MemoryNode) {
			def := *m
			d.nodes.Update(src, func(cur *property.MemoryNode) {
				cur.Bool, cur.Int, cur.Float, cur.String = def.Bool, def.Int, def.Float, def.String
				cur.Min, cur.Max = def.Min, def.Max
			})
		})
	}
	d.mu.Lock()
	d.balance = map[string]float64{"Red": 1.25, "Blue": 2.5}
	d.mu.Unlock()
	return nil
}

func (d *Device) TLDevice() property.NodeMap { return d.tl }

func (d *Device) Init() error {
	d.inits.Add(1)
	if d.failInit.Load() > 0 {
		d.failInit.Add(-1)
		return fmt.Errorf("sim: Spinnaker error -1010 initializing %s", d.cam.IP)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = true
	return nil
}

func (d *Device) DeInit() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streaming {
		return fmt.Errorf("sim: deinit while streaming")
	}
	d.initialized = false
	return nil
}

func (d *Device) Nodes() property.NodeMap       { return d.nodes }
func (d *Device) StreamNodes() property.NodeMap { return d.stream }

// locked while streaming
var streamLocked = []string{"PixelFormat", "Width", "Height", "OffsetX", "OffsetY"}

func (d *Device) BeginAcquisition() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.initialized {
		return fmt.Errorf("sim: camera not initialized")
	}
	if d.streaming {
		return fmt.Errorf("sim: acquisition already started")
	}
	d.streaming = true
	d.lastImage = time.Now()
	for _, name := range streamLocked {
		d.nodes.Update(name, func(m *property.MemoryNode) { m.Writable = false })
	}
	return nil
}

func (d *Device) EndAcquisition() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.streaming {
		return fmt.Errorf("sim: acquisition not started")
	}
	d.streaming = false
	for _, name := range streamLocked {
		d.nodes.Update(name, func(m *property.MemoryNode) { m.Writable = true })
	}
	return nil
}

func (d *Device) IsStreaming() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streaming
}

// NextImage paces images at AcquisitionFrameRate.
func (d *Device) NextImage(timeout time.Duration) (genicam.Image, error) {
	rate, err := d.nodes.Float("AcquisitionFrameRate")
	if err != nil || rate <= 0 {
		rate = 30
	}
	interval := time.Duration(float64(time.Second) / rate)

	d.mu.Lock()
	if !d.streaming {
		d.mu.Unlock()
		return nil, fmt.Errorf("sim: acquisition not started")
	}
	due := d.lastImage.Add(interval)
	d.mu.Unlock()

	wait := time.Until(due)
	if wait > timeout {
		time.Sleep(timeout)
		return nil, genicam.ErrTimeout
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	d.mu.Lock()
	d.lastImage = time.Now()
	d.frames++
	seq := d.frames
	d.mu.Unlock()

	w, _ := d.nodes.Int("Width")
	h, _ := d.nodes.Int("Height")
	pf, _ := d.nodes.EnumEntry("PixelFormat")

	img := &Image{
		dev:    d,
		format: pf.Symbol,
		width:  int(w),
		height: int(h),
		seq:    seq,
	}
	if d.cam.IncompleteEvery > 0 && seq%uint64(d.cam.IncompleteEvery) == 0 {
		img.incomplete = true
		return img, nil
	}
	img.data = render(img.format, img.width, img.height, seq)
	return img, nil
}

// Image is a simulated SDK buffer.
type Image struct {
	dev        *Device
	format     string
	width      int
	height     int
	seq        uint64
	data       []byte
	incomplete bool
}

func (i *Image) Incomplete() bool    { return i.incomplete }
func (i *Image) PixelFormat() string { return i.format }
func (i *Image) Release()            { i.data = nil }

func (i *Image) Convert(to imaging.PixelFormat, alg genicam.Algorithm) (imaging.Raw, error) {
	if i.data == nil {
		return imaging.Raw{}, fmt.Errorf("sim: image released or incomplete")
	}
	i.dev.converted.Store(&alg)
	var rgb []byte
	switch i.format {
	case "Mono8":
		if to == imaging.Mono8 {
			return imaging.Raw{Width: i.width, Height: i.height, Format: imaging.Mono8,
				Pix: append([]byte(nil), i.data...)}, nil
		}
		rgb = make([]byte, len(i.data)*3)
		for p, v := range i.data {
			rgb[3*p], rgb[3*p+1], rgb[3*p+2] = v, v, v
		}
	case "RGB8Packed":
		rgb = append([]byte(nil), i.data...)
	case "BayerRG8":
		rgb = demosaic(i.data, i.width, i.height)
	default:
		return imaging.Raw{}, fmt.Errorf("sim: cannot convert %s", i.format)
	}

	if to == imaging.RGB8 {
		return imaging.Raw{Width: i.width, Height: i.height, Format: imaging.RGB8, Pix: rgb}, nil
	}
	gray := make([]byte, i.width*i.height)
	for p := range gray {
		r, g, b := int(rgb[3*p]), int(rgb[3*p+1]), int(rgb[3*p+2])
		gray[p] = byte((299*r + 587*g + 114*b) / 1000)
	}
	return imaging.Raw{Width: i.width, Height: i.height, Format: imaging.Mono8, Pix: gray}, nil
}
