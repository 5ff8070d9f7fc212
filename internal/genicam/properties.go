package genicam

import (
	"strings"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// settingNode maps a ratio setting onto GenICam nodes.
type settingNode struct {
	value string
	// auto is the enumeration switching hardware auto-control; empty when the
	// setting has no automatic mode.
	auto string
	// selector/entry select which channel value addresses (white balance).
	selector string
	entry    string
	rgbOnly  bool
}

var settingNodes = map[camera.SettingName]settingNode{
	camera.Brightness: {value: "BlackLevel"},
	camera.Gain:       {value: "Gain", auto: "GainAuto"},
	camera.Shutter:    {value: "ExposureTime", auto: "ExposureAuto"},
	camera.WhiteBalanceBlue: {
		value: nodeBalanceRatio, auto: nodeBalanceWhiteAuto,
		selector: nodeBalanceRatioSelect, entry: "Blue", rgbOnly: true,
	},
	camera.WhiteBalanceRed: {
		value: nodeBalanceRatio, auto: nodeBalanceWhiteAuto,
		selector: nodeBalanceRatioSelect, entry: "Red", rgbOnly: true,
	},
}

// Setting reads a ratio setting. Settings without a node mapping are
// Unimplemented for this family.
func (d *Driver) Setting(n camera.SettingName) (camera.Setting, error) {
	sn, ok := settingNodes[n]
	if !ok {
		return d.Unimplemented.Setting(n)
	}

	var out camera.Setting
	err := d.withNodes(n.String(), func() error {
		if err := d.requireRGB(n, sn); err != nil {
			return err
		}
		if sn.selector != "" {
			if err := d.nodes.SetEnum(sn.selector, sn.entry); err != nil {
				return err
			}
		}
		if sn.auto != "" {
			mode, err := d.nodes.Enum(sn.auto)
			if err != nil {
				return err
			}
			if mode != autoOff {
				out = camera.Setting{Automatic: true}
				return nil
			}
		}
		ratio, err := d.codec.Ratio(sn.value)
		if err != nil {
			return err
		}
		out = camera.Setting{Ratio: ratio}
		return nil
	})
	return out, err
}

// SetSetting writes a ratio setting: automatic engages continuous
// auto-control, otherwise auto-control is switched off and the ratio mapped
// onto the live range of the value node. Asking for automatic on a setting
// without an auto node (brightness) is InvalidArgument rather than a no-op.
func (d *Driver) SetSetting(n camera.SettingName, s camera.Setting) error {
	sn, ok := settingNodes[n]
	if !ok {
		return d.Unimplemented.SetSetting(n, s)
	}

	return d.withNodes(n.String(), func() error {
		if err := d.requireRGB(n, sn); err != nil {
			return err
		}
		if s.Automatic {
			if sn.auto == "" {
				return status.InvalidArgumentf(n.String(), "%s has no automatic mode", n)
			}
			return d.nodes.SetEnum(sn.auto, autoContinuous)
		}
		if sn.auto != "" {
			if err := d.nodes.SetEnum(sn.auto, autoOff); err != nil {
				return err
			}
		}
		if sn.selector != "" {
			if err := d.nodes.SetEnum(sn.selector, sn.entry); err != nil {
				return err
			}
		}
		return d.codec.SetRatio(sn.value, s.Ratio)
	})
}

func (d *Driver) requireRGB(n camera.SettingName, sn settingNode) error {
	if !sn.rgbOnly {
		return nil
	}
	pf, err := d.nodes.Enum(nodePixelFormat)
	if err != nil {
		return err
	}
	if colorSpaceOf(pf) != camera.ColorSpaceRGB {
		return status.FailedPreconditionf(n.String(), "%s requires the rgb color space", n)
	}
	return nil
}

func colorSpaceOf(pixelFormat string) camera.ColorSpace {
	switch {
	case strings.HasPrefix(pixelFormat, "Mono"):
		return camera.ColorSpaceGray
	case strings.HasPrefix(pixelFormat, "Bayer"), strings.HasPrefix(pixelFormat, "RGB"),
		strings.HasPrefix(pixelFormat, "BGR"):
		return camera.ColorSpaceRGB
	default:
		return camera.ColorSpaceUnknown
	}
}

func (d *Driver) ColorSpace() (camera.ColorSpace, error) {
	var cs camera.ColorSpace
	err := d.withNodes("color_space", func() error {
		pf, err := d.nodes.Enum(nodePixelFormat)
		if err != nil {
			return err
		}
		cs = colorSpaceOf(pf)
		if cs == camera.ColorSpaceUnknown {
			return status.Newf(status.KindDeviceError, nodePixelFormat, "unrecognised pixel format %s", pf)
		}
		return nil
	})
	return cs, err
}

// SetColorSpace selects the pixel format. Refused while streaming.
func (d *Driver) SetColorSpace(cs camera.ColorSpace) error {
	return d.withNodes("color_space", func() error {
		if d.State() == camera.StateStreaming {
			return status.PermissionDeniedf("color_space", "color space cannot change while streaming")
		}
		switch cs {
		case camera.ColorSpaceRGB:
			if d.opts.OnboardColorProcessing {
				return d.nodes.SetEnum(nodePixelFormat, pixelRGB8Packed)
			}
			return d.nodes.SetEnum(nodePixelFormat, pixelBayerRG8)
		case camera.ColorSpaceGray:
			return d.nodes.SetEnum(nodePixelFormat, pixelMono8)
		default:
			return status.FailedPreconditionf("color_space", "color space must be rgb or gray, got %s", cs)
		}
	})
}

func (d *Driver) Format() (camera.ImageFormat, error) {
	d.nodeMu.Lock()
	defer d.nodeMu.Unlock()
	return d.format, nil
}

// SetFormat selects the output encoding. The compression level must lie in
// the open interval (0,1). WebP needs the opencv build tag; the default
// encoder answers it with Unimplemented.
func (d *Driver) SetFormat(f camera.ImageFormat) error {
	switch f.Encoding {
	case camera.EncodingJPEG, camera.EncodingPNG, camera.EncodingWebP:
	default:
		return status.FailedPreconditionf("format", "format must be jpeg, png or webp, got %s", f.Encoding)
	}
	if !d.opts.Encoder.Supports(f.Encoding) {
		return status.Newf(status.KindUnimplemented, "format", "%s encoding is not available in this build", f.Encoding)
	}
	if !(f.Compression > 0 && f.Compression < 1) {
		return status.FailedPreconditionf("format", "compression must be in (0, 1), got %v", f.Compression)
	}

	d.nodeMu.Lock()
	d.format = f
	d.nodeMu.Unlock()
	return nil
}

// RegionOfInterest reads the sensor window as top-left and bottom-right.
func (d *Driver) RegionOfInterest() (camera.BoundingPoly, error) {
	var poly camera.BoundingPoly
	err := d.withNodes("region", func() error {
		var v [4]int64
		for i, name := range []string{nodeOffsetX, nodeOffsetY, nodeWidth, nodeHeight} {
			n, _, err := d.nodes.Int(name)
			if err != nil {
				return err
			}
			v[i] = n
		}
		poly.Vertices = []camera.Vertex{
			{X: v[0], Y: v[1]},
			{X: v[0] + v[2], Y: v[1] + v[3]},
		}
		return nil
	})
	return poly, err
}

// SetRegionOfInterest sets the sensor window. The region must have exactly
// two vertices with top-left strictly before bottom-right. Size is clamped
// to the sensor and applied before the offsets, whose live maximum depends on
// it. Refused while streaming.
func (d *Driver) SetRegionOfInterest(p camera.BoundingPoly) error {
	if len(p.Vertices) != 2 {
		return status.InvalidArgumentf("region", "region must have 2 vertices, got %d", len(p.Vertices))
	}
	tl, br := p.Vertices[0], p.Vertices[1]
	if tl.X >= br.X || tl.Y >= br.Y {
		return status.InvalidArgumentf("region",
			"top-left (%d,%d) must be above and left of bottom-right (%d,%d)", tl.X, tl.Y, br.X, br.Y)
	}

	return d.withNodes("region", func() error {
		if d.State() == camera.StateStreaming {
			return status.PermissionDeniedf("region", "region cannot change while streaming")
		}
		// Offsets first go to their minimum so the full sensor size is allowed.
		for _, name := range []string{nodeOffsetX, nodeOffsetY} {
			r, err := d.nodes.Range(name)
			if err != nil {
				return err
			}
			if err := d.nodes.SetInt(name, int64(r.Min)); err != nil {
				return err
			}
		}
		if err := d.setClamped(nodeWidth, br.X-tl.X); err != nil {
			return err
		}
		if err := d.setClamped(nodeHeight, br.Y-tl.Y); err != nil {
			return err
		}
		if err := d.setClamped(nodeOffsetX, tl.X); err != nil {
			return err
		}
		return d.setClamped(nodeOffsetY, tl.Y)
	})
}

// setClamped writes v limited to the node's live maximum.
func (d *Driver) setClamped(name string, v int64) error {
	r, err := d.nodes.Range(name)
	if err != nil {
		return err
	}
	return d.nodes.SetInt(name, min(v, int64(r.Max)))
}

// SamplingRate reads the acquisition frame rate in Hz.
func (d *Driver) SamplingRate() (float64, error) {
	var hz float64
	err := d.withNodes("frequency", func() error {
		v, _, err := d.nodes.Float(nodeFrameRate)
		hz = v
		return err
	})
	return hz, err
}

// SetSamplingRate enables manual frame-rate control and writes hz. BFS models
// expose AcquisitionFrameRateEnable; older models an auto enumeration plus
// AcquisitionFrameRateEnabled.
func (d *Driver) SetSamplingRate(hz float64) error {
	return d.withNodes("frequency", func() error {
		if strings.Contains(d.info.ModelName, "BFS") {
			if err := d.nodes.SetBool(nodeFrameRateEnable, true); err != nil {
				return err
			}
		} else {
			if err := d.nodes.SetEnum(nodeFrameRateAuto, autoOff); err != nil {
				return err
			}
			if err := d.nodes.SetBool(nodeFrameRateEnabled, true); err != nil {
				return err
			}
		}
		return d.nodes.SetFloat(nodeFrameRate, hz)
	})
}
