package camera

import (
	"fmt"
	"strings"
)

// Setting is a device-independent ranged value: a ratio of the hardware
// range plus an auto-control flag. When Automatic is true the ratio carries
// no meaning.
type Setting struct {
	Ratio     float64 `msgpack:"ratio" yaml:"ratio" json:"ratio"`
	Automatic bool    `msgpack:"automatic,omitempty" yaml:"automatic,omitempty" json:"automatic,omitempty"`
}

// Resolution is the image size in pixels.
type Resolution struct {
	Width  int64 `msgpack:"width" yaml:"width" json:"width"`
	Height int64 `msgpack:"height" yaml:"height" json:"height"`
}

// ColorSpace selects colour or monochrome acquisition.
type ColorSpace int

const (
	ColorSpaceUnknown ColorSpace = iota
	ColorSpaceRGB
	ColorSpaceGray
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceRGB:
		return "rgb"
	case ColorSpaceGray:
		return "gray"
	default:
		return "unknown"
	}
}

func (c ColorSpace) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *ColorSpace) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "rgb":
		*c = ColorSpaceRGB
	case "gray", "grey", "mono":
		*c = ColorSpaceGray
	case "unknown", "":
		*c = ColorSpaceUnknown
	default:
		return fmt.Errorf("unknown color space %q", string(b))
	}
	return nil
}

// Encoding is the compression applied to published frames.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingJPEG
	EncodingPNG
	EncodingWebP
)

func (e Encoding) String() string {
	switch e {
	case EncodingJPEG:
		return "jpeg"
	case EncodingPNG:
		return "png"
	case EncodingWebP:
		return "webp"
	default:
		return "none"
	}
}

func (e Encoding) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

func (e *Encoding) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "none", "":
		*e = EncodingNone
	case "jpeg", "jpg":
		*e = EncodingJPEG
	case "png":
		*e = EncodingPNG
	case "webp":
		*e = EncodingWebP
	default:
		return fmt.Errorf("unknown encoding %q", string(b))
	}
	return nil
}

// ImageFormat is the output encoding with a compression level in (0,1).
type ImageFormat struct {
	Encoding    Encoding `msgpack:"encoding" yaml:"encoding" json:"encoding"`
	Compression float64  `msgpack:"compression" yaml:"compression" json:"compression"`
}

// Vertex is a pixel coordinate.
type Vertex struct {
	X int64 `msgpack:"x" yaml:"x" json:"x"`
	Y int64 `msgpack:"y" yaml:"y" json:"y"`
}

// BoundingPoly describes a region. Regions of interest use exactly two
// vertices: top-left and bottom-right.
type BoundingPoly struct {
	Vertices []Vertex `msgpack:"vertices" yaml:"vertices" json:"vertices"`
}

// ImageSettings groups the image section. Nil fields are absent.
type ImageSettings struct {
	Resolution *Resolution   `msgpack:"resolution,omitempty" yaml:"resolution,omitempty" json:"resolution,omitempty"`
	ColorSpace *ColorSpace   `msgpack:"color_space,omitempty" yaml:"color_space,omitempty" json:"color_space,omitempty"`
	Format     *ImageFormat  `msgpack:"format,omitempty" yaml:"format,omitempty" json:"format,omitempty"`
	Region     *BoundingPoly `msgpack:"region,omitempty" yaml:"region,omitempty" json:"region,omitempty"`
}

// SamplingSettings groups acquisition timing. Frequency is in Hz, Delay in
// seconds.
type SamplingSettings struct {
	Frequency *float64 `msgpack:"frequency,omitempty" yaml:"frequency,omitempty" json:"frequency,omitempty"`
	Delay     *float64 `msgpack:"delay,omitempty" yaml:"delay,omitempty" json:"delay,omitempty"`
}

// CameraSettings groups the ranged sensor controls.
type CameraSettings struct {
	Brightness       *Setting `msgpack:"brightness,omitempty" yaml:"brightness,omitempty" json:"brightness,omitempty"`
	Exposure         *Setting `msgpack:"exposure,omitempty" yaml:"exposure,omitempty" json:"exposure,omitempty"`
	Focus            *Setting `msgpack:"focus,omitempty" yaml:"focus,omitempty" json:"focus,omitempty"`
	Gain             *Setting `msgpack:"gain,omitempty" yaml:"gain,omitempty" json:"gain,omitempty"`
	Gamma            *Setting `msgpack:"gamma,omitempty" yaml:"gamma,omitempty" json:"gamma,omitempty"`
	Hue              *Setting `msgpack:"hue,omitempty" yaml:"hue,omitempty" json:"hue,omitempty"`
	Iris             *Setting `msgpack:"iris,omitempty" yaml:"iris,omitempty" json:"iris,omitempty"`
	Saturation       *Setting `msgpack:"saturation,omitempty" yaml:"saturation,omitempty" json:"saturation,omitempty"`
	Sharpness        *Setting `msgpack:"sharpness,omitempty" yaml:"sharpness,omitempty" json:"sharpness,omitempty"`
	Shutter          *Setting `msgpack:"shutter,omitempty" yaml:"shutter,omitempty" json:"shutter,omitempty"`
	WhiteBalanceBlue *Setting `msgpack:"white_balance_bu,omitempty" yaml:"white_balance_bu,omitempty" json:"white_balance_bu,omitempty"`
	WhiteBalanceRed  *Setting `msgpack:"white_balance_rv,omitempty" yaml:"white_balance_rv,omitempty" json:"white_balance_rv,omitempty"`
	Zoom             *Setting `msgpack:"zoom,omitempty" yaml:"zoom,omitempty" json:"zoom,omitempty"`
}

// Config is the partial configuration document exchanged over RPC. Presence
// of a leaf signals intent to read or write that property.
type Config struct {
	Image    *ImageSettings    `msgpack:"image,omitempty" yaml:"image,omitempty" json:"image,omitempty"`
	Sampling *SamplingSettings `msgpack:"sampling,omitempty" yaml:"sampling,omitempty" json:"sampling,omitempty"`
	Camera   *CameraSettings   `msgpack:"camera,omitempty" yaml:"camera,omitempty" json:"camera,omitempty"`
}

// IsEmpty reports whether no section is present.
func (c Config) IsEmpty() bool {
	return c.Image == nil && c.Sampling == nil && c.Camera == nil
}

// SettingName identifies one field of CameraSettings.
type SettingName int

const (
	Brightness SettingName = iota
	Exposure
	Focus
	Gain
	Gamma
	Hue
	Iris
	Saturation
	Sharpness
	Shutter
	WhiteBalanceBlue
	WhiteBalanceRed
	Zoom
)

// SettingNames lists every setting in field-declaration order.
var SettingNames = []SettingName{
	Brightness, Exposure, Focus, Gain, Gamma, Hue, Iris,
	Saturation, Sharpness, Shutter, WhiteBalanceBlue, WhiteBalanceRed, Zoom,
}

var settingNames = [...]string{
	Brightness:       "brightness",
	Exposure:         "exposure",
	Focus:            "focus",
	Gain:             "gain",
	Gamma:            "gamma",
	Hue:              "hue",
	Iris:             "iris",
	Saturation:       "saturation",
	Sharpness:        "sharpness",
	Shutter:          "shutter",
	WhiteBalanceBlue: "white_balance_bu",
	WhiteBalanceRed:  "white_balance_rv",
	Zoom:             "zoom",
}

func (n SettingName) String() string {
	if n < 0 || int(n) >= len(settingNames) {
		return fmt.Sprintf("setting(%d)", int(n))
	}
	return settingNames[n]
}

// Field returns a pointer to the CameraSettings field named n.
func (s *CameraSettings) Field(n SettingName) **Setting {
	switch n {
	case Brightness:
		return &s.Brightness
	case Exposure:
		return &s.Exposure
	case Focus:
		return &s.Focus
	case Gain:
		return &s.Gain
	case Gamma:
		return &s.Gamma
	case Hue:
		return &s.Hue
	case Iris:
		return &s.Iris
	case Saturation:
		return &s.Saturation
	case Sharpness:
		return &s.Sharpness
	case Shutter:
		return &s.Shutter
	case WhiteBalanceBlue:
		return &s.WhiteBalanceBlue
	case WhiteBalanceRed:
		return &s.WhiteBalanceRed
	case Zoom:
		return &s.Zoom
	default:
		return nil
	}
}

// Section is a named part of Config used to scope reads.
type Section int

const (
	SectionAll Section = iota
	SectionImage
	SectionSampling
	SectionCamera
)

func (s Section) String() string {
	switch s {
	case SectionAll:
		return "all"
	case SectionImage:
		return "image"
	case SectionSampling:
		return "sampling"
	case SectionCamera:
		return "camera"
	default:
		return fmt.Sprintf("section(%d)", int(s))
	}
}

func (s Section) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Section) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "all":
		*s = SectionAll
	case "image", "image_settings":
		*s = SectionImage
	case "sampling", "sampling_settings":
		*s = SectionSampling
	case "camera", "camera_settings":
		*s = SectionCamera
	default:
		return fmt.Errorf("unknown config section %q", string(b))
	}
	return nil
}

// FieldSelector scopes a config read.
type FieldSelector struct {
	Fields []Section `msgpack:"fields" yaml:"fields" json:"fields"`
}

// SelectAll is the selector for the full configuration.
var SelectAll = FieldSelector{Fields: []Section{SectionAll}}

// Sections expands the selector into the concrete sections to read, in
// declaration order. "All" expands to every section.
func (f FieldSelector) Sections() []Section {
	want := make(map[Section]bool, 3)
	for _, s := range f.Fields {
		if s == SectionAll {
			return []Section{SectionImage, SectionSampling, SectionCamera}
		}
		want[s] = true
	}
	var out []Section
	for _, s := range []Section{SectionImage, SectionSampling, SectionCamera} {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}
