package camera

import "github.com/labvisio/is-spinnaker-gateway/internal/status"

// Unimplemented answers every property operation with Unimplemented (get) or
// Unsupported (set). Drivers embed it and override what their hardware offers.
type Unimplemented struct{}

func (Unimplemented) Resolution() (Resolution, error) {
	return Resolution{}, status.Unimplementedf("resolution")
}

func (Unimplemented) SetResolution(Resolution) error {
	return status.Unsupportedf("resolution")
}

func (Unimplemented) ColorSpace() (ColorSpace, error) {
	return ColorSpaceUnknown, status.Unimplementedf("color_space")
}

func (Unimplemented) SetColorSpace(ColorSpace) error {
	return status.Unsupportedf("color_space")
}

func (Unimplemented) Format() (ImageFormat, error) {
	return ImageFormat{}, status.Unimplementedf("format")
}

func (Unimplemented) SetFormat(ImageFormat) error {
	return status.Unsupportedf("format")
}

func (Unimplemented) RegionOfInterest() (BoundingPoly, error) {
	return BoundingPoly{}, status.Unimplementedf("region")
}

func (Unimplemented) SetRegionOfInterest(BoundingPoly) error {
	return status.Unsupportedf("region")
}

func (Unimplemented) SamplingRate() (float64, error) {
	return 0, status.Unimplementedf("frequency")
}

func (Unimplemented) SetSamplingRate(float64) error {
	return status.Unsupportedf("frequency")
}

func (Unimplemented) Delay() (float64, error) {
	return 0, status.Unimplementedf("delay")
}

func (Unimplemented) SetDelay(float64) error {
	return status.Unsupportedf("delay")
}

func (Unimplemented) Setting(n SettingName) (Setting, error) {
	return Setting{}, status.Unimplementedf(n.String())
}

func (Unimplemented) SetSetting(n SettingName, _ Setting) error {
	return status.Unsupportedf(n.String())
}
