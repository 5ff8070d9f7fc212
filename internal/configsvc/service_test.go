package configsvc

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// fakeProps implements a gray camera with a few settings. Everything else
// falls through to camera.Unimplemented.
type fakeProps struct {
	camera.Unimplemented

	state    camera.State
	settings map[camera.SettingName]camera.Setting
	readErr  map[camera.SettingName]error
	writeErr map[camera.SettingName]error
	hz       float64
	cs       camera.ColorSpace

	calls []string
}

func newFakeProps() *fakeProps {
	return &fakeProps{
		state: camera.StateIdle,
		settings: map[camera.SettingName]camera.Setting{
			camera.Brightness: {Ratio: 0.1},
			camera.Gain:       {Automatic: true},
			camera.Shutter:    {Ratio: 0.4},
		},
		readErr:  map[camera.SettingName]error{},
		writeErr: map[camera.SettingName]error{},
		hz:       30,
		cs:       camera.ColorSpaceGray,
	}
}

func (f *fakeProps) State() camera.State { return f.state }

func (f *fakeProps) ColorSpace() (camera.ColorSpace, error) { return f.cs, nil }

func (f *fakeProps) SetColorSpace(cs camera.ColorSpace) error {
	f.calls = append(f.calls, "color_space")
	f.cs = cs
	return nil
}

func (f *fakeProps) SamplingRate() (float64, error) { return f.hz, nil }

func (f *fakeProps) SetSamplingRate(hz float64) error {
	f.calls = append(f.calls, "frequency")
	if hz <= 0 {
		return status.OutOfRange("AcquisitionFrameRate", hz, 1, 226)
	}
	f.hz = hz
	return nil
}

func (f *fakeProps) Setting(n camera.SettingName) (camera.Setting, error) {
	if err := f.readErr[n]; err != nil {
		return camera.Setting{}, err
	}
	s, ok := f.settings[n]
	if !ok {
		return f.Unimplemented.Setting(n)
	}
	return s, nil
}

func (f *fakeProps) SetSetting(n camera.SettingName, s camera.Setting) error {
	f.calls = append(f.calls, n.String())
	if err := f.writeErr[n]; err != nil {
		return err
	}
	if _, ok := f.settings[n]; !ok {
		return f.Unimplemented.SetSetting(n, s)
	}
	f.settings[n] = s
	return nil
}

func TestGetConfigAllSections(t *testing.T) {
	svc := New(newFakeProps(), nil)

	cfg, err := svc.GetConfig(context.Background(), camera.SelectAll)
	require.NoError(t, err)

	require.NotNil(t, cfg.Image)
	assert.Nil(t, cfg.Image.Resolution, "unimplemented getter leaves the field absent")
	require.NotNil(t, cfg.Image.ColorSpace)
	assert.Equal(t, camera.ColorSpaceGray, *cfg.Image.ColorSpace)

	require.NotNil(t, cfg.Sampling)
	assert.Equal(t, 30.0, *cfg.Sampling.Frequency)
	assert.Nil(t, cfg.Sampling.Delay)

	require.NotNil(t, cfg.Camera)
	assert.True(t, cfg.Camera.Gain.Automatic)
	assert.Nil(t, cfg.Camera.Gamma)
}

// TestGetConfigContainsFieldFailures validates per-field read containment.
//
// Contract:
//   - A getter failing with a device error leaves only its field absent
//   - The call itself succeeds
func TestGetConfigContainsFieldFailures(t *testing.T) {
	props := newFakeProps()
	props.readErr[camera.Shutter] = status.DeviceError("ExposureTime", errors.New("GenICam timeout"))
	svc := New(props, nil)

	cfg, err := svc.GetConfig(context.Background(), camera.FieldSelector{Fields: []camera.Section{camera.SectionCamera}})
	require.NoError(t, err)
	require.NotNil(t, cfg.Camera)
	assert.Nil(t, cfg.Camera.Shutter)
	require.NotNil(t, cfg.Camera.Brightness)
	assert.InDelta(t, 0.1, cfg.Camera.Brightness.Ratio, 1e-12)
}

func TestGetConfigSelectorScoping(t *testing.T) {
	svc := New(newFakeProps(), nil)

	cfg, err := svc.GetConfig(context.Background(), camera.FieldSelector{Fields: []camera.Section{camera.SectionSampling}})
	require.NoError(t, err)
	assert.Nil(t, cfg.Image)
	assert.Nil(t, cfg.Camera)
	assert.NotNil(t, cfg.Sampling)

	cfg, err = svc.GetConfig(context.Background(), camera.FieldSelector{})
	require.NoError(t, err)
	assert.True(t, cfg.IsEmpty(), "empty selector reads nothing")
}

func TestConfigFailsFastWhenDisconnected(t *testing.T) {
	props := newFakeProps()
	props.state = camera.StateConnecting
	svc := New(props, nil)

	_, err := svc.GetConfig(context.Background(), camera.SelectAll)
	assert.True(t, status.Is(err, status.KindFailedPrecondition), "got %v", err)

	err = svc.SetConfig(context.Background(), camera.Config{})
	assert.True(t, status.Is(err, status.KindFailedPrecondition))
}

// TestSetConfigShortCircuits validates write ordering and first-error stop.
//
// Scenario:
//  1. Brightness is written successfully
//  2. Gain fails with InvalidArgument
//  3. Gamma (declared after gain) is never attempted
//  4. The error carries the field path
func TestSetConfigShortCircuits(t *testing.T) {
	props := newFakeProps()
	props.writeErr[camera.Gain] = status.InvalidArgumentf("gain", "gain has no such mode")
	svc := New(props, nil)

	err := svc.SetConfig(context.Background(), camera.Config{
		Camera: &camera.CameraSettings{
			Brightness: &camera.Setting{Ratio: 0.5},
			Gain:       &camera.Setting{Ratio: 0.5},
			Gamma:      &camera.Setting{Ratio: 0.5},
		},
	})
	require.Error(t, err)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
	assert.Equal(t, []string{"brightness", "gain"}, props.calls)
	assert.Equal(t, "camera.gain: gain has no such mode", status.FromError(err).Why)
	assert.InDelta(t, 0.5, props.settings[camera.Brightness].Ratio, 1e-12, "earlier fields stay applied")
}

func TestSetConfigDeclarationOrder(t *testing.T) {
	props := newFakeProps()
	svc := New(props, nil)
	hz, cs := 15.0, camera.ColorSpaceRGB

	require.NoError(t, svc.SetConfig(context.Background(), camera.Config{
		Camera:   &camera.CameraSettings{Shutter: &camera.Setting{Ratio: 0.2}, Brightness: &camera.Setting{Ratio: 0.3}},
		Sampling: &camera.SamplingSettings{Frequency: &hz},
		Image:    &camera.ImageSettings{ColorSpace: &cs},
	}))
	assert.Equal(t, []string{"color_space", "frequency", "brightness", "shutter"}, props.calls)
	assert.Equal(t, 15.0, props.hz)
}

func TestSetConfigUnsupportedField(t *testing.T) {
	props := newFakeProps()
	svc := New(props, nil)
	delay := 0.5

	err := svc.SetConfig(context.Background(), camera.Config{
		Sampling: &camera.SamplingSettings{Delay: &delay},
	})
	assert.Equal(t, status.Unimplemented, status.CodeOf(err))
	assert.Equal(t, "sampling.delay: delay is not supported by this camera", status.FromError(err).Why)
}

func TestSetConfigOutOfRangeCode(t *testing.T) {
	svc := New(newFakeProps(), nil)
	hz := -1.0

	err := svc.SetConfig(context.Background(), camera.Config{Sampling: &camera.SamplingSettings{Frequency: &hz}})
	assert.Equal(t, status.FailedPrecondition, status.CodeOf(err))
	assert.Contains(t, status.FromError(err).Why, "sampling.frequency: property 'AcquisitionFrameRate' must be in interval")
}

func TestSetConfigEmptyIsNoop(t *testing.T) {
	props := newFakeProps()
	require.NoError(t, New(props, nil).SetConfig(context.Background(), camera.Config{}))
	assert.Empty(t, props.calls)
}
