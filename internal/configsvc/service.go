// Package configsvc maps configuration documents onto driver property
// operations.
//
// Reads are partial by design: every getter runs independently and a failed
// getter leaves its field absent. Writes stop at the first failing setter, in
// field-declaration order, and return that error annotated with the field
// path.
package configsvc

import (
	"context"
	"log/slog"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// Service serves GetConfig and SetConfig for one camera.
type Service struct {
	props  camera.Properties
	logger *slog.Logger
}

// New returns a service over props.
func New(props camera.Properties, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{props: props, logger: logger.With("component", "configsvc")}
}

func (s *Service) ready(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if st := s.props.State(); !st.Connected() {
		return status.FailedPreconditionf(op, "camera is %s", st)
	}
	return nil
}

// GetConfig reads the sections named by sel. Sections where no getter
// succeeded are omitted.
func (s *Service) GetConfig(ctx context.Context, sel camera.FieldSelector) (camera.Config, error) {
	var cfg camera.Config
	if err := s.ready(ctx, "get_config"); err != nil {
		return cfg, err
	}

	for _, section := range sel.Sections() {
		switch section {
		case camera.SectionImage:
			if img := s.readImage(); img != (camera.ImageSettings{}) {
				cfg.Image = &img
			}
		case camera.SectionSampling:
			if smp := s.readSampling(); smp != (camera.SamplingSettings{}) {
				cfg.Sampling = &smp
			}
		case camera.SectionCamera:
			if cam := s.readCamera(); cam != (camera.CameraSettings{}) {
				cfg.Camera = &cam
			}
		}
	}
	return cfg, nil
}

// absent logs a contained read failure.
func (s *Service) absent(field string, err error) {
	s.logger.Debug("field left absent", "field", field, "code", status.CodeOf(err), "error", err)
}

func (s *Service) readImage() camera.ImageSettings {
	var img camera.ImageSettings
	if v, err := s.props.Resolution(); err == nil {
		img.Resolution = &v
	} else {
		s.absent("image.resolution", err)
	}
	if v, err := s.props.ColorSpace(); err == nil {
		img.ColorSpace = &v
	} else {
		s.absent("image.color_space", err)
	}
	if v, err := s.props.Format(); err == nil {
		img.Format = &v
	} else {
		s.absent("image.format", err)
	}
	if v, err := s.props.RegionOfInterest(); err == nil {
		img.Region = &v
	} else {
		s.absent("image.region", err)
	}
	return img
}

func (s *Service) readSampling() camera.SamplingSettings {
	var smp camera.SamplingSettings
	if v, err := s.props.SamplingRate(); err == nil {
		smp.Frequency = &v
	} else {
		s.absent("sampling.frequency", err)
	}
	if v, err := s.props.Delay(); err == nil {
		smp.Delay = &v
	} else {
		s.absent("sampling.delay", err)
	}
	return smp
}

func (s *Service) readCamera() camera.CameraSettings {
	var cam camera.CameraSettings
	for _, n := range camera.SettingNames {
		v, err := s.props.Setting(n)
		if err != nil {
			s.absent("camera."+n.String(), err)
			continue
		}
		*cam.Field(n) = &v
	}
	return cam
}

// SetConfig writes every present field of cfg in declaration order: image
// (resolution, color_space, format, region), sampling (frequency, delay),
// then camera settings. The first failure aborts the call; fields before it
// stay applied.
func (s *Service) SetConfig(ctx context.Context, cfg camera.Config) error {
	if err := s.ready(ctx, "set_config"); err != nil {
		return err
	}
	for _, w := range s.writes(cfg) {
		if err := w.apply(); err != nil {
			s.logger.Debug("set_config stopped", "field", w.field, "error", err)
			return status.Annotate(err, w.field)
		}
	}
	return nil
}

type write struct {
	field string
	apply func() error
}

// writes lists the setter calls for the present fields of cfg, in order.
func (s *Service) writes(cfg camera.Config) []write {
	var out []write
	add := func(field string, fn func() error) {
		out = append(out, write{field: field, apply: fn})
	}

	if img := cfg.Image; img != nil {
		if v := img.Resolution; v != nil {
			add("image.resolution", func() error { return s.props.SetResolution(*v) })
		}
		if v := img.ColorSpace; v != nil {
			add("image.color_space", func() error { return s.props.SetColorSpace(*v) })
		}
		if v := img.Format; v != nil {
			add("image.format", func() error { return s.props.SetFormat(*v) })
		}
		if v := img.Region; v != nil {
			add("image.region", func() error { return s.props.SetRegionOfInterest(*v) })
		}
	}
	if smp := cfg.Sampling; smp != nil {
		if v := smp.Frequency; v != nil {
			add("sampling.frequency", func() error { return s.props.SetSamplingRate(*v) })
		}
		if v := smp.Delay; v != nil {
			add("sampling.delay", func() error { return s.props.SetDelay(*v) })
		}
	}
	if cam := cfg.Camera; cam != nil {
		for _, n := range camera.SettingNames {
			n := n
			if v := *cam.Field(n); v != nil {
				add("camera."+n.String(), func() error { return s.props.SetSetting(n, *v) })
			}
		}
	}
	return out
}
