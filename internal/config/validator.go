package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"

	"github.com/labvisio/is-spinnaker-gateway/internal/genicam"
)

// Defaults applied by Validate.
const (
	DefaultClientID        = "is-spinnaker-gateway"
	DefaultOpsAddr         = ":8080"
	DefaultShutdownTimeout = 5 * time.Second
	DefaultDriver          = "simulated"
	DefaultMaxRetries      = 10
	DefaultRetryDelay      = 5 * time.Second
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("algorithm", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return true
			}
			for _, a := range genicam.Algorithms {
				if string(a) == s {
					return true
				}
			}
			return false
		})
	})
	return validate
}

// Validate fills defaults and checks the configuration.
func Validate(cfg *Config) error {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Ops.Addr == "" {
		cfg.Ops.Addr = DefaultOpsAddr
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Driver == "" {
		cfg.Driver = DefaultDriver
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = 1
	}
	for i := range cfg.Cameras {
		c := &cfg.Cameras[i]
		if c.Algorithm == "" {
			c.Algorithm = string(genicam.AlgorithmBilinear)
		}
		if c.MaxRetries == nil {
			n := DefaultMaxRetries
			c.MaxRetries = &n
		}
		if c.RetryDelay == 0 {
			c.RetryDelay = DefaultRetryDelay
		}
	}

	if err := structValidator().Struct(cfg); err != nil {
		return describe(err)
	}

	seen := make(map[string]int, len(cfg.Cameras))
	for _, c := range cfg.Cameras {
		if id, dup := seen[c.IP]; dup {
			return fmt.Errorf("cameras %d and %d share ip %s", id, c.ID, c.IP)
		}
		seen[c.IP] = c.ID
	}
	return nil
}

// describe turns validator errors into field-path messages such as
// "cameras[0].ip: must be a valid ipv4 address".
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var out error
	for _, fe := range verrs {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		out = multierr.Append(out, fmt.Errorf("%s: %s", path, reason(fe)))
	}
	return out
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ipv4":
		return "must be a valid ipv4 address"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "algorithm":
		names := make([]string, len(genicam.Algorithms))
		for i, a := range genicam.Algorithms {
			names[i] = string(a)
		}
		return "must be one of [" + strings.Join(names, " ") + "]"
	case "unique":
		return fe.Param() + " must be unique"
	case "min":
		return "needs at least " + fe.Param() + " entries"
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("must be %s %s", fe.Tag(), fe.Param())
	default:
		return "failed '" + fe.Tag() + "'"
	}
}
