package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// Config is the gateway process configuration.
type Config struct {
	Broker          string         `yaml:"broker" validate:"required"`
	ClientID        string         `yaml:"client_id"`
	Tracing         TracingConfig  `yaml:"tracing"`
	Ops             OpsConfig      `yaml:"ops"`
	ShutdownTimeout time.Duration  `yaml:"shutdown_timeout" validate:"gte=0"` // graceful shutdown budget (default: 5s)
	Driver          string         `yaml:"driver" validate:"oneof=simulated"`
	Cameras         []CameraConfig `yaml:"cameras" validate:"required,min=1,unique=ID,dive"`
}

// TracingConfig enables OTLP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// OpsConfig is the health/metrics HTTP server.
type OpsConfig struct {
	Addr string `yaml:"addr"`
}

// CameraConfig describes one camera served by the gateway.
type CameraConfig struct {
	ID                     int    `yaml:"id" validate:"gte=0"`
	IP                     string `yaml:"ip" validate:"required,ipv4"`
	Algorithm              string `yaml:"algorithm" validate:"algorithm"`
	OnboardColorProcessing bool   `yaml:"onboard_color_processing"`

	// Transport tuning. Unset fields are left at the camera's value.
	PacketSize              *int64 `yaml:"packet_size" validate:"omitempty,gt=0"`
	PacketDelay             *int64 `yaml:"packet_delay" validate:"omitempty,gte=0"`
	PacketResend            *bool  `yaml:"packet_resend"`
	PacketResendTimeout     *int64 `yaml:"packet_resend_timeout" validate:"omitempty,gte=0"`
	PacketResendMaxRequests *int64 `yaml:"packet_resend_max_requests" validate:"omitempty,gte=0"`
	ReverseX                *bool  `yaml:"reverse_x"`

	RestartPeriod time.Duration `yaml:"restart_period" validate:"gte=0"` // 0 disables periodic restarts
	MaxRetries    *int          `yaml:"max_retries" validate:"omitempty,gte=0"`
	RetryDelay    time.Duration `yaml:"retry_delay" validate:"gte=0"`

	InitialConfig *camera.Config `yaml:"initial_config,omitempty"`
}

// Tuning returns the static transport parameters.
func (c CameraConfig) Tuning() camera.Tuning {
	return camera.Tuning{
		PacketSize:              c.PacketSize,
		PacketDelay:             c.PacketDelay,
		PacketResend:            c.PacketResend,
		PacketResendTimeout:     c.PacketResendTimeout,
		PacketResendMaxRequests: c.PacketResendMaxRequests,
		ReverseX:                c.ReverseX,
	}
}

// Load reads and validates a YAML (or JSON) configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
