package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

const fullDocument = `
broker: tcp://10.0.0.1:1883
client_id: lab-gateway
tracing:
  endpoint: otel-collector:4317
  sample_ratio: 0.25
ops:
  addr: ":9100"
shutdown_timeout: 10s
driver: simulated
cameras:
  - id: 0
    ip: 10.0.0.10
    algorithm: edge_sensing
    onboard_color_processing: true
    packet_size: 9000
    packet_delay: 6000
    packet_resend: true
    packet_resend_timeout: 50
    packet_resend_max_requests: 10
    reverse_x: true
    restart_period: 1h
    max_retries: 3
    retry_delay: 2s
    initial_config:
      image:
        color_space: rgb
        format: {encoding: jpeg, compression: 0.8}
      sampling:
        frequency: 10
      camera:
        gain: {automatic: true}
        brightness: {ratio: 0.1}
  - id: 1
    ip: 10.0.0.11
`

func TestParseFullDocument(t *testing.T) {
	cfg, err := Parse([]byte(fullDocument))
	require.NoError(t, err)

	assert.Equal(t, "tcp://10.0.0.1:1883", cfg.Broker)
	assert.Equal(t, "lab-gateway", cfg.ClientID)
	assert.Equal(t, "otel-collector:4317", cfg.Tracing.Endpoint)
	assert.Equal(t, 0.25, cfg.Tracing.SampleRatio)
	assert.Equal(t, ":9100", cfg.Ops.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Len(t, cfg.Cameras, 2)

	c := cfg.Cameras[0]
	assert.Equal(t, "edge_sensing", c.Algorithm)
	assert.True(t, c.OnboardColorProcessing)
	assert.Equal(t, time.Hour, c.RestartPeriod)
	assert.Equal(t, 3, *c.MaxRetries)
	assert.Equal(t, 2*time.Second, c.RetryDelay)

	tuning := c.Tuning()
	assert.Equal(t, int64(9000), *tuning.PacketSize)
	assert.Equal(t, int64(6000), *tuning.PacketDelay)
	assert.True(t, *tuning.PacketResend)
	assert.True(t, *tuning.ReverseX)

	initial := c.InitialConfig
	require.NotNil(t, initial)
	assert.Equal(t, camera.ColorSpaceRGB, *initial.Image.ColorSpace)
	assert.Equal(t, camera.EncodingJPEG, initial.Image.Format.Encoding)
	assert.Equal(t, 10.0, *initial.Sampling.Frequency)
	assert.True(t, initial.Camera.Gain.Automatic)
	assert.Equal(t, 0.1, initial.Camera.Brightness.Ratio)
	assert.Nil(t, initial.Camera.Shutter)

	// defaults on the second camera
	d := cfg.Cameras[1]
	assert.Equal(t, "bilinear", d.Algorithm)
	assert.Equal(t, DefaultMaxRetries, *d.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, d.RetryDelay)
	assert.Zero(t, d.RestartPeriod)
	assert.Nil(t, d.Tuning().PacketSize)
	assert.Nil(t, d.InitialConfig)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("broker: tcp://localhost:1883\ncameras: [{ip: 10.0.0.10}]\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultClientID, cfg.ClientID)
	assert.Equal(t, DefaultOpsAddr, cfg.Ops.Addr)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultDriver, cfg.Driver)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	assert.Empty(t, cfg.Tracing.Endpoint)
}

func TestParseAcceptsJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"broker": "tcp://localhost:1883", "cameras": [{"id": 2, "ip": "10.0.0.12", "max_retries": 0}]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Cameras[0].ID)
	assert.Equal(t, 0, *cfg.Cameras[0].MaxRetries, "explicit zero is kept")
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing broker", "cameras: [{ip: 10.0.0.10}]", "broker: is required"},
		{"no cameras", "broker: b", "cameras: is required"},
		{"bad ip", "broker: b\ncameras: [{ip: cam.local}]", "cameras[0].ip: must be a valid ipv4 address"},
		{"bad algorithm", "broker: b\ncameras: [{ip: 10.0.0.10, algorithm: magic}]", "cameras[0].algorithm: must be one of"},
		{"unknown driver", "broker: b\ndriver: spinnaker\ncameras: [{ip: 10.0.0.10}]", "driver: must be one of [simulated]"},
		{"duplicate id", "broker: b\ncameras: [{id: 1, ip: 10.0.0.10}, {id: 1, ip: 10.0.0.11}]", "cameras: ID must be unique"},
		{"duplicate ip", "broker: b\ncameras: [{id: 1, ip: 10.0.0.10}, {id: 2, ip: 10.0.0.10}]", "share ip 10.0.0.10"},
		{"negative retries", "broker: b\ncameras: [{ip: 10.0.0.10, max_retries: -1}]", "cameras[0].max_retries: must be gte 0"},
		{"sample ratio", "broker: b\ntracing: {sample_ratio: 2}\ncameras: [{ip: 10.0.0.10}]", "tracing.sample_ratio: must be lte 1"},
		{"bad colour space", "broker: b\ncameras: [{ip: 10.0.0.10, initial_config: {image: {color_space: cmyk}}}]", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullDocument), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Cameras, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
