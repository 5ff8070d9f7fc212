package gateway

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/config"
	"github.com/labvisio/is-spinnaker-gateway/internal/genicam"
	"github.com/labvisio/is-spinnaker-gateway/internal/genicam/sim"
	"github.com/labvisio/is-spinnaker-gateway/internal/metrics"
	"github.com/labvisio/is-spinnaker-gateway/internal/rpc"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
	"github.com/labvisio/is-spinnaker-gateway/internal/supervisor"
)

const camIP = "10.0.0.30"

type harness struct {
	gw      *Gateway
	system  *sim.System
	broker  *bus.Broker
	metrics *metrics.Metrics
	client  *rpc.Client
}

func ptr[T any](v T) *T { return &v }

func newHarness(t *testing.T, cam config.CameraConfig) *harness {
	t.Helper()
	if cam.IP == "" {
		cam.IP = camIP
	}
	if cam.MaxRetries == nil {
		cam.MaxRetries = ptr(1)
	}
	if cam.RetryDelay == 0 {
		cam.RetryDelay = time.Millisecond
	}

	h := &harness{
		system:  sim.NewSystem(sim.Camera{IP: camIP, Width: 64, Height: 48}),
		broker:  bus.NewBroker(),
		metrics: metrics.New(),
	}
	driver := genicam.NewDriver(h.system, genicam.Options{})
	gw, err := New(Options{
		Camera:  cam,
		Driver:  driver,
		Channel: bus.NewLocal(h.broker),
		Metrics: h.metrics,
	})
	require.NoError(t, err)
	h.gw = gw
	t.Cleanup(func() { _ = gw.Shutdown(context.Background()) })
	return h
}

// run starts the gateway and its main loop; the loop stops at cleanup.
func (h *harness) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.gw.Start(ctx))

	done := make(chan error, 1)
	go func() { done <- h.gw.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("main loop did not stop")
		}
	})

	client, err := rpc.NewClient(ctx, bus.NewLocal(h.broker), 2*time.Second)
	require.NoError(t, err)
	h.client = client
}

func (h *harness) device() *sim.Device { return h.system.Device(camIP) }

func TestTopic(t *testing.T) {
	assert.Equal(t, "CameraGateway.0.GetConfig", Topic(0, GetConfig))
	assert.Equal(t, "CameraGateway.12.Frame", Topic(12, Frame))
}

func TestPublishesFrames(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 0})
	h.run(t)

	sub := bus.NewLocal(h.broker)
	defer sub.Close()
	require.NoError(t, sub.Subscribe(context.Background(), Topic(0, Frame)))

	msg, err := sub.Consume(2 * time.Second)
	require.NoError(t, err)
	var img Image
	require.NoError(t, msg.Unpack(&img))

	decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 64, decoded.Bounds().Dx())
	assert.Equal(t, 48, decoded.Bounds().Dy())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(h.metrics.FramesPublished.WithLabelValues("0")) > 0
	}, time.Second, 10*time.Millisecond)

	hc := h.gw.HealthCheck()
	assert.Equal(t, "0", hc.ID)
	assert.Equal(t, "streaming", hc.State)
	assert.True(t, hc.Ready())
}

// TestConfigRequests drives GetConfig and SetConfig through the bus.
//
// Scenario: a running camera is reconfigured while streaming. Sampling and
// camera settings apply; a colour space change is refused with
// PermissionDenied and the field path.
func TestConfigRequests(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 3})
	h.run(t)
	ctx := context.Background()

	var cfg camera.Config
	require.NoError(t, h.client.Call(ctx, Topic(3, GetConfig), camera.SelectAll, &cfg))
	require.NotNil(t, cfg.Image)
	assert.Equal(t, camera.ColorSpaceRGB, *cfg.Image.ColorSpace)
	require.NotNil(t, cfg.Camera)
	assert.True(t, cfg.Camera.Gain.Automatic)

	set := camera.Config{
		Sampling: &camera.SamplingSettings{Frequency: ptr(12.0)},
		Camera:   &camera.CameraSettings{Gain: &camera.Setting{Ratio: 0.5}},
	}
	require.NoError(t, h.client.Call(ctx, Topic(3, SetConfig), set, nil))

	var after camera.Config
	sel := camera.FieldSelector{Fields: []camera.Section{camera.SectionSampling, camera.SectionCamera}}
	require.NoError(t, h.client.Call(ctx, Topic(3, GetConfig), sel, &after))
	assert.Nil(t, after.Image)
	assert.InDelta(t, 12.0, *after.Sampling.Frequency, 1e-9)
	assert.False(t, after.Camera.Gain.Automatic)
	assert.InDelta(t, 0.5, after.Camera.Gain.Ratio, 1e-6)

	gray := camera.ColorSpaceGray
	err := h.client.Call(ctx, Topic(3, SetConfig), camera.Config{Image: &camera.ImageSettings{ColorSpace: &gray}}, nil)
	var remote *status.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, status.PermissionDenied, remote.Status.Code)
	assert.Contains(t, remote.Status.Why, "image.color_space")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RequestsTotal.WithLabelValues(Topic(3, SetConfig), "PERMISSION_DENIED")))
}

func TestStartAppliesTuningAndInitialConfig(t *testing.T) {
	h := newHarness(t, config.CameraConfig{
		ID:         0,
		PacketSize: ptr(int64(1500)),
		ReverseX:   ptr(true),
		InitialConfig: &camera.Config{
			Sampling: &camera.SamplingSettings{Frequency: ptr(7.0)},
			// rejected, logged, not fatal
			Camera: &camera.CameraSettings{Focus: &camera.Setting{Ratio: 0.5}},
		},
	})
	h.run(t)

	nodes := h.device().NodeMap()
	size, err := nodes.Int("GevSCPSPacketSize")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), size)
	rev, err := nodes.Bool("ReverseX")
	require.NoError(t, err)
	assert.True(t, rev)
	rate, err := nodes.Float("AcquisitionFrameRate")
	require.NoError(t, err)
	assert.InDelta(t, 7.0, rate, 1e-9)

	assert.Equal(t, camIP, h.gw.Info().IPAddress)
}

func TestStartCameraNotFound(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 0, IP: "10.0.0.99"})
	err := h.gw.Start(context.Background())
	assert.ErrorIs(t, err, ErrCameraNotFound)
}

func TestStartRetriesExhausted(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 0, MaxRetries: ptr(2)})
	h.device().FailInit(100)

	err := h.gw.Start(context.Background())
	assert.ErrorIs(t, err, supervisor.ErrRetriesExhausted)
	assert.Equal(t, 3, h.device().Inits())
	assert.Equal(t, 3.0, testutil.ToFloat64(h.metrics.ConnectAttempts.WithLabelValues("0", "failure")))
}

// TestPeriodicRestartRestoresConfig checks the restart cycle end to end.
//
// Scenario: the restart reconnects, which reloads the camera's default user
// set. The configuration read back before the restart is written again, so
// the sampling rate set over the bus survives and frames keep flowing.
func TestPeriodicRestartRestoresConfig(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 0, RestartPeriod: 150 * time.Millisecond})
	h.run(t)
	ctx := context.Background()

	set := camera.Config{Sampling: &camera.SamplingSettings{Frequency: ptr(20.0)}}
	require.NoError(t, h.client.Call(ctx, Topic(0, SetConfig), set, nil))

	require.Eventually(t, func() bool {
		return h.gw.HealthCheck().Restarts >= 1 && h.gw.HealthCheck().Capturing
	}, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, h.device().Inits(), 2)

	var cfg camera.Config
	require.NoError(t, h.client.Call(ctx, Topic(0, GetConfig), camera.SelectAll, &cfg))
	assert.InDelta(t, 20.0, *cfg.Sampling.Frequency, 1e-9)
	assert.GreaterOrEqual(t, testutil.ToFloat64(h.metrics.Restarts.WithLabelValues("0", "success")), 1.0)
}

func TestShutdownStopsCamera(t *testing.T) {
	h := newHarness(t, config.CameraConfig{ID: 0})
	require.NoError(t, h.gw.Start(context.Background()))

	require.NoError(t, h.gw.Shutdown(context.Background()))
	hc := h.gw.HealthCheck()
	assert.Equal(t, "disconnected", hc.State)
	assert.False(t, hc.Capturing)
	assert.False(t, hc.BusConnected)

	assert.NoError(t, h.gw.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestNewRequiresDriverAndChannel(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
