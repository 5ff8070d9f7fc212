// Package gateway runs one camera: it connects the driver, keeps the
// acquisition pipeline fed, publishes frames and serves configuration
// requests over the bus.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/labvisio/is-spinnaker-gateway/internal/acquisition"
	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/config"
	"github.com/labvisio/is-spinnaker-gateway/internal/configsvc"
	"github.com/labvisio/is-spinnaker-gateway/internal/health"
	"github.com/labvisio/is-spinnaker-gateway/internal/metrics"
	"github.com/labvisio/is-spinnaker-gateway/internal/rpc"
	"github.com/labvisio/is-spinnaker-gateway/internal/supervisor"
)

// ErrCameraNotFound is returned by Start when no enumerated device has the
// configured IP address.
var ErrCameraNotFound = errors.New("gateway: camera not found")

// DefaultPollInterval bounds each wait for a frame in the main loop, so
// requests are served even when no frame arrives.
const DefaultPollInterval = 10 * time.Millisecond

// Topic names the bus topic of a camera service, e.g.
// CameraGateway.0.GetConfig.
func Topic(id int, name string) string {
	return "CameraGateway." + strconv.Itoa(id) + "." + name
}

// Service names.
const (
	GetConfig = "GetConfig"
	SetConfig = "SetConfig"
	Frame     = "Frame"
)

// Image is the payload published on the frame topic.
type Image struct {
	Data []byte `msgpack:"data"`
}

// Empty is the body of a successful SetConfig reply.
type Empty struct{}

// Options wires a Gateway.
type Options struct {
	Camera  config.CameraConfig
	Driver  camera.Driver
	Channel bus.Channel
	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Gateway owns the driver, pipeline, supervisor and request server of one
// camera. Start, Run and Shutdown are called from a single goroutine;
// HealthCheck may be called from any.
type Gateway struct {
	cfg      config.CameraConfig
	label    string
	driver   camera.Driver
	ch       bus.Channel
	pipeline *acquisition.Pipeline
	configs  *configsvc.Service
	sup      *supervisor.Supervisor
	server   *rpc.Server
	metrics  *metrics.Metrics
	logger   *slog.Logger
	poll     time.Duration

	// rate-limits frame publish warnings
	warn *rate.Limiter

	mu   sync.RWMutex
	info camera.Info

	published      atomic.Uint64
	lastDrops      uint64
	lastIncomplete uint64
	shutdownOnce   sync.Once
}

// New builds a stopped gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Driver == nil || opts.Channel == nil {
		return nil, fmt.Errorf("gateway: driver and channel are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	label := strconv.Itoa(opts.Camera.ID)
	logger := opts.Logger.With("camera_id", opts.Camera.ID)

	g := &Gateway{
		cfg:      opts.Camera,
		label:    label,
		driver:   opts.Driver,
		ch:       opts.Channel,
		pipeline: acquisition.NewPipeline(opts.Driver, logger),
		configs:  configsvc.New(opts.Driver, logger),
		server:   rpc.NewServer(opts.Channel, rpc.WithMetrics(opts.Metrics), rpc.WithLogger(logger)),
		metrics:  opts.Metrics,
		logger:   logger.With("component", "gateway"),
		poll:     opts.PollInterval,
		warn:     rate.NewLimiter(rate.Every(time.Second), 1),
	}

	supCfg := supervisor.DefaultConfig()
	if opts.Camera.MaxRetries != nil {
		supCfg.MaxRetries = *opts.Camera.MaxRetries
	}
	if opts.Camera.RetryDelay > 0 {
		supCfg.RetryDelay = opts.Camera.RetryDelay
	}
	supCfg.RestartPeriod = opts.Camera.RestartPeriod
	supCfg.Tuning = opts.Camera.Tuning()

	g.sup = supervisor.New(supCfg, opts.Driver, g.pipeline, g.configs, g.hooks(), logger)
	return g, nil
}

func (g *Gateway) hooks() supervisor.Hooks {
	if g.metrics == nil {
		return supervisor.Hooks{}
	}
	return supervisor.Hooks{
		OnConnectAttempt: func(err error) {
			g.metrics.ConnectAttempts.WithLabelValues(g.label, metrics.Result(err)).Inc()
		},
		OnRestart: func(err error) {
			g.metrics.Restarts.WithLabelValues(g.label, metrics.Result(err)).Inc()
		},
	}
}

// Start finds the configured camera, connects it, applies the static tuning
// and the initial configuration, starts acquisition and registers the
// request handlers. Any returned error is fatal for this camera.
func (g *Gateway) Start(ctx context.Context) error {
	info, err := g.find(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.info = info
	g.mu.Unlock()

	g.logger.Info("camera found",
		"ip", info.IPAddress,
		"model", info.ModelName,
		"serial", info.SerialNumber,
		"mac", info.MACAddress,
		"link_speed", info.LinkSpeed,
	)

	if err := g.sup.Connect(ctx, info); err != nil {
		return fmt.Errorf("gateway: connect camera %d: %w", g.cfg.ID, err)
	}
	g.sup.Initialize()

	if initial := g.cfg.InitialConfig; initial != nil && !initial.IsEmpty() {
		if err := g.configs.SetConfig(ctx, *initial); err != nil {
			g.logger.Error("initial configuration not fully applied", "error", err)
		}
	}

	if err := g.pipeline.Start(ctx); err != nil {
		return fmt.Errorf("gateway: start capture: %w", err)
	}

	if err := g.server.Delegate(ctx, Topic(g.cfg.ID, GetConfig), rpc.Handle(g.getConfig)); err != nil {
		return err
	}
	if err := g.server.Delegate(ctx, Topic(g.cfg.ID, SetConfig), rpc.Handle(g.setConfig)); err != nil {
		return err
	}

	g.logger.Info("gateway started",
		"frame_topic", Topic(g.cfg.ID, Frame),
		"restart_period", g.cfg.RestartPeriod,
	)
	return nil
}

func (g *Gateway) find(ctx context.Context) (camera.Info, error) {
	infos, err := g.driver.FindDevices(ctx)
	if err != nil {
		return camera.Info{}, fmt.Errorf("gateway: find devices: %w", err)
	}
	for _, info := range infos {
		if info.IPAddress == g.cfg.IP {
			return info, nil
		}
	}
	found := make([]string, len(infos))
	for i, info := range infos {
		found[i] = info.IPAddress
	}
	g.logger.Error("no camera with configured ip", "ip", g.cfg.IP, "found", found)
	return camera.Info{}, fmt.Errorf("%w: ip %s", ErrCameraNotFound, g.cfg.IP)
}

func (g *Gateway) getConfig(ctx context.Context, sel camera.FieldSelector) (camera.Config, error) {
	return g.configs.GetConfig(ctx, sel)
}

func (g *Gateway) setConfig(ctx context.Context, cfg camera.Config) (Empty, error) {
	return Empty{}, g.configs.SetConfig(ctx, cfg)
}

// Run is the main loop. Each iteration:
//  1. runs the periodic restart when due
//  2. waits up to the poll interval for a frame and publishes it
//  3. serves every pending request without blocking
//
// It returns nil when ctx ends and an error when a restart fails or the
// channel closes.
func (g *Gateway) Run(ctx context.Context) error {
	info := g.Info()
	for {
		if ctx.Err() != nil {
			return nil
		}

		if g.sup.RestartDue(time.Now()) {
			if err := g.sup.Restart(ctx, info); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("gateway: restart camera %d: %w", g.cfg.ID, err)
			}
		}

		if err := g.publishNext(ctx); err != nil {
			return err
		}
		if err := g.servePending(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		g.observe()
	}
}

func (g *Gateway) publishNext(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.poll)
	frame, err := g.pipeline.Next(waitCtx)
	cancel()
	if err != nil {
		// nothing captured within the poll interval
		return nil
	}

	msg := bus.NewMessage()
	if err := msg.Pack(Image{Data: frame.Data}); err != nil {
		return err
	}
	topic := Topic(g.cfg.ID, Frame)
	if err := g.ch.Publish(ctx, topic, msg); err != nil {
		if g.metrics != nil {
			g.metrics.PublishFailures.WithLabelValues(topic).Inc()
		}
		if g.warn.Allow() {
			g.logger.Warn("frame publish failed", "seq", frame.Seq, "error", err)
		}
		return nil
	}
	g.published.Add(1)
	if g.metrics != nil {
		g.metrics.FramesPublished.WithLabelValues(g.label).Inc()
	}
	return nil
}

func (g *Gateway) servePending(ctx context.Context) error {
	for {
		msg, err := g.ch.Consume(0)
		if errors.Is(err, bus.ErrTimeout) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gateway: consume: %w", err)
		}
		if !g.server.ShouldServe(msg) {
			g.logger.Debug("ignoring message", "topic", msg.Topic)
			continue
		}
		if err := g.server.Serve(ctx, msg); err != nil {
			g.logger.Warn("reply not sent", "topic", msg.Topic, "error", err)
		}
	}
}

// observe moves pipeline counters into the metrics.
func (g *Gateway) observe() {
	if g.metrics == nil {
		return
	}
	s := g.pipeline.Stats()
	if s.Drops > g.lastDrops {
		g.metrics.FramesDropped.WithLabelValues(g.label).Add(float64(s.Drops - g.lastDrops))
		g.lastDrops = s.Drops
	}
	if s.Incomplete > g.lastIncomplete {
		g.metrics.FramesIncomplete.WithLabelValues(g.label).Add(float64(s.Incomplete - g.lastIncomplete))
		g.lastIncomplete = s.Incomplete
	}
	g.metrics.CaptureFPS.WithLabelValues(g.label).Set(s.FPS.Mean)
	g.metrics.CameraState.WithLabelValues(g.label).Set(float64(g.driver.State()))
}

// Shutdown stops acquisition, disconnects the camera and closes the
// channel. Every step runs even if an earlier one fails.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs error
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down gateway")
		result := make(chan error, 1)
		go func() {
			result <- multierr.Combine(
				g.pipeline.Stop(),
				g.driver.Disconnect(),
				g.ch.Close(),
			)
		}()
		select {
		case errs = <-result:
		case <-ctx.Done():
			errs = fmt.Errorf("gateway: shutdown camera %d: %w", g.cfg.ID, ctx.Err())
			return
		}
		g.logger.Info("gateway shutdown complete", "frames_published", g.published.Load())
	})
	return errs
}

// Info returns the identification of the served camera.
func (g *Gateway) Info() camera.Info {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.info
}

// Pipeline exposes acquisition counters.
func (g *Gateway) Pipeline() *acquisition.Pipeline { return g.pipeline }

// HealthCheck reports the gateway's state for the ops server.
func (g *Gateway) HealthCheck() health.CameraHealth {
	s := g.pipeline.Stats()
	return health.CameraHealth{
		ID:              g.label,
		State:           g.driver.State().String(),
		Capturing:       s.Running,
		BusConnected:    g.ch.Connected(),
		FramesPublished: g.published.Load(),
		FramesDropped:   s.Drops,
		FPS:             s.FPS.Mean,
		Restarts:        g.sup.State().Restarts.Load(),
	}
}
