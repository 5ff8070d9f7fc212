// Command gatewayd serves GenICam cameras over the bus: one gateway per
// configured camera, each publishing frames and answering configuration
// requests.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/config"
	"github.com/labvisio/is-spinnaker-gateway/internal/gateway"
	"github.com/labvisio/is-spinnaker-gateway/internal/genicam"
	"github.com/labvisio/is-spinnaker-gateway/internal/genicam/sim"
	"github.com/labvisio/is-spinnaker-gateway/internal/health"
	"github.com/labvisio/is-spinnaker-gateway/internal/metrics"
	"github.com/labvisio/is-spinnaker-gateway/internal/tracing"
)

const defaultConfigPath = "config/gateway.yaml"

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)
	cmd := &cobra.Command{
		Use:           "gatewayd",
		Short:         "Serve GenICam cameras over the message bus",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogger(debug)
			slog.Info("starting camera gateway", "config", configPath, "debug", debug)
			if err := run(cmd.Context(), configPath); err != nil {
				slog.Error("gateway stopped with error", "error", err)
				return err
			}
			slog.Info("camera gateway stopped successfully")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// newSystem opens the GenICam system selected by the configuration.
func newSystem(cfg *config.Config) (genicam.System, error) {
	switch cfg.Driver {
	case "simulated":
		cams := make([]sim.Camera, len(cfg.Cameras))
		for i, c := range cfg.Cameras {
			cams[i] = sim.Camera{IP: c.IP, Serial: fmt.Sprintf("2000%04d", c.ID)}
		}
		return sim.NewSystem(cams...), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	slog.Info("configuration loaded",
		"broker", cfg.Broker,
		"driver", cfg.Driver,
		"cameras", len(cfg.Cameras),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Setup(ctx, tracing.Options{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.ClientID,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	ops := health.New(cfg.Ops.Addr, m.Registry, slog.Default())
	if err := ops.Start(); err != nil {
		return err
	}

	system, err := newSystem(cfg)
	if err != nil {
		return err
	}

	var gateways []*gateway.Gateway
	shutdown := func() error {
		slog.Info("shutting down gracefully", "timeout", cfg.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs error
		for _, gw := range gateways {
			errs = multierr.Append(errs, gw.Shutdown(sctx))
		}
		return multierr.Combine(errs,
			system.Close(),
			ops.Shutdown(sctx),
			tp.Shutdown(sctx),
		)
	}

	for _, cam := range cfg.Cameras {
		logger := slog.Default().With("camera_id", cam.ID)
		ch, err := bus.DialMQTT(ctx, bus.MQTTOptions{
			Broker:   cfg.Broker,
			ClientID: fmt.Sprintf("%s-%d", cfg.ClientID, cam.ID),
			Logger:   logger,
		})
		if err != nil {
			return multierr.Append(err, shutdown())
		}
		driver := genicam.NewDriver(system, genicam.Options{
			Algorithm:              genicam.Algorithm(cam.Algorithm),
			OnboardColorProcessing: cam.OnboardColorProcessing,
			Logger:                 logger,
		})
		gw, err := gateway.New(gateway.Options{
			Camera:  cam,
			Driver:  driver,
			Channel: ch,
			Metrics: m,
			Logger:  slog.Default(),
		})
		if err != nil {
			_ = ch.Close()
			return multierr.Append(err, shutdown())
		}
		gateways = append(gateways, gw)
		ops.Register(gw)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, gw := range gateways {
		gw := gw
		g.Go(func() error {
			if err := gw.Start(gctx); err != nil {
				return err
			}
			return gw.Run(gctx)
		})
	}

	started := time.Now()
	runErr := g.Wait()
	if ctx.Err() != nil {
		slog.Info("received shutdown signal", "uptime", time.Since(started))
	}
	return multierr.Append(runErr, shutdown())
}
