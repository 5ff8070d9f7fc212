// Package supervisor keeps a camera connection alive: bounded connect
// retries and a periodic stop/reconnect/reconfigure/resume restart cycle.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// ErrRetriesExhausted is returned when every connect attempt failed.
var ErrRetriesExhausted = errors.New("supervisor: connect retries exhausted")

// Camera is the part of camera.Driver the supervisor manages.
type Camera interface {
	Connect(ctx context.Context, info camera.Info) error
	Disconnect() error
	ApplyTuning(t camera.Tuning) error
}

// Capture is the acquisition lifecycle wrapped by a restart.
type Capture interface {
	Start(ctx context.Context) error
	Stop() error
}

// Configurer reads back and re-applies runtime configuration.
type Configurer interface {
	GetConfig(ctx context.Context, sel camera.FieldSelector) (camera.Config, error)
	SetConfig(ctx context.Context, cfg camera.Config) error
}

// Config controls retries and restarts.
type Config struct {
	// MaxRetries is the number of retries after the first connect attempt.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// RestartPeriod is the interval between forced restarts; 0 disables them.
	RestartPeriod time.Duration
	// Tuning is applied after every successful connect.
	Tuning camera.Tuning
}

// DefaultConfig returns the retry policy used when none is configured.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 10,
		RetryDelay: 5 * time.Second,
	}
}

// ReconnectState tracks connect attempts over the supervisor's lifetime.
type ReconnectState struct {
	Attempts atomic.Uint64 // every connect attempt, successful or not
	Failures atomic.Uint64
	Restarts atomic.Uint64
}

// Hooks observe supervisor events, typically to update metrics.
type Hooks struct {
	OnConnectAttempt func(err error)
	OnRestart        func(err error)
}

// Supervisor drives one camera.
type Supervisor struct {
	cfg     Config
	cam     Camera
	capture Capture
	configs Configurer
	hooks   Hooks
	logger  *slog.Logger

	state ReconnectState

	mu          sync.Mutex
	lastRestart time.Time
}

// New returns a supervisor. The restart timer starts at the first successful
// Connect and is reset by every Restart.
func New(cfg Config, cam Camera, capture Capture, configs Configurer, hooks Hooks, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:         cfg,
		cam:         cam,
		capture:     capture,
		configs:     configs,
		hooks:       hooks,
		logger:      logger.With("component", "supervisor"),
		lastRestart: time.Now(),
	}
}

// State exposes the attempt counters.
func (s *Supervisor) State() *ReconnectState { return &s.state }

// Connect attempts the connection up to 1+MaxRetries times, pausing
// RetryDelay between attempts. Exhaustion returns an error wrapping both
// ErrRetriesExhausted and the last failure.
func (s *Supervisor) Connect(ctx context.Context, info camera.Info) error {
	var (
		attempts  int
		permanent bool
	)
	op := func() error {
		attempts++
		s.state.Attempts.Add(1)
		err := s.cam.Connect(ctx, info)
		if s.hooks.OnConnectAttempt != nil {
			s.hooks.OnConnectAttempt(err)
		}
		if err == nil {
			return nil
		}
		s.state.Failures.Add(1)
		// Misuse, not a transient failure.
		if status.Is(err, status.KindFailedPrecondition) {
			permanent = true
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.logger.Error("connect failed",
			"ip", info.IPAddress,
			"attempt", attempts,
			"max_retries", s.cfg.MaxRetries,
			"retry_in", next,
			"error", err,
		)
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(s.cfg.RetryDelay)
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		s.mu.Lock()
		s.lastRestart = time.Now()
		s.mu.Unlock()
		if attempts > 1 {
			s.logger.Info("connected after retries", "ip", info.IPAddress, "attempts", attempts)
		}
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if permanent {
		return err
	}
	s.logger.Error("giving up on camera", "ip", info.IPAddress, "attempts", attempts, "error", err)
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// Initialize applies the static tuning. Failures are logged by the driver
// and never abort the caller.
func (s *Supervisor) Initialize() {
	if err := s.cam.ApplyTuning(s.cfg.Tuning); err != nil {
		s.logger.Warn("static tuning partially applied", "error", err)
	}
}

// RestartDue reports whether the periodic restart should run at now.
func (s *Supervisor) RestartDue(now time.Time) bool {
	if s.cfg.RestartPeriod <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastRestart) >= s.cfg.RestartPeriod
}

// Restart runs one restart cycle:
//  1. read back the full runtime configuration
//  2. stop capture
//  3. disconnect and reconnect (with retries)
//  4. re-apply static tuning and the saved configuration, best effort
//  5. resume capture
//
// Only a failed reconnect or resume is returned; the caller treats it as
// fatal.
func (s *Supervisor) Restart(ctx context.Context, info camera.Info) (err error) {
	start := time.Now()
	defer func() {
		s.mu.Lock()
		s.lastRestart = time.Now()
		s.mu.Unlock()
		s.state.Restarts.Add(1)
		if s.hooks.OnRestart != nil {
			s.hooks.OnRestart(err)
		}
	}()

	s.logger.Info("restarting camera", "ip", info.IPAddress)

	saved, gerr := s.configs.GetConfig(ctx, camera.SelectAll)
	if gerr != nil {
		s.logger.Warn("could not read back configuration before restart", "error", gerr)
	}

	if err := s.capture.Stop(); err != nil {
		s.logger.Warn("stop capture before restart", "error", err)
	}
	if err := s.cam.Disconnect(); err != nil {
		s.logger.Warn("disconnect before restart", "error", err)
	}

	if err := s.Connect(ctx, info); err != nil {
		return err
	}
	s.Initialize()
	s.reapply(ctx, saved)

	if err := s.capture.Start(ctx); err != nil {
		return fmt.Errorf("supervisor: resume capture: %w", err)
	}
	s.logger.Info("camera restarted", "ip", info.IPAddress, "took", time.Since(start))
	return nil
}

// reapply writes each section of saved independently, so one rejected
// section does not prevent the others from being restored.
func (s *Supervisor) reapply(ctx context.Context, saved camera.Config) {
	sections := []struct {
		name string
		cfg  camera.Config
		ok   bool
	}{
		{"image", camera.Config{Image: saved.Image}, saved.Image != nil},
		{"sampling", camera.Config{Sampling: saved.Sampling}, saved.Sampling != nil},
		{"camera", camera.Config{Camera: saved.Camera}, saved.Camera != nil},
	}
	for _, sec := range sections {
		if !sec.ok {
			continue
		}
		if err := s.configs.SetConfig(ctx, sec.cfg); err != nil {
			s.logger.Warn("failed to re-apply configuration after restart",
				"section", sec.name,
				"error", err,
			)
		}
	}
}
