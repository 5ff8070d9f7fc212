package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/labvisio/is-spinnaker-gateway/internal/camera"
)

// Source is the part of camera.Driver the pipeline drives.
type Source interface {
	StartCapture() error
	StopCapture() error
	GrabFrame(ctx context.Context) (camera.Frame, error)
}

// errorPause is how long the producer backs off after a non-incomplete grab
// error, so a failing device does not spin the loop.
const errorPause = 100 * time.Millisecond

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Running    bool
	Frames     uint64
	Incomplete uint64
	Errors     uint64
	Drops      uint64
	FPS        FPSStats
	Uptime     time.Duration
}

// Pipeline owns the producer goroutine of one camera.
//
// Lifecycle:
//  1. Start: driver StartCapture, then spawn the producer
//  2. Producer: GrabFrame -> Slot.Put until stopped
//  3. Stop: clear running, cancel, join the producer, then driver StopCapture
//
// The producer is always joined before the driver leaves Streaming, so no
// grab is ever issued against an idle or disconnected handle.
//
// Start and Stop are idempotent and serialised by mu.
type Pipeline struct {
	src    Source
	slot   *Slot
	logger *slog.Logger

	// rate-limits warnings for incomplete frames and grab errors
	warn *rate.Limiter

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// read without mu: Stop holds mu while joining the producer
	started atomic.Pointer[time.Time]
	running atomic.Bool

	frames     atomic.Uint64
	incomplete atomic.Uint64
	errors     atomic.Uint64
	fps        *fpsWindow
}

// NewPipeline returns a stopped pipeline reading from src.
func NewPipeline(src Source, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		src:    src,
		slot:   NewSlot(),
		logger: logger.With("component", "acquisition"),
		warn:   rate.NewLimiter(rate.Every(time.Second), 1),
		fps:    newFPSWindow(64),
	}
}

// Start begins capture and launches the producer. No-op when running.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}
	if err := p.src.StartCapture(); err != nil {
		return err
	}

	// The producer outlives the caller's request context; only Stop ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	now := time.Now()
	p.started.Store(&now)
	p.fps.reset()
	p.running.Store(true)

	p.wg.Add(1)
	go p.produce(runCtx)

	p.logger.Info("acquisition started")
	return nil
}

// Stop halts the producer, waits for it and ends capture. Safe to call
// when stopped. A frame still in the slot stays available to Next.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return nil
	}
	p.running.Store(false)
	p.cancel()
	p.wg.Wait()
	p.cancel = nil

	err := p.src.StopCapture()
	p.logger.Info("acquisition stopped",
		"frames", p.frames.Load(),
		"drops", p.slot.Drops(),
		"uptime", time.Since(*p.started.Load()),
	)
	return err
}

// Running reports whether the producer is active.
func (p *Pipeline) Running() bool { return p.running.Load() }

func (p *Pipeline) produce(ctx context.Context) {
	defer p.wg.Done()

	for p.running.Load() {
		frame, err := p.src.GrabFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		switch {
		case err == nil:
			p.frames.Add(1)
			p.fps.observe(frame.CapturedAt)
			if p.slot.Put(frame) {
				p.logger.Debug("frame dropped, consumer behind", "seq", frame.Seq)
			}

		case errors.Is(err, camera.ErrIncompleteFrame):
			n := p.incomplete.Add(1)
			if p.warn.Allow() {
				p.logger.Warn("incomplete frame", "total_incomplete", n)
			}

		default:
			n := p.errors.Add(1)
			if p.warn.Allow() {
				p.logger.Error("grab failed", "error", err, "total_errors", n)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(errorPause):
			}
		}
	}
}

// Next waits for the most recent frame.
func (p *Pipeline) Next(ctx context.Context) (camera.Frame, error) {
	return p.slot.Take(ctx)
}

// TryNext returns the pending frame without waiting.
func (p *Pipeline) TryNext() (camera.Frame, bool) {
	return p.slot.TryTake()
}

// Stats returns a snapshot of the counters. It never waits on Start or Stop.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Running:    p.running.Load(),
		Frames:     p.frames.Load(),
		Incomplete: p.incomplete.Load(),
		Errors:     p.errors.Load(),
		Drops:      p.slot.Drops(),
		FPS:        p.fps.stats(),
	}
	if started := p.started.Load(); s.Running && started != nil {
		s.Uptime = time.Since(*started)
	}
	return s
}
