// Package health serves the gateway's ops endpoints: liveness, readiness and
// Prometheus metrics.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Overall service states reported by /readiness.
const (
	Healthy   = "healthy"
	Degraded  = "degraded"
	Unhealthy = "unhealthy"
)

// CameraHealth is the health of one camera gateway.
type CameraHealth struct {
	ID              string  `json:"id"`
	State           string  `json:"state"`
	Capturing       bool    `json:"capturing"`
	BusConnected    bool    `json:"bus_connected"`
	FramesPublished uint64  `json:"frames_published"`
	FramesDropped   uint64  `json:"frames_dropped"`
	DropRate        float64 `json:"drop_rate"`
	FPS             float64 `json:"fps"`
	Restarts        uint64  `json:"restarts"`
}

// Ready reports whether the camera is streaming and reachable.
func (c CameraHealth) Ready() bool {
	return c.Capturing && c.BusConnected
}

// Checker reports the health of one camera.
type Checker interface {
	HealthCheck() CameraHealth
}

// Report is the /readiness body.
type Report struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	CamerasUp     int                     `json:"cameras_up"`
	CamerasTotal  int                     `json:"cameras_total"`
	Cameras       map[string]CameraHealth `json:"cameras,omitempty"`
}

// Server is the ops HTTP server.
type Server struct {
	addr     string
	started  time.Time
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	mu       sync.RWMutex
	checkers []Checker

	engine *gin.Engine
	srv    *http.Server
}

// New builds the server. Metrics are served from gatherer when non-nil.
func New(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		addr:     addr,
		started:  time.Now(),
		gatherer: gatherer,
		logger:   logger.With("component", "health"),
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/health", s.liveness)
	s.engine.GET("/readiness", s.readiness)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// Register adds a camera to the readiness report.
func (s *Server) Register(c Checker) {
	s.mu.Lock()
	s.checkers = append(s.checkers, c)
	s.mu.Unlock()
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Check aggregates the registered cameras. No camera up is unhealthy; some
// down is degraded.
func (s *Server) Check() Report {
	s.mu.RLock()
	checkers := append([]Checker(nil), s.checkers...)
	s.mu.RUnlock()

	r := Report{
		Status:        Healthy,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		CamerasTotal:  len(checkers),
		Cameras:       make(map[string]CameraHealth, len(checkers)),
	}
	for _, c := range checkers {
		h := c.HealthCheck()
		if total := h.FramesPublished + h.FramesDropped; total > 0 {
			h.DropRate = float64(h.FramesDropped) / float64(total)
		}
		if h.Ready() {
			r.CamerasUp++
		}
		r.Cameras[h.ID] = h
	}

	switch {
	case r.CamerasUp == 0:
		r.Status = Unhealthy
	case r.CamerasUp < r.CamerasTotal:
		r.Status = Degraded
	}
	return r
}

func (s *Server) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) readiness(c *gin.Context) {
	r := s.Check()
	code := http.StatusOK
	if r.Status == Unhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, r)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.addr, err)
	}
	s.srv = &http.Server{
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	endpoints := []string{"/health", "/readiness"}
	if s.gatherer != nil {
		endpoints = append(endpoints, "/metrics")
	}
	s.logger.Info("starting ops server", "addr", ln.Addr().String(), "endpoints", endpoints)

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
