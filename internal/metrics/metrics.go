// Package metrics defines the gateway's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "spinnaker_gateway"

// Metrics holds every collector, registered on its own registry so tests
// can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	FramesPublished  *prometheus.CounterVec
	FramesDropped    *prometheus.CounterVec
	FramesIncomplete *prometheus.CounterVec
	CaptureFPS       *prometheus.GaugeVec
	ConnectAttempts  *prometheus.CounterVec
	Restarts         *prometheus.CounterVec
	CameraState      *prometheus.GaugeVec
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	PublishFailures  *prometheus.CounterVec
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FramesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_published_total",
			Help:      "Frames published on the frame topic.",
		}, []string{"camera"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames overwritten in the acquisition slot before being published.",
		}, []string{"camera"}),
		FramesIncomplete: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_incomplete_total",
			Help:      "Grabs that returned an incomplete image or timed out.",
		}, []string{"camera"}),
		CaptureFPS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capture_fps",
			Help:      "Mean capture rate over the recent window.",
		}, []string{"camera"}),
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Camera connect attempts by result.",
		}, []string{"camera", "result"}),
		Restarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Restart cycles by result.",
		}, []string{"camera", "result"}),
		CameraState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "camera_state",
			Help:      "Driver state: 0 disconnected, 1 connecting, 2 idle, 3 streaming.",
		}, []string{"camera"}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "RPC requests served by topic and status code.",
		}, []string{"topic", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_request_duration_seconds",
			Help:      "RPC handler latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"topic"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_failures_total",
			Help:      "Messages that could not be published.",
		}, []string{"topic"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FramesPublished,
		m.FramesDropped,
		m.FramesIncomplete,
		m.CaptureFPS,
		m.ConnectAttempts,
		m.Restarts,
		m.CameraState,
		m.RequestsTotal,
		m.RequestDuration,
		m.PublishFailures,
	)
	return m
}

// ObserveRequest records one served RPC.
func (m *Metrics) ObserveRequest(topic, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(topic, code).Inc()
	m.RequestDuration.WithLabelValues(topic).Observe(took.Seconds())
}

// Result labels an outcome.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
