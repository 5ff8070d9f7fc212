// Package rpc implements request/reply over a bus.Channel.
//
// A request is published on a service topic with ReplyTo set. The server
// runs the handler registered for that topic and publishes a reply on
// ReplyTo carrying the request ID as CorrelationID and a status. Handler
// errors become status codes through status.FromError, so only classified
// error text reaches callers.
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/metrics"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
	"github.com/labvisio/is-spinnaker-gateway/internal/tracing"
)

const tracerName = "github.com/labvisio/is-spinnaker-gateway/internal/rpc"

// Handler serves one request. The returned value is packed as the reply
// body when err is nil.
type Handler func(ctx context.Context, req bus.Message) (any, error)

// Handle adapts a typed function into a Handler. A request body that does
// not decode into Req is an InvalidArgument.
func Handle[Req, Rep any](fn func(ctx context.Context, req Req) (Rep, error)) Handler {
	return func(ctx context.Context, msg bus.Message) (any, error) {
		var req Req
		if err := msg.Unpack(&req); err != nil {
			return nil, status.InvalidArgumentf("body", "malformed request body")
		}
		return fn(ctx, req)
	}
}

// Server dispatches requests received on a channel.
type Server struct {
	ch       bus.Channel
	handlers map[string]Handler
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer returns a server that replies through ch.
func NewServer(ch bus.Channel, opts ...ServerOption) *Server {
	s := &Server{
		ch:       ch,
		handlers: make(map[string]Handler),
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("component", "rpc")
	return s
}

// Delegate subscribes to topic and routes its requests to h.
func (s *Server) Delegate(ctx context.Context, topic string, h Handler) error {
	if err := s.ch.Subscribe(ctx, topic); err != nil {
		return fmt.Errorf("rpc: subscribe %s: %w", topic, err)
	}
	s.handlers[topic] = h
	return nil
}

// ShouldServe reports whether msg is addressed to a delegated topic.
func (s *Server) ShouldServe(msg bus.Message) bool {
	_, ok := s.handlers[msg.Topic]
	return ok
}

// Serve runs the handler for msg and publishes the reply. Requests without
// ReplyTo are executed but not answered. The returned error is the publish
// error, never the handler's.
func (s *Server) Serve(ctx context.Context, msg bus.Message) error {
	h, ok := s.handlers[msg.Topic]
	if !ok {
		return fmt.Errorf("rpc: no handler for %s", msg.Topic)
	}

	ctx = tracing.Extract(ctx, msg.Metadata)
	ctx, span := s.tracer.Start(ctx, msg.Topic,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("rpc.request_id", msg.ID)),
	)
	defer span.End()

	start := time.Now()
	body, err := h(ctx, msg)
	st := status.FromError(err)
	s.metrics.ObserveRequest(msg.Topic, st.Code.String(), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, st.Why)
		s.logger.Warn("request failed",
			"topic", msg.Topic,
			"code", st.Code.String(),
			"error", err,
		)
	}
	span.SetAttributes(attribute.String("rpc.status_code", st.Code.String()))

	if msg.ReplyTo == "" {
		return nil
	}
	reply := msg.Reply(st)
	if err == nil && body != nil {
		if perr := reply.Pack(body); perr != nil {
			s.logger.Error("pack reply", "topic", msg.Topic, "error", perr)
			reply = msg.Reply(status.Status{Code: status.InternalError, Why: "internal error"})
		}
	}
	reply.Metadata = tracing.Inject(ctx, nil)
	if perr := s.ch.Publish(ctx, msg.ReplyTo, reply); perr != nil {
		if s.metrics != nil {
			s.metrics.PublishFailures.WithLabelValues(msg.ReplyTo).Inc()
		}
		return fmt.Errorf("rpc: reply to %s: %w", msg.ReplyTo, perr)
	}
	return nil
}
