package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/tracing"
)

// DefaultTimeout bounds a call when ctx has no deadline.
const DefaultTimeout = 3 * time.Second

const pollInterval = 100 * time.Millisecond

// ErrDeadline is returned when no reply arrived in time.
var ErrDeadline = errors.New("rpc: deadline exceeded")

// Client issues requests and waits for their replies on a private topic.
// Calls are serialised; replies to abandoned calls are discarded.
type Client struct {
	ch      bus.Channel
	replyTo string
	timeout time.Duration
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewClient subscribes ch to a fresh reply topic. A zero timeout means
// DefaultTimeout.
func NewClient(ctx context.Context, ch bus.Channel, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		ch:      ch,
		replyTo: "rpc.reply." + uuid.NewString(),
		timeout: timeout,
		logger:  slog.Default().With("component", "rpc-client"),
	}
	if err := ch.Subscribe(ctx, c.replyTo); err != nil {
		return nil, fmt.Errorf("rpc: subscribe reply topic: %w", err)
	}
	return c, nil
}

// ReplyTo is the client's reply topic.
func (c *Client) ReplyTo() string { return c.replyTo }

// Call sends req on topic and decodes the reply body into rep, which may be
// nil. A non-OK reply status is returned as a *status.RemoteError.
func (c *Client) Call(ctx context.Context, topic string, req, rep any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, topic, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	msg := bus.NewMessage()
	msg.ReplyTo = c.replyTo
	msg.Metadata = tracing.Inject(ctx, nil)
	if req != nil {
		if err := msg.Pack(req); err != nil {
			return err
		}
	}
	if err := c.ch.Publish(ctx, topic, msg); err != nil {
		return fmt.Errorf("rpc: publish %s: %w", topic, err)
	}

	deadline, _ := ctx.Deadline()
	for {
		if err := ctx.Err(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return fmt.Errorf("%w waiting for %s", ErrDeadline, topic)
		}
		reply, err := c.ch.Consume(min(wait, pollInterval))
		switch {
		case errors.Is(err, bus.ErrTimeout):
			continue
		case err != nil:
			return err
		}
		if reply.CorrelationID != msg.ID {
			c.logger.Debug("discarding unrelated message", "topic", reply.Topic, "correlation_id", reply.CorrelationID)
			continue
		}
		if err := reply.Err(); err != nil {
			return err
		}
		if rep == nil {
			return nil
		}
		return reply.Unpack(rep)
	}
}
