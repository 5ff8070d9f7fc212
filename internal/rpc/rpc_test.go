package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/bus"
	"github.com/labvisio/is-spinnaker-gateway/internal/metrics"
	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

type echoReq struct {
	Text string `msgpack:"text"`
}

type echoRep struct {
	Text string `msgpack:"text"`
	N    int    `msgpack:"n"`
}

// serve runs a serve loop the way the gateway main loop does: poll the
// inbox without blocking and dispatch what the server owns.
func serve(t *testing.T, ctx context.Context, ch bus.Channel, s *Server) {
	t.Helper()
	go func() {
		for ctx.Err() == nil {
			msg, err := ch.Consume(10 * time.Millisecond)
			if err != nil {
				if errors.Is(err, bus.ErrClosed) {
					return
				}
				continue
			}
			if s.ShouldServe(msg) {
				_ = s.Serve(ctx, msg)
			}
		}
	}()
}

func setup(t *testing.T, m *metrics.Metrics) (*Client, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	broker := bus.NewBroker()
	srvCh, cliCh := bus.NewLocal(broker), bus.NewLocal(broker)
	t.Cleanup(func() {
		cancel()
		srvCh.Close()
		cliCh.Close()
	})

	s := NewServer(srvCh, WithMetrics(m))
	require.NoError(t, s.Delegate(ctx, "Echo", Handle(func(_ context.Context, req echoReq) (echoRep, error) {
		return echoRep{Text: req.Text, N: len(req.Text)}, nil
	})))
	require.NoError(t, s.Delegate(ctx, "Deny", Handle(func(_ context.Context, _ echoReq) (echoRep, error) {
		return echoRep{}, status.Annotate(
			status.PermissionDeniedf("color_space", "color space cannot change while streaming"),
			"image.color_space")
	})))
	require.NoError(t, s.Delegate(ctx, "Crash", func(context.Context, bus.Message) (any, error) {
		return nil, errors.New("spinnaker: -1002 SPINNAKER_ERR_NOT_AVAILABLE")
	}))
	serve(t, ctx, srvCh, s)

	c, err := NewClient(ctx, cliCh, time.Second)
	require.NoError(t, err)
	return c, ctx
}

func TestCallRoundTrip(t *testing.T) {
	m := metrics.New()
	c, ctx := setup(t, m)

	var rep echoRep
	require.NoError(t, c.Call(ctx, "Echo", echoReq{Text: "hello"}, &rep))
	assert.Equal(t, echoRep{Text: "hello", N: 5}, rep)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("Echo", "OK")))
}

// TestErrorReplies checks that handler errors reach the caller as status
// codes.
//
// Contract: classified errors keep their field path and message; anything
// else is reported as an internal error without the device text.
func TestErrorReplies(t *testing.T) {
	c, ctx := setup(t, nil)

	err := c.Call(ctx, "Deny", echoReq{}, nil)
	var remote *status.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, status.PermissionDenied, remote.Status.Code)
	assert.Equal(t, "image.color_space: color space cannot change while streaming", remote.Status.Why)

	err = c.Call(ctx, "Crash", nil, nil)
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, status.InternalError, remote.Status.Code)
	assert.NotContains(t, remote.Status.Why, "SPINNAKER")
}

func TestMalformedBody(t *testing.T) {
	c, ctx := setup(t, nil)

	err := c.Call(ctx, "Echo", "not a struct", nil)
	var remote *status.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, status.InvalidArgument, remote.Status.Code)
}

func TestCallTimesOutWithoutServer(t *testing.T) {
	c, ctx := setup(t, nil)

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Call(ctx, "Nobody.Home", echoReq{}, nil)
	assert.ErrorIs(t, err, ErrDeadline)
	assert.Less(t, time.Since(start), time.Second)
}

func TestShouldServe(t *testing.T) {
	s := NewServer(bus.NewLocal(bus.NewBroker()))
	require.NoError(t, s.Delegate(context.Background(), "A", func(context.Context, bus.Message) (any, error) { return nil, nil }))

	assert.True(t, s.ShouldServe(bus.Message{Topic: "A"}))
	assert.False(t, s.ShouldServe(bus.Message{Topic: "B"}))
	assert.Error(t, s.Serve(context.Background(), bus.Message{Topic: "B"}))
	assert.NoError(t, s.Serve(context.Background(), bus.Message{Topic: "A"}), "no reply_to, nothing to publish")
}
