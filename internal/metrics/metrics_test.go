package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsIndependent(t *testing.T) {
	a, b := New(), New()
	a.FramesPublished.WithLabelValues("0").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.FramesPublished.WithLabelValues("0")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FramesPublished.WithLabelValues("0")))
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("CameraGateway.0.SetConfig", "OK", 3*time.Millisecond)
	m.ObserveRequest("CameraGateway.0.SetConfig", "PERMISSION_DENIED", time.Millisecond)
	m.ObserveRequest("CameraGateway.0.SetConfig", "OK", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("CameraGateway.0.SetConfig", "OK")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))

	err := testutil.GatherAndCompare(m.Registry, strings.NewReader(`
# HELP spinnaker_gateway_rpc_requests_total RPC requests served by topic and status code.
# TYPE spinnaker_gateway_rpc_requests_total counter
spinnaker_gateway_rpc_requests_total{code="OK",topic="CameraGateway.0.SetConfig"} 2
spinnaker_gateway_rpc_requests_total{code="PERMISSION_DENIED",topic="CameraGateway.0.SetConfig"} 1
`), "spinnaker_gateway_rpc_requests_total")
	require.NoError(t, err)

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveRequest("t", "OK", 0) })
}

func TestResult(t *testing.T) {
	assert.Equal(t, "success", Result(nil))
	assert.Equal(t, "failure", Result(errors.New("boom")))
}
