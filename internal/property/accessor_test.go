package property

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

func newTestNodes() *MemoryNodeMap {
	m := NewMemoryNodeMap()
	m.DefineBool("ReverseX", false)
	m.DefineInt("Width", 640, 16, 1440)
	m.DefineFloat("Gain", 0, 0, 47.99)
	m.DefineEnum("GainAuto", "Off", "Off", "Once", "Continuous")
	m.DefineString("DeviceModelName", "Blackfly S BFS-PGE-16S2C", false)
	m.Define("SensorTemperature", MemoryNode{Kind: KindFloat, Readable: true, Float: 41.5, Min: -40, Max: 120})
	return m
}

func TestAccessorAvailabilityAndDirection(t *testing.T) {
	acc := NewAccessor(newTestNodes())

	_, _, err := acc.Float("Gamma")
	assert.True(t, status.Is(err, status.KindUnavailable), "missing node: %v", err)

	err = acc.SetFloat("SensorTemperature", 20)
	assert.True(t, status.Is(err, status.KindNotWritable), "read-only node: %v", err)

	err = acc.SetString("DeviceModelName", "x")
	assert.True(t, status.Is(err, status.KindNotWritable))

	model, err := acc.String("DeviceModelName")
	require.NoError(t, err)
	assert.Equal(t, "Blackfly S BFS-PGE-16S2C", model)
}

func TestAccessorUnavailableInCurrentMode(t *testing.T) {
	nodes := newTestNodes()
	acc := NewAccessor(nodes)
	nodes.Update("Width", func(n *MemoryNode) { n.Available = false })

	_, _, err := acc.Int("Width")
	assert.True(t, status.Is(err, status.KindUnavailable))
	assert.False(t, acc.Readable("Width"))
}

// TestAccessorRangeRejection validates numeric writes are rejected, not clamped.
//
// Contract:
//   - A value above the live max returns OutOfRange{name, min, max}
//   - NaN is outside every range
//   - The node keeps its previous value
func TestAccessorRangeRejection(t *testing.T) {
	acc := NewAccessor(newTestNodes())

	require.NoError(t, acc.SetFloat("Gain", 12.5))

	err := acc.SetFloat("Gain", 48)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.KindOutOfRange))
	assert.Contains(t, err.Error(), "[0, 47.99]")

	err = acc.SetFloat("Gain", math.NaN())
	assert.True(t, status.Is(err, status.KindOutOfRange), "NaN gain: %v", err)

	v, r, err := acc.Float("Gain")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v, "rejected write must not change the node")
	assert.Equal(t, Range{Min: 0, Max: 47.99}, r)

	err = acc.SetInt("Width", 2000)
	assert.True(t, status.Is(err, status.KindOutOfRange))
	w, _, err := acc.Int("Width")
	require.NoError(t, err)
	assert.Equal(t, int64(640), w)
}

func TestAccessorEnumBySymbol(t *testing.T) {
	acc := NewAccessor(newTestNodes())

	require.NoError(t, acc.SetEnum("GainAuto", "Continuous"))
	got, err := acc.Enum("GainAuto")
	require.NoError(t, err)
	assert.Equal(t, "Continuous", got)

	err = acc.SetEnum("GainAuto", "Sometimes")
	assert.True(t, status.Is(err, status.KindInvalidArgument))
}

func TestAccessorWrapsDeviceErrors(t *testing.T) {
	nodes := newTestNodes()
	acc := NewAccessor(nodes)
	nodes.Fail("ReverseX", errors.New("GenICam timeout"))

	_, err := acc.Bool("ReverseX")
	assert.True(t, status.Is(err, status.KindDeviceError))
	assert.Equal(t, status.InternalError, status.CodeOf(err))
}

func TestAccessorKindMismatch(t *testing.T) {
	acc := NewAccessor(newTestNodes())

	_, err := acc.Bool("Gain")
	assert.True(t, status.Is(err, status.KindInvalidArgument))

	_, err = acc.Range("ReverseX")
	assert.True(t, status.Is(err, status.KindInvalidArgument))
}

func TestAccessorExecute(t *testing.T) {
	nodes := newTestNodes()
	calls := 0
	nodes.DefineCommand("UserSetLoad", func() error { calls++; return nil })
	acc := NewAccessor(nodes)

	require.NoError(t, acc.Execute("UserSetLoad"))
	assert.Equal(t, 1, calls)
	assert.True(t, status.Is(acc.Execute("AcquisitionStart"), status.KindUnavailable))
}
