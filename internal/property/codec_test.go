package property

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

func TestCodecRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 10000; i++ {
		min := rng.Float64()*2000 - 1000
		max := min + rng.Float64()*1000 + 1e-3
		ratio := rng.Float64()

		got := ToRatio(ToRaw(ratio, min, max), min, max)
		if math.Abs(got-ratio) > 1e-9 {
			t.Fatalf("round trip ratio=%v min=%v max=%v: got %v", ratio, min, max, got)
		}
	}

	assert.Equal(t, 0.0, ToRatio(ToRaw(0, 3, 9), 3, 9))
	assert.Equal(t, 1.0, ToRatio(ToRaw(1, 3, 9), 3, 9))
}

func TestToRatioDegenerateRange(t *testing.T) {
	assert.Equal(t, 0.0, ToRatio(5, 5, 5))
	assert.False(t, math.IsNaN(ToRatio(0, 0, 0)))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 10.0, Clamp(12, 0, 10))
	assert.Equal(t, 0.0, Clamp(-0.0001, 0, 10))
	assert.Equal(t, 4.0, Clamp(4, 0, 10))
}

func TestCodecSetRatio(t *testing.T) {
	nodes := NewMemoryNodeMap().
		DefineFloat("BlackLevel", 0, 0, 10).
		DefineInt("GevSCPD", 0, 0, 1000)
	codec := NewCodec(NewAccessor(nodes))

	require.NoError(t, codec.SetRatio("BlackLevel", 0.25))
	v, err := nodes.Float("BlackLevel")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-12)

	ratio, err := codec.Ratio("BlackLevel")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, ratio, 1e-12)

	require.NoError(t, codec.SetRatio("GevSCPD", 0.3333))
	iv, err := nodes.Int("GevSCPD")
	require.NoError(t, err)
	assert.Equal(t, int64(333), iv)

	require.NoError(t, codec.SetRatio("BlackLevel", 1))
	v, _ = nodes.Float("BlackLevel")
	assert.Equal(t, 10.0, v)
}

func TestCodecRejectsRatioOutsideUnitInterval(t *testing.T) {
	nodes := NewMemoryNodeMap().DefineFloat("Gain", 3, 0, 48)
	codec := NewCodec(NewAccessor(nodes))

	for _, ratio := range []float64{-0.1, 1.5, math.NaN()} {
		err := codec.SetRatio("Gain", ratio)
		assert.True(t, status.Is(err, status.KindOutOfRange), "ratio %v: %v", ratio, err)
	}

	v, _ := nodes.Float("Gain")
	assert.Equal(t, 3.0, v)
}
