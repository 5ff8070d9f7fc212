package property

import (
	"math"

	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// ToRaw maps a ratio in [0,1] onto [min,max].
func ToRaw(ratio, min, max float64) float64 {
	return ratio*(max-min) + min
}

// ToRatio maps a raw value in [min,max] onto [0,1].
//
// A degenerate range (min == max) has no meaningful ratio; it returns 0.
func ToRatio(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

// Clamp returns v limited to [min,max].
func Clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

// Codec reads and writes ratio settings against ranged nodes.
//
// Ratios outside [0,1] are rejected with OutOfRange. The raw value derived
// from a valid ratio is clamped to the live range before writing, which
// absorbs floating-point overshoot at the edges and, for integer nodes,
// rounding.
type Codec struct {
	acc *Accessor
}

// NewCodec returns a codec writing through acc.
func NewCodec(acc *Accessor) Codec {
	return Codec{acc: acc}
}

// Ratio reads name and converts it to a ratio of its live range.
func (c Codec) Ratio(name string) (float64, error) {
	d, ok := c.acc.nodes.Lookup(name)
	if !ok || !d.Available {
		return 0, status.Unavailable(name)
	}
	switch d.Kind {
	case KindInt:
		v, r, err := c.acc.Int(name)
		if err != nil {
			return 0, err
		}
		return ToRatio(float64(v), r.Min, r.Max), nil
	default:
		v, r, err := c.acc.Float(name)
		if err != nil {
			return 0, err
		}
		return ToRatio(v, r.Min, r.Max), nil
	}
}

// SetRatio converts ratio to a raw value of name's live range and writes it.
func (c Codec) SetRatio(name string, ratio float64) error {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return status.OutOfRange(name, ratio, 0, 1)
	}
	r, err := c.acc.Range(name)
	if err != nil {
		return err
	}
	raw := Clamp(ToRaw(ratio, r.Min, r.Max), r.Min, r.Max)

	d, _ := c.acc.nodes.Lookup(name)
	if d.Kind == KindInt {
		return c.acc.SetInt(name, int64(Clamp(math.Round(raw), r.Min, r.Max)))
	}
	return c.acc.SetFloat(name, raw)
}
