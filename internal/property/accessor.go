package property

import (
	"math"

	"github.com/labvisio/is-spinnaker-gateway/internal/status"
)

// Accessor performs validated get/set operations on a NodeMap.
//
// Contract:
//   - Every get checks the node is available and readable, every set that it
//     is available and writable (Unavailable / NotReadable / NotWritable).
//   - Numeric sets query the live range and reject values outside it with
//     OutOfRange; NaN is never in range. Values are never clamped here.
//   - Enum sets resolve the symbol to its integer value and write the
//     integer; an unknown symbol is InvalidArgument.
//   - SDK failures are wrapped as DeviceError.
//
// Accessor holds no state of its own and is safe for concurrent use as far as
// the underlying NodeMap is.
type Accessor struct {
	nodes NodeMap
}

// NewAccessor wraps nodes.
func NewAccessor(nodes NodeMap) *Accessor {
	return &Accessor{nodes: nodes}
}

// Nodes returns the wrapped node map.
func (a *Accessor) Nodes() NodeMap { return a.nodes }

func (a *Accessor) readable(name string, kind Kind) error {
	d, ok := a.nodes.Lookup(name)
	if !ok || !d.Available {
		return status.Unavailable(name)
	}
	if !d.Readable {
		return status.NotReadable(name)
	}
	if d.Kind != kind {
		return status.InvalidArgumentf(name, "property '%s' is %s, not %s", name, d.Kind, kind)
	}
	return nil
}

func (a *Accessor) writable(name string, kind Kind) error {
	d, ok := a.nodes.Lookup(name)
	if !ok || !d.Available {
		return status.Unavailable(name)
	}
	if !d.Writable {
		return status.NotWritable(name)
	}
	if d.Kind != kind {
		return status.InvalidArgumentf(name, "property '%s' is %s, not %s", name, d.Kind, kind)
	}
	return nil
}

// Readable reports whether name can currently be read, without reading it.
func (a *Accessor) Readable(name string) bool {
	d, ok := a.nodes.Lookup(name)
	return ok && d.Available && d.Readable
}

// Writable reports whether name can currently be written.
func (a *Accessor) Writable(name string) bool {
	d, ok := a.nodes.Lookup(name)
	return ok && d.Available && d.Writable
}

func (a *Accessor) Bool(name string) (bool, error) {
	if err := a.readable(name, KindBool); err != nil {
		return false, err
	}
	v, err := a.nodes.Bool(name)
	if err != nil {
		return false, status.DeviceError(name, err)
	}
	return v, nil
}

func (a *Accessor) SetBool(name string, v bool) error {
	if err := a.writable(name, KindBool); err != nil {
		return err
	}
	if err := a.nodes.SetBool(name, v); err != nil {
		return status.DeviceError(name, err)
	}
	return nil
}

// Int returns the current value together with the live range.
func (a *Accessor) Int(name string) (int64, Range, error) {
	if err := a.readable(name, KindInt); err != nil {
		return 0, Range{}, err
	}
	v, err := a.nodes.Int(name)
	if err != nil {
		return 0, Range{}, status.DeviceError(name, err)
	}
	min, max, err := a.nodes.IntRange(name)
	if err != nil {
		return 0, Range{}, status.DeviceError(name, err)
	}
	return v, Range{Min: float64(min), Max: float64(max)}, nil
}

func (a *Accessor) SetInt(name string, v int64) error {
	if err := a.writable(name, KindInt); err != nil {
		return err
	}
	min, max, err := a.nodes.IntRange(name)
	if err != nil {
		return status.DeviceError(name, err)
	}
	if v < min || v > max {
		return status.OutOfRange(name, v, min, max)
	}
	if err := a.nodes.SetInt(name, v); err != nil {
		return status.DeviceError(name, err)
	}
	return nil
}

// Float returns the current value together with the live range.
func (a *Accessor) Float(name string) (float64, Range, error) {
	if err := a.readable(name, KindFloat); err != nil {
		return 0, Range{}, err
	}
	v, err := a.nodes.Float(name)
	if err != nil {
		return 0, Range{}, status.DeviceError(name, err)
	}
	min, max, err := a.nodes.FloatRange(name)
	if err != nil {
		return 0, Range{}, status.DeviceError(name, err)
	}
	return v, Range{Min: min, Max: max}, nil
}

func (a *Accessor) SetFloat(name string, v float64) error {
	if err := a.writable(name, KindFloat); err != nil {
		return err
	}
	min, max, err := a.nodes.FloatRange(name)
	if err != nil {
		return status.DeviceError(name, err)
	}
	if math.IsNaN(v) || v < min || v > max {
		return status.OutOfRange(name, v, min, max)
	}
	if err := a.nodes.SetFloat(name, v); err != nil {
		return status.DeviceError(name, err)
	}
	return nil
}

// Range returns the live range of an int or float node.
func (a *Accessor) Range(name string) (Range, error) {
	d, ok := a.nodes.Lookup(name)
	if !ok || !d.Available {
		return Range{}, status.Unavailable(name)
	}
	switch d.Kind {
	case KindInt:
		min, max, err := a.nodes.IntRange(name)
		if err != nil {
			return Range{}, status.DeviceError(name, err)
		}
		return Range{Min: float64(min), Max: float64(max)}, nil
	case KindFloat:
		min, max, err := a.nodes.FloatRange(name)
		if err != nil {
			return Range{}, status.DeviceError(name, err)
		}
		return Range{Min: min, Max: max}, nil
	default:
		return Range{}, status.InvalidArgumentf(name, "property '%s' has no range (%s)", name, d.Kind)
	}
}

func (a *Accessor) String(name string) (string, error) {
	if err := a.readable(name, KindString); err != nil {
		return "", err
	}
	v, err := a.nodes.String(name)
	if err != nil {
		return "", status.DeviceError(name, err)
	}
	return v, nil
}

func (a *Accessor) SetString(name, v string) error {
	if err := a.writable(name, KindString); err != nil {
		return err
	}
	if err := a.nodes.SetString(name, v); err != nil {
		return status.DeviceError(name, err)
	}
	return nil
}

// Enum returns the symbol of the current entry.
func (a *Accessor) Enum(name string) (string, error) {
	if err := a.readable(name, KindEnum); err != nil {
		return "", err
	}
	e, err := a.nodes.EnumEntry(name)
	if err != nil {
		return "", status.DeviceError(name, err)
	}
	return e.Symbol, nil
}

// SetEnum resolves symbol among the node's entries and writes its value.
func (a *Accessor) SetEnum(name, symbol string) error {
	if err := a.writable(name, KindEnum); err != nil {
		return err
	}
	entries, err := a.nodes.EnumEntries(name)
	if err != nil {
		return status.DeviceError(name, err)
	}
	for _, e := range entries {
		if e.Symbol == symbol {
			if err := a.nodes.SetEnumValue(name, e.Value); err != nil {
				return status.DeviceError(name, err)
			}
			return nil
		}
	}
	return status.InvalidArgumentf(name, "property '%s' has no entry '%s'", name, symbol)
}

// Execute runs a command node.
func (a *Accessor) Execute(name string) error {
	if err := a.writable(name, KindCommand); err != nil {
		return err
	}
	if err := a.nodes.Execute(name); err != nil {
		return status.DeviceError(name, err)
	}
	return nil
}
