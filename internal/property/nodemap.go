// Package property implements typed access to GenICam-style property nodes.
//
// A NodeMap is the SDK boundary: it exposes the raw nodes of one node map
// (device, transport-layer device, or stream). Accessor layers the checks
// every caller needs on top of it: availability, access direction, live
// range validation for numeric writes, and enum symbol resolution. All
// failures are *status.Error values.
package property

import "fmt"

// Kind is the value type of a node.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindEnum
	KindString
	KindCommand
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindEnum:
		return "enum"
	case KindString:
		return "string"
	case KindCommand:
		return "command"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Descriptor identifies one control point. Availability and access rights
// can change with device mode, so descriptors are re-read on every access.
type Descriptor struct {
	Name      string
	Kind      Kind
	Available bool
	Readable  bool
	Writable  bool
}

// Range is the live [Min, Max] of a numeric node.
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies in the closed range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// EnumEntry is one symbolic value of an enumeration node.
type EnumEntry struct {
	Symbol string
	Value  int64
}

// NodeMap is implemented by the camera SDK binding. Lookup reports false when
// the node does not exist at all. Typed accessors may assume the node exists
// and has the right kind; Accessor checks both before calling them.
type NodeMap interface {
	Lookup(name string) (Descriptor, bool)

	Bool(name string) (bool, error)
	SetBool(name string, v bool) error

	Int(name string) (int64, error)
	SetInt(name string, v int64) error
	IntRange(name string) (min, max int64, err error)

	Float(name string) (float64, error)
	SetFloat(name string, v float64) error
	FloatRange(name string) (min, max float64, err error)

	String(name string) (string, error)
	SetString(name string, v string) error

	// EnumEntry returns the current entry of an enumeration node.
	EnumEntry(name string) (EnumEntry, error)
	EnumEntries(name string) ([]EnumEntry, error)
	SetEnumValue(name string, v int64) error

	Execute(name string) error
}
