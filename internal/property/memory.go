package property

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryNode is the definition of one node held by a MemoryNodeMap.
type MemoryNode struct {
	Kind      Kind
	Readable  bool
	Writable  bool
	Available bool

	Bool   bool
	Int    int64
	Float  float64
	String string

	// Min and Max bound Int and Float nodes.
	Min, Max float64

	// Entries lists the symbols of an Enum node; Int holds the current value.
	Entries []EnumEntry

	// OnExecute runs when a Command node is executed.
	OnExecute func() error
	// OnChange runs after a successful write.
	OnChange func()
}

// MemoryNodeMap is an in-memory NodeMap. The simulated GenICam device builds
// its node maps from it and tests use it directly.
//
// Thread-safety: all methods are safe for concurrent use. Hooks run without
// the map lock held, so they may call back into the map.
type MemoryNodeMap struct {
	mu    sync.RWMutex
	nodes map[string]*MemoryNode

	// injected SDK errors by node name
	fail map[string]error
}

// NewMemoryNodeMap returns an empty map.
func NewMemoryNodeMap() *MemoryNodeMap {
	return &MemoryNodeMap{
		nodes: make(map[string]*MemoryNode),
		fail:  make(map[string]error),
	}
}

// Define adds or replaces a node. Available defaults to true.
func (m *MemoryNodeMap) Define(name string, n MemoryNode) *MemoryNodeMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.Available = true
	m.nodes[name] = &n
	return m
}

func (m *MemoryNodeMap) DefineBool(name string, v bool) *MemoryNodeMap {
	return m.Define(name, MemoryNode{Kind: KindBool, Readable: true, Writable: true, Bool: v})
}

func (m *MemoryNodeMap) DefineInt(name string, v, min, max int64) *MemoryNodeMap {
	return m.Define(name, MemoryNode{Kind: KindInt, Readable: true, Writable: true,
		Int: v, Min: float64(min), Max: float64(max)})
}

func (m *MemoryNodeMap) DefineFloat(name string, v, min, max float64) *MemoryNodeMap {
	return m.Define(name, MemoryNode{Kind: KindFloat, Readable: true, Writable: true,
		Float: v, Min: min, Max: max})
}

func (m *MemoryNodeMap) DefineString(name, v string, writable bool) *MemoryNodeMap {
	return m.Define(name, MemoryNode{Kind: KindString, Readable: true, Writable: writable, String: v})
}

// DefineEnum defines an enumeration whose entries take values 0..n-1 in order.
func (m *MemoryNodeMap) DefineEnum(name, current string, symbols ...string) *MemoryNodeMap {
	n := MemoryNode{Kind: KindEnum, Readable: true, Writable: true}
	for i, s := range symbols {
		n.Entries = append(n.Entries, EnumEntry{Symbol: s, Value: int64(i)})
		if s == current {
			n.Int = int64(i)
		}
	}
	return m.Define(name, n)
}

func (m *MemoryNodeMap) DefineCommand(name string, fn func() error) *MemoryNodeMap {
	return m.Define(name, MemoryNode{Kind: KindCommand, Writable: true, OnExecute: fn})
}

// Update mutates a node definition in place, for example to change access
// rights or ranges the way a real device does when its mode changes.
func (m *MemoryNodeMap) Update(name string, fn func(n *MemoryNode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[name]; ok {
		fn(n)
	}
}

// Fail makes every operation on name return err. A nil err clears it.
func (m *MemoryNodeMap) Fail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fail, name)
		return
	}
	m.fail[name] = err
}

// Names returns the defined node names in sorted order.
func (m *MemoryNodeMap) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.nodes))
	for name := range m.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MemoryNodeMap) Lookup(name string) (Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{
		Name:      name,
		Kind:      n.Kind,
		Available: n.Available,
		Readable:  n.Readable,
		Writable:  n.Writable,
	}, true
}

func (m *MemoryNodeMap) read(name string, kind Kind) (MemoryNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.fail[name]; err != nil {
		return MemoryNode{}, err
	}
	n, ok := m.nodes[name]
	if !ok {
		return MemoryNode{}, fmt.Errorf("node %s not found", name)
	}
	if n.Kind != kind {
		return MemoryNode{}, fmt.Errorf("node %s is %s, not %s", name, n.Kind, kind)
	}
	return *n, nil
}

func (m *MemoryNodeMap) write(name string, kind Kind, fn func(n *MemoryNode) error) error {
	m.mu.Lock()
	if err := m.fail[name]; err != nil {
		m.mu.Unlock()
		return err
	}
	n, ok := m.nodes[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("node %s not found", name)
	}
	if n.Kind != kind {
		m.mu.Unlock()
		return fmt.Errorf("node %s is %s, not %s", name, n.Kind, kind)
	}
	if err := fn(n); err != nil {
		m.mu.Unlock()
		return err
	}
	hook := n.OnChange
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (m *MemoryNodeMap) Bool(name string) (bool, error) {
	n, err := m.read(name, KindBool)
	return n.Bool, err
}

func (m *MemoryNodeMap) SetBool(name string, v bool) error {
	return m.write(name, KindBool, func(n *MemoryNode) error {
		n.Bool = v
		return nil
	})
}

func (m *MemoryNodeMap) Int(name string) (int64, error) {
	n, err := m.read(name, KindInt)
	return n.Int, err
}

func (m *MemoryNodeMap) SetInt(name string, v int64) error {
	return m.write(name, KindInt, func(n *MemoryNode) error {
		if float64(v) < n.Min || float64(v) > n.Max {
			return fmt.Errorf("node %s: value %d out of range", name, v)
		}
		n.Int = v
		return nil
	})
}

func (m *MemoryNodeMap) IntRange(name string) (int64, int64, error) {
	n, err := m.read(name, KindInt)
	return int64(n.Min), int64(n.Max), err
}

func (m *MemoryNodeMap) Float(name string) (float64, error) {
	n, err := m.read(name, KindFloat)
	return n.Float, err
}

func (m *MemoryNodeMap) SetFloat(name string, v float64) error {
	return m.write(name, KindFloat, func(n *MemoryNode) error {
		if v < n.Min || v > n.Max {
			return fmt.Errorf("node %s: value %g out of range", name, v)
		}
		n.Float = v
		return nil
	})
}

func (m *MemoryNodeMap) FloatRange(name string) (float64, float64, error) {
	n, err := m.read(name, KindFloat)
	return n.Min, n.Max, err
}

func (m *MemoryNodeMap) String(name string) (string, error) {
	n, err := m.read(name, KindString)
	return n.String, err
}

func (m *MemoryNodeMap) SetString(name, v string) error {
	return m.write(name, KindString, func(n *MemoryNode) error {
		n.String = v
		return nil
	})
}

func (m *MemoryNodeMap) EnumEntry(name string) (EnumEntry, error) {
	n, err := m.read(name, KindEnum)
	if err != nil {
		return EnumEntry{}, err
	}
	for _, e := range n.Entries {
		if e.Value == n.Int {
			return e, nil
		}
	}
	return EnumEntry{}, fmt.Errorf("node %s: current value %d has no entry", name, n.Int)
}

func (m *MemoryNodeMap) EnumEntries(name string) ([]EnumEntry, error) {
	n, err := m.read(name, KindEnum)
	if err != nil {
		return nil, err
	}
	return append([]EnumEntry(nil), n.Entries...), nil
}

func (m *MemoryNodeMap) SetEnumValue(name string, v int64) error {
	return m.write(name, KindEnum, func(n *MemoryNode) error {
		for _, e := range n.Entries {
			if e.Value == v {
				n.Int = v
				return nil
			}
		}
		return fmt.Errorf("node %s: no entry with value %d", name, v)
	})
}

func (m *MemoryNodeMap) Execute(name string) error {
	m.mu.RLock()
	if err := m.fail[name]; err != nil {
		m.mu.RUnlock()
		return err
	}
	n, ok := m.nodes[name]
	if !ok || n.Kind != KindCommand {
		m.mu.RUnlock()
		return fmt.Errorf("command %s not found", name)
	}
	fn := n.OnExecute
	m.mu.RUnlock()

	if fn != nil {
		return fn()
	}
	return nil
}
