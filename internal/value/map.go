package value

// Map is a reference-counted, string-keyed dictionary that preserves
// insertion order (required for stable Keys/Values iteration, §3.3).
type Map struct {
	keys     []string
	items    map[string]Value
	refcount int32
}

// NewMap builds a bare handle with no owner yet (refcount 0); wrap it into
// a Value with FromMap, which takes the first reference.
func NewMap() *Map {
	return &Map{items: make(map[string]Value), refcount: 0}
}

func (m *Map) Retain() {
	m.refcount++
}

func (m *Map) Release() {
	m.refcount--
	if m.refcount <= 0 {
		for _, k := range m.keys {
			m.items[k].Release()
		}
		m.keys = nil
		m.items = nil
	}
}

func (m *Map) Refcount() int32 { return m.refcount }

// Set updates an existing key in place or appends a new one, releasing
// whatever value it displaces.
func (m *Map) Set(key string, v Value) {
	if old, ok := m.items[key]; ok {
		old.Release()
		m.items[key] = v
		return
	}
	m.keys = append(m.keys, key)
	m.items[key] = v
}

// Get returns a clone of the value at key (read discipline: clone on read).
func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.items[key]
	if !ok {
		return Value{}, false
	}
	return v.Clone(), true
}

func (m *Map) Has(key string) bool {
	_, ok := m.items[key]
	return ok
}

// Keys returns an Array of String values in insertion order.
func (m *Map) Keys() *Array {
	out := make([]Value, len(m.keys))
	for i, k := range m.keys {
		out[i] = String(k)
	}
	return NewArray(out...)
}

// Values returns an Array of cloned Values in insertion order.
func (m *Map) Values() *Array {
	out := make([]Value, len(m.keys))
	for i, k := range m.keys {
		out[i] = m.items[k].Clone()
	}
	return NewArray(out...)
}

// DeepClone recursively duplicates contents into an independent new Map,
// preserving insertion order.
func (m *Map) DeepClone() *Map {
	out := NewMap()
	for _, k := range m.keys {
		out.Set(k, m.items[k].DeepClone())
	}
	return out
}

// OrderedKeys exposes insertion order for callers that need to walk the map
// deterministically; no package in this module calls it.
func (m *Map) OrderedKeys() []string { return m.keys }
