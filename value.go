package kindred

import (
	"bytes"
	"fmt"
	"math"
	"time"
)

// ValueKind identifies the variant of a native Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindDouble
	KindString
	KindBlob
	KindTimestamp
	KindGeoPoint
	KindKey
	KindList
	KindMap
)

var valueKindNames = [...]string{
	KindNull:      "null",
	KindBool:      "bool",
	KindInt:       "int",
	KindDouble:    "double",
	KindString:    "string",
	KindBlob:      "blob",
	KindTimestamp: "timestamp",
	KindGeoPoint:  "geopoint",
	KindKey:       "key",
	KindList:      "list",
	KindMap:       "map",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("ValueKind(%d)", int(k))
}

// Value is the store's native value representation.
// Only the types declared in this file implement it.
type Value interface {
	Kind() ValueKind
	nativeValue()
}

// Null is the distinguished native null marker.
type Null struct{}

// Bool is a native boolean.
type Bool bool

// Int is a native 64-bit integer.
type Int int64

// Double is a native 64-bit float.
type Double float64

// String is a native UTF-8 string.
type String string

// Blob is a native byte sequence.
type Blob []byte

// Timestamp is a native point in time.
type Timestamp struct {
	time.Time
}

// GeoPoint is a latitude/longitude pair. It is both a model type and a native value.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Valid reports whether the point lies within legal coordinates.
func (g GeoPoint) Valid() bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lng >= -180 && g.Lng <= 180
}

// List is an ordered list of native values.
type List []Value

func (Null) Kind() ValueKind      { return KindNull }
func (Bool) Kind() ValueKind      { return KindBool }
func (Int) Kind() ValueKind       { return KindInt }
func (Double) Kind() ValueKind    { return KindDouble }
func (String) Kind() ValueKind    { return KindString }
func (Blob) Kind() ValueKind      { return KindBlob }
func (Timestamp) Kind() ValueKind { return KindTimestamp }
func (GeoPoint) Kind() ValueKind  { return KindGeoPoint }
func (*Key) Kind() ValueKind      { return KindKey }
func (List) Kind() ValueKind      { return KindList }
func (*Map) Kind() ValueKind      { return KindMap }

func (Null) nativeValue()      {}
func (Bool) nativeValue()      {}
func (Int) nativeValue()       {}
func (Double) nativeValue()    {}
func (String) nativeValue()    {}
func (Blob) nativeValue()      {}
func (Timestamp) nativeValue() {}
func (GeoPoint) nativeValue()  {}
func (*Key) nativeValue()      {}
func (List) nativeValue()      {}
func (*Map) nativeValue()      {}

// unindexed marks a value as excluded from the store's indexes.
type unindexed struct {
	v Value
}

func (u unindexed) Kind() ValueKind { return u.v.Kind() }
func (unindexed) nativeValue()      {}

// NoIndex excludes v from indexes. Wrapping twice is a no-op.
func NoIndex(v Value) Value {
	if v == nil {
		v = Null{}
	}
	if u, ok := v.(unindexed); ok {
		return u
	}
	return unindexed{v: v}
}

// Indexed reports whether v participates in indexes.
func Indexed(v Value) bool {
	_, ok := v.(unindexed)
	return !ok
}

// Unwrap strips any index exclusion from v. A nil value unwraps to Null.
func Unwrap(v Value) Value {
	if v == nil {
		return Null{}
	}
	if u, ok := v.(unindexed); ok {
		return u.v
	}
	return v
}

// withIndex applies the indexed flag to v.
func withIndex(v Value, indexed bool) Value {
	if indexed {
		return Unwrap(v)
	}
	return NoIndex(v)
}

// IsNull reports whether v is the native null marker.
func IsNull(v Value) bool {
	_, ok := Unwrap(v).(Null)
	return ok
}

// Map is an insertion-ordered, string-keyed map of native values.
type Map struct {
	names  []string
	values map[string]Value
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]Value)}
}

// Set stores v under name. Existing names keep their position.
func (m *Map) Set(name string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[name]; !ok {
		m.names = append(m.names, name)
	}
	m.values[name] = v
}

// Get returns the value stored under name.
func (m *Map) Get(name string) (Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Delete removes name from the map.
func (m *Map) Delete(name string) {
	if m == nil {
		return
	}
	if _, ok := m.values[name]; !ok {
		return
	}
	delete(m.values, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
}

// Keys returns the names in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(name string, v Value) bool) {
	if m == nil {
		return
	}
	for _, n := range m.names {
		if !fn(n, m.values[n]) {
			return
		}
	}
}

// Entity is a native document: a key plus its properties.
type Entity struct {
	Key        *Key
	Properties *Map
}

// Equal reports whether a and b are the same native value, including index flags.
func Equal(a, b Value) bool {
	if Indexed(a) != Indexed(b) {
		return false
	}
	a, b = Unwrap(a), Unwrap(b)
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Null:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Double:
		bv := b.(Double)
		if math.IsNaN(float64(av)) && math.IsNaN(float64(bv)) {
			return true
		}
		return av == bv
	case String:
		return av == b.(String)
	case Blob:
		return bytes.Equal(av, b.(Blob))
	case Timestamp:
		return av.Equal(b.(Timestamp).Time)
	case GeoPoint:
		return av == b.(GeoPoint)
	case *Key:
		return av.Equal(b.(*Key))
	case List:
		bv := b.(List)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case *Map:
		bv := b.(*Map)
		if av.Len() != bv.Len() {
			return false
		}
		for _, n := range av.names {
			other, ok := bv.Get(n)
			if !ok || !Equal(av.values[n], other) {
				return false
			}
		}
		return true
	}
	return false
}
