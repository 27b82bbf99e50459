package kindred

import "reflect"

// Override interfaces allow types to bypass reflection-based mapping.
// When *T implements both interfaces, the registry maps T through them
// instead of inspecting its kind or fields.
//
// Implementations are called on a fresh or copied value, never on the
// caller's original, and must not retain the Value they receive.

// NativeMarshaler converts the receiver to a native value.
type NativeMarshaler interface {
	MarshalNative() (Value, error)
}

// NativeUnmarshaler populates the receiver from a native value.
// Null never reaches UnmarshalNative; it decodes to the zero value.
type NativeUnmarshaler interface {
	UnmarshalNative(v Value) error
}

var (
	marshalerType   = reflect.TypeFor[NativeMarshaler]()
	unmarshalerType = reflect.TypeFor[NativeUnmarshaler]()
)

// overrides reports whether t is mapped through its own marshal methods.
func overrides(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	pt := reflect.PointerTo(t)
	return pt.Implements(marshalerType) && pt.Implements(unmarshalerType)
}

type overrideMapper struct {
	typ reflect.Type
}

func (m *overrideMapper) Encode(v reflect.Value) (Value, error) {
	p := reflect.New(m.typ)
	p.Elem().Set(v)
	nv, err := p.Interface().(NativeMarshaler).MarshalNative()
	if err != nil {
		return nil, newConversionError(ErrMalformedValue, m.typ, nil, err)
	}
	return nv, nil
}

func (m *overrideMapper) Decode(v Value) (reflect.Value, error) {
	p := reflect.New(m.typ)
	if err := p.Interface().(NativeUnmarshaler).UnmarshalNative(v); err != nil {
		return reflect.Value{}, newConversionError(ErrMalformedValue, m.typ, v.Kind().String(), err)
	}
	return p.Elem(), nil
}
