package kindred

import (
	"reflect"
)

// Mapper converts between one model type and the native value model.
//
// Encode receives a value of the mapper's model type and returns its native form.
// Decode returns a value assignable to the model type. Null decodes to the zero
// value and every nil pointer, slice, map or interface encodes to Null.
//
// Mapper instances are cached and shared; implementations must be safe for
// concurrent use.
type Mapper interface {
	Encode(v reflect.Value) (Value, error)
	Decode(v Value) (reflect.Value, error)
}

// mappingFunc adapts typed conversion functions to Mapper.
type mappingFunc[T any] struct {
	typ reflect.Type
	enc func(T) (Value, error)
	dec func(Value) (T, error)
}

// Mapping builds a Mapper for T from a pair of typed conversion functions.
// Register the result with Engine.RegisterMapper or WithMapper.
//
//	money := kindred.Mapping(
//	    func(m Money) (kindred.Value, error) { return kindred.Int(m.Cents), nil },
//	    func(v kindred.Value) (Money, error) { return Money{Cents: int64(v.(kindred.Int))}, nil },
//	)
func Mapping[T any](enc func(T) (Value, error), dec func(Value) (T, error)) Mapper {
	return &mappingFunc[T]{typ: reflect.TypeFor[T](), enc: enc, dec: dec}
}

func (m *mappingFunc[T]) Encode(v reflect.Value) (Value, error) {
	return m.enc(v.Interface().(T))
}

func (m *mappingFunc[T]) Decode(v Value) (reflect.Value, error) {
	out, err := m.dec(v)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(&out).Elem(), nil
}

// nullSafe enforces null handling around mappers supplied by users.
type nullSafe struct {
	typ   reflect.Type
	inner Mapper
}

func guardNull(t reflect.Type, m Mapper) Mapper {
	if _, ok := m.(*nullSafe); ok {
		return m
	}
	return &nullSafe{typ: t, inner: m}
}

func (m *nullSafe) Encode(v reflect.Value) (Value, error) {
	if isNil(v) {
		return Null{}, nil
	}
	nv, err := m.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if nv == nil {
		return Null{}, nil
	}
	return nv, nil
}

func (m *nullSafe) Decode(v Value) (reflect.Value, error) {
	if IsNull(v) {
		return reflect.Zero(m.typ), nil
	}
	out, err := m.inner.Decode(Unwrap(v))
	if err != nil {
		return reflect.Value{}, err
	}
	return conform(out, m.typ)
}

// isNil reports whether v is invalid or a nil reference.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// conform converts out to t when the types differ but are convertible.
func conform(out reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !out.IsValid() {
		return reflect.Zero(t), nil
	}
	if out.Type() == t {
		return out, nil
	}
	if out.Type().AssignableTo(t) {
		v := reflect.New(t).Elem()
		v.Set(out)
		return v, nil
	}
	if out.Kind() == t.Kind() && out.Type().ConvertibleTo(t) {
		return out.Convert(t), nil
	}
	return reflect.Value{}, newConversionError(ErrTypeMismatch, t, out.Type().String(), nil)
}
