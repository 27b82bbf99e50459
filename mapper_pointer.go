package kindred

import "reflect"

// ptrMapper maps *T through the mapper for T. Nil encodes to Null and Null decodes to nil.
type ptrMapper struct {
	typ  reflect.Type
	elem Mapper
}

func (m *ptrMapper) Encode(v reflect.Value) (Value, error) {
	if v.IsNil() {
		return Null{}, nil
	}
	return m.elem.Encode(v.Elem())
}

func (m *ptrMapper) Decode(v Value) (reflect.Value, error) {
	if IsNull(v) {
		return reflect.Zero(m.typ), nil
	}
	ev, err := m.elem.Decode(Unwrap(v))
	if err != nil {
		return reflect.Value{}, err
	}
	ev, err = conform(ev, m.typ.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(m.typ.Elem())
	p.Elem().Set(ev)
	return p, nil
}
