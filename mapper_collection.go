package kindred

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strconv"
)

// listMapper maps slices and arrays to List, applying the item mapper per element.
type listMapper struct {
	typ     reflect.Type
	item    Mapper
	indexed bool
}

func (m *listMapper) Encode(v reflect.Value) (Value, error) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return Null{}, nil
	}
	out := make(List, v.Len())
	for i := range v.Len() {
		nv, err := m.item.Encode(v.Index(i))
		if err != nil {
			return nil, atField(err, "["+strconv.Itoa(i)+"]")
		}
		out[i] = withIndex(nv, m.indexed)
	}
	return out, nil
}

func (m *listMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	var items List
	switch nv := Unwrap(v).(type) {
	case Null:
		return out, nil
	case List:
		items = nv
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}

	if m.typ.Kind() == reflect.Array {
		if len(items) != m.typ.Len() {
			return reflect.Value{}, newConversionError(ErrTypeMismatch, m.typ,
				fmt.Sprintf("list of %d", len(items)), nil)
		}
	} else {
		out.Set(reflect.MakeSlice(m.typ, len(items), len(items)))
	}

	for i, item := range items {
		ev, err := m.item.Decode(Unwrap(item))
		if err == nil {
			ev, err = conform(ev, m.typ.Elem())
		}
		if err != nil {
			return reflect.Value{}, atField(err, "["+strconv.Itoa(i)+"]")
		}
		out.Index(i).Set(ev)
	}
	return out, nil
}

// setMapper maps map[K]struct{} to a List of distinct elements in ascending order.
type setMapper struct {
	typ     reflect.Type
	item    Mapper
	indexed bool
}

func (m *setMapper) Encode(v reflect.Value) (Value, error) {
	if v.IsNil() {
		return Null{}, nil
	}
	keys := v.MapKeys()
	sortValues(keys)
	out := make(List, len(keys))
	for i, k := range keys {
		nv, err := m.item.Encode(k)
		if err != nil {
			return nil, atField(err, "["+strconv.Itoa(i)+"]")
		}
		out[i] = withIndex(nv, m.indexed)
	}
	return out, nil
}

func (m *setMapper) Decode(v Value) (reflect.Value, error) {
	var items List
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(m.typ), nil
	case List:
		items = nv
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}

	out := reflect.MakeMapWithSize(m.typ, len(items))
	member := reflect.New(m.typ.Elem()).Elem()
	for i, item := range items {
		kv, err := m.item.Decode(Unwrap(item))
		if err == nil {
			kv, err = conform(kv, m.typ.Key())
		}
		if err != nil {
			return reflect.Value{}, atField(err, "["+strconv.Itoa(i)+"]")
		}
		out.SetMapIndex(kv, member)
	}
	return out, nil
}

// mapMapper maps map[string]V to a native Map with entries sorted by key.
type mapMapper struct {
	typ     reflect.Type
	value   Mapper
	indexed bool
}

func (m *mapMapper) Encode(v reflect.Value) (Value, error) {
	if v.IsNil() {
		return Null{}, nil
	}
	keys := v.MapKeys()
	sortValues(keys)
	out := NewMap()
	for _, k := range keys {
		nv, err := m.value.Encode(v.MapIndex(k))
		if err != nil {
			return nil, atField(err, k.String())
		}
		out.Set(k.String(), withIndex(nv, m.indexed))
	}
	return out, nil
}

func (m *mapMapper) Decode(v Value) (reflect.Value, error) {
	var entries *Map
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(m.typ), nil
	case *Map:
		entries = nv
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}

	out := reflect.MakeMapWithSize(m.typ, entries.Len())
	var err error
	entries.Range(func(name string, item Value) bool {
		var ev reflect.Value
		ev, err = m.value.Decode(Unwrap(item))
		if err == nil {
			ev, err = conform(ev, m.typ.Elem())
		}
		if err != nil {
			err = atField(err, name)
			return false
		}
		out.SetMapIndex(reflect.ValueOf(name).Convert(m.typ.Key()), ev)
		return true
	})
	if err != nil {
		return reflect.Value{}, err
	}
	return out, nil
}

// sortValues orders map keys of a basic kind so encoding is deterministic.
func sortValues(keys []reflect.Value) {
	if len(keys) == 0 {
		return
	}
	switch keys[0].Kind() {
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	case reflect.Bool:
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			switch {
			case a.Bool() == b.Bool():
				return 0
			case !a.Bool():
				return -1
			}
			return 1
		})
	default:
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})
	}
}
