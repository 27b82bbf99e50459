package kindred

import (
	"reflect"
	"strings"
)

// embeddedMapper stores a struct value as a native Map of its fields.
// Properties missing from the map leave their fields at the zero value, so
// documents written before a field was added still decode.
type embeddedMapper struct {
	meta *ClassMetadata
}

func (m *embeddedMapper) Encode(v reflect.Value) (Value, error) {
	props := NewMap()
	if err := encodeFields(m.meta, v, props); err != nil {
		return nil, err
	}
	return props, nil
}

func (m *embeddedMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.meta.Type).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
		return out, nil
	case *Map:
		if err := decodeFields(m.meta, nv, out, true); err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	}
	return reflect.Value{}, mismatch(m.meta.Type, v)
}

// encodeFields writes the stored properties of obj into props. Key-carried
// roles are skipped; flattened fields write "<name>.<property>" entries.
func encodeFields(meta *ClassMetadata, obj reflect.Value, props *Map) error {
	for _, f := range meta.Fields {
		if f.Role.keyed() {
			continue
		}
		fv := f.get(obj)

		if f.Flattened != nil {
			sub := NewMap()
			if err := encodeFields(f.Flattened, fv, sub); err != nil {
				return atField(err, f.MappedName)
			}
			sub.Range(func(name string, v Value) bool {
				props.Set(f.MappedName+"."+name, v)
				return true
			})
			continue
		}

		nv, err := f.Mapper.Encode(fv)
		if err != nil {
			return atField(err, f.MappedName)
		}
		if _, isList := Unwrap(nv).(List); !isList {
			nv = withIndex(nv, f.Indexed)
		}
		props.Set(f.MappedName, nv)

		if f.Secondary != nil {
			iv, err := f.Secondary.impl.Index(Unwrap(nv))
			if err != nil {
				return atField(err, f.Secondary.Name)
			}
			props.Set(f.Secondary.Name, iv)
		}
	}
	return nil
}

// decodeFields populates the addressable struct obj from props. With lenient
// set, or for optional fields, a missing property leaves the field untouched.
// Secondary-index properties are ignored.
func decodeFields(meta *ClassMetadata, props *Map, obj reflect.Value, lenient bool) error {
	for _, f := range meta.Fields {
		if f.Role.keyed() {
			continue
		}

		if f.Flattened != nil {
			prefix := f.MappedName + "."
			sub := NewMap()
			props.Range(func(name string, v Value) bool {
				if rest, ok := strings.CutPrefix(name, prefix); ok {
					sub.Set(rest, v)
				}
				return true
			})
			if sub.Len() == 0 {
				if lenient || f.Optional {
					continue
				}
				return missing(meta, f)
			}
			if err := decodeFields(f.Flattened, sub, f.target(obj), true); err != nil {
				return atField(err, f.MappedName)
			}
			continue
		}

		nv, ok := props.Get(f.MappedName)
		if !ok {
			if lenient || f.Optional {
				continue
			}
			return missing(meta, f)
		}
		out, err := f.Mapper.Decode(Unwrap(nv))
		if err == nil {
			err = f.set(obj, out)
		}
		if err != nil {
			return atField(err, f.MappedName)
		}
	}
	return nil
}

func missing(meta *ClassMetadata, f *FieldDescriptor) error {
	return &ConversionError{Err: ErrMissingProperty, Type: typeName(meta.Type), Field: f.MappedName}
}
