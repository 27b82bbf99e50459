package kindred

import (
	"math"
	"reflect"
	"time"
)

// catchAll maps values declared as `any` by inspecting their runtime type.
// Only scalar kinds are supported; collections and structs are rejected.
var catchAll Mapper = catchAllMapper{}

type catchAllMapper struct{}

func (catchAllMapper) Encode(v reflect.Value) (Value, error) {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return Null{}, nil
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return Null{}, nil
	}

	switch v.Type() {
	case timeType:
		return Timestamp{Time: v.Interface().(time.Time).UTC()}, nil
	case geoPointType:
		return geoPointMapper{}.Encode(v)
	case keyPtrType:
		return keyMapper{}.Encode(v)
	case keyType:
		k := v.Interface().(Key)
		return &k, nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return Bool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() > math.MaxInt64 {
			return nil, newConversionError(ErrRange, v.Type(), v.Uint(), nil)
		}
		return Int(int64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return Double(v.Float()), nil
	case reflect.String:
		return String(v.String()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return (&bytesMapper{typ: v.Type()}).Encode(v)
		}
	case reflect.Pointer:
		if v.IsNil() {
			return Null{}, nil
		}
	}
	return nil, newConversionError(ErrUnsupportedType, v.Type(), nil, nil)
}

func (catchAllMapper) Decode(v Value) (reflect.Value, error) {
	var out any
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(anyType), nil
	case Bool:
		out = bool(nv)
	case Int:
		out = int64(nv)
	case Double:
		out = float64(nv)
	case String:
		out = string(nv)
	case Blob:
		b := make([]byte, len(nv))
		copy(b, nv)
		out = b
	case Timestamp:
		out = nv.Time
	case GeoPoint:
		out = nv
	case *Key:
		out = nv
	default:
		return reflect.Value{}, newConversionError(ErrUnsupportedType, anyType, nv.Kind().String(), nil)
	}
	return reflect.ValueOf(&out).Elem(), nil
}
