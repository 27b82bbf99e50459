package kindred

import (
	"math"
	"reflect"
	"time"

	"cloud.google.com/go/civil"
	"github.com/cockroachdb/apd/v3"
	"github.com/google/uuid"
)

var (
	anyType      = reflect.TypeFor[any]()
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
	keyPtrType   = reflect.TypeFor[*Key]()
	keyType      = reflect.TypeFor[Key]()
	geoPointType = reflect.TypeFor[GeoPoint]()
	uuidType     = reflect.TypeFor[uuid.UUID]()
	dateType     = reflect.TypeFor[civil.Date]()
	clockType    = reflect.TypeFor[civil.Time]()
	dateTimeType = reflect.TypeFor[civil.DateTime]()
	decimalType  = reflect.TypeFor[apd.Decimal]()
	emptyStruct  = reflect.TypeFor[struct{}]()
)

// builtinMappers holds the eagerly created scalar mappers, keyed by exact type.
var builtinMappers = map[reflect.Type]Mapper{
	reflect.TypeFor[bool]():    &boolMapper{typ: reflect.TypeFor[bool]()},
	reflect.TypeFor[string]():  &stringMapper{typ: reflect.TypeFor[string]()},
	reflect.TypeFor[int]():     &intMapper{typ: reflect.TypeFor[int]()},
	reflect.TypeFor[int8]():    &intMapper{typ: reflect.TypeFor[int8]()},
	reflect.TypeFor[int16]():   &intMapper{typ: reflect.TypeFor[int16]()},
	reflect.TypeFor[int32]():   &intMapper{typ: reflect.TypeFor[int32]()},
	reflect.TypeFor[int64]():   &intMapper{typ: reflect.TypeFor[int64]()},
	reflect.TypeFor[uint]():    &uintMapper{typ: reflect.TypeFor[uint]()},
	reflect.TypeFor[uint8]():   &uintMapper{typ: reflect.TypeFor[uint8]()},
	reflect.TypeFor[uint16]():  &uintMapper{typ: reflect.TypeFor[uint16]()},
	reflect.TypeFor[uint32]():  &uintMapper{typ: reflect.TypeFor[uint32]()},
	reflect.TypeFor[uint64]():  &uintMapper{typ: reflect.TypeFor[uint64]()},
	reflect.TypeFor[float32](): &floatMapper{typ: reflect.TypeFor[float32]()},
	reflect.TypeFor[float64](): &floatMapper{typ: reflect.TypeFor[float64]()},
	reflect.TypeFor[[]byte]():  &bytesMapper{typ: reflect.TypeFor[[]byte]()},
	timeType:                   timeMapper{},
	durationType:               durationMapper{},
	keyPtrType:                 keyMapper{},
	geoPointType:               geoPointMapper{},
	uuidType:                   uuidMapper{},
	dateType:                   civilDateMapper{},
	clockType:                  civilTimeMapper{},
	dateTimeType:               civilDateTimeMapper{},
	decimalType:                decimalTextMapper{},
	anyType:                    catchAll,
}

// scalarForKind builds a mapper for a named type over a basic kind, e.g. `type Color string`.
func scalarForKind(t reflect.Type) Mapper {
	switch t.Kind() {
	case reflect.Bool:
		return &boolMapper{typ: t}
	case reflect.String:
		return &stringMapper{typ: t}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &intMapper{typ: t}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &uintMapper{typ: t}
	case reflect.Float32, reflect.Float64:
		return &floatMapper{typ: t}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &bytesMapper{typ: t}
		}
	}
	return nil
}

type boolMapper struct{ typ reflect.Type }

func (m *boolMapper) Encode(v reflect.Value) (Value, error) {
	return Bool(v.Bool()), nil
}

func (m *boolMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case Bool:
		out.SetBool(bool(nv))
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

type stringMapper struct{ typ reflect.Type }

func (m *stringMapper) Encode(v reflect.Value) (Value, error) {
	return String(v.String()), nil
}

func (m *stringMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case String:
		out.SetString(string(nv))
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

// intMapper stores signed integers of any width; narrower widths are range checked on decode.
type intMapper struct{ typ reflect.Type }

func (m *intMapper) Encode(v reflect.Value) (Value, error) {
	return Int(v.Int()), nil
}

func (m *intMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case Int:
		if out.OverflowInt(int64(nv)) {
			return reflect.Value{}, newConversionError(ErrRange, m.typ, int64(nv), nil)
		}
		out.SetInt(int64(nv))
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

// uintMapper stores unsigned integers; values above MaxInt64 cannot be stored.
type uintMapper struct{ typ reflect.Type }

func (m *uintMapper) Encode(v reflect.Value) (Value, error) {
	u := v.Uint()
	if u > math.MaxInt64 {
		return nil, newConversionError(ErrRange, m.typ, u, nil)
	}
	return Int(int64(u)), nil
}

func (m *uintMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case Int:
		if nv < 0 || out.OverflowUint(uint64(nv)) {
			return reflect.Value{}, newConversionError(ErrRange, m.typ, int64(nv), nil)
		}
		out.SetUint(uint64(nv))
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

type floatMapper struct{ typ reflect.Type }

func (m *floatMapper) Encode(v reflect.Value) (Value, error) {
	return Double(v.Float()), nil
}

func (m *floatMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case Double:
		f := float64(nv)
		if !math.IsInf(f, 0) && !math.IsNaN(f) && out.OverflowFloat(f) {
			return reflect.Value{}, newConversionError(ErrRange, m.typ, f, nil)
		}
		out.SetFloat(f)
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

type bytesMapper struct{ typ reflect.Type }

func (m *bytesMapper) Encode(v reflect.Value) (Value, error) {
	if v.IsNil() {
		return Null{}, nil
	}
	b := make([]byte, v.Len())
	copy(b, v.Bytes())
	return Blob(b), nil
}

func (m *bytesMapper) Decode(v Value) (reflect.Value, error) {
	out := reflect.New(m.typ).Elem()
	switch nv := Unwrap(v).(type) {
	case Null:
	case Blob:
		b := make([]byte, len(nv))
		copy(b, nv)
		out.SetBytes(b)
	default:
		return reflect.Value{}, mismatch(m.typ, v)
	}
	return out, nil
}

type timeMapper struct{}

func (timeMapper) Encode(v reflect.Value) (Value, error) {
	return Timestamp{Time: v.Interface().(time.Time).UTC()}, nil
}

func (timeMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(timeType), nil
	case Timestamp:
		return reflect.ValueOf(nv.Time), nil
	}
	return reflect.Value{}, mismatch(timeType, v)
}

// durationMapper stores durations as integer nanoseconds.
type durationMapper struct{}

func (durationMapper) Encode(v reflect.Value) (Value, error) {
	return Int(v.Int()), nil
}

func (durationMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(durationType), nil
	case Int:
		return reflect.ValueOf(time.Duration(nv)), nil
	}
	return reflect.Value{}, mismatch(durationType, v)
}

type keyMapper struct{}

func (keyMapper) Encode(v reflect.Value) (Value, error) {
	if v.IsNil() {
		return Null{}, nil
	}
	return v.Interface().(*Key), nil
}

func (keyMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(keyPtrType), nil
	case *Key:
		return reflect.ValueOf(nv), nil
	}
	return reflect.Value{}, mismatch(keyPtrType, v)
}

type geoPointMapper struct{}

func (geoPointMapper) Encode(v reflect.Value) (Value, error) {
	g := v.Interface().(GeoPoint)
	if !g.Valid() {
		return nil, newConversionError(ErrRange, geoPointType, g, nil)
	}
	return g, nil
}

func (geoPointMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(geoPointType), nil
	case GeoPoint:
		return reflect.ValueOf(nv), nil
	}
	return reflect.Value{}, mismatch(geoPointType, v)
}

// uuidMapper stores UUIDs in their canonical text form.
type uuidMapper struct{}

func (uuidMapper) Encode(v reflect.Value) (Value, error) {
	return String(v.Interface().(uuid.UUID).String()), nil
}

func (uuidMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(uuidType), nil
	case String:
		id, err := uuid.Parse(string(nv))
		if err != nil {
			return reflect.Value{}, newConversionError(ErrMalformedValue, uuidType, string(nv), err)
		}
		return reflect.ValueOf(id), nil
	}
	return reflect.Value{}, mismatch(uuidType, v)
}

// civilDateMapper stores calendar dates as YYYY-MM-DD text. The zero date is stored as Null.
type civilDateMapper struct{}

func (civilDateMapper) Encode(v reflect.Value) (Value, error) {
	d := v.Interface().(civil.Date)
	if d == (civil.Date{}) {
		return Null{}, nil
	}
	return String(d.String()), nil
}

func (civilDateMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(dateType), nil
	case String:
		d, err := civil.ParseDate(string(nv))
		if err != nil {
			return reflect.Value{}, newConversionError(ErrMalformedValue, dateType, string(nv), err)
		}
		return reflect.ValueOf(d), nil
	}
	return reflect.Value{}, mismatch(dateType, v)
}

// civilTimeMapper stores wall-clock times as HH:MM:SS[.fraction] text.
type civilTimeMapper struct{}

func (civilTimeMapper) Encode(v reflect.Value) (Value, error) {
	return String(v.Interface().(civil.Time).String()), nil
}

func (civilTimeMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(clockType), nil
	case String:
		t, err := civil.ParseTime(string(nv))
		if err != nil {
			return reflect.Value{}, newConversionError(ErrMalformedValue, clockType, string(nv), err)
		}
		return reflect.ValueOf(t), nil
	}
	return reflect.Value{}, mismatch(clockType, v)
}

// civilDateTimeMapper stores local date-times as ISO text. The zero value is stored as Null.
type civilDateTimeMapper struct{}

func (civilDateTimeMapper) Encode(v reflect.Value) (Value, error) {
	dt := v.Interface().(civil.DateTime)
	if dt == (civil.DateTime{}) {
		return Null{}, nil
	}
	return String(dt.String()), nil
}

func (civilDateTimeMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(dateTimeType), nil
	case String:
		dt, err := civil.ParseDateTime(string(nv))
		if err != nil {
			return reflect.Value{}, newConversionError(ErrMalformedValue, dateTimeType, string(nv), err)
		}
		return reflect.ValueOf(dt), nil
	}
	return reflect.Value{}, mismatch(dateTimeType, v)
}

// decimalTextMapper stores decimals without a declared precision as exact text.
type decimalTextMapper struct{}

func (decimalTextMapper) Encode(v reflect.Value) (Value, error) {
	d := v.Interface().(apd.Decimal)
	return String(d.String()), nil
}

func (decimalTextMapper) Decode(v Value) (reflect.Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return reflect.Zero(decimalType), nil
	case String:
		d, _, err := apd.NewFromString(string(nv))
		if err != nil {
			return reflect.Value{}, newConversionError(ErrMalformedValue, decimalType, string(nv), err)
		}
		out := reflect.New(decimalType)
		out.Interface().(*apd.Decimal).Set(d)
		return out.Elem(), nil
	}
	return reflect.Value{}, mismatch(decimalType, v)
}
