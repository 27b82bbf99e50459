package kindred

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Intent states why an entity is being encoded, so version and timestamp
// fields can be maintained.
type Intent int

const (
	// IntentNone writes auto fields as they are.
	IntentNone Intent = iota
	// IntentInsert sets version to 1 and created and updated to now.
	IntentInsert
	// IntentUpdate increments version and sets updated to now.
	IntentUpdate
	// IntentUpsert increments version and sets created and updated to now.
	IntentUpsert
)

func (i Intent) String() string {
	switch i {
	case IntentNone:
		return "none"
	case IntentInsert:
		return "insert"
	case IntentUpdate:
		return "update"
	case IntentUpsert:
		return "upsert"
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// Encode converts obj, a struct or pointer to struct, to a native entity.
func (e *Engine) Encode(ctx context.Context, obj any) (*Entity, error) {
	return e.EncodeFor(ctx, obj, IntentNone)
}

// EncodeFor converts obj to a native entity, maintaining its version and
// timestamp properties for intent. obj itself is never modified.
func (e *Engine) EncodeFor(ctx context.Context, obj any, intent Intent) (ent *Entity, err error) {
	start := time.Now()
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	defer func() {
		d := time.Since(start)
		e.metrics.RecordConversion("encode", d, err)
		emitEncodeComplete(ctx, rv.Type().String(), intent, d, err)
	}()

	meta, err := e.introspector.entity(rv.Type())
	if err != nil {
		return nil, err
	}
	return e.encodeEntity(meta, rv, intent)
}

func (e *Engine) encodeEntity(meta *ClassMetadata, rv reflect.Value, intent Intent) (*Entity, error) {
	key, err := e.keyOf(meta, rv)
	if err != nil {
		return nil, err
	}
	ent := &Entity{Key: key, Properties: NewMap()}
	if err := encodeFields(meta, rv, ent.Properties); err != nil {
		return nil, err
	}
	if err := e.applyIntent(meta, rv, ent.Properties, intent); err != nil {
		return nil, err
	}
	return ent, nil
}

// Key returns the key of obj, built from its identifier and parent key.
func (e *Engine) Key(obj any) (*Key, error) {
	rv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	meta, err := e.introspector.entity(rv.Type())
	if err != nil {
		return nil, err
	}
	return e.keyOf(meta, rv)
}

// keyOf builds the key from the identifier. A zero identifier yields an
// incomplete key.
func (e *Engine) keyOf(meta *ClassMetadata, rv reflect.Value) (*Key, error) {
	var parent *Key
	if meta.ParentKey != nil {
		parent, _ = meta.ParentKey.get(rv).Interface().(*Key)
	}
	id := meta.Identifier.get(rv)

	var k *Key
	switch id.Kind() {
	case reflect.Int, reflect.Int64:
		k = IDKey(meta.Kind, id.Int(), parent)
	case reflect.String:
		k = NameKey(meta.Kind, id.String(), parent)
	default:
		return nil, newConfigError(ErrInvalidRoleType, meta.Type, meta.Identifier.Name, "identifier")
	}
	k.Namespace = e.namespace
	return k, nil
}

func (e *Engine) applyIntent(meta *ClassMetadata, rv reflect.Value, props *Map, intent Intent) error {
	if intent == IntentNone {
		return nil
	}
	now := e.clock()

	if f := meta.Version; f != nil {
		next := int64(1)
		if intent != IntentInsert {
			next = f.get(rv).Int() + 1
		}
		v := reflect.New(f.Type).Elem()
		v.SetInt(next)
		if err := setAuto(props, f, v); err != nil {
			return err
		}
	}
	if f := meta.Created; f != nil && intent != IntentUpdate {
		if err := setAuto(props, f, autoValue(f.Type, now)); err != nil {
			return err
		}
	}
	if f := meta.Updated; f != nil {
		if err := setAuto(props, f, autoValue(f.Type, now)); err != nil {
			return err
		}
	}
	return nil
}

func setAuto(props *Map, f *FieldDescriptor, v reflect.Value) error {
	nv, err := f.Mapper.Encode(v)
	if err != nil {
		return atField(err, f.MappedName)
	}
	props.Set(f.MappedName, withIndex(nv, f.Indexed))
	return nil
}

// autoValue builds the value written to a timestamp field.
func autoValue(t reflect.Type, now time.Time) reflect.Value {
	v := reflect.New(t).Elem()
	switch {
	case t == timeType:
		v.Set(reflect.ValueOf(now))
	case t == reflect.PointerTo(timeType):
		v.Set(reflect.ValueOf(&now))
	case t.Kind() == reflect.Int64:
		v.SetInt(now.UnixMilli())
	}
	return v
}

// Decode populates dst, a pointer to an entity struct, from ent.
// Properties without a matching field are ignored.
func (e *Engine) Decode(ctx context.Context, ent *Entity, dst any) (err error) {
	start := time.Now()
	rv, err := targetValue(dst)
	if err != nil {
		return err
	}
	defer func() {
		d := time.Since(start)
		e.metrics.RecordConversion("decode", d, err)
		emitDecodeComplete(ctx, rv.Type().String(), d, err)
	}()

	meta, err := e.introspector.entity(rv.Type())
	if err != nil {
		return err
	}
	return e.decodeEntity(meta, ent, rv)
}

func (e *Engine) decodeEntity(meta *ClassMetadata, ent *Entity, rv reflect.Value) error {
	if ent == nil {
		return newConversionError(ErrInvalidTarget, meta.Type, nil, fmt.Errorf("nil entity"))
	}
	if ent.Key != nil {
		if err := restoreKey(meta, ent.Key, rv); err != nil {
			return err
		}
	}
	props := ent.Properties
	if props == nil {
		props = NewMap()
	}
	return decodeFields(meta, props, rv, false)
}

// restoreKey writes the identifier, key and parent key fields from k.
func restoreKey(meta *ClassMetadata, k *Key, rv reflect.Value) error {
	id := meta.Identifier
	target := id.target(rv)
	switch target.Kind() {
	case reflect.Int, reflect.Int64:
		if k.Name != "" {
			return &ConversionError{Err: ErrTypeMismatch, Type: typeName(meta.Type), Field: id.MappedName, Value: k.Name}
		}
		target.SetInt(k.ID)
	case reflect.String:
		if k.ID != 0 {
			return &ConversionError{Err: ErrTypeMismatch, Type: typeName(meta.Type), Field: id.MappedName, Value: k.ID}
		}
		target.SetString(k.Name)
	}
	if meta.Key != nil {
		meta.Key.target(rv).Set(reflect.ValueOf(k))
	}
	if meta.ParentKey != nil {
		meta.ParentKey.target(rv).Set(reflect.ValueOf(k.Parent))
	}
	return nil
}

// EncodeValue converts any mapped Go value to its native form.
func (e *Engine) EncodeValue(v any) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	rv := reflect.ValueOf(v)
	m, err := e.registry.resolve(rv.Type(), true)
	if err != nil {
		return nil, err
	}
	return m.Encode(rv)
}

// DecodeValue converts nv into the value dst points to.
func (e *Engine) DecodeValue(nv Value, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newConversionError(ErrInvalidTarget, reflect.TypeOf(dst), nil, fmt.Errorf("want non-nil pointer"))
	}
	t := rv.Type().Elem()
	m, err := e.registry.resolve(t, true)
	if err != nil {
		return err
	}
	out, err := m.Decode(Unwrap(nv))
	if err != nil {
		return err
	}
	out, err = conform(out, t)
	if err != nil {
		return err
	}
	rv.Elem().Set(out)
	return nil
}

// Fire runs the hooks for ev on obj, a pointer to an entity struct. The first
// hook error stops the chain and is returned unchanged.
func (e *Engine) Fire(ctx context.Context, obj any, ev Event) (err error) {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return newConversionError(ErrInvalidTarget, reflect.TypeOf(obj), nil, fmt.Errorf("want pointer to struct"))
	}
	c, err := e.resolver.chain(rv.Type().Elem(), ev)
	if err != nil {
		return err
	}
	return e.fire(ctx, c, rv)
}

func (e *Engine) fire(ctx context.Context, c *HookChain, entity reflect.Value) error {
	if c.Len() == 0 {
		return nil
	}
	err := c.run(ctx, entity, e.metrics)
	emitEventFired(ctx, c.Type.String(), c.Event, c.Len(), err)
	return err
}

// structValue returns the struct a value or pointer refers to.
func structValue(obj any) (reflect.Value, error) {
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, newConversionError(ErrInvalidTarget, rv.Type(), nil, fmt.Errorf("nil pointer"))
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, newConversionError(ErrInvalidTarget, reflect.TypeOf(obj), nil, fmt.Errorf("want struct"))
	}
	return rv, nil
}

// targetValue returns the addressable struct dst points to.
func targetValue(dst any) (reflect.Value, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, newConversionError(ErrInvalidTarget, reflect.TypeOf(dst), nil, fmt.Errorf("want pointer to struct"))
	}
	return rv.Elem(), nil
}
