package kindred

import (
	"context"
	"reflect"
	"time"

	"github.com/zoobzio/sentinel"
)

// Codec is a typed facade over an Engine for entity type T.
// Codecs are safe for concurrent use.
type Codec[T any] struct {
	eng  *Engine
	meta *ClassMetadata
}

// NewCodec creates a Codec for T, introspecting T eagerly so configuration
// errors surface here rather than on first use.
func NewCodec[T any](e *Engine) (*Codec[T], error) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return nil, newConfigError(ErrInvalidTarget, typ, "", "not a struct")
	}
	meta, err := e.introspector.entity(typ)
	if err != nil {
		return nil, err
	}
	// Register T with sentinel so other tooling sees the same tag metadata.
	sentinel.Scan[T]()
	e.log.Debug().Str("type", meta.Type.String()).Str("kind", meta.Kind).Msg("codec created")
	return &Codec[T]{eng: e, meta: meta}, nil
}

// Use returns the engine's cached Codec for T, creating it on first use.
func Use[T any](e *Engine) (*Codec[T], error) {
	typ := reflect.TypeFor[T]()

	// Fast path: read-lock cache check
	e.codecsMu.RLock()
	if cached, ok := e.codecs[typ]; ok {
		e.codecsMu.RUnlock()
		return cached.(*Codec[T]), nil
	}
	e.codecsMu.RUnlock()

	// Slow path: build and cache with write-lock
	e.codecsMu.Lock()
	defer e.codecsMu.Unlock()

	// Double-check pattern
	if cached, ok := e.codecs[typ]; ok {
		return cached.(*Codec[T]), nil
	}

	c, err := NewCodec[T](e)
	if err != nil {
		return nil, err
	}
	e.codecs[typ] = c
	return c, nil
}

// Metadata returns the class metadata of T.
func (c *Codec[T]) Metadata() *ClassMetadata {
	return c.meta
}

// Key returns the key of obj.
func (c *Codec[T]) Key(obj *T) (*Key, error) {
	if obj == nil {
		return nil, newConversionError(ErrInvalidTarget, c.meta.Type, nil, nil)
	}
	return c.eng.keyOf(c.meta, reflect.ValueOf(obj).Elem())
}

// Encode converts obj to a native entity.
func (c *Codec[T]) Encode(ctx context.Context, obj *T) (*Entity, error) {
	return c.EncodeFor(ctx, obj, IntentNone)
}

// EncodeFor converts obj to a native entity, maintaining version and
// timestamp properties for intent.
func (c *Codec[T]) EncodeFor(ctx context.Context, obj *T, intent Intent) (ent *Entity, err error) {
	if obj == nil {
		return nil, newConversionError(ErrInvalidTarget, c.meta.Type, nil, nil)
	}
	start := time.Now()
	defer func() {
		d := time.Since(start)
		c.eng.metrics.RecordConversion("encode", d, err)
		emitEncodeComplete(ctx, c.meta.Type.String(), intent, d, err)
	}()
	return c.eng.encodeEntity(c.meta, reflect.ValueOf(obj).Elem(), intent)
}

// Decode converts ent to a new T.
func (c *Codec[T]) Decode(ctx context.Context, ent *Entity) (_ *T, err error) {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		c.eng.metrics.RecordConversion("decode", d, err)
		emitDecodeComplete(ctx, c.meta.Type.String(), d, err)
	}()

	var obj T
	if err := c.eng.decodeEntity(c.meta, ent, reflect.ValueOf(&obj).Elem()); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Load decodes ent and fires PostLoad on the result.
func (c *Codec[T]) Load(ctx context.Context, ent *Entity) (*T, error) {
	obj, err := c.Decode(ctx, ent)
	if err != nil {
		return nil, err
	}
	if err := c.Fire(ctx, obj, PostLoad); err != nil {
		return nil, err
	}
	return obj, nil
}

// Fire runs the hooks for ev on obj.
func (c *Codec[T]) Fire(ctx context.Context, obj *T, ev Event) error {
	if obj == nil {
		return newConversionError(ErrInvalidTarget, c.meta.Type, nil, nil)
	}
	chain, err := c.eng.resolver.chain(c.meta.Type, ev)
	if err != nil {
		return err
	}
	return c.eng.fire(ctx, chain, reflect.ValueOf(obj))
}
