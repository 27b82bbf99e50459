package kindred

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Engine converts between Go structs and native entities. It owns every cache:
// mappers, class metadata, indexers, listener instances and hook chains.
//
// An Engine is safe for concurrent use. Cached lookups never block; the first
// use of a type builds its entries under a single creation lock, so each entry
// is built exactly once and every caller observes the same instance.
type Engine struct {
	// mu serializes cache population across all caches. Cache reads do not take it.
	mu    sync.Mutex
	decls map[reflect.Type]*declaration // guarded by mu

	log       zerolog.Logger
	metrics   *Metrics
	clock     func() time.Time
	namespace string

	registry     *registry
	introspector *introspector
	indexers     *indexerRegistry
	resolver     *resolver

	codecsMu sync.RWMutex
	codecs   map[reflect.Type]any
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for cache population and configuration events.
// The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) error {
		e.log = l
		return nil
	}
}

// WithMetrics reports conversions, cache misses and hook invocations to m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithClock sets the time source for created and updated fields.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		if now == nil {
			return fmt.Errorf("nil clock")
		}
		e.clock = now
		return nil
	}
}

// WithNamespace stamps ns on every key the engine builds.
func WithNamespace(ns string) Option {
	return func(e *Engine) error {
		e.namespace = ns
		return nil
	}
}

// WithDefaultListeners sets listeners that apply to every entity unless a
// class excludes them.
func WithDefaultListeners(listeners ...any) Option {
	return func(e *Engine) error {
		return e.RegisterDefaultListeners(listeners...)
	}
}

// WithMapper registers a custom mapper for t.
func WithMapper(t reflect.Type, m Mapper) Option {
	return func(e *Engine) error {
		return e.RegisterMapper(t, m)
	}
}

// WithIndexer registers a secondary-index indexer under name.
func WithIndexer(name string, factory func() Indexer) Option {
	return func(e *Engine) error {
		return e.RegisterIndexer(name, factory)
	}
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		decls:  make(map[reflect.Type]*declaration),
		log:    zerolog.Nop(),
		clock:  time.Now,
		codecs: make(map[reflect.Type]any),
	}
	e.registry = newRegistry(e)
	e.introspector = newIntrospector(e)
	e.indexers = newIndexerRegistry(e)
	e.resolver = newResolver(e)

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterMapper installs a custom mapper for t, replacing the built-in or
// previously cached one. Null handling is enforced around m: it never sees a
// nil value on encode or Null on decode. Register before first use of t;
// mappers already built around the previous mapper for t keep using it.
func (e *Engine) RegisterMapper(t reflect.Type, m Mapper) error {
	if t == nil || m == nil {
		return newConfigError(ErrNoSuitableMapper, t, "", "nil type or mapper")
	}
	e.registry.register(t, m)
	e.log.Debug().Str("type", t.String()).Msg("mapper registered")
	return nil
}

// RegisterIndexer makes factory available to `index:"name"` tags.
func (e *Engine) RegisterIndexer(name string, factory func() Indexer) error {
	if name == "" || factory == nil {
		return &ConfigError{Err: ErrUnknownIndexer, Detail: "empty name or nil factory"}
	}
	e.indexers.register(name, factory)
	e.log.Debug().Str("indexer", name).Msg("indexer registered")
	return nil
}

// RegisterDefaultListeners replaces the engine's default listeners.
func (e *Engine) RegisterDefaultListeners(listeners ...any) error {
	types := make([]reflect.Type, 0, len(listeners))
	for _, l := range listeners {
		t, err := listenerType(l)
		if err != nil {
			return newConfigError(ErrInvalidDeclaration, nil, "", err.Error())
		}
		types = append(types, t)
	}
	e.resolver.setDefaults(types)
	e.log.Debug().Int("listeners", len(types)).Msg("default listeners registered")
	return nil
}

// Mapper returns the mapper used for values of type t.
func (e *Engine) Mapper(t reflect.Type) (Mapper, error) {
	return e.registry.resolve(t, true)
}

// ContainerMapper returns the mapper for a slice, array or map type whose
// elements carry the given indexed flag. Other types ignore indexed.
func (e *Engine) ContainerMapper(t reflect.Type, indexed bool) (Mapper, error) {
	return e.registry.resolve(t, indexed)
}

// Introspect returns the metadata of entity type t.
func (e *Engine) Introspect(t reflect.Type) (*ClassMetadata, error) {
	return e.introspector.entity(t)
}

// IntrospectEmbedded returns the metadata of t as an embedded object.
func (e *Engine) IntrospectEmbedded(t reflect.Type) (*ClassMetadata, error) {
	return e.introspector.embedded(t)
}

// Chain returns the hooks that run for ev on entity type t.
func (e *Engine) Chain(t reflect.Type, ev Event) (*HookChain, error) {
	return e.resolver.chain(t, ev)
}
