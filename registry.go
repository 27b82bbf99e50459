package kindred

import (
	"reflect"
)

// mapperKey identifies a cached mapper. The indexed flag only distinguishes
// container types; scalar keys always carry indexed=true.
type mapperKey struct {
	typ     reflect.Type
	indexed bool
}

type decimalKey struct {
	precision int
	scale     int
}

func keyFor(t reflect.Type, indexed bool) mapperKey {
	if !isContainer(t) {
		indexed = true
	}
	return mapperKey{typ: t, indexed: indexed}
}

// isContainer reports whether t maps to a List or Map whose elements carry an index flag.
func isContainer(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Slice:
		return t.Elem().Kind() != reflect.Uint8
	case reflect.Array, reflect.Map:
		return true
	}
	return false
}

// registry resolves and caches mappers per model type.
// Misses are built under the engine's creation lock; hits never lock.
type registry struct {
	eng      *Engine
	mappers  memo[mapperKey, Mapper]
	decimals memo[decimalKey, Mapper]
	inflight map[mapperKey]bool
}

func newRegistry(eng *Engine) *registry {
	r := &registry{eng: eng, inflight: make(map[mapperKey]bool)}
	for t, m := range builtinMappers {
		r.mappers.store(keyFor(t, true), m)
	}
	return r
}

// resolve returns the mapper for t, building it on first use.
func (r *registry) resolve(t reflect.Type, indexed bool) (Mapper, error) {
	key := keyFor(t, indexed)
	if m, ok := r.mappers.load(key); ok {
		return m, nil
	}
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	return r.resolveLocked(key)
}

// resolveLocked is resolve for callers already holding the creation lock.
func (r *registry) resolveLocked(key mapperKey) (Mapper, error) {
	if m, ok := r.mappers.load(key); ok {
		return m, nil
	}
	if r.inflight[key] {
		return nil, newConfigError(ErrRecursiveType, key.typ, "", "type contains itself")
	}
	r.inflight[key] = true
	defer delete(r.inflight, key)

	r.eng.metrics.cacheMiss("mapper")
	m, err := r.build(key)
	if err != nil {
		return nil, err
	}
	r.mappers.store(key, m)
	r.eng.log.Debug().
		Str("type", key.typ.String()).
		Bool("indexed", key.indexed).
		Msg("mapper created")
	emitMapperCreated(key.typ.String(), mapperName(m))
	return m, nil
}

func (r *registry) build(key mapperKey) (Mapper, error) {
	t := key.typ
	if overrides(t) {
		return guardNull(t, &overrideMapper{typ: t}), nil
	}
	if m := scalarForKind(t); m != nil {
		return m, nil
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem, err := r.resolveLocked(keyFor(t.Elem(), key.indexed))
		if err != nil {
			return nil, err
		}
		return &ptrMapper{typ: t, elem: elem}, nil

	case reflect.Interface:
		if t.NumMethod() == 0 {
			return catchAll, nil
		}

	case reflect.Slice, reflect.Array:
		item, err := r.resolveLocked(keyFor(t.Elem(), true))
		if err != nil {
			return nil, err
		}
		return &listMapper{typ: t, item: item, indexed: key.indexed}, nil

	case reflect.Map:
		if t.Elem() == emptyStruct {
			item, err := r.resolveLocked(keyFor(t.Key(), true))
			if err != nil {
				return nil, err
			}
			return &setMapper{typ: t, item: item, indexed: key.indexed}, nil
		}
		if t.Key().Kind() != reflect.String {
			return nil, newConfigError(ErrNonStringMapKey, t, "", "key type "+t.Key().String())
		}
		value, err := r.resolveLocked(keyFor(t.Elem(), true))
		if err != nil {
			return nil, err
		}
		return &mapMapper{typ: t, value: value, indexed: key.indexed}, nil

	case reflect.Struct:
		meta, err := r.eng.introspector.embeddedLocked(t)
		if err != nil {
			return nil, err
		}
		return &embeddedMapper{meta: meta}, nil
	}

	return nil, newConversionError(ErrNoSuitableMapper, t, nil, nil)
}

// decimalLocked returns the shared fixed-point mapper for precision and scale.
func (r *registry) decimalLocked(precision, scale int) (Mapper, error) {
	key := decimalKey{precision: precision, scale: scale}
	if m, ok := r.decimals.load(key); ok {
		return m, nil
	}
	m, err := NewDecimalMapper(precision, scale)
	if err != nil {
		return nil, err
	}
	r.decimals.store(key, m)
	return m, nil
}

// register installs a user mapper for t, replacing any cached one.
// Container mappers already built around a previous mapper for t keep it.
func (r *registry) register(t reflect.Type, m Mapper) {
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	guarded := guardNull(t, m)
	r.mappers.store(keyFor(t, true), guarded)
	r.mappers.store(keyFor(t, false), guarded)
}

// mapperName describes a mapper for signals and logs.
func mapperName(m Mapper) string {
	if ns, ok := m.(*nullSafe); ok {
		m = ns.inner
	}
	return reflect.TypeOf(m).String()
}
