package kindred

import (
	"context"
	"reflect"
	"unsafe"
)

type chainKey struct {
	typ   reflect.Type
	event Event
}

// resolver builds and caches hook chains per entity type and event.
type resolver struct {
	eng       *Engine
	defaults  []reflect.Type // guarded by eng.mu
	instances memo[reflect.Type, any]
	chains    memo[chainKey, *HookChain]
}

func newResolver(eng *Engine) *resolver {
	return &resolver{eng: eng}
}

// chain returns the hooks to run for ev on entity type t.
func (r *resolver) chain(t reflect.Type, ev Event) (*HookChain, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}
	key := chainKey{typ: t, event: ev}
	if c, ok := r.chains.load(key); ok {
		return c, nil
	}
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	if c, ok := r.chains.load(key); ok {
		return c, nil
	}

	r.eng.metrics.cacheMiss("chain")
	meta, err := r.eng.introspector.entityLocked(t)
	if err != nil {
		return nil, err
	}

	levels := make([]levelSpec, len(meta.Hierarchy))
	for i, lv := range meta.Hierarchy {
		spec := levelSpec{typ: lv.Type, index: lv.Index}
		if d, ok := r.eng.decls[lv.Type]; ok {
			spec.excludeDefaults = d.excludeDefaults
			spec.excludeSuperclass = d.excludeSuperclass
			spec.internal = d.hooks
			for _, lt := range d.listeners {
				spec.external = append(spec.external, r.instanceLocked(lt))
			}
		}
		levels[i] = spec
	}
	defaults := make([]listenerInstance, len(r.defaults))
	for i, lt := range r.defaults {
		defaults[i] = r.instanceLocked(lt)
	}

	c := buildChain(t, ev, levels, defaults)
	r.chains.store(key, c)
	r.eng.log.Debug().
		Str("type", t.String()).
		Str("event", ev.String()).
		Str("chain", c.String()).
		Msg("listener chain resolved")
	emitChainResolved(t.String(), ev.String(), c.Len())
	return c, nil
}

// instanceLocked returns the shared instance of listener type t.
func (r *resolver) instanceLocked(t reflect.Type) listenerInstance {
	inst, ok := r.instances.load(t)
	if !ok {
		inst = reflect.New(t).Interface()
		r.instances.store(t, inst)
	}
	return listenerInstance{typ: t, value: inst}
}

// setDefaults replaces the engine's default listeners.
func (r *resolver) setDefaults(types []reflect.Type) {
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	r.defaults = types
	r.chains.reset()
}

type listenerInstance struct {
	typ   reflect.Type
	value any
}

// levelSpec is the listener configuration of one hierarchy level.
type levelSpec struct {
	typ               reflect.Type
	index             []int
	external          []listenerInstance
	internal          []declaredHook
	excludeDefaults   bool
	excludeSuperclass bool
}

// buildChain orders the hooks for ev. Levels are given base first.
//
// Levels are visited from the entity toward its base, stopping after the first
// level that excludes superclass listeners. Default listeners apply unless a
// visited level excludes them. The chain runs defaults, then external
// listeners base to derived, then internal hooks base to derived.
func buildChain(t reflect.Type, ev Event, levels []levelSpec, defaults []listenerInstance) *HookChain {
	start := 0
	excludeDefaults := false
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].excludeDefaults {
			excludeDefaults = true
		}
		if levels[i].excludeSuperclass {
			start = i
			break
		}
	}

	c := &HookChain{Type: t, Event: ev}
	if !excludeDefaults {
		for _, d := range defaults {
			if fn, ok := listenerMethod(d.value, ev); ok {
				c.Hooks = append(c.Hooks, Hook{Scope: ScopeDefault, Event: ev, Owner: d.typ, run: entityHook(fn)})
			}
		}
	}
	for _, lv := range levels[start:] {
		for _, l := range lv.external {
			if fn, ok := listenerMethod(l.value, ev); ok {
				c.Hooks = append(c.Hooks, Hook{Scope: ScopeExternal, Event: ev, Owner: l.typ, run: entityHook(fn)})
			}
		}
	}
	for _, lv := range levels[start:] {
		for _, h := range lv.internal {
			if h.event != ev {
				continue
			}
			run, index := h.run, lv.index
			c.Hooks = append(c.Hooks, Hook{
				Scope: ScopeInternal,
				Event: ev,
				Owner: lv.typ,
				run: func(ctx context.Context, entity reflect.Value) error {
					return run(ctx, levelPointer(entity, index))
				},
			})
		}
	}
	return c
}

func entityHook(fn func(context.Context, any) error) func(context.Context, reflect.Value) error {
	return func(ctx context.Context, entity reflect.Value) error {
		return fn(ctx, entity.Interface())
	}
}

// levelPointer returns a pointer to the hierarchy level at index within the
// entity pointed to by entity. Nil embedded pointers are allocated.
func levelPointer(entity reflect.Value, index []int) reflect.Value {
	if len(index) == 0 {
		return entity
	}
	f := fieldByIndexAlloc(entity.Elem(), index)
	if f.Kind() == reflect.Pointer {
		if f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
		return f
	}
	if f.CanInterface() {
		return f.Addr()
	}
	// Unexported embedded struct: the level is still the caller's memory.
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr()))
}
