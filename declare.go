package kindred

import (
	"context"
	"fmt"
	"reflect"
)

// declaration holds the class-level options registered with Declare.
type declaration struct {
	typ               reflect.Type
	kind              string
	listeners         []reflect.Type
	excludeDefaults   bool
	excludeSuperclass bool
	hooks             []declaredHook
}

// declaredHook is an internal callback; level points at the declaring struct.
type declaredHook struct {
	event Event
	run   func(ctx context.Context, level reflect.Value) error
}

// DeclareOption configures a class declaration.
type DeclareOption func(*declaration) error

// Kind overrides the document kind, which defaults to the Go type name.
func Kind(name string) DeclareOption {
	return func(d *declaration) error {
		if name == "" {
			return fmt.Errorf("empty kind")
		}
		d.kind = name
		return nil
	}
}

// Listeners attaches external listener types to the class. Each value only
// identifies its type; the engine creates one shared instance per type.
func Listeners(listeners ...any) DeclareOption {
	return func(d *declaration) error {
		for _, l := range listeners {
			t, err := listenerType(l)
			if err != nil {
				return err
			}
			d.listeners = append(d.listeners, t)
		}
		return nil
	}
}

// ExcludeDefaultListeners suppresses engine default listeners for the class
// and every class deriving from it.
func ExcludeDefaultListeners() DeclareOption {
	return func(d *declaration) error {
		d.excludeDefaults = true
		return nil
	}
}

// ExcludeSuperclassListeners stops listener resolution at this class; its
// mapped superclasses contribute no hooks.
func ExcludeSuperclassListeners() DeclareOption {
	return func(d *declaration) error {
		d.excludeSuperclass = true
		return nil
	}
}

// On registers fn as an internal hook of T for ev. T must be the declared type.
// fn receives a pointer to the T part of the entity, which is the entity itself
// or one of its mapped superclasses.
func On[T any](ev Event, fn func(ctx context.Context, v *T) error) DeclareOption {
	return func(d *declaration) error {
		if want := reflect.TypeFor[T](); d.typ != want {
			return fmt.Errorf("hook for %s declared on %s", want, d.typ)
		}
		if fn == nil {
			return fmt.Errorf("nil %s hook", ev)
		}
		d.hooks = append(d.hooks, declaredHook{
			event: ev,
			run: func(ctx context.Context, level reflect.Value) error {
				return fn(ctx, level.Interface().(*T))
			},
		})
		return nil
	}
}

// Declare registers class-level options for struct type T: its kind, external
// listeners, internal hooks and exclusion flags. Declaring T again replaces the
// previous declaration. Declare before first use of T; the kind of an entity
// that was already introspected does not change.
func Declare[T any](e *Engine, opts ...DeclareOption) error {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return newConfigError(ErrInvalidDeclaration, t, "", "not a struct")
	}
	d := &declaration{typ: t}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return newConfigError(ErrInvalidDeclaration, t, "", err.Error())
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.decls[t] = d
	e.resolver.chains.reset()
	e.log.Debug().
		Str("type", t.String()).
		Int("listeners", len(d.listeners)).
		Int("hooks", len(d.hooks)).
		Msg("class declared")
	return nil
}

// listenerType normalizes a listener value to its struct type and checks that
// it handles at least one event.
func listenerType(l any) (reflect.Type, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listener")
	}
	t := reflect.TypeOf(l)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if !handlesAny(reflect.New(t).Interface()) {
		return nil, fmt.Errorf("%s implements no listener interface", t)
	}
	return t, nil
}

// kindOf returns the document kind of t. Callers hold e.mu.
func (e *Engine) kindOf(t reflect.Type) string {
	if d, ok := e.decls[t]; ok && d.kind != "" {
		return d.kind
	}
	return t.Name()
}
