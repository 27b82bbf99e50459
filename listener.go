package kindred

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Event is a lifecycle point at which listeners run.
type Event int

const (
	PreInsert Event = iota
	PostInsert
	PreUpdate
	PostUpdate
	PreUpsert
	PostUpsert
	PreDelete
	PostDelete
	PostLoad
)

var eventNames = [...]string{
	PreInsert:  "PreInsert",
	PostInsert: "PostInsert",
	PreUpdate:  "PreUpdate",
	PostUpdate: "PostUpdate",
	PreUpsert:  "PreUpsert",
	PostUpsert: "PostUpsert",
	PreDelete:  "PreDelete",
	PostDelete: "PostDelete",
	PostLoad:   "PostLoad",
}

func (e Event) String() string {
	if int(e) >= 0 && int(e) < len(eventNames) {
		return eventNames[e]
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Events returns every lifecycle event in declaration order.
func Events() []Event {
	out := make([]Event, len(eventNames))
	for i := range out {
		out[i] = Event(i)
	}
	return out
}

// Scope identifies where a hook was declared.
type Scope int

const (
	// ScopeDefault hooks come from engine-wide default listeners.
	ScopeDefault Scope = iota
	// ScopeExternal hooks come from listener types attached to a class.
	ScopeExternal
	// ScopeInternal hooks are functions declared on a class itself.
	ScopeInternal
)

func (s Scope) String() string {
	switch s {
	case ScopeDefault:
		return "default"
	case ScopeExternal:
		return "external"
	case ScopeInternal:
		return "internal"
	}
	return fmt.Sprintf("Scope(%d)", int(s))
}

// Listener interfaces. A listener type implements any subset of them; each
// method receives a pointer to the entity the event concerns.

type PreInsertListener interface {
	PreInsert(ctx context.Context, entity any) error
}

type PostInsertListener interface {
	PostInsert(ctx context.Context, entity any) error
}

type PreUpdateListener interface {
	PreUpdate(ctx context.Context, entity any) error
}

type PostUpdateListener interface {
	PostUpdate(ctx context.Context, entity any) error
}

type PreUpsertListener interface {
	PreUpsert(ctx context.Context, entity any) error
}

type PostUpsertListener interface {
	PostUpsert(ctx context.Context, entity any) error
}

type PreDeleteListener interface {
	PreDelete(ctx context.Context, entity any) error
}

type PostDeleteListener interface {
	PostDelete(ctx context.Context, entity any) error
}

type PostLoadListener interface {
	PostLoad(ctx context.Context, entity any) error
}

// listenerMethod returns the method of l handling ev, if l implements it.
func listenerMethod(l any, ev Event) (func(context.Context, any) error, bool) {
	switch ev {
	case PreInsert:
		if x, ok := l.(PreInsertListener); ok {
			return x.PreInsert, true
		}
	case PostInsert:
		if x, ok := l.(PostInsertListener); ok {
			return x.PostInsert, true
		}
	case PreUpdate:
		if x, ok := l.(PreUpdateListener); ok {
			return x.PreUpdate, true
		}
	case PostUpdate:
		if x, ok := l.(PostUpdateListener); ok {
			return x.PostUpdate, true
		}
	case PreUpsert:
		if x, ok := l.(PreUpsertListener); ok {
			return x.PreUpsert, true
		}
	case PostUpsert:
		if x, ok := l.(PostUpsertListener); ok {
			return x.PostUpsert, true
		}
	case PreDelete:
		if x, ok := l.(PreDeleteListener); ok {
			return x.PreDelete, true
		}
	case PostDelete:
		if x, ok := l.(PostDeleteListener); ok {
			return x.PostDelete, true
		}
	case PostLoad:
		if x, ok := l.(PostLoadListener); ok {
			return x.PostLoad, true
		}
	}
	return nil, false
}

// handlesAny reports whether l implements at least one listener interface.
func handlesAny(l any) bool {
	for _, ev := range Events() {
		if _, ok := listenerMethod(l, ev); ok {
			return true
		}
	}
	return false
}

// Hook is one resolved callback in a HookChain.
type Hook struct {
	Scope Scope
	Event Event
	Owner reflect.Type // Listener type, or the class level for internal hooks
	run   func(ctx context.Context, entity reflect.Value) error
}

func (h Hook) String() string {
	return typeLabel(h.Owner) + "." + h.Event.String()
}

// HookChain is the ordered list of hooks for one entity type and event.
// Chains are immutable and shared.
type HookChain struct {
	Type  reflect.Type
	Event Event
	Hooks []Hook
}

// Len returns the number of hooks.
func (c *HookChain) Len() int {
	return len(c.Hooks)
}

// String renders the chain as "Owner.Event->Owner.Event".
func (c *HookChain) String() string {
	parts := make([]string, len(c.Hooks))
	for i, h := range c.Hooks {
		parts[i] = h.String()
	}
	return strings.Join(parts, "->")
}

// run invokes each hook in order with a pointer to the entity. The first
// error stops the chain and is returned unchanged.
func (c *HookChain) run(ctx context.Context, entity reflect.Value, m *Metrics) error {
	for _, h := range c.Hooks {
		m.hookInvoked(h.Event, h.Scope)
		if err := h.run(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

func typeLabel(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
