package kindred

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type Animal struct {
	ID int64 `kindred:",id"`
}

type Pet struct {
	Animal
	Name string
}

type Cat struct {
	Pet
	Lives int
}

type Dog struct {
	Pet
	Breed string
}

type trailKey struct{}

// withTrail returns a context that records hook invocations into the returned slice.
func withTrail() (context.Context, *[]string) {
	trail := &[]string{}
	return context.WithValue(context.Background(), trailKey{}, trail), trail
}

func note(ctx context.Context, s string) {
	if trail, ok := ctx.Value(trailKey{}).(*[]string); ok {
		*trail = append(*trail, s)
	}
}

func recordHook[T any](label string) func(context.Context, *T) error {
	return func(ctx context.Context, _ *T) error {
		note(ctx, label)
		return nil
	}
}

type stampListener struct{}

func (*stampListener) PreInsert(ctx context.Context, _ any) error {
	note(ctx, "stamp")
	return nil
}

func (*stampListener) PostLoad(ctx context.Context, _ any) error {
	note(ctx, "stamp.load")
	return nil
}

type auditListener struct{}

func (*auditListener) PreInsert(ctx context.Context, _ any) error {
	note(ctx, "audit")
	return nil
}

type validateListener struct{}

func (*validateListener) PreInsert(ctx context.Context, _ any) error {
	note(ctx, "validate")
	return nil
}

type countingListener struct {
	calls int
}

func (l *countingListener) PreDelete(context.Context, any) error {
	l.calls++
	return nil
}

func mustDeclare(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Declare error: %v", err)
	}
}

func chainString(t *testing.T, e *Engine, typ reflect.Type, ev Event) string {
	t.Helper()
	c, err := e.Chain(typ, ev)
	if err != nil {
		t.Fatalf("Chain error: %v", err)
	}
	return c.String()
}

func TestChain_InternalHooksBaseFirst(t *testing.T) {
	e := newTestEngine(t)
	mustDeclare(t, Declare[Animal](e, On(PreInsert, recordHook[Animal]("Animal"))))
	mustDeclare(t, Declare[Pet](e, On(PreInsert, recordHook[Pet]("Pet"))))
	mustDeclare(t, Declare[Cat](e, On(PreInsert, recordHook[Cat]("Cat"))))

	want := "Animal.PreInsert->Pet.PreInsert->Cat.PreInsert"
	if got := chainString(t, e, reflect.TypeFor[Cat](), PreInsert); got != want {
		t.Errorf("Chain = %q, want %q", got, want)
	}

	ctx, trail := withTrail()
	if err := e.Fire(ctx, &Cat{}, PreInsert); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if got := *trail; !reflect.DeepEqual(got, []string{"Animal", "Pet", "Cat"}) {
		t.Errorf("invocation order = %v", got)
	}
}

func TestChain_ScopeOrder(t *testing.T) {
	e := newTestEngine(t, WithDefaultListeners(&stampListener{}))
	mustDeclare(t, Declare[Animal](e,
		Listeners(&auditListener{}),
		On(PreInsert, recordHook[Animal]("Animal")),
	))
	mustDeclare(t, Declare[Cat](e,
		Listeners(validateListener{}),
		On(PreInsert, recordHook[Cat]("Cat")),
	))

	want := "stampListener.PreInsert->auditListener.PreInsert->validateListener.PreInsert->Animal.PreInsert->Cat.PreInsert"
	if got := chainString(t, e, reflect.TypeFor[Cat](), PreInsert); got != want {
		t.Errorf("Chain = %q, want %q", got, want)
	}

	c, _ := e.Chain(reflect.TypeFor[Cat](), PreInsert)
	scopes := []Scope{ScopeDefault, ScopeExternal, ScopeExternal, ScopeInternal, ScopeInternal}
	for i, h := range c.Hooks {
		if h.Scope != scopes[i] {
			t.Errorf("hook %d scope = %s, want %s", i, h.Scope, scopes[i])
		}
	}

	if got := chainString(t, e, reflect.TypeFor[Cat](), PostLoad); got != "stampListener.PostLoad" {
		t.Errorf("PostLoad chain = %q", got)
	}
	if got := chainString(t, e, reflect.TypeFor[Cat](), PreDelete); got != "" {
		t.Errorf("PreDelete chain = %q, want empty", got)
	}
}

func TestChain_ExcludeBoth(t *testing.T) {
	e := newTestEngine(t, WithDefaultListeners(&stampListener{}))
	mustDeclare(t, Declare[Animal](e,
		Listeners(&auditListener{}),
		On(PreInsert, recordHook[Animal]("Animal")),
		On(PostInsert, recordHook[Animal]("Animal.post")),
	))
	mustDeclare(t, Declare[Pet](e,
		Listeners(&validateListener{}),
		On(PreInsert, recordHook[Pet]("Pet")),
	))
	mustDeclare(t, Declare[Dog](e,
		ExcludeDefaultListeners(),
		ExcludeSuperclassListeners(),
		On(PreInsert, recordHook[Dog]("Dog")),
		On(PostInsert, recordHook[Dog]("Dog.post")),
	))

	if got := chainString(t, e, reflect.TypeFor[Dog](), PreInsert); got != "Dog.PreInsert" {
		t.Errorf("PreInsert chain = %q, want Dog.PreInsert", got)
	}
	if got := chainString(t, e, reflect.TypeFor[Dog](), PostInsert); got != "Dog.PostInsert" {
		t.Errorf("PostInsert chain = %q, want Dog.PostInsert", got)
	}

	want := "stampListener.PreInsert->auditListener.PreInsert->validateListener.PreInsert->Animal.PreInsert->Pet.PreInsert"
	if got := chainString(t, e, reflect.TypeFor[Pet](), PreInsert); got != want {
		t.Errorf("Pet chain = %q, want %q", got, want)
	}

	ctx, trail := withTrail()
	if err := e.Fire(ctx, &Dog{}, PreInsert); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if want := []string{"Dog"}; !reflect.DeepEqual(*trail, want) {
		t.Errorf("fired hooks = %v, want %v", *trail, want)
	}
}

func TestChain_ExcludeSuperclassKeepsDefaults(t *testing.T) {
	e := newTestEngine(t, WithDefaultListeners(&stampListener{}))
	mustDeclare(t, Declare[Animal](e, On(PreInsert, recordHook[Animal]("Animal"))))
	mustDeclare(t, Declare[Pet](e, ExcludeSuperclassListeners(), On(PreInsert, recordHook[Pet]("Pet"))))
	mustDeclare(t, Declare[Cat](e, On(PreInsert, recordHook[Cat]("Cat"))))

	want := "stampListener.PreInsert->Pet.PreInsert->Cat.PreInsert"
	if got := chainString(t, e, reflect.TypeFor[Cat](), PreInsert); got != want {
		t.Errorf("Chain = %q, want %q", got, want)
	}
}

func TestChain_ExcludeDefaultsInherited(t *testing.T) {
	e := newTestEngine(t, WithDefaultListeners(&stampListener{}))
	mustDeclare(t, Declare[Animal](e, ExcludeDefaultListeners()))
	mustDeclare(t, Declare[Cat](e, On(PreInsert, recordHook[Cat]("Cat"))))

	if got := chainString(t, e, reflect.TypeFor[Cat](), PreInsert); got != "Cat.PreInsert" {
		t.Errorf("Chain = %q, want Cat.PreInsert", got)
	}
}

func TestChain_ExclusionBeyondCutoffIgnored(t *testing.T) {
	e := newTestEngine(t, WithDefaultListeners(&stampListener{}))
	mustDeclare(t, Declare[Animal](e, ExcludeDefaultListeners()))
	mustDeclare(t, Declare[Pet](e, ExcludeSuperclassListeners()))

	if got := chainString(t, e, reflect.TypeFor[Cat](), PreInsert); got != "stampListener.PreInsert" {
		t.Errorf("Chain = %q, want stampListener.PreInsert", got)
	}
}

func TestBuildChain_Pure(t *testing.T) {
	stamp := listenerInstance{typ: reflect.TypeFor[stampListener](), value: &stampListener{}}
	audit := listenerInstance{typ: reflect.TypeFor[auditListener](), value: &auditListener{}}
	hook := declaredHook{event: PreInsert, run: func(context.Context, reflect.Value) error { return nil }}

	levels := []levelSpec{
		{typ: reflect.TypeFor[Animal](), index: []int{0, 0}, external: []listenerInstance{audit}},
		{typ: reflect.TypeFor[Pet](), index: []int{0}, internal: []declaredHook{hook}},
		{typ: reflect.TypeFor[Cat](), internal: []declaredHook{hook}, excludeDefaults: true},
	}

	c := buildChain(reflect.TypeFor[Cat](), PreInsert, levels, []listenerInstance{stamp})
	if got, want := c.String(), "auditListener.PreInsert->Pet.PreInsert->Cat.PreInsert"; got != want {
		t.Errorf("buildChain = %q, want %q", got, want)
	}
	if c.Type != reflect.TypeFor[Cat]() || c.Event != PreInsert {
		t.Errorf("chain identity = %v/%v", c.Type, c.Event)
	}
}

func TestFire_HookReceivesLevel(t *testing.T) {
	e := newTestEngine(t)
	mustDeclare(t, Declare[Animal](e, On(PreInsert, func(_ context.Context, a *Animal) error {
		a.ID = 7
		return nil
	})))
	mustDeclare(t, Declare[Pet](e, On(PreInsert, func(_ context.Context, p *Pet) error {
		p.Name = "named by hook"
		return nil
	})))

	cat := &Cat{}
	if err := e.Fire(context.Background(), cat, PreInsert); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if cat.ID != 7 || cat.Name != "named by hook" {
		t.Errorf("cat = %+v", cat)
	}
}

type hidden struct {
	ID int64 `kindred:",id"`
}

type Widget struct {
	hidden
	Label string
}

func TestFire_UnexportedSuperclass(t *testing.T) {
	e := newTestEngine(t)
	mustDeclare(t, Declare[hidden](e, On(PreInsert, func(_ context.Context, h *hidden) error {
		h.ID = 9
		return nil
	})))

	w := &Widget{}
	if err := e.Fire(context.Background(), w, PreInsert); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if w.ID != 9 {
		t.Errorf("ID = %d, want 9", w.ID)
	}
}

func TestFire_FirstErrorStops(t *testing.T) {
	errVeto := errors.New("veto")
	e := newTestEngine(t)
	mustDeclare(t, Declare[Animal](e, On(PreInsert, func(ctx context.Context, _ *Animal) error {
		note(ctx, "Animal")
		return errVeto
	})))
	mustDeclare(t, Declare[Pet](e, On(PreInsert, recordHook[Pet]("Pet"))))

	ctx, trail := withTrail()
	err := e.Fire(ctx, &Pet{}, PreInsert)
	if err != errVeto {
		t.Errorf("Fire error = %v, want the hook's error unchanged", err)
	}
	if got := *trail; !reflect.DeepEqual(got, []string{"Animal"}) {
		t.Errorf("invocations = %v, want only Animal", got)
	}
}

func TestFire_InvalidTarget(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Fire(context.Background(), Cat{}, PreInsert); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("error = %v, want ErrInvalidTarget", err)
	}
	if err := e.Fire(context.Background(), (*Cat)(nil), PreInsert); !errors.Is(err, ErrInvalidTarget) {
		t.Errorf("nil error = %v, want ErrInvalidTarget", err)
	}
}

func TestChain_CachedAndReset(t *testing.T) {
	e := newTestEngine(t)
	mustDeclare(t, Declare[Cat](e, On(PreInsert, recordHook[Cat]("Cat"))))

	c1, _ := e.Chain(reflect.TypeFor[Cat](), PreInsert)
	c2, _ := e.Chain(reflect.TypeFor[*Cat](), PreInsert)
	if c1 != c2 {
		t.Error("Chain should be cached")
	}

	mustDeclare(t, Declare[Pet](e, On(PreInsert, recordHook[Pet]("Pet"))))
	c3, _ := e.Chain(reflect.TypeFor[Cat](), PreInsert)
	if c3 == c1 || c3.Len() != 2 {
		t.Errorf("Declare should invalidate cached chains, got %q", c3)
	}

	if err := e.RegisterDefaultListeners(&stampListener{}); err != nil {
		t.Fatalf("RegisterDefaultListeners error: %v", err)
	}
	c4, _ := e.Chain(reflect.TypeFor[Cat](), PreInsert)
	if c4.Len() != 3 {
		t.Errorf("defaults should invalidate cached chains, got %q", c4)
	}
}

func TestListener_SharedInstance(t *testing.T) {
	e := newTestEngine(t)
	mustDeclare(t, Declare[Cat](e, Listeners(&countingListener{})))
	mustDeclare(t, Declare[Dog](e, Listeners(countingListener{})))

	ctx := context.Background()
	if err := e.Fire(ctx, &Cat{}, PreDelete); err != nil {
		t.Fatalf("Fire error: %v", err)
	}
	if err := e.Fire(ctx, &Dog{}, PreDelete); err != nil {
		t.Fatalf("Fire error: %v", err)
	}

	inst, ok := e.resolver.instances.load(reflect.TypeFor[countingListener]())
	if !ok {
		t.Fatal("listener instance not cached")
	}
	if got := inst.(*countingListener).calls; got != 2 {
		t.Errorf("calls = %d, want 2 on one shared instance", got)
	}
}

func TestDeclare_Errors(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		err  error
	}{
		{"not a struct", Declare[int](e)},
		{"empty kind", Declare[Cat](e, Kind(""))},
		{"listener without methods", Declare[Cat](e, Listeners(struct{}{}))},
		{"nil listener", Declare[Cat](e, Listeners(nil))},
		{"hook for another type", Declare[Cat](e, On(PreInsert, recordHook[Pet]("Pet")))},
		{"nil hook", Declare[Cat](e, On[Cat](PreInsert, nil))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalidDeclaration) {
				t.Errorf("error = %v, want ErrInvalidDeclaration", tt.err)
			}
		})
	}

	if err := e.RegisterDefaultListeners("not a listener"); !errors.Is(err, ErrInvalidDeclaration) {
		t.Errorf("RegisterDefaultListeners error = %v, want ErrInvalidDeclaration", err)
	}
}

func TestEventAndScope_String(t *testing.T) {
	if PostLoad.String() != "PostLoad" || Event(42).String() != "Event(42)" {
		t.Errorf("Event strings: %q %q", PostLoad.String(), Event(42).String())
	}
	if ScopeExternal.String() != "external" || Scope(9).String() != "Scope(9)" {
		t.Errorf("Scope strings: %q %q", ScopeExternal.String(), Scope(9).String())
	}
	if len(Events()) != 9 {
		t.Errorf("Events() = %v", Events())
	}
}
