// Package testing provides test utilities for kindred.
package testing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"
	"github.com/zoobzio/kindred"
)

// NewEngine returns an engine for tests, failing t if an option is rejected.
func NewEngine(t testing.TB, opts ...kindred.Option) *kindred.Engine {
	t.Helper()
	e, err := kindred.New(opts...)
	if err != nil {
		t.Fatalf("kindred.New() error: %v", err)
	}
	return e
}

// Epoch is the default start time of a Clock.
var Epoch = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source for kindred.WithClock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Recorder collects the labels of hooks that ran. Attach it to a context
// with Context; Listener and Hook report to the recorder they find there.
type Recorder struct {
	mu     sync.Mutex
	labels []string
}

type recorderKey struct{}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Context returns a child of ctx carrying r.
func (r *Recorder) Context(ctx context.Context) context.Context {
	return context.WithValue(ctx, recorderKey{}, r)
}

// Labels returns the recorded labels in invocation order.
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.labels))
	copy(out, r.labels)
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = nil
}

// Note records label with the recorder carried by ctx, if any.
func Note(ctx context.Context, label string) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
}

// Hook returns an internal hook for kindred.On that records label.
func Hook[T any](label string) func(context.Context, *T) error {
	return func(ctx context.Context, _ *T) error {
		Note(ctx, label)
		return nil
	}
}

// Listener handles every lifecycle event by recording "Listener.<Event>".
type Listener struct{}

func (Listener) PreInsert(ctx context.Context, _ any) error  { return note(ctx, kindred.PreInsert) }
func (Listener) PostInsert(ctx context.Context, _ any) error { return note(ctx, kindred.PostInsert) }
func (Listener) PreUpdate(ctx context.Context, _ any) error  { return note(ctx, kindred.PreUpdate) }
func (Listener) PostUpdate(ctx context.Context, _ any) error { return note(ctx, kindred.PostUpdate) }
func (Listener) PreUpsert(ctx context.Context, _ any) error  { return note(ctx, kindred.PreUpsert) }
func (Listener) PostUpsert(ctx context.Context, _ any) error { return note(ctx, kindred.PostUpsert) }
func (Listener) PreDelete(ctx context.Context, _ any) error  { return note(ctx, kindred.PreDelete) }
func (Listener) PostDelete(ctx context.Context, _ any) error { return note(ctx, kindred.PostDelete) }
func (Listener) PostLoad(ctx context.Context, _ any) error   { return note(ctx, kindred.PostLoad) }

func note(ctx context.Context, ev kindred.Event) error {
	Note(ctx, "Listener."+ev.String())
	return nil
}

// Diff compares model values, treating decimals and times by value.
// It returns an empty string when want and got are equal.
func Diff(want, got any, opts ...cmp.Option) string {
	opts = append(opts, cmp.Comparer(func(a, b apd.Decimal) bool {
		return a.Cmp(&b) == 0
	}))
	return cmp.Diff(want, got, opts...)
}

// Property returns the named property of ent, failing t if it is absent.
func Property(t testing.TB, ent *kindred.Entity, name string) kindred.Value {
	t.Helper()
	if ent == nil {
		t.Fatalf("nil entity")
	}
	v, ok := ent.Properties.Get(name)
	if !ok {
		t.Fatalf("property %q missing; have %v", name, ent.Properties.Keys())
	}
	return v
}

// Address is an embedded fixture.
type Address struct {
	Street string
	City   string
	Zip    string `kindred:"zip,optional"`
}

// Customer is an entity fixture exercising roles, indexes and decimals.
type Customer struct {
	ID      int64        `kindred:",id"`
	Company *kindred.Key `kindred:",parent"`
	Name    string
	Email   string      `index:"lowercase"`
	Tags    []string    `kindred:"tags,noindex"`
	Balance apd.Decimal `decimal:"12,2"`
	Home    Address
	Billing *Address  `kindred:"billing,optional"`
	Version int64     `kindred:",version"`
	Created time.Time `kindred:",created"`
	Updated time.Time `kindred:",updated"`
}
