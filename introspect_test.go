package kindred

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/google/go-cmp/cmp"
)

type auditFields struct {
	Created time.Time `kindred:",created"`
	Updated time.Time `kindred:",updated"`
}

type Record struct {
	ID int64 `kindred:",id"`
	auditFields
}

type Account struct {
	Record
	Email   string      `index:"lowercase"`
	Balance apd.Decimal `decimal:"12,2"`
	Tags    []string    `kindred:"tags,noindex"`
	Scratch string      `kindred:"-"`
	Revs    int64       `kindred:"rev,version"`
}

type Ledger struct {
	ID    string      `kindred:",id"`
	Total apd.Decimal `decimal:"12,2"`
}

type dimensions struct {
	Width  int
	Height int
}

type Crate struct {
	ID   int64      `kindred:",id"`
	Size dimensions `kindred:"size,flatten"`
}

func fieldNames(meta *ClassMetadata) []string {
	names := make([]string, len(meta.Fields))
	for i, f := range meta.Fields {
		names[i] = f.MappedName
	}
	return names
}

func TestIntrospect_FieldOrderAndHierarchy(t *testing.T) {
	e := newTestEngine(t)

	meta, err := e.Introspect(reflect.TypeFor[Account]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}

	want := []string{"created", "updated", "id", "email", "balance", "tags", "rev"}
	if diff := cmp.Diff(want, fieldNames(meta)); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	var levels []string
	for _, lv := range meta.Hierarchy {
		levels = append(levels, lv.Type.Name())
	}
	if diff := cmp.Diff([]string{"auditFields", "Record", "Account"}, levels); diff != "" {
		t.Errorf("hierarchy mismatch (-want +got):\n%s", diff)
	}
	if got := meta.Hierarchy[0].Index; !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("auditFields index = %v, want [0 1]", got)
	}
	if len(meta.Hierarchy[2].Index) != 0 {
		t.Errorf("entity level index = %v, want empty", meta.Hierarchy[2].Index)
	}

	if meta.Kind != "Account" || meta.Embedded {
		t.Errorf("Kind = %q, Embedded = %v", meta.Kind, meta.Embedded)
	}
	if meta.Identifier == nil || meta.Identifier.Owner != reflect.TypeFor[Record]() {
		t.Errorf("Identifier = %+v", meta.Identifier)
	}
	if meta.Created == nil || meta.Created.Owner != reflect.TypeFor[auditFields]() {
		t.Errorf("Created = %+v", meta.Created)
	}
	if meta.Version == nil || meta.Version.Name != "Revs" {
		t.Errorf("Version = %+v", meta.Version)
	}

	tags, ok := meta.Field("tags")
	if !ok || tags.Indexed {
		t.Errorf("tags descriptor = %+v", tags)
	}
	email, _ := meta.Field("email")
	if email.Secondary == nil || email.Secondary.Name != "$email" || email.Secondary.Indexer != IndexLowercase {
		t.Errorf("email secondary = %+v", email.Secondary)
	}
	if _, ok := meta.Field("scratch"); ok {
		t.Error("skipped field should not be mapped")
	}
}

func TestIntrospect_Cached(t *testing.T) {
	e := newTestEngine(t)

	m1, err := e.Introspect(reflect.TypeFor[Account]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	m2, _ := e.Introspect(reflect.TypeFor[*Account]())
	if m1 != m2 {
		t.Error("Introspect should return cached metadata for T and *T")
	}
}

func TestIntrospect_Concurrent(t *testing.T) {
	e := newTestEngine(t)

	const n = 50
	results := make([]*ClassMetadata, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			meta, err := e.Introspect(reflect.TypeFor[Account]())
			if err != nil {
				t.Errorf("Introspect error: %v", err)
				return
			}
			results[i] = meta
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("goroutine %d observed different metadata", i)
		}
	}
}

func TestIntrospect_SharedDecimalMapper(t *testing.T) {
	e := newTestEngine(t)

	acct, err := e.Introspect(reflect.TypeFor[Account]())
	if err != nil {
		t.Fatalf("Introspect(Account) error: %v", err)
	}
	ledger, err := e.Introspect(reflect.TypeFor[Ledger]())
	if err != nil {
		t.Fatalf("Introspect(Ledger) error: %v", err)
	}
	a, _ := acct.Field("balance")
	b, _ := ledger.Field("total")
	if a.Mapper != b.Mapper {
		t.Error("fields with the same precision and scale should share a mapper")
	}
}

func TestIntrospect_Flatten(t *testing.T) {
	e := newTestEngine(t)

	meta, err := e.Introspect(reflect.TypeFor[Crate]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	size, ok := meta.Field("size")
	if !ok || size.Flattened == nil || size.Mapper != nil {
		t.Fatalf("size descriptor = %+v", size)
	}
	if diff := cmp.Diff([]string{"size.width", "size.height"}, fieldProperties(size)); diff != "" {
		t.Errorf("properties mismatch (-want +got):\n%s", diff)
	}
}

func TestIntrospect_EmbeddedSeparateFromEntity(t *testing.T) {
	e := newTestEngine(t)

	entity, err := e.Introspect(reflect.TypeFor[Ledger]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	_, err = e.IntrospectEmbedded(reflect.TypeFor[Ledger]())
	if !errors.Is(err, ErrInvalidRoleType) {
		t.Errorf("IntrospectEmbedded error = %v, want ErrInvalidRoleType", err)
	}

	dims, err := e.IntrospectEmbedded(reflect.TypeFor[dimensions]())
	if err != nil {
		t.Fatalf("IntrospectEmbedded error: %v", err)
	}
	if !dims.Embedded || dims.Kind != "" || entity.Embedded {
		t.Errorf("embedded flags: dims=%v/%q entity=%v", dims.Embedded, dims.Kind, entity.Embedded)
	}
}

func TestIntrospect_DeclaredKind(t *testing.T) {
	e := newTestEngine(t)
	if err := Declare[Ledger](e, Kind("ledger_v2")); err != nil {
		t.Fatalf("Declare error: %v", err)
	}
	meta, err := e.Introspect(reflect.TypeFor[Ledger]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	if meta.Kind != "ledger_v2" {
		t.Errorf("Kind = %q, want ledger_v2", meta.Kind)
	}
}

func TestIntrospect_ConfigErrors(t *testing.T) {
	type noID struct {
		Name string
	}
	type floatID struct {
		ID float64 `kindred:",id"`
	}
	type twoVersions struct {
		ID int64 `kindred:",id"`
		A  int64 `kindred:",version"`
		B  int64 `kindred:",version"`
	}
	type narrowVersion struct {
		ID  int64 `kindred:",id"`
		Rev int32 `kindred:",version"`
	}
	type badCreated struct {
		ID      int64  `kindred:",id"`
		Created string `kindred:",created"`
	}
	type plainKey struct {
		ID  int64 `kindred:",id"`
		Key Key   `kindred:",key"`
	}
	type dupNames struct {
		ID    int64  `kindred:",id"`
		Title string `kindred:"name"`
		Name  string
	}
	type dupSecondary struct {
		ID         int64  `kindred:",id"`
		Email      string `index:"lowercase,name=emailLower"`
		EmailLower string
	}
	type dupFlattened struct {
		ID        int64      `kindred:",id"`
		Size      dimensions `kindred:"size,flatten"`
		SizeWidth int        `kindred:"size.width"`
	}
	type unknownIndexer struct {
		ID   int64  `kindred:",id"`
		Name string `index:"soundex"`
	}
	type badTag struct {
		ID   int64  `kindred:",id"`
		Name string `kindred:",bogus"`
	}
	type badDecimal struct {
		ID    int64       `kindred:",id"`
		Price apd.Decimal `decimal:"30,2"`
	}
	type decimalOnInt struct {
		ID    int64 `kindred:",id"`
		Price int64 `decimal:"10,2"`
	}
	type intKeyMap struct {
		ID     int64 `kindred:",id"`
		Lookup map[int]string
	}
	type roleInEmbedded struct {
		ID    int64 `kindred:",id"`
		Inner struct {
			Rev int64 `kindred:",version"`
		}
	}
	type flattenScalar struct {
		ID   int64  `kindred:",id"`
		Name string `kindred:"name,flatten"`
	}
	tests := []struct {
		name string
		typ  reflect.Type
		want error
	}{
		{"missing identifier", reflect.TypeFor[noID](), ErrMissingIdentifier},
		{"float identifier", reflect.TypeFor[floatID](), ErrInvalidRoleType},
		{"duplicate version", reflect.TypeFor[twoVersions](), ErrDuplicateRole},
		{"int32 version", reflect.TypeFor[narrowVersion](), ErrInvalidRoleType},
		{"string created", reflect.TypeFor[badCreated](), ErrInvalidRoleType},
		{"key by value", reflect.TypeFor[plainKey](), ErrInvalidRoleType},
		{"duplicate name", reflect.TypeFor[dupNames](), ErrDuplicateName},
		{"secondary collides", reflect.TypeFor[dupSecondary](), ErrDuplicateName},
		{"flattened collides", reflect.TypeFor[dupFlattened](), ErrDuplicateName},
		{"unknown indexer", reflect.TypeFor[unknownIndexer](), ErrUnknownIndexer},
		{"unknown option", reflect.TypeFor[badTag](), ErrInvalidTag},
		{"decimal out of range", reflect.TypeFor[badDecimal](), ErrInvalidDecimal},
		{"decimal on int", reflect.TypeFor[decimalOnInt](), ErrInvalidTag},
		{"int map key", reflect.TypeFor[intKeyMap](), ErrNonStringMapKey},
		{"role in embedded", reflect.TypeFor[roleInEmbedded](), ErrInvalidRoleType},
		{"flatten scalar", reflect.TypeFor[flattenScalar](), ErrInvalidTag},
		{"not a struct", reflect.TypeFor[[]int](), ErrInvalidTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.Introspect(tt.typ)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Errorf("error should be a ConfigError, got %T", err)
			}
		})
	}
}

func TestIntrospect_NoSuitableMapper(t *testing.T) {
	type unmappable struct {
		ID   int64 `kindred:",id"`
		Done chan struct{}
	}
	e := newTestEngine(t)

	_, err := e.Introspect(reflect.TypeFor[unmappable]())
	if !errors.Is(err, ErrNoSuitableMapper) {
		t.Fatalf("error = %v, want ErrNoSuitableMapper", err)
	}
	var ce *ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("error should be a ConversionError, got %T", err)
	}
	if ce.Field != "Done" {
		t.Errorf("Field = %q, want Done", ce.Field)
	}
}

func TestIntrospect_ErrorNamesField(t *testing.T) {
	type withMap struct {
		ID     int64 `kindred:",id"`
		Lookup map[int]string
	}
	e := newTestEngine(t)

	_, err := e.Introspect(reflect.TypeFor[withMap]())
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %v, want ConfigError", err)
	}
	if ce.Field != "Lookup" {
		t.Errorf("Field = %q, want Lookup", ce.Field)
	}
}

func TestIntrospect_PointerSuperclass(t *testing.T) {
	type Stamp struct {
		Created time.Time `kindred:",created"`
	}
	type Note struct {
		*Stamp
		ID   string `kindred:",id"`
		Body string
	}
	e := newTestEngine(t)

	meta, err := e.Introspect(reflect.TypeFor[Note]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	if diff := cmp.Diff([]string{"created", "id", "body"}, fieldNames(meta)); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if meta.Created == nil {
		t.Error("Created role should come from the superclass")
	}
}

func TestIntrospect_EmbeddedValueTypes(t *testing.T) {
	type Located struct {
		ID int64 `kindred:",id"`
		GeoPoint
		time.Time
	}
	e := newTestEngine(t)

	meta, err := e.Introspect(reflect.TypeFor[Located]())
	if err != nil {
		t.Fatalf("Introspect error: %v", err)
	}
	if diff := cmp.Diff([]string{"id", "geoPoint", "time"}, fieldNames(meta)); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}
