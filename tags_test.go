package kindred

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFieldTag(t *testing.T) {
	tests := []struct {
		raw     string
		want    fieldTag
		wantErr bool
	}{
		{raw: "", want: fieldTag{}},
		{raw: "-", want: fieldTag{skip: true}},
		{raw: "email", want: fieldTag{name: "email"}},
		{raw: ",id", want: fieldTag{role: RoleIdentifier}},
		{raw: "notes,noindex,optional", want: fieldTag{name: "notes", noindex: true, optional: true}},
		{raw: "price, flatten", want: fieldTag{name: "price", flatten: true}},
		{raw: "rev,version", want: fieldTag{name: "rev", role: RoleVersion}},
		{raw: ",created", want: fieldTag{role: RoleCreated}},
		{raw: ",updated,noindex", want: fieldTag{role: RoleUpdated, noindex: true}},
		{raw: ",key", want: fieldTag{role: RoleKey}},
		{raw: ",parent", want: fieldTag{role: RoleParentKey}},
		{raw: ",bogus", wantErr: true},
		{raw: ",id,version", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseFieldTag(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseFieldTag(%q) should fail", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseFieldTag(%q) error: %v", tt.raw, err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(fieldTag{})); diff != "" {
				t.Errorf("parseFieldTag(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestParseDecimalTag(t *testing.T) {
	p, s, err := parseDecimalTag("12, 4")
	if err != nil || p != 12 || s != 4 {
		t.Errorf("parseDecimalTag = %d, %d, %v", p, s, err)
	}
	for _, raw := range []string{"12", "a,2", "12,b", ""} {
		if _, _, err := parseDecimalTag(raw); err == nil {
			t.Errorf("parseDecimalTag(%q) should fail", raw)
		}
	}
}

func TestParseIndexTag(t *testing.T) {
	it, err := parseIndexTag("lowercase")
	if err != nil || it.indexer != "lowercase" || it.name != "" {
		t.Errorf("parseIndexTag = %+v, %v", it, err)
	}
	it, err = parseIndexTag("sha256,name=emailHash")
	if err != nil || it.indexer != "sha256" || it.name != "emailHash" {
		t.Errorf("parseIndexTag = %+v, %v", it, err)
	}
	for _, raw := range []string{"", ",name=x", "sha256,alias=x", "sha256,name="} {
		if _, err := parseIndexTag(raw); err == nil {
			t.Errorf("parseIndexTag(%q) should fail", raw)
		}
	}
}

type scanBase struct {
	ID int64 `kindred:",id"`
}

type scanSubject struct {
	scanBase
	Name    string `kindred:"name" index:"lowercase"`
	Price   int64  `decimal:"10,2"`
	private string
}

func TestScanStruct_KeepsAnonymousFields(t *testing.T) {
	spec := scanStruct(reflect.TypeFor[scanSubject]())

	var names []string
	for _, f := range spec.Fields {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"scanBase", "Name", "Price"}, names); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}

	name := spec.Fields[1]
	if name.Tags[tagKindred] != "name" || name.Tags[tagIndex] != "lowercase" {
		t.Errorf("Name tags = %v", name.Tags)
	}
	if spec.Fields[2].Tags[tagDecimal] != "10,2" {
		t.Errorf("Price tags = %v", spec.Fields[2].Tags)
	}
}

func TestTagValue_FallsBackToStructTag(t *testing.T) {
	sf, _ := reflect.TypeFor[scanSubject]().FieldByName("Name")
	spec := scanType(reflect.TypeFor[scanSubject]())

	v, ok := tagValue(spec.Fields[1], sf, tagKindred)
	if !ok || v != "name" {
		t.Errorf("tagValue = %q, %v", v, ok)
	}
	if _, ok := tagValue(spec.Fields[1], sf, tagDecimal); ok {
		t.Error("Name has no decimal tag")
	}
}
