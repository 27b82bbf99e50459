package kindred

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/zoobzio/sentinel"
)

// Struct tag keys.
const (
	tagKindred = "kindred"
	tagDecimal = "decimal"
	tagIndex   = "index"
)

func init() {
	sentinel.Tag(tagKindred)
	sentinel.Tag(tagDecimal)
	sentinel.Tag(tagIndex)
}

// fieldTag is the parsed form of a `kindred:"name,opts..."` tag.
type fieldTag struct {
	name     string
	skip     bool
	noindex  bool
	optional bool
	flatten  bool
	role     Role
}

func parseFieldTag(raw string) (fieldTag, error) {
	var ft fieldTag
	if raw == "-" {
		ft.skip = true
		return ft, nil
	}
	parts := strings.Split(raw, ",")
	ft.name = strings.TrimSpace(parts[0])
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		var role Role
		switch opt {
		case "":
			continue
		case "noindex":
			ft.noindex = true
			continue
		case "optional":
			ft.optional = true
			continue
		case "flatten":
			ft.flatten = true
			continue
		case "id":
			role = RoleIdentifier
		case "key":
			role = RoleKey
		case "parent":
			role = RoleParentKey
		case "version":
			role = RoleVersion
		case "created":
			role = RoleCreated
		case "updated":
			role = RoleUpdated
		default:
			return ft, fmt.Errorf("unknown option %q", opt)
		}
		if ft.role != RolePlain {
			return ft, fmt.Errorf("conflicting roles %s and %s", ft.role, role)
		}
		ft.role = role
	}
	return ft, nil
}

// parseDecimalTag parses `decimal:"precision,scale"`.
func parseDecimalTag(raw string) (precision, scale int, err error) {
	p, s, ok := strings.Cut(raw, ",")
	if !ok {
		return 0, 0, fmt.Errorf("want \"precision,scale\", got %q", raw)
	}
	if precision, err = strconv.Atoi(strings.TrimSpace(p)); err != nil {
		return 0, 0, fmt.Errorf("precision: %w", err)
	}
	if scale, err = strconv.Atoi(strings.TrimSpace(s)); err != nil {
		return 0, 0, fmt.Errorf("scale: %w", err)
	}
	return precision, scale, nil
}

// indexTag is the parsed form of `index:"indexer[,name=x]"`.
type indexTag struct {
	indexer string
	name    string
}

func parseIndexTag(raw string) (indexTag, error) {
	parts := strings.Split(raw, ",")
	it := indexTag{indexer: strings.TrimSpace(parts[0])}
	if it.indexer == "" {
		return it, fmt.Errorf("missing indexer name")
	}
	for _, opt := range parts[1:] {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok || k != "name" || v == "" {
			return it, fmt.Errorf("unknown option %q", opt)
		}
		it.name = v
	}
	return it, nil
}

// tagValue reads a tag from sentinel metadata, falling back to the struct tag.
func tagValue(fm sentinel.FieldMetadata, sf reflect.StructField, key string) (string, bool) {
	if v, ok := fm.Tags[key]; ok && v != "" {
		return v, true
	}
	return sf.Tag.Lookup(key)
}

// scanStruct returns field metadata for rt, including anonymous fields.
func scanStruct(rt reflect.Type) sentinel.Metadata {
	scanned := scanType(rt)
	spec, ok := sentinel.Lookup(rt.String())
	if !ok {
		return scanned
	}
	// Registered metadata may flatten or omit embedded fields; keep direct
	// fields only and restore embedded ones from the scan.
	spec.Fields = slices.DeleteFunc(slices.Clone(spec.Fields), func(f sentinel.FieldMetadata) bool {
		return len(f.Index) != 1
	})
	for _, fm := range scanned.Fields {
		if !rt.Field(fm.Index[0]).Anonymous {
			continue
		}
		if !slices.ContainsFunc(spec.Fields, func(f sentinel.FieldMetadata) bool {
			return slices.Equal(f.Index, fm.Index)
		}) {
			spec.Fields = append(spec.Fields, fm)
		}
	}
	slices.SortStableFunc(spec.Fields, func(a, b sentinel.FieldMetadata) int {
		return slices.Compare(a.Index, b.Index)
	})
	return spec
}

func scanType(rt reflect.Type) sentinel.Metadata {
	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        lookupTags(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return spec
}

func lookupTags(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string)
	for _, key := range []string{tagKindred, tagDecimal, tagIndex} {
		if v, ok := tag.Lookup(key); ok {
			tags[key] = v
		}
	}
	return tags
}
