package kindred

import (
	"fmt"
	"reflect"
)

// Role marks a field with special meaning to the store.
type Role int

const (
	RolePlain Role = iota
	RoleIdentifier
	RoleKey
	RoleParentKey
	RoleVersion
	RoleCreated
	RoleUpdated
)

var roleNames = [...]string{
	RolePlain:      "plain",
	RoleIdentifier: "id",
	RoleKey:        "key",
	RoleParentKey:  "parent",
	RoleVersion:    "version",
	RoleCreated:    "created",
	RoleUpdated:    "updated",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// keyed reports whether the role is carried by the document key rather than a property.
func (r Role) keyed() bool {
	return r == RoleIdentifier || r == RoleKey || r == RoleParentKey
}

// FieldDescriptor describes one persistent field of a class.
type FieldDescriptor struct {
	Name       string       // Go field name
	MappedName string       // Property name in the document
	Type       reflect.Type // Declared field type
	Index      []int        // Path from the class struct, through mapped superclasses
	Owner      reflect.Type // Struct type that declares the field
	Role       Role
	Indexed    bool
	Optional   bool
	Mapper     Mapper // Nil for key-carried roles and flattened fields

	// Flattened is set when the field's own properties are stored in the
	// parent as "<MappedName>.<property>".
	Flattened *ClassMetadata

	Secondary *SecondaryIndex
}

// SecondaryIndex is an extra property derived from a field at encode time.
type SecondaryIndex struct {
	Name    string // Property name of the derived value
	Indexer string // Registered indexer name
	impl    Indexer
}

// get reads the field from a class struct value. A nil pointer on the path
// yields the zero value of the field type.
func (f *FieldDescriptor) get(obj reflect.Value) reflect.Value {
	v, err := obj.FieldByIndexErr(f.Index)
	if err != nil {
		return reflect.Zero(f.Type)
	}
	return v
}

// set assigns v to the field of an addressable class struct, allocating nil
// pointers on the path.
func (f *FieldDescriptor) set(obj reflect.Value, v reflect.Value) error {
	dst := f.target(obj)
	cv, err := conform(v, f.Type)
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

func (f *FieldDescriptor) target(obj reflect.Value) reflect.Value {
	return fieldByIndexAlloc(obj, f.Index)
}

func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// Level is one struct in an entity's mapped-superclass hierarchy.
type Level struct {
	Type  reflect.Type
	Index []int // Path from the entity struct; empty for the entity itself
}

// ClassMetadata describes how a struct type is stored.
// It is immutable once published and shared by all callers.
type ClassMetadata struct {
	Type     reflect.Type
	Kind     string // Document kind; empty for embedded types
	Embedded bool
	Fields   []*FieldDescriptor

	Identifier *FieldDescriptor
	Key        *FieldDescriptor
	ParentKey  *FieldDescriptor
	Version    *FieldDescriptor
	Created    *FieldDescriptor
	Updated    *FieldDescriptor

	// Hierarchy lists mapped superclasses base first, ending with Type itself.
	Hierarchy []Level

	byName map[string]*FieldDescriptor
}

// Field returns the descriptor stored under a mapped name.
func (m *ClassMetadata) Field(mapped string) (*FieldDescriptor, bool) {
	f, ok := m.byName[mapped]
	return f, ok
}

// New allocates a zero instance of the class and returns a pointer to it.
func (m *ClassMetadata) New() reflect.Value {
	return reflect.New(m.Type)
}

// roleSlot returns the metadata slot that holds the field for r.
func (m *ClassMetadata) roleSlot(r Role) **FieldDescriptor {
	switch r {
	case RoleIdentifier:
		return &m.Identifier
	case RoleKey:
		return &m.Key
	case RoleParentKey:
		return &m.ParentKey
	case RoleVersion:
		return &m.Version
	case RoleCreated:
		return &m.Created
	case RoleUpdated:
		return &m.Updated
	}
	return nil
}
