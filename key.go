package kindred

import (
	"strconv"
	"strings"
)

// Key is an opaque reference to a stored document.
// A key with neither ID nor Name is incomplete; the store client allocates its identifier.
type Key struct {
	EntityKind string
	ID         int64
	Name       string
	Parent     *Key
	Namespace  string
}

// IDKey returns a key identified by a numeric ID.
func IDKey(kind string, id int64, parent *Key) *Key {
	return &Key{EntityKind: kind, ID: id, Parent: parent}
}

// NameKey returns a key identified by a string name.
func NameKey(kind, name string, parent *Key) *Key {
	return &Key{EntityKind: kind, Name: name, Parent: parent}
}

// IncompleteKey returns a key awaiting identifier allocation.
func IncompleteKey(kind string, parent *Key) *Key {
	return &Key{EntityKind: kind, Parent: parent}
}

// Incomplete reports whether the key has no identifier yet.
func (k *Key) Incomplete() bool {
	return k.ID == 0 && k.Name == ""
}

// Equal reports whether k and o refer to the same document.
func (k *Key) Equal(o *Key) bool {
	for k != nil && o != nil {
		if k.EntityKind != o.EntityKind || k.ID != o.ID || k.Name != o.Name || k.Namespace != o.Namespace {
			return false
		}
		k, o = k.Parent, o.Parent
	}
	return k == nil && o == nil
}

func (k *Key) String() string {
	if k == nil {
		return "<nil>"
	}
	var b strings.Builder
	k.write(&b)
	return b.String()
}

func (k *Key) write(b *strings.Builder) {
	if k.Parent != nil {
		k.Parent.write(b)
		b.WriteByte('/')
	}
	b.WriteString(k.EntityKind)
	b.WriteByte(',')
	switch {
	case k.Name != "":
		b.WriteString(strconv.Quote(k.Name))
	case k.ID != 0:
		b.WriteString(strconv.FormatInt(k.ID, 10))
	default:
		b.WriteString("incomplete")
	}
}
