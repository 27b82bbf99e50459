package kindred

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/zoobzio/sentinel"
)

// introspector builds and caches ClassMetadata for entity and embedded types.
// Entity and embedded metadata for the same type are cached separately; an
// entity requires an identifier and an embedded type may not declare roles.
type introspector struct {
	eng         *Engine
	entities    memo[reflect.Type, *ClassMetadata]
	embeddables memo[reflect.Type, *ClassMetadata]
	building    map[reflect.Type]bool
}

func newIntrospector(eng *Engine) *introspector {
	return &introspector{eng: eng, building: make(map[reflect.Type]bool)}
}

// entity returns the metadata for entity type t, building it on first use.
func (in *introspector) entity(t reflect.Type) (*ClassMetadata, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}
	if m, ok := in.entities.load(t); ok {
		return m, nil
	}
	in.eng.mu.Lock()
	defer in.eng.mu.Unlock()
	return in.entityLocked(t)
}

func (in *introspector) entityLocked(t reflect.Type) (*ClassMetadata, error) {
	if m, ok := in.entities.load(t); ok {
		return m, nil
	}
	in.eng.metrics.cacheMiss("entity")
	m, err := in.build(t, false)
	if err != nil {
		return nil, err
	}
	in.entities.store(t, m)
	in.published(m)
	return m, nil
}

// embedded returns the metadata for embedded type t, building it on first use.
func (in *introspector) embedded(t reflect.Type) (*ClassMetadata, error) {
	t, err := structType(t)
	if err != nil {
		return nil, err
	}
	if m, ok := in.embeddables.load(t); ok {
		return m, nil
	}
	in.eng.mu.Lock()
	defer in.eng.mu.Unlock()
	return in.embeddedLocked(t)
}

func (in *introspector) embeddedLocked(t reflect.Type) (*ClassMetadata, error) {
	if m, ok := in.embeddables.load(t); ok {
		return m, nil
	}
	in.eng.metrics.cacheMiss("embedded")
	m, err := in.build(t, true)
	if err != nil {
		return nil, err
	}
	in.embeddables.store(t, m)
	in.published(m)
	return m, nil
}

func (in *introspector) published(m *ClassMetadata) {
	in.eng.log.Debug().
		Str("type", m.Type.String()).
		Str("kind", m.Kind).
		Bool("embedded", m.Embedded).
		Int("fields", len(m.Fields)).
		Msg("class introspected")
	emitIntrospected(m.Type.String(), m.Kind, len(m.Fields))
}

func structType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, newConfigError(ErrInvalidTarget, nil, "", "nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newConfigError(ErrInvalidTarget, t, "", "not a struct")
	}
	return t, nil
}

func (in *introspector) build(t reflect.Type, embedded bool) (*ClassMetadata, error) {
	if in.building[t] {
		return nil, newConfigError(ErrRecursiveType, t, "", "type contains itself")
	}
	in.building[t] = true
	defer delete(in.building, t)

	meta := &ClassMetadata{
		Type:     t,
		Embedded: embedded,
		byName:   make(map[string]*FieldDescriptor),
	}
	if !embedded {
		meta.Kind = in.eng.kindOf(t)
	}

	b := &classBuilder{in: in, meta: meta, claimed: make(map[string]string)}
	if err := b.collect(t, nil); err != nil {
		return nil, err
	}
	if !embedded && meta.Identifier == nil {
		return nil, newConfigError(ErrMissingIdentifier, t, "", "tag one field with kindred:\",id\"")
	}
	return meta, nil
}

// classBuilder accumulates the fields of one class across its superclasses.
type classBuilder struct {
	in      *introspector
	meta    *ClassMetadata
	claimed map[string]string // property name -> Go field that claimed it
}

// collect adds the fields of rt, found at prefix within the class struct.
// Mapped superclasses are collected first so their fields lead.
func (b *classBuilder) collect(rt reflect.Type, prefix []int) error {
	type pending struct {
		sf    reflect.StructField
		fm    sentinel.FieldMetadata
		tag   fieldTag
		index []int
	}
	var own []pending

	spec := scanStruct(rt)
	for _, fm := range spec.Fields {
		sf := rt.FieldByIndex(fm.Index)
		index := append(slices.Clone(prefix), fm.Index...)

		raw, _ := tagValue(fm, sf, tagKindred)
		tag, err := parseFieldTag(raw)
		if err != nil {
			return newConfigError(ErrInvalidTag, rt, sf.Name, err.Error())
		}
		if tag.skip {
			continue
		}
		if sf.Anonymous && tag.name == "" && tag.role == RolePlain && isSuperclass(sf) {
			st := sf.Type
			if st.Kind() == reflect.Pointer {
				st = st.Elem()
			}
			if b.in.building[st] {
				return newConfigError(ErrRecursiveType, st, "", "type embeds itself")
			}
			b.in.building[st] = true
			err := b.collect(st, index)
			delete(b.in.building, st)
			if err != nil {
				return err
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		own = append(own, pending{sf: sf, fm: fm, tag: tag, index: index})
	}

	b.meta.Hierarchy = append(b.meta.Hierarchy, Level{Type: rt, Index: prefix})
	for _, p := range own {
		if err := b.add(rt, p.sf, p.fm, p.tag, p.index); err != nil {
			return err
		}
	}
	return nil
}

// isSuperclass reports whether an anonymous field is a mapped superclass
// rather than a value stored under its type name.
func isSuperclass(sf reflect.StructField) bool {
	t := sf.Type
	if t.Kind() == reflect.Pointer {
		if !sf.IsExported() {
			return false
		}
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return false
	}
	if _, ok := builtinMappers[t]; ok {
		return false
	}
	return !overrides(t)
}

func (b *classBuilder) add(owner reflect.Type, sf reflect.StructField, fm sentinel.FieldMetadata, tag fieldTag, index []int) error {
	fd := &FieldDescriptor{
		Name:       sf.Name,
		MappedName: tag.name,
		Type:       sf.Type,
		Index:      index,
		Owner:      owner,
		Role:       tag.role,
		Indexed:    !tag.noindex,
		Optional:   tag.optional,
	}
	if fd.MappedName == "" {
		fd.MappedName = storedName(sf.Name)
	}

	if fd.Role != RolePlain {
		if err := b.assignRole(fd); err != nil {
			return err
		}
	}

	decRaw, hasDecimal := tagValue(fm, sf, tagDecimal)
	idxRaw, hasIndex := tagValue(fm, sf, tagIndex)

	switch {
	case fd.Role.keyed():
		if hasDecimal || hasIndex || tag.flatten {
			return newConfigError(ErrInvalidTag, owner, sf.Name, "key fields take no mapping options")
		}

	case tag.flatten:
		if sf.Type.Kind() != reflect.Struct {
			return newConfigError(ErrInvalidTag, owner, sf.Name, "flatten requires a struct field")
		}
		sub, err := b.in.embeddedLocked(sf.Type)
		if err != nil {
			return atField(err, sf.Name)
		}
		fd.Flattened = sub

	case hasDecimal:
		m, err := b.decimalMapper(owner, sf, decRaw)
		if err != nil {
			return err
		}
		fd.Mapper = m

	default:
		m, err := b.in.eng.registry.resolveLocked(keyFor(sf.Type, fd.Indexed))
		if err != nil {
			return atField(err, sf.Name)
		}
		fd.Mapper = m
	}

	if hasIndex && !fd.Role.keyed() {
		sec, err := b.secondary(owner, sf, fd, idxRaw)
		if err != nil {
			return err
		}
		fd.Secondary = sec
	}

	for _, name := range fieldProperties(fd) {
		if prev, ok := b.claimed[name]; ok {
			return newConfigError(ErrDuplicateName, owner, sf.Name,
				fmt.Sprintf("property %q already used by %s", name, prev))
		}
		b.claimed[name] = sf.Name
	}

	b.meta.Fields = append(b.meta.Fields, fd)
	b.meta.byName[fd.MappedName] = fd
	return nil
}

func (b *classBuilder) assignRole(fd *FieldDescriptor) error {
	if b.meta.Embedded {
		return newConfigError(ErrInvalidRoleType, b.meta.Type, fd.Name,
			fmt.Sprintf("role %s not allowed in an embedded type", fd.Role))
	}
	if !roleAccepts(fd.Role, fd.Type) {
		return newConfigError(ErrInvalidRoleType, b.meta.Type, fd.Name,
			fmt.Sprintf("role %s cannot be %s", fd.Role, fd.Type))
	}
	slot := b.meta.roleSlot(fd.Role)
	if *slot != nil {
		return newConfigError(ErrDuplicateRole, b.meta.Type, fd.Name,
			fmt.Sprintf("role %s already held by %s", fd.Role, (*slot).Name))
	}
	*slot = fd
	return nil
}

func roleAccepts(r Role, t reflect.Type) bool {
	switch r {
	case RoleIdentifier:
		k := t.Kind()
		return k == reflect.Int || k == reflect.Int64 || k == reflect.String
	case RoleKey, RoleParentKey:
		return t == keyPtrType
	case RoleVersion:
		return t.Kind() == reflect.Int64
	case RoleCreated, RoleUpdated:
		return t == timeType || t == reflect.PointerTo(timeType) || t.Kind() == reflect.Int64
	}
	return true
}

func (b *classBuilder) decimalMapper(owner reflect.Type, sf reflect.StructField, raw string) (Mapper, error) {
	base := sf.Type
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base != decimalType {
		return nil, newConfigError(ErrInvalidTag, owner, sf.Name, "decimal tag requires apd.Decimal")
	}
	precision, scale, err := parseDecimalTag(raw)
	if err != nil {
		return nil, newConfigError(ErrInvalidTag, owner, sf.Name, err.Error())
	}
	m, err := b.in.eng.registry.decimalLocked(precision, scale)
	if err != nil {
		return nil, atField(err, sf.Name)
	}
	if sf.Type.Kind() == reflect.Pointer {
		return &ptrMapper{typ: sf.Type, elem: m}, nil
	}
	return m, nil
}

func (b *classBuilder) secondary(owner reflect.Type, sf reflect.StructField, fd *FieldDescriptor, raw string) (*SecondaryIndex, error) {
	if fd.Flattened != nil {
		return nil, newConfigError(ErrInvalidTag, owner, sf.Name, "flattened fields cannot be indexed")
	}
	it, err := parseIndexTag(raw)
	if err != nil {
		return nil, newConfigError(ErrInvalidTag, owner, sf.Name, err.Error())
	}
	impl, err := b.in.eng.indexers.getLocked(it.indexer)
	if err != nil {
		return nil, atField(err, sf.Name)
	}
	name := it.name
	if name == "" {
		name = "$" + fd.MappedName
	}
	return &SecondaryIndex{Name: name, Indexer: it.indexer, impl: impl}, nil
}

// fieldProperties lists every property name a field writes.
func fieldProperties(fd *FieldDescriptor) []string {
	var names []string
	if fd.Flattened != nil {
		for _, sub := range fd.Flattened.Fields {
			for _, n := range fieldProperties(sub) {
				names = append(names, fd.MappedName+"."+n)
			}
		}
	} else {
		names = append(names, fd.MappedName)
	}
	if fd.Secondary != nil {
		names = append(names, fd.Secondary.Name)
	}
	return names
}
