// Package kindred maps Go structs to the native entities of a schemaless
// document store and resolves the lifecycle listeners that run around
// persistence operations.
//
// # Entities
//
// An entity is a struct with exactly one identifier field. Its fields are
// stored as properties named after the field, with the leading word
// lower-cased:
//
//	type Product struct {
//	    ID       int64       `kindred:",id"`
//	    Name     string      `index:"lowercase"`
//	    Price    apd.Decimal `decimal:"7,2"`
//	    Tags     []string    `kindred:",noindex"`
//	    Version  int64       `kindred:",version"`
//	    Modified time.Time   `kindred:"modified,updated"`
//	}
//
//	eng, _ := kindred.New()
//	products, _ := kindred.Use[Product](eng)
//
//	ent, _ := products.EncodeFor(ctx, &p, kindred.IntentInsert)
//	back, _ := products.Load(ctx, ent)
//
// # Tag Syntax
//
//	kindred:"name,opt,..."   property name (empty keeps the derived name) and options
//	kindred:"-"              field is not stored
//	decimal:"p,s"            fixed-point decimal, stored as an integer scaled by 10^s
//	index:"indexer[,name=x]" secondary-index property derived by a named indexer
//
// Options: noindex, optional, flatten, and one role of id, key, parent,
// version, created or updated.
//
// # Roles
//
//   - id: int, int64 or string; carried by the entity key, never a property
//   - key, parent: *Key; the entity's full key and its parent key
//   - version: int64; maintained by EncodeFor
//   - created, updated: time.Time, *time.Time or int64 milliseconds
//
// # Class Shapes
//
// An anonymous struct field is a mapped superclass: its fields are stored as
// the entity's own, superclass first. A named struct field is an embedded
// object stored as a nested map, or as "outer.inner" properties with the
// flatten option. Embedded objects tolerate missing properties, so adding a
// field never breaks existing documents.
//
// # Value Mapping
//
// Built-in mappers cover bool, integers (range checked on decode), floats,
// strings, []byte, time.Time, time.Duration, *Key, GeoPoint, uuid.UUID,
// civil.Date, civil.Time, civil.DateTime and apd.Decimal. Pointers, slices,
// arrays, map[string]V, sets (map[T]struct{}) and `any` are composed from
// them. Types whose pointer implements NativeMarshaler and NativeUnmarshaler
// map themselves. Other types need a mapper registered with RegisterMapper.
//
// # Listeners
//
// Lifecycle events run hooks from three scopes, in order: default listeners
// registered on the engine, external listeners attached with Declare, and
// internal hooks declared with On. External and internal hooks run from the
// base superclass to the entity. ExcludeSuperclassListeners stops resolution
// at the declaring class; ExcludeDefaultListeners drops default listeners.
//
//	kindred.Declare[Account](eng,
//	    kindred.Listeners(AuditListener{}),
//	    kindred.On(kindred.PreInsert, func(ctx context.Context, a *Account) error {
//	        a.Status = "new"
//	        return nil
//	    }),
//	)
//
// # Caching
//
// Mappers, metadata, indexers, listener instances and hook chains are built
// on first use, once per Engine, and shared afterwards. Cached reads do not
// lock.
//
// # Observability
//
// The engine logs cache population through zerolog (WithLogger), emits
// capitan signals for cache population, conversions and fired events, and
// optionally reports Prometheus metrics (WithMetrics).
package kindred
