package kindred

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Indexer derives a secondary-index value from a field's native value.
// Indexers are cached per engine and must be safe for concurrent use.
type Indexer interface {
	Index(v Value) (Value, error)
}

// IndexerFunc adapts a function to Indexer.
type IndexerFunc func(v Value) (Value, error)

func (f IndexerFunc) Index(v Value) (Value, error) { return f(v) }

// Built-in indexer names, for use in `index:"..."` tags.
const (
	// IndexLowercase stores a lower-cased copy for case-insensitive lookup.
	IndexLowercase = "lowercase"

	// IndexUppercase stores an upper-cased copy.
	IndexUppercase = "uppercase"

	// IndexSHA256 stores a hex SHA-256 digest, for equality lookup on values
	// too large or too sensitive to index directly.
	IndexSHA256 = "sha256"

	// IndexSHA512 stores a hex SHA-512 digest.
	IndexSHA512 = "sha512"

	// IndexBlake2b stores a hex BLAKE2b-256 digest.
	IndexBlake2b = "blake2b"
)

// builtinIndexers returns the default indexer factories.
func builtinIndexers() map[string]func() Indexer {
	return map[string]func() Indexer{
		IndexLowercase: func() Indexer { return &caseIndexer{upper: false} },
		IndexUppercase: func() Indexer { return &caseIndexer{upper: true} },
		IndexSHA256: func() Indexer {
			return &digestIndexer{sum: func(b []byte) []byte { s := sha256.Sum256(b); return s[:] }}
		},
		IndexSHA512: func() Indexer {
			return &digestIndexer{sum: func(b []byte) []byte { s := sha512.Sum512(b); return s[:] }}
		},
		IndexBlake2b: func() Indexer {
			return &digestIndexer{sum: func(b []byte) []byte { s := blake2b.Sum256(b); return s[:] }}
		},
	}
}

// caseIndexer folds strings, and lists of strings, to one case.
type caseIndexer struct {
	upper bool
}

func (c *caseIndexer) Index(v Value) (Value, error) {
	// A cases.Caser is stateful, so each call gets its own.
	caser := cases.Lower(language.Und)
	if c.upper {
		caser = cases.Upper(language.Und)
	}
	return eachString(v, func(s string) (Value, error) {
		return String(caser.String(s)), nil
	})
}

// digestIndexer stores a hex digest of strings or blobs.
type digestIndexer struct {
	sum func([]byte) []byte
}

func (d *digestIndexer) Index(v Value) (Value, error) {
	if b, ok := Unwrap(v).(Blob); ok {
		return String(hex.EncodeToString(d.sum(b))), nil
	}
	return eachString(v, func(s string) (Value, error) {
		return String(hex.EncodeToString(d.sum([]byte(s)))), nil
	})
}

// eachString applies fn to a string or to every string of a list.
// Null passes through unchanged.
func eachString(v Value, fn func(string) (Value, error)) (Value, error) {
	switch nv := Unwrap(v).(type) {
	case Null:
		return Null{}, nil
	case String:
		return fn(string(nv))
	case List:
		out := make(List, len(nv))
		for i, item := range nv {
			iv, err := eachString(item, fn)
			if err != nil {
				return nil, atField(err, "["+strconv.Itoa(i)+"]")
			}
			out[i] = iv
		}
		return out, nil
	}
	return nil, newConversionError(ErrUnsupportedType, nil, v.Kind().String(), nil)
}

// indexerRegistry resolves indexers by name and caches one instance per name.
type indexerRegistry struct {
	eng       *Engine
	factories map[string]func() Indexer // guarded by eng.mu
	cache     memo[string, Indexer]
}

func newIndexerRegistry(eng *Engine) *indexerRegistry {
	return &indexerRegistry{eng: eng, factories: builtinIndexers()}
}

func (r *indexerRegistry) get(name string) (Indexer, error) {
	if ix, ok := r.cache.load(name); ok {
		return ix, nil
	}
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	return r.getLocked(name)
}

func (r *indexerRegistry) getLocked(name string) (Indexer, error) {
	if ix, ok := r.cache.load(name); ok {
		return ix, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, &ConfigError{Err: ErrUnknownIndexer, Detail: strconv.Quote(name)}
	}
	r.eng.metrics.cacheMiss("indexer")
	ix := factory()
	r.cache.store(name, ix)
	return ix, nil
}

// register installs a factory for name, replacing any built-in of the same name.
func (r *indexerRegistry) register(name string, factory func() Indexer) {
	r.eng.mu.Lock()
	defer r.eng.mu.Unlock()
	r.factories[name] = factory
	r.cache.m.Delete(name)
}
