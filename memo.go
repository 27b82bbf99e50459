package kindred

import "sync"

// memo is a typed concurrent cache. Reads are lock-free; writers must hold the
// engine's creation lock so each entry is built at most once.
type memo[K comparable, V any] struct {
	m sync.Map
}

func (c *memo[K, V]) load(k K) (V, bool) {
	v, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

func (c *memo[K, V]) store(k K, v V) {
	c.m.Store(k, v)
}

func (c *memo[K, V]) reset() {
	c.m.Clear()
}

func (c *memo[K, V]) len() int {
	n := 0
	c.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
