package bencode

import (
	"sync/atomic"
)

// cache is a copy-on-write map for read-mostly lookups keyed by type. Readers
// never lock; writers copy the map and swap it in.
type cache[K comparable, V any] struct {
	ptr atomic.Pointer[map[K]V]
}

func newCache[K comparable, V any]() *cache[K, V] {
	c := &cache[K, V]{}
	m := make(map[K]V)
	c.ptr.Store(&m)
	return c
}

func (c *cache[K, V]) get(key K) (V, bool) {
	v, ok := (*c.ptr.Load())[key]
	return v, ok
}

func (c *cache[K, V]) set(key K, val V) {
	c.setAll(map[K]V{key: val})
}

// setAll publishes every entry of vals in one swap.
func (c *cache[K, V]) setAll(vals map[K]V) {
	for {
		old := c.ptr.Load()
		next := make(map[K]V, len(*old)+len(vals))
		for k, v := range *old {
			next[k] = v
		}
		for k, v := range vals {
			next[k] = v
		}
		if c.ptr.CompareAndSwap(old, &next) {
			return
		}
	}
}
