// Package expandcache provides the bounded, true-LRU cache for recipe
// expansion requirement lookups named in spec.md §5 ("Caches"): keyed by
// (output_kind, quantity), bounded size (default 1000), true LRU
// eviction, purely a speedup that must never change semantics.
package expandcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is spec.md §5's default cache bound.
const DefaultSize = 1000

// Requirement is the cached result of scaling a recipe's per-output-unit
// inputs to a concrete (output_kind, quantity) request: input kind ->
// required quantity. Storage/waste availability is checked fresh every
// time against this cached scaling, so caching it cannot change
// semantics — it only avoids repeating the multiply-and-divide across
// sibling expansions that request the same (kind, quantity) pair.
type Requirement struct {
	Inputs map[string]float64
}

type Key struct {
	OutputKind string
	Quantity   float64
}

func (k Key) String() string { return fmt.Sprintf("%s@%g", k.OutputKind, k.Quantity) }

// Cache is a thin wrapper around hashicorp/golang-lru so callers don't
// need to know the eviction library in use.
type Cache struct {
	inner *lru.Cache[Key, Requirement]
}

func New(size int) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[Key, Requirement](size)
	return &Cache{inner: c}
}

func (c *Cache) Get(k Key) (Requirement, bool) {
	return c.inner.Get(k)
}

func (c *Cache) Add(k Key, v Requirement) {
	c.inner.Add(k, v)
}

func (c *Cache) Purge() {
	c.inner.Purge()
}

func (c *Cache) Len() int {
	return c.inner.Len()
}
