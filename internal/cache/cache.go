package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/zeebo/xxh3"
)

// Cache is a bounded LRU with TTL, keyed by an xxh3 hash of a canonical string.
// The full key is stored with each entry so a hash collision reads as a miss.
// A nil *Cache is valid and never stores anything.
type Cache[V any] struct {
	lru    *expirable.LRU[uint64, entry[V]]
	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	key   string
	value V
}

// New returns a cache holding at most size entries for ttl each, or nil when size is 0.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	if size <= 0 {
		return nil
	}
	return &Cache[V]{lru: expirable.NewLRU[uint64, entry[V]](size, nil, ttl)}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	e, ok := c.lru.Get(xxh3.HashString(key))
	if !ok || e.key != key {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	c.lru.Add(xxh3.HashString(key), entry[V]{key: key, value: value})
}

func (c *Cache[V]) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Stats returns cumulative hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}
