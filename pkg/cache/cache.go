// Package cache provides a fingerprint-keyed, time-bounded memo of backend
// responses. It is the only mutable state shared across requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zen-systems/routegate/pkg/schema"
)

// Value is one cached backend response.
type Value struct {
	Answer string
	Usage  *schema.Usage
}

type entry struct {
	value     Value
	writtenAt time.Time
}

// Cache is a TTL cache with a hard capacity bound. All operations are
// serialized by a single mutex; callers must not hold a backend call open
// while inside the cache.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxItems int
	entries  map[string]entry
	now      func() time.Time
}

// New creates a cache that drops entries older than ttl and holds at most
// maxItems entries.
func New(ttl time.Duration, maxItems int) *Cache {
	return &Cache{
		ttl:      ttl,
		maxItems: maxItems,
		entries:  make(map[string]entry),
		now:      time.Now,
	}
}

// Key computes the deterministic fingerprint for a (model, system, user)
// triple. The hash is order-sensitive over the UTF-8 bytes with newline
// separators, so near-identical triples produce unrelated keys.
func Key(model, systemText, userText string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{'\n'})
	h.Write([]byte(systemText))
	h.Write([]byte{'\n'})
	h.Write([]byte(userText))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value for key, if present and within its time-to-live.
// An expired entry is removed by the lookup that finds it; there is no
// background sweep.
func (c *Cache) Get(key string) (Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Value{}, false
	}
	if c.now().Sub(e.writtenAt) > c.ttl {
		delete(c.entries, key)
		return Value{}, false
	}
	return e.value, true
}

// Set writes the value under key, replacing any prior entry and its
// timestamp. If the write pushes the store past capacity, the entry with the
// oldest write timestamp is evicted. Eviction is by write time, not access
// time: a frequently read but never rewritten entry is as evictable as one
// never read again.
func (c *Cache) Set(key string, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{value: v, writtenAt: c.now()}
	if len(c.entries) <= c.maxItems {
		return
	}

	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.writtenAt.Before(oldest) {
			oldestKey = k
			oldest = e.writtenAt
			first = false
		}
	}
	delete(c.entries, oldestKey)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
