// Package cache memoizes tool-call results behind a fingerprint key, so an
// identical call against unchanged inputs skips re-execution. Grounded on
// the fingerprint/cache pattern described in spec.md's Result Cache
// component and the memoization comments in
// vtcode-core/src/tools/registry/dual_output.rs.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"
)

// Fingerprint deterministically identifies a tool call: the tool name, its
// canonicalized arguments, and (when present) the mtime/size of any file
// paths the call touches, so a cache entry is invalidated the moment the
// underlying file changes.
func Fingerprint(toolName string, args map[string]any, filePaths ...string) string {
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write([]byte(canonicalArgs(args)))

	for _, p := range filePaths {
		h.Write([]byte{0})
		h.Write([]byte(p))
		if fi, err := os.Stat(p); err == nil {
			h.Write([]byte{0})
			h.Write([]byte(fi.ModTime().UTC().Format(time.RFC3339Nano)))
			h.Write([]byte{0})
			h.Write([]byte(sizeString(fi.Size())))
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func sizeString(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// canonicalArgs produces a stable JSON encoding of args (sorted keys) so
// semantically identical argument maps always fingerprint the same way.
func canonicalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]any, 0, len(keys)*2)
	for _, k := range keys {
		ordered = append(ordered, k, args[k])
	}
	b, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(b)
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// Cache is a fingerprint-keyed, TTL-expiring, capacity-bounded LRU.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used

	hits   int64
	misses int64
}

// New creates a Cache with the given TTL and maximum entry count.
func New(ttl time.Duration, capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores value under key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	e := &entry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.order.PushFront(e)
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
	}
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Stats is a point-in-time snapshot of hit/miss counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// HitRate returns Hits/(Hits+Misses), or 0 when there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats returns the current hit/miss counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
