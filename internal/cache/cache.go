// Package cache is the bounded in-memory store for computed tile payloads.
//
// It is a pure value cache: TileKey in, payload bytes out. Eviction is
// least-recently-accessed first and runs synchronously on Put; expired
// entries found by Get count as misses and are removed lazily. The cache is
// the only shared mutable state in the query path, so all work besides the
// map mutation and accounting happens outside its lock.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/joeblew999/plat-atlas/internal/metrics"
)

// TileKey fingerprints one cacheable query: layer, zoom, the resolved feature
// cap, and the quantized viewport expressed as grid cell indices (see
// geo.Quantize). The cap is part of the key because payloads are truncated
// under it; requests with different caps must never share an entry. Integer
// indices keep the key exact where float formatting would not be.
type TileKey struct {
	Layer                  string
	Zoom                   int
	Cap                    int
	MinX, MinY, MaxX, MaxY int64
}

func (k TileKey) String() string {
	return fmt.Sprintf("%s|z%d|n%d|%d:%d:%d:%d", k.Layer, k.Zoom, k.Cap, k.MinX, k.MinY, k.MaxX, k.MaxY)
}

// Entry is one cached payload. Entries are immutable once created; a refresh
// inserts a new entry under the same key (last writer wins).
type Entry struct {
	Key            TileKey
	Payload        []byte
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Stats is a point-in-time snapshot of cache accounting.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Items     int    `json:"items"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Config bounds the cache. Zero values fall back to the service defaults:
// 15 minute TTL, 100 entries, 50 MB.
type Config struct {
	TTL      time.Duration
	MaxItems int
	MaxBytes int64
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 15 * time.Minute
	}
	if c.MaxItems <= 0 {
		c.MaxItems = 100
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 50 << 20
	}
	return c
}

// Cache is a concurrency-safe LRU+TTL+size-bounded payload cache.
type Cache struct {
	cfg Config

	mu        sync.Mutex
	ll        *list.List // front = most recently accessed
	items     map[TileKey]*list.Element
	size      int64
	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time // clock hook for tests
}

// New creates a cache with the given bounds.
func New(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg.withDefaults(),
		ll:    list.New(),
		items: make(map[TileKey]*list.Element),
		now:   time.Now,
	}
}

// Get returns the payload for key if present and not expired. An expired
// entry is removed, counted as a miss.
func (c *Cache) Get(key TileKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}
	e := el.Value.(*Entry)
	if c.now().Sub(e.CreatedAt) > c.cfg.TTL {
		c.removeLocked(el, true)
		c.misses++
		metrics.CacheMisses.Inc()
		return nil, false
	}

	e.LastAccessedAt = c.now()
	c.ll.MoveToFront(el)
	c.hits++
	metrics.CacheHits.Inc()
	return e.Payload, true
}

// Put inserts (or replaces) the payload for key, then evicts synchronously:
// TTL-lapsed entries first, then least-recently-accessed entries until both
// the item cap and the byte cap hold again.
func (c *Cache) Put(key TileKey, payload []byte) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeLocked(el, false) // replacement, not an eviction
	}

	e := &Entry{
		Key:            key,
		Payload:        payload,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	c.items[key] = c.ll.PushFront(e)
	c.size += int64(len(payload))

	c.expireLocked(now)
	for (len(c.items) > c.cfg.MaxItems || c.size > c.cfg.MaxBytes) && c.ll.Len() > 0 {
		c.removeLocked(c.ll.Back(), true)
	}
}

// expireLocked drops every TTL-lapsed entry. O(n), but n is bounded by
// MaxItems which is small by design.
func (c *Cache) expireLocked(now time.Time) {
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		if now.Sub(el.Value.(*Entry).CreatedAt) > c.cfg.TTL {
			c.removeLocked(el, true)
		}
		el = prev
	}
}

func (c *Cache) removeLocked(el *list.Element, evicted bool) {
	e := el.Value.(*Entry)
	c.ll.Remove(el)
	delete(c.items, e.Key)
	c.size -= int64(len(e.Payload))
	if evicted {
		c.evictions++
		metrics.CacheEvictions.Inc()
	}
}

// Stats snapshots the accounting counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Items:     len(c.items),
		SizeBytes: c.size,
	}
}

// Clear drops every entry. Hit/miss counters are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[TileKey]*list.Element)
	c.size = 0
}
