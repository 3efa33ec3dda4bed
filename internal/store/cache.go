package store

import (
	"sync"
	"time"

	"github.com/zash3dit/zashedit/internal/timeline"
)

// DefaultCacheTTL is how long a loaded project is served without reloading.
const DefaultCacheTTL = 300_000 * time.Millisecond

// Cache holds deep copies of recently loaded projects. A single mutex guards
// the map; it is never held while the backend is queried.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[int64]cacheEntry
	// gen counts invalidations per id so a load that raced an update
	// cannot repopulate the cache with the pre-update state.
	gen map[int64]uint64
}

type cacheEntry struct {
	project  *timeline.Project
	storedAt time.Time
}

// NewCache returns an empty cache. A nil clock means time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[int64]cacheEntry),
		gen:     make(map[int64]uint64),
	}
}

// Get returns a copy of the cached project if it is younger than the TTL.
// Expired entries are evicted.
func (c *Cache) Get(id int64) (*timeline.Project, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, id)
		return nil, false
	}
	return e.project.Clone(), true
}

// Generation is read before a backend load and handed back to Put.
func (c *Cache) Generation(id int64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[id]
}

// Put stores a copy of p unless the entry was invalidated after gen was read.
func (c *Cache) Put(p *timeline.Project, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen[p.ID] != gen {
		return false
	}
	c.entries[p.ID] = cacheEntry{project: p.Clone(), storedAt: c.now()}
	return true
}

func (c *Cache) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.entries, id)
	c.gen[id]++
	c.mu.Unlock()
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
