package policy

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// cacheEntry wraps a decision with the registry generation it was computed
// against, so a later mutation invalidates it without an explicit sweep
// (spec.md §4.5's caching rule).
type cacheEntry struct {
	decision   bool
	generation uint64
}

// CacheStats mirrors the teacher's ProofCacheStats shape (proofs/proof_cache.go),
// retargeted from proof-verification hits to policy-decision hits.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Entries   uint64
	Evictions uint64
}

// Cache is a size-bounded, generation-tagged verdict cache. Unlike the
// teacher's ProofCache it carries no time-based TTL: spec.md §5 forbids the
// core from reading a clock directly, so invalidation is purely a function
// of the registry's mutation generation counter.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int

	insertOrder []string
	group       singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates a verdict cache bounded to maxEntries (default 4096 if
// <= 0).
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	return &Cache{
		entries:     make(map[string]cacheEntry),
		maxEntries:  maxEntries,
		insertOrder: make([]string, 0, maxEntries),
	}
}

// Decide returns the cached verdict for key if it is tagged with the
// current generation; otherwise it computes a fresh verdict via compute
// (coalescing concurrent calls for the same key via singleflight) and
// caches it.
func (c *Cache) Decide(key string, generation uint64, compute func() (bool, error)) (bool, error) {
	if v, ok := c.lookup(key, generation); ok {
		return v, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check without counting: the miss was already recorded above.
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok && entry.generation == generation {
			return entry.decision, nil
		}
		decision, err := compute()
		if err != nil {
			return false, err
		}
		c.store(key, generation, decision)
		return decision, nil
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (c *Cache) lookup(key string, generation uint64) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || entry.generation != generation {
		c.misses.Add(1)
		return false, false
	}
	c.hits.Add(1)
	return entry.decision, true
}

func (c *Cache) store(key string, generation uint64, decision bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.maxEntries && len(c.insertOrder) > 0 {
			oldest := c.insertOrder[0]
			c.insertOrder = c.insertOrder[1:]
			if _, ok := c.entries[oldest]; ok {
				delete(c.entries, oldest)
				c.evictions.Add(1)
			}
		}
		c.insertOrder = append(c.insertOrder, key)
	}
	c.entries[key] = cacheEntry{decision: decision, generation: generation}
}

// Stats returns a snapshot of cache statistics.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	entries := uint64(len(c.entries))
	c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Entries:   entries,
		Evictions: c.evictions.Load(),
	}
}
