package tenant

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// Cache maps resolution keys (domain, path segment, subdomain) to tenants
// with a TTL. A miss covers both "key absent" and "entry expired"; callers
// must always be prepared to re-resolve.
type Cache interface {
	Get(ctx context.Context, key string) (*Tenant, bool)
	Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration)
	Delete(ctx context.Context, key string)

	// DeleteAll removes every given key in one call. Used by the deletion
	// hook to drop all domain keys pointing at a tenant.
	DeleteAll(ctx context.Context, keys ...string)

	Stats() CacheStats
	Close() error
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// staleReader is implemented by caches that can serve entries past their
// TTL. Only the resolver's opt-in stale fallback uses it.
type staleReader interface {
	getStale(key string) (*Tenant, bool)
}

const cacheShards = 16

type cacheEntry struct {
	tenant    *Tenant
	expiresAt time.Time
}

type cacheShard struct {
	mu    sync.RWMutex
	items map[string]cacheEntry
}

// memoryCache is a sharded in-memory cache. Sharding keeps the critical
// section per key group, so contention on one tenant's domains does not
// block lookups for another tenant.
type memoryCache struct {
	shards [cacheShards]*cacheShard
	hits   atomic.Uint64
	misses atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewMemoryCache creates an in-memory cache with background expiry cleanup.
// Call Close to stop the cleanup goroutine.
func NewMemoryCache() Cache {
	c := &memoryCache{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for i := range c.shards {
		c.shards[i] = &cacheShard{items: make(map[string]cacheEntry)}
	}
	go c.cleanup()
	return c
}

func (c *memoryCache) shard(key string) *cacheShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%cacheShards]
}

func (c *memoryCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	s := c.shard(key)
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return entry.tenant, true
}

// getStale returns an entry even when expired. It never counts toward
// hit/miss stats since it only runs on the degraded path.
func (c *memoryCache) getStale(key string) (*Tenant, bool) {
	s := c.shard(key)
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return entry.tenant, true
}

func (c *memoryCache) Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration) {
	s := c.shard(key)
	s.mu.Lock()
	s.items[key] = cacheEntry{tenant: tenant, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
}

func (c *memoryCache) Delete(ctx context.Context, key string) {
	s := c.shard(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

func (c *memoryCache) DeleteAll(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.Delete(ctx, key)
	}
}

func (c *memoryCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
	for _, s := range c.shards {
		s.mu.RLock()
		stats.Size += len(s.items)
		s.mu.RUnlock()
	}
	return stats
}

func (c *memoryCache) cleanup() {
	defer close(c.done)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			for _, s := range c.shards {
				s.mu.Lock()
				for key, entry := range s.items {
					if now.After(entry.expiresAt) {
						delete(s.items, key)
					}
				}
				s.mu.Unlock()
			}
		case <-c.stop:
			return
		}
	}
}

func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
	})
	return nil
}

// noopCache never stores anything. Useful in tests and for disabling the
// cache layer entirely.
type noopCache struct{}

// NewNoOpCache creates a cache that never hits.
func NewNoOpCache() Cache { return noopCache{} }

func (noopCache) Get(ctx context.Context, key string) (*Tenant, bool) { return nil, false }

func (noopCache) Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration) {}

func (noopCache) Delete(ctx context.Context, key string) {}

func (noopCache) DeleteAll(ctx context.Context, keys ...string) {}

func (noopCache) Stats() CacheStats { return CacheStats{} }

func (noopCache) Close() error { return nil }
