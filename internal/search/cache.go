package search

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache is a read-through cache for search results, keyed by query, site
// filter and pagination window. The indexer clears it whenever the
// underlying index mutates.
type Cache struct {
	cache *ristretto.Cache[string, *Result]
	ttl   time.Duration
}

// NewCache creates a result cache whose entries expire after ttl.
func NewCache(ttl time.Duration) (*Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, *Result]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &Cache{cache: cache, ttl: ttl}, nil
}

func cacheKey(query, siteURL string, offset, limit int) string {
	return fmt.Sprintf("%s|%s|%d|%d", query, siteURL, offset, limit)
}

// Get returns the cached result for the key, if present.
func (c *Cache) Get(query, siteURL string, offset, limit int) (*Result, bool) {
	return c.cache.Get(cacheKey(query, siteURL, offset, limit))
}

// Put stores a result under the key.
func (c *Cache) Put(query, siteURL string, offset, limit int, result *Result) {
	c.cache.SetWithTTL(cacheKey(query, siteURL, offset, limit), result, 1, c.ttl)
}

// Wait blocks until buffered writes have been applied, making a
// preceding Put visible to Get.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Invalidate drops every cached result. Called after any index mutation.
func (c *Cache) Invalidate() {
	c.cache.Clear()
}

// Close releases the cache's resources.
func (c *Cache) Close() {
	c.cache.Close()
}
