package session

import (
	"context"
	"net/url"
	"strings"
	"sync"
)

// Cache holds raw responses keyed by request path and query.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

// Key is the cache key for a request.
func Key(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// Get returns the cached body for key or calls fetch and caches a
// successful result. Errors are not cached.
func (c *Cache) Get(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	body, ok := c.entries[key]
	c.mu.Unlock()
	if ok {
		return body, nil
	}
	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[key] = body
	c.mu.Unlock()
	return body, nil
}

// Invalidate drops every entry whose key starts with prefix and returns how
// many were dropped. An empty prefix clears the cache.
func (c *Cache) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			n++
		}
	}
	return n
}

// Has reports whether key is cached.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
