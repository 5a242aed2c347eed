package auth

import "sync"

// TokenCache is a concurrency-safe mapping fingerprint -> CachedToken.
// Cardinality is bounded by the small, fixed set of auth-scope fingerprints
// a process uses (e.g. "service_bus", "management_api"), so a plain
// mutex-guarded map is the correct fit here, not an LRU: there is no
// unbounded key space to evict from. Lifetime equals the process.
type TokenCache struct {
	mu      sync.RWMutex
	entries map[string]CachedToken
}

// NewTokenCache returns an empty TokenCache.
func NewTokenCache() *TokenCache {
	return &TokenCache{entries: make(map[string]CachedToken)}
}

// Get returns the cached token for key, if present.
func (c *TokenCache) Get(key string) (CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[key]
	return t, ok
}

// Set stores token under key.
func (c *TokenCache) Set(key string, token CachedToken) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = token
}

// Invalidate removes key's cached entry, if any.
func (c *TokenCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// NeedsRefresh reports true if key is missing or within 5 minutes of expiry.
// The predicate is monotonic in time: once true for a given entry, it stays
// true until the entry is replaced.
func (c *TokenCache) NeedsRefresh(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[key]
	if !ok {
		return true
	}
	return t.NeedsRefresh()
}

// Keys returns the fingerprints currently cached, for the refresh service to
// iterate.
func (c *TokenCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}
