package management

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultCacheTTL is the default freshness window for cached Management API
// results.
const defaultCacheTTL = 5 * time.Minute

// defaultCacheSize bounds the number of distinct keys held per resource
// kind; discovery fan-out (subscriptions x resource groups x namespaces) is
// small in practice, so this is generous rather than tight.
const defaultCacheSize = 256

type cacheEntry[T any] struct {
	value     T
	fetchedAt time.Time
}

func (e cacheEntry[T]) expired(ttl time.Duration) bool {
	return time.Since(e.fetchedAt) > ttl
}

// ResourceCache memoizes the four discovery list calls and connection-string
// lookups behind a TTL, each kind backed by its own bounded LRU so that a
// namespace switch doesn't evict a subscription's resource-group list.
type ResourceCache struct {
	mu sync.Mutex
	ttl time.Duration

	subscriptions     *lru.Cache[string, cacheEntry[[]Subscription]]
	resourceGroups    *lru.Cache[string, cacheEntry[[]ResourceGroup]]
	namespaces        *lru.Cache[string, cacheEntry[[]ServiceBusNamespace]]
	queues            *lru.Cache[string, cacheEntry[[]QueueDescription]]
	connectionStrings *lru.Cache[string, cacheEntry[string]]
}

// NewResourceCache builds a ResourceCache with the default TTL and capacity.
func NewResourceCache() *ResourceCache {
	return NewResourceCacheWithTTL(defaultCacheTTL)
}

// NewResourceCacheWithTTL builds a ResourceCache with a caller-chosen TTL,
// useful for tests that want to observe expiry without sleeping minutes.
func NewResourceCacheWithTTL(ttl time.Duration) *ResourceCache {
	subs, _ := lru.New[string, cacheEntry[[]Subscription]](defaultCacheSize)
	rgs, _ := lru.New[string, cacheEntry[[]ResourceGroup]](defaultCacheSize)
	ns, _ := lru.New[string, cacheEntry[[]ServiceBusNamespace]](defaultCacheSize)
	qs, _ := lru.New[string, cacheEntry[[]QueueDescription]](defaultCacheSize)
	cs, _ := lru.New[string, cacheEntry[string]](defaultCacheSize)
	return &ResourceCache{
		ttl:               ttl,
		subscriptions:     subs,
		resourceGroups:    rgs,
		namespaces:        ns,
		queues:            qs,
		connectionStrings: cs,
	}
}

// Subscriptions returns the cached subscription list for key, or (nil,
// false) if absent or stale.
func (c *ResourceCache) Subscriptions(key string) ([]Subscription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.subscriptions.Get(key)
	if !ok || entry.expired(c.ttl) {
		return nil, false
	}
	return entry.value, true
}

// SetSubscriptions stores value for key, stamped with the current time.
func (c *ResourceCache) SetSubscriptions(key string, value []Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions.Add(key, cacheEntry[[]Subscription]{value: value, fetchedAt: time.Now()})
}

// ResourceGroups returns the cached resource-group list for key (typically
// the subscription id), or (nil, false) if absent or stale.
func (c *ResourceCache) ResourceGroups(key string) ([]ResourceGroup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.resourceGroups.Get(key)
	if !ok || entry.expired(c.ttl) {
		return nil, false
	}
	return entry.value, true
}

func (c *ResourceCache) SetResourceGroups(key string, value []ResourceGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resourceGroups.Add(key, cacheEntry[[]ResourceGroup]{value: value, fetchedAt: time.Now()})
}

// Namespaces returns the cached namespace list for key (typically the
// subscription id), or (nil, false) if absent or stale.
func (c *ResourceCache) Namespaces(key string) ([]ServiceBusNamespace, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.namespaces.Get(key)
	if !ok || entry.expired(c.ttl) {
		return nil, false
	}
	return entry.value, true
}

func (c *ResourceCache) SetNamespaces(key string, value []ServiceBusNamespace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.namespaces.Add(key, cacheEntry[[]ServiceBusNamespace]{value: value, fetchedAt: time.Now()})
}

// Queues returns the cached queue list for key (typically the namespace
// resource id), or (nil, false) if absent or stale.
func (c *ResourceCache) Queues(key string) ([]QueueDescription, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.queues.Get(key)
	if !ok || entry.expired(c.ttl) {
		return nil, false
	}
	return entry.value, true
}

func (c *ResourceCache) SetQueues(key string, value []QueueDescription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues.Add(key, cacheEntry[[]QueueDescription]{value: value, fetchedAt: time.Now()})
}

// ConnectionString returns the cached primary connection string for key
// (typically the namespace resource id), or ("", false) if absent or stale.
func (c *ResourceCache) ConnectionString(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.connectionStrings.Get(key)
	if !ok || entry.expired(c.ttl) {
		return "", false
	}
	return entry.value, true
}

func (c *ResourceCache) SetConnectionString(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectionStrings.Add(key, cacheEntry[string]{value: value, fetchedAt: time.Now()})
}

// Invalidate drops every cached entry across all five resource kinds. Used
// when a forced rediscovery is requested (e.g. after a connection reset).
func (c *ResourceCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions.Purge()
	c.resourceGroups.Purge()
	c.namespaces.Purge()
	c.queues.Purge()
	c.connectionStrings.Purge()
}
