package management

import "context"

// CachingClient wraps Client with a ResourceCache, serving repeated
// discovery calls (namespace pickers re-rendering, periodic refresh) from
// cache within the TTL instead of re-hitting the Management API each time.
type CachingClient struct {
	client *Client
	cache  *ResourceCache
}

// NewCachingClient wraps client with cache.
func NewCachingClient(client *Client, cache *ResourceCache) *CachingClient {
	return &CachingClient{client: client, cache: cache}
}

func (c *CachingClient) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	const key = "subscriptions"
	if cached, ok := c.cache.Subscriptions(key); ok {
		return cached, nil
	}
	result, err := c.client.ListSubscriptions(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.SetSubscriptions(key, result)
	return result, nil
}

func (c *CachingClient) ListResourceGroups(ctx context.Context, subscriptionID string) ([]ResourceGroup, error) {
	if cached, ok := c.cache.ResourceGroups(subscriptionID); ok {
		return cached, nil
	}
	result, err := c.client.ListResourceGroups(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	c.cache.SetResourceGroups(subscriptionID, result)
	return result, nil
}

func (c *CachingClient) ListNamespaces(ctx context.Context, subscriptionID string) ([]ServiceBusNamespace, error) {
	if cached, ok := c.cache.Namespaces(subscriptionID); ok {
		return cached, nil
	}
	result, err := c.client.ListNamespaces(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	c.cache.SetNamespaces(subscriptionID, result)
	return result, nil
}

func (c *CachingClient) ListQueues(ctx context.Context, subscriptionID, resourceGroup, namespace string) ([]QueueDescription, error) {
	key := subscriptionID + "/" + resourceGroup + "/" + namespace
	if cached, ok := c.cache.Queues(key); ok {
		return cached, nil
	}
	result, err := c.client.ListQueues(ctx, subscriptionID, resourceGroup, namespace)
	if err != nil {
		return nil, err
	}
	c.cache.SetQueues(key, result)
	return result, nil
}

func (c *CachingClient) GetConnectionString(ctx context.Context, subscriptionID, resourceGroup, namespace string) (string, error) {
	key := subscriptionID + "/" + resourceGroup + "/" + namespace
	if cached, ok := c.cache.ConnectionString(key); ok {
		return cached, nil
	}
	result, err := c.client.GetConnectionString(ctx, subscriptionID, resourceGroup, namespace)
	if err != nil {
		return "", err
	}
	c.cache.SetConnectionString(key, result)
	return result, nil
}

// GetConnectionStringByID delegates to the underlying client unconditionally,
// so its results are neither read from nor stored in the cache. Only
// GetConnectionString, which takes the split subscription/resource-group/
// namespace segments, is served from the cache.
func (c *CachingClient) GetConnectionStringByID(ctx context.Context, resourceID string) (string, error) {
	return c.client.GetConnectionStringByID(ctx, resourceID)
}

// InvalidateAll drops every cached entry. Exposed for ResetConnection-style
// commands that want a forced rediscovery.
func (c *CachingClient) InvalidateAll() {
	c.cache.Invalidate()
}
