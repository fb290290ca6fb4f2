package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// Cache implements ports.CacheService using Valkey (Redis-compatible). Keys
// are stored under "<namespace>:" so several deployments can share a server.
type Cache struct {
	client    valkey.Client
	namespace string
}

// New connects to addr. An empty namespace stores keys as given.
func New(addr, namespace string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client, namespace: namespace}, nil
}

func namespaced(namespace, key string) string {
	if namespace == "" {
		return key
	}
	return namespace + ":" + key
}

// Get returns the stored value. A missing key is an error that IsMiss
// recognises.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	return c.client.Do(ctx, c.client.B().Get().Key(namespaced(c.namespace, key)).Build()).AsBytes()
}

// Set stores value for ttlSeconds, or without expiry when ttlSeconds <= 0.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	k := namespaced(c.namespace, key)
	v := valkey.BinaryString(value)
	if ttlSeconds <= 0 {
		return c.client.Do(ctx, c.client.B().Set().Key(k).Value(v).Build()).Error()
	}
	ttl := time.Duration(ttlSeconds) * time.Second
	return c.client.Do(ctx, c.client.B().Set().Key(k).Value(v).Ex(ttl).Build()).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(namespaced(c.namespace, key)).Build()).Error()
}

// Ping round-trips to the server.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

// IsMiss reports whether err is a cache miss rather than a client failure.
func IsMiss(err error) bool {
	return valkey.IsValkeyNil(err)
}

func (c *Cache) Close() {
	c.client.Close()
}
