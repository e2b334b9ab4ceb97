package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/aparka/internal/core/domain"
)

// clientCacheTTL bounds how long a GET result may be served from the
// client-side cache. Spot snapshots and route responses already carry
// short server-side TTLs, so this only smooths refresh bursts.
const clientCacheTTL = 5 * time.Second

// Cache implements ports.CacheService on Valkey. Reads go through
// valkey-go's server-assisted client-side caching.
type Cache struct {
	client valkey.Client
}

// New connects to the Valkey instance at addr.
func New(addr string) (*Cache, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &Cache{client: client}, nil
}

// Get returns domain.ErrNotFound for an absent key, so callers can tell
// a miss from an outage without inspecting valkey internals.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	resp := c.client.DoCache(ctx, c.client.B().Get().Key(key).Cache(), clientCacheTTL)
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return resp.AsBytes()
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return c.client.Do(ctx,
		c.client.B().Set().Key(key).Value(string(value)).Ex(time.Duration(ttlSeconds)*time.Second).Build(),
	).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

// Close releases the client.
func (c *Cache) Close() {
	c.client.Close()
}
