package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sundayezeilo/geolinks/internal/geolink"
)

const (
	DefaultCacheTTL = 24 * time.Hour
	redisKeyPrefix  = "geolinks:geocode:"
)

type cachedLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RedisCache is a Cache on Redis. Entries expire after ttl.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache returns a cache over client. A non-positive ttl falls back to
// DefaultCacheTTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, address string) (geolink.Location, bool, error) {
	b, err := c.client.Get(ctx, redisKeyPrefix+address).Bytes()
	if errors.Is(err, redis.Nil) {
		return geolink.Location{}, false, nil
	}
	if err != nil {
		return geolink.Location{}, false, fmt.Errorf("redis cache: get: %w", err)
	}

	var v cachedLocation
	if err := json.Unmarshal(b, &v); err != nil {
		return geolink.Location{}, false, fmt.Errorf("redis cache: decode %q: %w", address, err)
	}
	return geolink.Location{Lat: v.Lat, Lng: v.Lng}, true, nil
}

func (c *RedisCache) Set(ctx context.Context, address string, loc geolink.Location) error {
	b, err := json.Marshal(cachedLocation{Lat: loc.Lat, Lng: loc.Lng})
	if err != nil {
		return fmt.Errorf("redis cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+address, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache: set: %w", err)
	}
	return nil
}
