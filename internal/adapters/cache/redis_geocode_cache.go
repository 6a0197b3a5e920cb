package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"

	"github.com/redis/go-redis/v9"
)

const geocodeKeyPrefix = "geocode:"

// RedisGeocodeCache shares geocodes between instances.
type RedisGeocodeCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGeocodeCache(client *redis.Client, ttl time.Duration) *RedisGeocodeCache {
	return &RedisGeocodeCache{client: client, ttl: ttl}
}

// NewRedisClient parses url (redis://...) and verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

func (c *RedisGeocodeCache) GetMany(ctx context.Context, keys []string) (_ map[string]domain.Coordinates, err error) {
	defer obs.Time(ctx, "geocode.redis.GetMany")(&err)

	uniq := uniqueKeys(keys)
	out := make(map[string]domain.Coordinates, len(uniq))
	if len(uniq) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(uniq))
	for i, k := range uniq {
		redisKeys[i] = geocodeKeyPrefix + k
	}

	vals, err := c.client.MGet(ctx, redisKeys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis geocode cache: mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var coords domain.Coordinates
		if err := json.Unmarshal([]byte(s), &coords); err != nil {
			obs.Logger.Warn("dropping bad geocode cache entry", "key", redisKeys[i], "err", err)
			continue
		}
		out[uniq[i]] = coords
	}
	obs.CacheLookups.WithLabelValues("redis", "hit").Add(float64(len(out)))
	obs.CacheLookups.WithLabelValues("redis", "miss").Add(float64(len(uniq) - len(out)))

	return out, nil
}

func (c *RedisGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	if len(results) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for k, v := range results {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis geocode cache: encode %q: %w", k, err)
		}
		pipe.Set(ctx, geocodeKeyPrefix+k, b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis geocode cache: write: %w", err)
	}
	return nil
}
