package cache

import (
	"context"
	"fmt"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TieredGeocodeCache keeps recent postcodes in process and falls back to a
// shared cache (Redis or SQL). Shared hits are promoted into the LRU.
type TieredGeocodeCache struct {
	local  *lru.Cache[string, domain.Coordinates]
	shared ports.GeocodeCache
}

// NewTieredGeocodeCache returns an LRU of the given size. shared may be nil.
func NewTieredGeocodeCache(size int, shared ports.GeocodeCache) (*TieredGeocodeCache, error) {
	if size <= 0 {
		size = 1024
	}
	local, err := lru.New[string, domain.Coordinates](size)
	if err != nil {
		return nil, fmt.Errorf("geocode lru: %w", err)
	}
	return &TieredGeocodeCache{local: local, shared: shared}, nil
}

func (c *TieredGeocodeCache) GetMany(ctx context.Context, keys []string) (map[string]domain.Coordinates, error) {
	out := make(map[string]domain.Coordinates, len(keys))
	misses := make([]string, 0, len(keys))

	for _, k := range uniqueKeys(keys) {
		if v, ok := c.local.Get(k); ok {
			out[k] = v
			continue
		}
		misses = append(misses, k)
	}
	obs.CacheLookups.WithLabelValues("lru", "hit").Add(float64(len(out)))
	obs.CacheLookups.WithLabelValues("lru", "miss").Add(float64(len(misses)))

	if len(misses) == 0 || c.shared == nil {
		return out, nil
	}

	found, err := c.shared.GetMany(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("geocode shared cache: %w", err)
	}
	for k, v := range found {
		c.local.Add(k, v)
		out[k] = v
	}
	return out, nil
}

func (c *TieredGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	for k, v := range results {
		c.local.Add(k, v)
	}
	if c.shared == nil {
		return nil
	}
	return c.shared.PutMany(ctx, results)
}
