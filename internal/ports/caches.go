package ports

import (
	"context"

	"field-service-scheduler/internal/domain"
)

// Caches normalized postcodes to coordinates.
type GeocodeCache interface {
	GetMany(ctx context.Context, keys []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}

// Identifies a directed leg by the Coordinates.Key of both ends.
type LegKey struct {
	Origin      string
	Destination string
}

// Caches single directed legs.
type LegCache interface {
	GetMany(ctx context.Context, keys []LegKey) (map[LegKey]domain.Leg, error)
	PutMany(ctx context.Context, legs map[LegKey]domain.Leg) error
}
