package ports

import (
	"context"

	"field-service-scheduler/internal/domain"
)

// Contract for the driving-directions oracle.
type DirectionsProvider interface {
	// Return len(waypoints)-1 legs for the waypoints in the given order.
	// The order is never optimized.
	Directions(ctx context.Context, waypoints []domain.Coordinates) ([]domain.Leg, error)
}
