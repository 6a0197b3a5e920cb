package ors

import (
	"context"
	"fmt"
	"math"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

// MockGeocoder resolves postcodes from a fixed table.
type MockGeocoder struct {
	m map[string]domain.Coordinates
}

func NewMockGeocoder(postcodes map[string]domain.Coordinates) *MockGeocoder {
	m := make(map[string]domain.Coordinates, len(postcodes))
	for k, v := range postcodes {
		m[NormalizePostcode(k)] = v
	}
	return &MockGeocoder{m: m}
}

func (g *MockGeocoder) Geocode(ctx context.Context, postcode string) (domain.Coordinates, error) {
	c, ok := g.m[NormalizePostcode(postcode)]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("%w for %q", ports.ErrNoGeocodeResult, postcode)
	}
	return c, nil
}

// MockDirectionsProvider derives legs from straight-line distance at a
// constant speed. It stands in for ORS when no API key is configured.
type MockDirectionsProvider struct {
	SpeedKmh float64
}

func (p MockDirectionsProvider) Directions(ctx context.Context, waypoints []domain.Coordinates) ([]domain.Leg, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("directions: at least two waypoints are required")
	}
	speed := p.SpeedKmh
	if speed <= 0 {
		speed = 40
	}

	legs := make([]domain.Leg, 0, len(waypoints)-1)
	for i := 1; i < len(waypoints); i++ {
		km := domain.DistanceKm(waypoints[i-1], waypoints[i])
		legs = append(legs, domain.Leg{
			DistanceMeters:  int(math.Round(km * 1000)),
			DurationSeconds: int(math.Round(km / speed * 3600)),
		})
	}
	return legs, nil
}
