package ports

import (
	"context"
	"errors"

	"field-service-scheduler/internal/domain"
)

var ErrNoGeocodeResult = errors.New("no geocode result")

// Contract for resolving a postal code to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, postcode string) (domain.Coordinates, error)
}
