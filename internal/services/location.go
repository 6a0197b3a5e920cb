package services

import (
	"context"
	"errors"
	"strings"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

// resolveLocation prefers explicit coordinates and otherwise geocodes the
// postcode. An unknown postcode is a validation error; an oracle outage is
// an upstream error.
func resolveLocation(
	ctx context.Context,
	geocoder ports.Geocoder,
	postcode string,
	loc *domain.Coordinates,
) (domain.Coordinates, error) {
	if loc != nil {
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
			return domain.Coordinates{}, invalidf("location %.5f,%.5f is out of range", loc.Lat, loc.Lng)
		}
		return *loc, nil
	}

	postcode = strings.TrimSpace(postcode)
	if postcode == "" {
		return domain.Coordinates{}, invalidf("postcode or location is required")
	}
	if geocoder == nil {
		return domain.Coordinates{}, invalidf("postcode lookup is not available, send a location")
	}

	c, err := geocoder.Geocode(ctx, postcode)
	if err != nil {
		if errors.Is(err, ports.ErrNoGeocodeResult) {
			return domain.Coordinates{}, invalidf("postcode %q could not be located", postcode)
		}
		return domain.Coordinates{}, upstream("geocode postcode", err)
	}
	return c, nil
}
