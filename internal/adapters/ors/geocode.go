package ors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
)

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves a postcode via /geocode/search, consulting the geocode
// cache first. ports.ErrNoGeocodeResult is returned for unknown postcodes.
func (c *Client) Geocode(ctx context.Context, postcode string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, "ors.Geocode")(&err)

	key := NormalizePostcode(postcode)
	if key == "" {
		return domain.Coordinates{}, fmt.Errorf("geocode: %w: empty postcode", ports.ErrNoGeocodeResult)
	}

	if c.geocodes != nil {
		hits, err := c.geocodes.GetMany(ctx, []string{key})
		if err != nil {
			obs.Logger.Warn("geocode cache read failed", "req_id", obs.RequestID(ctx), "err", err)
		} else if v, ok := hits[key]; ok {
			return v, nil
		}
	}

	coords, err := c.fetchGeocode(ctx, key)
	if err != nil {
		obs.OracleCalls.WithLabelValues("geocode", "error").Inc()
		return domain.Coordinates{}, err
	}
	obs.OracleCalls.WithLabelValues("geocode", "ok").Inc()

	if c.geocodes != nil {
		if err := c.geocodes.PutMany(ctx, map[string]domain.Coordinates{key: coords}); err != nil {
			obs.Logger.Warn("geocode cache write failed", "req_id", obs.RequestID(ctx), "err", err)
		}
	}

	return coords, nil
}

func (c *Client) fetchGeocode(ctx context.Context, postcode string) (domain.Coordinates, error) {
	endpoint := c.baseURL + "/geocode/search"

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("text", postcode)
		if c.country != "" {
			q.Set("boundary.country", c.country)
		}
		q.Set("size", "1")
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("%w for %q", ports.ErrNoGeocodeResult, postcode)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", postcode)
	}

	return domain.Coordinates{Lng: coords[0], Lat: coords[1]}, nil
}
