package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
)

type directionsRequest struct {
	Coordinates [][]float64 `json:"coordinates"`
}

type directionsResponse struct {
	Routes []struct {
		Segments []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"segments"`
	} `json:"routes"`
}

// Directions returns one leg per consecutive waypoint pair, in order.
// Cached legs are used only when every leg is cached; otherwise the whole
// route is fetched so all legs come from one response.
func (c *Client) Directions(ctx context.Context, waypoints []domain.Coordinates) (_ []domain.Leg, err error) {
	defer obs.Time(ctx, "ors.Directions")(&err)

	if len(waypoints) < 2 {
		return nil, errors.New("directions: at least two waypoints are required")
	}

	keys := make([]ports.LegKey, 0, len(waypoints)-1)
	for i := 1; i < len(waypoints); i++ {
		keys = append(keys, ports.LegKey{Origin: waypoints[i-1].Key(), Destination: waypoints[i].Key()})
	}

	if c.legs != nil {
		hits, err := c.legs.GetMany(ctx, keys)
		if err != nil {
			obs.Logger.Warn("leg cache read failed", "req_id", obs.RequestID(ctx), "err", err)
		} else if len(hits) == len(uniqueLegKeys(keys)) {
			out := make([]domain.Leg, len(keys))
			for i, k := range keys {
				out[i] = hits[k]
			}
			return out, nil
		}
	}

	legs, err := c.fetchDirections(ctx, waypoints)
	if err != nil {
		obs.OracleCalls.WithLabelValues("directions", "error").Inc()
		return nil, err
	}
	obs.OracleCalls.WithLabelValues("directions", "ok").Inc()

	if c.legs != nil {
		fresh := make(map[ports.LegKey]domain.Leg, len(keys))
		for i, k := range keys {
			fresh[k] = legs[i]
		}
		if err := c.legs.PutMany(ctx, fresh); err != nil {
			obs.Logger.Warn("leg cache write failed", "req_id", obs.RequestID(ctx), "err", err)
		}
	}

	return legs, nil
}

func (c *Client) fetchDirections(ctx context.Context, waypoints []domain.Coordinates) ([]domain.Leg, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s", c.baseURL, c.profile)

	body := directionsRequest{Coordinates: make([][]float64, 0, len(waypoints))}
	for _, w := range waypoints {
		body.Coordinates = append(body.Coordinates, w.CoordsToList())
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}

	if len(dr.Routes) == 0 {
		return nil, errors.New("directions response has no routes")
	}

	segments := dr.Routes[0].Segments
	if len(segments) != len(waypoints)-1 {
		return nil, fmt.Errorf("directions returned %d segments for %d waypoints", len(segments), len(waypoints))
	}

	legs := make([]domain.Leg, len(segments))
	for i, s := range segments {
		// ORS returns float metrics; round to whole units.
		legs[i] = domain.Leg{
			DistanceMeters:  int(math.Round(s.Distance)),
			DurationSeconds: int(math.Round(s.Duration)),
		}
	}

	return legs, nil
}

func uniqueLegKeys(keys []ports.LegKey) map[ports.LegKey]struct{} {
	out := make(map[ports.LegKey]struct{}, len(keys))
	for _, k := range keys {
		out[k] = struct{}{}
	}
	return out
}
