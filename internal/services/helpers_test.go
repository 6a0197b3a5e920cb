package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"field-service-scheduler/internal/adapters/repositories"
	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

var testPolicy = config.DefaultPolicy()

// 2026-10-15 is a Thursday; November 2026 starts on a Sunday.
func fixedNow() time.Time {
	return time.Date(2026, 10, 15, 12, 0, 0, 0, testPolicy.Location)
}

func at(t *testing.T, date, clock string) time.Time {
	t.Helper()
	ts, err := testPolicy.ParseSlot(date, clock)
	if err != nil {
		t.Fatalf("parse %s %s: %v", date, clock, err)
	}
	return ts
}

func coord(lat, lng float64) *domain.Coordinates {
	return &domain.Coordinates{Lat: lat, Lng: lng}
}

func appointment(t *testing.T, id, engineer, date, clock string, minutes int, loc *domain.Coordinates) domain.Appointment {
	t.Helper()
	start := at(t, date, clock)
	return domain.Appointment{
		ID:         id,
		Status:     domain.StatusConfirmed,
		EngineerID: engineer,
		Date:       date,
		Start:      start,
		End:        start.Add(time.Duration(minutes) * time.Minute),
		Customer:   domain.Customer{Name: "Test", Email: "test@example.com", Phone: "0"},
		Address:    domain.Address{Postcode: "EC2V 6AA", Location: loc},
		CreatedAt:  fixedNow(),
	}
}

func engineer(id string) domain.Engineer {
	return domain.Engineer{EngineerID: id, Name: id, Active: true}
}

func newStore(t *testing.T, data repositories.SeedData) *repositories.MemoryStore {
	t.Helper()
	s := repositories.NewMemoryStore()
	if err := s.Seed(context.Background(), data); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return s
}

type stubDirections struct {
	mu    sync.Mutex
	legs  func(n int) []domain.Leg
	err   error
	calls [][]domain.Coordinates
}

func (s *stubDirections) Directions(ctx context.Context, waypoints []domain.Coordinates) ([]domain.Leg, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, waypoints)
	if s.err != nil {
		return nil, s.err
	}
	return s.legs(len(waypoints) - 1), nil
}

func uniformLegs(seconds int) func(n int) []domain.Leg {
	return func(n int) []domain.Leg {
		legs := make([]domain.Leg, n)
		for i := range legs {
			legs[i] = domain.Leg{DurationSeconds: seconds, DistanceMeters: seconds * 10}
		}
		return legs
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}
