package services

import (
	"testing"

	"field-service-scheduler/internal/domain"
)

func TestNearestNeighborOrder(t *testing.T) {
	depot := domain.Coordinates{Lat: 51.50, Lng: -0.12}
	appts := []domain.Appointment{
		appointment(t, "far", "e1", "2026-11-03", "09:00", 60, coord(51.70, -0.12)),
		appointment(t, "near", "e1", "2026-11-03", "10:00", 60, coord(51.52, -0.12)),
		appointment(t, "mid", "e1", "2026-11-03", "11:00", 60, coord(51.60, -0.12)),
	}

	got := NearestNeighborOrder(depot, appts)

	want := []string{"near", "mid", "far"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
	if appts[0].ID != "far" {
		t.Fatalf("input slice was reordered")
	}
}

func TestNearestNeighborOrderTiesGoToEarlierStart(t *testing.T) {
	depot := domain.Coordinates{Lat: 51.50, Lng: -0.12}
	same := coord(51.55, -0.12)
	appts := []domain.Appointment{
		appointment(t, "late", "e1", "2026-11-03", "14:00", 60, same),
		appointment(t, "early", "e1", "2026-11-03", "09:00", 60, same),
	}

	got := NearestNeighborOrder(depot, appts)
	if got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("order = %s,%s", got[0].ID, got[1].ID)
	}
}
