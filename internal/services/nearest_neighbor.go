package services

import (
	"math"

	"field-service-scheduler/internal/domain"
)

// NearestNeighborOrder orders stops greedily by straight-line distance,
// starting from depot. It is a suggestion for the operator, not an
// optimizer: each step only minimizes the next hop. Ties go to the earlier
// booked start, then the smaller id, so the result is deterministic.
// Every appointment must carry a location.
func NearestNeighborOrder(depot domain.Coordinates, appointments []domain.Appointment) []domain.Appointment {
	remaining := make([]domain.Appointment, len(appointments))
	copy(remaining, appointments)

	out := make([]domain.Appointment, 0, len(appointments))
	current := depot

	for len(remaining) > 0 {
		best := -1
		bestKm := math.Inf(1)

		for i, a := range remaining {
			km := domain.DistanceKm(current, *a.Address.Location)
			if best < 0 || km < bestKm || (km == bestKm && earlier(a, remaining[best])) {
				best = i
				bestKm = km
			}
		}

		next := remaining[best]
		out = append(out, next)
		current = *next.Address.Location
		remaining = append(remaining[:best], remaining[best+1:]...)
	}

	return out
}

func earlier(a, b domain.Appointment) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.ID < b.ID
}
