package services

import (
	"fmt"
	"time"

	"field-service-scheduler/internal/domain"
)

// Sequence simulates one engineer's day for appointments in the given order.
//
// legs must hold len(appointments)+1 entries: depot to first stop, one per
// consecutive pair of stops, and last stop back to depot. The timeline is
// anchored on the original start of the first appointment, so an unchanged
// order with unchanged legs reproduces the booked times of a tight day.
// Each appointment keeps its own duration. Sequence is pure.
func Sequence(appointments []domain.Appointment, legs []domain.Leg) ([]domain.RouteStep, error) {
	if len(appointments) == 0 {
		return []domain.RouteStep{}, nil
	}
	if len(legs) != len(appointments)+1 {
		return nil, fmt.Errorf("sequence: got %d legs for %d appointments, want %d",
			len(legs), len(appointments), len(appointments)+1)
	}

	anchor := appointments[0].Start
	depart := anchor.Add(-legs[0].Duration())

	steps := make([]domain.RouteStep, 0, 2*len(appointments)+3)
	steps = append(steps, domain.RouteStep{Kind: domain.StepStart, At: depart})

	cursor := depart
	for i, a := range appointments {
		travel, visit := stop(cursor, legs[i], a)
		steps = append(steps, travel, visit)
		cursor = visit.End
	}

	back := travelStep(cursor, legs[len(legs)-1])
	steps = append(steps, back, domain.RouteStep{Kind: domain.StepEnd, At: back.ArriveAt})

	return steps, nil
}

// stop folds one leg and one visit onto the departure time.
func stop(departAt time.Time, leg domain.Leg, a domain.Appointment) (domain.RouteStep, domain.RouteStep) {
	travel := travelStep(departAt, leg)
	start := travel.ArriveAt
	end := start.Add(a.Duration())

	return travel, domain.RouteStep{
		Kind:          domain.StepAppointment,
		At:            start,
		AppointmentID: a.ID,
		Start:         start,
		End:           end,
		OriginalStart: a.Start,
		OriginalEnd:   a.End,
		Changed:       !start.Equal(a.Start) || !end.Equal(a.End),
	}
}

func travelStep(departAt time.Time, leg domain.Leg) domain.RouteStep {
	return domain.RouteStep{
		Kind:            domain.StepTravel,
		At:              departAt,
		ArriveAt:        departAt.Add(leg.Duration()),
		DurationSeconds: leg.DurationSeconds,
		DistanceMeters:  leg.DistanceMeters,
	}
}
