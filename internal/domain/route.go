package domain

import "time"

// One travel segment between consecutive stops (or the depot) as reported
// by the directions oracle.
type Leg struct {
	DurationSeconds int
	DistanceMeters  int
}

func (l Leg) Duration() time.Duration { return time.Duration(l.DurationSeconds) * time.Second }

type StepKind string

const (
	StepStart       StepKind = "start"
	StepTravel      StepKind = "travel"
	StepAppointment StepKind = "appointment"
	StepEnd         StepKind = "end"
)

// Represents one entry of a simulated day timeline.
//
// start/end steps only carry At (depot departure / return).
// travel steps carry At (departure), ArriveAt and the leg metrics.
// appointment steps carry the recomputed Start/End next to the booked
// OriginalStart/OriginalEnd; Changed flags drift between the two.
// RouteSteps are derived data and are never persisted directly.
type RouteStep struct {
	Kind StepKind
	At   time.Time

	ArriveAt        time.Time
	DurationSeconds int
	DistanceMeters  int

	AppointmentID string
	Start         time.Time
	End           time.Time
	OriginalStart time.Time
	OriginalEnd   time.Time
	Changed       bool
}
