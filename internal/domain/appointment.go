package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day partition format used for Appointment.Date.
const DateLayout = "2006-01-02"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusOffered   AppointmentStatus = "offered"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusDeclined  AppointmentStatus = "declined"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusComplete  AppointmentStatus = "complete"
)

// BlockingStatuses are the statuses that hold an engineer's calendar.
// No two appointments of one engineer in these statuses may overlap.
var BlockingStatuses = []AppointmentStatus{StatusConfirmed, StatusOffered}

// ActiveStatuses are the statuses shown on an engineer's working day.
var ActiveStatuses = []AppointmentStatus{StatusPending, StatusOffered, StatusConfirmed}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusOffered, StatusConfirmed, StatusDeclined, StatusCancelled, StatusComplete:
		return true
	}
	return false
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

type Address struct {
	Line     string
	Postcode string
	// Location is nil until geocoded.
	Location *Coordinates
}

// A booked field-service visit.
// Date always equals the calendar day of Start in the scheduling timezone,
// and End is strictly after Start. Duration is carried by the data itself.
type Appointment struct {
	ID         string
	Status     AppointmentStatus
	EngineerID string
	Date       string
	Start      time.Time
	End        time.Time
	Customer   Customer
	Address    Address
	CreatedAt  time.Time
}

func (a Appointment) Duration() time.Duration { return a.End.Sub(a.Start) }

// Overlaps reports whether a's [Start, End) intersects [start, end).
func (a Appointment) Overlaps(start, end time.Time) bool {
	return Overlaps(a.Start, a.End, start, end)
}

// Validate checks the structural invariants of a stored appointment.
func (a Appointment) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("appointment: id must not be empty")
	}
	if !a.Status.Valid() {
		return fmt.Errorf("appointment %s: invalid status %q", a.ID, a.Status)
	}
	if !a.End.After(a.Start) {
		return fmt.Errorf("appointment %s: end %s must be after start %s", a.ID, a.End, a.Start)
	}
	return nil
}

// Overlaps is the half-open interval intersection test.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && start2.Before(end1)
}
