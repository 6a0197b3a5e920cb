package ports

import (
	"context"
	"time"
)

type EventType string

const (
	EventAppointmentBooked      EventType = "appointment.booked"
	EventAppointmentRescheduled EventType = "appointment.rescheduled"
)

type Event struct {
	Type          EventType `json:"type"`
	TenantID      string    `json:"tenant_id"`
	AppointmentID string    `json:"appointment_id"`
	EngineerID    string    `json:"engineer_id"`
	Date          string    `json:"date"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publishes appointment lifecycle events after a committed write.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
