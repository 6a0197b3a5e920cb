package dto

import "time"

type RouteRequest struct {
	EngineerID string   `json:"engineer_id"`
	Date       string   `json:"date"`
	Order      []string `json:"order"`
	Optimize   bool     `json:"optimize"`
}

type RouteStepResponse struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`

	ArriveAt        *time.Time `json:"arrive_at,omitempty"`
	DurationSeconds int        `json:"duration_seconds,omitempty"`
	DistanceMeters  int        `json:"distance_meters,omitempty"`

	AppointmentID string     `json:"appointment_id,omitempty"`
	Start         *time.Time `json:"start,omitempty"`
	End           *time.Time `json:"end,omitempty"`
	OriginalStart *time.Time `json:"original_start,omitempty"`
	OriginalEnd   *time.Time `json:"original_end,omitempty"`
	Changed       bool       `json:"changed,omitempty"`
}

type RouteResponse struct {
	EngineerID string              `json:"engineer_id"`
	Date       string              `json:"date"`
	Order      []string            `json:"order"`
	Steps      []RouteStepResponse `json:"steps"`
}
