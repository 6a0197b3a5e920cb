package dto

import "time"

type LaneResponse struct {
	AppointmentID string    `json:"appointment_id"`
	EngineerID    string    `json:"engineer_id"`
	Status        string    `json:"status"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Lane          int       `json:"lane"`
	LaneCount     int       `json:"lane_count"`
}

type LanesResponse struct {
	Date  string         `json:"date"`
	Lanes []LaneResponse `json:"lanes"`
}
