package handlers

import (
	"context"
	"net/http"

	"field-service-scheduler/internal/api/dto"
	"field-service-scheduler/internal/services"
)

type CalendarService interface {
	DayLanes(ctx context.Context, date, engineerID string) ([]services.CalendarEntry, error)
}

type LanesHandler struct {
	Service CalendarService
}

func (h *LanesHandler) DayLanes(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, r, http.StatusBadRequest, "date is required")
		return
	}

	entries, err := h.Service.DayLanes(r.Context(), date, r.URL.Query().Get("engineer_id"))
	if err != nil {
		writeServiceError(w, r, "day lanes", err)
		return
	}

	res := dto.LanesResponse{Date: date, Lanes: make([]dto.LaneResponse, 0, len(entries))}
	for _, e := range entries {
		res.Lanes = append(res.Lanes, dto.LaneResponse{
			AppointmentID: e.AppointmentID,
			EngineerID:    e.EngineerID,
			Status:        string(e.Status),
			Start:         e.Start,
			End:           e.End,
			Lane:          e.Lane.Lane,
			LaneCount:     e.LaneCount,
		})
	}

	writeJSON(w, r, http.StatusOK, res)
}
