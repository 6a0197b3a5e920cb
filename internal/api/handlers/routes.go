package handlers

import (
	"context"
	"net/http"
	"time"

	"field-service-scheduler/internal/api/dto"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/services"
)

type RouteService interface {
	Preview(ctx context.Context, req services.RouteRequest) (services.RoutePlan, error)
	Commit(ctx context.Context, req services.RouteRequest) (services.RoutePlan, error)
}

type RouteHandler struct {
	Service RouteService
}

func (h *RouteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "route preview", h.Service.Preview)
}

func (h *RouteHandler) Commit(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "route commit", h.Service.Commit)
}

func (h *RouteHandler) handle(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	run func(context.Context, services.RouteRequest) (services.RoutePlan, error),
) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.RouteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	plan, err := run(r.Context(), services.RouteRequest{
		EngineerID: req.EngineerID,
		Date:       req.Date,
		Order:      req.Order,
		Optimize:   req.Optimize,
	})
	if err != nil {
		writeServiceError(w, r, op, err)
		return
	}

	res := dto.RouteResponse{
		EngineerID: plan.EngineerID,
		Date:       plan.Date,
		Order:      plan.Order,
		Steps:      make([]dto.RouteStepResponse, 0, len(plan.Steps)),
	}
	for _, s := range plan.Steps {
		res.Steps = append(res.Steps, stepResponse(s))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func stepResponse(s domain.RouteStep) dto.RouteStepResponse {
	out := dto.RouteStepResponse{Kind: string(s.Kind), At: s.At}

	switch s.Kind {
	case domain.StepTravel:
		out.ArriveAt = timePtr(s.ArriveAt)
		out.DurationSeconds = s.DurationSeconds
		out.DistanceMeters = s.DistanceMeters
	case domain.StepAppointment:
		out.AppointmentID = s.AppointmentID
		out.Start = timePtr(s.Start)
		out.End = timePtr(s.End)
		out.OriginalStart = timePtr(s.OriginalStart)
		out.OriginalEnd = timePtr(s.OriginalEnd)
		out.Changed = s.Changed
	}
	return out
}

func timePtr(t time.Time) *time.Time { return &t }
