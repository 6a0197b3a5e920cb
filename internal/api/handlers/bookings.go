package handlers

import (
	"context"
	"net/http"
	"strings"

	"field-service-scheduler/internal/api/dto"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/services"
)

type BookingService interface {
	Book(ctx context.Context, req services.BookingRequest) (services.BookingResult, error)
}

type BookingHandler struct {
	Service BookingService
}

// Book answers 201 on success and 409 with ok=false for domain rejections.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.BookingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lat, lng, ok := coords(req.Address.Lat, req.Address.Lng)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "address lat and lng must be sent together")
		return
	}

	svcReq := services.BookingRequest{
		Date: req.Date,
		Time: req.Time,
		Customer: domain.Customer{
			Name:  strings.TrimSpace(req.Customer.Name),
			Email: strings.TrimSpace(req.Customer.Email),
			Phone: strings.TrimSpace(req.Customer.Phone),
		},
		Address: domain.Address{
			Line:     strings.TrimSpace(req.Address.Line),
			Postcode: req.Address.Postcode,
		},
	}
	if lat != nil {
		svcReq.Address.Location = &domain.Coordinates{Lat: *lat, Lng: *lng}
	}

	res, err := h.Service.Book(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "book", err)
		return
	}

	out := dto.BookingResponse{
		OK:            res.OK,
		AppointmentID: res.AppointmentID,
		EngineerID:    res.EngineerID,
		Reason:        res.Reason,
	}
	if !res.OK {
		writeJSON(w, r, http.StatusConflict, out)
		return
	}
	writeJSON(w, r, http.StatusCreated, out)
}
