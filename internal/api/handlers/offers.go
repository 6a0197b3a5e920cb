package handlers

import (
	"context"
	"net/http"

	"field-service-scheduler/internal/api/dto"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/services"
)

type OffersService interface {
	Offers(ctx context.Context, req services.OffersRequest) (services.OffersResult, error)
}

type OffersHandler struct {
	Service OffersService
}

func (h *OffersHandler) Offers(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	var req dto.OffersRequest
	if !decodeBody(w, r, &req) {
		return
	}

	lat, lng, ok := coords(req.Lat, req.Lng)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "lat and lng must be sent together")
		return
	}

	svcReq := services.OffersRequest{Postcode: req.Postcode, Month: req.Month}
	if lat != nil {
		svcReq.Location = &domain.Coordinates{Lat: *lat, Lng: *lng}
	}

	res, err := h.Service.Offers(r.Context(), svcReq)
	if err != nil {
		writeServiceError(w, r, "offers", err)
		return
	}

	out := dto.OffersResponse{
		OK:     res.OK,
		Reason: res.Reason,
		Offers: make([]dto.OfferResponse, 0, len(res.Offers)),
	}
	for _, o := range res.Offers {
		out.Offers = append(out.Offers, dto.OfferResponse{Date: o.Date, Time: o.Time, EngineerID: o.EngineerID})
	}

	writeJSON(w, r, http.StatusOK, out)
}
