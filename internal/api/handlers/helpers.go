package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
	"field-service-scheduler/internal/services"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger.Error("encode failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// allowMethod writes 405 and returns false unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeBody reads exactly one JSON object with no unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return false
	}
	return true
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		writeError(w, r, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, ports.ErrConflict):
		writeError(w, r, http.StatusConflict, "the data changed while saving, try again")
	case errors.Is(err, services.ErrUpstream):
		obs.Logger.Warn(op+" failed", "req_id", obs.RequestID(r.Context()), "err", err)
		writeError(w, r, http.StatusBadGateway, "an external service is unavailable, try again later")
	case errors.Is(err, services.ErrDatastore):
		obs.Logger.Error(op+" failed", "req_id", obs.RequestID(r.Context()), "err", err)
		writeError(w, r, http.StatusServiceUnavailable, "storage is unavailable, try again later")
	default:
		obs.Logger.Error(op+" failed", "req_id", obs.RequestID(r.Context()), "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

// clientMessage strips operation prefixes from a validation error.
func clientMessage(err error) string {
	msg := err.Error()
	marker := services.ErrInvalidRequest.Error() + ": "
	if i := strings.Index(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return msg
}

func coords(lat, lng *float64) (*float64, *float64, bool) {
	if (lat == nil) != (lng == nil) {
		return nil, nil, false
	}
	return lat, lng, true
}
