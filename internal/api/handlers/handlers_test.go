package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"field-service-scheduler/internal/api/dto"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
	"field-service-scheduler/internal/services"
)

type stubOffers struct {
	got services.OffersRequest
	res services.OffersResult
	err error
}

func (s *stubOffers) Offers(ctx context.Context, req services.OffersRequest) (services.OffersResult, error) {
	s.got = req
	return s.res, s.err
}

type stubBookings struct {
	got services.BookingRequest
	res services.BookingResult
	err error
}

func (s *stubBookings) Book(ctx context.Context, req services.BookingRequest) (services.BookingResult, error) {
	s.got = req
	return s.res, s.err
}

type stubRoutes struct {
	plan      services.RoutePlan
	err       error
	committed bool
}

func (s *stubRoutes) Preview(ctx context.Context, req services.RouteRequest) (services.RoutePlan, error) {
	return s.plan, s.err
}

func (s *stubRoutes) Commit(ctx context.Context, req services.RouteRequest) (services.RoutePlan, error) {
	s.committed = true
	return s.plan, s.err
}

func do(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestOffersHandler(t *testing.T) {
	svc := &stubOffers{res: services.OffersResult{
		OK:     true,
		Offers: []services.Offer{{Date: "2026-11-03", Time: "08:00", EngineerID: "e1"}},
	}}
	h := &OffersHandler{Service: svc}

	rec := do(h.Offers, http.MethodPost, "/offers", `{"lat":51.5,"lng":-0.1,"month":"2026-11"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var res dto.OffersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || len(res.Offers) != 1 || res.Offers[0].EngineerID != "e1" {
		t.Fatalf("response = %+v", res)
	}
	if svc.got.Location == nil || svc.got.Location.Lat != 51.5 || svc.got.Month != "2026-11" {
		t.Fatalf("service request = %+v", svc.got)
	}
}

func TestOffersHandlerOutOfAreaIsOK(t *testing.T) {
	h := &OffersHandler{Service: &stubOffers{res: services.OffersResult{Reason: services.ReasonOutOfArea}}}

	rec := do(h.Offers, http.MethodPost, "/offers", `{"postcode":"CB2 1TN","month":"2026-11"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok":false`) || !strings.Contains(rec.Body.String(), `"offers":[]`) {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestOffersHandlerRejects(t *testing.T) {
	h := &OffersHandler{Service: &stubOffers{}}

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, `{`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"zip":"x"}`, http.StatusBadRequest},
		{"two objects", http.MethodPost, `{"month":"2026-11"}{}`, http.StatusBadRequest},
		{"half a location", http.MethodPost, `{"lat":51.5,"month":"2026-11"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h.Offers, tt.method, "/offers", tt.body); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("offers: %w: month is bad", services.ErrInvalidRequest), http.StatusBadRequest},
		{fmt.Errorf("commit: %w", ports.ErrConflict), http.StatusConflict},
		{fmt.Errorf("geocode: %w: %w", services.ErrUpstream, errors.New("timeout")), http.StatusBadGateway},
		{fmt.Errorf("list: %w: %w", services.ErrDatastore, errors.New("db down")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.want), func(t *testing.T) {
			h := &OffersHandler{Service: &stubOffers{err: tt.err}}
			rec := do(h.Offers, http.MethodPost, "/offers", `{"postcode":"EC2V 7AN","month":"2026-11"}`)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestValidationMessageIsPassedThrough(t *testing.T) {
	err := fmt.Errorf("book: %w", fmt.Errorf("%w: missing required fields: email", services.ErrInvalidRequest))
	h := &BookingHandler{Service: &stubBookings{err: err}}

	rec := do(h.Book, http.MethodPost, "/bookings", `{"date":"2026-11-03","time":"10:00"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"missing required fields: email"`) {
		t.Fatalf("body = %s", rec.Body)
	}
}

const bookingBody = `{
	"date": "2026-11-03",
	"time": "10:00",
	"customer": {"name": " Ada ", "email": "ada@example.com", "phone": "0207"},
	"address": {"line": "1 Wood St", "postcode": "EC2V 7AN", "lat": 51.51, "lng": -0.09}
}`

func TestBookingHandler(t *testing.T) {
	tests := []struct {
		name string
		res  services.BookingResult
		want int
	}{
		{"booked", services.BookingResult{OK: true, AppointmentID: "a1", EngineerID: "e1"}, http.StatusCreated},
		{"slot taken", services.BookingResult{Reason: services.ReasonSlotTaken}, http.StatusConflict},
		{"no engineer", services.BookingResult{Reason: services.ReasonNoEngineerFree}, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubBookings{res: tt.res}
			h := &BookingHandler{Service: svc}

			rec := do(h.Book, http.MethodPost, "/bookings", bookingBody)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}

			var res dto.BookingResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.OK != tt.res.OK || res.Reason != tt.res.Reason {
				t.Fatalf("response = %+v", res)
			}
			if svc.got.Customer.Name != "Ada" || svc.got.Address.Location == nil {
				t.Fatalf("service request = %+v", svc.got)
			}
		})
	}
}

func TestRouteHandler(t *testing.T) {
	day := time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)
	svc := &stubRoutes{plan: services.RoutePlan{
		EngineerID: "e1",
		Date:       "2026-11-03",
		Order:      []string{"a"},
		Steps: []domain.RouteStep{
			{Kind: domain.StepStart, At: day.Add(8 * time.Hour)},
			{Kind: domain.StepTravel, At: day.Add(8 * time.Hour), ArriveAt: day.Add(9 * time.Hour), DurationSeconds: 3600},
			{Kind: domain.StepAppointment, At: day.Add(9 * time.Hour), AppointmentID: "a", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		},
	}}
	h := &RouteHandler{Service: svc}

	rec := do(h.Preview, http.MethodPost, "/routes/preview", `{"engineer_id":"e1","date":"2026-11-03"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if svc.committed {
		t.Fatalf("preview committed")
	}

	var res dto.RouteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Steps) != 3 {
		t.Fatalf("got %d steps", len(res.Steps))
	}
	if res.Steps[0].ArriveAt != nil || res.Steps[0].Start != nil {
		t.Fatalf("start step carries travel or visit fields: %+v", res.Steps[0])
	}
	if res.Steps[1].ArriveAt == nil || res.Steps[1].DurationSeconds != 3600 {
		t.Fatalf("travel step = %+v", res.Steps[1])
	}
	if res.Steps[2].AppointmentID != "a" || res.Steps[2].Start == nil {
		t.Fatalf("appointment step = %+v", res.Steps[2])
	}

	rec = do(h.Commit, http.MethodPost, "/routes/commit", `{"engineer_id":"e1","date":"2026-11-03"}`)
	if rec.Code != http.StatusOK || !svc.committed {
		t.Fatalf("commit status = %d, committed = %v", rec.Code, svc.committed)
	}
}

type stubCalendar struct {
	entries  []services.CalendarEntry
	engineer string
}

func (s *stubCalendar) DayLanes(ctx context.Context, date, engineerID string) ([]services.CalendarEntry, error) {
	s.engineer = engineerID
	return s.entries, nil
}

func TestLanesHandler(t *testing.T) {
	svc := &stubCalendar{entries: []services.CalendarEntry{{
		AppointmentID: "a",
		EngineerID:    "e1",
		Status:        domain.StatusConfirmed,
		Lane:          services.Lane{Lane: 1, LaneCount: 2},
	}}}
	h := &LanesHandler{Service: svc}

	if rec := do(h.DayLanes, http.MethodGet, "/calendar/lanes", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing date status = %d", rec.Code)
	}

	rec := do(h.DayLanes, http.MethodGet, "/calendar/lanes?date=2026-11-03&engineer_id=e1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res dto.LanesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Lanes) != 1 || res.Lanes[0].Lane != 1 || res.Lanes[0].LaneCount != 2 || svc.engineer != "e1" {
		t.Fatalf("response = %+v", res)
	}
}

func TestHealth(t *testing.T) {
	rec := do(Health, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
}
