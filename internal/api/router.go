package api

import (
	"net/http"

	"field-service-scheduler/internal/api/handlers"
	"field-service-scheduler/internal/platform/obs"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Offers   handlers.OffersService
	Bookings handlers.BookingService
	Routes   handlers.RouteService
	Calendar handlers.CalendarService
}

// NewRouter wires HTTP handlers with their services and returns an http.Handler.
// Handlers stay unaware of concrete adapters.
func NewRouter(svc Services) http.Handler {
	mux := http.NewServeMux()

	offers := &handlers.OffersHandler{Service: svc.Offers}
	bookings := &handlers.BookingHandler{Service: svc.Bookings}
	routes := &handlers.RouteHandler{Service: svc.Routes}
	lanes := &handlers.LanesHandler{Service: svc.Calendar}

	mux.HandleFunc("/health", handlers.Health)
	mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/offers", offers.Offers)
	mux.HandleFunc("/bookings", bookings.Book)
	mux.HandleFunc("/routes/preview", routes.Preview)
	mux.HandleFunc("/routes/commit", routes.Commit)
	mux.HandleFunc("/calendar/lanes", lanes.DayLanes)

	return requestIDMiddleware(loggingMiddleware(mux))
}
