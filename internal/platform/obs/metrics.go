package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated registry served on /metrics.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OfferRequests counts availability computations by outcome
	// (offered, empty, out_of_area, error).
	OfferRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_offer_requests_total", Help: "Availability computations by outcome."},
		[]string{"outcome"},
	)
	// Bookings counts booking attempts by result
	// (booked, invalid, no_engineers, no_engineer_free, slot_taken, error).
	Bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_bookings_total", Help: "Booking attempts by result."},
		[]string{"result"},
	)
	// OracleCalls counts external geocoding/directions calls.
	OracleCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_oracle_calls_total", Help: "External oracle calls by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// CacheLookups counts cache hits and misses by tier.
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "scheduler_cache_lookups_total", Help: "Cache lookups by tier and result."},
		[]string{"tier", "result"},
	)
)

var regOnce sync.Once

// RegisterDefault registers every collector on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration, OfferRequests, Bookings, OracleCalls, CacheLookups)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
