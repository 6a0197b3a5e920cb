package ors

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"field-service-scheduler/internal/ports"

	"golang.org/x/time/rate"
)

// Client talks to OpenRouteService for postcode geocoding and driving
// directions. Results go through the optional caches first.
//
// The client is safe for concurrent use.
type Client struct {
	session  *http.Client
	apiKey   string
	baseURL  string
	profile  string
	country  string
	limiter  *rate.Limiter
	geocodes ports.GeocodeCache
	legs     ports.LegCache

	// backoff is the first retry delay; it doubles per attempt.
	backoff time.Duration
}

type Options struct {
	APIKey        string
	BaseURL       string
	Profile       string
	Country       string
	RatePerSecond float64
	GeocodeCache  ports.GeocodeCache
	LegCache      ports.LegCache
	HTTPClient    *http.Client
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	c := &Client{
		session:  opts.HTTPClient,
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		profile:  opts.Profile,
		country:  opts.Country,
		geocodes: opts.GeocodeCache,
		legs:     opts.LegCache,
		backoff:  200 * time.Millisecond,
	}
	if c.session == nil {
		c.session = &http.Client{Timeout: 10 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openrouteservice.org"
	}
	if c.profile == "" {
		c.profile = "driving-car"
	}
	if opts.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	return c, nil
}

// NormalizePostcode makes cache keys stable: upper case, single spaces.
func NormalizePostcode(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
