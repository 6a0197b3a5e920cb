package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"field-service-scheduler/internal/domain"

	"gopkg.in/yaml.v3"
)

const clockLayout = "15:04"

// A distance band: candidates within MaxKm of the anchor get Buffer
// between the anchor's end and the candidate's start.
type BufferBand struct {
	MaxKm  float64
	Buffer time.Duration
}

// Policy carries every tunable of slot generation and booking.
// Clock values are offsets from local midnight in Location.
type Policy struct {
	Location        *time.Location
	Office          domain.Coordinates
	ServiceRadiusKm float64
	SlotDuration    time.Duration
	DayStart        time.Duration
	DayEnd          time.Duration
	DefaultSlot     time.Duration
	// Bands are sorted by MaxKm ascending.
	Bands   []BufferBand
	DaysOff []time.Weekday
}

// 25 miles.
const DefaultServiceRadiusKm = 40.2336

// DefaultPolicy returns the production scheduling policy.
func DefaultPolicy() Policy {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		loc = time.UTC
	}

	return Policy{
		Location:        loc,
		Office:          domain.Coordinates{Lat: 51.5072, Lng: -0.1276},
		ServiceRadiusKm: DefaultServiceRadiusKm,
		SlotDuration:    time.Hour,
		DayStart:        8 * time.Hour,
		DayEnd:          18 * time.Hour,
		DefaultSlot:     8 * time.Hour,
		Bands: []BufferBand{
			{MaxKm: 8, Buffer: 15 * time.Minute},
			{MaxKm: 20, Buffer: 30 * time.Minute},
			{MaxKm: 40, Buffer: 45 * time.Minute},
		},
		DaysOff: []time.Weekday{time.Sunday},
	}
}

// BufferFor returns the buffer for an anchor km away, or false when the
// anchor lies beyond the outermost band.
func (p Policy) BufferFor(km float64) (time.Duration, bool) {
	for _, b := range p.Bands {
		if km <= b.MaxKm {
			return b.Buffer, true
		}
	}
	return 0, false
}

func (p Policy) IsDayOff(day time.Time) bool {
	wd := day.In(p.Location).Weekday()
	for _, off := range p.DaysOff {
		if off == wd {
			return true
		}
	}
	return false
}

// Midnight returns local midnight of the calendar day containing t.
func (p Policy) Midnight(t time.Time) time.Time {
	lt := t.In(p.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, p.Location)
}

// At returns the wall-clock time offset reads on the local calendar day
// containing day. Offsets are clock readings, so 08:00 stays 08:00 on the
// days the clocks change.
func (p Policy) At(day time.Time, offset time.Duration) time.Time {
	lt := day.In(p.Location)
	h := int(offset / time.Hour)
	m := int(offset % time.Hour / time.Minute)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), h, m, 0, 0, p.Location)
}

// Window returns the policy working window of the day containing day.
func (p Policy) Window(day time.Time) (open, closing time.Time) {
	return p.At(day, p.DayStart), p.At(day, p.DayEnd)
}

// ParseDay parses a "2006-01-02" date as local midnight.
func (p Policy) ParseDay(date string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout, strings.TrimSpace(date), p.Location)
}

// ParseSlot parses a date and "15:04" time as a local instant.
func (p Policy) ParseSlot(date, clock string) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout+" "+clockLayout,
		strings.TrimSpace(date)+" "+strings.TrimSpace(clock), p.Location)
}

func (p Policy) FormatDate(t time.Time) string  { return t.In(p.Location).Format(domain.DateLayout) }
func (p Policy) FormatClock(t time.Time) string { return t.In(p.Location).Format(clockLayout) }

func (p Policy) Validate() error {
	if p.Location == nil {
		return errors.New("policy: location must be set")
	}
	if p.ServiceRadiusKm <= 0 {
		return errors.New("policy: service radius must be positive")
	}
	if p.SlotDuration <= 0 {
		return errors.New("policy: slot duration must be positive")
	}
	if p.DayStart < 0 || p.DayEnd > 24*time.Hour || p.DayEnd <= p.DayStart {
		return fmt.Errorf("policy: invalid working window %s-%s", p.DayStart, p.DayEnd)
	}
	if p.DefaultSlot < p.DayStart || p.DefaultSlot+p.SlotDuration > p.DayEnd {
		return fmt.Errorf("policy: default slot %s does not fit the working window", p.DefaultSlot)
	}
	if len(p.Bands) == 0 {
		return errors.New("policy: at least one buffer band is required")
	}
	for i, b := range p.Bands {
		if b.MaxKm <= 0 || b.Buffer < 0 {
			return fmt.Errorf("policy: invalid band #%d", i+1)
		}
		if i > 0 && b.MaxKm <= p.Bands[i-1].MaxKm {
			return fmt.Errorf("policy: band #%d is not in ascending distance order", i+1)
		}
	}
	return nil
}

type policyFile struct {
	Timezone        string  `yaml:"timezone"`
	OfficeLat       float64 `yaml:"office_lat"`
	OfficeLng       float64 `yaml:"office_lng"`
	ServiceRadiusKm float64 `yaml:"service_radius_km"`
	SlotMinutes     int     `yaml:"slot_minutes"`
	DayStart        string  `yaml:"day_start"`
	DayEnd          string  `yaml:"day_end"`
	DefaultSlot     string  `yaml:"default_slot"`
	Bands           []struct {
		MaxKm         float64 `yaml:"max_km"`
		BufferMinutes int     `yaml:"buffer_minutes"`
	} `yaml:"bands"`
	DaysOff []string `yaml:"days_off"`
}

// LoadPolicy reads a YAML policy file. Fields left out keep their
// DefaultPolicy values.
func LoadPolicy(path string) (Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("load policy: read %q: %w", path, err)
	}
	return ParsePolicy(b)
}

func ParsePolicy(data []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}

	p := DefaultPolicy()

	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return Policy{}, fmt.Errorf("parse policy: timezone %q: %w", f.Timezone, err)
		}
		p.Location = loc
	}
	if f.OfficeLat != 0 || f.OfficeLng != 0 {
		p.Office = domain.Coordinates{Lat: f.OfficeLat, Lng: f.OfficeLng}
	}
	if f.ServiceRadiusKm != 0 {
		p.ServiceRadiusKm = f.ServiceRadiusKm
	}
	if f.SlotMinutes != 0 {
		p.SlotDuration = time.Duration(f.SlotMinutes) * time.Minute
	}

	clocks := []struct {
		raw string
		dst *time.Duration
	}{
		{f.DayStart, &p.DayStart},
		{f.DayEnd, &p.DayEnd},
		{f.DefaultSlot, &p.DefaultSlot},
	}
	for _, c := range clocks {
		if c.raw == "" {
			continue
		}
		d, err := parseClock(c.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("parse policy: %w", err)
		}
		*c.dst = d
	}

	if len(f.Bands) > 0 {
		p.Bands = make([]BufferBand, 0, len(f.Bands))
		for _, b := range f.Bands {
			p.Bands = append(p.Bands, BufferBand{
				MaxKm:  b.MaxKm,
				Buffer: time.Duration(b.BufferMinutes) * time.Minute,
			})
		}
		sort.Slice(p.Bands, func(i, j int) bool { return p.Bands[i].MaxKm < p.Bands[j].MaxKm })
	}

	if f.DaysOff != nil {
		p.DaysOff = make([]time.Weekday, 0, len(f.DaysOff))
		for _, name := range f.DaysOff {
			wd, err := parseWeekday(name)
			if err != nil {
				return Policy{}, fmt.Errorf("parse policy: %w", err)
			}
			p.DaysOff = append(p.DaysOff, wd)
		}
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q (want HH:MM)", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid weekday %q", s)
}
