package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
)

// Validated seed content, ready to be written by a store.
type SeedData struct {
	Engineers    []domain.Engineer
	EngineerDays []domain.EngineerDay
	Appointments []domain.Appointment
}

// Seeder is implemented by every store in this package.
type Seeder interface {
	Seed(ctx context.Context, data SeedData) error
}

type coordsSeed struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type engineerSeed struct {
	EngineerID   string      `json:"engineer_id"`
	Name         string      `json:"name"`
	Active       *bool       `json:"active"`
	BaseLocation *coordsSeed `json:"base_location"`
	MaxTravelKm  float64     `json:"max_travel_km"`
}

type engineerDaySeed struct {
	EngineerID string      `json:"engineer_id"`
	Date       string      `json:"date"`
	WorkStart  string      `json:"work_start"`
	WorkEnd    string      `json:"work_end"`
	Location   *coordsSeed `json:"location"`
}

type appointmentSeed struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	EngineerID string      `json:"engineer_id"`
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	Minutes    int         `json:"minutes"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Line       string      `json:"address_line"`
	Postcode   string      `json:"postcode"`
	Location   *coordsSeed `json:"location"`
}

type seedFile struct {
	Engineers    []engineerSeed    `json:"engineers"`
	EngineerDays []engineerDaySeed `json:"engineer_days"`
	Appointments []appointmentSeed `json:"appointments"`
}

// SeedFromJSON loads a seed file and writes it through s. Dates and times in
// the file are local to the policy timezone.
func SeedFromJSON(ctx context.Context, s Seeder, jsonPath string, policy config.Policy) error {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	data, err := ParseSeed(b, policy)
	if err != nil {
		return err
	}

	if err := s.Seed(ctx, data); err != nil {
		return fmt.Errorf("seed: write: %w", err)
	}
	return nil
}

func ParseSeed(b []byte, policy config.Policy) (SeedData, error) {
	var f seedFile
	if err := json.Unmarshal(b, &f); err != nil {
		return SeedData{}, fmt.Errorf("seed: parse json: %w", err)
	}

	var out SeedData

	for i, e := range f.Engineers {
		id := strings.TrimSpace(e.EngineerID)
		if id == "" {
			return SeedData{}, fmt.Errorf("seed: engineer at index %d: engineer_id cannot be empty", i+1)
		}
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		out.Engineers = append(out.Engineers, domain.Engineer{
			EngineerID:   id,
			Name:         strings.TrimSpace(e.Name),
			Active:       active,
			BaseLocation: e.BaseLocation.coords(),
			MaxTravelKm:  e.MaxTravelKm,
		})
	}

	for i, d := range f.EngineerDays {
		if strings.TrimSpace(d.EngineerID) == "" {
			return SeedData{}, fmt.Errorf("seed: engineer day at index %d: engineer_id cannot be empty", i+1)
		}
		day, err := policy.ParseDay(d.Date)
		if err != nil {
			return SeedData{}, fmt.Errorf("seed: engineer day at index %d: %w", i+1, err)
		}
		out.EngineerDays = append(out.EngineerDays, domain.EngineerDay{
			EngineerID: strings.TrimSpace(d.EngineerID),
			Date:       policy.FormatDate(day),
			WorkStart:  d.WorkStart,
			WorkEnd:    d.WorkEnd,
			Location:   d.Location.coords(),
		})
	}

	for i, a := range f.Appointments {
		start, err := policy.ParseSlot(a.Date, a.Time)
		if err != nil {
			return SeedData{}, fmt.Errorf("seed: appointment at index %d: %w", i+1, err)
		}
		minutes := a.Minutes
		if minutes == 0 {
			minutes = int(policy.SlotDuration / time.Minute)
		}

		appt := domain.Appointment{
			ID:         strings.TrimSpace(a.ID),
			Status:     domain.AppointmentStatus(a.Status),
			EngineerID: strings.TrimSpace(a.EngineerID),
			Date:       policy.FormatDate(start),
			Start:      start,
			End:        start.Add(time.Duration(minutes) * time.Minute),
			Customer:   domain.Customer{Name: a.Name, Email: a.Email, Phone: a.Phone},
			Address:    domain.Address{Line: a.Line, Postcode: a.Postcode, Location: a.Location.coords()},
			CreatedAt:  start.UTC(),
		}
		if err := appt.Validate(); err != nil {
			return SeedData{}, fmt.Errorf("seed: appointment at index %d: %w", i+1, err)
		}
		out.Appointments = append(out.Appointments, appt)
	}

	return out, nil
}

func (c *coordsSeed) coords() *domain.Coordinates {
	if c == nil {
		return nil
	}
	return &domain.Coordinates{Lat: c.Lat, Lng: c.Lng}
}
