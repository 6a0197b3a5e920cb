package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
)

const (
	MonthLayout     = "2006-01"
	ReasonOutOfArea = "address is outside the service area"
)

type Offer struct {
	Date       string
	Time       string
	EngineerID string
}

// OK is false only when the customer is outside the service area.
// An in-area request can still return no offers.
type OffersResult struct {
	OK      bool
	Reason  string
	Offers  []Offer
	Located domain.Coordinates
}

type OffersRequest struct {
	Postcode string
	Location *domain.Coordinates
	Month    string
}

// AvailabilityCalculator finds, per engineer and working day of a month,
// the first slot an engineer can reach from their existing work.
// It only reads from the store.
type AvailabilityCalculator struct {
	Store    ports.AppointmentReader
	Geocoder ports.Geocoder
	Policy   config.Policy
	Now      func() time.Time
}

func NewAvailabilityCalculator(store ports.AppointmentReader, geocoder ports.Geocoder, policy config.Policy) *AvailabilityCalculator {
	return &AvailabilityCalculator{Store: store, Geocoder: geocoder, Policy: policy, Now: time.Now}
}

// Offers resolves the request's location and computes offers for it.
func (c *AvailabilityCalculator) Offers(ctx context.Context, req OffersRequest) (OffersResult, error) {
	loc, err := resolveLocation(ctx, c.Geocoder, req.Postcode, req.Location)
	if err != nil {
		obs.OfferRequests.WithLabelValues("error").Inc()
		return OffersResult{}, fmt.Errorf("offers: %w", err)
	}
	return c.ComputeOffers(ctx, loc, req.Month)
}

func (c *AvailabilityCalculator) ComputeOffers(
	ctx context.Context,
	customer domain.Coordinates,
	month string,
) (res OffersResult, err error) {
	defer obs.Time(ctx, "availability.ComputeOffers")(&err)
	defer func() {
		obs.OfferRequests.WithLabelValues(offerOutcome(res, err)).Inc()
	}()

	p := c.Policy
	first, err := time.ParseInLocation(MonthLayout, strings.TrimSpace(month), p.Location)
	if err != nil {
		return OffersResult{}, invalidf("month %q must be formatted YYYY-MM", month)
	}

	if domain.DistanceKm(p.Office, customer) > p.ServiceRadiusKm {
		return OffersResult{OK: false, Reason: ReasonOutOfArea, Located: customer}, nil
	}

	last := first.AddDate(0, 1, -1)
	fromDate, toDate := p.FormatDate(first), p.FormatDate(last)

	engineers, err := c.Store.ListEngineers(ctx)
	if err != nil {
		return OffersResult{}, datastore("list engineers", err)
	}
	appts, err := c.Store.ListAppointments(ctx, ports.AppointmentFilter{
		FromDate: fromDate,
		ToDate:   toDate,
		Statuses: domain.BlockingStatuses,
	})
	if err != nil {
		return OffersResult{}, datastore("list appointments", err)
	}
	days, err := c.Store.ListEngineerDays(ctx, fromDate, toDate)
	if err != nil {
		return OffersResult{}, datastore("list engineer days", err)
	}

	byEngineerDay := make(map[string][]domain.Appointment)
	for _, a := range appts {
		if a.EngineerID == "" {
			continue
		}
		k := a.EngineerID + "|" + a.Date
		byEngineerDay[k] = append(byEngineerDay[k], a)
	}
	for _, list := range byEngineerDay {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Start.Before(list[j].Start) })
	}

	records := make(map[string]domain.EngineerDay, len(days))
	for _, d := range days {
		records[d.EngineerID+"|"+d.Date] = d
	}

	today := p.Midnight(c.now())
	offers := make([]Offer, 0)

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		if p.IsDayOff(day) || !day.After(today) {
			continue
		}
		date := p.FormatDate(day)

		for _, eng := range engineers {
			if !eng.Active {
				continue
			}
			k := eng.EngineerID + "|" + date
			rec, hasRecord := records[k]

			var recp *domain.EngineerDay
			if hasRecord {
				recp = &rec
			}

			start, ok, err := c.firstFit(eng, day, recp, byEngineerDay[k], customer)
			if err != nil {
				return OffersResult{}, err
			}
			if !ok {
				continue
			}
			offers = append(offers, Offer{
				Date:       date,
				Time:       p.FormatClock(start),
				EngineerID: eng.EngineerID,
			})
		}
	}

	sort.SliceStable(offers, func(i, j int) bool {
		a, b := offers[i], offers[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.EngineerID < b.EngineerID
	})

	return OffersResult{OK: true, Offers: offers, Located: customer}, nil
}

// firstFit returns the first acceptable slot start for one engineer-day.
// appts are the day's blocking appointments sorted by start.
func (c *AvailabilityCalculator) firstFit(
	eng domain.Engineer,
	day time.Time,
	rec *domain.EngineerDay,
	appts []domain.Appointment,
	customer domain.Coordinates,
) (time.Time, bool, error) {
	p := c.Policy

	if len(appts) == 0 {
		start := p.At(day, p.DefaultSlot)
		if rec == nil {
			// No record and nothing booked: assumed free from the first hour.
			return start, true, nil
		}
		open, closing, err := workingWindow(p, day, rec)
		if err != nil {
			return time.Time{}, false, err
		}
		end := start.Add(p.SlotDuration)
		if start.Before(open) || end.After(closing) || rec.Busy(start, end) {
			return time.Time{}, false, nil
		}
		return start, true, nil
	}

	open, closing, err := workingWindow(p, day, rec)
	if err != nil {
		return time.Time{}, false, err
	}

	for _, anchor := range appts {
		if anchor.Address.Location == nil {
			continue
		}
		km := domain.DistanceKm(*anchor.Address.Location, customer)
		buffer, ok := p.BufferFor(km)
		if !ok {
			continue
		}
		if eng.MaxTravelKm > 0 && km > eng.MaxTravelKm {
			continue
		}

		start := anchor.End.Add(buffer)
		end := start.Add(p.SlotDuration)
		if start.Before(open) || end.After(closing) {
			continue
		}
		if collides(appts, rec, start, end) {
			continue
		}
		return start, true, nil
	}

	return time.Time{}, false, nil
}

// workingWindow is the policy window, narrowed or widened by the
// engineer-day record when it carries explicit hours.
func workingWindow(p config.Policy, day time.Time, rec *domain.EngineerDay) (time.Time, time.Time, error) {
	open, closing := p.Window(day)
	if rec == nil {
		return open, closing, nil
	}

	if rec.WorkStart != "" {
		t, err := p.ParseSlot(rec.Date, rec.WorkStart)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("engineer %s on %s: bad work start %q: %w",
				rec.EngineerID, rec.Date, rec.WorkStart, err)
		}
		open = t
	}
	if rec.WorkEnd != "" {
		t, err := p.ParseSlot(rec.Date, rec.WorkEnd)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("engineer %s on %s: bad work end %q: %w",
				rec.EngineerID, rec.Date, rec.WorkEnd, err)
		}
		closing = t
	}
	return open, closing, nil
}

func collides(appts []domain.Appointment, rec *domain.EngineerDay, start, end time.Time) bool {
	for _, a := range appts {
		if a.Overlaps(start, end) {
			return true
		}
	}
	return rec != nil && rec.Busy(start, end)
}

func (c *AvailabilityCalculator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func offerOutcome(res OffersResult, err error) string {
	switch {
	case err != nil:
		return "error"
	case !res.OK:
		return "out_of_area"
	case len(res.Offers) == 0:
		return "empty"
	}
	return "offered"
}
