package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"

	"github.com/google/uuid"
)

const (
	ReasonNoEngineers    = "no engineers configured"
	ReasonNoEngineerFree = "no engineer free for the requested slot"
	ReasonSlotTaken      = "slot just taken"
)

var errSlotTaken = errors.New(ReasonSlotTaken)

type BookingRequest struct {
	Date     string
	Time     string
	Customer domain.Customer
	Address  domain.Address
}

type BookingResult struct {
	OK            bool
	AppointmentID string
	EngineerID    string
	Reason        string
}

// BookingCommitter books a pending appointment on the first free engineer.
//
// A cheap pre-check picks the engineer outside any transaction; the choice
// is then re-validated from a snapshot inside the store transaction that
// writes the appointment and the engineer-day slot together. Both checks
// treat confirmed/offered appointments and mirrored slots (which include
// pending bookings) as busy.
type BookingCommitter struct {
	Store    ports.AppointmentStore
	Geocoder ports.Geocoder
	Events   ports.EventPublisher
	Policy   config.Policy
	TenantID string
	NewID    func() string
	Now      func() time.Time
}

func NewBookingCommitter(
	store ports.AppointmentStore,
	geocoder ports.Geocoder,
	events ports.EventPublisher,
	policy config.Policy,
	tenantID string,
) *BookingCommitter {
	return &BookingCommitter{
		Store:    store,
		Geocoder: geocoder,
		Events:   events,
		Policy:   policy,
		TenantID: tenantID,
		NewID:    uuid.NewString,
		Now:      time.Now,
	}
}

func (b *BookingCommitter) Book(ctx context.Context, req BookingRequest) (res BookingResult, err error) {
	defer obs.Time(ctx, "booking.Book")(&err)
	defer func() {
		obs.Bookings.WithLabelValues(bookingOutcome(res, err)).Inc()
	}()

	start, err := b.validate(req)
	if err != nil {
		return BookingResult{}, fmt.Errorf("book: %w", err)
	}
	end := start.Add(b.Policy.SlotDuration)
	date := b.Policy.FormatDate(start)

	addr := req.Address
	addr.Postcode = strings.TrimSpace(addr.Postcode)
	loc, err := resolveLocation(ctx, b.Geocoder, addr.Postcode, addr.Location)
	if err != nil {
		return BookingResult{}, fmt.Errorf("book: %w", err)
	}
	addr.Location = &loc

	pool, err := b.engineerPool(ctx, start)
	if err != nil {
		return BookingResult{}, err
	}
	if len(pool) == 0 {
		return BookingResult{OK: false, Reason: ReasonNoEngineers}, nil
	}

	busy, err := busyEngineers(ctx, b.Store, date, "", start, end)
	if err != nil {
		return BookingResult{}, datastore("book: pre-check", err)
	}

	chosen := ""
	for _, id := range pool {
		if _, ok := busy[id]; !ok {
			chosen = id
			break
		}
	}
	if chosen == "" {
		return BookingResult{OK: false, Reason: ReasonNoEngineerFree}, nil
	}

	var appt domain.Appointment
	err = b.Store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		// Snapshot re-check of the chosen engineer only.
		nowBusy, err := busyEngineers(ctx, tx, date, chosen, start, end)
		if err != nil {
			return err
		}
		if _, ok := nowBusy[chosen]; ok {
			return errSlotTaken
		}

		day, found, err := tx.GetEngineerDay(ctx, chosen, date)
		if err != nil {
			return err
		}
		if !found {
			day = domain.EngineerDay{EngineerID: chosen, Date: date}
		}

		appt = domain.Appointment{
			ID:         b.newID(),
			Status:     domain.StatusPending,
			EngineerID: chosen,
			Date:       date,
			Start:      start,
			End:        end,
			Customer:   req.Customer,
			Address:    addr,
			CreatedAt:  b.now().UTC(),
		}

		if err := tx.InsertAppointment(ctx, appt); err != nil {
			return err
		}

		slots := make([]domain.Slot, 0, len(day.Slots)+1)
		slots = append(slots, day.Slots...)
		day.Slots = append(slots, domain.Slot{AppointmentID: appt.ID, Start: start, End: end})
		return tx.SaveEngineerDay(ctx, day)
	})
	switch {
	case errors.Is(err, errSlotTaken), errors.Is(err, ports.ErrConflict):
		return BookingResult{OK: false, EngineerID: chosen, Reason: ReasonSlotTaken}, nil
	case err != nil:
		return BookingResult{}, datastore("book: commit", err)
	}

	b.publish(ctx, appt)

	return BookingResult{OK: true, AppointmentID: appt.ID, EngineerID: chosen}, nil
}

func (b *BookingCommitter) validate(req BookingRequest) (time.Time, error) {
	c := req.Customer
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone")
	}
	if strings.TrimSpace(req.Address.Postcode) == "" && req.Address.Location == nil {
		missing = append(missing, "postcode")
	}
	if len(missing) > 0 {
		return time.Time{}, invalidf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(c.Email)); err != nil {
		return time.Time{}, invalidf("email %q is not valid", c.Email)
	}

	start, err := b.Policy.ParseSlot(req.Date, req.Time)
	if err != nil {
		return time.Time{}, invalidf("date %q and time %q must be YYYY-MM-DD and HH:MM", req.Date, req.Time)
	}
	p := b.Policy
	if !start.After(b.now()) {
		return time.Time{}, invalidf("slot %s %s is in the past", req.Date, req.Time)
	}
	if !p.Midnight(start).After(p.Midnight(b.now())) {
		return time.Time{}, invalidf("slot %s %s must be on a later day", req.Date, req.Time)
	}
	if p.IsDayOff(start) {
		return time.Time{}, invalidf("%s is not a working day", req.Date)
	}
	if open, closing := p.Window(start); start.Before(open) || start.Add(p.SlotDuration).After(closing) {
		return time.Time{}, invalidf("slot %s %s is outside working hours %s-%s",
			req.Date, req.Time, p.FormatClock(open), p.FormatClock(closing))
	}
	return start, nil
}

// engineerPool is, in order and without duplicates: engineers with an
// engineer-day record in the month, all known engineers, and engineers on
// the month's appointments. Inactive engineers are left out.
func (b *BookingCommitter) engineerPool(ctx context.Context, start time.Time) ([]string, error) {
	p := b.Policy
	first := time.Date(start.In(p.Location).Year(), start.In(p.Location).Month(), 1, 0, 0, 0, 0, p.Location)
	fromDate, toDate := p.FormatDate(first), p.FormatDate(first.AddDate(0, 1, -1))

	days, err := b.Store.ListEngineerDays(ctx, fromDate, toDate)
	if err != nil {
		return nil, datastore("book: list engineer days", err)
	}
	engineers, err := b.Store.ListEngineers(ctx)
	if err != nil {
		return nil, datastore("book: list engineers", err)
	}
	appts, err := b.Store.ListAppointments(ctx, ports.AppointmentFilter{FromDate: fromDate, ToDate: toDate})
	if err != nil {
		return nil, datastore("book: list appointments", err)
	}

	inactive := make(map[string]bool)
	for _, e := range engineers {
		if !e.Active {
			inactive[e.EngineerID] = true
		}
	}

	seen := make(map[string]struct{})
	pool := make([]string, 0, len(engineers))
	add := func(id string) {
		if id == "" || inactive[id] {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		pool = append(pool, id)
	}

	for _, d := range days {
		add(d.EngineerID)
	}
	for _, e := range engineers {
		add(e.EngineerID)
	}
	for _, a := range appts {
		add(a.EngineerID)
	}
	return pool, nil
}

// busyEngineers returns the engineers holding [start, end) on date, either
// through a confirmed/offered appointment or a mirrored slot. An empty
// engineerID checks every engineer.
func busyEngineers(
	ctx context.Context,
	r ports.AppointmentReader,
	date, engineerID string,
	start, end time.Time,
) (map[string]struct{}, error) {
	appts, err := r.ListAppointments(ctx, ports.AppointmentFilter{
		FromDate:   date,
		ToDate:     date,
		EngineerID: engineerID,
		Statuses:   domain.BlockingStatuses,
	})
	if err != nil {
		return nil, err
	}

	busy := make(map[string]struct{})
	for _, a := range appts {
		if a.EngineerID != "" && a.Overlaps(start, end) {
			busy[a.EngineerID] = struct{}{}
		}
	}

	if engineerID != "" {
		d, found, err := r.GetEngineerDay(ctx, engineerID, date)
		if err != nil {
			return nil, err
		}
		if found && d.Busy(start, end) {
			busy[engineerID] = struct{}{}
		}
		return busy, nil
	}

	days, err := r.ListEngineerDays(ctx, date, date)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		if d.Busy(start, end) {
			busy[d.EngineerID] = struct{}{}
		}
	}
	return busy, nil
}

func (b *BookingCommitter) publish(ctx context.Context, a domain.Appointment) {
	if b.Events == nil {
		return
	}
	e := ports.Event{
		Type:          ports.EventAppointmentBooked,
		TenantID:      b.TenantID,
		AppointmentID: a.ID,
		EngineerID:    a.EngineerID,
		Date:          a.Date,
		Start:         a.Start,
		End:           a.End,
		OccurredAt:    b.now().UTC(),
	}
	if err := b.Events.Publish(ctx, e); err != nil {
		obs.Logger.Warn("publish event failed", "req_id", obs.RequestID(ctx), "type", e.Type, "appointment_id", a.ID, "err", err)
	}
}

func (b *BookingCommitter) newID() string {
	if b.NewID == nil {
		return uuid.NewString()
	}
	return b.NewID()
}

func (b *BookingCommitter) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func bookingOutcome(res BookingResult, err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case err != nil:
		return "error"
	case res.OK:
		return "booked"
	case res.Reason == ReasonNoEngineers:
		return "no_engineers"
	case res.Reason == ReasonNoEngineerFree:
		return "no_engineer_free"
	}
	return "slot_taken"
}
