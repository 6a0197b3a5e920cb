package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"field-service-scheduler/internal/adapters/repositories"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

func newCommitter(store ports.AppointmentStore, events ports.EventPublisher) *BookingCommitter {
	b := NewBookingCommitter(store, nil, events, testPolicy, "tenant-a")
	b.Now = fixedNow
	var n atomic.Int64
	b.NewID = func() string { return fmt.Sprintf("appt-%d", n.Add(1)) }
	return b
}

func bookingRequest(date, clock string) BookingRequest {
	return BookingRequest{
		Date: date,
		Time: clock,
		Customer: domain.Customer{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
			Phone: "020 7946 0000",
		},
		Address: domain.Address{Line: "1 Wood St", Postcode: "EC2V 7AN", Location: &customer},
	}
}

func TestBookWritesPendingAppointmentAndSlot(t *testing.T) {
	store := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
	events := &recordingPublisher{}
	b := newCommitter(store, events)

	res, err := b.Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !res.OK || res.AppointmentID != "appt-1" || res.EngineerID != "e1" {
		t.Fatalf("result = %+v", res)
	}

	appts, err := store.ListAppointments(context.Background(), ports.AppointmentFilter{})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(appts) != 1 {
		t.Fatalf("got %d appointments, want 1", len(appts))
	}
	a := appts[0]
	if a.Status != domain.StatusPending || a.Date != "2026-11-03" {
		t.Fatalf("appointment = %+v", a)
	}
	if !a.Start.Equal(at(t, "2026-11-03", "10:00")) || a.Duration() != testPolicy.SlotDuration {
		t.Fatalf("appointment window = %v-%v", a.Start, a.End)
	}
	if a.Customer.Email != "ada@example.com" || a.Address.Location == nil {
		t.Fatalf("customer details not stored: %+v", a)
	}

	day, found, err := store.GetEngineerDay(context.Background(), "e1", "2026-11-03")
	if err != nil || !found {
		t.Fatalf("GetEngineerDay: found=%v err=%v", found, err)
	}
	if len(day.Slots) != 1 || day.Slots[0].AppointmentID != "appt-1" || !day.Slots[0].Start.Equal(a.Start) {
		t.Fatalf("slots = %+v", day.Slots)
	}

	if len(events.events) != 1 || events.events[0].Type != ports.EventAppointmentBooked || events.events[0].TenantID != "tenant-a" {
		t.Fatalf("events = %+v", events.events)
	}
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*BookingRequest)
	}{
		{"missing name", func(r *BookingRequest) { r.Customer.Name = " " }},
		{"missing email", func(r *BookingRequest) { r.Customer.Email = "" }},
		{"missing phone", func(r *BookingRequest) { r.Customer.Phone = "" }},
		{"missing address", func(r *BookingRequest) { r.Address.Postcode, r.Address.Location = "", nil }},
		{"bad email", func(r *BookingRequest) { r.Customer.Email = "not-an-email" }},
		{"bad date", func(r *BookingRequest) { r.Date = "03/11/2026" }},
		{"bad time", func(r *BookingRequest) { r.Time = "10am" }},
		{"past slot", func(r *BookingRequest) { r.Date = "2026-10-01" }},
		{"later today", func(r *BookingRequest) { r.Date, r.Time = "2026-10-15", "15:00" }},
		{"day off", func(r *BookingRequest) { r.Date = "2026-11-01" }},
		{"before opening", func(r *BookingRequest) { r.Time = "07:30" }},
		{"runs past closing", func(r *BookingRequest) { r.Time = "17:30" }},
		{"postcode without geocoder", func(r *BookingRequest) { r.Address.Location = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
			req := bookingRequest("2026-11-03", "10:00")
			tt.mut(&req)

			_, err := newCommitter(store, nil).Book(context.Background(), req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			appts, _ := store.ListAppointments(context.Background(), ports.AppointmentFilter{})
			if len(appts) != 0 {
				t.Fatalf("invalid request wrote %d appointments", len(appts))
			}
		})
	}
}

func TestBookAcceptsWorkingWindowEdges(t *testing.T) {
	for _, clock := range []string{"08:00", "17:00"} {
		t.Run(clock, func(t *testing.T) {
			store := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
			res, err := newCommitter(store, nil).Book(context.Background(), bookingRequest("2026-10-16", clock))
			if err != nil {
				t.Fatalf("Book: %v", err)
			}
			if !res.OK {
				t.Fatalf("result = %+v", res)
			}
		})
	}
}

func TestBookNoEngineers(t *testing.T) {
	store := newStore(t, repositories.SeedData{})

	res, err := newCommitter(store, nil).Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.OK || res.Reason != ReasonNoEngineers {
		t.Fatalf("result = %+v", res)
	}
}

func TestBookNoEngineerFreeWritesNothing(t *testing.T) {
	store := newStore(t, repositories.SeedData{
		Engineers: []domain.Engineer{engineer("e1"), engineer("e2"), {EngineerID: "e3"}},
		Appointments: []domain.Appointment{
			appointment(t, "a1", "e1", "2026-11-03", "09:30", 60, nearAnchor),
			appointment(t, "a2", "e2", "2026-11-03", "10:45", 60, nearAnchor),
		},
	})

	res, err := newCommitter(store, nil).Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if res.OK || res.Reason != ReasonNoEngineerFree {
		t.Fatalf("result = %+v", res)
	}

	appts, _ := store.ListAppointments(context.Background(), ports.AppointmentFilter{})
	if len(appts) != 2 {
		t.Fatalf("got %d appointments, want the 2 seeded", len(appts))
	}
	days, _ := store.ListEngineerDays(context.Background(), "2026-11-01", "2026-11-30")
	if len(days) != 0 {
		t.Fatalf("engineer days written: %+v", days)
	}
}

func TestBookPendingBookingHoldsTheSlot(t *testing.T) {
	store := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
	b := newCommitter(store, nil)

	first, err := b.Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil || !first.OK {
		t.Fatalf("first booking: %+v, %v", first, err)
	}

	second, err := b.Book(context.Background(), bookingRequest("2026-11-03", "10:30"))
	if err != nil {
		t.Fatalf("second booking: %v", err)
	}
	if second.OK || second.Reason != ReasonNoEngineerFree {
		t.Fatalf("second booking = %+v", second)
	}

	third, err := b.Book(context.Background(), bookingRequest("2026-11-03", "11:00"))
	if err != nil || !third.OK {
		t.Fatalf("adjacent booking: %+v, %v", third, err)
	}
}

func TestBookPoolPrefersEngineersWorkingThatMonth(t *testing.T) {
	store := newStore(t, repositories.SeedData{
		Engineers:    []domain.Engineer{engineer("e1"), engineer("e2")},
		EngineerDays: []domain.EngineerDay{{EngineerID: "e2", Date: "2026-11-20"}},
	})

	res, err := newCommitter(store, nil).Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !res.OK || res.EngineerID != "e2" {
		t.Fatalf("result = %+v, want e2", res)
	}
}

func TestBookFallsThroughToNextFreeEngineer(t *testing.T) {
	store := newStore(t, repositories.SeedData{
		Engineers: []domain.Engineer{engineer("e1"), engineer("e2")},
		Appointments: []domain.Appointment{
			appointment(t, "a1", "e1", "2026-11-03", "10:00", 60, nearAnchor),
		},
	})

	res, err := newCommitter(store, nil).Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if !res.OK || res.EngineerID != "e2" {
		t.Fatalf("result = %+v, want e2", res)
	}
}

// gatedStore holds every transaction until n of them are waiting, so all
// callers pass the pre-check before any of them commits.
type gatedStore struct {
	ports.AppointmentStore
	ready sync.WaitGroup
}

func (g *gatedStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	g.ready.Done()
	g.ready.Wait()
	return g.AppointmentStore.InTx(ctx, fn)
}

func TestBookConcurrentRequestsForTheLastSlot(t *testing.T) {
	const n = 10
	inner := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
	store := &gatedStore{AppointmentStore: inner}
	store.ready.Add(n)
	b := newCommitter(store, nil)

	results := make([]BookingResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = b.Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
		}(i)
	}
	wg.Wait()

	booked := 0
	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("booking %d: %v", i, errs[i])
		}
		switch {
		case res.OK:
			booked++
		case res.Reason != ReasonSlotTaken:
			t.Fatalf("booking %d = %+v, want %q", i, res, ReasonSlotTaken)
		}
	}
	if booked != 1 {
		t.Fatalf("%d bookings succeeded, want exactly 1", booked)
	}

	appts, _ := inner.ListAppointments(context.Background(), ports.AppointmentFilter{})
	if len(appts) != 1 {
		t.Fatalf("got %d appointments, want 1", len(appts))
	}
	day, _, _ := inner.GetEngineerDay(context.Background(), "e1", "2026-11-03")
	if len(day.Slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(day.Slots))
	}
}

func TestBookPublishFailureDoesNotFailBooking(t *testing.T) {
	store := newStore(t, repositories.SeedData{Engineers: []domain.Engineer{engineer("e1")}})
	events := &recordingPublisher{err: errors.New("broker down")}

	res, err := newCommitter(store, events).Book(context.Background(), bookingRequest("2026-11-03", "10:00"))
	if err != nil || !res.OK {
		t.Fatalf("Book = %+v, %v", res, err)
	}
}
