package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

var day = time.Date(2026, 11, 3, 0, 0, 0, 0, time.UTC)

func appt(id, engineer string, status domain.AppointmentStatus, hour int) domain.Appointment {
	start := day.Add(time.Duration(hour) * time.Hour)
	return domain.Appointment{
		ID:         id,
		Status:     status,
		EngineerID: engineer,
		Date:       "2026-11-03",
		Start:      start,
		End:        start.Add(time.Hour),
		Customer:   domain.Customer{Name: "C", Email: "c@example.com", Phone: "1"},
		Address:    domain.Address{Postcode: "EC1A 1BB", Location: &domain.Coordinates{Lat: 51.52, Lng: -0.1}},
		CreatedAt:  day,
	}
}

func seedData() SeedData {
	return SeedData{
		Engineers: []domain.Engineer{
			{EngineerID: "e2", Name: "Bea", Active: true},
			{EngineerID: "e1", Name: "Al", Active: true, BaseLocation: &domain.Coordinates{Lat: 51.5, Lng: -0.12}},
		},
		EngineerDays: []domain.EngineerDay{
			{EngineerID: "e1", Date: "2026-11-03", WorkStart: "09:00", WorkEnd: "17:00",
				Slots: []domain.Slot{{AppointmentID: "a1", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)}}},
			{EngineerID: "e2", Date: "2026-11-20"},
		},
		Appointments: []domain.Appointment{
			appt("a2", "e1", domain.StatusConfirmed, 13),
			appt("a1", "e1", domain.StatusPending, 9),
			appt("a3", "e2", domain.StatusCancelled, 9),
			appt("a4", "e2", domain.StatusOffered, 11),
		},
	}
}

// storeContract runs the same reader and writer checks against any store.
func storeContract(t *testing.T, s interface {
	ports.AppointmentStore
	Seeder
}) {
	t.Helper()
	ctx := context.Background()

	if err := s.Seed(ctx, seedData()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	engineers, err := s.ListEngineers(ctx)
	if err != nil {
		t.Fatalf("ListEngineers: %v", err)
	}
	if len(engineers) != 2 || engineers[0].EngineerID != "e1" || engineers[0].BaseLocation == nil || !engineers[1].Active {
		t.Fatalf("engineers = %+v", engineers)
	}

	all, err := s.ListAppointments(ctx, ports.AppointmentFilter{FromDate: "2026-11-03", ToDate: "2026-11-03"})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if len(all) != 4 || all[0].ID != "a1" || all[1].ID != "a3" || all[3].ID != "a2" {
		t.Fatalf("appointments not ordered by start then id: %v", ids(all))
	}
	if !all[0].Start.Equal(day.Add(9*time.Hour)) || all[0].Address.Location == nil || all[0].Customer.Email != "c@example.com" {
		t.Fatalf("appointment fields lost: %+v", all[0])
	}

	blocking, err := s.ListAppointments(ctx, ports.AppointmentFilter{Statuses: domain.BlockingStatuses})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if got := ids(blocking); len(got) != 2 || got[0] != "a4" || got[1] != "a2" {
		t.Fatalf("blocking = %v", got)
	}

	e2, err := s.ListAppointments(ctx, ports.AppointmentFilter{EngineerID: "e2", Statuses: []domain.AppointmentStatus{domain.StatusOffered}})
	if err != nil {
		t.Fatalf("ListAppointments: %v", err)
	}
	if got := ids(e2); len(got) != 1 || got[0] != "a4" {
		t.Fatalf("e2 offered = %v", got)
	}

	none, err := s.ListAppointments(ctx, ports.AppointmentFilter{FromDate: "2026-11-04", ToDate: "2026-11-30"})
	if err != nil || len(none) != 0 {
		t.Fatalf("out of range = %v, %v", ids(none), err)
	}

	days, err := s.ListEngineerDays(ctx, "2026-11-01", "2026-11-30")
	if err != nil {
		t.Fatalf("ListEngineerDays: %v", err)
	}
	if len(days) != 2 || days[0].EngineerID != "e1" || len(days[0].Slots) != 1 || days[0].WorkStart != "09:00" {
		t.Fatalf("days = %+v", days)
	}

	d, found, err := s.GetEngineerDay(ctx, "e1", "2026-11-04")
	if err != nil || found {
		t.Fatalf("GetEngineerDay missing = %+v, %v, %v", d, found, err)
	}

	newStart := day.Add(14 * time.Hour)
	err = s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.InsertAppointment(ctx, appt("a5", "e2", domain.StatusPending, 15)); err != nil {
			return err
		}
		if err := tx.UpdateAppointmentTimes(ctx, "a2", newStart, newStart.Add(90*time.Minute), "2026-11-03"); err != nil {
			return err
		}
		d, _, err := tx.GetEngineerDay(ctx, "e1", "2026-11-03")
		if err != nil {
			return err
		}
		d.Slots = append(d.Slots, domain.Slot{AppointmentID: "a2", Start: newStart, End: newStart.Add(90 * time.Minute)})
		return tx.SaveEngineerDay(ctx, d)
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	all, _ = s.ListAppointments(ctx, ports.AppointmentFilter{})
	if len(all) != 5 {
		t.Fatalf("got %d appointments after insert, want 5", len(all))
	}
	for _, a := range all {
		if a.ID == "a2" && (!a.Start.Equal(newStart) || a.Duration() != 90*time.Minute) {
			t.Fatalf("a2 = %v-%v", a.Start, a.End)
		}
	}
	d, found, err = s.GetEngineerDay(ctx, "e1", "2026-11-03")
	if err != nil || !found || len(d.Slots) != 2 || d.WorkEnd != "17:00" {
		t.Fatalf("engineer day after save = %+v, %v, %v", d, found, err)
	}

	// A failed transaction leaves nothing behind.
	boom := errors.New("boom")
	err = s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		if err := tx.InsertAppointment(ctx, appt("a6", "e2", domain.StatusPending, 16)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx err = %v, want boom", err)
	}
	all, _ = s.ListAppointments(ctx, ports.AppointmentFilter{})
	if len(all) != 5 {
		t.Fatalf("rolled back insert is visible: %v", ids(all))
	}

	err = s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		return tx.UpdateAppointmentTimes(ctx, "missing", newStart, newStart.Add(time.Hour), "2026-11-03")
	})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("update missing err = %v, want ErrNotFound", err)
	}
}

func ids(appts []domain.Appointment) []string {
	out := make([]string, len(appts))
	for i, a := range appts {
		out[i] = a.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Seed(context.Background(), seedData()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	d, _, _ := s.GetEngineerDay(context.Background(), "e1", "2026-11-03")
	d.Slots[0].AppointmentID = "mutated"

	again, _, _ := s.GetEngineerDay(context.Background(), "e1", "2026-11-03")
	if again.Slots[0].AppointmentID != "a1" {
		t.Fatalf("caller mutation leaked into the store")
	}
}

func TestMemoryStoreConflictAfterRetries(t *testing.T) {
	s := NewMemoryStore()
	s.MaxAttempts = 3
	ctx := context.Background()

	calls := 0
	err := s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		calls++
		// Commit a competing write every time so the outer one never wins.
		if err := s.Seed(ctx, SeedData{Engineers: []domain.Engineer{{EngineerID: "x", Active: true}}}); err != nil {
			return err
		}
		return tx.SaveEngineerDay(ctx, domain.EngineerDay{EngineerID: "e1", Date: "2026-11-03"})
	})
	if !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if calls != 3 {
		t.Fatalf("fn ran %d times, want 3", calls)
	}
	if _, found, _ := s.GetEngineerDay(ctx, "e1", "2026-11-03"); found {
		t.Fatalf("conflicting write was applied")
	}
}
