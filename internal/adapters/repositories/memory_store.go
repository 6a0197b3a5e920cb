package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

type memoryData struct {
	engineers map[string]domain.Engineer
	appts     map[string]domain.Appointment
	days      map[string]domain.EngineerDay
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		engineers: make(map[string]domain.Engineer, len(d.engineers)),
		appts:     make(map[string]domain.Appointment, len(d.appts)),
		days:      make(map[string]domain.EngineerDay, len(d.days)),
	}
	for k, v := range d.engineers {
		out.engineers[k] = v
	}
	for k, v := range d.appts {
		out.appts[k] = v
	}
	for k, v := range d.days {
		out.days[k] = v
	}
	return out
}

// MemoryStore is an in-process AppointmentStore for local runs and tests.
//
// A transaction works on a private copy taken at its start and is swapped
// in on commit only if no other transaction committed in between;
// otherwise it is retried, and ErrConflict is returned once the retry
// budget is spent.
type MemoryStore struct {
	mu      sync.RWMutex
	version uint64
	data    memoryData

	MaxAttempts int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memoryData{
			engineers: map[string]domain.Engineer{},
			appts:     map[string]domain.Appointment{},
			days:      map[string]domain.EngineerDay{},
		},
		MaxAttempts: 8,
	}
}

func (s *MemoryStore) ListEngineers(ctx context.Context) ([]domain.Engineer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryReader{s.data}.ListEngineers(ctx)
}

func (s *MemoryStore) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryReader{s.data}.ListAppointments(ctx, f)
}

func (s *MemoryStore) ListEngineerDays(ctx context.Context, fromDate, toDate string) ([]domain.EngineerDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryReader{s.data}.ListEngineerDays(ctx, fromDate, toDate)
}

func (s *MemoryStore) GetEngineerDay(ctx context.Context, engineerID, date string) (domain.EngineerDay, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memoryReader{s.data}.GetEngineerDay(ctx, engineerID, date)
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := time.Millisecond

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.RLock()
		snapshot := s.data.clone()
		version := s.version
		s.mu.RUnlock()

		tx := &memoryTx{memoryReader: memoryReader{snapshot}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if !tx.dirty {
			return nil
		}

		s.mu.Lock()
		if s.version == version {
			s.data = tx.data
			s.version++
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return fmt.Errorf("memory store: %w after %d attempts", ports.ErrConflict, attempts)
}

func (s *MemoryStore) Seed(ctx context.Context, data SeedData) error {
	return s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		mt := tx.(*memoryTx)
		for _, e := range data.Engineers {
			mt.data.engineers[e.EngineerID] = e
		}
		for _, d := range data.EngineerDays {
			if err := mt.SaveEngineerDay(ctx, d); err != nil {
				return err
			}
		}
		for _, a := range data.Appointments {
			mt.data.appts[a.ID] = a
		}
		mt.dirty = true
		return nil
	})
}

type memoryReader struct {
	data memoryData
}

func (r memoryReader) ListEngineers(ctx context.Context) ([]domain.Engineer, error) {
	out := make([]domain.Engineer, 0, len(r.data.engineers))
	for _, e := range r.data.engineers {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EngineerID < out[j].EngineerID })
	return out, nil
}

func (r memoryReader) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]domain.Appointment, error) {
	out := make([]domain.Appointment, 0)
	for _, a := range r.data.appts {
		if matches(f, a) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r memoryReader) ListEngineerDays(ctx context.Context, fromDate, toDate string) ([]domain.EngineerDay, error) {
	out := make([]domain.EngineerDay, 0)
	for _, d := range r.data.days {
		if d.Date < fromDate || d.Date > toDate {
			continue
		}
		out = append(out, copyDay(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].EngineerID < out[j].EngineerID
	})
	return out, nil
}

func (r memoryReader) GetEngineerDay(ctx context.Context, engineerID, date string) (domain.EngineerDay, bool, error) {
	d, ok := r.data.days[dayKey(engineerID, date)]
	if !ok {
		return domain.EngineerDay{}, false, nil
	}
	return copyDay(d), true, nil
}

type memoryTx struct {
	memoryReader
	dirty bool
}

func (t *memoryTx) InsertAppointment(ctx context.Context, a domain.Appointment) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	if _, exists := t.data.appts[a.ID]; exists {
		return fmt.Errorf("insert appointment: id %s already exists", a.ID)
	}
	t.data.appts[a.ID] = a
	t.dirty = true
	return nil
}

func (t *memoryTx) UpdateAppointmentTimes(ctx context.Context, id string, start, end time.Time, date string) error {
	a, ok := t.data.appts[id]
	if !ok {
		return fmt.Errorf("update appointment %s: %w", id, ports.ErrNotFound)
	}
	a.Start, a.End, a.Date = start, end, date
	if err := a.Validate(); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	t.data.appts[id] = a
	t.dirty = true
	return nil
}

func (t *memoryTx) SaveEngineerDay(ctx context.Context, d domain.EngineerDay) error {
	if d.EngineerID == "" || d.Date == "" {
		return fmt.Errorf("save engineer day: engineer id and date are required")
	}
	t.data.days[dayKey(d.EngineerID, d.Date)] = copyDay(d)
	t.dirty = true
	return nil
}

func copyDay(d domain.EngineerDay) domain.EngineerDay {
	if d.Slots != nil {
		d.Slots = append([]domain.Slot(nil), d.Slots...)
	}
	return d
}
