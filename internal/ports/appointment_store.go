package ports

import (
	"context"
	"errors"
	"time"

	"field-service-scheduler/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by InTx once the store's own retry budget for
	// conflicting concurrent commits is exhausted.
	ErrConflict = errors.New("transaction conflict")
)

// Selects appointments by calendar day partition. Zero values match all.
type AppointmentFilter struct {
	// Inclusive "2006-01-02" bounds on Appointment.Date.
	FromDate   string
	ToDate     string
	EngineerID string
	Statuses   []domain.AppointmentStatus
}

// Point reads and range queries over the scheduling collections.
// Results are ordered: engineers by id, appointments by start then id,
// engineer days by date then engineer id.
type AppointmentReader interface {
	ListEngineers(ctx context.Context) ([]domain.Engineer, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error)
	// Inclusive date range.
	ListEngineerDays(ctx context.Context, fromDate, toDate string) ([]domain.EngineerDay, error)
	GetEngineerDay(ctx context.Context, engineerID, date string) (domain.EngineerDay, bool, error)
}

type AppointmentWriter interface {
	InsertAppointment(ctx context.Context, a domain.Appointment) error
	// UpdateAppointmentTimes changes only start, end and the derived date.
	UpdateAppointmentTimes(ctx context.Context, id string, start, end time.Time, date string) error
	SaveEngineerDay(ctx context.Context, d domain.EngineerDay) error
}

// A transaction: snapshot reads plus writes that commit atomically.
// All reads must happen before the first write.
type Tx interface {
	AppointmentReader
	AppointmentWriter
}

// The datastore boundary. Writes only happen inside InTx; fn may be invoked
// more than once when the store retries a conflicting commit, so it must not
// have side effects outside tx.
type AppointmentStore interface {
	AppointmentReader
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
