package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// SQLStore is the AppointmentStore over PostgreSQL (pgx) or SQLite.
// Every row is scoped to the store's tenant.
type SQLStore struct {
	q  *sqlQueries
	db *sqlx.DB

	MaxAttempts int
}

func NewSQLStore(db *sqlx.DB, tenantID string) *SQLStore {
	return &SQLStore{
		q:           &sqlQueries{ext: db, tenant: tenantID},
		db:          db,
		MaxAttempts: 5,
	}
}

func (s *SQLStore) ListEngineers(ctx context.Context) ([]domain.Engineer, error) {
	return s.q.ListEngineers(ctx)
}

func (s *SQLStore) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]domain.Appointment, error) {
	return s.q.ListAppointments(ctx, f)
}

func (s *SQLStore) ListEngineerDays(ctx context.Context, fromDate, toDate string) ([]domain.EngineerDay, error) {
	return s.q.ListEngineerDays(ctx, fromDate, toDate)
}

func (s *SQLStore) GetEngineerDay(ctx context.Context, engineerID, date string) (domain.EngineerDay, bool, error) {
	return s.q.GetEngineerDay(ctx, engineerID, date)
}

// InTx runs fn in a transaction: SERIALIZABLE on PostgreSQL, BEGIN
// IMMEDIATE on SQLite (set through the DSN). Serialization failures and
// busy databases are retried with backoff; ports.ErrConflict is returned
// when the budget runs out.
func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) (err error) {
	defer obs.Time(ctx, "store.InTx")(&err)

	var opts *sql.TxOptions
	if s.db.DriverName() == "pgx" {
		opts = &sql.TxOptions{Isolation: sql.LevelSerializable}
	}

	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := 25 * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = s.runTx(ctx, opts, fn)
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		obs.Logger.Debug("retrying transaction", "req_id", obs.RequestID(ctx), "attempt", attempt, "err", lastErr)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}

	return fmt.Errorf("sql store: %w after %d attempts: %v", ports.ErrConflict, attempts, lastErr)
}

func (s *SQLStore) runTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx ports.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &sqlQueries{ext: tx, tenant: s.q.tenant}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Seed upserts engineers and engineer days; appointments that already
// exist are left as they are.
func (s *SQLStore) Seed(ctx context.Context, data SeedData) error {
	return s.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		q := tx.(*sqlQueries)
		for _, e := range data.Engineers {
			if err := q.upsertEngineer(ctx, e); err != nil {
				return err
			}
		}
		for _, d := range data.EngineerDays {
			if err := q.SaveEngineerDay(ctx, d); err != nil {
				return err
			}
		}
		for _, a := range data.Appointments {
			if err := q.insertAppointment(ctx, a, true); err != nil {
				return err
			}
		}
		return nil
	})
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// sqlQueries runs the reader and writer statements on a DB or a Tx.
type sqlQueries struct {
	ext    sqlx.ExtContext
	tenant string
}

type engineerRow struct {
	EngineerID  string          `db:"engineer_id"`
	Name        string          `db:"name"`
	Active      bool            `db:"active"`
	BaseLat     sql.NullFloat64 `db:"base_lat"`
	BaseLng     sql.NullFloat64 `db:"base_lng"`
	MaxTravelKm float64         `db:"max_travel_km"`
}

type appointmentRow struct {
	ID            string          `db:"appointment_id"`
	Status        string          `db:"status"`
	EngineerID    string          `db:"engineer_id"`
	Date          string          `db:"date"`
	StartAt       string          `db:"start_at"`
	EndAt         string          `db:"end_at"`
	CustomerName  string          `db:"customer_name"`
	CustomerEmail string          `db:"customer_email"`
	CustomerPhone string          `db:"customer_phone"`
	AddressLine   string          `db:"address_line"`
	Postcode      string          `db:"postcode"`
	Lat           sql.NullFloat64 `db:"lat"`
	Lng           sql.NullFloat64 `db:"lng"`
	CreatedAt     string          `db:"created_at"`
}

type engineerDayRow struct {
	EngineerID string          `db:"engineer_id"`
	Date       string          `db:"date"`
	WorkStart  string          `db:"work_start"`
	WorkEnd    string          `db:"work_end"`
	Lat        sql.NullFloat64 `db:"lat"`
	Lng        sql.NullFloat64 `db:"lng"`
	Slots      string          `db:"slots"`
}

const appointmentColumns = `
	appointment_id, status, engineer_id, date, start_at, end_at,
	customer_name, customer_email, customer_phone,
	address_line, postcode, lat, lng, created_at`

const engineerDayColumns = `engineer_id, date, work_start, work_end, lat, lng, slots`

func (q *sqlQueries) ListEngineers(ctx context.Context) ([]domain.Engineer, error) {
	var rows []engineerRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(`
	SELECT engineer_id, name, active, base_lat, base_lng, max_travel_km
	FROM engineers
	WHERE tenant_id = ?
	ORDER BY engineer_id;
	`), q.tenant)
	if err != nil {
		return nil, fmt.Errorf("list engineers: %w", err)
	}

	out := make([]domain.Engineer, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Engineer{
			EngineerID:   r.EngineerID,
			Name:         r.Name,
			Active:       r.Active,
			BaseLocation: nullCoords(r.BaseLat, r.BaseLng),
			MaxTravelKm:  r.MaxTravelKm,
		})
	}
	return out, nil
}

func (q *sqlQueries) ListAppointments(ctx context.Context, f ports.AppointmentFilter) ([]domain.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = ?`
	args := []any{q.tenant}

	if f.FromDate != "" {
		query += ` AND date >= ?`
		args = append(args, f.FromDate)
	}
	if f.ToDate != "" {
		query += ` AND date <= ?`
		args = append(args, f.ToDate)
	}
	if f.EngineerID != "" {
		query += ` AND engineer_id = ?`
		args = append(args, f.EngineerID)
	}
	if len(f.Statuses) > 0 {
		query += ` AND status IN (?)`
		args = append(args, statusStrings(f.Statuses))
	}
	query += ` ORDER BY start_at, appointment_id;`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: expand query: %w", err)
	}

	var rows []appointmentRow
	if err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	out := make([]domain.Appointment, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (q *sqlQueries) ListEngineerDays(ctx context.Context, fromDate, toDate string) ([]domain.EngineerDay, error) {
	var rows []engineerDayRow
	err := sqlx.SelectContext(ctx, q.ext, &rows, q.ext.Rebind(`
	SELECT `+engineerDayColumns+`
	FROM engineer_days
	WHERE tenant_id = ? AND date >= ? AND date <= ?
	ORDER BY date, engineer_id;
	`), q.tenant, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("list engineer days: %w", err)
	}

	out := make([]domain.EngineerDay, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain()
		if err != nil {
			return nil, fmt.Errorf("list engineer days: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (q *sqlQueries) GetEngineerDay(ctx context.Context, engineerID, date string) (domain.EngineerDay, bool, error) {
	var r engineerDayRow
	err := sqlx.GetContext(ctx, q.ext, &r, q.ext.Rebind(`
	SELECT `+engineerDayColumns+`
	FROM engineer_days
	WHERE tenant_id = ? AND engineer_id = ? AND date = ?;
	`), q.tenant, engineerID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EngineerDay{}, false, nil
	}
	if err != nil {
		return domain.EngineerDay{}, false, fmt.Errorf("get engineer day %s/%s: %w", engineerID, date, err)
	}

	d, err := r.toDomain()
	if err != nil {
		return domain.EngineerDay{}, false, fmt.Errorf("get engineer day: %w", err)
	}
	return d, true, nil
}

func (q *sqlQueries) InsertAppointment(ctx context.Context, a domain.Appointment) error {
	return q.insertAppointment(ctx, a, false)
}

func (q *sqlQueries) insertAppointment(ctx context.Context, a domain.Appointment, ignoreExisting bool) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	lat, lng := coordsArgs(a.Address.Location)
	query := `
	INSERT INTO appointments (tenant_id, ` + appointmentColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if ignoreExisting {
		query += `
	ON CONFLICT (tenant_id, appointment_id) DO NOTHING`
	}

	_, err := q.ext.ExecContext(ctx, q.ext.Rebind(query),
		q.tenant, a.ID, string(a.Status), a.EngineerID, a.Date,
		formatTime(a.Start), formatTime(a.End),
		a.Customer.Name, a.Customer.Email, a.Customer.Phone,
		a.Address.Line, a.Address.Postcode, lat, lng,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert appointment %s: %w", a.ID, err)
	}
	return nil
}

func (q *sqlQueries) UpdateAppointmentTimes(ctx context.Context, id string, start, end time.Time, date string) error {
	if !end.After(start) {
		return fmt.Errorf("update appointment %s: end must be after start", id)
	}

	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(`
	UPDATE appointments
	SET start_at = ?, end_at = ?, date = ?
	WHERE tenant_id = ? AND appointment_id = ?;
	`), formatTime(start), formatTime(end), date, q.tenant, id)
	if err != nil {
		return fmt.Errorf("update appointment %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update appointment %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("update appointment %s: %w", id, ports.ErrNotFound)
	}
	return nil
}

func (q *sqlQueries) SaveEngineerDay(ctx context.Context, d domain.EngineerDay) error {
	if d.EngineerID == "" || d.Date == "" {
		return errors.New("save engineer day: engineer id and date are required")
	}

	slots := d.Slots
	if slots == nil {
		slots = []domain.Slot{}
	}
	b, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("save engineer day: encode slots: %w", err)
	}

	lat, lng := coordsArgs(d.Location)
	_, err = q.ext.ExecContext(ctx, q.ext.Rebind(`
	INSERT INTO engineer_days (tenant_id, `+engineerDayColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (tenant_id, engineer_id, date) DO UPDATE
	SET work_start = excluded.work_start,
		work_end = excluded.work_end,
		lat = excluded.lat,
		lng = excluded.lng,
		slots = excluded.slots;
	`), q.tenant, d.EngineerID, d.Date, d.WorkStart, d.WorkEnd, lat, lng, string(b))
	if err != nil {
		return fmt.Errorf("save engineer day %s/%s: %w", d.EngineerID, d.Date, err)
	}
	return nil
}

func (q *sqlQueries) upsertEngineer(ctx context.Context, e domain.Engineer) error {
	lat, lng := coordsArgs(e.BaseLocation)
	_, err := q.ext.ExecContext(ctx, q.ext.Rebind(`
	INSERT INTO engineers (tenant_id, engineer_id, name, active, base_lat, base_lng, max_travel_km)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (tenant_id, engineer_id) DO UPDATE
	SET name = excluded.name,
		active = excluded.active,
		base_lat = excluded.base_lat,
		base_lng = excluded.base_lng,
		max_travel_km = excluded.max_travel_km;
	`), q.tenant, e.EngineerID, e.Name, e.Active, lat, lng, e.MaxTravelKm)
	if err != nil {
		return fmt.Errorf("upsert engineer %s: %w", e.EngineerID, err)
	}
	return nil
}

func (r appointmentRow) toDomain() (domain.Appointment, error) {
	start, err := parseTime(r.StartAt)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s start: %w", r.ID, err)
	}
	end, err := parseTime(r.EndAt)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s end: %w", r.ID, err)
	}
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("appointment %s created_at: %w", r.ID, err)
	}

	return domain.Appointment{
		ID:         r.ID,
		Status:     domain.AppointmentStatus(r.Status),
		EngineerID: r.EngineerID,
		Date:       r.Date,
		Start:      start,
		End:        end,
		Customer: domain.Customer{
			Name:  r.CustomerName,
			Email: r.CustomerEmail,
			Phone: r.CustomerPhone,
		},
		Address: domain.Address{
			Line:     r.AddressLine,
			Postcode: r.Postcode,
			Location: nullCoords(r.Lat, r.Lng),
		},
		CreatedAt: created,
	}, nil
}

func (r engineerDayRow) toDomain() (domain.EngineerDay, error) {
	var slots []domain.Slot
	if r.Slots != "" {
		if err := json.Unmarshal([]byte(r.Slots), &slots); err != nil {
			return domain.EngineerDay{}, fmt.Errorf("engineer day %s/%s slots: %w", r.EngineerID, r.Date, err)
		}
	}
	return domain.EngineerDay{
		EngineerID: r.EngineerID,
		Date:       r.Date,
		WorkStart:  r.WorkStart,
		WorkEnd:    r.WorkEnd,
		Location:   nullCoords(r.Lat, r.Lng),
		Slots:      slots,
	}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

func nullCoords(lat, lng sql.NullFloat64) *domain.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
}

func coordsArgs(c *domain.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}
