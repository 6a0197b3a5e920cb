package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Statements are portable between SQLite and PostgreSQL. Timestamps are
// stored as fixed-width UTC text so they sort lexically.
var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS engineers (
		tenant_id TEXT NOT NULL,
		engineer_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		base_lat DOUBLE PRECISION,
		base_lng DOUBLE PRECISION,
		max_travel_km DOUBLE PRECISION NOT NULL DEFAULT 0,
		PRIMARY KEY (tenant_id, engineer_id)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS appointments (
		tenant_id TEXT NOT NULL,
		appointment_id TEXT NOT NULL,
		status TEXT NOT NULL,
		engineer_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		start_at TEXT NOT NULL,
		end_at TEXT NOT NULL,
		customer_name TEXT NOT NULL DEFAULT '',
		customer_email TEXT NOT NULL DEFAULT '',
		customer_phone TEXT NOT NULL DEFAULT '',
		address_line TEXT NOT NULL DEFAULT '',
		postcode TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		created_at TEXT NOT NULL,
		PRIMARY KEY (tenant_id, appointment_id)
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_appointments_tenant_date_engineer
	ON appointments(tenant_id, date, engineer_id);
	`,
	`
	CREATE TABLE IF NOT EXISTS engineer_days (
		tenant_id TEXT NOT NULL,
		engineer_id TEXT NOT NULL,
		date TEXT NOT NULL,
		work_start TEXT NOT NULL DEFAULT '',
		work_end TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		slots TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (tenant_id, engineer_id, date)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_distance_cache_destination_origin
	ON distance_cache(destination, origin);
	`,
	`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lng DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`,
}

// InitSchema creates every table and index if missing.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
