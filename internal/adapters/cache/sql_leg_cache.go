package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"

	"github.com/jmoiron/sqlx"
)

// SQLLegCache caches directed legs keyed by rounded coordinate pairs.
type SQLLegCache struct {
	DB *sqlx.DB
}

func NewSQLLegCache(db *sqlx.DB) *SQLLegCache {
	return &SQLLegCache{DB: db}
}

// Fetch cached legs. Rows are selected by origin and then filtered to the
// exact pairs asked for.
func (s *SQLLegCache) GetMany(
	ctx context.Context,
	keys []ports.LegKey,
) (_ map[ports.LegKey]domain.Leg, err error) {
	defer obs.Time(ctx, "leg.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}

	want := make(map[ports.LegKey]struct{}, len(keys))
	origins := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.TrimSpace(k.Origin) == "" || strings.TrimSpace(k.Destination) == "" {
			continue
		}
		if _, ok := want[k]; ok {
			continue
		}
		want[k] = struct{}{}
		origins = append(origins, k.Origin)
	}

	if len(want) == 0 {
		return map[ports.LegKey]domain.Leg{}, nil
	}

	q, args, err := sqlx.In(`
	SELECT origin, destination, distance_meters, duration_seconds
	FROM distance_cache
	WHERE origin IN (?);
	`, uniqueKeys(origins))
	if err != nil {
		return nil, fmt.Errorf("get leg cache: expand query: %w", err)
	}

	var rows []struct {
		Origin          string `db:"origin"`
		Destination     string `db:"destination"`
		DistanceMeters  int    `db:"distance_meters"`
		DurationSeconds int    `db:"duration_seconds"`
	}
	if err := s.DB.SelectContext(ctx, &rows, s.DB.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("get leg cache: query distance_cache table: %w", err)
	}

	out := make(map[ports.LegKey]domain.Leg, len(want))
	for _, r := range rows {
		k := ports.LegKey{Origin: r.Origin, Destination: r.Destination}
		if _, ok := want[k]; !ok {
			continue
		}
		out[k] = domain.Leg{DistanceMeters: r.DistanceMeters, DurationSeconds: r.DurationSeconds}
	}
	obs.CacheLookups.WithLabelValues("sql_legs", "hit").Add(float64(len(out)))
	obs.CacheLookups.WithLabelValues("sql_legs", "miss").Add(float64(len(want) - len(out)))

	return out, nil
}

// Store many legs in one transaction.
func (s *SQLLegCache) PutMany(ctx context.Context, legs map[ports.LegKey]domain.Leg) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
	INSERT INTO distance_cache (origin, destination, distance_meters, duration_seconds)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = excluded.distance_meters,
		duration_seconds = excluded.duration_seconds;
	`))
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for k, l := range legs {
		if strings.TrimSpace(k.Origin) == "" || strings.TrimSpace(k.Destination) == "" {
			return fmt.Errorf("insert leg cache: empty key")
		}

		if _, err := stmt.ExecContext(ctx, k.Origin, k.Destination, l.DistanceMeters, l.DurationSeconds); err != nil {
			return fmt.Errorf("insert leg cache %s -> %s: %w", k.Origin, k.Destination, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}

	return nil
}
