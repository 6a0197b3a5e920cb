package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"field-service-scheduler/internal/adapters/cache"
	"field-service-scheduler/internal/adapters/events"
	"field-service-scheduler/internal/adapters/ors"
	"field-service-scheduler/internal/adapters/repositories"
	"field-service-scheduler/internal/api"
	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/platform/db"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
	"field-service-scheduler/internal/services"

	"github.com/jmoiron/sqlx"
)

// main is the application composition root.
// It wires concrete adapters (SQL or memory store, ORS, caches, RabbitMQ)
// behind ports and starts the HTTP server.
func main() {
	if err := run(); err != nil {
		obs.Logger.Fatal("server stopped", "err", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := obs.Init(obs.LogConfig{Level: cfg.App.LogLevel, File: cfg.App.LogFile}); err != nil {
		return err
	}
	obs.RegisterDefault()

	policy := config.DefaultPolicy()
	if cfg.PolicyPath != "" {
		if policy, err = config.LoadPolicy(cfg.PolicyPath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, sqlDB, err := openStore(ctx, cfg, policy)
	if err != nil {
		return err
	}
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	geocoder, directions, cleanup, err := openOracles(ctx, cfg, sqlDB)
	if err != nil {
		return err
	}
	defer cleanup()

	var publisher ports.EventPublisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		rmq, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer rmq.Close()
		publisher = rmq
	}

	router := api.NewRouter(api.Services{
		Offers:   services.NewAvailabilityCalculator(store, geocoder, policy),
		Bookings: services.NewBookingCommitter(store, geocoder, publisher, policy, cfg.App.TenantID),
		Routes:   services.NewRoutePlanner(store, directions, publisher, policy, cfg.App.TenantID),
		Calendar: &services.CalendarService{Store: store, Policy: policy},
	})

	// Timeouts are tuned for cold-cache route previews (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Info("server listening", "addr", srv.Addr, "env", cfg.App.Env, "db", cfg.DB.Driver, "tenant", cfg.App.TenantID)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	obs.Logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

type seedingStore interface {
	ports.AppointmentStore
	repositories.Seeder
}

func openStore(ctx context.Context, cfg *config.Config, policy config.Policy) (ports.AppointmentStore, *sqlx.DB, error) {
	var (
		store seedingStore
		sqlDB *sqlx.DB
	)

	switch cfg.DB.Driver {
	case "memory":
		store = repositories.NewMemoryStore()
	default:
		dsn := cfg.DB.Path
		if cfg.DB.Driver == db.DriverPostgres {
			dsn = cfg.DB.URL
		}

		var err error
		sqlDB, err = db.Open(ctx, cfg.DB.Driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		// Local SQLite runs create their schema on startup; PostgreSQL is
		// prepared with dbtool.
		if cfg.DB.Driver == db.DriverSQLite {
			if err := repositories.InitSchema(ctx, sqlDB); err != nil {
				sqlDB.Close()
				return nil, nil, err
			}
		}
		store = repositories.NewSQLStore(sqlDB, cfg.App.TenantID)
	}

	if cfg.DB.SeedPath != "" {
		if err := repositories.SeedFromJSON(ctx, store, cfg.DB.SeedPath, policy); err != nil {
			if sqlDB != nil {
				sqlDB.Close()
			}
			return nil, nil, fmt.Errorf("seed store: %w", err)
		}
		obs.Logger.Info("store seeded", "path", cfg.DB.SeedPath)
	}

	return store, sqlDB, nil
}

// openOracles builds the geocoder and directions provider. Without an ORS
// key the straight-line mock is used for directions and postcodes cannot be
// geocoded.
func openOracles(ctx context.Context, cfg *config.Config, sqlDB *sqlx.DB) (ports.Geocoder, ports.DirectionsProvider, func(), error) {
	cleanup := func() {}

	if cfg.ORS.APIKey == "" {
		obs.Logger.Warn("ORS_API_KEY is not set, using straight-line directions and no postcode lookup")
		return nil, ors.MockDirectionsProvider{SpeedKmh: 40}, cleanup, nil
	}

	var shared ports.GeocodeCache
	var legs ports.LegCache
	if sqlDB != nil {
		shared = cache.NewSQLGeocodeCache(sqlDB)
		legs = cache.NewSQLLegCache(sqlDB)
	}
	if cfg.Redis.URL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, nil, cleanup, err
		}
		cleanup = func() { _ = client.Close() }
		shared = cache.NewRedisGeocodeCache(client, 30*24*time.Hour)
	}

	geocodes, err := cache.NewTieredGeocodeCache(cfg.Cache.GeocodeSize, shared)
	if err != nil {
		return nil, nil, cleanup, err
	}

	client, err := ors.NewClient(ors.Options{
		APIKey:        cfg.ORS.APIKey,
		BaseURL:       cfg.ORS.BaseURL,
		Profile:       cfg.ORS.Profile,
		Country:       cfg.ORS.Country,
		RatePerSecond: cfg.ORS.RatePerSecond,
		GeocodeCache:  geocodes,
		LegCache:      legs,
	})
	if err != nil {
		return nil, nil, cleanup, err
	}

	return client, client, cleanup, nil
}
