package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDev        Environment = "dev"
	EnvStage      Environment = "stage"
	EnvProduction Environment = "production"
)

// Config is the process configuration, read from the environment.
type Config struct {
	App struct {
		Env      Environment `env:"APP_ENV" envDefault:"local"`
		TenantID string      `env:"APP_TENANT_ID" envDefault:"default"`
		LogLevel string      `env:"APP_LOG_LEVEL" envDefault:"info"`
		LogFile  string      `env:"APP_LOG_FILE"`
	}

	HTTP struct {
		Port string `env:"PORT" envDefault:"8080"`
	}

	DB struct {
		// Driver is "sqlite", "pgx" or "memory".
		Driver   string `env:"DB_DRIVER" envDefault:"sqlite"`
		URL      string `env:"DATABASE_URL"`
		Path     string `env:"DB_PATH" envDefault:"data/app.db"`
		SeedPath string `env:"SEED_PATH"`
	}

	ORS struct {
		APIKey        string  `env:"ORS_API_KEY"`
		BaseURL       string  `env:"ORS_BASE_URL" envDefault:"https://api.openrouteservice.org"`
		Profile       string  `env:"ORS_PROFILE" envDefault:"driving-car"`
		Country       string  `env:"ORS_COUNTRY" envDefault:"GB"`
		RatePerSecond float64 `env:"ORS_RATE_PER_SECOND" envDefault:"5"`
	}

	Redis struct {
		URL string `env:"REDIS_URL"`
	}

	RabbitMQ struct {
		Enabled  bool   `env:"RABBITMQ_ENABLED"`
		URL      string `env:"RABBITMQ_URL"`
		Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"scheduling"`
	}

	Cache struct {
		GeocodeSize int `env:"CACHE_GEOCODE_SIZE" envDefault:"4096"`
	}

	PolicyPath string `env:"POLICY_PATH"`
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load config: read .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("load config: parse environment: %w", err)
	}

	cfg.App.Env = Environment(strings.ToLower(string(cfg.App.Env)))
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))

	switch cfg.DB.Driver {
	case "sqlite", "memory":
	case "pgx", "postgres":
		cfg.DB.Driver = "pgx"
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return nil, fmt.Errorf("load config: DATABASE_URL is required for driver %q", cfg.DB.Driver)
		}
	default:
		return nil, fmt.Errorf("load config: unsupported DB_DRIVER %q", cfg.DB.Driver)
	}

	return cfg, nil
}

func (c *Config) IsLocal() bool {
	return c.App.Env == EnvLocal
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
