package config

import (
	"os"
	"testing"
)

// unsetenv clears keys for the duration of the test.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetenv(t, "DB_DRIVER", "APP_ENV", "PORT", "APP_TENANT_ID")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || !cfg.IsLocal() || cfg.HTTP.Port != "8080" || cfg.App.TenantID != "default" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadDriver(t *testing.T) {
	tests := []struct {
		driver  string
		url     string
		want    string
		wantErr bool
	}{
		{"SQLite", "", "sqlite", false},
		{"memory", "", "memory", false},
		{"postgres", "postgres://localhost/app", "pgx", false},
		{"pgx", "", "", true},
		{"mysql", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			t.Setenv("DB_DRIVER", tt.driver)
			t.Setenv("DATABASE_URL", tt.url)

			cfg, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.DB.Driver != tt.want {
				t.Fatalf("driver = %q, want %q", cfg.DB.Driver, tt.want)
			}
		})
	}
}

func TestGet(t *testing.T) {
	t.Setenv("SCHEDULER_TEST_KEY", "set")
	if Get("SCHEDULER_TEST_KEY", "fallback") != "set" || Get("SCHEDULER_TEST_UNSET", "fallback") != "fallback" {
		t.Fatalf("Get did not honour the environment")
	}
}
