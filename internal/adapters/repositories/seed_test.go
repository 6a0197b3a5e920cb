package repositories

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
)

const seedJSON = `{
  "engineers": [
    {"engineer_id": "e1", "name": "Al", "base_location": {"lat": 51.5, "lng": -0.12}},
    {"engineer_id": "e2", "name": "Bea", "active": false}
  ],
  "engineer_days": [
    {"engineer_id": "e1", "date": "2026-11-03", "work_start": "09:00", "work_end": "16:00"}
  ],
  "appointments": [
    {"id": "a1", "status": "confirmed", "engineer_id": "e1", "date": "2026-11-03", "time": "09:30",
     "name": "C", "email": "c@example.com", "phone": "1", "postcode": "EC1A 1BB",
     "location": {"lat": 51.52, "lng": -0.1}},
    {"id": "a2", "status": "pending", "engineer_id": "e1", "date": "2026-11-03", "time": "13:00", "minutes": 90}
  ]
}`

func TestParseSeed(t *testing.T) {
	policy := config.DefaultPolicy()

	data, err := ParseSeed([]byte(seedJSON), policy)
	if err != nil {
		t.Fatalf("ParseSeed: %v", err)
	}

	if len(data.Engineers) != 2 || !data.Engineers[0].Active || data.Engineers[1].Active {
		t.Fatalf("engineers = %+v", data.Engineers)
	}
	if data.Engineers[0].BaseLocation == nil || data.Engineers[1].BaseLocation != nil {
		t.Fatalf("base locations = %+v", data.Engineers)
	}
	if len(data.EngineerDays) != 1 || data.EngineerDays[0].WorkEnd != "16:00" {
		t.Fatalf("engineer days = %+v", data.EngineerDays)
	}

	a1, a2 := data.Appointments[0], data.Appointments[1]
	if a1.Duration() != policy.SlotDuration || a1.Address.Location == nil || a1.Status != domain.StatusConfirmed {
		t.Fatalf("a1 = %+v", a1)
	}
	if policy.FormatClock(a1.Start) != "09:30" || a1.Date != "2026-11-03" {
		t.Fatalf("a1 start = %v", a1.Start)
	}
	if a2.Duration() != 90*time.Minute || a2.Address.Location != nil {
		t.Fatalf("a2 = %+v", a2)
	}
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"bad json", `{`, "parse json"},
		{"empty engineer id", `{"engineers":[{"name":"x"}]}`, "engineer_id cannot be empty"},
		{"bad day date", `{"engineer_days":[{"engineer_id":"e1","date":"03/11"}]}`, "engineer day at index 1"},
		{"bad appointment time", `{"appointments":[{"id":"a","status":"pending","date":"2026-11-03","time":"9"}]}`, "appointment at index 1"},
		{"bad status", `{"appointments":[{"id":"a","status":"lost","date":"2026-11-03","time":"09:00"}]}`, "invalid status"},
		{"missing id", `{"appointments":[{"status":"pending","date":"2026-11-03","time":"09:00"}]}`, "id must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.json), config.DefaultPolicy())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestSeedFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(seedJSON), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	s := NewMemoryStore()
	if err := SeedFromJSON(context.Background(), s, path, config.DefaultPolicy()); err != nil {
		t.Fatalf("SeedFromJSON: %v", err)
	}
	engineers, _ := s.ListEngineers(context.Background())
	if len(engineers) != 2 {
		t.Fatalf("got %d engineers", len(engineers))
	}

	if err := SeedFromJSON(context.Background(), s, filepath.Join(t.TempDir(), "missing.json"), config.DefaultPolicy()); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}

func TestDemoSeedParses(t *testing.T) {
	b, err := os.ReadFile(filepath.Join("..", "..", "..", "data", "seeds", "demo.json"))
	if err != nil {
		t.Fatalf("read demo seed: %v", err)
	}
	if _, err := ParseSeed(b, config.DefaultPolicy()); err != nil {
		t.Fatalf("ParseSeed demo: %v", err)
	}
}
