package repositories

import (
	"sort"

	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/ports"
)

func matches(f ports.AppointmentFilter, a domain.Appointment) bool {
	if f.FromDate != "" && a.Date < f.FromDate {
		return false
	}
	if f.ToDate != "" && a.Date > f.ToDate {
		return false
	}
	if f.EngineerID != "" && a.EngineerID != f.EngineerID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

func sortAppointments(appts []domain.Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if !appts[i].Start.Equal(appts[j].Start) {
			return appts[i].Start.Before(appts[j].Start)
		}
		return appts[i].ID < appts[j].ID
	})
}

func statusStrings(statuses []domain.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func dayKey(engineerID, date string) string { return engineerID + "|" + date }
