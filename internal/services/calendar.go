package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
)

var calendarStatuses = []domain.AppointmentStatus{
	domain.StatusPending,
	domain.StatusOffered,
	domain.StatusConfirmed,
	domain.StatusComplete,
}

type CalendarEntry struct {
	AppointmentID string
	EngineerID    string
	Status        domain.AppointmentStatus
	Start         time.Time
	End           time.Time
	Lane
}

// CalendarService lays out a day's appointments for the calendar views.
type CalendarService struct {
	Store  ports.AppointmentReader
	Policy config.Policy
}

// DayLanes assigns lanes per engineer for one date. Cancelled and
// declined appointments are not shown. Unassigned appointments form their
// own resource with an empty engineer id.
func (cs *CalendarService) DayLanes(ctx context.Context, date, engineerID string) (_ []CalendarEntry, err error) {
	defer obs.Time(ctx, "calendar.DayLanes")(&err)

	day, err := cs.Policy.ParseDay(date)
	if err != nil {
		return nil, invalidf("date %q must be YYYY-MM-DD", date)
	}
	date = cs.Policy.FormatDate(day)

	appts, err := cs.Store.ListAppointments(ctx, ports.AppointmentFilter{
		FromDate:   date,
		ToDate:     date,
		EngineerID: strings.TrimSpace(engineerID),
		Statuses:   calendarStatuses,
	})
	if err != nil {
		return nil, datastore("calendar: list appointments", err)
	}

	byEngineer := make(map[string][]domain.Appointment)
	for _, a := range appts {
		byEngineer[a.EngineerID] = append(byEngineer[a.EngineerID], a)
	}

	out := make([]CalendarEntry, 0, len(appts))
	for eng, list := range byEngineer {
		intervals := make([]Interval, 0, len(list))
		for _, a := range list {
			intervals = append(intervals, Interval{ID: a.ID, Start: a.Start, End: a.End})
		}
		lanes := AssignLanes(intervals)

		for _, a := range list {
			out = append(out, CalendarEntry{
				AppointmentID: a.ID,
				EngineerID:    eng,
				Status:        a.Status,
				Start:         a.Start,
				End:           a.End,
				Lane:          lanes[a.ID],
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.EngineerID != b.EngineerID {
			return a.EngineerID < b.EngineerID
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.AppointmentID < b.AppointmentID
	})

	return out, nil
}
