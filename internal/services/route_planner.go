package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"field-service-scheduler/internal/config"
	"field-service-scheduler/internal/domain"
	"field-service-scheduler/internal/platform/obs"
	"field-service-scheduler/internal/ports"
)

type RouteRequest struct {
	EngineerID string
	Date       string
	// Order is an explicit permutation of the day's appointment ids.
	Order []string
	// Optimize asks for a nearest-neighbour order when Order is empty.
	Optimize bool
}

type RoutePlan struct {
	EngineerID string
	Date       string
	Order      []string
	Steps      []domain.RouteStep
}

// RoutePlanner loads one engineer's day, asks the directions oracle for the
// legs of the requested order and runs Sequence over them. Commit writes
// the recomputed times back.
type RoutePlanner struct {
	Store      ports.AppointmentStore
	Directions ports.DirectionsProvider
	Events     ports.EventPublisher
	Policy     config.Policy
	TenantID   string
	Now        func() time.Time
}

func NewRoutePlanner(
	store ports.AppointmentStore,
	directions ports.DirectionsProvider,
	events ports.EventPublisher,
	policy config.Policy,
	tenantID string,
) *RoutePlanner {
	return &RoutePlanner{
		Store:      store,
		Directions: directions,
		Events:     events,
		Policy:     policy,
		TenantID:   tenantID,
		Now:        time.Now,
	}
}

func (rp *RoutePlanner) Preview(ctx context.Context, req RouteRequest) (_ RoutePlan, err error) {
	defer obs.Time(ctx, "routes.Preview")(&err)

	plan, _, err := rp.plan(ctx, req)
	return plan, err
}

// Commit re-plans the request and persists the new start and end of every
// moved appointment in one transaction. Identity, customer, address and
// status are left untouched.
func (rp *RoutePlanner) Commit(ctx context.Context, req RouteRequest) (_ RoutePlan, err error) {
	defer obs.Time(ctx, "routes.Commit")(&err)

	plan, ids, err := rp.plan(ctx, req)
	if err != nil {
		return RoutePlan{}, err
	}

	changed := make([]domain.RouteStep, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		if s.Kind != domain.StepAppointment || !s.Changed {
			continue
		}
		if d := rp.Policy.FormatDate(s.Start); d != plan.Date {
			return RoutePlan{}, invalidf("appointment %s would move to %s, routes must stay within %s",
				s.AppointmentID, d, plan.Date)
		}
		changed = append(changed, s)
	}
	if len(changed) == 0 {
		return plan, nil
	}

	err = rp.Store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
		current, err := tx.ListAppointments(ctx, ports.AppointmentFilter{
			FromDate:   plan.Date,
			ToDate:     plan.Date,
			EngineerID: plan.EngineerID,
			Statuses:   domain.ActiveStatuses,
		})
		if err != nil {
			return err
		}
		if !sameIDs(current, ids) {
			return fmt.Errorf("%w: appointments for %s on %s changed, preview again",
				ports.ErrConflict, plan.EngineerID, plan.Date)
		}

		day, found, err := tx.GetEngineerDay(ctx, plan.EngineerID, plan.Date)
		if err != nil {
			return err
		}

		for _, s := range changed {
			if err := tx.UpdateAppointmentTimes(ctx, s.AppointmentID, s.Start, s.End, plan.Date); err != nil {
				return err
			}
		}

		if !found {
			return nil
		}
		moved := make(map[string]domain.RouteStep, len(changed))
		for _, s := range changed {
			moved[s.AppointmentID] = s
		}
		slots := make([]domain.Slot, 0, len(day.Slots))
		for _, sl := range day.Slots {
			if s, ok := moved[sl.AppointmentID]; ok {
				sl.Start, sl.End = s.Start, s.End
			}
			slots = append(slots, sl)
		}
		day.Slots = slots
		return tx.SaveEngineerDay(ctx, day)
	})
	if err != nil {
		return RoutePlan{}, datastore("routes: commit", err)
	}

	for _, s := range changed {
		rp.publish(ctx, plan, s)
	}

	return plan, nil
}

// plan returns the computed plan and the ids of the day's appointments.
func (rp *RoutePlanner) plan(ctx context.Context, req RouteRequest) (RoutePlan, []string, error) {
	engineerID := strings.TrimSpace(req.EngineerID)
	if engineerID == "" {
		return RoutePlan{}, nil, invalidf("engineer_id is required")
	}
	day, err := rp.Policy.ParseDay(req.Date)
	if err != nil {
		return RoutePlan{}, nil, invalidf("date %q must be YYYY-MM-DD", req.Date)
	}
	date := rp.Policy.FormatDate(day)

	engineers, err := rp.Store.ListEngineers(ctx)
	if err != nil {
		return RoutePlan{}, nil, datastore("routes: list engineers", err)
	}
	var eng *domain.Engineer
	for i := range engineers {
		if engineers[i].EngineerID == engineerID {
			eng = &engineers[i]
			break
		}
	}
	if eng == nil {
		return RoutePlan{}, nil, invalidf("unknown engineer %q", engineerID)
	}

	appts, err := rp.Store.ListAppointments(ctx, ports.AppointmentFilter{
		FromDate:   date,
		ToDate:     date,
		EngineerID: engineerID,
		Statuses:   domain.ActiveStatuses,
	})
	if err != nil {
		return RoutePlan{}, nil, datastore("routes: list appointments", err)
	}
	sort.SliceStable(appts, func(i, j int) bool { return earlier(appts[i], appts[j]) })

	ids := make([]string, len(appts))
	for i, a := range appts {
		ids[i] = a.ID
	}

	plan := RoutePlan{EngineerID: engineerID, Date: date, Order: []string{}, Steps: []domain.RouteStep{}}
	if len(appts) == 0 {
		if len(req.Order) > 0 {
			return RoutePlan{}, nil, invalidf("order must be a permutation of the day's appointments")
		}
		return plan, ids, nil
	}

	for _, a := range appts {
		if a.Address.Location == nil {
			return RoutePlan{}, nil, invalidf("appointment %s has no location", a.ID)
		}
	}

	depot := rp.Policy.Office
	if eng.BaseLocation != nil {
		depot = *eng.BaseLocation
	}

	ordered := appts
	switch {
	case len(req.Order) > 0:
		ordered, err = applyOrder(appts, req.Order)
		if err != nil {
			return RoutePlan{}, nil, err
		}
	case req.Optimize:
		ordered = NearestNeighborOrder(depot, appts)
	}

	waypoints := make([]domain.Coordinates, 0, len(ordered)+2)
	waypoints = append(waypoints, depot)
	for _, a := range ordered {
		waypoints = append(waypoints, *a.Address.Location)
	}
	waypoints = append(waypoints, depot)

	legs, err := rp.Directions.Directions(ctx, waypoints)
	if err != nil {
		return RoutePlan{}, nil, upstream("routes: directions", err)
	}

	steps, err := Sequence(ordered, legs)
	if err != nil {
		return RoutePlan{}, nil, upstream("routes: sequence", err)
	}

	plan.Steps = steps
	for _, a := range ordered {
		plan.Order = append(plan.Order, a.ID)
	}
	return plan, ids, nil
}

func applyOrder(appts []domain.Appointment, order []string) ([]domain.Appointment, error) {
	if len(order) != len(appts) {
		return nil, invalidf("order has %d ids, the day has %d appointments", len(order), len(appts))
	}
	byID := make(map[string]domain.Appointment, len(appts))
	for _, a := range appts {
		byID[a.ID] = a
	}

	out := make([]domain.Appointment, 0, len(order))
	for _, id := range order {
		a, ok := byID[id]
		if !ok {
			return nil, invalidf("order contains unknown or repeated appointment %q", id)
		}
		delete(byID, id)
		out = append(out, a)
	}
	return out, nil
}

func sameIDs(appts []domain.Appointment, ids []string) bool {
	if len(appts) != len(ids) {
		return false
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	for _, a := range appts {
		if _, ok := want[a.ID]; !ok {
			return false
		}
	}
	return true
}

func (rp *RoutePlanner) publish(ctx context.Context, plan RoutePlan, s domain.RouteStep) {
	if rp.Events == nil {
		return
	}
	now := time.Now
	if rp.Now != nil {
		now = rp.Now
	}
	e := ports.Event{
		Type:          ports.EventAppointmentRescheduled,
		TenantID:      rp.TenantID,
		AppointmentID: s.AppointmentID,
		EngineerID:    plan.EngineerID,
		Date:          plan.Date,
		Start:         s.Start,
		End:           s.End,
		OccurredAt:    now().UTC(),
	}
	if err := rp.Events.Publish(ctx, e); err != nil {
		obs.Logger.Warn("publish event failed", "req_id", obs.RequestID(ctx), "type", e.Type, "appointment_id", s.AppointmentID, "err", err)
	}
}
