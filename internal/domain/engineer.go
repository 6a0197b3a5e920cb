package domain

import "time"

// A mobile engineer. Owned by staff management; read-only here.
type Engineer struct {
	EngineerID string
	Name       string
	Active     bool
	// BaseLocation is the engineer's depot; nil means the office is used.
	BaseLocation *Coordinates
	// MaxTravelKm limits the distance between consecutive jobs. Zero means
	// only the policy's distance bands apply.
	MaxTravelKm float64
}

// A reserved window mirrored onto an EngineerDay for fast display.
type Slot struct {
	AppointmentID string    `json:"appointment_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

// Per engineer per date working record.
//
// A missing EngineerDay is meaningful: the engineer is assumed available
// from the first working hour. Its presence reserves nothing by itself;
// Slots only mirrors appointment reservations, including pending ones.
type EngineerDay struct {
	EngineerID string
	Date       string
	// Optional working window as "15:04" local times.
	WorkStart string
	WorkEnd   string
	Location  *Coordinates
	Slots     []Slot
}

// Busy reports whether any mirrored slot overlaps [start, end).
func (d EngineerDay) Busy(start, end time.Time) bool {
	for _, s := range d.Slots {
		if Overlaps(s.Start, s.End, start, end) {
			return true
		}
	}
	return false
}
