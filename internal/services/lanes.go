package services

import (
	"sort"
	"time"
)

// A half-open [Start, End) time range on one resource-day.
type Interval struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Lane is the display column of an interval. LaneCount is the number of
// lanes its whole overlap component needs, so every member of a component
// reports the same width.
type Lane struct {
	Lane      int
	LaneCount int
}

// AssignLanes colours intervals greedily: sorted by start, longer first on
// ties (then by id), each interval takes the first lane whose occupants it
// does not overlap. Components are closed once an interval starts at or
// after the latest end seen so far.
func AssignLanes(intervals []Interval) map[string]Lane {
	out := make(map[string]Lane, len(intervals))
	if len(intervals) == 0 {
		return out
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		da, db := a.End.Sub(a.Start), b.End.Sub(b.Start)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})

	var (
		laneEnds  []time.Time // end of the last occupant per lane
		members   []string
		placed    = make(map[string]int, len(sorted))
		clusterTo time.Time
	)

	flush := func() {
		for _, id := range members {
			out[id] = Lane{Lane: placed[id], LaneCount: len(laneEnds)}
		}
		laneEnds = laneEnds[:0]
		members = members[:0]
	}

	for _, iv := range sorted {
		if len(members) > 0 && !iv.Start.Before(clusterTo) {
			flush()
		}

		lane := -1
		for i, end := range laneEnds {
			// Occupants are placed in start order, so the last end is the
			// only one that can overlap.
			if !iv.Start.Before(end) {
				lane = i
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, iv.End)
		} else {
			laneEnds[lane] = iv.End
		}

		placed[iv.ID] = lane
		members = append(members, iv.ID)
		if len(members) == 1 || iv.End.After(clusterTo) {
			clusterTo = iv.End
		}
	}
	flush()

	return out
}
