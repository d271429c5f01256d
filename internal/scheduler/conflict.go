// Package scheduler detects owner double-bookings among expanded occurrences.
package scheduler

import (
	"sort"
	"time"
)

// Slot is one occurrence as seen by the detector.
type Slot struct {
	EventID    string
	InstanceID string
	OwnerID    string
	Start      time.Time
	End        time.Time
	AllDay     bool
}

// Conflict reports that a candidate occurrence overlaps another event of the
// same owner. Only the first overlap per other event is reported.
type Conflict struct {
	WithEventID    string
	WithInstanceID string
	OwnerID        string
	Start          time.Time
	End            time.Time
}

// DetectConflicts compares candidate slots against existing ones. All-day
// slots are ignored: a birthday does not double-book anyone. Slots from the
// same event never conflict with each other.
func DetectConflicts(existing []Slot, candidate []Slot) []Conflict {
	timed := func(slots []Slot) []Slot {
		out := make([]Slot, 0, len(slots))
		for _, s := range slots {
			if !s.AllDay {
				out = append(out, s)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
		return out
	}
	others := timed(existing)
	mine := timed(candidate)

	seen := make(map[string]struct{})
	var conflicts []Conflict
	for _, c := range mine {
		for _, o := range others {
			if !o.Start.Before(c.End) {
				break
			}
			if o.EventID == c.EventID || o.OwnerID != c.OwnerID || !o.End.After(c.Start) {
				continue
			}
			if _, dup := seen[o.EventID]; dup {
				continue
			}
			seen[o.EventID] = struct{}{}
			conflicts = append(conflicts, Conflict{
				WithEventID:    o.EventID,
				WithInstanceID: o.InstanceID,
				OwnerID:        o.OwnerID,
				Start:          maxTime(c.Start, o.Start),
				End:            minTime(c.End, o.End),
			})
		}
	}
	return conflicts
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
