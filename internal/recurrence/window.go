package recurrence

import (
	"fmt"
	"time"
)

// Window is the half-open range [Start, End) occurrences are requested for.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns a validated window.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate rejects unbounded, empty and inverted windows.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if !w.End.After(w.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow,
			w.End.UTC().Format(time.RFC3339), w.Start.UTC().Format(time.RFC3339))
	}
	return nil
}

// Overlaps reports whether [start, end) intersects the window. A zero-length
// span counts when its instant lies inside the window.
func (w Window) Overlaps(start, end time.Time) bool {
	if !start.Before(w.End) {
		return false
	}
	return reachesPast(start, end, w.Start)
}

func reachesPast(start, end, bound time.Time) bool {
	if end.Equal(start) {
		return !start.Before(bound)
	}
	return end.After(bound)
}
