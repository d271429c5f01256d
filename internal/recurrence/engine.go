package recurrence

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/example/family-calendar/internal/timecodec"
)

// Series is the part of a base event the expander reads.
type Series struct {
	EventID string
	Start   time.Time
	End     time.Time
	AllDay  bool
	Rule    *Rule
}

// Occurrence is one concrete instance of a series. It is computed on read and never stored.
type Occurrence struct {
	SourceEventID       string
	Index               int
	Start               time.Time
	End                 time.Time
	AllDay              bool
	IsRecurringInstance bool
}

// InstanceID identifies the occurrence among all instances of its series.
func (o Occurrence) InstanceID() string {
	if !o.IsRecurringInstance {
		return o.SourceEventID
	}
	return fmt.Sprintf("%s_r_%d", o.SourceEventID, o.Index)
}

// Expansion is the merged result of expanding several series over one window.
// Faults holds one error per series that could not be expanded.
type Expansion struct {
	Occurrences []Occurrence
	Faults      []*ExpansionError
}

// Expander turns series into occurrences. Recurrence end dates and all-day
// boundaries are evaluated in the codec's timezone; timed events advance on
// the UTC calendar so their absolute time of day is kept across DST changes.
type Expander struct {
	codec *timecodec.Codec
}

// NewExpander constructs an Expander. A nil codec evaluates dates in UTC.
func NewExpander(codec *timecodec.Codec) *Expander {
	if codec == nil {
		codec = timecodec.New(nil)
	}
	return &Expander{codec: codec}
}

// Codec returns the codec used for date evaluation.
func (e *Expander) Codec() *timecodec.Codec {
	return e.codec
}

// Occurrences returns the lazy, window-bounded sequence of instances of s,
// ordered by start. The search starts at the first index whose instance can
// reach the window, so the cost does not depend on how long ago the rule began.
func (e *Expander) Occurrences(s Series, w Window) (iter.Seq[Occurrence], error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if s.End.Before(s.Start) {
		return nil, fmt.Errorf("%w: event %s", ErrInvalidDuration, s.EventID)
	}

	if s.Rule == nil {
		return func(yield func(Occurrence) bool) {
			if w.Overlaps(s.Start, s.End) {
				yield(Occurrence{
					SourceEventID: s.EventID,
					Start:         s.Start.UTC(),
					End:           s.End.UTC(),
					AllDay:        s.AllDay,
				})
			}
		}, nil
	}

	st, err := e.newStepper(s)
	if err != nil {
		return nil, err
	}
	rule := s.Rule
	first := st.firstReaching(w.Start)

	return func(yield func(Occurrence) bool) {
		for k := first; ; k++ {
			start, end := st.at(k)
			if !start.Before(w.End) {
				return
			}
			if rule.EndDate != nil && e.codec.ToLocalDateOnly(start).After(*rule.EndDate) {
				return
			}
			if !w.Overlaps(start, end) {
				continue
			}
			occ := Occurrence{
				SourceEventID:       s.EventID,
				Index:               k,
				Start:               start,
				End:                 end,
				AllDay:              s.AllDay,
				IsRecurringInstance: true,
			}
			if !yield(occ) {
				return
			}
		}
	}, nil
}

// Check reports whether s could be expanded, without producing instances.
func (e *Expander) Check(s Series) error {
	if s.End.Before(s.Start) {
		return fmt.Errorf("%w: event %s", ErrInvalidDuration, s.EventID)
	}
	if s.Rule == nil {
		return nil
	}
	_, err := e.newStepper(s)
	return err
}

// Expand collects Occurrences into a slice.
func (e *Expander) Expand(s Series, w Window) ([]Occurrence, error) {
	seq, err := e.Occurrences(s, w)
	if err != nil {
		return nil, err
	}
	var out []Occurrence
	for occ := range seq {
		out = append(out, occ)
	}
	return out, nil
}

// ExpandAll expands every series over w. A series that fails to expand is
// reported in Faults and does not affect the others. The merged result is
// ordered by start, then source event id, then index.
func (e *Expander) ExpandAll(series []Series, w Window) (Expansion, error) {
	if err := w.Validate(); err != nil {
		return Expansion{}, err
	}
	var result Expansion
	for _, s := range series {
		occs, err := e.Expand(s, w)
		if err != nil {
			result.Faults = append(result.Faults, &ExpansionError{EventID: s.EventID, Err: err})
			continue
		}
		result.Occurrences = append(result.Occurrences, occs...)
	}
	SortOccurrences(result.Occurrences)
	return result, nil
}

// SortOccurrences orders occurrences by start, then source event id, then index.
func SortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.SourceEventID != b.SourceEventID {
			return a.SourceEventID < b.SourceEventID
		}
		return a.Index < b.Index
	})
}

// stepper computes offset(k) for one series.
type stepper struct {
	freq     Frequency
	interval int
	// position returns the instance bounds for a date produced by advanceDate.
	position func(civil.Date) (time.Time, time.Time)
	base     civil.Date
	// dateOf maps an instant onto the calendar the series advances on.
	dateOf func(time.Time) civil.Date
	length time.Duration
}

func (e *Expander) newStepper(s Series) (*stepper, error) {
	rule := s.Rule
	if !rule.Frequency.Valid() {
		return nil, &CorruptRecurrenceError{
			EventID: s.EventID,
			Reason:  fmt.Sprintf("unknown frequency %q", string(rule.Frequency)),
		}
	}
	if rule.Interval < 1 || rule.Interval > MaxInterval {
		return nil, &CorruptRecurrenceError{
			EventID: s.EventID,
			Reason:  fmt.Sprintf("interval %d is outside 1..%d", rule.Interval, MaxInterval),
		}
	}
	if rule.EndDate != nil && !rule.EndDate.IsValid() {
		return nil, &CorruptRecurrenceError{EventID: s.EventID, Reason: "end date is not a calendar date"}
	}
	if rule.EndDate != nil && rule.EndDate.Before(e.codec.ToLocalDateOnly(s.Start)) {
		return nil, &CorruptRecurrenceError{
			EventID: s.EventID,
			Reason:  fmt.Sprintf("end date %s precedes the start date", rule.EndDate),
		}
	}

	st := &stepper{freq: rule.Frequency, interval: rule.Interval, length: s.End.Sub(s.Start)}
	if s.AllDay {
		codec := e.codec
		st.base = codec.ToLocalDateOnly(s.Start)
		span := codec.ToLocalDateOnly(s.End).DaysSince(st.base)
		st.dateOf = codec.ToLocalDateOnly
		st.position = func(d civil.Date) (time.Time, time.Time) {
			return codec.StartOfDay(d), codec.StartOfDay(d.AddDays(span))
		}
		return st, nil
	}

	base := civil.DateTimeOf(s.Start.UTC())
	duration := s.End.Sub(s.Start)
	st.base = base.Date
	st.dateOf = func(t time.Time) civil.Date { return civil.DateOf(t.UTC()) }
	st.position = func(d civil.Date) (time.Time, time.Time) {
		start := civil.DateTime{Date: d, Time: base.Time}.In(time.UTC)
		return start, start.Add(duration)
	}
	return st, nil
}

func (st *stepper) at(k int) (time.Time, time.Time) {
	return st.position(advanceDate(st.base, st.freq, st.interval*k))
}

// firstReaching returns the smallest k whose instance ends after bound.
func (st *stepper) firstReaching(bound time.Time) int {
	k := st.estimate(bound.Add(-st.length))
	for k > 0 {
		start, end := st.at(k - 1)
		if !reachesPast(start, end, bound) {
			break
		}
		k--
	}
	for {
		start, end := st.at(k)
		if reachesPast(start, end, bound) {
			return k
		}
		k++
	}
}

// estimate returns an index at or slightly below the one whose instance starts at target.
func (st *stepper) estimate(target time.Time) int {
	d := st.dateOf(target)
	var units int
	switch st.freq {
	case FrequencyDaily:
		units = d.DaysSince(st.base)
	case FrequencyWeekly:
		units = floorDiv(d.DaysSince(st.base), 7)
	default:
		units = (d.Year-st.base.Year)*12 + int(d.Month) - int(st.base.Month)
	}
	k := floorDiv(units, st.interval) - 1
	if k < 0 {
		return 0
	}
	return k
}
