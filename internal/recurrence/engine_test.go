package recurrence

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"github.com/example/family-calendar/internal/timecodec"
)

func stockholmExpander(t testing.TB) *Expander {
	t.Helper()
	codec, err := timecodec.Load("Europe/Stockholm")
	require.NoError(t, err)
	return NewExpander(codec)
}

func utc(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func starts(occs []Occurrence) []time.Time {
	out := make([]time.Time, len(occs))
	for i, o := range occs {
		out[i] = o.Start
	}
	return out
}

func TestExpander_NonRecurring(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	series := Series{EventID: "evt-1", Start: utc(2024, time.May, 6, 9, 0), End: utc(2024, time.May, 6, 10, 0)}

	tests := []struct {
		name   string
		window Window
		want   int
	}{
		{"contains", Window{utc(2024, time.May, 6, 0, 0), utc(2024, time.May, 7, 0, 0)}, 1},
		{"overlaps the tail", Window{utc(2024, time.May, 6, 9, 30), utc(2024, time.May, 6, 12, 0)}, 1},
		{"overlaps the head", Window{utc(2024, time.May, 6, 8, 0), utc(2024, time.May, 6, 9, 1)}, 1},
		{"window ends at start", Window{utc(2024, time.May, 6, 8, 0), utc(2024, time.May, 6, 9, 0)}, 0},
		{"window starts at end", Window{utc(2024, time.May, 6, 10, 0), utc(2024, time.May, 6, 11, 0)}, 0},
		{"far away", Window{utc(2025, time.May, 6, 0, 0), utc(2025, time.May, 7, 0, 0)}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			occs, err := expander.Expand(series, tc.window)
			require.NoError(t, err)
			require.Len(t, occs, tc.want)
			if tc.want == 1 {
				assert.Equal(t, "evt-1", occs[0].SourceEventID)
				assert.False(t, occs[0].IsRecurringInstance)
				assert.Equal(t, "evt-1", occs[0].InstanceID())
			}
		})
	}
}

func TestExpander_IntervalSpacing(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	base := utc(2024, time.January, 3, 7, 15)
	window := Window{utc(2024, time.January, 1, 0, 0), utc(2024, time.July, 1, 0, 0)}

	tests := []struct {
		freq     Frequency
		interval int
		gap      time.Duration
	}{
		{FrequencyDaily, 1, 24 * time.Hour},
		{FrequencyDaily, 3, 72 * time.Hour},
		{FrequencyWeekly, 1, 7 * 24 * time.Hour},
		{FrequencyWeekly, 2, 14 * 24 * time.Hour},
	}

	for _, tc := range tests {
		series := Series{
			EventID: "evt",
			Start:   base,
			End:     base.Add(45 * time.Minute),
			Rule:    &Rule{Frequency: tc.freq, Interval: tc.interval},
		}
		occs, err := expander.Expand(series, window)
		require.NoError(t, err)
		require.Greater(t, len(occs), 2)
		for i := 1; i < len(occs); i++ {
			assert.Equal(t, tc.gap, occs[i].Start.Sub(occs[i-1].Start), "%s/%d #%d", tc.freq, tc.interval, i)
			assert.Equal(t, 45*time.Minute, occs[i].End.Sub(occs[i].Start))
			assert.Equal(t, i, occs[i].Index)
			assert.True(t, occs[i].IsRecurringInstance)
		}
	}
}

func TestExpander_MonthClamping(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)

	for _, year := range []int{2023, 2024} {
		base := utc(year, time.January, 31, 18, 0)
		series := Series{EventID: "rent", Start: base, End: base.Add(time.Hour), Rule: &Rule{Frequency: FrequencyMonthly, Interval: 1}}
		occs, err := expander.Expand(series, Window{base, utc(year, time.April, 1, 0, 0)})
		require.NoError(t, err)

		wantFeb := 28
		if year == 2024 {
			wantFeb = 29
		}
		require.Len(t, occs, 3)
		assert.Equal(t, utc(year, time.February, wantFeb, 18, 0), occs[1].Start)
		assert.Equal(t, utc(year, time.March, 31, 18, 0), occs[2].Start, "clamping must not drift")
	}
}

func TestExpander_EndDateBoundary(t *testing.T) {
	t.Parallel()
	expander := stockholmExpander(t)
	base := utc(2024, time.January, 1, 9, 0)
	window := Window{utc(2023, time.December, 1, 0, 0), utc(2024, time.February, 1, 0, 0)}

	t.Run("end date is inclusive", func(t *testing.T) {
		t.Parallel()
		series := Series{EventID: "e", Start: base, End: base.Add(time.Hour),
			Rule: &Rule{Frequency: FrequencyDaily, Interval: 1, EndDate: datePtr(2024, time.January, 5)}}
		occs, err := expander.Expand(series, window)
		require.NoError(t, err)
		require.Len(t, occs, 5)
		assert.Equal(t, utc(2024, time.January, 5, 9, 0), occs[4].Start)
	})

	t.Run("end date compares local dates", func(t *testing.T) {
		t.Parallel()
		// 23:30Z is already the next day in Stockholm.
		late := utc(2024, time.January, 1, 23, 30)
		series := Series{EventID: "e", Start: late, End: late.Add(time.Hour),
			Rule: &Rule{Frequency: FrequencyDaily, Interval: 1, EndDate: datePtr(2024, time.January, 4)}}
		occs, err := expander.Expand(series, window)
		require.NoError(t, err)
		require.Len(t, occs, 3)
		assert.Equal(t, utc(2024, time.January, 3, 23, 30), occs[2].Start)
	})
}

func TestExpander_WindowLocality(t *testing.T) {
	t.Parallel()
	expander := stockholmExpander(t)
	base := utc(2014, time.June, 2, 6, 0)
	series := Series{EventID: "walk", Start: base, End: base.Add(30 * time.Minute), Rule: &Rule{Frequency: FrequencyDaily, Interval: 1}}

	windowStart := utc(2024, time.June, 3, 0, 0)
	occs, err := expander.Expand(series, Window{windowStart, windowStart.AddDate(0, 0, 7)})
	require.NoError(t, err)
	require.Len(t, occs, 7)

	wantFirst := civil.DateOf(windowStart).DaysSince(civil.DateOf(base))
	assert.Equal(t, wantFirst, occs[0].Index)
	assert.Equal(t, utc(2024, time.June, 3, 6, 0), occs[0].Start)

	st, err := expander.newStepper(series)
	require.NoError(t, err)
	assert.InDelta(t, wantFirst, st.estimate(windowStart), 2, "search must start near the window")
}

func TestExpander_WindowLocalityMonthly(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	base := utc(1990, time.August, 31, 12, 0)
	series := Series{EventID: "m", Start: base, End: base.Add(2 * time.Hour), Rule: &Rule{Frequency: FrequencyMonthly, Interval: 5}}

	occs, err := expander.Expand(series, Window{utc(2024, time.January, 1, 0, 0), utc(2025, time.January, 1, 0, 0)})
	require.NoError(t, err)
	for _, occ := range occs {
		assert.Equal(t, advanceDate(civil.DateOf(base), FrequencyMonthly, 5*occ.Index), civil.DateOf(occ.Start))
	}
	require.NotEmpty(t, occs)
	st, err := expander.newStepper(series)
	require.NoError(t, err)
	_, prevEnd := st.at(occs[0].Index - 1)
	assert.False(t, prevEnd.After(utc(2024, time.January, 1, 0, 0)), "the instance before the first must not reach the window")
}

func TestExpander_StockholmDSTScenario(t *testing.T) {
	t.Parallel()
	expander := stockholmExpander(t)
	codec := expander.Codec()

	series := Series{
		EventID: "swim",
		Start:   utc(2024, time.March, 30, 10, 0),
		End:     utc(2024, time.March, 30, 11, 0),
		Rule:    &Rule{Frequency: FrequencyWeekly, Interval: 1, EndDate: datePtr(2024, time.April, 20)},
	}
	window := Window{
		Start: codec.StartOfDay(date(2024, time.March, 29)),
		End:   codec.StartOfDay(date(2024, time.April, 15)),
	}

	occs, err := expander.Expand(series, window)
	require.NoError(t, err)
	require.Len(t, occs, 3)

	wantDays := []civil.Date{date(2024, time.March, 30), date(2024, time.April, 6), date(2024, time.April, 13)}
	wantHours := []int{11, 12, 12}
	for i, occ := range occs {
		local := codec.ToLocalWallClock(occ.Start)
		assert.Equal(t, wantDays[i], local.Date)
		assert.Equal(t, wantHours[i], local.Time.Hour)
		assert.Equal(t, time.Hour, occ.End.Sub(occ.Start))
	}
}

func TestExpander_AllDayKeepsLocalMidnight(t *testing.T) {
	t.Parallel()
	expander := stockholmExpander(t)
	codec := expander.Codec()

	start := codec.StartOfDay(date(2024, time.March, 24))
	series := Series{
		EventID: "cleaning",
		Start:   start,
		End:     codec.StartOfDay(date(2024, time.March, 25)),
		AllDay:  true,
		Rule:    &Rule{Frequency: FrequencyWeekly, Interval: 1},
	}
	occs, err := expander.Expand(series, Window{start, codec.StartOfDay(date(2024, time.April, 15))})
	require.NoError(t, err)
	require.Len(t, occs, 4)

	for _, occ := range occs {
		local := codec.ToLocalWallClock(occ.Start)
		assert.Equal(t, civil.Time{}, local.Time)
		assert.Equal(t, time.Sunday, local.Date.In(time.UTC).Weekday())
		assert.True(t, occ.AllDay)
		assert.Equal(t, local.Date.AddDays(1), codec.ToLocalDateOnly(occ.End))
	}
	// The week crossing DST has a 23 hour Sunday.
	assert.Equal(t, 23*time.Hour, occs[1].End.Sub(occs[1].Start))
}

func TestExpander_CorruptRecurrence(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	base := utc(2024, time.May, 1, 8, 0)
	window := Window{utc(2024, time.May, 1, 0, 0), utc(2024, time.May, 10, 0, 0)}

	tests := []struct {
		name string
		rule Rule
	}{
		{"unknown frequency", Rule{Frequency: "yearly", Interval: 1}},
		{"none stored as a rule", Rule{Frequency: FrequencyNone, Interval: 1}},
		{"zero interval", Rule{Frequency: FrequencyDaily}},
		{"end date before start", Rule{Frequency: FrequencyDaily, Interval: 1, EndDate: datePtr(2024, time.April, 1)}},
		{"unparsable end date", Rule{Frequency: FrequencyWeekly, Interval: 1, EndDate: &civil.Date{}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rule := tc.rule
			series := Series{EventID: "bad", Start: base, End: base.Add(time.Hour), Rule: &rule}
			assert.ErrorIs(t, expander.Check(series), ErrCorruptRecurrence)
			_, err := expander.Expand(series, window)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCorruptRecurrence))
			var corrupt *CorruptRecurrenceError
			require.True(t, errors.As(err, &corrupt))
			assert.Equal(t, "bad", corrupt.EventID)
		})
	}
}

func TestExpander_InvalidWindow(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	series := Series{EventID: "e", Start: utc(2024, time.May, 1, 8, 0), End: utc(2024, time.May, 1, 9, 0)}
	at := utc(2024, time.May, 1, 0, 0)

	for name, w := range map[string]Window{
		"empty":     {at, at},
		"inverted":  {at.Add(time.Hour), at},
		"unbounded": {Start: at},
	} {
		_, err := expander.Expand(series, w)
		assert.ErrorIs(t, err, ErrInvalidWindow, name)
		_, err = expander.ExpandAll([]Series{series}, w)
		assert.ErrorIs(t, err, ErrInvalidWindow, name)
	}

	_, err := NewWindow(at, at)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestExpander_InvalidDuration(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	series := Series{EventID: "e", Start: utc(2024, time.May, 1, 9, 0), End: utc(2024, time.May, 1, 8, 0)}
	window := Window{utc(2024, time.May, 1, 0, 0), utc(2024, time.May, 2, 0, 0)}
	_, err := expander.Expand(series, window)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	result, err := expander.ExpandAll([]Series{series}, window)
	require.NoError(t, err)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, "e", result.Faults[0].EventID)
	assert.ErrorIs(t, result.Faults[0], ErrInvalidDuration)
}

func TestExpander_ExpandAllIsolatesFaults(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	window := Window{utc(2024, time.May, 1, 0, 0), utc(2024, time.May, 4, 0, 0)}
	at := utc(2024, time.May, 1, 8, 0)

	series := []Series{
		{EventID: "b", Start: at, End: at.Add(time.Hour), Rule: &Rule{Frequency: FrequencyDaily, Interval: 1}},
		{EventID: "broken", Start: at, End: at.Add(time.Hour), Rule: &Rule{Frequency: "fortnightly", Interval: 1}},
		{EventID: "a", Start: at, End: at.Add(30 * time.Minute)},
	}

	result, err := expander.ExpandAll(series, window)
	require.NoError(t, err)
	require.Len(t, result.Faults, 1)
	assert.Equal(t, "broken", result.Faults[0].EventID)
	assert.ErrorIs(t, result.Faults[0], ErrCorruptRecurrence)
	var corrupt *CorruptRecurrenceError
	require.ErrorAs(t, result.Faults[0], &corrupt)
	assert.Contains(t, corrupt.Reason, "fortnightly")

	require.Len(t, result.Occurrences, 4)
	assert.Equal(t, "a", result.Occurrences[0].SourceEventID, "ties break on source id")
	assert.Equal(t, "b", result.Occurrences[1].SourceEventID)
	assert.Equal(t, "b_r_1", result.Occurrences[2].InstanceID())
	for i := 1; i < len(result.Occurrences); i++ {
		assert.False(t, result.Occurrences[i].Start.Before(result.Occurrences[i-1].Start))
	}
}

func TestExpander_SequenceIsLazy(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	at := utc(2024, time.May, 1, 8, 0)
	series := Series{EventID: "e", Start: at, End: at.Add(time.Hour), Rule: &Rule{Frequency: FrequencyDaily, Interval: 1}}

	seq, err := expander.Occurrences(series, Window{at, at.AddDate(50, 0, 0)})
	require.NoError(t, err)

	var seen int
	for range seq {
		seen++
		if seen == 3 {
			break
		}
	}
	assert.Equal(t, 3, seen)
}

func TestExpander_MatchesRRuleOracle(t *testing.T) {
	t.Parallel()
	expander := NewExpander(nil)
	base := utc(2023, time.February, 14, 10, 0)
	window := Window{utc(2023, time.June, 1, 0, 0), utc(2024, time.June, 1, 0, 0)}

	cases := []struct {
		freq     Frequency
		interval int
		oracle   rrule.Frequency
	}{
		{FrequencyDaily, 1, rrule.DAILY},
		{FrequencyDaily, 4, rrule.DAILY},
		{FrequencyWeekly, 1, rrule.WEEKLY},
		{FrequencyWeekly, 3, rrule.WEEKLY},
	}

	for _, tc := range cases {
		r, err := rrule.NewRRule(rrule.ROption{Freq: tc.oracle, Interval: tc.interval, Dtstart: base})
		require.NoError(t, err)
		want := r.Between(window.Start, window.End, true)

		occs, err := expander.Expand(Series{EventID: "o", Start: base, End: base.Add(time.Hour),
			Rule: &Rule{Frequency: tc.freq, Interval: tc.interval}}, window)
		require.NoError(t, err)

		got := starts(occs)
		require.Len(t, got, len(want), "%s/%d", tc.freq, tc.interval)
		for i := range want {
			assert.True(t, want[i].Equal(got[i]), "%s/%d #%d want %s got %s", tc.freq, tc.interval, i, want[i], got[i])
		}
	}
}
