// Package ical renders base events as an iCalendar feed for calendar apps.
package ical

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"golang.org/x/crypto/blake2b"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/recurrence"
	"github.com/example/family-calendar/internal/timecodec"
)

const (
	uidDomain = "famcal"
	// maxRRuleMonthDay is the last day of month every month has. Monthly rules
	// starting later clamp, which RRULE cannot express.
	maxRRuleMonthDay = 28
	defaultHorizon   = 365 * 24 * time.Hour
)

// Feed is a rendered calendar.
type Feed struct {
	Body []byte
	// ETag is a strong, quoted entity tag over Body.
	ETag string
	// Skipped lists events whose stored recurrence could not be exported.
	Skipped []string
}

// Exporter builds feeds in one deployment timezone.
type Exporter struct {
	name     string
	codec    *timecodec.Codec
	expander *recurrence.Expander
	horizon  time.Duration
}

// NewExporter returns an exporter named name. A zero horizon means one year
// on either side of the export time for rules that have to be expanded.
func NewExporter(name string, codec *timecodec.Codec, horizon time.Duration) *Exporter {
	if codec == nil {
		codec = timecodec.New(nil)
	}
	if horizon <= 0 {
		horizon = defaultHorizon
	}
	return &Exporter{
		name:     name,
		codec:    codec,
		expander: recurrence.NewExpander(codec),
		horizon:  horizon,
	}
}

// Export renders events. owners maps user ids to display names, which become
// the CATEGORIES of each VEVENT.
func (x *Exporter) Export(events []calendar.BaseEvent, owners map[string]string, now time.Time) (Feed, error) {
	sorted := make([]calendar.BaseEvent, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	cal := ics.NewCalendarFor(uidDomain)
	cal.SetMethod(ics.MethodPublish)
	if x.name != "" {
		cal.SetXWRCalName(x.name)
	}
	cal.SetXWRTimezone(x.codec.Name())

	var skipped []string
	for _, event := range sorted {
		if err := x.expander.Check(event.Series()); err != nil {
			skipped = append(skipped, event.ID)
			continue
		}
		if err := x.addEvent(cal, event, owners[event.OwnerID], now); err != nil {
			return Feed{}, fmt.Errorf("export event %s: %w", event.ID, err)
		}
	}

	body := []byte(cal.Serialize())
	sum := blake2b.Sum256(body)
	return Feed{
		Body:    body,
		ETag:    `"` + hex.EncodeToString(sum[:16]) + `"`,
		Skipped: skipped,
	}, nil
}

func (x *Exporter) addEvent(cal *ics.Calendar, event calendar.BaseEvent, owner string, now time.Time) error {
	rule := event.Recurrence
	if rule == nil || x.expressible(event) {
		vevent := x.newVEvent(cal, event.ID, event, event.Start, event.End, owner)
		if rule == nil {
			return nil
		}
		text, err := x.rruleText(event)
		if err != nil {
			return err
		}
		vevent.AddRrule(text)
		return nil
	}

	window := recurrence.Window{Start: now.Add(-x.horizon), End: now.Add(x.horizon)}
	occs, err := x.expander.Expand(event.Series(), window)
	if err != nil {
		return err
	}
	for _, occ := range occs {
		x.newVEvent(cal, occ.InstanceID(), event, occ.Start, occ.End, owner)
	}
	return nil
}

// expressible reports whether the event's rule has an RRULE equivalent.
func (x *Exporter) expressible(event calendar.BaseEvent) bool {
	if event.Recurrence.Frequency != recurrence.FrequencyMonthly {
		return true
	}
	day := event.Start.UTC().Day()
	if event.AllDay {
		day = x.codec.ToLocalDateOnly(event.Start).Day
	}
	return day <= maxRRuleMonthDay
}

func (x *Exporter) newVEvent(cal *ics.Calendar, id string, event calendar.BaseEvent, start, end time.Time, owner string) *ics.VEvent {
	vevent := cal.AddEvent(id + "@" + uidDomain)
	vevent.SetDtStampTime(stampOf(event))
	if !event.CreatedAt.IsZero() {
		vevent.SetCreatedTime(event.CreatedAt)
	}
	if event.AllDay {
		vevent.SetAllDayStartAt(start.In(x.codec.Location()))
		vevent.SetAllDayEndAt(end.In(x.codec.Location()))
	} else {
		vevent.SetStartAt(start)
		vevent.SetEndAt(end)
	}
	vevent.SetSummary(event.Title)
	if event.Description != "" {
		vevent.SetDescription(event.Description)
	}
	if owner != "" {
		vevent.AddCategory(owner)
	}

	if event.Reminder != nil && event.Reminder.Enabled {
		alarm := vevent.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", event.Reminder.LeadMinutes))
		alarm.SetDescription(event.Title)
	}
	return vevent
}

// rruleText renders the rule on the calendar the expander advances on: UTC
// for timed events, local dates for all-day events. UNTIL covers the whole
// inclusive end date.
func (x *Exporter) rruleText(event calendar.BaseEvent) (string, error) {
	rule := event.Recurrence
	opt := rrule.ROption{
		Freq:     frequencyOf(rule.Frequency),
		Interval: rule.Interval,
		Dtstart:  event.Start.UTC(),
	}
	if rule.EndDate != nil && !event.AllDay {
		opt.Until = x.codec.StartOfDay(rule.EndDate.AddDays(1)).Add(-time.Second)
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", err
	}
	text := r.OrigOptions.RRuleString()
	if rule.EndDate != nil && event.AllDay {
		d := *rule.EndDate
		text += fmt.Sprintf(";UNTIL=%04d%02d%02d", d.Year, int(d.Month), d.Day)
	}
	return text, nil
}

func frequencyOf(f recurrence.Frequency) rrule.Frequency {
	switch f {
	case recurrence.FrequencyDaily:
		return rrule.DAILY
	case recurrence.FrequencyWeekly:
		return rrule.WEEKLY
	default:
		return rrule.MONTHLY
	}
}

func stampOf(event calendar.BaseEvent) time.Time {
	switch {
	case !event.UpdatedAt.IsZero():
		return event.UpdatedAt
	case !event.CreatedAt.IsZero():
		return event.CreatedAt
	default:
		return event.Start
	}
}

// ContentType is the media type of a rendered feed.
const ContentType = "text/calendar; charset=utf-8"

// FileName returns a download name for a feed, e.g. "famcal-maria.ics".
func FileName(owner string) string {
	if owner == "" {
		return uidDomain + ".ics"
	}
	return uidDomain + "-" + strings.ToLower(strings.ReplaceAll(owner, " ", "-")) + ".ics"
}
