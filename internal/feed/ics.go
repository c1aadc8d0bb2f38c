// Package feed syncs external busy calendars (ICS subscriptions) into the
// feed snapshot layer. The feed only ever marks days busy; free time in the
// external calendar says nothing about availability.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/staffcal/staffcal/internal/dateutil"
)

const maxOccurrencesPerEvent = 5000

// BusyDates extracts the set of calendar days an ICS payload marks busy
// within the window, sorted ascending. Recurring events are expanded through
// their RRULE with EXDATEs removed; transparent and cancelled events are
// skipped. Individual malformed events are skipped rather than failing the
// whole payload.
func BusyDates(body []byte, win dateutil.Window) ([]string, error) {
	if len(body) == 0 {
		return nil, errors.New("feed: empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("feed: parse ICS: %w", err)
	}

	winStart, err := dateutil.ParseDateKey(win.Start)
	if err != nil {
		return nil, fmt.Errorf("feed: window start: %w", err)
	}
	winEnd, err := dateutil.ParseDateKey(win.End)
	if err != nil {
		return nil, fmt.Errorf("feed: window end: %w", err)
	}
	// Make the end bound cover the whole last day.
	winEnd = winEnd.Add(24*time.Hour - time.Nanosecond)

	seen := map[string]struct{}{}
	for _, ve := range cal.Events() {
		if skipEvent(ve) {
			continue
		}
		for _, d := range eventDates(ve, winStart, winEnd) {
			if dateutil.DateInWindow(d, win) {
				seen[d] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func skipEvent(ve *ical.VEvent) bool {
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil &&
		strings.EqualFold(p.Value, "CANCELLED") {
		return true
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil &&
		strings.EqualFold(p.Value, "TRANSPARENT") {
		return true
	}
	return false
}

// eventDates returns the date keys one VEVENT covers inside [winStart, winEnd],
// expanding recurrences when an RRULE is present.
func eventDates(ve *ical.VEvent, winStart, winEnd time.Time) []string {
	start, err := ve.GetStartAt()
	if err != nil {
		return nil
	}
	end, endErr := ve.GetEndAt()
	if endErr != nil || !end.After(start) {
		end = start
	}
	allDay := isAllDay(ve)
	duration := end.Sub(start)

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return spanDates(start, end, allDay)
	}

	r, err := rrule.StrToRRule(rruleProp.Value)
	if err != nil {
		return spanDates(start, end, allDay)
	}
	r.DTStart(start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates(ve) {
		set.ExDate(ex.In(start.Location()))
	}

	occurrences := set.Between(winStart.Add(-duration), winEnd, true)
	if len(occurrences) > maxOccurrencesPerEvent {
		occurrences = occurrences[:maxOccurrencesPerEvent]
	}

	var out []string
	for _, occ := range occurrences {
		out = append(out, spanDates(occ, occ.Add(duration), allDay)...)
	}
	return out
}

// spanDates lists the date keys between start and end. All-day events carry
// an exclusive DTEND, so a one-day event ends at the next midnight; timed
// events include the day their end falls on unless it is exactly midnight.
func spanDates(start, end time.Time, allDay bool) []string {
	if !end.After(start) {
		return []string{dateutil.FormatDateKey(start)}
	}

	last := end
	if allDay || isMidnight(end) {
		last = end.Add(-time.Nanosecond)
	}

	var out []string
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	for !day.After(last) {
		out = append(out, dateutil.FormatDateKey(day))
		day = day.AddDate(0, 0, 1)
	}
	return out
}

func isAllDay(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentPropertyDtStart)
	if p == nil {
		return false
	}
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

func exDates(ve *ical.VEvent) []time.Time {
	var out []time.Time
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := time.UTC
		if ids, ok := p.ICalParameters["TZID"]; ok && len(ids) > 0 {
			if l, err := time.LoadLocation(ids[0]); err == nil {
				loc = l
			}
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, loc); err == nil {
				out = append(out, t)
			}
		}
	}
	return out
}

// parseICSTime handles the EXDATE value forms: UTC date-time, local or
// floating date-time (interpreted in loc, the TZID parameter's zone when
// present), and bare date.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}
