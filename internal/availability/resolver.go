package availability

import (
	"github.com/staffcal/staffcal/internal/dateutil"
)

// Resolve merges the four availability layers into one effective state for a
// date. It is pure and deterministic: same inputs, same output, no I/O.
//
// Precedence, first match wins:
//
//  1. booked        -> Unavailable (non-overridable, even by manual)
//  2. manual        -> the overridden state
//  3. weekly pattern -> Unavailable on disallowed weekdays
//  4. external feed -> Unavailable on busy dates
//  5. otherwise     -> Unset
//
// Only the booked and manual layers may ever express Available. Pattern and
// feed can only subtract availability: a calendar feed tells you when you
// are busy, not when you are free. New layers must preserve that asymmetry.
//
// A malformed date resolves to Unset so renderers degrade to a blank cell.
func Resolve(date string, manual ManualOverrides, pattern WeeklyPattern, feedBusy DateSet, booked DateSet) ResolvedDay {
	wd, ok := dateutil.Weekday(date)
	if !ok {
		return ResolvedDay{Date: date, State: StateUnset, Source: SourceNone}
	}

	if booked.Has(date) {
		return ResolvedDay{Date: date, State: StateUnavailable, Source: SourceBooked}
	}

	if s, exists := manual[date]; exists && (s == StateAvailable || s == StateUnavailable) {
		return ResolvedDay{Date: date, State: s, Source: SourceManual}
	}

	if !pattern.Allows(wd) {
		return ResolvedDay{Date: date, State: StateUnavailable, Source: SourcePattern}
	}

	if feedBusy.Has(date) {
		return ResolvedDay{Date: date, State: StateUnavailable, Source: SourceExternalFeed}
	}

	return ResolvedDay{Date: date, State: StateUnset, Source: SourceNone}
}

// ResolveLayers is Resolve over a prepared Layers bundle. The pattern is
// normalized and the feed set is materialized once; prefer this entry point
// when resolving many dates against the same inputs.
func ResolveLayers(date string, l Layers) ResolvedDay {
	return Resolve(date, l.Manual, l.Pattern.Normalized(), l.Feed.BusySet(), l.Booked)
}
