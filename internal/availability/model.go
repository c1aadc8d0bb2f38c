// Package availability owns the per-worker availability layers, the
// precedence resolver that merges them into one effective state per date,
// and their persistence.
package availability

import (
	"sort"
	"time"

	"github.com/staffcal/staffcal/internal/dateutil"
)

// State is the effective availability of a worker on one date.
type State string

const (
	// StateUnset means "no explicit signal"; it is the only state calendar
	// cells render as blank.
	StateUnset       State = "unset"
	StateAvailable   State = "available"
	StateUnavailable State = "unavailable"
)

// Valid reports whether s is one of the three known states.
func (s State) Valid() bool {
	switch s {
	case StateUnset, StateAvailable, StateUnavailable:
		return true
	}
	return false
}

// Source records which layer produced a resolved state. The UI uses it for
// icons and for disabling manual edits on booked dates.
type Source string

const (
	SourceBooked       Source = "booked"
	SourceManual       Source = "manual"
	SourcePattern      Source = "pattern"
	SourceExternalFeed Source = "external_feed"
	SourceNone         Source = "none"
)

// ManualOverrides maps date keys to an explicit available/unavailable state.
// Absence of a date means no override. Mutated only through the edit
// session / store paths.
type ManualOverrides map[string]State

// Sanitized returns a copy with invalid date keys and non-explicit states
// dropped. Unset is not a storable override; clearing a date removes its
// entry instead.
func (m ManualOverrides) Sanitized() ManualOverrides {
	out := make(ManualOverrides, len(m))
	for d, s := range m {
		if !dateutil.IsValidDateKey(d) {
			continue
		}
		if s != StateAvailable && s != StateUnavailable {
			continue
		}
		out[d] = s
	}
	return out
}

// WeeklyPattern blocks out every weekday not present in AllowedWeekdays.
// The pattern can only subtract availability; it never marks a date
// available.
type WeeklyPattern struct {
	Enabled bool `json:"enabled"`
	// AllowedWeekdays holds weekday numbers, Sunday = 0.
	AllowedWeekdays []int `json:"allowed_weekdays"`
}

// Normalized returns a copy with weekdays deduplicated, sorted, and clamped
// to 0..6. An enabled pattern with no allowed weekdays is treated as
// disabled rather than blocking every date.
func (p WeeklyPattern) Normalized() WeeklyPattern {
	seen := make(map[int]struct{}, len(p.AllowedWeekdays))
	days := make([]int, 0, len(p.AllowedWeekdays))
	for _, d := range p.AllowedWeekdays {
		if d < 0 || d > 6 {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Ints(days)

	out := WeeklyPattern{Enabled: p.Enabled, AllowedWeekdays: days}
	if len(days) == 0 {
		out.Enabled = false
	}
	return out
}

// Allows reports whether the pattern permits the given weekday. A disabled
// pattern permits everything.
func (p WeeklyPattern) Allows(wd time.Weekday) bool {
	if !p.Enabled {
		return true
	}
	for _, d := range p.AllowedWeekdays {
		if time.Weekday(d) == wd {
			return true
		}
	}
	return false
}

// FeedSnapshot is the last synced busy-date set from a worker's external
// calendar feed. Read-only to the resolver; produced by the feed adapter.
type FeedSnapshot struct {
	BusyDates    []string   `json:"busy_dates"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// DateSet is a membership set of date keys.
type DateSet map[string]struct{}

// NewDateSet builds a set from valid date keys, dropping malformed entries.
func NewDateSet(dates ...string) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		if dateutil.IsValidDateKey(d) {
			s[d] = struct{}{}
		}
	}
	return s
}

// Has reports set membership.
func (s DateSet) Has(d string) bool {
	_, ok := s[d]
	return ok
}

// BusySet returns the snapshot's busy dates as a DateSet.
func (f FeedSnapshot) BusySet() DateSet {
	return NewDateSet(f.BusyDates...)
}

// WorkerSettings holds per-worker engine settings that are not availability
// layers themselves, currently just the external feed subscription.
type WorkerSettings struct {
	FeedURL string `json:"feed_url,omitempty"`
}

// Layers bundles the four availability inputs for one worker. Booked is
// supplied by the event-scheduling subsystem; the rest come from the store.
type Layers struct {
	Booked  DateSet         `json:"-"`
	Manual  ManualOverrides `json:"manual"`
	Pattern WeeklyPattern   `json:"pattern"`
	Feed    FeedSnapshot    `json:"feed"`
}

// ResolvedDay is the resolver's output for one date. It is never persisted;
// callers recompute it on demand.
type ResolvedDay struct {
	Date        string   `json:"date"`
	State       State    `json:"state"`
	Source      Source   `json:"source"`
	EventLabels []string `json:"event_labels,omitempty"`
}
