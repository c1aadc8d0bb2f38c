package availability

import (
	"reflect"
	"testing"

	"github.com/staffcal/staffcal/internal/dateutil"
)

// Weekdays-only pattern, Sunday = 0.
var weekdaysOnly = WeeklyPattern{Enabled: true, AllowedWeekdays: []int{1, 2, 3, 4, 5}}

func TestResolvePrecedence(t *testing.T) {
	tests := []struct {
		name       string
		date       string
		manual     ManualOverrides
		pattern    WeeklyPattern
		feedBusy   DateSet
		booked     DateSet
		wantState  State
		wantSource Source
	}{
		{
			name:       "booked beats manual available",
			date:       "2026-03-10",
			manual:     ManualOverrides{"2026-03-10": StateAvailable},
			booked:     NewDateSet("2026-03-10"),
			wantState:  StateUnavailable,
			wantSource: SourceBooked,
		},
		{
			name:       "manual available wins over pattern",
			date:       "2026-03-14", // Saturday
			manual:     ManualOverrides{"2026-03-14": StateAvailable},
			pattern:    weekdaysOnly,
			wantState:  StateAvailable,
			wantSource: SourceManual,
		},
		{
			name:       "manual unavailable",
			date:       "2026-03-11",
			manual:     ManualOverrides{"2026-03-11": StateUnavailable},
			wantState:  StateUnavailable,
			wantSource: SourceManual,
		},
		{
			name:       "pattern subtracts saturday",
			date:       "2026-03-14", // Saturday
			pattern:    weekdaysOnly,
			wantState:  StateUnavailable,
			wantSource: SourcePattern,
		},
		{
			name:       "pattern allows wednesday",
			date:       "2026-03-11", // Wednesday
			pattern:    weekdaysOnly,
			wantState:  StateUnset,
			wantSource: SourceNone,
		},
		{
			name:       "pattern wins over feed",
			date:       "2026-03-14", // Saturday
			pattern:    weekdaysOnly,
			feedBusy:   NewDateSet("2026-03-14"),
			wantState:  StateUnavailable,
			wantSource: SourcePattern,
		},
		{
			name:       "feed busy date",
			date:       "2026-03-11",
			feedBusy:   NewDateSet("2026-03-11"),
			wantState:  StateUnavailable,
			wantSource: SourceExternalFeed,
		},
		{
			name:       "manual restores feed-busy date",
			date:       "2026-03-11",
			manual:     ManualOverrides{"2026-03-11": StateAvailable},
			feedBusy:   NewDateSet("2026-03-11"),
			wantState:  StateAvailable,
			wantSource: SourceManual,
		},
		{
			name:       "nothing set",
			date:       "2026-03-11",
			wantState:  StateUnset,
			wantSource: SourceNone,
		},
		{
			name:       "malformed date degrades to unset",
			date:       "2026-02-30",
			manual:     ManualOverrides{"2026-02-30": StateAvailable},
			wantState:  StateUnset,
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.date, tt.manual, tt.pattern, tt.feedBusy, tt.booked)
			if got.State != tt.wantState || got.Source != tt.wantSource {
				t.Errorf("Resolve(%s) = %s/%s, want %s/%s",
					tt.date, got.State, got.Source, tt.wantState, tt.wantSource)
			}
			if got.Date != tt.date {
				t.Errorf("Date = %q, want %q", got.Date, tt.date)
			}
		})
	}
}

// Pattern restores scenario from the portal: a weekday-only pattern blocks
// Saturday 2026-03-14 until a manual override flips it back.
func TestResolvePatternSubtractsManualRestores(t *testing.T) {
	date := "2026-03-14"

	before := Resolve(date, ManualOverrides{}, weekdaysOnly, nil, nil)
	if before.State != StateUnavailable || before.Source != SourcePattern {
		t.Fatalf("before override: %s/%s", before.State, before.Source)
	}

	after := Resolve(date, ManualOverrides{date: StateAvailable}, weekdaysOnly, nil, nil)
	if after.State != StateAvailable || after.Source != SourceManual {
		t.Fatalf("after override: %s/%s", after.State, after.Source)
	}
}

// Booked always wins no matter what the other three layers say.
func TestResolveBookedAlwaysWins(t *testing.T) {
	booked := NewDateSet("2026-03-10")
	manuals := []ManualOverrides{
		nil,
		{"2026-03-10": StateAvailable},
		{"2026-03-10": StateUnavailable},
	}
	patterns := []WeeklyPattern{{}, weekdaysOnly}
	feeds := []DateSet{nil, NewDateSet("2026-03-10")}

	for _, m := range manuals {
		for _, p := range patterns {
			for _, f := range feeds {
				got := Resolve("2026-03-10", m, p, f, booked)
				if got.Source != SourceBooked || got.State != StateUnavailable {
					t.Fatalf("booked not honored with manual=%v pattern=%v feed=%v: %s/%s",
						m, p, f, got.State, got.Source)
				}
			}
		}
	}
}

// Pattern and feed may only subtract availability.
func TestResolvePatternAndFeedOnlySubtract(t *testing.T) {
	dates := dateutil.EachDate(dateutil.Window{Start: "2026-03-01", End: "2026-03-31"})
	feedBusy := NewDateSet("2026-03-03", "2026-03-17")

	for _, d := range dates {
		got := Resolve(d, nil, weekdaysOnly, feedBusy, nil)
		if got.Source == SourcePattern || got.Source == SourceExternalFeed {
			if got.State != StateUnavailable {
				t.Fatalf("%s: source %s produced state %s", d, got.Source, got.State)
			}
		}
	}
}

func TestResolveIdempotent(t *testing.T) {
	manual := ManualOverrides{"2026-03-12": StateUnavailable}
	feedBusy := NewDateSet("2026-03-13")
	booked := NewDateSet("2026-03-16")

	for _, d := range []string{"2026-03-12", "2026-03-13", "2026-03-14", "2026-03-16"} {
		first := Resolve(d, manual, weekdaysOnly, feedBusy, booked)
		second := Resolve(d, manual, weekdaysOnly, feedBusy, booked)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("%s: %+v != %+v", d, first, second)
		}
	}
}

func TestResolveLayers(t *testing.T) {
	l := Layers{
		Manual: ManualOverrides{"2026-03-14": StateAvailable},
		// Not normalized on purpose: enabled with no weekdays means disabled.
		Pattern: WeeklyPattern{Enabled: true},
		Feed:    FeedSnapshot{BusyDates: []string{"2026-03-13"}},
		Booked:  NewDateSet("2026-03-16"),
	}

	if got := ResolveLayers("2026-03-14", l); got.Source != SourceManual {
		t.Errorf("manual date: %s", got.Source)
	}
	if got := ResolveLayers("2026-03-13", l); got.Source != SourceExternalFeed {
		t.Errorf("feed date: %s", got.Source)
	}
	if got := ResolveLayers("2026-03-16", l); got.Source != SourceBooked {
		t.Errorf("booked date: %s", got.Source)
	}
	// An empty-but-enabled pattern must not block anything.
	if got := ResolveLayers("2026-03-15", l); got.State != StateUnset {
		t.Errorf("sunday with degenerate pattern: %s/%s", got.State, got.Source)
	}
}
