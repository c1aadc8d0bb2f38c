package calendar

import (
	"reflect"
	"testing"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
)

func TestProjectWindow(t *testing.T) {
	window := dateutil.Window{Start: "2026-03-09", End: "2026-03-15"} // Mon..Sun
	layers := availability.Layers{
		Manual:  availability.ManualOverrides{"2026-03-11": availability.StateUnavailable},
		Pattern: availability.WeeklyPattern{Enabled: true, AllowedWeekdays: []int{1, 2, 3, 4, 5}},
		Feed:    availability.FeedSnapshot{BusyDates: []string{"2026-03-12"}},
		Booked:  availability.NewDateSet("2026-03-10"),
	}
	labels := map[string][]string{
		"2026-03-10": {"Spring Gala", "Vendor walkthrough"},
	}

	got := ProjectWindow(window, layers, labels)

	if len(got) != 7 {
		t.Fatalf("resolved %d days, want 7", len(got))
	}

	checks := []struct {
		date   string
		state  availability.State
		source availability.Source
		labels []string
	}{
		{"2026-03-09", availability.StateUnset, availability.SourceNone, nil},
		{"2026-03-10", availability.StateUnavailable, availability.SourceBooked, []string{"Spring Gala", "Vendor walkthrough"}},
		{"2026-03-11", availability.StateUnavailable, availability.SourceManual, nil},
		{"2026-03-12", availability.StateUnavailable, availability.SourceExternalFeed, nil},
		{"2026-03-14", availability.StateUnavailable, availability.SourcePattern, nil}, // Saturday
		{"2026-03-15", availability.StateUnavailable, availability.SourcePattern, nil}, // Sunday
	}
	for _, c := range checks {
		day, ok := got[c.date]
		if !ok {
			t.Fatalf("missing date %s", c.date)
		}
		if day.State != c.state || day.Source != c.source {
			t.Errorf("%s = %s/%s, want %s/%s", c.date, day.State, day.Source, c.state, c.source)
		}
		if !reflect.DeepEqual(day.EventLabels, c.labels) {
			t.Errorf("%s labels = %v, want %v", c.date, day.EventLabels, c.labels)
		}
	}
}

func TestProjectWindowInvalidWindow(t *testing.T) {
	got := ProjectWindow(dateutil.Window{Start: "bad", End: "2026-03-15"}, availability.Layers{}, nil)
	if len(got) != 0 {
		t.Errorf("expected empty projection, got %d entries", len(got))
	}
}

func TestMonthsInWindow(t *testing.T) {
	got := MonthsInWindow(dateutil.Window{Start: "2026-01-15", End: "2026-03-02"})
	want := []string{"2026-01", "2026-02", "2026-03"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("months = %v, want %v", got, want)
	}
}

func TestDefaultOpenMonth(t *testing.T) {
	months := []string{"2026-01", "2026-02", "2026-03"}

	tests := []struct {
		name   string
		months []string
		today  string
		want   string
	}{
		{"today's month present", months, "2026-02-14", "2026-02"},
		{"today before window", months, "2025-12-25", "2026-01"},
		{"today after window", months, "2026-06-01", "2026-01"},
		{"today malformed", months, "soon", "2026-01"},
		{"unsorted list", []string{"2026-03", "2026-01"}, "2027-01-01", "2026-01"},
		{"empty list", nil, "2026-02-14", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultOpenMonth(tt.months, tt.today); got != tt.want {
				t.Errorf("DefaultOpenMonth = %q, want %q", got, tt.want)
			}
		})
	}
}
