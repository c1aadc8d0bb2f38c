package calendar

import (
	"testing"
	"time"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
)

// February 2026 starts on a Sunday and has 28 days: exactly four full weeks
// with no padding anywhere.
func TestBuildMonthMatrixFebruary2026(t *testing.T) {
	m := BuildMonthMatrix("2026-02")

	if len(m.Weeks) != 4 {
		t.Fatalf("weeks = %d, want 4", len(m.Weeks))
	}

	day := 1
	for wi, week := range m.Weeks {
		for ci, cell := range week {
			if cell.IsPadding() {
				t.Fatalf("unexpected padding at week %d cell %d", wi, ci)
			}
			want := dateutil.FormatDateKey(time.Date(2026, time.February, day, 0, 0, 0, 0, time.UTC))
			if cell.Date != want {
				t.Fatalf("week %d cell %d = %q, want %q", wi, ci, cell.Date, want)
			}
			day++
		}
	}
	if day != 29 {
		t.Fatalf("placed %d days, want 28", day-1)
	}
}

func TestBuildMonthMatrixWeekdayAlignment(t *testing.T) {
	// March 2026 starts on a Sunday; July 2026 starts on a Wednesday.
	tests := []struct {
		month     string
		leadPad   int
		weeks     int
		firstDate string
		lastDate  string
	}{
		{"2026-03", 0, 5, "2026-03-01", "2026-03-31"},
		{"2026-07", 3, 5, "2026-07-01", "2026-07-31"},
		{"2026-05", 5, 6, "2026-05-01", "2026-05-31"}, // Friday start, 31 days
	}
	for _, tt := range tests {
		t.Run(tt.month, func(t *testing.T) {
			m := BuildMonthMatrix(tt.month)
			if len(m.Weeks) != tt.weeks {
				t.Fatalf("weeks = %d, want %d", len(m.Weeks), tt.weeks)
			}
			for i := 0; i < tt.leadPad; i++ {
				if !m.Weeks[0][i].IsPadding() {
					t.Errorf("cell %d should be padding", i)
				}
			}
			if got := m.Weeks[0][tt.leadPad].Date; got != tt.firstDate {
				t.Errorf("first cell = %q, want %q", got, tt.firstDate)
			}
			last := lastDatedCell(t, m)
			if last != tt.lastDate {
				t.Errorf("last cell = %q, want %q", last, tt.lastDate)
			}
		})
	}
}

func TestBuildMonthMatrixInvalidMonth(t *testing.T) {
	for _, month := range []string{"", "2026-13", "junk", "2026-02-01"} {
		m := BuildMonthMatrix(month)
		if len(m.Weeks) != 0 {
			t.Errorf("BuildMonthMatrix(%q) should have no weeks, got %d", month, len(m.Weeks))
		}
	}
}

func TestEnrich(t *testing.T) {
	m := BuildMonthMatrix("2026-03")
	window := dateutil.Window{Start: "2026-03-10", End: "2026-03-20"}
	resolved := map[string]availability.ResolvedDay{
		"2026-03-10": {Date: "2026-03-10", State: availability.StateUnavailable, Source: availability.SourceBooked, EventLabels: []string{"Spring Gala"}},
		"2026-03-14": {Date: "2026-03-14", State: availability.StateAvailable, Source: availability.SourceManual},
	}

	got := m.Enrich(resolved, window)

	cell := findCell(t, got, "2026-03-10")
	if !cell.InWindow {
		t.Error("2026-03-10 should be in window")
	}
	if cell.Resolved == nil || cell.Resolved.Source != availability.SourceBooked {
		t.Errorf("2026-03-10 resolved = %+v", cell.Resolved)
	}

	out := findCell(t, got, "2026-03-05")
	if out.InWindow {
		t.Error("2026-03-05 should be outside the window")
	}
	if out.Resolved != nil {
		t.Errorf("2026-03-05 should be unresolved, got %+v", out.Resolved)
	}

	// Original matrix must be untouched.
	orig := findCell(t, m, "2026-03-10")
	if orig.Resolved != nil || orig.InWindow {
		t.Error("Enrich mutated its receiver")
	}
}

func lastDatedCell(t *testing.T, m MonthMatrix) string {
	t.Helper()
	last := ""
	for _, week := range m.Weeks {
		for _, cell := range week {
			if !cell.IsPadding() {
				last = cell.Date
			}
		}
	}
	if last == "" {
		t.Fatal("matrix has no dated cells")
	}
	return last
}

func findCell(t *testing.T, m MonthMatrix, date string) Cell {
	t.Helper()
	for _, week := range m.Weeks {
		for _, cell := range week {
			if cell.Date == date {
				return cell
			}
		}
	}
	t.Fatalf("cell %s not found", date)
	return Cell{}
}
