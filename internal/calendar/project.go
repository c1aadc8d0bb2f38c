package calendar

import (
	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
)

// ProjectWindow resolves every date in the window, inclusive, and attaches
// any same-day booked-event labels. It prepares the layer lookups once and
// calls the resolver exactly once per date, so the whole projection is
// O(days in window).
func ProjectWindow(window dateutil.Window, layers availability.Layers, labels map[string][]string) map[string]availability.ResolvedDay {
	pattern := layers.Pattern.Normalized()
	feedBusy := layers.Feed.BusySet()

	dates := dateutil.EachDate(window)
	out := make(map[string]availability.ResolvedDay, len(dates))
	for _, d := range dates {
		day := availability.Resolve(d, layers.Manual, pattern, feedBusy, layers.Booked)
		if titles := labels[d]; len(titles) > 0 {
			day.EventLabels = titles
		}
		out[d] = day
	}
	return out
}

// MonthsInWindow returns every month key touched by the window, ascending.
func MonthsInWindow(window dateutil.Window) []string {
	months, _ := dateutil.GroupByMonth(dateutil.EachDate(window))
	return months
}

// DefaultOpenMonth picks the month a UI should expand by default: the month
// containing today when present, otherwise the earliest month. Returns ""
// for an empty list.
func DefaultOpenMonth(months []string, today string) string {
	if len(months) == 0 {
		return ""
	}
	current := dateutil.MonthOf(today)
	for _, m := range months {
		if m == current {
			return m
		}
	}
	earliest := months[0]
	for _, m := range months[1:] {
		if m < earliest {
			earliest = m
		}
	}
	return earliest
}
