// Package dateutil provides calendar-date keys ("YYYY-MM-DD"), month keys
// ("YYYY-MM"), and window normalization for the availability engine. Date
// keys are timezone-less; the fixed-width format makes string comparison
// equivalent to chronological comparison.
package dateutil

import (
	"sort"
	"time"
)

const (
	// DateKeyLayout is the canonical calendar-date format.
	DateKeyLayout = "2006-01-02"
	// MonthKeyLayout is the canonical month format.
	MonthKeyLayout = "2006-01"
)

// IsValidDateKey reports whether s is a real calendar date in YYYY-MM-DD
// form. Dates that match the shape but do not exist (e.g. 2026-02-30) are
// rejected.
func IsValidDateKey(s string) bool {
	_, err := time.Parse(DateKeyLayout, s)
	return err == nil
}

// IsValidMonthKey reports whether s is a YYYY-MM month key.
func IsValidMonthKey(s string) bool {
	_, err := time.Parse(MonthKeyLayout, s)
	return err == nil
}

// ParseDateKey parses a date key into a UTC midnight time.Time.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse(DateKeyLayout, s)
}

// FormatDateKey renders t as a date key.
func FormatDateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// MonthOf returns the month key of a date key, or "" if d is invalid.
func MonthOf(d string) string {
	t, err := ParseDateKey(d)
	if err != nil {
		return ""
	}
	return t.Format(MonthKeyLayout)
}

// Weekday returns the weekday of a date key (Sunday = 0). The second return
// value is false when d is not a valid date.
func Weekday(d string) (time.Weekday, bool) {
	t, err := ParseDateKey(d)
	if err != nil {
		return 0, false
	}
	return t.Weekday(), true
}

// AddDays returns the date key n days after d, or "" if d is invalid.
func AddDays(d string, n int) string {
	t, err := ParseDateKey(d)
	if err != nil {
		return ""
	}
	return FormatDateKey(t.AddDate(0, 0, n))
}

// DaysInMonth returns the number of days in a month key, or 0 if the key is
// invalid.
func DaysInMonth(month string) int {
	t, err := time.Parse(MonthKeyLayout, month)
	if err != nil {
		return 0
	}
	return t.AddDate(0, 1, -1).Day()
}

// GroupByMonth buckets valid date keys by month. It returns the month keys
// in ascending order together with the bucket map; dates within a bucket are
// sorted ascending. Invalid dates are dropped.
func GroupByMonth(dates []string) ([]string, map[string][]string) {
	buckets := make(map[string][]string)
	for _, d := range dates {
		m := MonthOf(d)
		if m == "" {
			continue
		}
		buckets[m] = append(buckets[m], d)
	}

	months := make([]string, 0, len(buckets))
	for m := range buckets {
		sort.Strings(buckets[m])
		months = append(months, m)
	}
	sort.Strings(months)
	return months, buckets
}
