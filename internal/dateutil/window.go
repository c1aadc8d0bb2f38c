package dateutil

import (
	"net/url"
	"time"
)

// DefaultHorizonMonths is how far past the current month the fallback window
// extends when callers supply no usable bounds.
const DefaultHorizonMonths = 24

// Window is the canonical inclusive date range every downstream component
// works with. Heterogeneous upstream shapes are converted exactly once, in
// NormalizeWindow.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// startAliases and endAliases are the key names upstream callers have been
// observed to use for window bounds.
var (
	startAliases = []string{"start", "from", "begin", "start_date", "startDate"}
	endAliases   = []string{"end", "to", "until", "end_date", "endDate"}
)

// NormalizeWindow converts any of the supported bound shapes into an
// ordered, valid Window. It never fails: a missing or malformed bound is
// replaced with its default (first day of the current month for start, last
// day of the month DefaultHorizonMonths later for end), and reversed bounds
// are swapped.
//
// Supported shapes: Window, *Window, url.Values, map[string]string,
// map[string]any (values may be strings, time.Time, or *time.Time), and
// 2-element string slices/arrays interpreted as [start, end].
func NormalizeWindow(raw any) Window {
	return normalizeWindowAt(raw, time.Now())
}

func normalizeWindowAt(raw any, now time.Time) Window {
	defStart, defEnd := defaultBounds(now)

	start, end := extractBounds(raw)
	if !IsValidDateKey(start) {
		start = defStart
	}
	if !IsValidDateKey(end) {
		end = defEnd
	}
	if start > end {
		start, end = end, start
	}
	return Window{Start: start, End: end}
}

func defaultBounds(now time.Time) (string, string) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	// Last day of the month DefaultHorizonMonths after the current one.
	last := first.AddDate(0, DefaultHorizonMonths+1, -1)
	return FormatDateKey(first), FormatDateKey(last)
}

func extractBounds(raw any) (string, string) {
	switch v := raw.(type) {
	case nil:
		return "", ""
	case Window:
		return v.Start, v.End
	case *Window:
		if v == nil {
			return "", ""
		}
		return v.Start, v.End
	case url.Values:
		return firstAlias(func(k string) (any, bool) {
			if vals, ok := v[k]; ok && len(vals) > 0 {
				return vals[0], true
			}
			return nil, false
		})
	case map[string]string:
		return firstAlias(func(k string) (any, bool) {
			s, ok := v[k]
			return s, ok
		})
	case map[string]any:
		return firstAlias(func(k string) (any, bool) {
			val, ok := v[k]
			return val, ok
		})
	case [2]string:
		return v[0], v[1]
	case []string:
		if len(v) >= 2 {
			return v[0], v[1]
		}
		return "", ""
	default:
		return "", ""
	}
}

func firstAlias(lookup func(key string) (any, bool)) (string, string) {
	var start, end string
	for _, k := range startAliases {
		if v, ok := lookup(k); ok {
			if s := coerceDateKey(v); s != "" {
				start = s
				break
			}
		}
	}
	for _, k := range endAliases {
		if v, ok := lookup(k); ok {
			if s := coerceDateKey(v); s != "" {
				end = s
				break
			}
		}
	}
	return start, end
}

// coerceDateKey turns a bound value into a date key. Rich values (time.Time,
// RFC3339 strings) are truncated to their calendar date.
func coerceDateKey(v any) string {
	switch t := v.(type) {
	case string:
		if IsValidDateKey(t) {
			return t
		}
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return FormatDateKey(ts)
		}
		return ""
	case time.Time:
		return FormatDateKey(t)
	case *time.Time:
		if t == nil {
			return ""
		}
		return FormatDateKey(*t)
	default:
		return ""
	}
}

// DateInWindow reports whether d falls inside w, inclusive. Malformed input
// fails closed.
func DateInWindow(d string, w Window) bool {
	if !IsValidDateKey(d) || !IsValidDateKey(w.Start) || !IsValidDateKey(w.End) {
		return false
	}
	return d >= w.Start && d <= w.End
}

// EachDate returns every date key in w, inclusive, in ascending order.
// An invalid window yields nil.
func EachDate(w Window) []string {
	start, err := ParseDateKey(w.Start)
	if err != nil {
		return nil
	}
	end, err := ParseDateKey(w.End)
	if err != nil || end.Before(start) {
		return nil
	}

	out := make([]string, 0, int(end.Sub(start).Hours()/24)+1)
	for t := start; !t.After(end); t = t.AddDate(0, 0, 1) {
		out = append(out, FormatDateKey(t))
	}
	return out
}
