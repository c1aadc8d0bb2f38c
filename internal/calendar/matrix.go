// Package calendar projects date windows into month-grid structures for
// display and editing. Geometry and availability are kept separate: a month
// matrix is built from the calendar alone and then enriched with resolved
// days.
package calendar

import (
	"time"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
)

// Cell is one slot of a month grid. A padding cell has an empty Date.
type Cell struct {
	Date     string                    `json:"date,omitempty"`
	InWindow bool                      `json:"in_window,omitempty"`
	Resolved *availability.ResolvedDay `json:"resolved,omitempty"`
}

// IsPadding reports whether the cell is leading/trailing filler.
func (c Cell) IsPadding() bool {
	return c.Date == ""
}

// Week is a fixed Sunday-first row of seven cells.
type Week [7]Cell

// MonthMatrix is an ordered sequence of weeks covering one month. It is
// rebuilt per render and never mutated in place.
type MonthMatrix struct {
	Month string `json:"month"`
	Weeks []Week `json:"weeks"`
}

// BuildMonthMatrix lays out the given "YYYY-MM" month as Sunday-first
// 7-wide rows with leading and trailing padding. Pure geometry: cells carry
// bare dates until enriched. An invalid month key yields a matrix with no
// weeks.
func BuildMonthMatrix(month string) MonthMatrix {
	first, err := time.Parse(dateutil.MonthKeyLayout, month)
	if err != nil {
		return MonthMatrix{Month: month}
	}

	days := dateutil.DaysInMonth(month)
	lead := int(first.Weekday()) // Sunday = 0, so this is the leading pad width
	rows := (lead + days + 6) / 7

	m := MonthMatrix{Month: month, Weeks: make([]Week, rows)}
	for day := 1; day <= days; day++ {
		idx := lead + day - 1
		m.Weeks[idx/7][idx%7] = Cell{
			Date: dateutil.FormatDateKey(first.AddDate(0, 0, day-1)),
		}
	}
	return m
}

// Enrich returns a copy of the matrix with each dated cell filled from the
// resolved map and flagged when it falls inside the window. Cells without a
// resolved entry keep a nil Resolved so they render blank.
func (m MonthMatrix) Enrich(resolved map[string]availability.ResolvedDay, window dateutil.Window) MonthMatrix {
	out := MonthMatrix{Month: m.Month, Weeks: make([]Week, len(m.Weeks))}
	for i, week := range m.Weeks {
		for j, cell := range week {
			if cell.IsPadding() {
				continue
			}
			enriched := Cell{
				Date:     cell.Date,
				InWindow: dateutil.DateInWindow(cell.Date, window),
			}
			if day, ok := resolved[cell.Date]; ok {
				d := day
				enriched.Resolved = &d
			}
			out.Weeks[i][j] = enriched
		}
	}
	return out
}
