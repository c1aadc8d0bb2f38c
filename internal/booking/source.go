// Package booking reads confirmed bookings from the scheduling database.
// Bookings form the top, non-overridable resolution layer; this package only
// ever reads them.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
)

// Source supplies the booked layer for a worker over a date window.
type Source interface {
	BookedDays(ctx context.Context, workerID string, win dateutil.Window) (availability.DateSet, map[string][]string, error)
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresSource reads the bookings table directly.
type PostgresSource struct {
	pool rowQuerier
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresSource{pool: pool}
}

func newPostgresSourceWithQuerier(q rowQuerier) *PostgresSource {
	if q == nil {
		panic("booking: querier required")
	}
	return &PostgresSource{pool: q}
}

// BookedDays returns the set of dates with at least one confirmed booking in
// the window, plus the booking titles per date in start-time order. Cancelled
// bookings never block a day.
func (s *PostgresSource) BookedDays(ctx context.Context, workerID string, win dateutil.Window) (availability.DateSet, map[string][]string, error) {
	query := `
		SELECT booked_on, title
		FROM bookings
		WHERE worker_id = $1
		  AND status = 'confirmed'
		  AND booked_on BETWEEN $2 AND $3
		ORDER BY booked_on, starts_at
	`
	rows, err := s.pool.Query(ctx, query, workerID, win.Start, win.End)
	if err != nil {
		return nil, nil, fmt.Errorf("booking: query booked days: %w", err)
	}
	defer rows.Close()

	booked := availability.DateSet{}
	labels := map[string][]string{}
	for rows.Next() {
		var (
			bookedOn time.Time
			title    string
		)
		if err := rows.Scan(&bookedOn, &title); err != nil {
			return nil, nil, fmt.Errorf("booking: scan booked day: %w", err)
		}
		date := dateutil.FormatDateKey(bookedOn)
		booked[date] = struct{}{}
		if title != "" {
			labels[date] = append(labels[date], title)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("booking: read booked days: %w", err)
	}
	return booked, labels, nil
}
