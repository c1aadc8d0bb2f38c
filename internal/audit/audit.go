// Package audit keeps an immutable trail of availability edits.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/staffcal/staffcal/pkg/logging"
)

// Event represents one recorded availability change.
type Event struct {
	ID        string    `json:"id"`
	WorkerID  string    `json:"worker_id"`
	Layer     string    `json:"layer"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes audit events to Postgres. It satisfies
// availability.ChangeListener so the store records every successful write.
type Service struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewService(db *sql.DB, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// LogEvent records one availability change.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO availability_audit_events (id, worker_id, layer, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.ExecContext(ctx, query, event.ID, event.WorkerID, event.Layer, event.CreatedAt); err != nil {
		return fmt.Errorf("audit: log event: %w", err)
	}
	return nil
}

// LayerChanged records the change, logging failures instead of propagating
// them: an audit outage must not block availability edits.
func (s *Service) LayerChanged(ctx context.Context, workerID, layer string) {
	if err := s.LogEvent(ctx, Event{WorkerID: workerID, Layer: layer}); err != nil {
		s.logger.Error("audit: record failed", "worker_id", workerID, "layer", layer, "error", err)
	}
}

// RecentEvents lists the latest audit events for a worker, newest first.
func (s *Service) RecentEvents(ctx context.Context, workerID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, layer, created_at
		FROM availability_audit_events
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.Layer, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, e)
	}
	if out == nil {
		out = []Event{}
	}
	return out, rows.Err()
}
