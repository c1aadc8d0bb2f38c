// Package notify tells roster coordinators when a worker's availability
// inputs change, so downstream scheduling can react to edits.
package notify

import (
	"context"
	"fmt"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/pkg/logging"
)

// Service emails the scheduling inbox when an availability layer is edited.
// It satisfies availability.ChangeListener. Feed snapshot updates are
// machine-driven and periodic, so only human edits (overrides, pattern,
// settings) produce mail.
type Service struct {
	email  EmailSender
	inbox  string
	logger *logging.Logger
}

// NewService creates a notification service. With no sender or inbox
// configured the service logs changes and sends nothing.
func NewService(email EmailSender, inbox string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, inbox: inbox, logger: logger}
}

var layerSubjects = map[string]string{
	availability.LayerManual:   "manual day overrides",
	availability.LayerPattern:  "weekly pattern",
	availability.LayerSettings: "feed settings",
}

// LayerChanged sends a change notice for human-edited layers.
func (s *Service) LayerChanged(ctx context.Context, workerID, layer string) {
	subject, notify := layerSubjects[layer]
	if !notify {
		s.logger.Debug("notify: layer change not mailed", "worker_id", workerID, "layer", layer)
		return
	}
	if s.email == nil || s.inbox == "" {
		s.logger.Info("notify: availability changed", "worker_id", workerID, "layer", layer)
		return
	}

	msg := EmailMessage{
		To:      s.inbox,
		Subject: fmt.Sprintf("Availability updated: %s (%s)", workerID, subject),
		Body: fmt.Sprintf(
			"The %s for worker %s changed. Review the calendar if shifts in the affected range are already planned.",
			subject, workerID),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		s.logger.Error("notify: change notice failed", "worker_id", workerID, "layer", layer, "error", err)
	}
}
