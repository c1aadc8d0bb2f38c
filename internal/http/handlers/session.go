package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
	"github.com/staffcal/staffcal/internal/session"
)

// sessionManager keeps one live edit session per worker. Sessions are
// created lazily, seeded from the store, and live until the process exits;
// their optimistic state converges with the store through their own saves.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*session.Session)}
}

func (h *AvailabilityHandler) workerSession(r *http.Request, workerID string) (*session.Session, error) {
	h.sessions.mu.Lock()
	if s, ok := h.sessions.sessions[workerID]; ok {
		h.sessions.mu.Unlock()
		return s, nil
	}
	h.sessions.mu.Unlock()

	// Seed outside the lock; a racing request may build a duplicate, in
	// which case the first one stored wins.
	ctx := r.Context()
	initial, err := h.store.ManualOverrides(ctx, workerID)
	if err != nil {
		return nil, err
	}
	booked := availability.DateSet{}
	if h.booking != nil {
		booked, _, err = h.booking.BookedDays(ctx, workerID, dateutil.NormalizeWindow(nil))
		if err != nil {
			return nil, err
		}
	}

	s := session.New(workerID, h.store, session.Options{
		Initial:     initial,
		Booked:      booked,
		SaveTimeout: h.SaveTimeout,
		Logger:      h.logger,
		Metrics:     h.metrics,
	})

	h.sessions.mu.Lock()
	defer h.sessions.mu.Unlock()
	if existing, ok := h.sessions.sessions[workerID]; ok {
		return existing, nil
	}
	h.sessions.sessions[workerID] = s
	return s, nil
}

type toggleRequest struct {
	Date string `json:"date"`
}

type cellStatusResponse struct {
	Date   string             `json:"date"`
	Status session.CellStatus `json:"status"`
	Dirty  int                `json:"dirty"`
}

// POST /availability/{workerID}/session/toggle
func (h *AvailabilityHandler) SessionToggle(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	s, err := h.workerSession(r, workerID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	if _, err := s.Toggle(r.Context(), req.Date); err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidDate):
			writeError(w, http.StatusBadRequest, "invalid date")
		case errors.Is(err, session.ErrDateBooked):
			writeError(w, http.StatusConflict, "date is booked")
		default:
			h.serverError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, cellStatusResponse{
		Date:   req.Date,
		Status: s.Status(req.Date),
		Dirty:  s.Dirty(),
	})
}

// GET /availability/{workerID}/session/status?date=
func (h *AvailabilityHandler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	s, err := h.workerSession(r, workerID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	if date := r.URL.Query().Get("date"); date != "" {
		writeJSON(w, http.StatusOK, cellStatusResponse{
			Date:   date,
			Status: s.Status(date),
			Dirty:  s.Dirty(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dirty":     s.Dirty(),
		"overrides": s.Overrides(),
	})
}

// POST /availability/{workerID}/session/save-all
func (h *AvailabilityHandler) SessionSaveAll(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	s, err := h.workerSession(r, workerID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if err := s.SaveAll(r.Context()); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "dirty": s.Dirty()})
}
