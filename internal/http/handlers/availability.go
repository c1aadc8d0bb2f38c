// Package handlers exposes the availability engine over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/staffcal/staffcal/internal/audit"
	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/booking"
	"github.com/staffcal/staffcal/internal/calendar"
	"github.com/staffcal/staffcal/internal/dateutil"
	"github.com/staffcal/staffcal/internal/feed"
	"github.com/staffcal/staffcal/internal/observability/metrics"
	"github.com/staffcal/staffcal/pkg/logging"
)

// AuditLog reads back the recorded availability changes for a worker.
// *audit.Service satisfies it.
type AuditLog interface {
	RecentEvents(ctx context.Context, workerID string, limit int) ([]audit.Event, error)
}

// AvailabilityHandler serves the per-worker calendar and layer-edit routes.
type AvailabilityHandler struct {
	store    *availability.Store
	booking  booking.Source
	syncer   *feed.Syncer
	logger   *logging.Logger
	metrics  *metrics.EngineMetrics
	sessions *sessionManager

	// SaveTimeout bounds each edit-session save. Zero means the session
	// package default.
	SaveTimeout time.Duration

	// Audit, when set, exposes the change trail at GET .../audit.
	Audit AuditLog
}

// NewAvailabilityHandler creates the handler. The booking source and syncer
// may be nil; the booked layer is then empty and feed sync returns 503.
func NewAvailabilityHandler(store *availability.Store, src booking.Source, syncer *feed.Syncer, logger *logging.Logger, m *metrics.EngineMetrics) *AvailabilityHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AvailabilityHandler{
		store:    store,
		booking:  src,
		syncer:   syncer,
		logger:   logger,
		metrics:  m,
		sessions: newSessionManager(),
	}
}

// Routes mounts the availability routes on a chi router.
func (h *AvailabilityHandler) Routes(r chi.Router) {
	r.Route("/availability/{workerID}", func(r chi.Router) {
		r.Get("/calendar", h.Calendar)
		r.Get("/layers", h.Layers)
		r.Get("/resolve/{date}", h.ResolveDate)
		r.Put("/overrides/{date}", h.PutOverride)
		r.Put("/overrides", h.PutOverrides)
		r.Put("/pattern", h.PutPattern)
		r.Post("/feed/sync", h.FeedSync)
		r.Get("/audit", h.AuditTrail)
		r.Post("/session/toggle", h.SessionToggle)
		r.Get("/session/status", h.SessionStatus)
		r.Post("/session/save-all", h.SessionSaveAll)
	})
}

type calendarResponse struct {
	WorkerID         string                 `json:"worker_id"`
	Window           dateutil.Window        `json:"window"`
	DefaultOpenMonth string                 `json:"default_open_month"`
	Months           []calendar.MonthMatrix `json:"months"`
}

// GET /availability/{workerID}/calendar?start&end
func (h *AvailabilityHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	win := dateutil.NormalizeWindow(r.URL.Query())

	layers, labels, err := h.collectLayers(r, workerID, win)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	resolved := calendar.ProjectWindow(win, layers, labels)
	h.metrics.ObserveProjection(len(resolved))

	months := calendar.MonthsInWindow(win)
	matrices := make([]calendar.MonthMatrix, 0, len(months))
	for _, m := range months {
		matrices = append(matrices, calendar.BuildMonthMatrix(m).Enrich(resolved, win))
	}

	today := dateutil.FormatDateKey(time.Now())
	writeJSON(w, http.StatusOK, calendarResponse{
		WorkerID:         workerID,
		Window:           win,
		DefaultOpenMonth: calendar.DefaultOpenMonth(months, today),
		Months:           matrices,
	})
}

type layersResponse struct {
	WorkerID string                       `json:"worker_id"`
	Booked   []string                     `json:"booked"`
	Labels   map[string][]string          `json:"booking_labels,omitempty"`
	Manual   availability.ManualOverrides `json:"manual_overrides"`
	Pattern  availability.WeeklyPattern   `json:"weekly_pattern"`
	Feed     availability.FeedSnapshot    `json:"feed_snapshot"`
	Settings availability.WorkerSettings  `json:"settings"`
}

// GET /availability/{workerID}/layers
func (h *AvailabilityHandler) Layers(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	win := dateutil.NormalizeWindow(r.URL.Query())

	layers, labels, err := h.collectLayers(r, workerID, win)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	settings, err := h.store.Settings(r.Context(), workerID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	booked := make([]string, 0, len(layers.Booked))
	for d := range layers.Booked {
		booked = append(booked, d)
	}
	sort.Strings(booked)

	writeJSON(w, http.StatusOK, layersResponse{
		WorkerID: workerID,
		Booked:   booked,
		Labels:   labels,
		Manual:   layers.Manual,
		Pattern:  layers.Pattern,
		Feed:     layers.Feed,
		Settings: settings,
	})
}

// GET /availability/{workerID}/resolve/{date}
func (h *AvailabilityHandler) ResolveDate(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	date := chi.URLParam(r, "date")
	if !dateutil.IsValidDateKey(date) {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	win := dateutil.Window{Start: date, End: date}
	layers, labels, err := h.collectLayers(r, workerID, win)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	day := availability.ResolveLayers(date, layers)
	day.EventLabels = labels[date]
	writeJSON(w, http.StatusOK, day)
}

type overrideRequest struct {
	State availability.State `json:"state"`
}

// PUT /availability/{workerID}/overrides/{date}
func (h *AvailabilityHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")
	date := chi.URLParam(r, "date")
	if !dateutil.IsValidDateKey(date) {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if !req.State.Valid() {
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}

	if h.booking != nil {
		booked, _, err := h.booking.BookedDays(r.Context(), workerID, dateutil.Window{Start: date, End: date})
		if err != nil {
			h.serverError(w, r, err)
			return
		}
		if booked.Has(date) {
			writeError(w, http.StatusConflict, "date is booked")
			return
		}
	}

	if err := h.store.SetOverride(r.Context(), workerID, date, req.State); err != nil {
		h.metrics.ObserveSave("failed")
		h.serverError(w, r, err)
		return
	}
	h.metrics.ObserveSave("ok")
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "date": date, "state": string(req.State)})
}

// PUT /availability/{workerID}/overrides
func (h *AvailabilityHandler) PutOverrides(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	var m availability.ManualOverrides
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := h.store.SetManualOverrides(r.Context(), workerID, m); err != nil {
		h.metrics.ObserveBulkSave("failed")
		h.serverError(w, r, err)
		return
	}
	h.metrics.ObserveBulkSave("ok")
	writeJSON(w, http.StatusOK, map[string]any{"status": "saved", "count": len(m.Sanitized())})
}

// PUT /availability/{workerID}/pattern
func (h *AvailabilityHandler) PutPattern(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	var p availability.WeeklyPattern
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := h.store.SetPattern(r.Context(), workerID, p); err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Normalized())
}

// POST /availability/{workerID}/feed/sync
func (h *AvailabilityHandler) FeedSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "feed sync not configured")
		return
	}
	workerID := chi.URLParam(r, "workerID")

	snap, err := h.syncer.SyncNow(r.Context(), workerID)
	if errors.Is(err, feed.ErrNoFeed) {
		writeError(w, http.StatusBadRequest, "no feed URL configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /availability/{workerID}/audit?limit
func (h *AvailabilityHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit trail not configured")
		return
	}
	workerID := chi.URLParam(r, "workerID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.Audit.RecentEvents(r.Context(), workerID, limit)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"worker_id": workerID, "events": events})
}

// collectLayers loads the stored layers and fills in the booked layer from
// the scheduling database when a booking source is wired.
func (h *AvailabilityHandler) collectLayers(r *http.Request, workerID string, win dateutil.Window) (availability.Layers, map[string][]string, error) {
	layers, err := h.store.Layers(r.Context(), workerID)
	if err != nil {
		return availability.Layers{}, nil, err
	}
	if h.booking == nil {
		return layers, nil, nil
	}
	booked, labels, err := h.booking.BookedDays(r.Context(), workerID, win)
	if err != nil {
		return availability.Layers{}, nil, err
	}
	layers.Booked = booked
	return layers, labels, nil
}

func (h *AvailabilityHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("availability request failed", "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
