// Package session coordinates interactive editing of a worker's manual
// override layer: tri-state cycling per calendar cell, one asynchronous
// save per toggle, and tracking of in-flight and failed saves so the UI can
// gate navigation while edits are unsettled.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
	"github.com/staffcal/staffcal/internal/observability/metrics"
	"github.com/staffcal/staffcal/pkg/logging"
)

var (
	// ErrInvalidDate is returned for a toggle on a malformed date key.
	ErrInvalidDate = errors.New("session: invalid date key")
	// ErrDateBooked is returned for a toggle on a booked date; the booking
	// layer is non-overridable, so editing is disabled there.
	ErrDateBooked = errors.New("session: date is booked")
)

const defaultSaveTimeout = 10 * time.Second

// Cycle advances an availability state one step through the fixed
// Unset -> Available -> Unavailable -> Unset loop. Unknown states restart
// the cycle at Available.
func Cycle(s availability.State) availability.State {
	switch s {
	case availability.StateAvailable:
		return availability.StateUnavailable
	case availability.StateUnavailable:
		return availability.StateUnset
	default:
		return availability.StateAvailable
	}
}

// Saver persists override changes. *availability.Store satisfies it.
type Saver interface {
	SetOverride(ctx context.Context, workerID, date string, state availability.State) error
	SetManualOverrides(ctx context.Context, workerID string, m availability.ManualOverrides) error
}

// CellStatus is the UI-facing view of one calendar cell's save state.
type CellStatus struct {
	State   availability.State `json:"state"`
	Pending bool               `json:"pending"`
	Failed  bool               `json:"failed"`
}

type cell struct {
	seq      uint64 // bumped on every toggle of this date
	inflight int
	failed   bool
}

// Session is the per-worker edit session. The displayed value is always the
// optimistic one: it updates before the save round-trip completes, stale
// responses are discarded, and a failed save keeps the optimistic value and
// only flips the failed flag (the user's intent is preserved locally; a
// banner asks for a retry).
//
// Safe for concurrent use; save goroutines for distinct dates run
// concurrently, saves for the same date are ordered by sequence number on
// submission and reconciled by that number on response.
type Session struct {
	workerID string
	saver    Saver
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.EngineMetrics

	mu        sync.Mutex
	overrides availability.ManualOverrides
	booked    availability.DateSet
	cells     map[string]*cell
	wg        sync.WaitGroup
}

// Options configures a Session.
type Options struct {
	// Initial seeds the optimistic override map, normally from the store.
	Initial availability.ManualOverrides
	// Booked marks dates whose cells refuse manual edits.
	Booked availability.DateSet
	// SaveTimeout bounds each save request; an expired save counts as
	// failed. Zero means the default.
	SaveTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.EngineMetrics
}

// New creates an edit session for one worker.
func New(workerID string, saver Saver, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	overrides := make(availability.ManualOverrides, len(opts.Initial))
	for d, s := range opts.Initial.Sanitized() {
		overrides[d] = s
	}
	return &Session{
		workerID:  workerID,
		saver:     saver,
		timeout:   opts.SaveTimeout,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		overrides: overrides,
		booked:    opts.Booked,
		cells:     make(map[string]*cell),
	}
}

// Toggle advances the cell one step, applies the new value optimistically,
// and issues exactly one asynchronous save. It returns the new optimistic
// state immediately; the save settles in the background.
func (s *Session) Toggle(ctx context.Context, date string) (availability.State, error) {
	if !dateutil.IsValidDateKey(date) {
		return availability.StateUnset, ErrInvalidDate
	}
	if s.booked.Has(date) {
		return availability.StateUnavailable, ErrDateBooked
	}

	s.mu.Lock()
	current := availability.StateUnset
	if v, ok := s.overrides[date]; ok {
		current = v
	}
	next := Cycle(current)

	if next == availability.StateUnset {
		delete(s.overrides, date)
	} else {
		s.overrides[date] = next
	}

	c, ok := s.cells[date]
	if !ok {
		c = &cell{}
		s.cells[date] = c
	}
	c.seq++
	c.inflight++
	seq := c.seq
	s.mu.Unlock()

	s.wg.Add(1)
	go s.save(ctx, date, next, seq)

	return next, nil
}

// save performs one background save and reconciles the result against the
// cell's current sequence. The save is detached from the caller's
// cancellation so an abandoned request still settles, but keeps a bounded
// timeout of its own.
func (s *Session) save(ctx context.Context, date string, state availability.State, seq uint64) {
	defer s.wg.Done()

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	err := s.saver.SetOverride(sctx, s.workerID, date, state)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cells[date]
	c.inflight--

	if seq != c.seq {
		// A newer toggle superseded this save; its response no longer
		// matches the cell's optimistic value. Discard it to avoid
		// flicker, whatever the outcome was.
		s.metrics.ObserveSave("stale")
		s.logger.Debug("session: stale save response discarded",
			"worker_id", s.workerID, "date", date, "seq", seq)
		return
	}

	if err != nil {
		c.failed = true
		s.metrics.ObserveSave("failed")
		s.logger.Error("session: save failed",
			"worker_id", s.workerID, "date", date, "state", string(state), "error", err)
		return
	}

	c.failed = false
	s.metrics.ObserveSave("ok")
}

// StateOf returns the current optimistic state for a date.
func (s *Session) StateOf(date string) availability.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.overrides[date]; ok {
		return v
	}
	return availability.StateUnset
}

// Status returns the cell's optimistic state plus its pending/failed flags.
func (s *Session) Status(date string) CellStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := CellStatus{State: availability.StateUnset}
	if v, ok := s.overrides[date]; ok {
		st.State = v
	}
	if c, ok := s.cells[date]; ok {
		st.Pending = c.inflight > 0
		st.Failed = c.failed
	}
	return st
}

// Overrides returns a copy of the optimistic override map.
func (s *Session) Overrides() availability.ManualOverrides {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(availability.ManualOverrides, len(s.overrides))
	for d, v := range s.overrides {
		out[d] = v
	}
	return out
}

// Dirty counts cells with a pending or failed save. A non-zero count gates
// page unload: the UI must prompt before navigating away.
func (s *Session) Dirty() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.cells {
		if c.inflight > 0 || c.failed {
			n++
		}
	}
	return n
}

// SaveAll submits the whole optimistic override map as one replace request
// (last writer wins server-side). It runs synchronously and is independent
// of any per-cell saves still in flight; the two paths may race and the
// last request to complete wins. On success every failed flag is cleared.
func (s *Session) SaveAll(ctx context.Context) error {
	s.mu.Lock()
	snapshot := make(availability.ManualOverrides, len(s.overrides))
	for d, v := range s.overrides {
		snapshot[d] = v
	}
	s.mu.Unlock()

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.saver.SetManualOverrides(sctx, s.workerID, snapshot); err != nil {
		s.metrics.ObserveBulkSave("failed")
		s.logger.Error("session: bulk save failed", "worker_id", s.workerID, "error", err)
		return err
	}

	s.mu.Lock()
	for _, c := range s.cells {
		c.failed = false
	}
	s.mu.Unlock()

	s.metrics.ObserveBulkSave("ok")
	return nil
}

// Wait blocks until every issued save has settled. Intended for tests and
// orderly teardown, not the toggle path.
func (s *Session) Wait() {
	s.wg.Wait()
}
