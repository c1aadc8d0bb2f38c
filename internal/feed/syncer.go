package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/staffcal/staffcal/internal/availability"
	"github.com/staffcal/staffcal/internal/dateutil"
	"github.com/staffcal/staffcal/internal/observability/metrics"
	"github.com/staffcal/staffcal/pkg/logging"
)

// ErrNoFeed is returned when a sync is requested for a worker without a
// configured feed URL.
var ErrNoFeed = errors.New("feed: worker has no feed URL configured")

const (
	defaultSyncTimeout = 15 * time.Second
	maxFeedBytes       = 10 << 20
)

// Syncer fetches a worker's ICS subscription and replaces their feed
// snapshot wholesale. A failed sync leaves the previous snapshot in place.
type Syncer struct {
	store   *availability.Store
	client  *http.Client
	logger  *logging.Logger
	metrics *metrics.EngineMetrics
	timeout time.Duration
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
	// Timeout bounds one sync end to end. Zero means the default.
	Timeout time.Duration
	Logger  *logging.Logger
	Metrics *metrics.EngineMetrics
}

func NewSyncer(store *availability.Store, opts SyncerOptions) *Syncer {
	if store == nil {
		panic("feed: store required")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultSyncTimeout}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSyncTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Syncer{
		store:   store,
		client:  opts.Client,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		timeout: opts.Timeout,
	}
}

// SyncNow fetches the worker's feed, extracts busy days over the default
// horizon, and stores the new snapshot. It returns the stored snapshot.
func (s *Syncer) SyncNow(ctx context.Context, workerID string) (availability.FeedSnapshot, error) {
	started := time.Now()
	snap, err := s.sync(ctx, workerID)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		s.metrics.ObserveFeedSync("failed", elapsed)
		s.logger.Error("feed sync failed", "worker_id", workerID, "error", err)
		return availability.FeedSnapshot{}, err
	}
	s.metrics.ObserveFeedSync("ok", elapsed)
	s.logger.Info("feed sync completed",
		"worker_id", workerID, "busy_days", len(snap.BusyDates), "duration_s", elapsed)
	return snap, nil
}

func (s *Syncer) sync(ctx context.Context, workerID string) (availability.FeedSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	settings, err := s.store.Settings(ctx, workerID)
	if err != nil {
		return availability.FeedSnapshot{}, err
	}
	if settings.FeedURL == "" {
		return availability.FeedSnapshot{}, ErrNoFeed
	}

	body, err := s.fetch(ctx, settings.FeedURL)
	if err != nil {
		return availability.FeedSnapshot{}, err
	}

	busy, err := BusyDates(body, dateutil.NormalizeWindow(nil))
	if err != nil {
		return availability.FeedSnapshot{}, err
	}

	now := time.Now().UTC()
	snap := availability.FeedSnapshot{BusyDates: busy, LastSyncedAt: &now}
	if err := s.store.SetFeedSnapshot(ctx, workerID, snap); err != nil {
		return availability.FeedSnapshot{}, err
	}
	return snap, nil
}

func (s *Syncer) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("feed: read body: %w", err)
	}
	return body, nil
}

// SyncAll syncs every worker with a configured feed, continuing past
// individual failures. It returns the number of successful syncs and the
// first error encountered, if any.
func (s *Syncer) SyncAll(ctx context.Context) (int, error) {
	workers, err := s.store.WorkersWithFeeds(ctx)
	if err != nil {
		return 0, err
	}
	var (
		ok       int
		firstErr error
	)
	for _, w := range workers {
		if _, err := s.SyncNow(ctx, w); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ok++
	}
	return ok, firstErr
}
