package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/staffcal/staffcal/internal/dateutil"
	"github.com/staffcal/staffcal/pkg/logging"
)

// Layer names passed to change listeners.
const (
	LayerManual   = "manual_overrides"
	LayerPattern  = "weekly_pattern"
	LayerFeed     = "feed_snapshot"
	LayerSettings = "worker_settings"
)

// ChangeListener is invoked after every successful layer write. The
// surrounding profile-review workflow hangs off this hook; the store only
// calls it. Listener failures are logged and never fail the write.
type ChangeListener interface {
	LayerChanged(ctx context.Context, workerID, layer string)
}

// Store persists the per-worker availability layers in Redis, one key per
// worker per layer. Manual overrides live in a hash keyed by date so
// concurrent per-cell saves for distinct dates never clobber each other; the
// remaining layers are JSON blobs. The store performs shape validation only;
// all precedence logic lives in the resolver.
type Store struct {
	redis     *redis.Client
	listeners []ChangeListener
	logger    *logging.Logger
}

// NewStore creates an availability store.
func NewStore(redisClient *redis.Client, logger *logging.Logger, listeners ...ChangeListener) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{redis: redisClient, listeners: listeners, logger: logger}
}

func (s *Store) overridesKey(workerID string) string {
	return fmt.Sprintf("avail:overrides:%s", workerID)
}

func (s *Store) patternKey(workerID string) string {
	return fmt.Sprintf("avail:pattern:%s", workerID)
}

func (s *Store) feedKey(workerID string) string {
	return fmt.Sprintf("avail:feed:%s", workerID)
}

func (s *Store) settingsKey(workerID string) string {
	return fmt.Sprintf("avail:settings:%s", workerID)
}

// ManualOverrides returns the worker's override map, empty if none is
// stored. Entries with invalid dates or states are dropped on read so
// corrupted fields cannot leak past the store.
func (s *Store) ManualOverrides(ctx context.Context, workerID string) (ManualOverrides, error) {
	fields, err := s.redis.HGetAll(ctx, s.overridesKey(workerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("availability: get overrides: %w", err)
	}

	m := make(ManualOverrides, len(fields))
	for date, state := range fields {
		m[date] = State(state)
	}
	return m.Sanitized(), nil
}

// SetManualOverrides replaces the worker's whole override map (the bulk
// "save all" path, last writer wins).
func (s *Store) SetManualOverrides(ctx context.Context, workerID string, m ManualOverrides) error {
	clean := m.Sanitized()
	fields := make(map[string]string, len(clean))
	for date, state := range clean {
		fields[date] = string(state)
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.overridesKey(workerID))
	if len(fields) > 0 {
		pipe.HSet(ctx, s.overridesKey(workerID), fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("availability: set overrides: %w", err)
	}
	s.notify(ctx, workerID, LayerManual)
	return nil
}

// SetOverride writes a single date's override (the per-cell autosave path).
// StateUnset deletes the entry. Each date is its own hash field, so
// concurrent saves for distinct dates commute.
func (s *Store) SetOverride(ctx context.Context, workerID, date string, state State) error {
	if !dateutil.IsValidDateKey(date) {
		return fmt.Errorf("availability: set override: invalid date %q", date)
	}
	if !state.Valid() {
		return fmt.Errorf("availability: set override: invalid state %q", state)
	}

	var err error
	if state == StateUnset {
		err = s.redis.HDel(ctx, s.overridesKey(workerID), date).Err()
	} else {
		err = s.redis.HSet(ctx, s.overridesKey(workerID), date, string(state)).Err()
	}
	if err != nil {
		return fmt.Errorf("availability: set override: %w", err)
	}
	s.notify(ctx, workerID, LayerManual)
	return nil
}

// Pattern returns the worker's weekly pattern, disabled if none is stored.
func (s *Store) Pattern(ctx context.Context, workerID string) (WeeklyPattern, error) {
	data, err := s.redis.Get(ctx, s.patternKey(workerID)).Bytes()
	if err == redis.Nil {
		return WeeklyPattern{}, nil
	}
	if err != nil {
		return WeeklyPattern{}, fmt.Errorf("availability: get pattern: %w", err)
	}

	var p WeeklyPattern
	if err := json.Unmarshal(data, &p); err != nil {
		return WeeklyPattern{}, fmt.Errorf("availability: unmarshal pattern: %w", err)
	}
	return p.Normalized(), nil
}

// SetPattern writes the worker's weekly pattern, normalized.
func (s *Store) SetPattern(ctx context.Context, workerID string, p WeeklyPattern) error {
	data, err := json.Marshal(p.Normalized())
	if err != nil {
		return fmt.Errorf("availability: marshal pattern: %w", err)
	}
	if err := s.redis.Set(ctx, s.patternKey(workerID), data, 0).Err(); err != nil {
		return fmt.Errorf("availability: set pattern: %w", err)
	}
	s.notify(ctx, workerID, LayerPattern)
	return nil
}

// FeedSnapshot returns the worker's last feed snapshot, empty if never
// synced. Invalid busy dates are dropped on read.
func (s *Store) FeedSnapshot(ctx context.Context, workerID string) (FeedSnapshot, error) {
	data, err := s.redis.Get(ctx, s.feedKey(workerID)).Bytes()
	if err == redis.Nil {
		return FeedSnapshot{}, nil
	}
	if err != nil {
		return FeedSnapshot{}, fmt.Errorf("availability: get feed snapshot: %w", err)
	}

	var f FeedSnapshot
	if err := json.Unmarshal(data, &f); err != nil {
		return FeedSnapshot{}, fmt.Errorf("availability: unmarshal feed snapshot: %w", err)
	}
	return sanitizeSnapshot(f), nil
}

// SetFeedSnapshot replaces the worker's feed snapshot.
func (s *Store) SetFeedSnapshot(ctx context.Context, workerID string, f FeedSnapshot) error {
	data, err := json.Marshal(sanitizeSnapshot(f))
	if err != nil {
		return fmt.Errorf("availability: marshal feed snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, s.feedKey(workerID), data, 0).Err(); err != nil {
		return fmt.Errorf("availability: set feed snapshot: %w", err)
	}
	s.notify(ctx, workerID, LayerFeed)
	return nil
}

// Settings returns the worker's engine settings, zero-valued if unset.
func (s *Store) Settings(ctx context.Context, workerID string) (WorkerSettings, error) {
	data, err := s.redis.Get(ctx, s.settingsKey(workerID)).Bytes()
	if err == redis.Nil {
		return WorkerSettings{}, nil
	}
	if err != nil {
		return WorkerSettings{}, fmt.Errorf("availability: get settings: %w", err)
	}

	var ws WorkerSettings
	if err := json.Unmarshal(data, &ws); err != nil {
		return WorkerSettings{}, fmt.Errorf("availability: unmarshal settings: %w", err)
	}
	return ws, nil
}

// SetSettings writes the worker's engine settings.
func (s *Store) SetSettings(ctx context.Context, workerID string, ws WorkerSettings) error {
	data, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("availability: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, s.settingsKey(workerID), data, 0).Err(); err != nil {
		return fmt.Errorf("availability: set settings: %w", err)
	}
	s.notify(ctx, workerID, LayerSettings)
	return nil
}

// WorkersWithFeeds scans for workers that have a feed URL configured.
// Used by the periodic feed refresher.
func (s *Store) WorkersWithFeeds(ctx context.Context) ([]string, error) {
	var (
		workers []string
		cursor  uint64
	)
	prefix := "avail:settings:"
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("availability: scan settings: %w", err)
		}
		for _, key := range keys {
			workerID := key[len(prefix):]
			ws, err := s.Settings(ctx, workerID)
			if err != nil {
				s.logger.Error("availability: skipping unreadable settings", "worker_id", workerID, "error", err)
				continue
			}
			if ws.FeedURL != "" {
				workers = append(workers, workerID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return workers, nil
}

// Layers loads the three stored layers for a worker in one call. The booked
// layer comes from the scheduling subsystem and is filled in by the caller.
func (s *Store) Layers(ctx context.Context, workerID string) (Layers, error) {
	manual, err := s.ManualOverrides(ctx, workerID)
	if err != nil {
		return Layers{}, err
	}
	pattern, err := s.Pattern(ctx, workerID)
	if err != nil {
		return Layers{}, err
	}
	feed, err := s.FeedSnapshot(ctx, workerID)
	if err != nil {
		return Layers{}, err
	}
	return Layers{Manual: manual, Pattern: pattern, Feed: feed, Booked: DateSet{}}, nil
}

func (s *Store) notify(ctx context.Context, workerID, layer string) {
	for _, l := range s.listeners {
		l.LayerChanged(ctx, workerID, layer)
	}
}

func sanitizeSnapshot(f FeedSnapshot) FeedSnapshot {
	busy := make([]string, 0, len(f.BusyDates))
	seen := make(map[string]struct{}, len(f.BusyDates))
	for _, d := range f.BusyDates {
		if !dateutil.IsValidDateKey(d) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		busy = append(busy, d)
	}
	sort.Strings(busy)
	out := FeedSnapshot{BusyDates: busy, LastSyncedAt: f.LastSyncedAt}
	if out.LastSyncedAt != nil {
		t := out.LastSyncedAt.UTC().Truncate(time.Second)
		out.LastSyncedAt = &t
	}
	return out
}
