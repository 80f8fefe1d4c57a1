// Package aggregator folds classified watch items into the persistent
// collection and the running daily statistics. It is the single writer of
// the "videos" and "todayStats" keys and owns duplicate suppression.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/storage"
)

// nudgeEvery is the negative-streak interval that raises the wellness nudge.
const nudgeEvery = 3

// Outcome reports what Record did with an item.
type Outcome struct {
	// Stored is true when the item was appended to the collection.
	Stored bool `json:"stored"`
	// Duplicate is true when an item with the same id was already stored.
	Duplicate bool `json:"duplicate"`
	// Nudge is true when today's negative count just reached a positive
	// multiple of the nudge interval.
	Nudge bool `json:"nudge"`
}

// Stats is the live-statistics read model.
type Stats struct {
	TodayStats  domain.DailyStats `json:"todayStats"`
	TotalVideos int               `json:"totalVideos"`
	IsTracking  bool              `json:"isTracking"`
}

// Export is the full-data snapshot shape.
type Export struct {
	ExportDate  string             `json:"exportDate"`
	Videos      []domain.WatchItem `json:"videos"`
	TodayStats  domain.DailyStats  `json:"todayStats"`
	TotalVideos int                `json:"totalVideos"`
}

// Aggregator persists watch items and daily statistics.
//
// Writes are read-then-write without cross-call transactions; concurrent
// recorders can lose an append to each other. The duplicate-by-id guard and
// full-recompute folding keep every reachable interleaving consistent, and
// the loss window is accepted for this workload.
type Aggregator struct {
	store  storage.Store
	logger logging.Logger

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates an aggregator over the given store.
func New(store storage.Store, logger logging.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Record appends a classified item unless its id is already present, then
// recomputes today's statistics by folding the full collection and persists
// both keys in one atomic multi-key write.
func (a *Aggregator) Record(ctx context.Context, item domain.WatchItem) (Outcome, error) {
	items, err := a.videos(ctx)
	if err != nil {
		return Outcome{}, err
	}

	for i := range items {
		if items[i].ID == item.ID {
			a.logger.Debug("Duplicate watch item skipped",
				logging.String("video_id", item.ID),
			)
			return Outcome{Duplicate: true}, nil
		}
	}

	items = append(items, item)
	stats := domain.FoldDaily(items, a.now())

	err = a.store.Set(ctx, map[string]json.RawMessage{
		storage.KeyVideos:     storage.Marshal(items),
		storage.KeyTodayStats: storage.Marshal(stats),
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to persist watch item: %w", err)
	}

	outcome := Outcome{
		Stored: true,
		Nudge:  stats.Negative > 0 && stats.Negative%nudgeEvery == 0,
	}
	a.logger.Info("Watch item recorded",
		logging.String("video_id", item.ID),
		logging.String("sentiment", string(item.Sentiment)),
		logging.String("topic", item.Topic),
		logging.Int("today_count", stats.Count),
		logging.Bool("nudge", outcome.Nudge),
	)
	return outcome, nil
}

// Stats returns today's statistics, the collection size, and the tracking
// toggle.
func (a *Aggregator) Stats(ctx context.Context) (Stats, error) {
	values, err := a.store.Get(ctx, storage.KeyVideos, storage.KeyTodayStats, storage.KeyIsTracking)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}

	items := a.decodeVideos(values[storage.KeyVideos])

	stats := Stats{
		TodayStats:  domain.ZeroDailyStats(),
		TotalVideos: len(items),
		IsTracking:  true,
	}
	if raw, ok := values[storage.KeyTodayStats]; ok {
		if err := json.Unmarshal(raw, &stats.TodayStats); err != nil {
			// Malformed aggregate: repair by recomputation.
			a.logger.Warn("Repairing malformed daily stats", logging.Error(err))
			stats.TodayStats = domain.FoldDaily(items, a.now())
		}
	}
	if stats.TodayStats.Topics == nil {
		stats.TodayStats.Topics = map[string]int{}
	}
	if raw, ok := values[storage.KeyIsTracking]; ok {
		if err := json.Unmarshal(raw, &stats.IsTracking); err != nil {
			stats.IsTracking = true
		}
	}
	return stats, nil
}

// Snapshot returns the full-data export.
func (a *Aggregator) Snapshot(ctx context.Context) (Export, error) {
	stats, err := a.Stats(ctx)
	if err != nil {
		return Export{}, err
	}
	items, err := a.videos(ctx)
	if err != nil {
		return Export{}, err
	}
	if items == nil {
		items = []domain.WatchItem{}
	}
	return Export{
		ExportDate:  a.now().Format(time.RFC3339),
		Videos:      items,
		TodayStats:  stats.TodayStats,
		TotalVideos: len(items),
	}, nil
}

// Clear wipes every key, archives included, and reseeds the defaults.
func (a *Aggregator) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear storage: %w", err)
	}
	if err := storage.SeedDefaults(ctx, a.store); err != nil {
		return fmt.Errorf("failed to reseed defaults: %w", err)
	}
	a.logger.Info("All watch data cleared")
	return nil
}

// RecomputeToday rebuilds today's statistics from the item collection and
// persists the result. Run at startup so a stale or corrupted aggregate
// never survives a restart.
func (a *Aggregator) RecomputeToday(ctx context.Context) error {
	items, err := a.videos(ctx)
	if err != nil {
		return err
	}
	stats := domain.FoldDaily(items, a.now())
	err = a.store.Set(ctx, map[string]json.RawMessage{
		storage.KeyTodayStats: storage.Marshal(stats),
	})
	if err != nil {
		return fmt.Errorf("failed to persist recomputed stats: %w", err)
	}
	a.logger.Debug("Daily stats recomputed",
		logging.Int("count", stats.Count),
	)
	return nil
}

// ToggleTracking flips the persisted tracking toggle and returns the new
// value.
func (a *Aggregator) ToggleTracking(ctx context.Context) (bool, error) {
	enabled, err := a.Tracking(ctx)
	if err != nil {
		return false, err
	}
	enabled = !enabled
	err = a.store.Set(ctx, map[string]json.RawMessage{
		storage.KeyIsTracking: storage.Marshal(enabled),
	})
	if err != nil {
		return false, fmt.Errorf("failed to persist tracking toggle: %w", err)
	}
	a.logger.Info("Tracking toggled", logging.Bool("enabled", enabled))
	return enabled, nil
}

// Tracking reads the persisted tracking toggle; missing or malformed values
// default to enabled.
func (a *Aggregator) Tracking(ctx context.Context) (bool, error) {
	values, err := a.store.Get(ctx, storage.KeyIsTracking)
	if err != nil {
		return false, fmt.Errorf("failed to read tracking toggle: %w", err)
	}
	enabled := true
	if raw, ok := values[storage.KeyIsTracking]; ok {
		if err := json.Unmarshal(raw, &enabled); err != nil {
			enabled = true
		}
	}
	return enabled, nil
}

// videos reads the full item collection.
func (a *Aggregator) videos(ctx context.Context) ([]domain.WatchItem, error) {
	values, err := a.store.Get(ctx, storage.KeyVideos)
	if err != nil {
		return nil, fmt.Errorf("failed to read videos: %w", err)
	}
	return a.decodeVideos(values[storage.KeyVideos]), nil
}

// decodeVideos tolerates a missing or malformed collection: an unreadable
// value is treated as empty rather than wedging every write path.
func (a *Aggregator) decodeVideos(raw json.RawMessage) []domain.WatchItem {
	if len(raw) == 0 {
		return nil
	}
	var items []domain.WatchItem
	if err := json.Unmarshal(raw, &items); err != nil {
		a.logger.Warn("Malformed video collection, starting empty", logging.Error(err))
		return nil
	}
	return items
}
