// Package rollover archives each closed day's statistics and resets the
// running aggregate at local midnight.
package rollover

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/storage"
)

// midnightSpec fires at 00:00 local time; the cron library reschedules for
// the next midnight by construction.
const midnightSpec = "0 0 * * *"

// archiveDateLayout is the ISO calendar date used in archive keys.
const archiveDateLayout = "2006-01-02"

// Scheduler owns the midnight rollover job and the startup catch-up pass.
type Scheduler struct {
	store            storage.Store
	archiveKeyPrefix string
	logger           logging.Logger
	cron             *cron.Cron

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewScheduler creates the rollover scheduler. archiveKeyPrefix prefixes
// the per-day archive keys, e.g. "stats-" yields "stats-2025-06-01".
func NewScheduler(store storage.Store, archiveKeyPrefix string, logger logging.Logger) *Scheduler {
	return &Scheduler{
		store:            store,
		archiveKeyPrefix: archiveKeyPrefix,
		logger:           logger,
		// Prevent overlapping runs and survive a panicking job.
		cron: cron.New(
			cron.WithLocation(time.Local),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger)),
		),
		now: time.Now,
	}
}

// Start runs the catch-up pass, then schedules the midnight job.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.CatchUp(ctx); err != nil {
		return fmt.Errorf("rollover catch-up failed: %w", err)
	}

	_, err := s.cron.AddFunc(midnightSpec, func() {
		if rollErr := s.Rollover(context.Background()); rollErr != nil {
			s.logger.Error("Daily rollover failed", logging.Error(rollErr))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rollover: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Rollover scheduler started",
		logging.String("schedule", midnightSpec),
	)
	return nil
}

// Stop stops the cron scheduler, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Rollover archives the just-closed day's statistics and resets the running
// aggregate to a fresh fold of the new day. Both writes land in one atomic
// multi-key set.
func (s *Scheduler) Rollover(ctx context.Context) error {
	items, err := s.videos(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	closed := now.AddDate(0, 0, -1)
	closedStats := domain.FoldDaily(items, closed)
	todayStats := domain.FoldDaily(items, now)

	err = s.store.Set(ctx, map[string]json.RawMessage{
		s.archiveKey(closed):  storage.Marshal(closedStats),
		storage.KeyTodayStats: storage.Marshal(todayStats),
	})
	if err != nil {
		return fmt.Errorf("failed to persist rollover: %w", err)
	}

	s.logger.Info("Daily stats rolled over",
		logging.String("archive_key", s.archiveKey(closed)),
		logging.Int("archived_count", closedStats.Count),
	)
	return nil
}

// CatchUp repairs state after downtime: archives any past day present in
// the collection but missing its archive key, and recomputes today's
// aggregate so stale figures never survive a restart.
func (s *Scheduler) CatchUp(ctx context.Context) error {
	items, err := s.videos(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	days := map[string]time.Time{}
	for i := range items {
		day := items[i].Day()
		if domain.SameLocalDay(day, now) {
			continue
		}
		days[s.archiveKey(day)] = day
	}

	entries := map[string]json.RawMessage{
		storage.KeyTodayStats: storage.Marshal(domain.FoldDaily(items, now)),
	}

	if len(days) > 0 {
		keys := make([]string, 0, len(days))
		for key := range days {
			keys = append(keys, key)
		}
		existing, getErr := s.store.Get(ctx, keys...)
		if getErr != nil {
			return fmt.Errorf("failed to read archives: %w", getErr)
		}
		for key, day := range days {
			if _, ok := existing[key]; ok {
				continue
			}
			entries[key] = storage.Marshal(domain.FoldDaily(items, day))
			s.logger.Info("Backfilling missed archive", logging.String("archive_key", key))
		}
	}

	if err := s.store.Set(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist catch-up: %w", err)
	}
	return nil
}

func (s *Scheduler) archiveKey(day time.Time) string {
	return s.archiveKeyPrefix + day.Local().Format(archiveDateLayout)
}

func (s *Scheduler) videos(ctx context.Context) ([]domain.WatchItem, error) {
	values, err := s.store.Get(ctx, storage.KeyVideos)
	if err != nil {
		return nil, fmt.Errorf("failed to read videos: %w", err)
	}
	raw, ok := values[storage.KeyVideos]
	if !ok {
		return nil, nil
	}
	var items []domain.WatchItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Warn("Malformed video collection, rolling over empty", logging.Error(err))
		return nil, nil
	}
	return items, nil
}
