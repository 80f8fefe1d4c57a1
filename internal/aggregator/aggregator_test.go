package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/storage"
)

func newTestAggregator(t *testing.T) (*Aggregator, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.SeedDefaults(context.Background(), store))
	return New(store, logging.NewNop()), store
}

func testItem(id string, sentiment domain.Sentiment, topic string) domain.WatchItem {
	return domain.WatchItem{
		ID:              id,
		Title:           "Title " + id,
		URL:             "https://www.youtube.com/watch?v=" + id,
		Sentiment:       sentiment,
		SentimentMethod: domain.MethodLocal,
		Topic:           topic,
		TopicMethod:     domain.MethodLocal,
		WatchDurationMs: 30000,
		Timestamp:       time.Now().UnixMilli(),
	}
}

func TestAggregator_RecordAndDuplicate(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	outcome, err := agg.Record(ctx, testItem("vid1", domain.SentimentPositive, "music"))
	require.NoError(t, err)
	assert.True(t, outcome.Stored)
	assert.False(t, outcome.Duplicate)

	// Same id again: the flush-then-finalize race resolves to one stored item.
	dup := testItem("vid1", domain.SentimentNegative, "news")
	dup.WatchDurationMs = 99999
	outcome, err = agg.Record(ctx, dup)
	require.NoError(t, err)
	assert.False(t, outcome.Stored)
	assert.True(t, outcome.Duplicate)

	stats, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVideos)
	assert.Equal(t, 1, stats.TodayStats.Count)
	assert.Equal(t, 1, stats.TodayStats.Positive)
	assert.Zero(t, stats.TodayStats.Negative)
}

func TestAggregator_StatsFoldConsistency(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.Record(ctx, testItem("a", domain.SentimentPositive, "music"))
	require.NoError(t, err)
	_, err = agg.Record(ctx, testItem("b", domain.SentimentNegative, "news"))
	require.NoError(t, err)
	_, err = agg.Record(ctx, testItem("c", domain.SentimentNeutral, "music"))
	require.NoError(t, err)

	stats, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TodayStats.Count)
	assert.Equal(t, 1, stats.TodayStats.Positive)
	assert.Equal(t, 1, stats.TodayStats.Negative)
	assert.Equal(t, map[string]int{"music": 2, "news": 1}, stats.TodayStats.Topics)

	// The persisted aggregate must equal a fresh fold of the collection.
	values, err := store.Get(ctx, storage.KeyVideos)
	require.NoError(t, err)
	var items []domain.WatchItem
	require.NoError(t, json.Unmarshal(values[storage.KeyVideos], &items))
	assert.Equal(t, domain.FoldDaily(items, time.Now()), stats.TodayStats)
}

func TestAggregator_NudgeOnNegativeMultiples(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	var nudges []string
	ids := []string{"n1", "n2", "n3", "n4", "n5", "n6"}
	for _, id := range ids {
		outcome, err := agg.Record(ctx, testItem(id, domain.SentimentNegative, "news"))
		require.NoError(t, err)
		if outcome.Nudge {
			nudges = append(nudges, id)
		}
	}

	// Fires at 3 and 6 negatives, never in between and never at zero.
	assert.Equal(t, []string{"n3", "n6"}, nudges)
}

func TestAggregator_StorageFailureKeepsItemUnrecorded(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	store.FailNextSet = errors.New("disk full")
	_, err := agg.Record(ctx, testItem("flaky", domain.SentimentPositive, "music"))
	require.Error(t, err)

	// The failed write must not leave a phantom duplicate: the next attempt
	// stores the item normally.
	outcome, err := agg.Record(ctx, testItem("flaky", domain.SentimentPositive, "music"))
	require.NoError(t, err)
	assert.True(t, outcome.Stored)
}

func TestAggregator_ClearReseedsDefaults(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.Record(ctx, testItem("gone", domain.SentimentPositive, "music"))
	require.NoError(t, err)
	require.NoError(t, agg.Clear(ctx))

	stats, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVideos)
	assert.Zero(t, stats.TodayStats.Count)
	assert.True(t, stats.IsTracking)

	values, err := store.Get(ctx, storage.KeyVideos)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(values[storage.KeyVideos]))
}

func TestAggregator_RecomputeTodayRepairsStaleStats(t *testing.T) {
	agg, store := newTestAggregator(t)
	ctx := context.Background()

	_, err := agg.Record(ctx, testItem("keep", domain.SentimentPositive, "music"))
	require.NoError(t, err)

	// Corrupt the running aggregate behind the aggregator's back.
	require.NoError(t, store.Set(ctx, map[string]json.RawMessage{
		storage.KeyTodayStats: json.RawMessage(`{"count":999,"positive":`),
	}))

	require.NoError(t, agg.RecomputeToday(ctx))
	stats, err := agg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TodayStats.Count)
	assert.Equal(t, 1, stats.TodayStats.Positive)
}

func TestAggregator_ToggleTracking(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	enabled, err := agg.Tracking(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = agg.ToggleTracking(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = agg.ToggleTracking(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestAggregator_SnapshotShape(t *testing.T) {
	agg, _ := newTestAggregator(t)
	ctx := context.Background()

	export, err := agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, export.ExportDate)
	assert.NotNil(t, export.Videos)
	assert.Zero(t, export.TotalVideos)

	_, err = agg.Record(ctx, testItem("x1", domain.SentimentNeutral, "other"))
	require.NoError(t, err)
	export, err = agg.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, export.Videos, 1)
	assert.Equal(t, 1, export.TotalVideos)
}
