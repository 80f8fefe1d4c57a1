package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldDaily_BucketsByItemTimestamp(t *testing.T) {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	items := []WatchItem{
		{ID: "a", Sentiment: SentimentPositive, Topic: "music", Timestamp: now.UnixMilli()},
		{ID: "b", Sentiment: SentimentNegative, Topic: "news", Timestamp: now.UnixMilli()},
		{ID: "c", Sentiment: SentimentNeutral, Topic: "music", Timestamp: now.UnixMilli()},
		{ID: "d", Sentiment: SentimentPositive, Topic: "gaming", Timestamp: yesterday.UnixMilli()},
	}

	stats := FoldDaily(items, now)

	assert.Equal(t, 3, stats.Count)
	assert.Equal(t, 1, stats.Positive)
	assert.Equal(t, 1, stats.Negative)
	assert.Equal(t, map[string]int{"music": 2, "news": 1}, stats.Topics)
}

func TestFoldDaily_Invariants(t *testing.T) {
	now := time.Now()
	items := []WatchItem{
		{ID: "a", Sentiment: SentimentPositive, Topic: "food", Timestamp: now.UnixMilli()},
		{ID: "b", Sentiment: SentimentPositive, Topic: "food", Timestamp: now.UnixMilli()},
		{ID: "c", Sentiment: SentimentNegative, Topic: "other", Timestamp: now.UnixMilli()},
		{ID: "d", Sentiment: SentimentNeutral, Topic: "news", Timestamp: now.UnixMilli()},
	}

	stats := FoldDaily(items, now)

	assert.LessOrEqual(t, stats.Positive+stats.Negative, stats.Count)

	topicSum := 0
	for _, n := range stats.Topics {
		topicSum += n
	}
	assert.Equal(t, stats.Count, topicSum)
}

func TestFoldDaily_EmptyCollection(t *testing.T) {
	stats := FoldDaily(nil, time.Now())
	assert.Equal(t, ZeroDailyStats(), stats)
}

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name string
		info VideoInfo
		want string
	}{
		{"long form with title", VideoInfo{ID: "abc", Title: "Some Video"}, "Some Video"},
		{"long form without title", VideoInfo{ID: "abc"}, "Video (abc)"},
		{"short form without title", VideoInfo{ID: "xyz", IsShortForm: true}, "Short (xyz)"},
		{"whitespace title", VideoInfo{ID: "abc", Title: "   "}, "Video (abc)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.DisplayTitle())
		})
	}
}

func TestIsPlaceholderTitle(t *testing.T) {
	assert.True(t, IsPlaceholderTitle("Short (xyz)"))
	assert.True(t, IsPlaceholderTitle("Video (abc)"))
	assert.False(t, IsPlaceholderTitle("Video essay about (almost) everything"))
	assert.False(t, IsPlaceholderTitle("A normal title"))
}
