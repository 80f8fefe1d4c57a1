// Package domain holds the core data model for watch tracking and
// classification: watch items, daily statistics, page observations, and
// finalized watch events.
package domain

import "time"

// Sentiment is the polarity assigned to a watched item.
type Sentiment string

// Sentiment values.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Method records which strategy produced a classification.
type Method string

// Classification methods.
const (
	MethodRemote Method = "remote"
	MethodLocal  Method = "local"
	MethodError  Method = "error"
	// MethodDefault marks items whose text was too short or a synthesized
	// placeholder, so neither strategy was consulted.
	MethodDefault Method = "default"
)

// TopicAlternative is a runner-up topic with its confidence.
type TopicAlternative struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

// WatchItem is one recorded video watch. Items are stored as an append-only,
// insertion-ordered list under the "videos" storage key; ID is the
// de-duplication key across the whole collection.
type WatchItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	IsShortForm bool   `json:"isShort"`

	Sentiment           Sentiment `json:"sentiment"`
	SentimentConfidence float64   `json:"sentimentConfidence"`
	SentimentMethod     Method    `json:"sentimentMethod"`

	Topic             string             `json:"topic"`
	TopicConfidence   float64            `json:"topicConfidence"`
	TopicAlternatives []TopicAlternative `json:"topicAlternatives"`
	TopicMethod       Method             `json:"topicMethod"`

	WatchDurationMs int64 `json:"watchDurationMs"`
	// Timestamp is the capture time in epoch milliseconds; it buckets the
	// item into a calendar day.
	Timestamp int64 `json:"timestamp"`
}

// Day returns the local calendar day the item belongs to.
func (w *WatchItem) Day() time.Time {
	t := time.UnixMilli(w.Timestamp).Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// SameLocalDay reports whether two instants fall on the same local calendar day.
func SameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}

// DailyStats is the running aggregate for one calendar day. It is a cache:
// it must always equal a fresh fold of the stored WatchItem collection
// restricted to that day.
type DailyStats struct {
	Count    int            `json:"count"`
	Positive int            `json:"positive"`
	Negative int            `json:"negative"`
	Topics   map[string]int `json:"topics"`
}

// ZeroDailyStats returns the reset value for the running aggregate.
func ZeroDailyStats() DailyStats {
	return DailyStats{Topics: map[string]int{}}
}

// FoldDaily recomputes DailyStats from the full item collection, counting
// only items whose own timestamp falls on the given local calendar day.
func FoldDaily(items []WatchItem, day time.Time) DailyStats {
	stats := ZeroDailyStats()
	for i := range items {
		item := &items[i]
		if !SameLocalDay(time.UnixMilli(item.Timestamp), day) {
			continue
		}
		stats.Count++
		switch item.Sentiment {
		case SentimentPositive:
			stats.Positive++
		case SentimentNegative:
			stats.Negative++
		}
		stats.Topics[item.Topic]++
	}
	return stats
}
