package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchwise/watchwise/internal/aggregator"
	"github.com/watchwise/watchwise/internal/classifier"
	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/telemetry"
)

// One provider per test binary; promauto registers into the global registry.
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func testTelemetry() *telemetry.Provider {
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

type fakeClassifier struct {
	sentiment classifier.SentimentResult
	topic     classifier.TopicResult
	panics    bool

	mu    sync.Mutex
	texts []string
}

func (f *fakeClassifier) Classify(_ context.Context, text string, _ bool) (classifier.SentimentResult, classifier.TopicResult) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.panics {
		panic("model blew up")
	}
	return f.sentiment, f.topic
}

type fakeRecorder struct {
	outcome aggregator.Outcome
	err     error

	mu    sync.Mutex
	items []domain.WatchItem
}

func (f *fakeRecorder) Record(_ context.Context, item domain.WatchItem) (aggregator.Outcome, error) {
	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()
	if f.err != nil {
		return aggregator.Outcome{}, f.err
	}
	return f.outcome, nil
}

func testEvent() domain.WatchEvent {
	return domain.WatchEvent{
		SessionID: "session-1",
		Video: domain.VideoInfo{
			ID:    "abc123",
			Title: "Amazing cooking tutorial",
			URL:   "https://www.youtube.com/watch?v=abc123",
		},
		WatchDuration: 42 * time.Second,
		FinalizedAt:   time.Date(2025, 6, 1, 15, 30, 0, 0, time.Local),
	}
}

func TestPipeline_ClassifiesAndRecords(t *testing.T) {
	cls := &fakeClassifier{
		sentiment: classifier.SentimentResult{
			Sentiment:  domain.SentimentPositive,
			Confidence: 0.8,
			Method:     domain.MethodLocal,
		},
		topic: classifier.TopicResult{
			Topic:      "food",
			Confidence: 0.75,
			Method:     domain.MethodLocal,
		},
	}
	rec := &fakeRecorder{outcome: aggregator.Outcome{Stored: true}}
	p := New(cls, rec, testTelemetry(), logging.NewNop())

	p.HandleWatchEvent(context.Background(), testEvent())

	require.Len(t, rec.items, 1)
	item := rec.items[0]
	assert.Equal(t, "abc123", item.ID)
	assert.Equal(t, "Amazing cooking tutorial", item.Title)
	assert.Equal(t, domain.SentimentPositive, item.Sentiment)
	assert.Equal(t, "food", item.Topic)
	assert.Equal(t, int64(42000), item.WatchDurationMs)
	assert.Equal(t, testEvent().FinalizedAt.UnixMilli(), item.Timestamp)
	assert.Equal(t, []string{"Amazing cooking tutorial"}, cls.texts)
}

func TestPipeline_PlaceholderTitleSubstituted(t *testing.T) {
	cls := &fakeClassifier{
		sentiment: classifier.SentimentResult{Sentiment: domain.SentimentNeutral, Method: domain.MethodDefault},
		topic:     classifier.TopicResult{Topic: "entertainment", Method: domain.MethodDefault},
	}
	rec := &fakeRecorder{outcome: aggregator.Outcome{Stored: true}}
	p := New(cls, rec, testTelemetry(), logging.NewNop())

	event := testEvent()
	event.Video.Title = ""
	event.Video.IsShortForm = true
	p.HandleWatchEvent(context.Background(), event)

	require.Len(t, rec.items, 1)
	assert.Equal(t, "Short (abc123)", rec.items[0].Title)
	assert.Equal(t, []string{"Short (abc123)"}, cls.texts)
}

func TestPipeline_RecordFailureIsDropped(t *testing.T) {
	cls := &fakeClassifier{
		sentiment: classifier.SentimentResult{Sentiment: domain.SentimentNeutral, Method: domain.MethodLocal},
		topic:     classifier.TopicResult{Topic: "other", Method: domain.MethodLocal},
	}
	rec := &fakeRecorder{err: errors.New("storage down")}
	p := New(cls, rec, testTelemetry(), logging.NewNop())

	// Must not panic or block; the tracker's session retries on its next flush.
	p.HandleWatchEvent(context.Background(), testEvent())
	assert.Len(t, rec.items, 1)
}

// blockingRecorder parks the single recording call until released, to model
// a persistence write still in flight at shutdown.
type blockingRecorder struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRecorder) Record(context.Context, domain.WatchItem) (aggregator.Outcome, error) {
	close(b.entered)
	<-b.release
	return aggregator.Outcome{Stored: true}, nil
}

func TestPipeline_DrainWaitsForInflightEvents(t *testing.T) {
	rec := &blockingRecorder{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	p := New(&fakeClassifier{}, rec, testTelemetry(), logging.NewNop())

	go p.HandleWatchEvent(context.Background(), testEvent())
	<-rec.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Drain(ctx), context.DeadlineExceeded)

	close(rec.release)
	require.NoError(t, p.Drain(context.Background()))
}

func TestPipeline_ClassifierPanicYieldsErrorDefaults(t *testing.T) {
	cls := &fakeClassifier{panics: true}
	rec := &fakeRecorder{outcome: aggregator.Outcome{Stored: true}}
	p := New(cls, rec, testTelemetry(), logging.NewNop())

	p.HandleWatchEvent(context.Background(), testEvent())

	require.Len(t, rec.items, 1)
	item := rec.items[0]
	assert.Equal(t, domain.SentimentNeutral, item.Sentiment)
	assert.Equal(t, domain.MethodError, item.SentimentMethod)
	assert.Equal(t, classifier.TopicOther, item.Topic)
	assert.Equal(t, domain.MethodError, item.TopicMethod)
	assert.Equal(t, int64(42000), item.WatchDurationMs)
}
