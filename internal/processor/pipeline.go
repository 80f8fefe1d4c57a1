// Package processor is the finalize pipeline: it receives finalized watch
// events from the trackers, classifies the title text, and records the
// resulting watch item. It is the glue between the timing side and the
// persistence side.
package processor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/watchwise/watchwise/internal/aggregator"
	"github.com/watchwise/watchwise/internal/classifier"
	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/telemetry"
)

// defaultEventTimeout bounds one event's classification plus persistence.
const defaultEventTimeout = 60 * time.Second

// Classifier produces sentiment and topic for a title text.
type Classifier interface {
	Classify(ctx context.Context, text string, isShortForm bool) (classifier.SentimentResult, classifier.TopicResult)
}

// Recorder persists classified watch items.
type Recorder interface {
	Record(ctx context.Context, item domain.WatchItem) (aggregator.Outcome, error)
}

// Pipeline classifies and records finalized watch events. It implements
// tracker.Sink; trackers submit events fire-and-forget, so a slow remote
// classification never blocks a tick loop.
type Pipeline struct {
	classifier Classifier
	recorder   Recorder
	telemetry  *telemetry.Provider
	logger     logging.Logger

	eventTimeout time.Duration

	// inflight counts events currently being handled, for Drain.
	inflight sync.WaitGroup

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates a pipeline.
func New(cls Classifier, recorder Recorder, tel *telemetry.Provider, logger logging.Logger) *Pipeline {
	return &Pipeline{
		classifier:   cls,
		recorder:     recorder,
		telemetry:    tel,
		logger:       logger,
		eventTimeout: defaultEventTimeout,
		now:          time.Now,
	}
}

// HandleWatchEvent classifies one finalized event and records the item.
// A persistence failure is logged and dropped here; the emitting session
// stays alive in its tracker, so the next flush tick retries naturally.
func (p *Pipeline) HandleWatchEvent(ctx context.Context, event domain.WatchEvent) {
	p.inflight.Add(1)
	defer p.inflight.Done()

	start := p.now()
	ctx, cancel := context.WithTimeout(ctx, p.eventTimeout)
	defer cancel()

	ctx, span := p.telemetry.StartSpan(ctx, "processor.handle_watch_event",
		attribute.String("session.id", event.SessionID),
		attribute.String("video.id", event.Video.ID),
		attribute.Bool("video.short_form", event.Video.IsShortForm),
	)
	defer span.End()

	p.telemetry.RecordFinalized(ctx, event.Video.IsShortForm, event.WatchDuration)

	item := p.buildItem(ctx, event)
	p.telemetry.RecordClassification(ctx,
		string(item.Sentiment), string(item.SentimentMethod),
		item.Topic, string(item.TopicMethod),
	)

	outcome, err := p.recorder.Record(ctx, item)
	if err != nil {
		p.telemetry.RecordProcessingFailure(ctx)
		p.logger.Error("Failed to record watch item",
			logging.String("session_id", event.SessionID),
			logging.String("video_id", item.ID),
			logging.Error(err),
		)
		return
	}

	p.telemetry.RecordItem(ctx, outcome.Stored, outcome.Duplicate, outcome.Nudge, p.now().Sub(start))
	if outcome.Nudge {
		p.logger.Info("Negative-streak nudge raised",
			logging.String("video_id", item.ID),
		)
	}
}

// Drain blocks until every in-flight event has been handled, or until ctx
// expires. Trackers emit finalize events fire-and-forget, so shutdown must
// drain the pipeline before closing the store.
func (p *Pipeline) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// buildItem classifies the event's title and assembles the watch item. A
// panicking classifier is downgraded to hard-default values rather than
// losing the watch time.
func (p *Pipeline) buildItem(ctx context.Context, event domain.WatchEvent) domain.WatchItem {
	item := domain.WatchItem{
		ID:              event.Video.ID,
		Title:           event.Video.DisplayTitle(),
		URL:             event.Video.URL,
		IsShortForm:     event.Video.IsShortForm,
		WatchDurationMs: event.WatchDuration.Milliseconds(),
		Timestamp:       event.FinalizedAt.UnixMilli(),
	}

	sentiment, topic := p.classify(ctx, item.Title, event.Video.IsShortForm)
	item.Sentiment = sentiment.Sentiment
	item.SentimentConfidence = sentiment.Confidence
	item.SentimentMethod = sentiment.Method
	item.Topic = topic.Topic
	item.TopicConfidence = topic.Confidence
	item.TopicAlternatives = topic.Alternatives
	item.TopicMethod = topic.Method
	return item
}

func (p *Pipeline) classify(ctx context.Context, title string, isShortForm bool) (
	sentiment classifier.SentimentResult, topic classifier.TopicResult,
) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Classification panicked, using hard defaults",
				logging.Any("panic", r),
			)
			sentiment = classifier.SentimentResult{
				Sentiment:  domain.SentimentNeutral,
				Confidence: 0.5,
				Method:     domain.MethodError,
			}
			topic = classifier.TopicResult{
				Topic:      classifier.TopicOther,
				Confidence: 0.4,
				Method:     domain.MethodError,
			}
		}
	}()
	return p.classifier.Classify(ctx, title, isShortForm)
}
