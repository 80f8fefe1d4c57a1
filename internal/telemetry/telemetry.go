// Package telemetry provides OpenTelemetry instrumentation for the
// watchwise daemon. It exports Prometheus metrics and provides tracing
// capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "watchwise"

// Metrics holds all watchwise Prometheus metrics
type Metrics struct {
	// Session metrics
	SessionsFinalized *prometheus.CounterVec
	WatchDuration     prometheus.Histogram
	ActiveTrackers    prometheus.Gauge

	// Pipeline metrics
	ItemsRecorded      *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	ProcessingFailed   prometheus.Counter
	NudgesRaised       prometheus.Counter

	// Classification metrics
	SentimentTotal     *prometheus.CounterVec
	TopicTotal         *prometheus.CounterVec
	MethodTotal        *prometheus.CounterVec
	RemoteFailures     prometheus.Counter
	RemoteCallDuration *prometheus.HistogramVec

	// Observation metrics
	ObservationsTotal prometheus.Counter
}

// Provider wraps telemetry providers
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initSessionMetrics(m)
	initPipelineMetrics(m)
	initClassificationMetrics(m)
	initObservationMetrics(m)
	return m
}

func initSessionMetrics(m *Metrics) {
	m.SessionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchwise_sessions_finalized_total",
		Help: "Total watch sessions finalized, by content form",
	}, []string{"form"})

	m.WatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "watchwise_watch_duration_seconds",
		Help:    "Active watch time per finalized session",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
	})

	m.ActiveTrackers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watchwise_active_trackers",
		Help: "Currently live page-context trackers",
	})
}

func initPipelineMetrics(m *Metrics) {
	m.ItemsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchwise_items_recorded_total",
		Help: "Watch items handled by the pipeline, by outcome (stored, duplicate)",
	}, []string{"outcome"})

	m.ProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "watchwise_processing_duration_seconds",
		Help:    "Time to classify and record a single watch event",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
	})

	m.ProcessingFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchwise_processing_failed_total",
		Help: "Watch events that failed to persist",
	})

	m.NudgesRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchwise_nudges_raised_total",
		Help: "Wellness nudges raised by negative-streak detection",
	})
}

func initClassificationMetrics(m *Metrics) {
	m.SentimentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchwise_sentiment_total",
		Help: "Classified items by sentiment (positive, negative, neutral)",
	}, []string{"sentiment"})

	m.TopicTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchwise_topic_total",
		Help: "Classified items by topic",
	}, []string{"topic"})

	m.MethodTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "watchwise_classification_method_total",
		Help: "Classifications by strategy (remote, local, error, default)",
	}, []string{"kind", "method"})

	m.RemoteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchwise_remote_failures_total",
		Help: "Remote inference calls that fell back to the local strategy",
	})

	m.RemoteCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "watchwise_remote_call_duration_seconds",
		Help:    "Remote inference call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
	}, []string{"model"})
}

func initObservationMetrics(m *Metrics) {
	m.ObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchwise_observations_total",
		Help: "Page-state observations received",
	})
}

// RecordFinalized records a finalized watch session
func (p *Provider) RecordFinalized(ctx context.Context, shortForm bool, watchDuration time.Duration) {
	form := "long"
	if shortForm {
		form = "short"
	}
	p.Metrics.SessionsFinalized.WithLabelValues(form).Inc()
	p.Metrics.WatchDuration.Observe(watchDuration.Seconds())
}

// RecordItem records a pipeline outcome for one processed watch event
func (p *Provider) RecordItem(ctx context.Context, stored, duplicate, nudge bool, duration time.Duration) {
	outcome := "stored"
	if duplicate {
		outcome = "duplicate"
	}
	p.Metrics.ItemsRecorded.WithLabelValues(outcome).Inc()
	p.Metrics.ProcessingDuration.Observe(duration.Seconds())
	if nudge {
		p.Metrics.NudgesRaised.Inc()
	}
}

// RecordClassification records the classification result distribution
func (p *Provider) RecordClassification(ctx context.Context, sentiment, sentimentMethod, topic, topicMethod string) {
	p.Metrics.SentimentTotal.WithLabelValues(sentiment).Inc()
	p.Metrics.TopicTotal.WithLabelValues(topic).Inc()
	p.Metrics.MethodTotal.WithLabelValues("sentiment", sentimentMethod).Inc()
	p.Metrics.MethodTotal.WithLabelValues("topic", topicMethod).Inc()
}

// RecordProcessingFailure records a watch event that failed to persist
func (p *Provider) RecordProcessingFailure(ctx context.Context) {
	p.Metrics.ProcessingFailed.Inc()
}

// RecordObservation counts one received page-state observation
func (p *Provider) RecordObservation(ctx context.Context) {
	p.Metrics.ObservationsTotal.Inc()
}

// RecordRemoteCall records remote inference latency and failure
func (p *Provider) RecordRemoteCall(ctx context.Context, model string, duration time.Duration, err error) {
	p.Metrics.RemoteCallDuration.WithLabelValues(model).Observe(duration.Seconds())
	if err != nil {
		p.Metrics.RemoteFailures.Inc()
	}
}

// SetActiveTrackers sets the live tracker count
func (p *Provider) SetActiveTrackers(count int) {
	p.Metrics.ActiveTrackers.Set(float64(count))
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
