package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/watchwise/watchwise/internal/telemetry"
)

// providerOnce ensures we only create one Provider per test run to avoid
// duplicate Prometheus metric registration errors from promauto's global registry
var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

func getTestProvider(t *testing.T) *telemetry.Provider {
	t.Helper()
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

func TestNewProvider(t *testing.T) {
	provider := getTestProvider(t)
	if provider == nil {
		t.Fatal("expected non-nil provider")
	}
	if provider.Tracer == nil {
		t.Error("expected non-nil tracer")
	}
	if provider.Metrics == nil {
		t.Error("expected non-nil metrics")
	}
}

func TestRecordFinalized(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordFinalized(ctx, true, 45*time.Second)
	provider.RecordFinalized(ctx, false, 10*time.Minute)
}

func TestRecordItem(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordItem(ctx, true, false, false, 100*time.Millisecond)
	provider.RecordItem(ctx, false, true, false, 5*time.Millisecond)
	provider.RecordItem(ctx, true, false, true, 50*time.Millisecond)
}

func TestRecordClassification(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordClassification(ctx, "positive", "remote", "music", "remote")
	provider.RecordClassification(ctx, "neutral", "default", "other", "default")
}

func TestRecordRemoteCall(t *testing.T) {
	provider := getTestProvider(t)
	ctx := context.Background()

	// Should not panic
	provider.RecordRemoteCall(ctx, "sentiment-model", 200*time.Millisecond, nil)
	provider.RecordRemoteCall(ctx, "topic-model", time.Second, errors.New("timeout"))
}

func TestSetActiveTrackers(t *testing.T) {
	provider := getTestProvider(t)

	// Should not panic
	provider.SetActiveTrackers(3)
	provider.SetActiveTrackers(0)
}
