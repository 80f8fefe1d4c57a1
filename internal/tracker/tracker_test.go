package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.Local)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type captureSink struct {
	mu     sync.Mutex
	events []domain.WatchEvent
}

func (s *captureSink) HandleWatchEvent(_ context.Context, event domain.WatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *captureSink) all() []domain.WatchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.WatchEvent(nil), s.events...)
}

func newTestTracker(t *testing.T, config Config) (*Tracker, *captureSink, *fakeClock) {
	t.Helper()
	sink := &captureSink{}
	clock := newFakeClock()
	tr := New("tab-1", config, sink, logging.NewNop())
	tr.now = clock.now
	return tr, sink, clock
}

func watchState(url string, title string) domain.PageState {
	return domain.PageState{
		ContextID:       "tab-1",
		URL:             url,
		TitleCandidates: []string{title},
	}
}

func waitForEvents(t *testing.T, sink *captureSink, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return sink.count() == n },
		time.Second, 5*time.Millisecond)
}

func TestTracker_PauseResumeAccounting(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})

	state := watchState("https://www.youtube.com/watch?v=abc123", "First video")
	tr.SetPageState(state)
	tr.checkTick()

	// Play 3s, pause 10s, play 2s more.
	clock.advance(3 * time.Second)
	state.PlayerPaused = true
	tr.SetPageState(state)

	clock.advance(10 * time.Second)
	state.PlayerPaused = false
	tr.SetPageState(state)

	clock.advance(2 * time.Second)

	// Navigate away: finalize against the session-start snapshot.
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=next99", "Next video"))
	tr.checkTick()

	waitForEvents(t, sink, 1)
	event := sink.all()[0]
	assert.Equal(t, "abc123", event.Video.ID)
	assert.Equal(t, "First video", event.Video.Title)
	assert.Equal(t, 5*time.Second, event.WatchDuration)
}

func TestTracker_ThresholdGating(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: 10 * time.Second})

	tr.SetPageState(watchState("https://www.youtube.com/watch?v=short1", "Too short"))
	tr.checkTick()

	clock.advance(1500 * time.Millisecond)
	tr.flushTick()
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=long00", "Long enough"))
	tr.checkTick()

	// Below-threshold session never emits, even when flush and navigation
	// finalize both fired.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())

	// Re-detection picks up the new video after the settle delay.
	clock.advance(time.Second)
	tr.urlPollTick()
	require.NotNil(t, tr.session)

	clock.advance(11 * time.Second)
	tr.flushTick()
	waitForEvents(t, sink, 1)
	assert.Equal(t, "long00", sink.all()[0].Video.ID)
}

func TestTracker_FlushKeepsSessionAlive(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})

	tr.SetPageState(watchState("https://www.youtube.com/watch?v=keep01", "Keeper"))
	tr.checkTick()

	clock.advance(2 * time.Second)
	tr.flushTick()
	waitForEvents(t, sink, 1)

	clock.advance(30 * time.Second)
	tr.flushTick()
	waitForEvents(t, sink, 2)

	events := sink.all()
	assert.Equal(t, events[0].SessionID, events[1].SessionID)
	assert.Equal(t, events[0].Video.ID, events[1].Video.ID)
	assert.Greater(t, events[1].WatchDuration, events[0].WatchDuration)
}

func TestTracker_HiddenFinalizesWithoutClearing(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})

	state := watchState("https://www.youtube.com/watch?v=hide01", "Hideable")
	tr.SetPageState(state)
	tr.checkTick()

	clock.advance(5 * time.Second)
	state.Hidden = true
	tr.SetPageState(state)
	waitForEvents(t, sink, 1)
	assert.Equal(t, 5*time.Second, sink.all()[0].WatchDuration)

	// Hidden time does not accumulate; returning resumes the same session.
	clock.advance(time.Minute)
	state.Hidden = false
	tr.SetPageState(state)
	clock.advance(3 * time.Second)
	tr.flushTick()

	waitForEvents(t, sink, 2)
	events := sink.all()
	assert.Equal(t, events[0].SessionID, events[1].SessionID)
	assert.Equal(t, 8*time.Second, events[1].WatchDuration)
}

func TestTracker_DisabledNeverEmits(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})
	tr.SetEnabled(false)

	tr.SetPageState(watchState("https://www.youtube.com/watch?v=mute01", "Untracked"))
	tr.checkTick()
	clock.advance(time.Minute)
	tr.flushTick()

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, sink.count())
}

func TestTracker_RedetectWaitsForLaggingMetadata(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})

	tr.SetPageState(watchState("https://www.youtube.com/watch?v=first1", "First"))
	tr.urlPollTick()
	clock.advance(time.Second)
	tr.urlPollTick()
	require.NotNil(t, tr.session)
	clock.advance(2 * time.Second)

	// Navigation observed before the new page's metadata settles: the URL
	// has the next id but the title probe still comes back empty.
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=second", ""))
	tr.urlPollTick()
	waitForEvents(t, sink, 1)
	assert.Equal(t, "first1", sink.all()[0].Video.ID)
	assert.Nil(t, tr.session)

	// Metadata arrives before the next backoff attempt is due.
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=second", "Second video"))
	clock.advance(time.Second)
	tr.urlPollTick()

	require.NotNil(t, tr.session)
	assert.Equal(t, "second", tr.session.video.ID)
	assert.Equal(t, "Second video", tr.session.video.Title)
}

func TestTracker_RedetectGivesUpAfterBoundedAttempts(t *testing.T) {
	tr, _, clock := newTestTracker(t, Config{
		MinWatchTime:        time.Second,
		DetectRetryAttempts: 3,
	})

	// A non-video page never yields an id; the backoff budget runs out.
	tr.SetPageState(domain.PageState{ContextID: "tab-1", URL: "https://www.youtube.com/feed/subscriptions"})
	for i := 0; i < 10; i++ {
		tr.urlPollTick()
		clock.advance(10 * time.Second)
	}

	assert.Nil(t, tr.session)
	assert.True(t, tr.redetectAt.IsZero())
}

func TestTracker_NavigationDoesNotBindStaleTitle(t *testing.T) {
	tr, sink, clock := newTestTracker(t, Config{MinWatchTime: time.Second})

	tr.SetPageState(watchState("https://www.youtube.com/watch?v=aaaaaa", "Video A title"))
	tr.urlPollTick()
	clock.advance(time.Second)
	tr.urlPollTick()
	require.NotNil(t, tr.session)
	clock.advance(5 * time.Second)

	// The URL flips to the next video while the title probe still reports
	// the previous one. Neither the URL poll nor the check tick may
	// snapshot the stale title into a new session.
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=bbbbbb", "Video A title"))
	tr.urlPollTick()
	waitForEvents(t, sink, 1)
	assert.Equal(t, "aaaaaa", sink.all()[0].Video.ID)
	assert.Nil(t, tr.session)

	tr.checkTick()
	assert.Nil(t, tr.session)

	// Once the metadata settles, the delayed attempt binds the right title.
	tr.SetPageState(watchState("https://www.youtube.com/watch?v=bbbbbb", "Video B title"))
	clock.advance(time.Second)
	tr.urlPollTick()

	require.NotNil(t, tr.session)
	assert.Equal(t, "bbbbbb", tr.session.video.ID)
	assert.Equal(t, "Video B title", tr.session.video.Title)
}

func TestManager_PerContextTrackers(t *testing.T) {
	sink := &captureSink{}
	m := NewManager(Config{MinWatchTime: time.Second}, sink, testTelemetry(), logging.NewNop(), true)
	defer m.Stop()

	m.Observe(domain.PageState{ContextID: "tab-1", URL: "https://www.youtube.com/watch?v=aaa111"})
	m.Observe(domain.PageState{ContextID: "tab-2", URL: "https://www.youtube.com/watch?v=bbb222"})
	m.Observe(domain.PageState{ContextID: ""})

	m.mu.Lock()
	assert.Len(t, m.trackers, 2)
	m.mu.Unlock()

	assert.True(t, m.Enabled())
	m.SetEnabled(false)
	assert.False(t, m.Enabled())
	m.mu.Lock()
	for _, tr := range m.trackers {
		tr.mu.Lock()
		assert.False(t, tr.enabled)
		tr.mu.Unlock()
	}
	m.mu.Unlock()
}

func TestManager_ActiveTrackerGauge(t *testing.T) {
	m := NewManager(Config{MinWatchTime: time.Second}, &captureSink{}, testTelemetry(), logging.NewNop(), true)

	m.Observe(domain.PageState{ContextID: "tab-1", URL: "https://www.youtube.com/watch?v=aaa111"})
	m.Observe(domain.PageState{ContextID: "tab-2", URL: "https://www.youtube.com/watch?v=bbb222"})
	assert.Equal(t, 2.0, testutil.ToFloat64(testTelemetry().Metrics.ActiveTrackers))

	m.Stop()
	assert.Equal(t, 0.0, testutil.ToFloat64(testTelemetry().Metrics.ActiveTrackers))
}
