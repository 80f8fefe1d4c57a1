// Package tracker implements the per-context watch-session state machine:
// Idle until a video id is observed, then Tracking with Active/Paused
// sub-states driven by player and visibility signals. Tick loops poll the
// latest page observation so silent client-side navigation is still caught.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/extractor"
	"github.com/watchwise/watchwise/internal/logging"
)

// Default tick intervals and re-detection bounds.
const (
	defaultMinWatchTime        = 10 * time.Second
	defaultCheckInterval       = 2 * time.Second
	defaultFlushInterval       = 15 * time.Second
	defaultURLPollInterval     = time.Second
	defaultDetectRetryBase     = time.Second
	defaultDetectRetryAttempts = 5
)

// Sink receives finalized watch events. Submissions are fire-and-forget
// from the tracker's perspective; a slow sink must not block tick loops.
type Sink interface {
	HandleWatchEvent(ctx context.Context, event domain.WatchEvent)
}

// Config holds tracker timing configuration.
type Config struct {
	// MinWatchTime gates whether a session is ever recorded at all.
	MinWatchTime        time.Duration
	CheckInterval       time.Duration
	FlushInterval       time.Duration
	URLPollInterval     time.Duration
	DetectRetryBase     time.Duration
	DetectRetryAttempts int
}

func (c *Config) setDefaults() {
	if c.MinWatchTime <= 0 {
		c.MinWatchTime = defaultMinWatchTime
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.URLPollInterval <= 0 {
		c.URLPollInterval = defaultURLPollInterval
	}
	if c.DetectRetryBase <= 0 {
		c.DetectRetryBase = defaultDetectRetryBase
	}
	if c.DetectRetryAttempts <= 0 {
		c.DetectRetryAttempts = defaultDetectRetryAttempts
	}
}

// Tracker tracks watch sessions for one page context. All state is guarded
// by a single mutex; observations and tick handlers are serialized through
// it, which models the single logical event queue per context.
type Tracker struct {
	contextID string
	config    Config
	sink      Sink
	logger    logging.Logger

	mu      sync.Mutex
	latest  domain.PageState
	session *session
	enabled bool

	// lastSeenURL backs the cheap URL-change poll.
	lastSeenURL string

	// Re-detection backoff after a URL change whose metadata lags.
	redetectAt      time.Time
	redetectDelay   time.Duration
	redetectAttempt int

	running  bool
	stopChan chan struct{}

	// now is the clock; replaced in tests.
	now func() time.Time
}

// New creates a tracker for one page context.
func New(contextID string, config Config, sink Sink, logger logging.Logger) *Tracker {
	config.setDefaults()
	return &Tracker{
		contextID: contextID,
		config:    config,
		sink:      sink,
		logger:    logger.With(logging.String("context_id", contextID)),
		enabled:   true,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start starts the tick loops.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return errors.New("tracker is already running")
	}
	t.running = true

	t.logger.Debug("Tracker starting",
		logging.Duration("check_interval", t.config.CheckInterval),
		logging.Duration("flush_interval", t.config.FlushInterval),
		logging.Duration("url_poll_interval", t.config.URLPollInterval),
	)

	go t.run(ctx)

	return nil
}

// Stop stops the tick loops and finalizes any eligible in-flight session.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.running = false
	close(t.stopChan)

	// Best effort on shutdown: fold and emit what we have.
	t.finalizeLocked(true)
}

// run is the tick loop. Three tickers cover the three polling concerns:
// identity/pause reconciliation, eligibility flush, and URL change.
func (t *Tracker) run(ctx context.Context) {
	check := time.NewTicker(t.config.CheckInterval)
	defer check.Stop()
	flush := time.NewTicker(t.config.FlushInterval)
	defer flush.Stop()
	urlPoll := time.NewTicker(t.config.URLPollInterval)
	defer urlPoll.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Tracker stopped due to context cancellation")
			return
		case <-t.stopChan:
			t.logger.Debug("Tracker stopped")
			return
		case <-check.C:
			t.checkTick()
		case <-flush.C:
			t.flushTick()
		case <-urlPoll.C:
			t.urlPollTick()
		}
	}
}

// SetPageState records the newest observation and applies pause/visibility
// transitions immediately, without waiting for the next check tick. Hidden
// pages trigger a finalize-if-eligible without clearing the session, which
// also covers the page-unload case.
func (t *Tracker) SetPageState(state domain.PageState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = state
	if t.session == nil {
		return
	}

	now := t.now()
	switch {
	case state.Hidden:
		t.session.pause(now)
		t.finalizeLocked(false)
	case state.PlayerPaused:
		t.session.pause(now)
	default:
		if t.sameVideoLocked(state.URL) {
			t.session.resume(now)
		}
	}
}

// SetEnabled flips tracking for this context. A disabled tracker keeps
// observing and accumulating but never emits.
func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// checkTick re-derives video identity from the latest observation and
// reconciles the pause sub-state. It is the slow-path navigation catch for
// events the URL poll cannot see.
func (t *Tracker) checkTick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.latest
	if state.URL == "" {
		return
	}

	result, ok := extractor.Extract(extractor.PageFields{
		URL:             state.URL,
		TitleCandidates: state.TitleCandidates,
		Description:     state.Description,
		PageTitle:       state.PageTitle,
	})
	if !ok {
		// Not a video page. A current session means we navigated away.
		if t.session != nil {
			t.finalizeLocked(true)
		}
		return
	}

	if t.session != nil && t.session.video.ID == result.VideoID {
		t.reconcilePauseLocked(state)
		return
	}

	// New video: finalize the old session against its own snapshot, then
	// hand the restart to the bounded backoff. The title probe can still
	// report the previous page this soon after a navigation, and a stale
	// title must not be snapshotted into the new session.
	if t.session != nil {
		t.finalizeLocked(true)
		t.lastSeenURL = state.URL
		t.beginRedetectLocked()
		return
	}
	if !t.redetectAt.IsZero() {
		// A URL change already armed re-detection; its backoff owns the
		// restart.
		return
	}
	t.startSessionLocked(result, state)
}

// flushTick emits a finalize event for an eligible in-flight session
// without ending it, so long-running videos get recorded even when the
// user never navigates away. Duplicate suppression is the aggregator's.
func (t *Tracker) flushTick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finalizeLocked(false)
}

// urlPollTick is the cheap high-frequency navigation signal: a bare string
// compare of the latest URL against the last one seen. On change it starts
// (or continues) the bounded-backoff re-detection, because page metadata
// can lag the URL change.
func (t *Tracker) urlPollTick() {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.latest
	if state.URL == "" {
		return
	}

	if state.URL != t.lastSeenURL {
		t.lastSeenURL = state.URL
		if t.session != nil && !t.sameVideoLocked(state.URL) {
			t.finalizeLocked(true)
		}
		if t.session == nil {
			t.beginRedetectLocked()
		}
	}

	t.redetectLocked(state)
}

// reconcilePauseLocked aligns the session's sub-state with the observed
// player and visibility flags.
func (t *Tracker) reconcilePauseLocked(state domain.PageState) {
	now := t.now()
	if state.Hidden || state.PlayerPaused {
		t.session.pause(now)
	} else {
		t.session.resume(now)
	}
}

// sameVideoLocked reports whether url still maps to the current session's
// video id.
func (t *Tracker) sameVideoLocked(url string) bool {
	if t.session == nil {
		return false
	}
	id, _, ok := extractor.ExtractVideoID(url)
	return ok && id == t.session.video.ID
}

// startSessionLocked opens a session from an extraction result, snapshotting
// identity and metadata at session start.
func (t *Tracker) startSessionLocked(result extractor.Result, state domain.PageState) {
	video := domain.VideoInfo{
		ID:          result.VideoID,
		Title:       result.Title,
		URL:         result.URL,
		IsShortForm: result.IsShortForm,
	}
	playing := !state.Hidden && !state.PlayerPaused
	t.session = newSession(video, playing, t.now())
	t.redetectAttempt = 0
	t.redetectAt = time.Time{}

	t.logger.Info("Watch session started",
		logging.String("session_id", t.session.id),
		logging.String("video_id", video.ID),
		logging.Bool("short_form", video.IsShortForm),
		logging.Bool("playing", playing),
	)
}

// beginRedetectLocked arms the re-detection backoff after a URL change. The
// first attempt waits out the base delay; the freshly navigated page often
// still reports the previous video's metadata.
func (t *Tracker) beginRedetectLocked() {
	t.redetectAttempt = 0
	t.redetectDelay = t.config.DetectRetryBase
	t.redetectAt = t.now().Add(t.config.DetectRetryBase)
}

// redetectLocked runs one bounded-backoff detection attempt when armed and
// due. Each attempt re-runs extraction against the freshest observation, so
// late-arriving metadata is picked up. After the attempt budget is spent
// the tracker settles in Idle until the next URL change.
func (t *Tracker) redetectLocked(state domain.PageState) {
	if t.session != nil || t.redetectAt.IsZero() {
		return
	}
	now := t.now()
	if now.Before(t.redetectAt) {
		return
	}

	result, ok := extractor.Extract(extractor.PageFields{
		URL:             state.URL,
		TitleCandidates: state.TitleCandidates,
		Description:     state.Description,
		PageTitle:       state.PageTitle,
	})
	// An empty title on a non-final attempt is worth another try: the page
	// often reports the URL change before its metadata settles.
	lastAttempt := t.redetectAttempt >= t.config.DetectRetryAttempts-1
	if ok && (result.Title != "" || lastAttempt) {
		t.startSessionLocked(result, state)
		return
	}

	t.redetectAttempt++
	if t.redetectAttempt >= t.config.DetectRetryAttempts {
		t.redetectAt = time.Time{}
		t.logger.Debug("Video detection gave up",
			logging.String("url", state.URL),
			logging.Int("attempts", t.redetectAttempt),
		)
		return
	}
	t.redetectAt = now.Add(t.redetectDelay)
	t.redetectDelay *= 2
}

// finalizeLocked emits the current session as a watch event when it meets
// the eligibility threshold. When end is true the session is cleared; a
// non-ending finalize keeps it alive so the same context can keep
// accumulating (the aggregator drops the duplicate ids).
func (t *Tracker) finalizeLocked(end bool) {
	if t.session == nil {
		return
	}
	now := t.now()
	total := t.session.total(now)

	if total >= t.config.MinWatchTime && t.enabled {
		event := t.session.event(now)
		t.logger.Info("Watch session finalized",
			logging.String("session_id", event.SessionID),
			logging.String("video_id", event.Video.ID),
			logging.Duration("watch_duration", event.WatchDuration),
			logging.Bool("session_ended", end),
		)
		go t.sink.HandleWatchEvent(context.Background(), event)
	} else if end && total < t.config.MinWatchTime {
		t.logger.Debug("Watch session dropped below threshold",
			logging.String("session_id", t.session.id),
			logging.String("video_id", t.session.video.ID),
			logging.Duration("watch_duration", total),
		)
	}

	if end {
		t.session = nil
	}
}
