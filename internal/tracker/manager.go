package tracker

import (
	"context"
	"sync"

	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/telemetry"
)

// Manager owns one Tracker per page context. Contexts appear on their first
// observation and share the tracking-enabled flag, which mirrors the
// persisted toggle.
type Manager struct {
	config    Config
	sink      Sink
	telemetry *telemetry.Provider
	logger    logging.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
	enabled  bool
	stopped  bool
}

// NewManager creates a tracker manager. enabled seeds the shared tracking
// toggle, usually from the persisted "isTracking" value.
func NewManager(config Config, sink Sink, tel *telemetry.Provider, logger logging.Logger, enabled bool) *Manager {
	config.setDefaults()
	return &Manager{
		config:    config,
		sink:      sink,
		telemetry: tel,
		logger:    logger,
		trackers:  make(map[string]*Tracker),
		enabled:   enabled,
	}
}

// Observe routes a page observation to its context's tracker, creating and
// starting one on first sight of the context id. Tracker lifetime is owned
// by the manager, not by whoever delivered the observation.
func (m *Manager) Observe(state domain.PageState) {
	if state.ContextID == "" {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	t, ok := m.trackers[state.ContextID]
	if !ok {
		t = New(state.ContextID, m.config, m.sink, m.logger)
		t.SetEnabled(m.enabled)
		m.trackers[state.ContextID] = t
		m.telemetry.SetActiveTrackers(len(m.trackers))
		if err := t.Start(context.Background()); err != nil {
			m.logger.Error("Failed to start tracker",
				logging.String("context_id", state.ContextID),
				logging.Error(err),
			)
		}
	}
	m.mu.Unlock()

	t.SetPageState(state)
}

// SetEnabled flips the shared tracking toggle and broadcasts it to every
// live tracker.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
	for _, t := range m.trackers {
		t.SetEnabled(enabled)
	}
}

// Enabled reports the shared tracking toggle.
func (m *Manager) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Stop stops every tracker, finalizing eligible in-flight sessions.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	for _, t := range m.trackers {
		t.Stop()
	}
	m.telemetry.SetActiveTrackers(0)
}
