package tracker

import (
	"time"

	"github.com/google/uuid"

	"github.com/watchwise/watchwise/internal/domain"
)

// session is one in-flight watch session. It is never persisted: a session
// that dies below the eligibility threshold is intentionally dropped.
type session struct {
	// id correlates log lines and finalize events for one session.
	id string

	// video is snapshotted at session start so later page mutations cannot
	// leak into the finalize.
	video domain.VideoInfo

	// watchStart is the moment the clock last started; zero while paused.
	watchStart time.Time

	// accumulated holds the closed active intervals.
	accumulated time.Duration

	paused    bool
	startedAt time.Time
}

// newSession opens a session for video. When playing is false the session
// starts directly in the paused sub-state.
func newSession(video domain.VideoInfo, playing bool, now time.Time) *session {
	s := &session{
		id:        uuid.New().String(),
		video:     video,
		startedAt: now,
		paused:    !playing,
	}
	if playing {
		s.watchStart = now
	}
	return s
}

// pause folds the open interval into the accumulator and stops the clock.
// Pausing an already-paused session is a no-op.
func (s *session) pause(now time.Time) {
	if s.paused {
		return
	}
	if !s.watchStart.IsZero() {
		s.accumulated += now.Sub(s.watchStart)
		s.watchStart = time.Time{}
	}
	s.paused = true
}

// resume restarts the clock. Resuming an active session is a no-op.
func (s *session) resume(now time.Time) {
	if !s.paused {
		return
	}
	s.watchStart = now
	s.paused = false
}

// total returns accumulated active watch time including the open interval.
func (s *session) total(now time.Time) time.Duration {
	d := s.accumulated
	if !s.watchStart.IsZero() {
		d += now.Sub(s.watchStart)
	}
	return d
}

// event converts the session into an immutable finalize event.
func (s *session) event(now time.Time) domain.WatchEvent {
	return domain.WatchEvent{
		SessionID:     s.id,
		Video:         s.video,
		WatchDuration: s.total(now),
		FinalizedAt:   now,
	}
}
