package session

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/vburojevic/readtime/internal/domain"
)

// Session is the tracker's state machine: the cumulative active-time
// counter and the set of participating contexts. It is not safe for
// concurrent use; Tracker owns it from a single goroutine.
type Session struct {
	state    domain.SessionState
	settings domain.Settings
	contexts map[string]*domain.ParticipatingContext

	// Ticks from different contexts inside one window count once. The
	// window is measured from the last accepted tick.
	window       time.Duration
	lastAccepted time.Time
	lastID       string
	hasAccepted  bool
}

// NewSession restores a session from persisted state.
func NewSession(state domain.SessionState, settings domain.Settings, coalesceWindow time.Duration) *Session {
	if state.CumulativeActiveSeconds < 0 {
		state.CumulativeActiveSeconds = 0
	}
	return &Session{
		state:    state,
		settings: settings.Normalize(),
		contexts: make(map[string]*domain.ParticipatingContext),
		window:   coalesceWindow,
	}
}

// Register adds id to the participating set. It reports whether id was new.
func (s *Session) Register(id string, now time.Time) bool {
	if _, ok := s.contexts[id]; ok {
		return false
	}
	if len(s.contexts) == 0 && s.state.StartedAt.IsZero() {
		s.state.StartedAt = now
	}
	s.contexts[id] = &domain.ParticipatingContext{ID: id, RegisteredAt: now}
	return true
}

// Unregister removes id. When that empties the participating set the
// session resets. Unknown ids are ignored.
func (s *Session) Unregister(id string, now time.Time) (removed, reset bool) {
	if _, ok := s.contexts[id]; !ok {
		return false, false
	}
	delete(s.contexts, id)
	if len(s.contexts) == 0 {
		s.Reset(now)
		s.state.StartedAt = time.Time{}
		return true, true
	}
	return true, false
}

// RecordTick advances the counter by one for an active second reported by
// id. Ticks are ignored while disabled and from unregistered contexts. A
// tick is a duplicate when another context's tick was accepted less than a
// window ago; a context's own tick is a duplicate only inside half a window,
// so cadence jitter never drops its consecutive seconds.
func (s *Session) RecordTick(id string, now time.Time) domain.TickResult {
	result := domain.TickResult{
		ContextID:               id,
		CumulativeActiveSeconds: s.state.CumulativeActiveSeconds,
	}
	if !s.settings.Enabled {
		return result
	}
	pc, ok := s.contexts[id]
	if !ok {
		return result
	}
	pc.LastTickAt = now

	if s.duplicate(id, now) {
		return result
	}
	s.lastAccepted = now
	s.lastID = id
	s.hasAccepted = true

	s.state.CumulativeActiveSeconds++
	s.state.UpdatedAt = now

	result.Accepted = true
	result.CumulativeActiveSeconds = s.state.CumulativeActiveSeconds
	result.ThresholdReached = s.thresholdReached()
	return result
}

func (s *Session) duplicate(id string, now time.Time) bool {
	if s.window <= 0 || !s.hasAccepted {
		return false
	}
	since := now.Sub(s.lastAccepted)
	if id == s.lastID {
		return since < s.window/2
	}
	return since < s.window
}

// thresholdReached is inclusive and stays true on every tick until acknowledged.
func (s *Session) thresholdReached() bool {
	return !s.state.NotificationAcknowledged &&
		s.state.CumulativeActiveSeconds >= s.settings.ThresholdSeconds
}

// Acknowledge marks the current notification as dismissed. The counter is kept.
func (s *Session) Acknowledge(now time.Time) {
	s.state.NotificationAcknowledged = true
	s.state.UpdatedAt = now
}

// Reset zeroes the counter and clears the acknowledgement. Contexts stay registered.
func (s *Session) Reset(now time.Time) {
	s.state.CumulativeActiveSeconds = 0
	s.state.NotificationAcknowledged = false
	s.state.UpdatedAt = now
	s.hasAccepted = false
}

// State returns a copy of the persisted part of the session.
func (s *Session) State() domain.SessionState {
	return s.state
}

// Settings returns the settings consulted on each tick.
func (s *Session) Settings() domain.Settings {
	return s.settings
}

// SetSettings replaces the settings.
func (s *Session) SetSettings(settings domain.Settings) {
	s.settings = settings
}

// IsRegistered reports whether id participates.
func (s *Session) IsRegistered(id string) bool {
	_, ok := s.contexts[id]
	return ok
}

// Contexts returns the participating contexts ordered by id.
func (s *Session) Contexts() []domain.ParticipatingContext {
	ids := lo.Keys(s.contexts)
	sort.Strings(ids)
	return lo.Map(ids, func(id string, _ int) domain.ParticipatingContext {
		return *s.contexts[id]
	})
}
