package domain

import "time"

// SchemaVersion is stamped on every JSON object readtime emits or persists.
const SchemaVersion = 1

// SessionState is the persisted part of a reading session.
type SessionState struct {
	SchemaVersion            int       `json:"schemaVersion"`
	CumulativeActiveSeconds  int       `json:"cumulative_active_seconds"`
	NotificationAcknowledged bool      `json:"notification_acknowledged"`
	StartedAt                time.Time `json:"started_at,omitempty"`
	UpdatedAt                time.Time `json:"updated_at,omitempty"`
}

// ParticipatingContext is a tab currently recognized as showing tracked content.
type ParticipatingContext struct {
	ID           string    `json:"id"`
	RegisteredAt time.Time `json:"registered_at"`
	LastTickAt   time.Time `json:"last_tick_at,omitempty"`
}

// TickResult is the tracker's answer to a tick.
type TickResult struct {
	ContextID               string `json:"context_id"`
	CumulativeActiveSeconds int    `json:"cumulative_active_seconds"`
	ThresholdReached        bool   `json:"threshold_reached"`
	Accepted                bool   `json:"accepted"` // false when coalesced or disabled
}

// SessionStatus is a point-in-time snapshot of the tracker
type SessionStatus struct {
	Type          string                 `json:"type"` // "status"
	SchemaVersion int                    `json:"schemaVersion"`
	Session       SessionState           `json:"session"`
	Settings      Settings               `json:"settings"`
	Contexts      []ParticipatingContext `json:"contexts"`
	Dismissals    int                    `json:"dismissals"`
	Degraded      bool                   `json:"degraded"`
}

// SessionEvent describes a session transition for verbose logs.
type SessionEvent struct {
	Reason     string `json:"reason"` // e.g. last_context_left, explicit_reset
	ContextID  string `json:"context_id,omitempty"`
	Cumulative int    `json:"cumulative_active_seconds"`
}
