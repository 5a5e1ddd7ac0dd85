package domain

import "fmt"

// MessageType names every envelope exchanged between contexts and the tracker.
type MessageType string

// Requests sent by a context (or the CLI) to the tracker.
const (
	MsgRegister         MessageType = "register"
	MsgUnregister       MessageType = "unregister"
	MsgTick             MessageType = "tick"
	MsgAcknowledge      MessageType = "acknowledge_notification"
	MsgResetSession     MessageType = "reset_session"
	MsgGetSettings      MessageType = "get_settings"
	MsgSetThreshold     MessageType = "set_threshold"
	MsgSetEnabled       MessageType = "set_enabled"
	MsgGetStatus        MessageType = "get_status"
	MsgContextEntered   MessageType = "context_entered"
	MsgContextNavigated MessageType = "context_navigated"
	MsgContextLeft      MessageType = "context_left"
)

// Responses, carrying the request id.
const (
	MsgAck        MessageType = "ack"
	MsgTickResult MessageType = "tick_result"
	MsgSettings   MessageType = "settings"
	MsgStatus     MessageType = "status"
	MsgError      MessageType = "error"
)

// Pushes, sent unsolicited with id 0.
const (
	MsgHideNotification MessageType = "hide_notification"
	MsgSettingsChanged  MessageType = "settings_changed"
)

// Error codes carried in ErrorPayload.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeThresholdRange = "THRESHOLD_OUT_OF_RANGE"
	CodeUnknownType    = "UNKNOWN_TYPE"
	CodeTrackerStopped = "TRACKER_STOPPED"
	CodeInternal       = "INTERNAL"
)

// Page describes what a context is displaying, as reported by the host.
type Page struct {
	URL       string   `json:"url"`
	Generator string   `json:"generator,omitempty"` // <meta name="generator">
	Markers   []string `json:"markers,omitempty"`   // DOM markers found on the page
}

// ErrorPayload is the body of an error response.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

func (e *ErrorPayload) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Envelope is the single JSON shape used on the wire. Only the fields
// relevant to Type are set.
type Envelope struct {
	Type             MessageType    `json:"type"`
	ID               uint64         `json:"id,omitempty"`
	ContextID        string         `json:"context_id,omitempty"`
	ThresholdSeconds *int           `json:"threshold_seconds,omitempty"`
	Enabled          *bool          `json:"enabled,omitempty"`
	URL              string         `json:"url,omitempty"`
	Page             *Page          `json:"page,omitempty"`
	Tracked          *bool          `json:"tracked,omitempty"`
	Tick             *TickResult    `json:"tick,omitempty"`
	Settings         *Settings      `json:"settings,omitempty"`
	Status           *SessionStatus `json:"status,omitempty"`
	Error            *ErrorPayload  `json:"error,omitempty"`
}

// IsPush reports whether e is an unsolicited push.
func (e Envelope) IsPush() bool {
	return e.Type == MsgHideNotification || e.Type == MsgSettingsChanged
}

// NewErrorEnvelope builds an error response for request id.
func NewErrorEnvelope(id uint64, code, message string) Envelope {
	return Envelope{
		Type:  MsgError,
		ID:    id,
		Error: &ErrorPayload{Code: code, Message: message},
	}
}
