package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/vburojevic/readtime/internal/domain"
)

// NDJSONWriter writes one JSON object per line.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter creates a writer on w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

// Write encodes v as a single line.
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// StatusOutput is the NDJSON shape of a status snapshot.
type StatusOutput struct {
	Type                     string                        `json:"type"`
	SchemaVersion            int                           `json:"schemaVersion"`
	CumulativeActiveSeconds  int                           `json:"cumulative_active_seconds"`
	ThresholdSeconds         int                           `json:"threshold_seconds"`
	Enabled                  bool                          `json:"enabled"`
	NotificationAcknowledged bool                          `json:"notification_acknowledged"`
	StartedAt                string                        `json:"started_at,omitempty"`
	UpdatedAt                string                        `json:"updated_at,omitempty"`
	Contexts                 []domain.ParticipatingContext `json:"contexts"`
	Dismissals               int                           `json:"dismissals"`
	Degraded                 bool                          `json:"degraded,omitempty"`
}

func (w *NDJSONWriter) WriteStatus(st domain.SessionStatus) error {
	contexts := st.Contexts
	if contexts == nil {
		contexts = []domain.ParticipatingContext{}
	}
	return w.Write(&StatusOutput{
		Type:                     "status",
		SchemaVersion:            SchemaVersion,
		CumulativeActiveSeconds:  st.Session.CumulativeActiveSeconds,
		ThresholdSeconds:         st.Settings.ThresholdSeconds,
		Enabled:                  st.Settings.Enabled,
		NotificationAcknowledged: st.Session.NotificationAcknowledged,
		StartedAt:                timestamp(st.Session.StartedAt),
		UpdatedAt:                timestamp(st.Session.UpdatedAt),
		Contexts:                 contexts,
		Dismissals:               st.Dismissals,
		Degraded:                 st.Degraded,
	})
}

// SettingsOutput is the NDJSON shape of the settings.
type SettingsOutput struct {
	Type             string `json:"type"`
	SchemaVersion    int    `json:"schemaVersion"`
	ThresholdSeconds int    `json:"threshold_seconds"`
	Enabled          bool   `json:"enabled"`
}

func (w *NDJSONWriter) WriteSettings(s domain.Settings) error {
	return w.Write(&SettingsOutput{
		Type:             "settings",
		SchemaVersion:    SchemaVersion,
		ThresholdSeconds: s.ThresholdSeconds,
		Enabled:          s.Enabled,
	})
}

// TickOutput is the NDJSON shape of a tick result.
type TickOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	domain.TickResult
}

func (w *NDJSONWriter) WriteTick(r domain.TickResult) error {
	return w.Write(&TickOutput{Type: "tick", SchemaVersion: SchemaVersion, TickResult: r})
}

// PushOutput is the NDJSON shape of a push observed by a client.
type PushOutput struct {
	Type          string           `json:"type"`
	SchemaVersion int              `json:"schemaVersion"`
	Push          string           `json:"push"`
	Settings      *domain.Settings `json:"settings,omitempty"`
}

func (w *NDJSONWriter) WritePush(msg domain.Envelope) error {
	return w.Write(&PushOutput{
		Type:          "push",
		SchemaVersion: SchemaVersion,
		Push:          string(msg.Type),
		Settings:      msg.Settings,
	})
}

// WriteInfo writes an info record; fields are merged into the object.
func (w *NDJSONWriter) WriteInfo(message string, fields map[string]any) error {
	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out["type"] = "info"
	out["schemaVersion"] = SchemaVersion
	out["message"] = message
	return w.Write(out)
}

// ErrorOutput is the NDJSON shape of an error.
type ErrorOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	out := &ErrorOutput{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		out.Hint = hint[0]
	}
	return w.Write(out)
}
