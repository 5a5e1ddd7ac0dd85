// Package output renders command results as NDJSON or human-readable text.
package output

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/vburojevic/readtime/internal/domain"
)

// SchemaVersion is stamped on every NDJSON record.
const SchemaVersion = domain.SchemaVersion

// Formats accepted by --format.
const (
	FormatNDJSON = "ndjson"
	FormatText   = "text"
	FormatAuto   = "auto"
)

// Emitter is implemented by both writers so commands stay format-agnostic.
type Emitter interface {
	WriteStatus(st domain.SessionStatus) error
	WriteSettings(s domain.Settings) error
	WriteTick(r domain.TickResult) error
	WritePush(msg domain.Envelope) error
	WriteInfo(message string, fields map[string]any) error
	WriteError(code, message string, hint ...string) error
}

// ResolveFormat turns "auto" into text for terminals and ndjson otherwise.
func ResolveFormat(format string, w io.Writer) string {
	if format != FormatAuto && format != "" {
		return format
	}
	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatText
	}
	return FormatNDJSON
}

// New returns the emitter for an already resolved format.
func New(format string, w io.Writer) Emitter {
	if format == FormatText {
		return NewTextWriter(w)
	}
	return NewNDJSONWriter(w)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
