package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/vburojevic/readtime/internal/domain"
)

// TextWriter renders results for a human at a terminal.
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a writer on w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (w *TextWriter) WriteStatus(st domain.SessionStatus) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("FIELD", "VALUE")
	rows := [][]string{
		{"active time", formatSeconds(st.Session.CumulativeActiveSeconds)},
		{"threshold", formatSeconds(st.Settings.ThresholdSeconds)},
		{"enabled", strconv.FormatBool(st.Settings.Enabled)},
		{"acknowledged", strconv.FormatBool(st.Session.NotificationAcknowledged)},
		{"contexts", strconv.Itoa(len(st.Contexts))},
		{"dismissals", strconv.Itoa(st.Dismissals)},
	}
	if !st.Session.StartedAt.IsZero() {
		rows = append(rows, []string{"started", timestamp(st.Session.StartedAt)})
	}
	if st.Degraded {
		rows = append(rows, []string{"persistence", "degraded (in memory)"})
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(st.Contexts) == 0 {
		return nil
	}
	ctxTable := tablewriter.NewWriter(w.w)
	ctxTable.Header("CONTEXT", "REGISTERED", "LAST TICK")
	for _, pc := range st.Contexts {
		if err := ctxTable.Append([]string{pc.ID, timestamp(pc.RegisteredAt), timestamp(pc.LastTickAt)}); err != nil {
			return err
		}
	}
	return ctxTable.Render()
}

func (w *TextWriter) WriteSettings(s domain.Settings) error {
	table := tablewriter.NewWriter(w.w)
	table.Header("SETTING", "VALUE")
	if err := table.Append([]string{"threshold_seconds", strconv.Itoa(s.ThresholdSeconds)}); err != nil {
		return err
	}
	if err := table.Append([]string{"enabled", strconv.FormatBool(s.Enabled)}); err != nil {
		return err
	}
	return table.Render()
}

func (w *TextWriter) WriteTick(r domain.TickResult) error {
	mark := ""
	if r.ThresholdReached {
		mark = " threshold reached"
	}
	if !r.Accepted {
		mark += " (not counted)"
	}
	_, err := fmt.Fprintf(w.w, "[%s] %s%s\n", r.ContextID, formatSeconds(r.CumulativeActiveSeconds), mark)
	return err
}

func (w *TextWriter) WritePush(msg domain.Envelope) error {
	if msg.Settings != nil {
		_, err := fmt.Fprintf(w.w, "push: %s (threshold %ds, enabled %t)\n",
			msg.Type, msg.Settings.ThresholdSeconds, msg.Settings.Enabled)
		return err
	}
	_, err := fmt.Fprintf(w.w, "push: %s\n", msg.Type)
	return err
}

func (w *TextWriter) WriteInfo(message string, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := fmt.Fprintln(w.w, message)
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	_, err := fmt.Fprintf(w.w, "%s %s\n", message, strings.Join(parts, " "))
	return err
}

func (w *TextWriter) WriteError(code, message string, hint ...string) error {
	if len(hint) > 0 && hint[0] != "" {
		_, err := fmt.Fprintf(w.w, "Error [%s]: %s (hint: %s)\n", code, message, hint[0])
		return err
	}
	_, err := fmt.Fprintf(w.w, "Error [%s]: %s\n", code, message)
	return err
}

func formatSeconds(n int) string {
	return (time.Duration(n) * time.Second).String()
}
