package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vburojevic/readtime/internal/domain"
)

// SchemaCmd outputs JSON Schema for readtime output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (status,settings,tick,push,info,error,envelope). Default: all"`
}

var schemaTypes = []string{"status", "settings", "tick", "push", "info", "error", "envelope"}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if globals.Format == "text" && len(c.Type) == 0 {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]interface{}{
		"status":   statusSchema(),
		"settings": settingsSchema(),
		"tick":     tickSchema(),
		"push":     pushSchema(),
		"info":     infoSchema(),
		"error":    errorSchema(),
		"envelope": envelopeSchema(),
	}

	typesToOutput := c.Type
	if len(typesToOutput) == 0 {
		typesToOutput = schemaTypes
	}

	output := map[string]interface{}{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "readtime Output Schemas",
		"description": "JSON Schema definitions for readtime NDJSON output and wire envelopes",
		"definitions": map[string]interface{}{},
	}

	defs := output["definitions"].(map[string]interface{})
	for _, t := range typesToOutput {
		t = strings.ToLower(strings.TrimSpace(t))
		if schema, ok := schemas[t]; ok {
			defs[t] = schema
		}
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}

func constProp(value string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "const": value}
}

func statusSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Session Status",
		"description": "Snapshot of the reading session",
		"properties": map[string]interface{}{
			"type":                      constProp("status"),
			"schemaVersion":             prop("integer", "Output schema version"),
			"cumulative_active_seconds": prop("integer", "Active reading seconds counted this session"),
			"threshold_seconds":         prop("integer", "Seconds of active reading before the prompt"),
			"enabled":                   prop("boolean", "Whether tracking is on"),
			"notification_acknowledged": prop("boolean", "Whether the prompt was dismissed this session"),
			"started_at": map[string]interface{}{
				"type":   "string",
				"format": "date-time",
			},
			"updated_at": map[string]interface{}{
				"type":   "string",
				"format": "date-time",
			},
			"contexts": map[string]interface{}{
				"type":        "array",
				"description": "Participating contexts",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":            prop("string", "Context id"),
						"registered_at": prop("string", "Registration time"),
						"last_tick_at":  prop("string", "Last tick time"),
					},
				},
			},
			"dismissals": prop("integer", "Recently dismissed page count"),
			"degraded":   prop("boolean", "True when persistence failed and state is in memory only"),
		},
		"required": []string{"type", "schemaVersion", "cumulative_active_seconds", "threshold_seconds", "enabled", "notification_acknowledged", "contexts"},
	}
}

func settingsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Settings",
		"description": "User settings",
		"properties": map[string]interface{}{
			"type":          constProp("settings"),
			"schemaVersion": prop("integer", "Output schema version"),
			"threshold_seconds": map[string]interface{}{
				"type":    "integer",
				"minimum": domain.MinThresholdSeconds,
				"maximum": domain.MaxThresholdSeconds,
			},
			"enabled": prop("boolean", "Whether tracking is on"),
		},
		"required": []string{"type", "threshold_seconds", "enabled"},
	}
}

func tickSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Tick Result",
		"description": "Tracker answer to a tick, printed by simulate when the prompt shows",
		"properties": map[string]interface{}{
			"type":                      constProp("tick"),
			"schemaVersion":             prop("integer", "Output schema version"),
			"context_id":                prop("string", "Reporting context"),
			"cumulative_active_seconds": prop("integer", "Counter after the tick"),
			"threshold_reached":         prop("boolean", "True when the prompt should be shown"),
			"accepted":                  prop("boolean", "False when coalesced or disabled"),
		},
		"required": []string{"type", "context_id", "cumulative_active_seconds", "threshold_reached", "accepted"},
	}
}

func pushSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Push",
		"description": "Push received from the tracker",
		"properties": map[string]interface{}{
			"type":          constProp("push"),
			"schemaVersion": prop("integer", "Output schema version"),
			"push": map[string]interface{}{
				"type": "string",
				"enum": []string{string(domain.MsgHideNotification), string(domain.MsgSettingsChanged)},
			},
			"settings": map[string]interface{}{"type": "object"},
		},
		"required": []string{"type", "push"},
	}
}

func infoSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"title":                "Info",
		"description":          "Informational message; extra fields vary by message",
		"additionalProperties": true,
		"properties": map[string]interface{}{
			"type":          constProp("info"),
			"schemaVersion": prop("integer", "Output schema version"),
			"message":       prop("string", "What happened"),
		},
		"required": []string{"type", "message"},
	}
}

func errorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"title":       "Error",
		"description": "Error message from readtime",
		"properties": map[string]interface{}{
			"type": constProp("error"),
			"code": map[string]interface{}{
				"type":        "string",
				"description": "Error code (e.g., CONNECT_FAILED, THRESHOLD_OUT_OF_RANGE)",
				"enum": []string{
					codeConnectFailed,
					codeRequestFailed,
					codeInvalidFlags,
					codeInvalidConfig,
					codeServeFailed,
					domain.CodeInvalidRequest,
					domain.CodeThresholdRange,
					domain.CodeUnknownType,
					domain.CodeTrackerStopped,
					domain.CodeInternal,
				},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "Suggested fix"),
		},
		"required": []string{"type", "code", "message"},
	}
}

func envelopeSchema() map[string]interface{} {
	types := []string{
		string(domain.MsgRegister), string(domain.MsgUnregister), string(domain.MsgTick),
		string(domain.MsgAcknowledge), string(domain.MsgResetSession), string(domain.MsgGetSettings),
		string(domain.MsgSetThreshold), string(domain.MsgSetEnabled), string(domain.MsgGetStatus),
		string(domain.MsgContextEntered), string(domain.MsgContextNavigated), string(domain.MsgContextLeft),
		string(domain.MsgAck), string(domain.MsgTickResult), string(domain.MsgSettings),
		string(domain.MsgStatus), string(domain.MsgError),
		string(domain.MsgHideNotification), string(domain.MsgSettingsChanged),
	}
	return map[string]interface{}{
		"type":        "object",
		"title":       "Wire Envelope",
		"description": "Message exchanged over /ws; responses echo the request id, pushes have none",
		"properties": map[string]interface{}{
			"type":              map[string]interface{}{"type": "string", "enum": types},
			"id":                prop("integer", "Request id, echoed in the response"),
			"context_id":        prop("string", "Context the message is about"),
			"threshold_seconds": prop("integer", "set_threshold argument"),
			"enabled":           prop("boolean", "set_enabled argument"),
			"url":               prop("string", "acknowledge_notification page URL"),
			"page": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"url":       prop("string", "Page URL"),
					"generator": prop("string", "Generator meta tag"),
					"markers":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
				},
			},
			"tracked":  prop("boolean", "Lifecycle ack: whether the context participates"),
			"tick":     map[string]interface{}{"type": "object"},
			"settings": map[string]interface{}{"type": "object"},
			"status":   map[string]interface{}{"type": "object"},
			"error":    map[string]interface{}{"type": "object"},
		},
		"required": []string{"type"},
	}
}

// Helper to output a quick reference
func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "readtime Output Types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  status    - Reading session snapshot")
	fmt.Fprintln(globals.Stdout, "  settings  - Threshold and enabled flag")
	fmt.Fprintln(globals.Stdout, "  tick      - Tick result (simulate)")
	fmt.Fprintln(globals.Stdout, "  push      - Push from the tracker (simulate)")
	fmt.Fprintln(globals.Stdout, "  info      - Informational message")
	fmt.Fprintln(globals.Stdout, "  error     - Error from readtime")
	fmt.Fprintln(globals.Stdout, "  envelope  - WebSocket wire message")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --type to filter: readtime schema --type status,error")
}
