package cli

import (
	"errors"
	"fmt"

	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/output"
)

// Error codes emitted by commands, alongside the wire codes in domain.
const (
	codeConnectFailed = "CONNECT_FAILED"
	codeRequestFailed = "REQUEST_FAILED"
	codeInvalidFlags  = "INVALID_FLAGS"
	codeInvalidConfig = "INVALID_CONFIG"
	codeServeFailed   = "SERVE_FAILED"
)

// outputErrorCommon normalizes error emission across commands, respecting
// ndjson vs text formats so scripts always get machine-readable failures.
func outputErrorCommon(globals *Globals, code, message string, hint ...string) error {
	if globals != nil && globals.Format == output.FormatNDJSON {
		output.NewNDJSONWriter(globals.Stdout).WriteError(code, message, hint...)
	} else if globals != nil {
		output.NewTextWriter(globals.Stderr).WriteError(code, message, hint...)
	}
	return errors.New(message)
}

// outputRequestError reports a failed tracker call, keeping the tracker's
// own error code when it sent one.
func outputRequestError(globals *Globals, err error) error {
	var payload *domain.ErrorPayload
	if errors.As(err, &payload) {
		return outputErrorCommon(globals, payload.Code, payload.Message, payload.Hint)
	}
	return outputErrorCommon(globals, codeRequestFailed, fmt.Sprintf("request failed: %v", err))
}
