package cli

import (
	"fmt"

	"github.com/vburojevic/readtime/internal/logging"
	"go.uber.org/zap"
)

// newLogger builds the process logger on stderr. --quiet raises the floor
// to warn unless --verbose asks for more.
func newLogger(globals *Globals) *zap.Logger {
	level := globals.Level
	if globals.Quiet && !globals.Verbose {
		level = "warn"
	}
	logger, err := logging.New(globals.Stderr, level, globals.Verbose)
	if err != nil {
		fmt.Fprintf(globals.Stderr, "Warning: %v, using info level\n", err)
	}
	return logger
}
