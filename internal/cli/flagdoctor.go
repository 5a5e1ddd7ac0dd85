package cli

import (
	"net"
	"strconv"
)

// validateFlags centralizes common flag combinations to keep behavior consistent.
func validateFlags(globals *Globals) error {
	if globals == nil {
		return nil
	}
	// quiet + verbose contradict each other
	if globals.Quiet && globals.Verbose {
		return outputErrorCommon(globals, codeInvalidFlags, "--quiet cannot be combined with --verbose", "drop one of the two flags")
	}
	_, port, err := net.SplitHostPort(globals.Addr)
	if err != nil {
		return outputErrorCommon(globals, codeInvalidFlags, "invalid --addr "+strconv.Quote(globals.Addr), "use host:port, e.g. 127.0.0.1:8787")
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return outputErrorCommon(globals, codeInvalidFlags, "invalid port in --addr "+strconv.Quote(globals.Addr), "use a port between 1 and 65535")
	}
	return nil
}
