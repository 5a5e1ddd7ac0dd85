// Package cli implements the readtime command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/vburojevic/readtime/internal/config"
	"github.com/vburojevic/readtime/internal/output"
	"go.uber.org/zap"
)

// Set by the linker.
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the kong command tree.
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"ndjson,text,auto" help:"Output format (ndjson, text, auto picks text on a terminal)"`
	Level   string `default:"${config_level}" help:"Log level for server logs (debug, info, warn, error)"`
	Quiet   bool   `short:"q" help:"Suppress informational output"`
	Verbose bool   `short:"v" help:"Debug logging to stderr"`
	Addr    string `default:"${config_addr}" help:"Tracker address (host:port)"`

	Serve      ServeCmd      `cmd:"" help:"Run the session tracker and its WebSocket endpoint"`
	Status     StatusCmd     `cmd:"" help:"Show the current reading session"`
	Settings   SettingsCmd   `cmd:"" help:"Show or change settings"`
	Reset      ResetCmd      `cmd:"" help:"Reset the reading session"`
	Ack        AckCmd        `cmd:"" help:"Acknowledge the reading-time notification"`
	Simulate   SimulateCmd   `cmd:"" help:"Drive the tracker with synthetic reading contexts"`
	Config     ConfigCmd     `cmd:"" help:"Inspect configuration"`
	Schema     SchemaCmd     `cmd:"" help:"Print JSON Schema for NDJSON output"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completions"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// Globals is passed to every command's Run.
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool
	Addr    string

	Stdout io.Writer
	Stderr io.Writer
	Config *config.Config
	Logger *zap.Logger
}

// NewGlobalsWithConfig builds Globals from parsed flags. Flags were
// defaulted from cfg through kong vars, so they already win over it.
func NewGlobalsWithConfig(c *CLI, cfg *config.Config) *Globals {
	if cfg == nil {
		cfg = config.Default()
	}
	g := &Globals{
		Format:  output.ResolveFormat(c.Format, os.Stdout),
		Level:   c.Level,
		Quiet:   c.Quiet || cfg.Quiet,
		Verbose: c.Verbose || cfg.Verbose,
		Addr:    c.Addr,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Addr == "" {
		g.Addr = cfg.Addr()
	}
	g.Logger = newLogger(g)
	return g
}

// Emitter returns the output writer for the resolved format.
func (g *Globals) Emitter() output.Emitter {
	return output.New(g.Format, g.Stdout)
}

// Info writes an informational record unless --quiet is set.
func (g *Globals) Info(message string, fields map[string]any) {
	if g.Quiet {
		return
	}
	g.Emitter().WriteInfo(message, fields)
}

// Debug logs a formatted debug line when --verbose is set.
func (g *Globals) Debug(format string, args ...interface{}) {
	if !g.Verbose {
		return
	}
	g.logger().Debug(fmt.Sprintf(format, args...))
}

func (g *Globals) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}
