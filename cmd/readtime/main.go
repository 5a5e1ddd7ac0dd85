package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/vburojevic/readtime/internal/cli"
	"github.com/vburojevic/readtime/internal/config"
)

const quickStart = `readtime - reading-time session tracker

Quick start:
  readtime serve                        Run the tracker (extension contexts connect over WebSocket)
  readtime status                       Show the current session
  readtime settings threshold 600       Prompt after 10 minutes of active reading
  readtime simulate -n 2 -d 30s         Drive the tracker with synthetic contexts

For help:
  readtime --help                       All commands and flags
  readtime schema                       JSON Schema for NDJSON output
`

func main() {
	// Show quick start if no args provided
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win
	vars := kong.Vars{
		"config_format": cfg.Format,
		"config_level":  cfg.Level,
		"config_addr":   cfg.Addr(),
	}

	ctx := kong.Parse(&c,
		kong.Name("readtime"),
		kong.Description("readtime: track active reading time across browser contexts and prompt once a threshold is reached"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	err = ctx.Run(globals)
	if err != nil {
		os.Exit(1)
	}
}
