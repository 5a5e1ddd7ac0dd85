package cli

import (
	"encoding/json"
	"fmt"

	"github.com/vburojevic/readtime/internal/config"
	"github.com/vburojevic/readtime/internal/output"
	"github.com/vburojevic/readtime/internal/store"
	"gopkg.in/yaml.v3"
)

// ConfigCmd groups the config subcommands.
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show config file and state locations"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample config file"`
}

// ConfigShowCmd prints the effective configuration.
type ConfigShowCmd struct{}

// ConfigOutput is the NDJSON shape of config show.
type ConfigOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	*config.Config
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if globals.Format == output.FormatNDJSON {
		return json.NewEncoder(globals.Stdout).Encode(ConfigOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			Config:        cfg,
		})
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(globals.Stdout, "Current Configuration:")
	fmt.Fprintln(globals.Stdout)
	_, err = globals.Stdout.Write(data)
	return err
}

// ConfigPathCmd prints where configuration and state live.
type ConfigPathCmd struct{}

// ConfigPathOutput is the NDJSON shape of config path.
type ConfigPathOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Path          string `json:"path"`
	StateDir      string `json:"state_dir,omitempty"`
}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	stateDir, _ := store.StateDir()

	if globals.Format == output.FormatNDJSON {
		return json.NewEncoder(globals.Stdout).Encode(ConfigPathOutput{
			Type:          "config_path",
			SchemaVersion: output.SchemaVersion,
			Path:          path,
			StateDir:      stateDir,
		})
	}

	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Create readtime.yaml in ~/.config/readtime or the current directory ('readtime config generate').")
	} else {
		fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	}
	if stateDir != "" {
		fmt.Fprintf(globals.Stdout, "State dir:   %s\n", stateDir)
	}
	return nil
}

// ConfigGenerateCmd prints a config file populated with defaults.
type ConfigGenerateCmd struct{}

const configHeader = `# readtime configuration file
# Place as readtime.yaml in ~/.config/readtime, your home directory or the
# working directory. Every key can also be set with READTIME_<KEY>.
`

// Run executes the config generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return err
	}
	fmt.Fprint(globals.Stdout, configHeader)
	_, err = globals.Stdout.Write(data)
	return err
}
