package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/transport"
)

// SettingsCmd groups the settings subcommands.
type SettingsCmd struct {
	Show      SettingsShowCmd      `cmd:"" default:"1" help:"Show current settings"`
	Threshold SettingsThresholdCmd `cmd:"" help:"Set the notification threshold in seconds"`
	Enabled   SettingsEnabledCmd   `cmd:"" help:"Turn tracking on or off"`
}

// SettingsShowCmd prints the settings.
type SettingsShowCmd struct{}

// Run executes the settings show command
func (c *SettingsShowCmd) Run(globals *Globals) error {
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		s, err := client.Settings(ctx)
		if err != nil {
			return err
		}
		return globals.Emitter().WriteSettings(s)
	})
}

// SettingsThresholdCmd sets the threshold.
type SettingsThresholdCmd struct {
	Seconds int `arg:"" help:"Threshold in seconds (30-1800)"`
}

// Run executes the settings threshold command
func (c *SettingsThresholdCmd) Run(globals *Globals) error {
	if err := domain.ValidateThreshold(c.Seconds); err != nil {
		return outputErrorCommon(globals, domain.CodeThresholdRange, err.Error(),
			fmt.Sprintf("pick a value between %d and %d", domain.MinThresholdSeconds, domain.MaxThresholdSeconds))
	}
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		s, err := client.SetThreshold(ctx, c.Seconds)
		if err != nil {
			return err
		}
		return globals.Emitter().WriteSettings(s)
	})
}

// SettingsEnabledCmd toggles tracking.
type SettingsEnabledCmd struct {
	Value string `arg:"" enum:"on,off,true,false" help:"on or off"`
}

// Run executes the settings enabled command
func (c *SettingsEnabledCmd) Run(globals *Globals) error {
	v := strings.ToLower(c.Value)
	enabled := v == "on" || v == "true"
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		s, err := client.SetEnabled(ctx, enabled)
		if err != nil {
			return err
		}
		return globals.Emitter().WriteSettings(s)
	})
}
