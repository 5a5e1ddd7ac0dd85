package cli

import (
	"context"

	"github.com/vburojevic/readtime/internal/transport"
)

// StatusCmd shows the tracker's current session.
type StatusCmd struct{}

// Run executes the status command
func (c *StatusCmd) Run(globals *Globals) error {
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		return globals.Emitter().WriteStatus(st)
	})
}

// ResetCmd zeroes the session and hides any shown prompt.
type ResetCmd struct{}

// Run executes the reset command
func (c *ResetCmd) Run(globals *Globals) error {
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		if err := client.Reset(ctx); err != nil {
			return err
		}
		globals.Info("session reset", nil)
		return nil
	})
}

// AckCmd acknowledges the notification as if the user dismissed it.
type AckCmd struct {
	URL string `arg:"" optional:"" help:"Page URL to remember as dismissed"`
}

// Run executes the ack command
func (c *AckCmd) Run(globals *Globals) error {
	return withTracker(globals, func(ctx context.Context, client *transport.Client) error {
		if err := client.Acknowledge(ctx, c.URL); err != nil {
			return err
		}
		fields := map[string]any{}
		if c.URL != "" {
			fields["url"] = c.URL
		}
		globals.Info("notification acknowledged", fields)
		return nil
	})
}
