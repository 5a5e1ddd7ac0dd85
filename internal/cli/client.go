package cli

import (
	"context"
	"time"

	"github.com/vburojevic/readtime/internal/transport"
)

const requestTimeout = 5 * time.Second

// withTracker dials the running tracker, runs fn and closes the connection.
func withTracker(globals *Globals, fn func(ctx context.Context, c *transport.Client) error) error {
	if err := validateFlags(globals); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	url := transport.WSURL(globals.Addr)
	globals.Debug("dialing %s", url)
	c, err := transport.Dial(ctx, url, nil, globals.logger())
	if err != nil {
		return outputErrorCommon(globals, codeConnectFailed, err.Error(), "start the tracker with 'readtime serve'")
	}
	defer c.Close()

	if err := fn(ctx, c); err != nil {
		return outputRequestError(globals, err)
	}
	return nil
}
