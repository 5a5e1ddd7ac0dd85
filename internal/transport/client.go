package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vburojevic/readtime/internal/domain"
	"go.uber.org/zap"
)

// ErrClosed is returned by calls on a client whose connection is gone.
var ErrClosed = errors.New("connection closed")

const pushBufferSize = 16

// Client is a context host's connection to the tracker. Requests are
// correlated with responses by id; pushes arrive on Pushes.
type Client struct {
	conn   *websocket.Conn
	logger *zap.Logger

	nextID  atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan domain.Envelope
	err     error

	pushes chan domain.Envelope
	done   chan struct{}
}

// WSURL turns a host:port or http(s) base URL into the /ws endpoint URL.
func WSURL(addr string) string {
	switch {
	case strings.HasPrefix(addr, "ws://"), strings.HasPrefix(addr, "wss://"):
		return addr
	case strings.HasPrefix(addr, "http://"):
		return "ws://" + strings.TrimPrefix(addr, "http://") + "/ws"
	case strings.HasPrefix(addr, "https://"):
		return "wss://" + strings.TrimPrefix(addr, "https://") + "/ws"
	}
	return "ws://" + addr + "/ws"
}

// Dial connects to the tracker at rawURL (see WSURL).
func Dial(ctx context.Context, rawURL string, header http.Header, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	c := &Client{
		conn:    conn,
		logger:  logger.Named("client"),
		pending: make(map[uint64]chan domain.Envelope),
		pushes:  make(chan domain.Envelope, pushBufferSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.pushes)
	for {
		var msg domain.Envelope
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}

		if msg.ID == 0 && msg.IsPush() {
			select {
			case c.pushes <- msg:
			default:
				c.logger.Debug("push dropped", zap.String("type", string(msg.Type)))
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		} else {
			c.logger.Debug("uncorrelated response", zap.Uint64("id", msg.ID), zap.String("type", string(msg.Type)))
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
		close(c.done)
	}
}

// Pushes returns the push channel. It is closed when the connection ends.
func (c *Client) Pushes() <-chan domain.Envelope { return c.pushes }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.conn.Close()
	c.fail(ErrClosed)
	return err
}

// Call sends req and waits for its response. An error response is
// returned as a *domain.ErrorPayload.
func (c *Client) Call(ctx context.Context, req domain.Envelope) (domain.Envelope, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan domain.Envelope, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return domain.Envelope{}, ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return domain.Envelope{}, fmt.Errorf("send %s: %w", req.Type, err)
	}

	select {
	case resp := <-ch:
		if resp.Type == domain.MsgError && resp.Error != nil {
			return resp, resp.Error
		}
		return resp, nil
	case <-ctx.Done():
		c.forget(req.ID)
		return domain.Envelope{}, ctx.Err()
	case <-c.done:
		c.forget(req.ID)
		return domain.Envelope{}, ErrClosed
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Register adds a participating context.
func (c *Client) Register(ctx context.Context, contextID string) error {
	_, err := c.Call(ctx, domain.Envelope{Type: domain.MsgRegister, ContextID: contextID})
	return err
}

// Unregister removes a participating context.
func (c *Client) Unregister(ctx context.Context, contextID string) error {
	_, err := c.Call(ctx, domain.Envelope{Type: domain.MsgUnregister, ContextID: contextID})
	return err
}

// Tick reports one active second.
func (c *Client) Tick(ctx context.Context, contextID string) (domain.TickResult, error) {
	resp, err := c.Call(ctx, domain.Envelope{Type: domain.MsgTick, ContextID: contextID})
	if err != nil {
		return domain.TickResult{}, err
	}
	if resp.Tick == nil {
		return domain.TickResult{}, fmt.Errorf("tick response without result")
	}
	return *resp.Tick, nil
}

// Acknowledge dismisses the notification.
func (c *Client) Acknowledge(ctx context.Context, url string) error {
	_, err := c.Call(ctx, domain.Envelope{Type: domain.MsgAcknowledge, URL: url})
	return err
}

// Reset zeroes the session.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.Call(ctx, domain.Envelope{Type: domain.MsgResetSession})
	return err
}

// Settings fetches the current settings.
func (c *Client) Settings(ctx context.Context) (domain.Settings, error) {
	return c.settingsCall(ctx, domain.Envelope{Type: domain.MsgGetSettings})
}

// SetThreshold changes the notification threshold.
func (c *Client) SetThreshold(ctx context.Context, seconds int) (domain.Settings, error) {
	return c.settingsCall(ctx, domain.Envelope{Type: domain.MsgSetThreshold, ThresholdSeconds: &seconds})
}

// SetEnabled turns tracking on or off.
func (c *Client) SetEnabled(ctx context.Context, enabled bool) (domain.Settings, error) {
	return c.settingsCall(ctx, domain.Envelope{Type: domain.MsgSetEnabled, Enabled: &enabled})
}

func (c *Client) settingsCall(ctx context.Context, req domain.Envelope) (domain.Settings, error) {
	resp, err := c.Call(ctx, req)
	if err != nil {
		return domain.Settings{}, err
	}
	if resp.Settings == nil {
		return domain.Settings{}, fmt.Errorf("%s response without settings", req.Type)
	}
	return *resp.Settings, nil
}

// Status fetches a tracker snapshot.
func (c *Client) Status(ctx context.Context) (domain.SessionStatus, error) {
	resp, err := c.Call(ctx, domain.Envelope{Type: domain.MsgGetStatus})
	if err != nil {
		return domain.SessionStatus{}, err
	}
	if resp.Status == nil {
		return domain.SessionStatus{}, fmt.Errorf("status response without status")
	}
	return *resp.Status, nil
}

// ContextEntered reports a newly opened context and whether it is tracked.
func (c *Client) ContextEntered(ctx context.Context, contextID string, page domain.Page) (bool, error) {
	return c.pageCall(ctx, domain.MsgContextEntered, contextID, page)
}

// ContextNavigated reports a navigation inside a context.
func (c *Client) ContextNavigated(ctx context.Context, contextID string, page domain.Page) (bool, error) {
	return c.pageCall(ctx, domain.MsgContextNavigated, contextID, page)
}

// ContextLeft reports that a context closed.
func (c *Client) ContextLeft(ctx context.Context, contextID string) error {
	_, err := c.Call(ctx, domain.Envelope{Type: domain.MsgContextLeft, ContextID: contextID})
	return err
}

func (c *Client) pageCall(ctx context.Context, typ domain.MessageType, contextID string, page domain.Page) (bool, error) {
	resp, err := c.Call(ctx, domain.Envelope{Type: typ, ContextID: contextID, Page: &page})
	if err != nil {
		return false, err
	}
	return resp.Tracked != nil && *resp.Tracked, nil
}
