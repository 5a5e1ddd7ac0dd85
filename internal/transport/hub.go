package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vburojevic/readtime/internal/domain"
	"github.com/vburojevic/readtime/internal/session"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 64
)

var _ session.Notifier = (*Hub)(nil)

// conn is one connected context host. Writes go through send and are
// drained by writePump; nothing else writes to ws.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	closed   bool
	contexts map[string]bool
}

func newConn(ws *websocket.Conn) *conn {
	c := &conn{
		ws:       ws,
		send:     make(chan []byte, sendBufferSize),
		contexts: make(map[string]bool),
	}
	go c.writePump()
	return c
}

func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands data to the write pump without blocking. It reports false
// when the connection is closed or its buffer is full.
func (c *conn) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *conn) track(id string) {
	c.mu.Lock()
	c.contexts[id] = true
	c.mu.Unlock()
}

func (c *conn) untrack(id string) {
	c.mu.Lock()
	delete(c.contexts, id)
	c.mu.Unlock()
}

// trackedIDs returns and forgets every context id registered through c.
func (c *conn) trackedIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.contexts))
	for id := range c.contexts {
		ids = append(ids, id)
	}
	c.contexts = make(map[string]bool)
	return ids
}

// Hub tracks connected hosts and fans pushes out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*conn]bool
	logger  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[*conn]bool),
		logger:  logger.Named("hub"),
	}
}

func (h *Hub) add(ws *websocket.Conn) *conn {
	c := newConn(ws)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// Broadcast sends msg to every connection. It never blocks; a connection
// whose buffer is full is dropped.
func (h *Hub) Broadcast(msg domain.Envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("broadcast marshal error", zap.Error(err))
		return
	}

	h.mu.RLock()
	clients := make([]*conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			h.logger.Warn("client too slow, disconnecting", zap.String("type", string(msg.Type)))
			h.remove(c)
		}
	}
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
