// Package transport carries envelopes between context hosts and the
// tracker over WebSocket.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vburojevic/readtime/internal/domain"
	"go.uber.org/zap"
)

const (
	requestTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
	maxMessageSize  = 64 << 10
)

// Tracker is the session API the server dispatches to.
type Tracker interface {
	Register(ctx context.Context, id string) error
	Unregister(ctx context.Context, id string) error
	Tick(ctx context.Context, id string) (domain.TickResult, error)
	Acknowledge(ctx context.Context, url string) error
	Reset(ctx context.Context) error
	Settings(ctx context.Context) (domain.Settings, error)
	SetThreshold(ctx context.Context, seconds int) (domain.Settings, error)
	SetEnabled(ctx context.Context, enabled bool) (domain.Settings, error)
	Status(ctx context.Context) (domain.SessionStatus, error)
}

// Lifecycle receives context lifecycle events.
type Lifecycle interface {
	OnContextEntered(ctx context.Context, id string, page domain.Page) (bool, error)
	OnContextNavigated(ctx context.Context, id string, page domain.Page) (bool, error)
	OnContextLeft(ctx context.Context, id string) error
}

// Server exposes the tracker on /ws plus a couple of plain HTTP endpoints.
type Server struct {
	tracker        Tracker
	lifecycle      Lifecycle
	hub            *Hub
	logger         *zap.Logger
	instanceID     string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

// NewServer creates a server. An empty allowedOrigins list accepts any origin.
func NewServer(tracker Tracker, lifecycle Lifecycle, hub *Hub, allowedOrigins []string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		tracker:        tracker,
		lifecycle:      lifecycle,
		hub:            hub,
		logger:         logger.Named("server"),
		instanceID:     uuid.NewString(),
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

// Hub returns the push hub. Wire it into the tracker as its Notifier.
func (s *Server) Hub() *Hub { return s.hub }

// SetupRoutes registers the server's endpoints on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr), zap.String("instance", s.instanceID))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade error", zap.Error(err))
		return
	}

	s.logger.Debug("client connected", zap.String("remote", r.RemoteAddr))
	c := s.hub.add(ws)
	defer func() {
		s.hub.remove(c)
		s.releaseContexts(c)
		s.logger.Debug("client disconnected", zap.String("remote", r.RemoteAddr))
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var req domain.Envelope
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(c, domain.NewErrorEnvelope(0, domain.CodeInvalidRequest, "malformed envelope: "+err.Error()))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		resp := s.dispatch(ctx, c, req)
		cancel()
		s.reply(c, resp)
	}
}

func (s *Server) reply(c *conn, resp domain.Envelope) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("response marshal error", zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		s.logger.Debug("response dropped", zap.String("type", string(resp.Type)), zap.Uint64("id", resp.ID))
	}
}

// releaseContexts leaves every context that was registered through c.
func (s *Server) releaseContexts(c *conn) {
	ids := c.trackedIDs()
	if len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for _, id := range ids {
		if s.lifecycle != nil {
			if err := s.lifecycle.OnContextLeft(ctx, id); err != nil {
				s.logger.Debug("release context", zap.String("context_id", id), zap.Error(err))
			}
		}
		if err := s.tracker.Unregister(ctx, id); err != nil {
			s.logger.Debug("release context", zap.String("context_id", id), zap.Error(err))
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := s.tracker.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"instance": s.instanceID,
		"clients":  s.hub.ClientCount(),
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.allowedOrigins) == 0 {
		return true
	}
	if s.allowedOrigins[origin] {
		return true
	}
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		return s.allowedHosts[parsed.Host]
	}
	return false
}
