package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"churnlens/internal/infrastructure"
)

// Progress event types pushed to dashboard clients.
const (
	EventStageStarted   = "stage:started"
	EventStageCompleted = "stage:completed"
	EventRunStarted     = "run:started"
	EventRunCompleted   = "run:completed"
	EventRunFailed      = "run:failed"
)

// ProgressEvent is one progress message broadcast to connected clients.
type ProgressEvent struct {
	Type      string         `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ProgressHub maintains the set of connected dashboard clients and
// broadcasts analysis progress to them. It implements retention.Observer so
// it can be plugged straight into the analyzer.
type ProgressHub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewProgressHub creates a hub with no connected clients.
func NewProgressHub(logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &ProgressHub{
		logger: logger.With(slog.String("component", "progress_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is a local tool; same-host pages are fine.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeWS upgrades the request and registers the client. The read loop only
// drains control frames; the dashboard never sends data messages.
func (h *ProgressHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.InfoContext(r.Context(), "dashboard client connected",
		slog.Int("clients", count))

	go h.readLoop(conn)
}

func (h *ProgressHub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *ProgressHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast sends an event to every connected client. Clients that fail to
// accept the write are dropped.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("dropping slow dashboard client",
				slog.String("error", err.Error()))
			h.drop(conn)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *ProgressHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *ProgressHub) Close() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// StageStarted implements retention.Observer.
func (h *ProgressHub) StageStarted(ctx context.Context, stage string) {
	h.Broadcast(ProgressEvent{
		Type:  EventStageStarted,
		RunID: infrastructure.GetRunID(ctx),
		Stage: stage,
	})
}

// StageCompleted implements retention.Observer.
func (h *ProgressHub) StageCompleted(ctx context.Context, stage string, detail map[string]any) {
	h.Broadcast(ProgressEvent{
		Type:   EventStageCompleted,
		RunID:  infrastructure.GetRunID(ctx),
		Stage:  stage,
		Detail: detail,
	})
}
