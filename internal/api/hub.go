package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"endex-futures-lab/internal/observability"
)

const writeTimeout = 10 * time.Second

// RefreshNotice is pushed to every connected session after a calendar
// snapshot swap, so dashboards can re-resolve generics without polling.
type RefreshNotice struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// Hub tracks websocket sessions and broadcasts refresh notices to them.
type Hub struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[*websocket.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins in development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:   logger.With().Str("component", "ws-hub").Logger(),
		sessions: make(map[*websocket.Conn]struct{}),
	}
}

// HandleWS upgrades the request and keeps the session registered until the
// peer disconnects. The server never expects client messages; the read loop
// exists only to observe the close.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.register(conn)
	defer h.unregister(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends a refresh notice to every connected session. Sessions
// that fail the write are dropped.
func (h *Hub) Broadcast(version int64) {
	notice := RefreshNotice{Type: "calendar_refreshed", Version: version}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.sessions {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(notice); err != nil {
			h.logger.Warn().Err(err).Msg("dropping websocket session")
			conn.Close()
			delete(h.sessions, conn)
			observability.DefaultMetrics.WSSessions.Dec()
		}
	}

	h.logger.Debug().
		Int64("version", version).
		Int("sessions", len(h.sessions)).
		Msg("broadcast refresh notice")
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close disconnects every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.sessions {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		delete(h.sessions, conn)
		observability.DefaultMetrics.WSSessions.Dec()
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.sessions[conn] = struct{}{}
	h.mu.Unlock()
	observability.DefaultMetrics.WSSessions.Inc()
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.sessions[conn]; ok {
		delete(h.sessions, conn)
		observability.DefaultMetrics.WSSessions.Dec()
	}
	h.mu.Unlock()
	conn.Close()
}
