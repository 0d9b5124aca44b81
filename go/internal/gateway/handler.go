package gateway

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/scoreboard/go/internal/broadcast"
	"github.com/mcdev12/scoreboard/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// Subscriptions is the part of the match app the gateway drives
type Subscriptions interface {
	Subscribe(ctx context.Context, matchID string, sub broadcast.Subscriber) error
	Unsubscribe(matchID string, sub broadcast.Subscriber)
}

// StatsSource reports fan-out membership
type StatsSource interface {
	Stats() broadcast.Stats
}

// WebSocketHandler upgrades viewer requests and keeps track of open connections
type WebSocketHandler struct {
	subs     Subscriptions
	stats    StatsSource
	upgrader websocket.Upgrader
	config   ConnectionConfig

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(subs Subscriptions, stats StatsSource, config ConnectionConfig) *WebSocketHandler {
	return &WebSocketHandler{
		subs:  subs,
		stats: stats,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
		conns:  make(map[*Connection]struct{}),
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/match/{id}", h.HandleMatchConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}

// HandleMatchConnection handles GET /ws/match/{id}. The request goroutine
// serves as the read pump and returns once the viewer disconnects.
func (h *WebSocketHandler) HandleMatchConnection(w http.ResponseWriter, r *http.Request) {
	matchID := r.PathValue("id")
	if matchID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "match id is required")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied
		log.Debug().Err(err).Str("match_id", matchID).Msg("failed to upgrade WebSocket connection")
		return
	}

	conn := newConnection(matchID, ws, h.config)
	h.track(conn)
	defer h.untrack(conn)

	go conn.writePump()

	if err := h.subs.Subscribe(r.Context(), matchID, conn); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID()).
			Str("match_id", matchID).
			Msg("failed to subscribe connection")
		conn.Close()
		return
	}
	defer h.subs.Unsubscribe(matchID, conn)

	log.Info().
		Str("connection_id", conn.ID()).
		Str("match_id", matchID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	conn.readPump()

	log.Info().
		Str("connection_id", conn.ID()).
		Str("match_id", matchID).
		Msg("WebSocket connection closed")
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.stats.Stats())
}

// Open returns the number of connections currently served
func (h *WebSocketHandler) Open() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes every open connection. http.Server.Shutdown does not
// touch hijacked connections, so the process calls this on the way out.
func (h *WebSocketHandler) CloseAll() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Int("connections", len(conns)).Msg("closed WebSocket connections")
}

func (h *WebSocketHandler) track(c *Connection) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *WebSocketHandler) untrack(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}
