package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tictacroom/internal/broadcast"
	"tictacroom/internal/config"
	"tictacroom/internal/models"
)

// Router is the request surface a connection drives.
type Router interface {
	Connect(connID string) *broadcast.Client
	Handle(ctx context.Context, connID string, req models.Request)
	Disconnect(ctx context.Context, connID string)
}

// Handler handles WebSocket connections for real-time game updates.
type Handler struct {
	router   Router
	cfg      config.WebsocketConfig
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler. An allowed origin of "*"
// accepts any origin.
func NewHandler(router Router, cfg config.WebsocketConfig, allowedOrigins []string, logger *zap.Logger) *Handler {
	return &Handler{
		router: router,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(allowedOrigins),
		},
		logger: logger.Named("ws"),
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// RegisterRoutes sets up the WebSocket routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}

	ctx := context.WithoutCancel(r.Context())
	connID := uuid.NewString()
	client := h.router.Connect(connID)
	c := &connection{
		id:     connID,
		conn:   conn,
		cfg:    h.cfg,
		router: h.router,
		logger: h.logger.With(zap.String("conn_id", connID)),
	}
	go c.writeLoop(client.Outbox())

	// Joining through the path admits the connection straight away.
	if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" {
		h.router.Handle(ctx, connID, models.Request{
			Type:        models.RequestAdmit,
			SessionID:   sessionID,
			DisplayName: r.URL.Query().Get("name"),
		})
	}
	c.readLoop(ctx)
}

type connection struct {
	id     string
	conn   *websocket.Conn
	cfg    config.WebsocketConfig
	router Router
	logger *zap.Logger
}

// readLoop decodes requests until the socket fails, then feeds the
// disconnect edge.
func (c *connection) readLoop(ctx context.Context) {
	defer func() {
		c.router.Disconnect(ctx, c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			return
		}

		var req models.Request
		if err := json.Unmarshal(data, &req); err != nil {
			// a request with no type is answered with bad_request
			req = models.Request{}
		}
		c.router.Handle(ctx, c.id, req)
	}
}

// writeLoop pumps events from the outbox to the socket and keeps the peer
// alive with pings.
func (c *connection) writeLoop(outbox <-chan models.Event) {
	ticker := time.NewTicker(c.cfg.PingPeriod())
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-outbox:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
