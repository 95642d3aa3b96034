// Package broadcast tracks live connections and the session rooms they belong to.
package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"tictacroom/internal/models"
)

// DefaultSendBuffer is the outbound queue length per client.
const DefaultSendBuffer = 32

// Client is a registered connection. The transport drains Outbox until it is
// closed by Unregister.
type Client struct {
	ID   string
	send chan models.Event
}

// Outbox returns the client's outbound events.
func (c *Client) Outbox() <-chan models.Event {
	return c.send
}

// Hub manages room membership and broadcasting events to connected clients.
// Each connection is bound to at most one session.
type Hub struct {
	clients  map[string]*Client
	rooms    map[string]map[string]bool
	bindings map[string]string
	buffer   int
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewHub creates a new broadcast hub.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]bool),
		bindings: make(map[string]string),
		buffer:   buffer,
		logger:   logger.Named("broadcast"),
	}
}

// Register adds a connection and returns its client.
func (h *Hub) Register(connID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &Client{ID: connID, send: make(chan models.Event, h.buffer)}
	h.clients[connID] = c
	return c
}

// Unregister removes a connection from its room and closes its outbox.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregister(connID)
}

func (h *Hub) unregister(connID string) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if sessionID, bound := h.bindings[connID]; bound {
		delete(h.rooms[sessionID], connID)
		delete(h.bindings, connID)
	}
	delete(h.clients, connID)
	close(c.send)
}

// Join adds a connection to a session's room and binds it to the session.
func (h *Hub) Join(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[string]bool)
	}
	h.rooms[sessionID][connID] = true
	h.bindings[connID] = sessionID
}

// Leave removes a connection from a session's room and drops its binding.
func (h *Hub) Leave(sessionID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[sessionID], connID)
	if h.bindings[connID] == sessionID {
		delete(h.bindings, connID)
	}
}

// SessionOf returns the session a connection is bound to.
func (h *Hub) SessionOf(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.bindings[connID]
	return id, ok
}

// Members returns the connection ids in a session's room.
func (h *Hub) Members(sessionID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[sessionID]))
	for id := range h.rooms[sessionID] {
		out = append(out, id)
	}
	return out
}

// Send queues an event for one connection. It reports false when the
// connection is unknown or its queue is full.
func (h *Hub) Send(connID string, ev models.Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.enqueue(connID, ev)
}

// Deliver sends an event to ev.To, or to every member of the session's room
// when ev.To is empty.
func (h *Hub) Deliver(sessionID string, ev models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if ev.To != "" {
		h.enqueue(ev.To, ev)
		return
	}
	for connID := range h.rooms[sessionID] {
		h.enqueue(connID, ev)
	}
}

// enqueue must be called with h.mu held.
func (h *Hub) enqueue(connID string, ev models.Event) bool {
	c, ok := h.clients[connID]
	if !ok {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		h.logger.Warn("dropping event for slow client",
			zap.String("conn_id", connID),
			zap.String("type", string(ev.Type)),
		)
		return false
	}
}

// Close removes a session's room and unbinds its members. The connections
// stay registered.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.rooms[sessionID] {
		if h.bindings[connID] == sessionID {
			delete(h.bindings, connID)
		}
	}
	delete(h.rooms, sessionID)
}

// CloseAll unregisters every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for connID := range h.clients {
		h.unregister(connID)
	}
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
