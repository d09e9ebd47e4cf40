package ws

import (
	"encoding/json"
	"heartspeak/internal/metrics"
	"heartspeak/internal/service"
	"sync"

	"go.uber.org/zap"
)

// sendBuffer is the per-connection outbound queue length
const sendBuffer = 256

// Message is the WebSocket envelope format
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Connection is one authenticated WebSocket client
type Connection struct {
	id     string
	userID string
	Send   chan []byte
}

// NewConnection creates a connection for userID with an empty send queue
func NewConnection(id, userID string) *Connection {
	return &Connection{
		id:     id,
		userID: userID,
		Send:   make(chan []byte, sendBuffer),
	}
}

func (c *Connection) ID() string     { return c.id }
func (c *Connection) UserID() string { return c.userID }

// Hub is the room registry: named channels of connections with fan-out.
// Channels exist while they have at least one member. All methods are safe
// for concurrent use; sends never block and a full queue drops the message.
type Hub struct {
	mu sync.RWMutex

	conns    map[string]*Connection            // conn id -> conn
	channels map[string]map[string]*Connection // channel -> conn id -> conn
	joined   map[string]map[string]struct{}    // conn id -> channels
	users    map[string]int                    // user id -> open connections

	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewHub creates a new WebSocket hub
func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:    make(map[string]*Connection),
		channels: make(map[string]map[string]*Connection),
		joined:   make(map[string]map[string]struct{}),
		users:    make(map[string]int),
		logger:   logger.Named("hub"),
		metrics:  m,
	}
}

// Register adds a connection. It joins no channel yet.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.id]; ok {
		return
	}
	h.conns[conn.id] = conn
	h.joined[conn.id] = make(map[string]struct{})
	h.users[conn.userID]++
	h.logger.Debug("connection registered", zap.String("connId", conn.id), zap.String("userId", conn.userID))
}

// Unregister removes the connection from every channel, closes its send
// queue and returns how many connections its user still has open.
func (h *Hub) Unregister(conn *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.conns[conn.id]; !ok || existing != conn {
		return h.users[conn.userID]
	}

	for channel := range h.joined[conn.id] {
		h.removeLocked(conn.id, channel)
	}
	delete(h.joined, conn.id)
	delete(h.conns, conn.id)
	close(conn.Send)

	h.users[conn.userID]--
	remaining := h.users[conn.userID]
	if remaining <= 0 {
		delete(h.users, conn.userID)
		remaining = 0
	}
	h.logger.Debug("connection unregistered",
		zap.String("connId", conn.id),
		zap.String("userId", conn.userID),
		zap.Int("remaining", remaining))
	return remaining
}

// Join subscribes a registered connection to channel. Joining twice is a no-op.
func (h *Hub) Join(conn service.Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[conn.ID()]
	if !ok {
		return
	}
	members := h.channels[channel]
	if members == nil {
		members = make(map[string]*Connection)
		h.channels[channel] = members
	}
	members[c.id] = c
	h.joined[c.id][channel] = struct{}{}
}

// Leave unsubscribes conn from channel
func (h *Hub) Leave(conn service.Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn.ID(), channel)
}

// CloseChannel removes every member from channel, which then ceases to exist
func (h *Hub) CloseChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.channels[channel] {
		delete(h.joined[id], channel)
	}
	delete(h.channels, channel)
}

// Emit sends an event to a single connection
func (h *Hub) Emit(conn service.Conn, event string, payload interface{}) {
	data, ok := h.encode(event, payload)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.conns[conn.ID()]; ok {
		h.send(c, data)
	}
}

// Publish sends an event to every member of channel and returns how many
// connections it was queued for. An unknown channel delivers nothing.
func (h *Hub) Publish(channel, event string, payload interface{}) int {
	return h.PublishExcept(channel, nil, event, payload)
}

// PublishExcept is Publish that skips except (nil skips nobody)
func (h *Hub) PublishExcept(channel string, except service.Conn, event string, payload interface{}) int {
	data, ok := h.encode(event, payload)
	if !ok {
		return 0
	}

	skip := ""
	if except != nil {
		skip = except.ID()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, c := range h.channels[channel] {
		if id == skip {
			continue
		}
		if h.send(c, data) {
			delivered++
		}
	}
	return delivered
}

// Members returns the number of connections in channel
func (h *Hub) Members(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// UserConnections returns the number of open connections of userID
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID]
}

func (h *Hub) removeLocked(connID, channel string) {
	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
	if joined, ok := h.joined[connID]; ok {
		delete(joined, channel)
	}
}

// send must be called with the lock held so Unregister cannot close the queue underneath it
func (h *Hub) send(c *Connection, data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
		h.metrics.Drop()
		h.logger.Warn("send queue full, dropping message", zap.String("connId", c.id), zap.String("userId", c.userID))
		return false
	}
}

func (h *Hub) encode(event string, payload interface{}) ([]byte, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshal payload", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	data, err := json.Marshal(&Message{Type: event, Payload: raw})
	if err != nil {
		h.logger.Error("marshal envelope", zap.String("event", event), zap.Error(err))
		return nil, false
	}
	return data, true
}

var _ service.Broadcaster = (*Hub)(nil)
