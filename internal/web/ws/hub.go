package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/emitter"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Hub tracks websocket clients and their room groups. It is the production
// Emitter: every send is marshalled on the caller's goroutine and queued
// without blocking.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnID]*Client
	groups  map[model.RoomID]map[model.ConnID]bool
	logger  *slog.Logger
}

// Ensure Hub implements Emitter
var _ emitter.Emitter = (*Hub)(nil)

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnID]*Client),
		groups:  make(map[model.RoomID]map[model.ConnID]bool),
		logger:  logger.With(slog.String("component", "ws-hub")),
	}
}

// Register adds a client
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client registered",
		slog.String("conn_id", string(c.id)),
		slog.Int("total_clients", count))
}

// Unregister removes a client from the hub and every group, then closes its
// send channel. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	for _, members := range h.groups {
		delete(members, c.id)
	}
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client unregistered",
		slog.String("conn_id", string(c.id)),
		slog.Int("total_clients", count))
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.groups = make(map[model.RoomID]map[model.ConnID]bool)
}

// ClientCount returns the number of registered clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Join(conn model.ConnID, room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; !ok {
		return
	}
	members := h.groups[room]
	if members == nil {
		members = make(map[model.ConnID]bool)
		h.groups[room] = members
	}
	members[conn] = true
}

func (h *Hub) Leave(conn model.ConnID, room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.groups[room]
	delete(members, conn)
	if len(members) == 0 {
		delete(h.groups, room)
	}
}

func (h *Hub) CloseRoom(room model.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups, room)
}

func (h *Hub) ToConn(conn model.ConnID, event model.EventType, payload any) {
	msg := h.encode(event, payload)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c, ok := h.clients[conn]; ok {
		h.deliver(c, event, msg)
	}
}

func (h *Hub) ToRoom(room model.RoomID, event model.EventType, payload any) {
	h.ToRoomExcept(room, "", event, payload)
}

func (h *Hub) ToRoomExcept(room model.RoomID, except model.ConnID, event model.EventType, payload any) {
	msg := h.encode(event, payload)
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id := range h.groups[room] {
		if id == except {
			continue
		}
		if c, ok := h.clients[id]; ok {
			h.deliver(c, event, msg)
		}
	}
}

// deliver must be called with the read lock held
func (h *Hub) deliver(c *Client, event model.EventType, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.logger.Warn("ws message dropped - client buffer full",
			slog.String("conn_id", string(c.id)),
			slog.String("event", string(event)))
	}
}

func (h *Hub) encode(event model.EventType, payload any) []byte {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", slog.Any("error", err))
		return nil
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("failed to encode envelope",
			slog.String("event", string(event)),
			slog.Any("error", err))
		return nil
	}
	return data
}
