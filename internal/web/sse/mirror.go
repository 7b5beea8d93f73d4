package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/emitter"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Mirror is an Emitter that forwards to another Emitter and copies every
// room-wide broadcast to the room's spectators. Direct messages are never
// mirrored.
type Mirror struct {
	next   emitter.Emitter
	hubs   *HubManager
	logger *slog.Logger
}

// NewMirror wraps next
func NewMirror(next emitter.Emitter, hubs *HubManager, logger *slog.Logger) *Mirror {
	return &Mirror{
		next:   next,
		hubs:   hubs,
		logger: logger.With(slog.String("component", "sse-mirror")),
	}
}

// Ensure Mirror implements Emitter
var _ emitter.Emitter = (*Mirror)(nil)

func (m *Mirror) Join(conn model.ConnID, room model.RoomID) {
	m.next.Join(conn, room)
}

func (m *Mirror) Leave(conn model.ConnID, room model.RoomID) {
	m.next.Leave(conn, room)
}

func (m *Mirror) CloseRoom(room model.RoomID) {
	m.next.CloseRoom(room)
	m.hubs.RemoveHub(room)
}

func (m *Mirror) ToConn(conn model.ConnID, event model.EventType, payload any) {
	m.next.ToConn(conn, event, payload)
}

func (m *Mirror) ToRoom(room model.RoomID, event model.EventType, payload any) {
	m.next.ToRoom(room, event, payload)
	m.publish(room, event, payload)
}

func (m *Mirror) ToRoomExcept(room model.RoomID, except model.ConnID, event model.EventType, payload any) {
	m.next.ToRoomExcept(room, except, event, payload)
	m.publish(room, event, payload)
}

func (m *Mirror) publish(room model.RoomID, event model.EventType, payload any) {
	hub := m.hubs.GetHub(room)
	if hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("sse failed to encode payload",
			slog.String("room_id", string(room)),
			slog.String("event", string(event)),
			slog.Any("error", err))
		return
	}
	hub.BroadcastEvent(string(event), string(data))
}
