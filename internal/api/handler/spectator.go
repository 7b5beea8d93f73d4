package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wjz20050714-stack/JIFEN/internal/api/apierr"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/web/sse"
)

// RoomWatcher runs a callback while a room is known to exist
type RoomWatcher interface {
	WithRoom(ctx context.Context, id model.RoomID, fn func(*model.Room)) error
}

// SpectatorHandler streams a room's broadcasts over server-sent events
type SpectatorHandler struct {
	rooms  RoomWatcher
	hubs   *sse.HubManager
	logger *slog.Logger
}

// NewSpectatorHandler creates a new spectator handler
func NewSpectatorHandler(rooms RoomWatcher, hubs *sse.HubManager, logger *slog.Logger) *SpectatorHandler {
	return &SpectatorHandler{
		rooms:  rooms,
		hubs:   hubs,
		logger: logger.With(slog.String("component", "spectator")),
	}
}

// Events handles GET /api/v1/rooms/{id}/events
func (h *SpectatorHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])
	if !ids.IsRoomCode(id) {
		WriteError(w, apierr.NewInvalidRequestError("Room id must be 6 characters from A-Z and 0-9"))
		return
	}

	var hub *sse.Hub
	err := h.rooms.WithRoom(r.Context(), id, func(*model.Room) {
		hub = h.hubs.GetOrCreateHub(id)
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Debug("spectator stream opened", slog.String("room_id", string(id)))
	sse.ServeSSE(w, r, hub)
}
