package handler

import (
	"context"
	"net/http"

	"github.com/wjz20050714-stack/JIFEN/internal/api/response"
	"github.com/wjz20050714-stack/JIFEN/internal/model"
	"github.com/wjz20050714-stack/JIFEN/internal/services/session"
)

// Diagnostics reports live server state
type Diagnostics interface {
	Health(ctx context.Context) (session.Health, error)
	Rooms(ctx context.Context) ([]model.RoomSummary, error)
}

// DiagnosticsHandler serves the read-only health and room listing endpoints
type DiagnosticsHandler struct {
	diagnostics Diagnostics
}

// NewDiagnosticsHandler creates a new diagnostics handler
func NewDiagnosticsHandler(diagnostics Diagnostics) *DiagnosticsHandler {
	return &DiagnosticsHandler{diagnostics: diagnostics}
}

// Health handles GET /api/v1/health
func (h *DiagnosticsHandler) Health(w http.ResponseWriter, r *http.Request) {
	health, err := h.diagnostics.Health(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.HealthFromSession(health))
}

// Rooms handles GET /api/v1/rooms
func (h *DiagnosticsHandler) Rooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.diagnostics.Rooms(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.RoomListFromModel(rooms))
}
