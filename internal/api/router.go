package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wjz20050714-stack/JIFEN/internal/api/handler"
	apimiddleware "github.com/wjz20050714-stack/JIFEN/internal/api/middleware"
	"github.com/wjz20050714-stack/JIFEN/internal/middleware"
	"github.com/wjz20050714-stack/JIFEN/internal/web/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	Diagnostics handler.Diagnostics
	Rooms       handler.RoomWatcher
	Hubs        *sse.HubManager
	WebSocket   http.Handler

	// AllowedOrigin is sent as Access-Control-Allow-Origin on API routes.
	// Empty disables CORS headers.
	AllowedOrigin string
	// StaticDir, if set, is served at the root
	StaticDir string
}

// NewRouter creates a new router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging(cfg.Logger))

	diagnosticsHandler := handler.NewDiagnosticsHandler(cfg.Diagnostics)
	spectatorHandler := handler.NewSpectatorHandler(cfg.Rooms, cfg.Hubs, cfg.Logger)

	// API subrouter with JSON errors
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(apimiddleware.Recovery(cfg.Logger))
	api.Use(middleware.CORS(cfg.AllowedOrigin))
	api.HandleFunc("/health", diagnosticsHandler.Health).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rooms", diagnosticsHandler.Rooms).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/rooms/{id}/events", spectatorHandler.Events).Methods(http.MethodGet, http.MethodOptions)
	api.NotFoundHandler = http.HandlerFunc(handler.NotFound)

	// Unversioned aliases for older clients
	legacy := func(h http.HandlerFunc) http.Handler {
		return apimiddleware.Recovery(cfg.Logger)(middleware.CORS(cfg.AllowedOrigin)(h))
	}
	r.Handle("/health", legacy(diagnosticsHandler.Health)).Methods(http.MethodGet)
	r.Handle("/rooms", legacy(diagnosticsHandler.Rooms)).Methods(http.MethodGet)

	recovery := middleware.Recovery(cfg.Logger, middleware.DefaultPanicHandler)
	r.Handle("/ws", recovery(cfg.WebSocket)).Methods(http.MethodGet)

	if cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(recovery(http.FileServer(http.Dir(cfg.StaticDir)))).Methods(http.MethodGet, http.MethodHead)
	}

	return r
}
