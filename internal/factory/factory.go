package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wjz20050714-stack/JIFEN/internal/api"
	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/clock"
	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/emitter"
	"github.com/wjz20050714-stack/JIFEN/internal/dependencies/random"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ids"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ledger"
	"github.com/wjz20050714-stack/JIFEN/internal/services/ownership"
	"github.com/wjz20050714-stack/JIFEN/internal/services/presence"
	"github.com/wjz20050714-stack/JIFEN/internal/services/room"
	"github.com/wjz20050714-stack/JIFEN/internal/services/session"
	"github.com/wjz20050714-stack/JIFEN/internal/services/transfer"
	"github.com/wjz20050714-stack/JIFEN/internal/storage"
	"github.com/wjz20050714-stack/JIFEN/internal/storage/memory"
	redisstorage "github.com/wjz20050714-stack/JIFEN/internal/storage/redis"
	"github.com/wjz20050714-stack/JIFEN/internal/web/sse"
	"github.com/wjz20050714-stack/JIFEN/internal/web/ws"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Allocator *ids.Allocator
	Registry  *room.Registry
	Directory *presence.Directory
	Ledger    *ledger.Service
	Transfers *transfer.Service

	// Session
	Loop    *session.Loop
	Engine  *session.Engine
	Gateway *session.Gateway

	// Transport
	Hub        *ws.Hub
	HubManager *sse.HubManager
	Emitter    emitter.Emitter

	logger *slog.Logger
	cancel context.CancelFunc
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config

	// Zero values select each service's default
	RoomCapacity  int
	GracePeriod   time.Duration
	StartingScore int
	InboxSize     int
}

// New creates a new application with all dependencies wired. Call Start
// before serving traffic.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	hub := ws.NewHub(logger)
	return newWithDependencies(store, clock.New(), random.New(), hub, hub, cfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing).
// transport receives every outbound event; hub serves websocket connections.
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	hub *ws.Hub,
	transport emitter.Emitter,
	cfg Config,
	logger *slog.Logger,
) *App {
	allocator := ids.New(clk, rnd)
	registry := room.NewRegistry(store, allocator, clk, logger)
	directory := presence.NewDirectory(registry, ownership.New(logger), allocator, cfg.RoomCapacity, logger)
	ledgerService := ledger.New(registry, allocator, clk, cfg.StartingScore, logger)
	transfers := transfer.New(ledgerService, directory, logger)

	hubManager := sse.NewHubManager(logger)
	mirror := sse.NewMirror(transport, hubManager, logger)

	loop := session.NewLoop(cfg.InboxSize, logger)
	engine := session.NewEngine(registry, directory, ledgerService, transfers, mirror, clk, loop, cfg.GracePeriod, logger)

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Allocator:  allocator,
		Registry:   registry,
		Directory:  directory,
		Ledger:     ledgerService,
		Transfers:  transfers,
		Loop:       loop,
		Engine:     engine,
		Gateway:    session.NewGateway(loop, engine, logger),
		Hub:        hub,
		HubManager: hubManager,
		Emitter:    mirror,
		logger:     logger,
	}
}

// Start runs the session loop until Stop is called or ctx is cancelled
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	go a.Loop.Run(ctx)
}

// Router builds the HTTP handler for the application
func (a *App) Router(staticDir, allowedOrigin string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:        a.logger,
		Diagnostics:   a.Gateway,
		Rooms:         a.Gateway,
		Hubs:          a.HubManager,
		WebSocket:     ws.NewHandler(a.Hub, a.Gateway, a.logger),
		AllowedOrigin: allowedOrigin,
		StaticDir:     staticDir,
	})
}

// Stop halts the session loop, cancels grace timers, ends every open
// websocket and event stream, and closes the store
func (a *App) Stop() error {
	if a.cancel != nil {
		a.cancel()
		a.Gateway.Stop()
	}
	a.HubManager.Close()
	a.Hub.Close()

	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
