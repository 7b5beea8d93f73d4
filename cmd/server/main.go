package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wjz20050714-stack/JIFEN/internal/api"
	"github.com/wjz20050714-stack/JIFEN/internal/config"
	"github.com/wjz20050714-stack/JIFEN/internal/factory"
	redisstorage "github.com/wjz20050714-stack/JIFEN/internal/storage/redis"
	"github.com/wjz20050714-stack/JIFEN/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, telemetry.ServiceName)
	if err != nil {
		logger.Error("failed to set up tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	factoryCfg := factory.Config{
		Logger:        logger,
		StorageType:   cfg.Storage,
		RoomCapacity:  cfg.RoomCapacity,
		GracePeriod:   cfg.GracePeriod,
		StartingScore: cfg.StartingScore,
		InboxSize:     cfg.InboxSize,
	}
	if cfg.Storage == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		redisCfg.RoomTTL = cfg.RoomTTL
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	app.Start(context.Background())

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(app.Router(cfg.StaticDir, cfg.AllowedOrigin), serverConfig, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage),
		slog.Duration("grace_period", cfg.GracePeriod),
		slog.Int("room_capacity", cfg.RoomCapacity))

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			exitCode = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Streams and sockets first, so Shutdown is not held open by them
	if err := app.Stop(); err != nil {
		logger.Error("failed to stop application", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := shutdownTracing(context.Background()); err != nil {
		logger.Warn("failed to flush traces", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	os.Exit(exitCode)
}
