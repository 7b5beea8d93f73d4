package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config is the server configuration
type Config struct {
	Host string `env:"JIFEN_HOST"`
	Port int    `env:"PORT" envDefault:"3000"`

	LogLevel  string `env:"JIFEN_LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"JIFEN_LOG_FORMAT" envDefault:"json"`

	Storage  string        `env:"JIFEN_STORAGE"   envDefault:"memory"`
	RedisURL string        `env:"JIFEN_REDIS_URL"`
	RoomTTL  time.Duration `env:"JIFEN_ROOM_TTL"  envDefault:"24h"`

	RoomCapacity  int           `env:"JIFEN_ROOM_CAPACITY"  envDefault:"10"`
	GracePeriod   time.Duration `env:"JIFEN_GRACE_PERIOD"   envDefault:"30s"`
	StartingScore int           `env:"JIFEN_STARTING_SCORE" envDefault:"100"`
	InboxSize     int           `env:"JIFEN_INBOX_SIZE"     envDefault:"1024"`

	StaticDir     string `env:"JIFEN_STATIC_DIR"`
	AllowedOrigin string `env:"JIFEN_ALLOWED_ORIGIN" envDefault:"*"`
	OTelEndpoint  string `env:"JIFEN_OTEL_ENDPOINT"`
}

// Load reads the environment and then applies command-line overrides
func Load(args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.Host, "addr", cfg.Host, "host or address to listen on")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "room store: memory or redis")
	fs.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "redis connection URL")
	fs.StringVar(&cfg.StaticDir, "static", cfg.StaticDir, "directory of static files to serve")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.Storage {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("JIFEN_REDIS_URL is required when JIFEN_STORAGE=redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q: must be memory or redis", c.Storage))
	}
	if c.RoomCapacity <= 0 {
		errs = append(errs, errors.New("room capacity must be positive"))
	}
	if c.GracePeriod <= 0 {
		errs = append(errs, errors.New("grace period must be positive"))
	}
	if c.StartingScore <= 0 {
		errs = append(errs, errors.New("starting score must be positive"))
	}
	if c.InboxSize <= 0 {
		errs = append(errs, errors.New("inbox size must be positive"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != LogFormatJSON && c.LogFormat != LogFormatText {
		errs = append(errs, fmt.Errorf("unknown log format %q: must be json or text", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the parsed log level
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}

// Logger builds the process logger writing to w
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
