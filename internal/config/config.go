package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/seantiz/docgen/internal/model"
)

const (
	defaultListenAddr         = ":8080"
	defaultDBPath             = "docgen.db"
	defaultSyncTimeoutS       = 60
	defaultGenerationTimeoutS = 30

	envListenAddr         = "DOCGEN_LISTEN_ADDR"
	envDBPath             = "DOCGEN_DB_PATH"
	envLogLevel           = "DOCGEN_LOG_LEVEL"
	envSyncTimeoutS       = "DOCGEN_SYNC_TIMEOUT_S"
	envGenerationTimeoutS = "DOCGEN_GENERATION_TIMEOUT_S"
	envServiceType        = "DOCGEN_SERVICE_TYPE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// SyncTimeout is the polling budget for synchronous document requests.
	SyncTimeout time.Duration

	// GenerationTimeout is the deadline for a single in-process generation.
	GenerationTimeout time.Duration

	// ServiceType selects the default generator for new requests.
	ServiceType string
}

// Load reads configuration from environment variables with sensible defaults.
// It fails only when DOCGEN_SERVICE_TYPE holds an unsupported value.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:        defaultListenAddr,
		DBPath:            defaultDBPath,
		LogLevel:          slog.LevelInfo,
		SyncTimeout:       defaultSyncTimeoutS * time.Second,
		GenerationTimeout: defaultGenerationTimeoutS * time.Second,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.SyncTimeout = parseSeconds(os.Getenv(envSyncTimeoutS), cfg.SyncTimeout)
	cfg.GenerationTimeout = parseSeconds(os.Getenv(envGenerationTimeoutS), cfg.GenerationTimeout)

	svc, err := ResolveServiceType(os.Getenv(envServiceType), runtime.GOOS)
	if err != nil {
		return cfg, err
	}
	cfg.ServiceType = svc

	return cfg, nil
}

// ResolveServiceType picks the service type. A non-empty override must be one
// of local, cloud or private (case-insensitive). Without an override, desktop
// operating systems use the local service and everything else the cloud one.
func ResolveServiceType(override, goos string) (string, error) {
	if override != "" {
		switch strings.ToLower(override) {
		case model.ServiceLocal:
			return model.ServiceLocal, nil
		case model.ServiceCloud:
			return model.ServiceCloud, nil
		case model.ServicePrivate:
			return model.ServicePrivate, nil
		default:
			return "", fmt.Errorf("unsupported value for %s: %q", envServiceType, override)
		}
	}

	switch goos {
	case "windows", "darwin":
		return model.ServiceLocal, nil
	default:
		return model.ServiceCloud, nil
	}
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// parseSeconds parses a positive whole number of seconds, returning def for
// empty or invalid input.
func parseSeconds(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
