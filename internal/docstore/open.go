package docstore

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// OpenConfig selects and configures a backend.
type OpenConfig struct {
	Backend       string
	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open returns the store named by cfg.Backend. An empty backend picks postgres
// when a DSN is set and memory otherwise.
func Open(ctx context.Context, cfg OpenConfig) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendMemory
		if cfg.DatabaseDSN != "" {
			backend = BackendPostgres
		}
	}

	switch backend {
	case BackendMemory:
		slog.Info("using in-memory document store")
		return NewMemory(), nil
	case BackendPostgres:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("postgres store requires a database DSN")
		}
		slog.Info("using PostgreSQL document store")
		return NewPostgres(ctx, cfg.DatabaseDSN)
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis store requires an address")
		}
		slog.Info("using Redis document store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
