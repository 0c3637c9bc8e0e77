// Package pricecache stores historical bars per ticker. Every backend
// resolves duplicate timestamps by keeping the latest insert.
package pricecache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"OpportunityScanner/internal/model"
)

// Cache is the price history store.
type Cache interface {
	// Insert appends bars, replacing any stored bar with the same timestamp.
	Insert(ctx context.Context, ticker string, bars []model.Bar) error
	// FetchSeries returns the stored bars ascending by time; empty if none.
	FetchSeries(ctx context.Context, ticker string) (model.Series, error)
	Close() error
}

// Config selects a backend.
type Config struct {
	Backend     string `yaml:"backend"` // sqlite, postgres, redis, memory
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPass   string `yaml:"redis_password"`
	RedisDB     int    `yaml:"redis_db"`
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "sqlite":
		return NewSQLiteCache(cfg.SQLitePath, logger)
	case "postgres":
		return NewPostgresCache(ctx, cfg.PostgresURL, logger)
	case "redis":
		return NewRedisCache(ctx, RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB}, logger)
	case "memory":
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
