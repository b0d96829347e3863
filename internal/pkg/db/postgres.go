// Package db provides PostgreSQL database connection management.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"derby-bot/internal/config"
)

// Fallbacks for zero config values.
const (
	defaultConnectTimeout  = 10 * time.Second
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
	healthCheckPeriod      = 30 * time.Second
)

// Pool wraps pgxpool.Pool. The bot keeps a handful of small tables, so the pool stays small.
type Pool struct {
	*pgxpool.Pool
}

// PoolConfig turns the database section into pgxpool settings, filling zero values with
// defaults. MinConns is a quarter of PoolSize and at least one.
func PoolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.PoolSize > 0 {
		poolConfig.MaxConns = int32(cfg.PoolSize)
	}
	poolConfig.MinConns = max(poolConfig.MaxConns/4, 1)

	poolConfig.ConnConfig.ConnectTimeout = orDefault(cfg.ConnectTimeout, defaultConnectTimeout)
	poolConfig.MaxConnLifetime = orDefault(cfg.MaxConnLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = orDefault(cfg.MaxConnIdleTime, defaultMaxConnIdleTime)
	poolConfig.HealthCheckPeriod = healthCheckPeriod

	return poolConfig, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// NewPool connects and pings PostgreSQL.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connecting to PostgreSQL")

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to PostgreSQL")

	return &Pool{Pool: pool}, nil
}

// Close logs the final pool usage and closes it.
func (p *Pool) Close() {
	if p.Pool == nil {
		return
	}
	st := p.Pool.Stat()
	log.Info().
		Int64("acquires", st.AcquireCount()).
		Int64("empty_acquires", st.EmptyAcquireCount()).
		Dur("acquire_wait", st.AcquireDuration()).
		Int32("total_conns", st.TotalConns()).
		Msg("Closing PostgreSQL connection pool")
	p.Pool.Close()
}

// WithTimeout creates a context with the specified timeout.
func WithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, timeout)
}
