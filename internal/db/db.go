package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// DB bundles the pgx pool with a database/sql handle backed by the same pool.
// Repositories take *sql.DB; health checks ping the pool directly.
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

type Options struct {
	URL        string
	ServiceKey string // overrides any password embedded in URL
	MaxConns   int
	MinConns   int
	PingTO     time.Duration
}

// PoolConfig builds the pgxpool configuration without connecting.
func PoolConfig(opt Options) (*pgxpool.Config, error) {
	if opt.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if opt.ServiceKey == "" {
		return nil, fmt.Errorf("DATABASE_SERVICE_KEY is required")
	}

	cfg, err := pgxpool.ParseConfig(opt.URL)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	cfg.ConnConfig.Password = opt.ServiceKey
	if opt.MaxConns > 0 {
		cfg.MaxConns = int32(opt.MaxConns)
	}
	if opt.MinConns > 0 {
		cfg.MinConns = int32(opt.MinConns)
	}
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	return cfg, nil
}

func Open(ctx context.Context, opt Options) (*DB, error) {
	cfg, err := PoolConfig(opt)
	if err != nil {
		return nil, err
	}
	if opt.PingTO == 0 {
		opt.PingTO = 3 * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	// Fail fast
	pingCtx, cancel := context.WithTimeout(ctx, opt.PingTO)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &DB{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

func (d *DB) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
