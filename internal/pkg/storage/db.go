package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/fotohosting/fotohost/internal/pkg/config"
	"github.com/fotohosting/fotohost/internal/pkg/pool"
)

// DB wraps the connection pool with the data access functions of the
// application. Every method borrows a connection through the pool, runs a
// parametrized statement under the configured query timeout and releases the
// connection on every exit path.
type DB struct {
	pool         *pool.Pool
	cfg          *config.Config
	queryTimeout time.Duration
}

// Open builds the pool from config and returns a DB handle. Pool
// initialization failure is returned to the caller: startup treats it as
// fatal since nothing works without data access.
func Open(cfg *config.Config) (*DB, error) {
	p, err := pool.New(pool.Options{
		Driver:         cfg.DBDriver,
		DataSourceName: cfg.DataSourceName(),
		MinSize:        cfg.PoolMinSize,
		MaxSize:        cfg.PoolMaxSize,
		AcquireTimeout: cfg.AcquireTimeout,
	})
	if err != nil {
		return nil, err
	}
	return NewWithPool(p, cfg), nil
}

// NewWithPool wraps an already constructed pool.
func NewWithPool(p *pool.Pool, cfg *config.Config) *DB {
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DB{pool: p, cfg: cfg, queryTimeout: timeout}
}

// Pool exposes the underlying pool for health and metrics probes.
func (db *DB) Pool() *pool.Pool {
	return db.pool
}

// Close drains the pool. Safe on a nil or half-initialized handle.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	return db.pool.Close()
}

// withConn runs fn on a borrowed connection with the statement timeout
// applied. The derived context bounds every query issued inside fn.
func (db *DB) withConn(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	cctx, cancel := context.WithTimeout(ctx, db.queryTimeout)
	defer cancel()
	return db.pool.With(cctx, func(conn *sql.Conn) error {
		return fn(cctx, conn)
	})
}

// nullString maps an empty string to SQL NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullInt64 maps zero to SQL NULL.
func nullInt64(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
