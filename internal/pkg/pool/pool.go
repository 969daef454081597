// Package pool manages a bounded set of reusable database connections.
//
// database/sql already owns the low level connection lifecycle; Pool adds the
// contract the application relies on: fail-fast acquisition with a distinct
// exhaustion signal, scoped acquire/release, usage counters for monitoring
// and a liveness probe.
package pool

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	// ErrExhausted - returned by Acquire when the pool is at capacity and no
	// connection became available within the acquire timeout. Kept distinct
	// from connectivity errors so operators can tune pool sizing.
	ErrExhausted = errors.New("pool exhausted: no available connections")

	// ErrClosed - returned by Acquire after Close.
	ErrClosed = errors.New("pool is closed")
)

// Options - pool construction parameters.
type Options struct {
	Driver         string
	DataSourceName string
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
}

// Stats - point-in-time snapshot of pool usage.
type Stats struct {
	TotalConnections  int   `json:"total_connections"`
	ActiveConnections int   `json:"active_connections"`
	IdleConnections   int   `json:"idle_connections"`
	FailedAcquires    int64 `json:"failed_connections"`
	ExhaustionEvents  int64 `json:"pool_exhausted"`
}

// Pool - bounded, thread-safe connection pool.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration

	mu        sync.Mutex
	active    int
	failed    int64
	exhausted int64
	closed    bool
}

// New opens the datasource, verifies connectivity and warms the pool up to
// MinSize. A failure here is returned to the caller: the process cannot
// function without data access, so startup treats it as fatal.
func New(opts Options) (*Pool, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1
	}
	if opts.MinSize < 0 {
		opts.MinSize = 0
	}
	if opts.MinSize > opts.MaxSize {
		return nil, errors.New("pool: min size is greater than max size")
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = time.Second
	}

	db, err := sql.Open(opts.Driver, opts.DataSourceName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(opts.MaxSize)
	db.SetMaxIdleConns(opts.MaxSize)

	p := &Pool{
		db:             db,
		acquireTimeout: opts.AcquireTimeout,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err = p.warmUp(ctx, opts.MinSize); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("INFO: database pool initialized: %v-%v connections", opts.MinSize, opts.MaxSize)
	return p, nil
}

// warmUp establishes min connections eagerly so the first requests do not
// pay the connection setup cost.
func (p *Pool) warmUp(ctx context.Context, min int) error {
	conns := make([]*sql.Conn, 0, min)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < min; i++ {
		conn, err := p.db.Conn(ctx)
		if err != nil {
			return err
		}
		conns = append(conns, conn)
	}
	return nil
}

// Acquire hands out a connection, establishing a new one if the pool has
// spare capacity. When the pool is saturated it fails fast with ErrExhausted
// instead of queueing the caller indefinitely.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	conn, err := p.db.Conn(cctx)
	if err != nil {
		p.mu.Lock()
		if err == context.DeadlineExceeded {
			p.exhausted++
			err = ErrExhausted
		} else {
			p.failed++
		}
		p.mu.Unlock()
		return nil, err
	}

	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	return conn, nil
}

// Release returns a connection to the pool. database/sql discards broken
// connections on close, so Release is safe to call regardless of what
// happened to the connection in between.
func (p *Pool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil && err != sql.ErrConnDone {
		log.Printf("WARN: error returning connection to pool: %v", err)
	}
	p.mu.Lock()
	if p.active > 0 {
		p.active--
	}
	p.mu.Unlock()
}

// With runs fn with a pooled connection and guarantees release on every exit
// path, panics included. This is the standard access pattern; callers must
// not retain the connection after fn returns.
func (p *Pool) With(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)
	return fn(conn)
}

// HealthCheck runs a trivial round trip on a borrowed connection. It never
// panics and has no side effects.
func (p *Pool) HealthCheck(ctx context.Context) bool {
	if p == nil {
		return false
	}
	var one int
	err := p.With(ctx, func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
	if err != nil {
		log.Printf("ERROR: pool health check failed - %v", err)
		return false
	}
	return one == 1
}

// Stats returns a point-in-time snapshot of pool usage.
func (p *Pool) Stats() Stats {
	if p == nil || p.db == nil {
		return Stats{}
	}
	dbStats := p.db.Stats()

	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		TotalConnections:  dbStats.OpenConnections,
		ActiveConnections: p.active,
		IdleConnections:   dbStats.Idle,
		FailedAcquires:    p.failed,
		ExhaustionEvents:  p.exhausted,
	}
}

// Close drains and closes every connection. Safe to call on a nil or never
// fully initialized pool, and more than once.
func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.db.Close()
	log.Printf("INFO: all database connections closed")
	return err
}
