package pool

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func newTestPool(t *testing.T, min, max int) *Pool {
	p, err := New(Options{
		Driver:         "sqlite3",
		DataSourceName: ":memory:",
		MinSize:        min,
		MaxSize:        max,
		AcquireTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	return p
}

func TestNewRejectsMinGreaterThanMax(t *testing.T) {
	_, err := New(Options{
		Driver:         "sqlite3",
		DataSourceName: ":memory:",
		MinSize:        5,
		MaxSize:        2,
	})
	assert.Error(t, err)
}

func TestAcquireReleaseUpdatesStats(t *testing.T) {
	p := newTestPool(t, 1, 4)
	defer p.Close()

	ctx := context.Background()
	conn, err := p.Acquire(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Stats().ActiveConnections)

	p.Release(conn)
	assert.Equal(t, 0, p.Stats().ActiveConnections)
	assert.EqualValues(t, 0, p.Stats().ExhaustionEvents)
}

func TestAcquireFailsFastWhenSaturated(t *testing.T) {
	p := newTestPool(t, 0, 2)
	defer p.Close()

	ctx := context.Background()
	conns := make([]*sql.Conn, 0, 2)
	for i := 0; i < 2; i++ {
		conn, err := p.Acquire(ctx)
		assert.NoError(t, err)
		conns = append(conns, conn)
	}

	start := time.Now()
	_, err := p.Acquire(ctx)
	assert.Equal(t, ErrExhausted, err)
	assert.True(t, time.Since(start) < time.Second, "saturated acquire should not block indefinitely")
	assert.EqualValues(t, 1, p.Stats().ExhaustionEvents)

	for _, conn := range conns {
		p.Release(conn)
	}

	conn, err := p.Acquire(ctx)
	assert.NoError(t, err)
	p.Release(conn)
}

func TestReleaseBrokenConnection(t *testing.T) {
	p := newTestPool(t, 0, 2)
	defer p.Close()

	ctx := context.Background()
	conn, err := p.Acquire(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, p.Stats().ActiveConnections)

	// The connection dies while checked out; Release must still account
	// for it.
	assert.NoError(t, conn.Close())
	p.Release(conn)
	assert.Equal(t, 0, p.Stats().ActiveConnections)

	// A second release of the same dead connection must not drive the
	// counter negative.
	p.Release(conn)
	stats := p.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.True(t, stats.ActiveConnections >= 0)

	conn, err = p.Acquire(ctx)
	assert.NoError(t, err)
	p.Release(conn)
	assert.Equal(t, 0, p.Stats().ActiveConnections)
}

func TestWithReleasesOnError(t *testing.T) {
	p := newTestPool(t, 0, 1)
	defer p.Close()

	ctx := context.Background()
	boom := errors.New("boom")
	err := p.With(ctx, func(conn *sql.Conn) error {
		return boom
	})
	assert.Equal(t, boom, err)

	// The single connection must be reusable after the failed callback.
	err = p.With(ctx, func(conn *sql.Conn) error {
		var one int
		return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, p.Stats().ActiveConnections)
}

func TestHealthCheck(t *testing.T) {
	p := newTestPool(t, 1, 2)
	assert.True(t, p.HealthCheck(context.Background()))

	assert.NoError(t, p.Close())
	assert.False(t, p.HealthCheck(context.Background()))

	var nilPool *Pool
	assert.False(t, nilPool.HealthCheck(context.Background()))
}

func TestAcquireAfterClose(t *testing.T) {
	p := newTestPool(t, 0, 2)
	assert.NoError(t, p.Close())
	assert.NoError(t, p.Close())

	_, err := p.Acquire(context.Background())
	assert.Equal(t, ErrClosed, err)
}

func TestStatsNilSafe(t *testing.T) {
	var p *Pool
	assert.Equal(t, Stats{}, p.Stats())
	assert.NoError(t, p.Close())
}

func TestConcurrentWith(t *testing.T) {
	p := newTestPool(t, 2, 8)
	defer p.Close()

	ctx := context.Background()
	done := make(chan error, 32)
	for i := 0; i < 32; i++ {
		go func() {
			done <- p.With(ctx, func(conn *sql.Conn) error {
				var one int
				return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
			})
		}()
	}

	exhausted := 0
	for i := 0; i < 32; i++ {
		err := <-done
		if err == ErrExhausted {
			exhausted++
			continue
		}
		assert.NoError(t, err)
	}

	stats := p.Stats()
	assert.Equal(t, 0, stats.ActiveConnections)
	assert.EqualValues(t, exhausted, stats.ExhaustionEvents)
}
