package dbpool

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// Integration tests are enabled when TASKBRIDGE_TEST_DATABASE_URL is set.
// Outside CI an unreachable Postgres skips them.

func testPool(t *testing.T, mutate func(*Config)) *Pool {
	t.Helper()

	dbURL := strings.TrimSpace(os.Getenv("TASKBRIDGE_TEST_DATABASE_URL"))
	if dbURL == "" {
		t.Skip("TASKBRIDGE_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	cfg := validConfig(dbURL)
	cfg.MinConns = 0
	cfg.TLSMode = TLSFromDSN
	if mutate != nil {
		mutate(&cfg)
	}

	p, err := Open(cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	if err := p.ping(context.Background()); err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("ping: %v", err)
	}
	return p
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}

func TestPool_Integration_HealthCheck(t *testing.T) {
	t.Parallel()

	p := testPool(t, nil)
	assert.True(t, p.HealthCheck(context.Background()))
	assert.Equal(t, int32(0), p.Stats().Acquired)
}

func TestPool_Integration_AcquireTimesOutAtCapacity(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) {
		c.MaxConns = 2
		c.AcquireTimeout = 300 * time.Millisecond
	})
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer b.Release()

	start := time.Now()
	_, err = p.Acquire(ctx)
	require.ErrorIs(t, err, ErrPoolTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 300*time.Millisecond, te.Limit)

	st := p.Stats()
	assert.Equal(t, int32(2), st.Acquired)
	assert.Equal(t, uint64(1), st.AcquireTimeouts)

	a.Release()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	c.Release()
}

func TestPool_Integration_BlockedAcquireProceedsOnRelease(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) {
		c.MaxConns = 1
		c.AcquireTimeout = 5 * time.Second
	})
	ctx := context.Background()

	held, err := p.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		c, err := p.Acquire(ctx)
		if err == nil {
			c.Release()
		}
		got <- err
	}()

	require.Eventually(t, func() bool { return p.Stats().Waiting == 1 }, 2*time.Second, 10*time.Millisecond)
	held.Release()

	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("blocked acquire did not proceed after release")
	}
	assert.Equal(t, int64(0), p.Stats().Waiting)
}

func TestPool_Integration_DoubleReleaseIsNoop(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) { c.MaxConns = 2 })
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)
	c.Release()
	c.Release()

	st := p.Stats()
	assert.Equal(t, int32(0), st.Acquired)
	assert.Equal(t, uint64(1), st.DoubleReleases)
	require.ErrorIs(t, c.Ping(ctx), ErrConnReleased)

	// Both slots are still usable.
	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	a.Release()
	b.Release()
}

func TestPool_Integration_WithConnReleasesOnPanic(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) {
		c.MaxConns = 1
		c.AcquireTimeout = time.Second
	})
	ctx := context.Background()

	func() {
		defer func() { _ = recover() }()
		_ = p.WithConn(ctx, func(context.Context, *Conn) error {
			panic("boom")
		})
	}()

	require.NoError(t, p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.Ping(ctx)
	}))
}

func TestPool_Integration_StatementTimeout(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) { c.StatementTimeout = 200 * time.Millisecond })
	ctx := context.Background()

	err := p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.Exec(ctx, "SELECT pg_sleep(2)")
	})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "57014", pgErr.Code)

	assert.True(t, p.HealthCheck(ctx))
}

func TestPool_Integration_ConcurrentQueriesStayWithinMax(t *testing.T) {
	t.Parallel()

	p := testPool(t, func(c *Config) { c.MaxConns = 3 })

	g, ctx := errgroup.WithContext(context.Background())
	for i := range 20 {
		g.Go(func() error {
			return p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
				var got int
				err := c.Query(ctx, "SELECT $1::int", []any{i}, func(rows pgx.Rows) error {
					return rows.Scan(&got)
				})
				if err == nil && got != i {
					return errors.New("unexpected row value")
				}
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	st := p.Stats()
	assert.Equal(t, int32(0), st.Acquired)
	assert.LessOrEqual(t, st.Total, int32(3))
	assert.GreaterOrEqual(t, st.AcquireCount, int64(20))
}

func TestMigrate_Integration(t *testing.T) {
	p := testPool(t, nil)
	ctx := context.Background()

	require.NoError(t, p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.Exec(ctx, authSchemaDDL)
	}))

	require.NoError(t, Migrate(ctx, p, discardLogger()))
	// Re-running is a no-op.
	require.NoError(t, Migrate(ctx, p, discardLogger()))

	var found bool
	err := p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.Query(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_session_user_id')`,
			nil,
			func(rows pgx.Rows) error { return rows.Scan(&found) },
		)
	})
	require.NoError(t, err)
	assert.True(t, found)
}

// The advisory lock serializes concurrent test binaries creating the schema.
const authSchemaDDL = `
SELECT pg_advisory_xact_lock(7411);
CREATE TABLE IF NOT EXISTS "user" (
	"id" text PRIMARY KEY,
	"name" text NOT NULL,
	"email" text NOT NULL UNIQUE,
	"emailVerified" boolean NOT NULL DEFAULT false,
	"image" text,
	"createdAt" timestamptz NOT NULL DEFAULT now(),
	"updatedAt" timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS "session" (
	"id" text PRIMARY KEY,
	"expiresAt" timestamptz NOT NULL,
	"token" text NOT NULL UNIQUE,
	"createdAt" timestamptz NOT NULL DEFAULT now(),
	"updatedAt" timestamptz NOT NULL DEFAULT now(),
	"ipAddress" text,
	"userAgent" text,
	"userId" text NOT NULL REFERENCES "user" ("id") ON DELETE CASCADE
);`
