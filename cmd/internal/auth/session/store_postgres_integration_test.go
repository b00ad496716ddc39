package session

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/cmd/internal/dbpool"
)

// Integration tests are enabled when TASKBRIDGE_TEST_DATABASE_URL is set.
// Outside CI an unreachable Postgres skips them.

func TestPostgresStore_Integration_FindActive(t *testing.T) {
	ctx := context.Background()
	pool := mustPool(ctx, t)
	store := NewPostgresStore(pool)

	userID := ulid.Make().String()
	token := ulid.Make().String()
	expiresAt := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	mustCreateUser(ctx, t, pool, userID)
	mustCreateSession(ctx, t, pool, userID, token, expiresAt)

	id, err := store.FindActive(ctx, token, time.Now())
	require.NoError(t, err)
	assert.Equal(t, userID, id.User.ID)
	assert.Equal(t, userID, id.Session.UserID)
	assert.Equal(t, userID+"@example.com", id.User.Email)
	assert.True(t, id.Session.ExpiresAt.Equal(expiresAt))
	require.NotNil(t, id.Session.UserAgent)
	assert.Equal(t, "taskbridge-test/1.0", *id.Session.UserAgent)
	assert.Nil(t, id.Session.IPAddress)
	assert.Nil(t, id.User.Image)
}

func TestPostgresStore_Integration_ExpiredAndUnknown(t *testing.T) {
	ctx := context.Background()
	pool := mustPool(ctx, t)
	store := NewPostgresStore(pool)

	userID := ulid.Make().String()
	token := ulid.Make().String()
	mustCreateUser(ctx, t, pool, userID)
	mustCreateSession(ctx, t, pool, userID, token, time.Now().UTC().Add(-time.Second))

	_, err := store.FindActive(ctx, token, time.Now())
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.FindActive(ctx, ulid.Make().String(), time.Now())
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPostgresStore_Integration_ResolverEndToEnd(t *testing.T) {
	ctx := context.Background()
	pool := mustPool(ctx, t)
	r := NewResolver(NewPostgresStore(pool), nil, nil)

	userID := ulid.Make().String()
	token := ulid.Make().String()
	mustCreateUser(ctx, t, pool, userID)
	mustCreateSession(ctx, t, pool, userID, token, time.Now().UTC().Add(time.Hour))

	id, ok, err := r.ResolveValue(ctx, token+".c2lnbmF0dXJl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, userID, id.User.ID)
	assert.Equal(t, int32(0), pool.Stats().Acquired)
}

func TestPostgresStore_Integration_ClosedPoolIsUnavailable(t *testing.T) {
	ctx := context.Background()
	pool := mustPool(ctx, t)
	require.NoError(t, pool.Shutdown(ctx))

	_, ok, err := NewResolver(NewPostgresStore(pool), nil, nil).ResolveValue(ctx, "tok1")
	assert.False(t, ok)
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, dbpool.ErrPoolClosed)
}

func mustPool(ctx context.Context, t *testing.T) *dbpool.Pool {
	t.Helper()

	dbURL := strings.TrimSpace(os.Getenv("TASKBRIDGE_TEST_DATABASE_URL"))
	if dbURL == "" {
		t.Skip("TASKBRIDGE_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	cfg := dbpool.DefaultConfig()
	cfg.URL = dbURL
	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.AcquireTimeout = 5 * time.Second

	pool, err := dbpool.Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	err = pool.WithConn(ctx, func(ctx context.Context, c *dbpool.Conn) error {
		return c.Exec(ctx, authSchemaDDL)
	})
	if err != nil {
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable: %v", err)
		}
		t.Fatalf("schema: %v", err)
	}
	return pool
}

func mustCreateUser(ctx context.Context, t *testing.T, pool *dbpool.Pool, userID string) {
	t.Helper()

	err := pool.WithConn(ctx, func(ctx context.Context, c *dbpool.Conn) error {
		return c.Exec(ctx,
			`INSERT INTO "user" ("id", "name", "email", "emailVerified") VALUES ($1, $2, $3, true)`,
			userID, "Test "+userID, userID+"@example.com",
		)
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = pool.WithConn(context.Background(), func(ctx context.Context, c *dbpool.Conn) error {
			return c.Exec(ctx, `DELETE FROM "user" WHERE "id" = $1`, userID)
		})
	})
}

func mustCreateSession(ctx context.Context, t *testing.T, pool *dbpool.Pool, userID, token string, expiresAt time.Time) {
	t.Helper()

	err := pool.WithConn(ctx, func(ctx context.Context, c *dbpool.Conn) error {
		return c.Exec(ctx,
			`INSERT INTO "session" ("id", "token", "userId", "expiresAt", "userAgent") VALUES ($1, $2, $3, $4, $5)`,
			ulid.Make().String(), token, userID, expiresAt, "taskbridge-test/1.0",
		)
	})
	require.NoError(t, err)
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
