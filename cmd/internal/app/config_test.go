package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbridge/cmd/internal/dbpool"
)

const testDatabaseURL = "postgres://app:pw@127.0.0.1:1/tasks?sslmode=disable"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(map[string]string{"DATABASE_URL": testDatabaseURL})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 5*time.Second, cfg.ReadHeaderTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 5*time.Minute, cfg.SessionCacheTTL)
	assert.False(t, cfg.TrustProxy)
	assert.False(t, cfg.RequireSigningSecret)
	assert.Equal(t, []string{"better-auth.session_token", "__Secure-better-auth.session_token", "better-auth.session"}, cfg.SessionCookies)
	assert.Equal(t, []string{"/tasks", "/focus", "/dashboard"}, cfg.ProtectedPrefixes)
	assert.Equal(t, []string{"/login", "/register"}, cfg.PublicAuthPrefixes)
	assert.Equal(t, "/login", cfg.SignInPath)

	want := dbpool.DefaultConfig()
	want.URL = testDatabaseURL
	want.TLSMode = dbpool.TLSPermissive
	assert.Equal(t, want, cfg.DB)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(map[string]string{
		"DATABASE_URL":                  testDatabaseURL,
		"TASKBRIDGE_ENV":                "production",
		"TASKBRIDGE_LOG_LEVEL":          "DEBUG",
		"TASKBRIDGE_LOG_FORMAT":         "pretty",
		"TASKBRIDGE_DB_MAX_CONNS":       "25",
		"TASKBRIDGE_DB_MIN_CONNS":       "5",
		"TASKBRIDGE_DB_ACQUIRE_TIMEOUT": "3s",
		"TASKBRIDGE_DB_MIGRATE":         "true",
		"BETTER_AUTH_URL":               "https://tasks.example.com/",
		"BETTER_AUTH_TRUSTED_ORIGINS":   " https://admin.example.com/ ,, http://localhost:* ",
		"TASKBRIDGE_PROTECTED_PREFIXES": "/tasks, /settings",
		"TASKBRIDGE_UPSTREAM_URL":       "http://127.0.0.1:3001",
		"TASKBRIDGE_REDIS_URL":          "redis://127.0.0.1:6379/0",
		"TASKBRIDGE_SESSION_CACHE_TTL":  "30s",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.Equal(t, int32(5), cfg.DB.MinConns)
	assert.Equal(t, 3*time.Second, cfg.DB.AcquireTimeout)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, dbpool.TLSVerify, cfg.DB.TLSMode)
	assert.Equal(t, "https://tasks.example.com", cfg.BaseURL)
	assert.Equal(t, []string{"https://admin.example.com", "http://localhost:*"}, cfg.TrustedOrigins)
	assert.Equal(t, []string{"https://tasks.example.com", "https://admin.example.com", "http://localhost:*"}, cfg.AllowedOrigins())
	assert.Equal(t, []string{"/tasks", "/settings"}, cfg.ProtectedPrefixes)
	assert.Equal(t, 30*time.Second, cfg.SessionCacheTTL)
}

func TestLoadConfig_ExplicitTLSModeWins(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(map[string]string{
		"DATABASE_URL":           testDatabaseURL,
		"TASKBRIDGE_ENV":         "production",
		"TASKBRIDGE_DB_TLS_MODE": "dsn",
	})
	require.NoError(t, err)
	assert.Equal(t, dbpool.TLSFromDSN, cfg.DB.TLSMode)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]map[string]string{
		"missing database url": {},
		"min above max": {
			"DATABASE_URL":            testDatabaseURL,
			"TASKBRIDGE_DB_MAX_CONNS": "2",
			"TASKBRIDGE_DB_MIN_CONNS": "3",
		},
		"unknown log level": {
			"DATABASE_URL":         testDatabaseURL,
			"TASKBRIDGE_LOG_LEVEL": "loud",
		},
		"unknown log format": {
			"DATABASE_URL":          testDatabaseURL,
			"TASKBRIDGE_LOG_FORMAT": "xml",
		},
		"bad duration": {
			"DATABASE_URL":                 testDatabaseURL,
			"TASKBRIDGE_DB_IDLE_TIMEOUT":   "soon",
			"TASKBRIDGE_SESSION_CACHE_TTL": "1m",
		},
		"upstream without scheme": {
			"DATABASE_URL":            testDatabaseURL,
			"TASKBRIDGE_UPSTREAM_URL": "127.0.0.1:3001",
		},
		"relative sign-in path": {
			"DATABASE_URL":           testDatabaseURL,
			"TASKBRIDGE_SIGNIN_PATH": "login",
		},
		"unknown tls mode": {
			"DATABASE_URL":           testDatabaseURL,
			"TASKBRIDGE_DB_TLS_MODE": "maybe",
		},
	}

	for name, environ := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := loadConfig(environ)
			assert.Error(t, err)
		})
	}
}
