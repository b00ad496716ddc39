package dbpool

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TLS modes for server certificate checking.
const (
	// TLSVerify verifies the server certificate chain and host name.
	TLSVerify = "verify"
	// TLSPermissive keeps TLS when the DSN asks for it but skips certificate checks.
	TLSPermissive = "permissive"
	// TLSFromDSN leaves TLS exactly as the connection string configures it.
	TLSFromDSN = "dsn"
)

// Config is fixed at process start. Fields are tagged for caarlos0/env and are
// normally loaded under the TASKBRIDGE_DB_ prefix.
type Config struct {
	// URL is the PostgreSQL connection string (DATABASE_URL). Never defaulted.
	URL string

	MaxConns int32 `env:"MAX_CONNS" envDefault:"10"`
	MinConns int32 `env:"MIN_CONNS" envDefault:"2"`

	// IdleTimeout closes connections idle for longer than this.
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" envDefault:"30s"`
	// AcquireTimeout bounds the wait for a pooled connection and the dial of a new one.
	AcquireTimeout time.Duration `env:"ACQUIRE_TIMEOUT" envDefault:"10s"`
	// StatementTimeout is sent to the server as statement_timeout.
	StatementTimeout time.Duration `env:"STATEMENT_TIMEOUT" envDefault:"30s"`
	// QueryTimeout bounds each query on the client side.
	QueryTimeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"10s"`

	HealthCheckPeriod time.Duration `env:"HEALTHCHECK_PERIOD" envDefault:"15s"`
	MaxConnLifetime   time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"30m"`

	KeepAlive      bool          `env:"KEEPALIVE" envDefault:"true"`
	KeepAliveDelay time.Duration `env:"KEEPALIVE_DELAY" envDefault:"10s"`

	// TLSMode is one of TLSVerify, TLSPermissive, TLSFromDSN. Empty means the
	// caller resolves it from the environment (see ResolveTLSMode).
	TLSMode string `env:"TLS_MODE"`

	// ConnectRetries bounds the warm-up probe in Connect.
	ConnectRetries int `env:"CONNECT_RETRIES" envDefault:"3"`

	// Migrate applies the embedded index migrations at startup.
	Migrate bool `env:"MIGRATE" envDefault:"false"`
}

// DefaultConfig returns the defaults used when no environment is present.
func DefaultConfig() Config {
	return Config{
		MaxConns:          10,
		MinConns:          2,
		IdleTimeout:       30 * time.Second,
		AcquireTimeout:    10 * time.Second,
		StatementTimeout:  30 * time.Second,
		QueryTimeout:      10 * time.Second,
		HealthCheckPeriod: 15 * time.Second,
		MaxConnLifetime:   30 * time.Minute,
		KeepAlive:         true,
		KeepAliveDelay:    10 * time.Second,
		TLSMode:           TLSFromDSN,
		ConnectRetries:    3,
	}
}

// ResolveTLSMode fills an empty mode from the deployment environment:
// production verifies certificates, everything else is permissive.
func ResolveTLSMode(mode string, production bool) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != "" {
		return mode
	}
	if production {
		return TLSVerify
	}
	return TLSPermissive
}

// Validate enforces cross-field rules.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.URL) == "":
		return fmt.Errorf("%w: database url is required", ErrConfig)
	case c.MaxConns <= 0:
		return fmt.Errorf("%w: max conns must be positive", ErrConfig)
	case c.MinConns < 0 || c.MinConns > c.MaxConns:
		return fmt.Errorf("%w: min conns must be within [0, max conns]", ErrConfig)
	case c.IdleTimeout <= 0, c.AcquireTimeout <= 0, c.StatementTimeout <= 0, c.QueryTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrConfig)
	case c.KeepAlive && c.KeepAliveDelay <= 0:
		return fmt.Errorf("%w: keepalive delay must be positive", ErrConfig)
	case c.ConnectRetries < 0:
		return fmt.Errorf("%w: connect retries must not be negative", ErrConfig)
	}

	switch c.TLSMode {
	case TLSVerify, TLSPermissive, TLSFromDSN, "":
	default:
		return fmt.Errorf("%w: unknown tls mode %q", ErrConfig, c.TLSMode)
	}
	return nil
}

// pgxConfig maps Config onto a pgxpool config. Hooks are attached by the Pool.
func (c Config) pgxConfig() (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("dbpool: parse config: %w", err)
	}

	pcfg.MaxConns = c.MaxConns
	pcfg.MinConns = c.MinConns
	pcfg.MaxConnIdleTime = c.IdleTimeout
	if c.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.HealthCheckPeriod > 0 {
		pcfg.HealthCheckPeriod = c.HealthCheckPeriod
	}

	cc := pcfg.ConnConfig
	cc.ConnectTimeout = c.AcquireTimeout
	if cc.RuntimeParams == nil {
		cc.RuntimeParams = map[string]string{}
	}
	cc.RuntimeParams["statement_timeout"] = strconv.FormatInt(c.StatementTimeout.Milliseconds(), 10)

	if c.KeepAlive {
		d := &net.Dialer{
			Timeout: c.AcquireTimeout,
			KeepAliveConfig: net.KeepAliveConfig{
				Enable:   true,
				Idle:     c.KeepAliveDelay,
				Interval: c.KeepAliveDelay,
				Count:    3,
			},
		}
		cc.DialFunc = d.DialContext
	}

	applyTLSMode(&cc.Config, c.TLSMode)

	return pcfg, nil
}

func applyTLSMode(cfg *pgconn.Config, mode string) {
	switch mode {
	case TLSVerify:
		cfg.TLSConfig = verifyTLS(cfg.Host, cfg.TLSConfig)
		for _, fb := range cfg.Fallbacks {
			fb.TLSConfig = verifyTLS(fb.Host, fb.TLSConfig)
		}
	case TLSPermissive:
		cfg.TLSConfig = permissiveTLS(cfg.TLSConfig)
		for _, fb := range cfg.Fallbacks {
			fb.TLSConfig = permissiveTLS(fb.TLSConfig)
		}
	}
}

func verifyTLS(host string, tc *tls.Config) *tls.Config {
	// Unix sockets never negotiate TLS.
	if strings.HasPrefix(host, "/") {
		return tc
	}
	if tc == nil {
		return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	tc.InsecureSkipVerify = false
	tc.VerifyPeerCertificate = nil
	if tc.ServerName == "" {
		tc.ServerName = host
	}
	return tc
}

func permissiveTLS(tc *tls.Config) *tls.Config {
	if tc == nil {
		return nil
	}
	// #nosec G402 -- permissive mode is the non-production setting.
	tc.InsecureSkipVerify = true
	tc.VerifyPeerCertificate = nil
	tc.VerifyConnection = nil
	return tc
}
