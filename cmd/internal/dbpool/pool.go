package dbpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool is the shared connection pool. Safe for concurrent use.
type Pool struct {
	cfg Config
	log *slog.Logger
	raw *pgxpool.Pool

	closed    atomic.Bool
	closeOnce sync.Once

	waiting        atomic.Int64
	created        atomic.Uint64
	removed        atomic.Uint64
	evicted        atomic.Uint64
	acquireErrors  atomic.Uint64
	timeouts       atomic.Uint64
	doubleReleases atomic.Uint64
}

// Open builds the pool without touching the network. Connections are dialed
// lazily on first Acquire (and in the background up to MinConns).
func Open(cfg Config, log *slog.Logger) (*Pool, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{cfg: cfg, log: log}

	pcfg, err := cfg.pgxConfig()
	if err != nil {
		return nil, err
	}
	p.attachHooks(pcfg)

	raw, err := pgxpool.NewWithConfig(context.Background(), pcfg)
	if err != nil {
		return nil, fmt.Errorf("dbpool: open: %w", err)
	}
	p.raw = raw

	log.Info("db.pool.open",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"max_conns", cfg.MaxConns,
		"min_conns", cfg.MinConns,
		"tls_mode", cfg.TLSMode,
	)
	return p, nil
}

// Connect opens the pool and probes it with SELECT 1, retrying with exponential
// backoff up to ConnectRetries times.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*Pool, error) {
	p, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(cfg.ConnectRetries)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		p.log.Warn("db.pool.connect.retry", "err", err, "next", next.Round(time.Millisecond))
	}
	if err := backoff.RetryNotify(func() error { return p.ping(ctx) }, b, notify); err != nil {
		_ = p.Shutdown(context.Background())
		return nil, fmt.Errorf("dbpool: connect: %w", err)
	}

	p.log.Info("db.pool.ready")
	return p, nil
}

func (p *Pool) attachHooks(pcfg *pgxpool.Config) {
	pcfg.AfterConnect = func(_ context.Context, c *pgx.Conn) error {
		p.created.Add(1)
		p.log.Debug("db.pool.conn.created", "pid", c.PgConn().PID())
		return nil
	}
	pcfg.BeforeClose = func(c *pgx.Conn) {
		p.removed.Add(1)
		p.log.Debug("db.pool.conn.removed", "pid", c.PgConn().PID())
	}
	// A connection that comes back closed or mid-transaction is destroyed
	// rather than handed to the next caller.
	pcfg.AfterRelease = func(c *pgx.Conn) bool {
		if c.IsClosed() || c.PgConn().TxStatus() != 'I' {
			p.evicted.Add(1)
			p.log.Warn("db.pool.conn.evicted", "pid", c.PgConn().PID())
			return false
		}
		return true
	}
}

// Acquire waits for a connection. It fails with ErrPoolClosed after Shutdown,
// with *TimeoutError when AcquireTimeout elapses, and with the caller's context
// error when ctx ends first.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	start := time.Now()
	p.waiting.Add(1)
	raw, err := p.raw.Acquire(actx)
	p.waiting.Add(-1)
	if err != nil {
		return nil, p.acquireError(ctx, actx, err, time.Since(start))
	}

	if p.closed.Load() {
		raw.Release()
		return nil, ErrPoolClosed
	}
	return &Conn{raw: raw, pool: p}, nil
}

func (p *Pool) acquireError(parent, actx context.Context, err error, waited time.Duration) error {
	p.acquireErrors.Add(1)

	switch {
	case p.closed.Load():
		return ErrPoolClosed
	case parent.Err() != nil:
		return fmt.Errorf("dbpool: acquire: %w", parent.Err())
	case errors.Is(actx.Err(), context.DeadlineExceeded):
		p.timeouts.Add(1)
		p.log.Warn("db.pool.acquire.timeout",
			"waited", waited.Round(time.Millisecond),
			"limit", p.cfg.AcquireTimeout,
			"waiting", p.waiting.Load(),
		)
		return &TimeoutError{Limit: p.cfg.AcquireTimeout, Waited: waited, Err: err}
	default:
		p.log.Error("db.pool.acquire.fail", "err", err)
		return fmt.Errorf("dbpool: acquire: %w", err)
	}
}

// WithConn acquires a connection, runs fn, and releases the connection on every
// exit path including panics.
func (p *Pool) WithConn(ctx context.Context, fn func(ctx context.Context, c *Conn) error) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release()
	return fn(ctx, c)
}

// HealthCheck reports whether a connection can be acquired and answers
// SELECT 1. It never returns an error.
func (p *Pool) HealthCheck(ctx context.Context) bool {
	if err := p.ping(ctx); err != nil {
		p.log.Warn("db.pool.healthcheck.fail", "err", err)
		return false
	}
	return true
}

func (p *Pool) ping(ctx context.Context) error {
	return p.WithConn(ctx, func(ctx context.Context, c *Conn) error {
		return c.Ping(ctx)
	})
}

// Shutdown stops accepting acquisitions and closes every connection once
// outstanding handles are released. Calls after the first are no-ops. If ctx
// ends before the pool drains, Shutdown returns and the drain continues in the
// background.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		st := p.raw.Stat()
		p.log.Info("db.pool.shutdown",
			"total", st.TotalConns(),
			"acquired", st.AcquiredConns(),
			"idle", st.IdleConns(),
		)

		done := make(chan struct{})
		go func() {
			p.raw.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("dbpool: shutdown: %w", ctx.Err())
		}
	})
	return err
}

// Closed reports whether Shutdown has been called.
func (p *Pool) Closed() bool { return p.closed.Load() }

// Config returns the configuration the pool was built with.
func (p *Pool) Config() Config { return p.cfg }
