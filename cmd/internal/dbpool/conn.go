package dbpool

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is a pooled connection handle owned by exactly one caller until Release.
type Conn struct {
	raw      *pgxpool.Conn
	pool     *Pool
	released atomic.Bool
}

// Release returns the connection to the pool. Repeated calls are no-ops.
func (c *Conn) Release() {
	if c == nil {
		return
	}
	if !c.released.CompareAndSwap(false, true) {
		c.pool.doubleReleases.Add(1)
		c.pool.log.Debug("db.pool.conn.double_release")
		return
	}
	c.raw.Release()
}

// Query runs sql under the pool's QueryTimeout and calls scan once per row.
func (c *Conn) Query(ctx context.Context, sql string, args []any, scan func(pgx.Rows) error) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	qctx, cancel := context.WithTimeout(ctx, c.pool.cfg.QueryTimeout)
	defer cancel()

	rows, err := c.raw.Query(qctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs a statement under the pool's QueryTimeout.
func (c *Conn) Exec(ctx context.Context, sql string, args ...any) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	qctx, cancel := context.WithTimeout(ctx, c.pool.cfg.QueryTimeout)
	defer cancel()

	_, err := c.raw.Exec(qctx, sql, args...)
	return err
}

// Ping runs SELECT 1.
func (c *Conn) Ping(ctx context.Context) error {
	if c.released.Load() {
		return ErrConnReleased
	}

	qctx, cancel := context.WithTimeout(ctx, c.pool.cfg.QueryTimeout)
	defer cancel()

	var one int
	return c.raw.QueryRow(qctx, "SELECT 1").Scan(&one)
}
