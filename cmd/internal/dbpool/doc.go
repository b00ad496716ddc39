// Package dbpool owns the process-wide PostgreSQL connection pool used by the
// session resolver.
//
// A Pool is constructed once at process start (Open or Connect), passed to its
// consumers explicitly, and closed once with Shutdown. It wraps pgxpool and adds
// the guarantees the auth bridge relies on:
//
//   - Acquire is bounded by AcquireTimeout and by the caller's context. A timeout
//     is reported as *TimeoutError (errors.Is(err, ErrPoolTimeout)); a closed pool
//     as ErrPoolClosed.
//   - Release is idempotent. A second Release on the same handle is a counted
//     no-op and never corrupts pool accounting.
//   - Every statement runs under a server-side statement_timeout and a
//     client-side QueryTimeout.
//   - Broken idle connections are evicted by pgxpool's health check and by the
//     AfterRelease hook; they never surface to an unrelated caller.
//
// Stats exposes counters and gauges for an external collector (see NewCollector).
// The pool does not depend on any logging for correctness.
package dbpool
