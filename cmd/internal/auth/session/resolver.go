package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"taskbridge/cmd/security/secret"
)

// Resolver turns a session cookie into an Identity.
type Resolver struct {
	store   Store
	cookies CookieNames
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a resolver. An empty cookies list means DefaultCookieNames.
func NewResolver(store Store, cookies CookieNames, log *slog.Logger, opts ...Option) *Resolver {
	if len(cookies) == 0 {
		cookies = DefaultCookieNames
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{store: store, cookies: cookies, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cookies returns the recognized cookie names in priority order.
func (r *Resolver) Cookies() CookieNames { return r.cookies }

// Resolve reads the session cookie from req. ok is false on Absence.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (Identity, bool, error) {
	raw, ok := r.cookies.Value(req)
	if !ok {
		return Identity{}, false, nil
	}
	return r.ResolveValue(ctx, raw)
}

// ResolveValue resolves a raw cookie value.
func (r *Resolver) ResolveValue(ctx context.Context, raw string) (Identity, bool, error) {
	key := LookupKey(raw)
	if key == "" {
		return Identity{}, false, nil
	}

	now := r.now()
	id, err := r.store.FindActive(ctx, key, now)
	switch {
	case err == nil:
	case errors.Is(err, ErrSessionNotFound):
		return Identity{}, false, nil
	case errors.Is(err, ErrDuplicateSession):
		r.log.Error("session.resolve.duplicate", "token_hash", secret.HashSHA256Hex(key)[:12])
		return Identity{}, false, err
	default:
		r.log.Error("session.resolve.fail", "err", err)
		return Identity{}, false, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	// Expired rows are Absence regardless of the store's own filter.
	if !id.Active(now) {
		return Identity{}, false, nil
	}
	return id, true, nil
}
