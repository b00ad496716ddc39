// Package app wires the taskbridge process: config, logging, the HTTP
// middleware chain, and the lifecycle of the database pool and session cache.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	authapi "taskbridge/cmd/internal/auth/api"
	"taskbridge/cmd/internal/auth/bearer"
	"taskbridge/cmd/internal/auth/guard"
	"taskbridge/cmd/internal/auth/session"
	"taskbridge/cmd/internal/dbpool"
)

// App owns the HTTP surface and the resources it closes on shutdown.
type App struct {
	cfg Config
	log Logger

	pool *dbpool.Pool
	rdb  *redis.Client

	registry *prometheus.Registry
	guard    *guard.Guard
	auth     *authapi.Handler
	upstream http.Handler

	closeOnce sync.Once
	closeErr  error
}

// New connects the pool (migrating when configured), attaches the optional
// Redis cache, and assembles the handlers.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}

	pool, err := dbpool.Connect(ctx, cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := dbpool.Migrate(ctx, pool, log); err != nil {
			_ = pool.Shutdown(context.Background())
			return nil, err
		}
	}

	var store session.Store = session.NewPostgresStore(pool)

	var rdb *redis.Client
	if cfg.RedisURL != "" && cfg.SessionCacheTTL > 0 {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = pool.Shutdown(context.Background())
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis.ping.fail", "err", err)
		}
		store = session.NewRedisCache(store, rdb, cfg.SessionCacheTTL, log)
		log.Info("session.cache.enabled", "addr", opts.Addr, "ttl", cfg.SessionCacheTTL)
	}

	a, err := assemble(cfg, log, pool, store)
	if err != nil {
		_ = pool.Shutdown(context.Background())
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	a.rdb = rdb
	return a, nil
}

// assemble builds the handler graph over an existing pool and store.
// pool may be nil, in which case readiness always fails.
func assemble(cfg Config, log Logger, pool *dbpool.Pool, store session.Store) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if pool != nil {
		reg.MustRegister(dbpool.NewCollector(pool))
	}

	cookies := session.CookieNames(cfg.SessionCookies)
	resolver := session.NewResolver(store, cookies, log)
	minter := bearer.NewMinter(signingKey(cfg, log))

	g := guard.New(guard.Config{
		ProtectedPrefixes:  cfg.ProtectedPrefixes,
		PublicAuthPrefixes: cfg.PublicAuthPrefixes,
		SignInPath:         cfg.SignInPath,
		ReturnToParam:      guard.DefaultConfig().ReturnToParam,
	}, cookies, log)

	a := &App{
		cfg:      cfg,
		log:      log,
		pool:     pool,
		registry: reg,
		guard:    g,
		auth:     authapi.NewHandler(log, resolver, minter, authapi.NewMetrics(reg)),
	}

	if cfg.UpstreamURL != "" {
		up, err := newUpstream(cfg.UpstreamURL, log)
		if err != nil {
			return nil, fmt.Errorf("upstream: %w", err)
		}
		a.upstream = up
	}
	return a, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails, then drains
// the server and closes the pool and cache.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
		IdleTimeout:       a.cfg.IdleTimeout,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "env", a.cfg.Env, "upstream", a.cfg.UpstreamURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", context.Cause(gctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if err := a.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		a.log.Info("server.stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}

// Close releases the pool and the Redis client. Safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.pool != nil {
			if err := a.pool.Shutdown(ctx); err != nil {
				a.log.Error("db.pool.shutdown.fail", "err", err)
				errs = append(errs, err)
			}
		}
		if a.rdb != nil {
			if err := a.rdb.Close(); err != nil {
				a.log.Error("redis.close.fail", "err", err)
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
