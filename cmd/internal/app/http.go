package app

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readyTimeout = 2 * time.Second

// Handler returns the full middleware chain and routes.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(WithRequestID)
	r.Use(middleware.Recoverer)
	if a.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(func(next http.Handler) http.Handler { return WithRequestLogging(next, a.log) })
	r.Use(WithSecurityHeaders)
	r.Use(func(next http.Handler) http.Handler { return WithCORS(next, a.cfg, a.log) })
	r.Use(a.guard.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	a.auth.Register(r)

	if a.upstream != nil {
		r.NotFound(a.upstream.ServeHTTP)
	}

	return r
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.pool == nil {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if !a.pool.HealthCheck(ctx) {
		a.log.Info("readyz.db.not_ready")
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}

// newUpstream proxies to the UI renderer, keeping the client's Host header.
func newUpstream(raw string, log Logger) (http.Handler, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Host = pr.In.Host
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Error("upstream.proxy.fail", "path", r.URL.Path, "err", err)
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		},
	}, nil
}
