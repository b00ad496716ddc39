package guard

import (
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"taskbridge/cmd/internal/auth/session"
)

// Config is the static guard policy.
type Config struct {
	// ProtectedPrefixes require a session cookie.
	ProtectedPrefixes []string
	// PublicAuthPrefixes are always let through (sign-in, sign-up).
	PublicAuthPrefixes []string
	// SignInPath is the redirect target for unauthenticated requests.
	SignInPath string
	// ReturnToParam carries the original path and query on the redirect.
	ReturnToParam string
}

// DefaultConfig protects the task pages and leaves the auth pages public.
func DefaultConfig() Config {
	return Config{
		ProtectedPrefixes:  []string{"/tasks", "/focus", "/dashboard"},
		PublicAuthPrefixes: []string{"/login", "/register"},
		SignInPath:         "/login",
		ReturnToParam:      "redirect",
	}
}

// Action is the outcome of Decide.
type Action int

const (
	// Allow passes the request to the next handler.
	Allow Action = iota
	// Redirect sends the client to the sign-in page.
	Redirect
)

func (a Action) String() string {
	if a == Redirect {
		return "redirect"
	}
	return "allow"
}

// Decision is the per-request outcome. Location is set for Redirect.
type Decision struct {
	Action   Action
	Location string
	Reason   string
}

// Guard is safe for concurrent use; it holds no per-request state.
type Guard struct {
	protected []string
	public    []string
	signIn    string
	returnTo  string
	cookies   session.CookieNames
	log       *slog.Logger
}

// New normalizes cfg. Empty fields fall back to DefaultConfig.
func New(cfg Config, cookies session.CookieNames, log *slog.Logger) *Guard {
	def := DefaultConfig()
	if cfg.ProtectedPrefixes == nil {
		cfg.ProtectedPrefixes = def.ProtectedPrefixes
	}
	if cfg.PublicAuthPrefixes == nil {
		cfg.PublicAuthPrefixes = def.PublicAuthPrefixes
	}
	if strings.TrimSpace(cfg.SignInPath) == "" {
		cfg.SignInPath = def.SignInPath
	}
	if strings.TrimSpace(cfg.ReturnToParam) == "" {
		cfg.ReturnToParam = def.ReturnToParam
	}
	if len(cookies) == 0 {
		cookies = session.DefaultCookieNames
	}
	if log == nil {
		log = slog.Default()
	}

	return &Guard{
		protected: normalizePrefixes(cfg.ProtectedPrefixes),
		public:    normalizePrefixes(cfg.PublicAuthPrefixes),
		signIn:    cfg.SignInPath,
		returnTo:  cfg.ReturnToParam,
		cookies:   cookies,
		log:       log,
	}
}

// Decide evaluates the policy table for r. It never fails.
func (g *Guard) Decide(r *http.Request) Decision {
	p := r.URL.Path
	if p == "" {
		p = "/"
	}

	if matchAny(p, g.public) {
		return Decision{Action: Allow, Reason: "public_auth"}
	}
	if !matchAny(p, g.protected) || isAsset(p) {
		return Decision{Action: Allow, Reason: "unprotected"}
	}
	if g.cookies.Present(r) {
		return Decision{Action: Allow, Reason: "cookie_present"}
	}
	return Decision{Action: Redirect, Location: g.location(r), Reason: "no_cookie"}
}

// Middleware applies Decide before next.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r)
		if d.Action == Redirect {
			g.log.Debug("guard.redirect", "path", r.URL.Path, "location", d.Location)
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) location(r *http.Request) string {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	q := url.Values{}
	q.Set(g.returnTo, target)
	return g.signIn + "?" + q.Encode()
}

func normalizePrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		if p != "/" {
			p = strings.TrimRight(p, "/")
		}
		out = append(out, p)
	}
	return out
}

// matchAny is segment-aware: "/tasks" matches "/tasks" and "/tasks/1" but not
// "/tasksx".
func matchAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "/" || p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

var assetExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {}, ".ico": {},
}

func isAsset(p string) bool {
	_, ok := assetExts[strings.ToLower(path.Ext(p))]
	return ok
}
