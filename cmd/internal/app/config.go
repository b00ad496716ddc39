package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"taskbridge/cmd/internal/dbpool"
)

// Config is the process configuration, read once at startup.
type Config struct {
	Env       string `env:"TASKBRIDGE_ENV" envDefault:"development"`
	HTTPAddr  string `env:"TASKBRIDGE_HTTP_ADDR" envDefault:"0.0.0.0:3000"`
	LogLevel  string `env:"TASKBRIDGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"TASKBRIDGE_LOG_FORMAT" envDefault:"json"`

	// HTTP server hardening
	ReadHeaderTimeout time.Duration `env:"TASKBRIDGE_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"TASKBRIDGE_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"TASKBRIDGE_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout       time.Duration `env:"TASKBRIDGE_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"TASKBRIDGE_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`
	ShutdownTimeout   time.Duration `env:"TASKBRIDGE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	TrustProxy        bool          `env:"TASKBRIDGE_TRUST_PROXY" envDefault:"false"`

	DatabaseURL string        `env:"DATABASE_URL"`
	DB          dbpool.Config `envPrefix:"TASKBRIDGE_DB_"`

	SigningSecret        string   `env:"BETTER_AUTH_SECRET"`
	RequireSigningSecret bool     `env:"TASKBRIDGE_REQUIRE_SIGNING_SECRET" envDefault:"false"`
	BaseURL              string   `env:"BETTER_AUTH_URL"`
	TrustedOrigins       []string `env:"BETTER_AUTH_TRUSTED_ORIGINS" envSeparator:","`

	CORSAllowCredentials bool `env:"TASKBRIDGE_CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	CORSMaxAgeSeconds    int  `env:"TASKBRIDGE_CORS_MAX_AGE_SECONDS" envDefault:"600"`

	SessionCookies     []string `env:"TASKBRIDGE_SESSION_COOKIES" envSeparator:"," envDefault:"better-auth.session_token,__Secure-better-auth.session_token,better-auth.session"`
	ProtectedPrefixes  []string `env:"TASKBRIDGE_PROTECTED_PREFIXES" envSeparator:"," envDefault:"/tasks,/focus,/dashboard"`
	PublicAuthPrefixes []string `env:"TASKBRIDGE_PUBLIC_PREFIXES" envSeparator:"," envDefault:"/login,/register"`
	SignInPath         string   `env:"TASKBRIDGE_SIGNIN_PATH" envDefault:"/login"`

	// Optional session cache. Empty URL or zero TTL disables it.
	RedisURL        string        `env:"TASKBRIDGE_REDIS_URL"`
	SessionCacheTTL time.Duration `env:"TASKBRIDGE_SESSION_CACHE_TTL" envDefault:"5m"`

	// UpstreamURL is the UI renderer unmatched paths are proxied to.
	UpstreamURL string `env:"TASKBRIDGE_UPSTREAM_URL"`
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	return loadConfig(nil)
}

// loadConfig parses environ (nil means the process environment).
func loadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Production reports whether the deployment is production.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.UpstreamURL = strings.TrimSpace(c.UpstreamURL)
	c.RedisURL = strings.TrimSpace(c.RedisURL)

	c.DB.URL = strings.TrimSpace(c.DatabaseURL)
	c.DB.TLSMode = dbpool.ResolveTLSMode(c.DB.TLSMode, c.Production())

	c.SessionCookies = compact(c.SessionCookies)
	c.ProtectedPrefixes = compact(c.ProtectedPrefixes)
	c.PublicAuthPrefixes = compact(c.PublicAuthPrefixes)
	c.TrustedOrigins = compact(c.TrustedOrigins)
	for i, o := range c.TrustedOrigins {
		c.TrustedOrigins[i] = strings.TrimRight(o, "/")
	}
}

// Validate enforces cross-field rules.
func (c Config) Validate() error {
	var errs []error

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.LogFormat))
	}

	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("config: http addr is required"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("config: shutdown timeout must be positive"))
	}
	if c.SessionCacheTTL < 0 {
		errs = append(errs, errors.New("config: session cache ttl must not be negative"))
	}
	if len(c.SessionCookies) == 0 {
		errs = append(errs, errors.New("config: at least one session cookie name is required"))
	}
	if !strings.HasPrefix(c.SignInPath, "/") {
		errs = append(errs, fmt.Errorf("config: sign-in path %q must start with /", c.SignInPath))
	}

	if c.UpstreamURL != "" {
		if err := checkHTTPURL(c.UpstreamURL); err != nil {
			errs = append(errs, fmt.Errorf("config: upstream url: %w", err))
		}
	}
	if c.BaseURL != "" {
		if err := checkHTTPURL(c.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("config: base url: %w", err))
		}
	}

	if err := c.DB.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// AllowedOrigins is the CORS allow-list: trusted origins plus the base URL.
func (c Config) AllowedOrigins() []string {
	out := make([]string, 0, len(c.TrustedOrigins)+1)
	if c.BaseURL != "" {
		out = append(out, c.BaseURL)
	}
	for _, o := range c.TrustedOrigins {
		if o != c.BaseURL {
			out = append(out, o)
		}
	}
	return out
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
