// Package main is a manual smoke client for a running taskbridge instance.
//
// It checks:
//   - liveness and readiness
//   - /api/session and /api/auth/token without a cookie
//   - the route guard redirect for a protected page
//   - with -cookie: the session payload and a verifiable bearer token
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskbridge/cmd/security/secret"
)

type smokeClient struct {
	base    *url.URL
	http    *http.Client
	cookie  string
	name    string
	timeout time.Duration
	verbose bool
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func main() {
	var (
		baseURL    = flag.String("url", "http://127.0.0.1:3000", "taskbridge base URL")
		cookie     = flag.String("cookie", "", "session cookie value (enables the signed-in checks)")
		cookieName = flag.String("cookie-name", "better-auth.session_token", "session cookie name")
		protected  = flag.String("protected", "/tasks", "protected path expected to redirect without a cookie")
		timeout    = flag.Duration("timeout", 5*time.Second, "per-request timeout")
		verbose    = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	base, err := validateBaseURL(*baseURL)
	if err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base: base,
		http: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		cookie:  *cookie,
		name:    *cookieName,
		timeout: *timeout,
		verbose: *verbose,
	}
	ctx := context.Background()

	mustStatus(ctx, c, "/healthz", false, http.StatusOK)
	mustStatus(ctx, c, "/readyz", false, http.StatusOK)

	body := mustStatus(ctx, c, "/api/session", false, http.StatusOK)
	if strings.TrimSpace(string(body)) != `{"data":null}` {
		fatalf("anonymous session: unexpected body %s", body)
	}

	body = mustStatus(ctx, c, "/api/auth/token", false, http.StatusUnauthorized)
	mustErrorMessage(body, "No session found")

	resp := mustGet(ctx, c, *protected, false)
	if resp.status != http.StatusSeeOther || !strings.HasPrefix(resp.location, "/") {
		fatalf("guard: %s -> %d location=%q", *protected, resp.status, resp.location)
	}

	if c.cookie == "" {
		fmt.Println("OK: anonymous checks passed (no -cookie given)")
		return
	}

	var sess struct {
		Data *struct {
			User struct {
				ID    string `json:"id"`
				Email string `json:"email"`
			} `json:"user"`
			Session struct {
				ExpiresAt string `json:"expiresAt"`
			} `json:"session"`
		} `json:"data"`
	}
	body = mustStatus(ctx, c, "/api/session", true, http.StatusOK)
	if err := json.Unmarshal(body, &sess); err != nil || sess.Data == nil {
		fatalf("session: expected data, got %s (err=%v)", body, err)
	}

	var tok struct {
		Token     string `json:"token"`
		UserID    string `json:"userId"`
		ExpiresAt string `json:"expiresAt"`
	}
	body = mustStatus(ctx, c, "/api/auth/token", true, http.StatusOK)
	if err := json.Unmarshal(body, &tok); err != nil {
		fatalf("token: decode: %v", err)
	}
	if tok.UserID != sess.Data.User.ID {
		fatalf("token: userId=%q session user=%q", tok.UserID, sess.Data.User.ID)
	}
	if tok.ExpiresAt != sess.Data.Session.ExpiresAt {
		fatalf("token: expiresAt=%q session expiresAt=%q", tok.ExpiresAt, sess.Data.Session.ExpiresAt)
	}

	resp = mustGet(ctx, c, *protected, true)
	if resp.status == http.StatusSeeOther {
		fatalf("guard: %s redirected despite cookie", *protected)
	}

	if key, err := secret.FromEnv(0); err == nil {
		claims := mustVerify(tok.Token, key)
		if claims.Subject != tok.UserID || claims.Email != sess.Data.User.Email {
			fatalf("token: claims sub=%q email=%q", claims.Subject, claims.Email)
		}
		fmt.Printf("OK: user=%s token verified (key %s) exp=%s\n", tok.UserID, secret.Fingerprint(key), tok.ExpiresAt)
		return
	}

	fmt.Printf("OK: user=%s exp=%s (set %s to verify the signature)\n", tok.UserID, tok.ExpiresAt, secret.EnvKey)
}

type result struct {
	status   int
	location string
	body     []byte
}

func mustGet(ctx context.Context, c *smokeClient, path string, withCookie bool) result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		fatalf("%s: %v", path, err)
	}
	if withCookie {
		req.AddCookie(&http.Cookie{Name: c.name, Value: c.cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("%s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("%s: read body: %v", path, err)
	}
	if c.verbose {
		fmt.Printf("GET %s cookie=%t -> %d %s\n", path, withCookie, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return result{status: resp.StatusCode, location: resp.Header.Get("Location"), body: body}
}

func mustStatus(ctx context.Context, c *smokeClient, path string, withCookie bool, want int) []byte {
	r := mustGet(ctx, c, path, withCookie)
	if r.status != want {
		fatalf("%s: status=%d want=%d body=%s", path, r.status, want, r.body)
	}
	return r.body
}

func mustErrorMessage(body []byte, want string) {
	var e struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err != nil || e.Error != want {
		fatalf("error body: got %s want error=%q", body, want)
	}
}

func mustVerify(raw string, key []byte) tokenClaims {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		fatalf("token: verify: %v", err)
	}
	return claims
}

func validateBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
