package session

import (
	"net/http"
	"net/url"
	"strings"
)

// CookieNames is the ordered list of cookie names that may carry a session
// token. Earlier names win.
type CookieNames []string

// DefaultCookieNames are the names the identity provider sets, plain transport
// first.
var DefaultCookieNames = CookieNames{
	"better-auth.session_token",
	"__Secure-better-auth.session_token",
	"better-auth.session",
}

// Value returns the first non-empty recognized cookie value.
func (n CookieNames) Value(r *http.Request) (string, bool) {
	for _, name := range n {
		c, err := r.Cookie(name)
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(c.Value); v != "" {
			return v, true
		}
	}
	return "", false
}

// Present reports whether any recognized cookie carries a value.
func (n CookieNames) Present(r *http.Request) bool {
	_, ok := n.Value(r)
	return ok
}

// LookupKey extracts the stored token from a cookie value: the value is
// percent-decoded when possible and cut at the first ".".
func LookupKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if dec, err := url.PathUnescape(raw); err == nil {
		raw = dec
	}
	key, _, _ := strings.Cut(raw, ".")
	return key
}
