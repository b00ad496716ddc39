package bearer

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Verifier checks tokens the way the task backend does: HS256 only, exp
// required, sub required.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithVerifyClock overrides time.Now for exp checks.
func WithVerifyClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier builds a verifier for secret.
func NewVerifier(secret []byte, opts ...VerifierOption) *Verifier {
	v := &Verifier{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates raw.
func (v *Verifier) Verify(raw string) (Claims, error) {
	if len(v.secret) == 0 {
		return Claims{}, ErrSecretMissing
	}
	if strings.TrimSpace(raw) == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if token == nil || !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
