package bearer

import (
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"taskbridge/cmd/internal/auth/session"
)

// Claims is the claim set shared with the task backend.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Token is a freshly minted bearer credential.
type Token struct {
	Value     string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Minter signs bearer tokens. Safe for concurrent use.
type Minter struct {
	secret []byte
	now    func() time.Time
}

// MinterOption configures a Minter.
type MinterOption func(*Minter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) MinterOption {
	return func(m *Minter) { m.now = now }
}

// NewMinter never fails; a missing secret surfaces on every Mint call.
func NewMinter(secret []byte, opts ...MinterOption) *Minter {
	m := &Minter{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Configured reports whether a signing secret is present.
func (m *Minter) Configured() bool { return len(m.secret) > 0 }

// Mint signs {sub, email, iat, exp} for a resolved identity.
func (m *Minter) Mint(id session.Identity) (Token, error) {
	if !m.Configured() {
		return Token{}, ErrSecretMissing
	}

	userID := strings.TrimSpace(id.Session.UserID)
	if userID == "" {
		userID = strings.TrimSpace(id.User.ID)
	}
	if userID == "" {
		return Token{}, ErrInvalidIdentity
	}

	now := m.now()
	if !id.Active(now) {
		return Token{}, ErrSessionExpired
	}

	// NumericDate truncates to whole seconds, so exp never exceeds expiresAt.
	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(id.Session.ExpiresAt)

	claims := Claims{
		Email: id.User.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  iat,
			ExpiresAt: exp,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign bearer token: %w", err)
	}

	return Token{
		Value:     signed,
		UserID:    userID,
		IssuedAt:  iat.Time,
		ExpiresAt: id.Session.ExpiresAt,
	}, nil
}
