package bearer

import "errors"

var (
	// ErrSecretMissing is returned by every Mint and Verify call when no
	// signing secret is configured.
	ErrSecretMissing = errors.New("bearer signing secret is not configured")

	// ErrSessionExpired is returned when minting from a session that is no
	// longer active.
	ErrSessionExpired = errors.New("session already expired")

	// ErrInvalidIdentity is returned when the identity lacks a user id.
	ErrInvalidIdentity = errors.New("identity has no user id")

	// ErrInvalidToken is returned by Verify for any token that fails checks.
	ErrInvalidToken = errors.New("invalid bearer token")
)
