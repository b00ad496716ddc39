package session

import (
	"context"
	"time"
)

// Store looks up the active session for a token.
//
// FindActive returns ErrSessionNotFound when no row matches with expiresAt > now
// and ErrDuplicateSession when more than one does. Any other error is treated as
// an infrastructure failure by the Resolver.
type Store interface {
	FindActive(ctx context.Context, token string, now time.Time) (Identity, error)
}
