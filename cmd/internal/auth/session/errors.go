package session

import "errors"

var (
	// ErrSessionNotFound is returned by a Store when no active session matches.
	// The Resolver maps it to Absence.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession is returned when more than one row matches a token.
	ErrDuplicateSession = errors.New("duplicate session rows for token")

	// ErrStoreUnavailable wraps lookup failures that are not Absence.
	ErrStoreUnavailable = errors.New("session store unavailable")
)
