// Package session resolves identity-provider session cookies into a verified
// (user, session) pair.
//
// The identity provider owns the "user" and "session" tables; this package only
// reads them. A cookie value has the form <token>[.<signature>] and only the
// token part is used for lookup. Resolution distinguishes three outcomes:
//
//   - Absence: no cookie, no matching row, or an expired row. Never an error.
//   - Infrastructure failure: wrapped with ErrStoreUnavailable and retryable.
//   - Integrity fault: more than one row for a token, ErrDuplicateSession.
//
// Authorization decisions never use IP address or user agent.
package session
