// Package bearer mints and verifies the HS256 bearer tokens the task backend
// trusts.
//
// A token is derived from a resolved session and never outlives it: exp is the
// session's expiresAt in whole seconds. Claims are {sub, email, iat, exp}.
// Tokens are not persisted and cannot be revoked before exp except by rotating
// the shared secret.
package bearer
