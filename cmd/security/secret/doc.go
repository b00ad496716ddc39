// Package secret owns the shared signing secret policy and the hashing primitives
// used around session tokens.
//
// The signing secret is shared out-of-band with the task backend, which verifies
// bearer tokens with it. It is never defaulted: an absent secret stays absent
// and every consumer must treat that as a configuration failure.
//
// Environment:
//   - BETTER_AUTH_SECRET: HS256 key shared with the task backend.
//
// Policy:
//   - When the deployment requires a secret, callers enforce a minimum key size
//     (>= 32 bytes) at startup through Load.
package secret
