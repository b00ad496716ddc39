package app

import (
	"errors"
	"fmt"

	"taskbridge/cmd/security/secret"
)

// ValidateSecurityConfig enforces the startup policy for the signing secret.
// Only TASKBRIDGE_REQUIRE_SIGNING_SECRET makes a bad secret fatal.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireSigningSecret {
		return nil
	}
	if _, err := secret.Load(cfg.SigningSecret, secret.MinBytes); err != nil {
		return fmt.Errorf("security: %s: %w", secret.EnvKey, err)
	}
	return nil
}

// signingKey returns the key the minter signs with, or nil when none is set.
// A short secret is still used, with a warning.
func signingKey(cfg Config, log Logger) []byte {
	key, err := secret.Load(cfg.SigningSecret, secret.MinBytes)
	switch {
	case err == nil:
		log.Info("security.signing_secret.loaded", "fingerprint", secret.Fingerprint(key))
		return key
	case errors.Is(err, secret.ErrTooShort):
		key, _ = secret.Load(cfg.SigningSecret, 0)
		log.Warn("security.signing_secret.short",
			"env", secret.EnvKey,
			"min_bytes", secret.MinBytes,
			"fingerprint", secret.Fingerprint(key),
		)
		return key
	default:
		log.Error("security.signing_secret.missing", "env", secret.EnvKey)
		return nil
	}
}
