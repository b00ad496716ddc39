package secret

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// EnvKey is the env var name for the shared signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	EnvKey = "BETTER_AUTH_SECRET"

	// MinBytes is the minimum key size recommended for HMAC-SHA256.
	MinBytes = 32
)

// Load returns the trimmed secret bytes, enforcing a minimum byte length.
// A blank value -> ErrMissing. Shorter than minBytes -> ErrTooShort.
// Length is measured in bytes because the key is used as raw bytes.
func Load(raw string, minBytes int) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrTooShort
	}
	return b, nil
}

// FromEnv is Load over the EnvKey environment variable.
func FromEnv(minBytes int) ([]byte, error) {
	return Load(os.Getenv(EnvKey), minBytes)
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Fingerprint identifies a key in logs without revealing it: the first 8 hex
// chars of its SHA-256. Empty keys have no fingerprint.
func Fingerprint(key []byte) string {
	if len(key) == 0 {
		return ""
	}
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:4])
}
