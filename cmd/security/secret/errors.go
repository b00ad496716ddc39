package secret

import "errors"

// Public, stable errors for callers.
var (
	ErrMissing  = errors.New("signing secret missing")
	ErrTooShort = errors.New("signing secret too short")
)
