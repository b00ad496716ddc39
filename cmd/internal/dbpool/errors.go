package dbpool

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrPoolClosed is returned by Acquire after Shutdown.
	ErrPoolClosed = errors.New("connection pool closed")

	// ErrPoolTimeout is matched by *TimeoutError.
	ErrPoolTimeout = errors.New("connection pool acquire timeout")

	// ErrConnReleased is returned when a released handle is used again.
	ErrConnReleased = errors.New("connection already released")

	// ErrConfig is returned for invalid pool configuration.
	ErrConfig = errors.New("invalid pool config")

	// ErrMigrationFailed wraps goose failures.
	ErrMigrationFailed = errors.New("failed to apply migrations")
)

// TimeoutError reports an acquisition that did not get a connection within the
// configured AcquireTimeout.
type TimeoutError struct {
	Limit  time.Duration
	Waited time.Duration
	Err    error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: waited %s (limit %s)", ErrPoolTimeout.Error(), e.Waited.Round(time.Millisecond), e.Limit)
}

func (e *TimeoutError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPoolTimeout}
	}
	return []error{ErrPoolTimeout, e.Err}
}
