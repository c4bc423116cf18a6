package emporia

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy for cloud calls. Callers are expected to branch on the
// category (errors.As / the Is* helpers), not on error strings:
//
//   - AuthError: credentials or token rejected. Retrying without new
//     credentials cannot succeed.
//   - RateLimitedError: the account hit the request quota. Backing off
//     is the only fix.
//   - NotFoundError: the addressed vehicle/device no longer exists on
//     the account.
//   - TransientError: anything expected to heal on its own (timeouts,
//     5xx, connection resets, malformed bodies).

type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("emporia: authentication failed: %s", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type RateLimitedError struct {
	// RetryAfter is zero when the service did not hint a delay.
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("emporia: rate limited, retry after %s", e.RetryAfter)
	}
	return "emporia: rate limited"
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("emporia: not found: %s", e.Resource)
}

type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("emporia: transient error: %s", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func IsAuthError(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsRateLimited(err error) bool {
	var e *RateLimitedError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}
