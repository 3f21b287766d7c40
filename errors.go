package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredential is returned for any wrong identifier,
	// password, or passcode. The message never reveals which part was
	// wrong or whether the account exists.
	ErrInvalidCredential = errors.New("email and password don't match")

	// ErrExpiredChallenge is returned when a passcode or recovery token
	// is past its validity or its attempt budget. The only valid
	// continuation is restarting the flow, not retrying.
	ErrExpiredChallenge = errors.New("challenge has expired")

	// ErrRateLimited is returned when an attempt counter reached its
	// window limit. Use [AsRateLimited] to read the retry-after.
	ErrRateLimited = errors.New("rate limited")

	// ErrReconciliationFailed is returned when a corrective pass on an
	// inconsistent account itself failed.
	ErrReconciliationFailed = errors.New("account reconciliation failed")

	// ErrProviderUnavailable is returned after the single transparent
	// retry against a backing system has also failed.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrClientIntegrity is returned for a malformed or tampered
	// flow-state token. Callers must treat it as a neutral restart.
	ErrClientIntegrity = errors.New("invalid flow state")

	// ErrCSRFRejected is returned when the per-form token check fails,
	// before any flow logic runs.
	ErrCSRFRejected = errors.New("csrf token rejected")

	// ErrInvalidRequest is returned when request payload validation
	// fails.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEngineNotReady is returned when the engine was not built
	// through [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitedError carries the remaining cooldown alongside the
// [ErrRateLimited] sentinel.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}

// AsRateLimited extracts the retry-after from err when it is a rate limit
// rejection.
func AsRateLimited(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimited) {
		return 0, true
	}
	return 0, false
}
