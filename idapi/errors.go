package idapi

import "errors"

var (
	// ErrNotFound is returned when no user matches the given identifier.
	ErrNotFound = errors.New("idapi: user not found")

	// ErrInvalidToken is returned when a recovery or state token is
	// unknown, already consumed, or expired.
	ErrInvalidToken = errors.New("idapi: invalid recovery token")

	// ErrUpstreamRateLimited is returned when the provider throttled the
	// request.
	ErrUpstreamRateLimited = errors.New("idapi: provider rate limited")

	// ErrUnavailable is returned for transport failures and unclassified
	// provider errors.
	ErrUnavailable = errors.New("idapi: provider unavailable")
)
