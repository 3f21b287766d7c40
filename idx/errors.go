package idx

import "errors"

var (
	// ErrInvalidCredential is returned when the provider rejects a submitted
	// password or passcode.
	ErrInvalidCredential = errors.New("idx: invalid credential")
	// ErrInvalidHandle is returned when a state or interaction handle is
	// unknown, expired, or already consumed.
	ErrInvalidHandle = errors.New("idx: invalid state handle")
	// ErrUserExists is returned by Enroll when the identifier already has an
	// account.
	ErrUserExists = errors.New("idx: user already exists")
	// ErrUpstreamRateLimited is returned when the provider itself throttles
	// the gateway.
	ErrUpstreamRateLimited = errors.New("idx: upstream rate limited")
	// ErrUnavailable is returned for transport failures, timeouts, and 5xx
	// responses that persisted through one retry.
	ErrUnavailable = errors.New("idx: provider unavailable")
)

// provider error codes, per the protocol's error envelope
const (
	codeInvalidCredential = "E0000004"
	codeInvalidHandle     = "E0000011"
	codeUserExists        = "E0000034"
	codeRateLimited       = "E0000047"
)

func errorForCode(code string) error {
	switch code {
	case codeInvalidCredential:
		return ErrInvalidCredential
	case codeInvalidHandle:
		return ErrInvalidHandle
	case codeUserExists:
		return ErrUserExists
	case codeRateLimited:
		return ErrUpstreamRateLimited
	default:
		return ErrUnavailable
	}
}
