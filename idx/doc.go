// Package idx implements the HTTP client for the identity provider's
// multi-step interaction protocol: interact, introspect, identify,
// challenge, challenge-answer, enroll, and recover.
//
// # Error contract
//
// Provider rejections arrive as coded JSON errors and are mapped onto the
// package sentinels (ErrInvalidCredential, ErrInvalidHandle, ErrUserExists,
// ErrUpstreamRateLimited). Transport failures, timeouts, and 5xx responses
// map to ErrUnavailable after one transparent retry. Callers match with
// errors.Is and never see raw provider error bodies.
//
// # What this package must NOT do
//
//   - Make branching decisions about the flow; it only executes single
//     protocol steps against handles supplied by the orchestrator.
//   - Retry explicit rejections (wrong credential, expired handle).
package idx
