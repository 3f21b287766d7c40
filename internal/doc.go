// Package internal contains helper utilities that are intentionally private
// to the gateway, including identifier hashing for Redis key material.
//
// # Sub-packages
//
//   - flows: pure-function flow orchestrators for every Engine operation
//   - limiters: domain-specific rate limiters (sign-in, resend)
//   - rate: core Redis-backed rate limit primitives
//   - stores: passcode challenge view persistence
//
// # What this package must NOT do
//
//   - Export types that appear in the public gateway API.
//   - Be imported by any package outside the gateway module.
package internal
