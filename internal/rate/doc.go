// Package rate provides the Redis-backed fixed-window counter primitive that
// the gateway's domain limiters are built on.
//
// # Window semantics
//
// CheckAndIncrement runs a single Lua script per call: INCR, EXPIRE on the
// first hit in the window, then compare against the limit. Because the whole
// check-and-increment is one Redis round-trip, two concurrent requests for the
// same key can never both observe "count below limit" and both pass when only
// one slot remains. Keys recover automatically when the window TTL elapses.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Be imported outside the gateway module.
package rate
