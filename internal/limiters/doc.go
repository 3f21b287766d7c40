// Package limiters provides the gateway's domain-specific rate limiters built
// on top of the internal/rate primitive.
//
// # Limiters
//
//   - [SignInLimiter]: per-identifier + per-IP throttle for credential checks.
//   - [ResendLimiter]: per-identifier throttle for passcode and recovery
//     email resends.
//
// All limiters are nil-safe: calling any method on a nil receiver allows the
// request (a missing limiter must never lock users out).
//
// # Architecture boundaries
//
// Each limiter owns its own Redis key namespace. Policy thresholds come from
// Config structs supplied at construction time.
//
// # What this package must NOT do
//
//   - Import the root gateway package or any sibling internal package except
//     internal/rate.
//   - Make policy decisions beyond counting; flow functions decide
//     consequences.
package limiters
