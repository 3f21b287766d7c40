// Package gateway provides a consumer-facing identity gateway engine that
// drives sign-in, registration, passcode verification, and password reset
// against a step-based identity provider protocol and a legacy account API.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build]. The engine is request-scoped and stateless; per-flow
// context travels in an encrypted client-held token and the only shared
// mutable state is the Redis-backed rate counters and challenge views.
//
// # Architecture boundaries
//
// gateway is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (StepResult, MetricsSnapshot, AuditEvent, etc.). All
// internal coordination (flow orchestration, rate limiting, challenge
// bookkeeping, audit dispatch) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, provider clients, or token encoding details in
//     its public API.
//   - Surface raw provider error detail to callers; every failure is mapped
//     onto the sentinel taxonomy in errors.go.
//   - Import any sub-package that re-imports gateway (no import cycles).
package gateway
