// Package stores provides the Redis-backed, short-lived record store for the
// gateway's local view of one-time passcode challenges.
//
// # Design
//
// The backing identity provider owns code generation and verification; this
// store only mirrors the challenge metadata the orchestrator needs between
// stateless requests: the protocol handle, attempt count, and expiry. Records
// are versioned binary blobs with a TTL. The failure counter is advanced by a
// Lua script so that two concurrent incorrect submissions can never both see
// "one attempt remaining".
//
// # What this package must NOT do
//
//   - Import the root gateway package or any sibling internal package.
//   - Store or log the plaintext passcode; the provider never reveals it.
package stores
