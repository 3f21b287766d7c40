// Package flowstate provides the authenticated-encryption codec for the
// ephemeral flow-state cookie that carries multi-step protocol context
// between stateless gateway requests.
//
// # Design
//
// A [Token] is serialized to a compact versioned binary layout and sealed
// with XChaCha20-Poly1305 under a server-held symmetric key. The server never
// persists the token; the client owns the cookie and the server treats it as
// opaque, tamper-evident input.
//
// Decode fails closed: any corruption, truncation, signature mismatch, or
// expiry yields an error and never a partially-trusted token. Callers react
// to every decode failure the same way: restart the flow from its entry
// point.
//
// # What this package must NOT do
//
//   - Perform cookie I/O (the caller owns HTTP concerns).
//   - Import the root gateway package or internal packages.
//   - Accept a token whose authentication tag does not verify.
package flowstate
