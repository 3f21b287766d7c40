// Package session builds and refreshes the cookie bundle issued after a
// completed authentication flow.
//
// # Cookie set
//
// A successful flow yields a [CookieSet]: the persistent primary cookie
// carrying the provider session token, a signed legacy compatibility cookie
// for consumers that still read the old JWT format, and a last-access
// timestamp cookie. On refresh the primary cookie is always reissued with a
// new value and a strictly later expiry, the legacy cookie is reissued
// later-dated, and the last-access cookie is carried over byte-identical in
// both value and expiry.
//
// # Architecture boundaries
//
// This package mints and parses cookies. It does NOT talk to the identity
// provider, decide whether a flow completed, or perform cookie I/O on an
// HTTP response; those responsibilities belong to the Engine and the
// presentation layer.
//
// # What this package must NOT do
//
//   - Import the root gateway package (no upward imports).
//   - Validate provider session tokens against the provider.
//   - Store anything server-side.
package session
