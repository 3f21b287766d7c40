// Package idapi is a client for the identity provider's account management
// API. It exposes the user-record operations the gateway needs for account
// state resolution and self-healing: reading and updating user profiles,
// driving the recovery-token password reset sequence, and listing group
// membership.
//
// The interaction protocol lives in package idx; this package covers the
// older per-resource surface that the protocol does not reach.
package idapi
