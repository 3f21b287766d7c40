// Package middleware provides net/http middleware for services fronted by
// the gateway engine: request metadata propagation and session-cookie
// guarding.
package middleware
