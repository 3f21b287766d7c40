// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunSignIn, RunVerifyPasscode, RunRegister, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. This design enables exhaustive unit testing with
// mock dependencies and keeps the Engine type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the identity provider clients, the rate
// limiters, the passcode store, the mailer, audit dispatch, and metrics. They
// do NOT own any of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root gateway package (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
