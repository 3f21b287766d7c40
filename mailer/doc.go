// Package mailer renders and dispatches the transactional emails the
// authentication flows trigger: account activation, password reset, and
// email verification. Dispatch is fire-and-forget from the flow's point of
// view; a send failure is logged but never blocks the flow outcome the
// user sees.
//
// Delivery backends implement [Sender]. The SES-backed implementation lives
// in mailer/sesmail.
package mailer
