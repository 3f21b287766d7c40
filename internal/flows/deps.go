package flows

import (
	"context"
	"errors"
)

// Deps aggregates per-flow dependency groups. The root engine builds one
// Deps value at startup and wires every field; flows never mutate it.
type Deps struct {
	Resolve   ResolveDeps
	SignIn    SignInDeps
	Passcode  PasscodeDeps
	Register  RegisterDeps
	Reset     ResetDeps
	Reconcile ReconcileDeps
}

// Hooks carries the optional observability callbacks shared by all flow
// dependency groups. Nil fields are replaced with no-ops.
type Hooks struct {
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, userID string, err error, fields func() map[string]string)
	Warn      func(string, ...any)
}

func (h *Hooks) fillDefaults() {
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
}

func isErr(err, target error) bool {
	return target != nil && errors.Is(err, target)
}
