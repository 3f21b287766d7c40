package gateway

import "context"

// ResolveAccountStatus derives the lifecycle state and authenticator set for
// an identifier. The result is computed fresh on every call and never
// cached; lifecycle state is owned by the backing systems.
//
// This is an operator-facing operation. It reveals account existence, so it
// must never back a user-facing endpoint.
func (e *Engine) ResolveAccountStatus(ctx context.Context, identifier string) (UserRecord, error) {
	if e == nil || !e.flows.Initialized() {
		return UserRecord{}, ErrEngineNotReady
	}

	record, err := e.flows.ResolveAccount(ctx, identifier)
	if err != nil {
		return UserRecord{}, e.mapFlowError(err)
	}
	return record, nil
}

// ReconcileAccount applies at most one corrective pass to an inconsistent
// account record: repairing a missing password credential when needsPassword
// is set, or syncing the email-validated flag from group membership. The
// returned bool reports whether anything was fixed.
func (e *Engine) ReconcileAccount(ctx context.Context, record UserRecord, needsPassword bool) (UserRecord, bool, error) {
	if e == nil || !e.flows.Initialized() {
		return record, false, ErrEngineNotReady
	}

	fixed, applied, err := e.flows.Reconcile(ctx, record, needsPassword)
	if err != nil {
		return record, false, e.mapFlowError(err)
	}
	return fixed, applied, nil
}
