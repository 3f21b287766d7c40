package flows

import "context"

// ReconcileMetrics carries metric IDs used by reconciliation.
type ReconcileMetrics struct {
	CredentialRepaired int
	FlagSynced         int
	ReconcileFailure   int
}

// ReconcileEvents carries audit event names used by reconciliation.
type ReconcileEvents struct {
	CredentialRepaired string
	FlagSynced         string
	ReconcileFailure   string
}

// ReconcileErrors carries host-level sentinel errors used by reconciliation.
type ReconcileErrors struct {
	ReconciliationFailed error
}

// ReconcileDeps captures the corrective actions reconciliation can take.
// The composite placeholder-credential sequence (recovery token issuance,
// validation, credential set) is wired as a single func by the engine.
type ReconcileDeps struct {
	ActivateUser             func(context.Context, string) error
	SetPlaceholderCredential func(context.Context, string) error
	InValidatedGroup         func(context.Context, string) (bool, error)
	SetEmailValidated        func(context.Context, string, bool) error

	Hooks   Hooks
	Metrics ReconcileMetrics
	Events  ReconcileEvents
	Errors  ReconcileErrors
}

// RunReconcile applies at most one corrective pass to an account whose state
// blocks the requested operation. needsPassword marks operations that cannot
// proceed without a password credential on the record. The returned bool
// reports whether any fix was applied; the caller must not invoke
// reconciliation again within the same request.
func RunReconcile(ctx context.Context, record AccountRecord, needsPassword bool, deps ReconcileDeps) (AccountRecord, bool, error) {
	deps.Hooks.fillDefaults()

	if needsPassword && !record.Authenticators.Password && record.State != StateNonExistent {
		if deps.ActivateUser == nil || deps.SetPlaceholderCredential == nil {
			return record, false, deps.Errors.ReconciliationFailed
		}

		if record.State == StateStaged {
			if err := deps.ActivateUser(ctx, record.UserID); err != nil {
				deps.Hooks.MetricInc(deps.Metrics.ReconcileFailure)
				deps.Hooks.EmitAudit(ctx, deps.Events.ReconcileFailure, false, record.UserID, err, func() map[string]string {
					return map[string]string{"stage": "activate"}
				})
				return record, false, deps.Errors.ReconciliationFailed
			}
			record.State = StateProvisioned
		}

		if err := deps.SetPlaceholderCredential(ctx, record.UserID); err != nil {
			deps.Hooks.MetricInc(deps.Metrics.ReconcileFailure)
			deps.Hooks.EmitAudit(ctx, deps.Events.ReconcileFailure, false, record.UserID, err, func() map[string]string {
				return map[string]string{"stage": "placeholder_credential"}
			})
			return record, false, deps.Errors.ReconciliationFailed
		}
		record.Authenticators.Password = true
		record.State = StateActive

		deps.Hooks.MetricInc(deps.Metrics.CredentialRepaired)
		deps.Hooks.EmitAudit(ctx, deps.Events.CredentialRepaired, true, record.UserID, nil, nil)
		return record, true, nil
	}

	if !record.EmailValidated && deps.InValidatedGroup != nil && record.State != StateNonExistent {
		inGroup, err := deps.InValidatedGroup(ctx, record.UserID)
		if err != nil {
			deps.Hooks.Warn("reconcile: group lookup failed", "user", record.UserID, "err", err)
			return record, false, nil
		}
		if inGroup {
			if deps.SetEmailValidated == nil {
				return record, false, deps.Errors.ReconciliationFailed
			}
			if err := deps.SetEmailValidated(ctx, record.UserID, true); err != nil {
				deps.Hooks.MetricInc(deps.Metrics.ReconcileFailure)
				deps.Hooks.EmitAudit(ctx, deps.Events.ReconcileFailure, false, record.UserID, err, func() map[string]string {
					return map[string]string{"stage": "flag_sync"}
				})
				return record, false, deps.Errors.ReconciliationFailed
			}
			record.EmailValidated = true
			deps.Hooks.MetricInc(deps.Metrics.FlagSynced)
			deps.Hooks.EmitAudit(ctx, deps.Events.FlagSynced, true, record.UserID, nil, nil)
			return record, true, nil
		}
	}

	return record, false, nil
}
