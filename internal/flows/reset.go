package flows

import "context"

// ResetRequestResult reports a password reset request. The observable shape
// is the same whether or not an account exists.
type ResetRequestResult struct {
	Requested  bool
	Reconciled bool
}

// ResetSession is what a validated recovery token exchanges into.
type ResetSession struct {
	StateToken string
	UserID     string
	Email      string
}

// ResetCompleteResult reports a completed credential reset.
type ResetCompleteResult struct {
	Step         Step
	SessionToken string
	UserID       string
	Email        string
}

// ResetMetrics carries metric IDs needed by the reset flows.
type ResetMetrics struct {
	Requested   int
	Completed   int
	Expired     int
	RateLimited int
	Reconciled  int
}

// ResetEvents carries audit event names used by the reset flows.
type ResetEvents struct {
	Requested   string
	Completed   string
	Expired     string
	RateLimited string
}

// ResetErrors carries host-level sentinel errors used by the reset flows.
type ResetErrors struct {
	NotReady             error
	ExpiredChallenge     error
	ReconciliationFailed error
	Unavailable          error
}

// ResetDeps captures password reset dependencies.
type ResetDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckResetRate func(ctx context.Context, identifier, ip string) error

	ResolveAccount func(context.Context, string) (AccountRecord, error)
	Reconcile      func(ctx context.Context, record AccountRecord, needsPassword bool) (AccountRecord, bool, error)

	IssueResetLink func(context.Context, string) (string, error)
	SendEmail      func(ctx context.Context, variant EmailVariant, to, link string) error

	ValidateRecoveryToken func(context.Context, string) (ResetSession, error)
	SetPassword           func(ctx context.Context, stateToken, newPassword string) (string, error)

	Hooks   Hooks
	Metrics ResetMetrics
	Events  ResetEvents
	Errors  ResetErrors
}

// RunRequestReset handles the password reset entry. Accounts that lack a
// password credential get exactly one reconciliation pass to repair the
// record before the reset link is issued; the email is then sent as for any
// other account. Unknown identifiers produce the same outcome with no email.
func RunRequestReset(ctx context.Context, identifier string, deps ResetDeps) (*ResetRequestResult, error) {
	deps.Hooks.fillDefaults()
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ResolveAccount == nil || deps.IssueResetLink == nil {
		return nil, deps.Errors.NotReady
	}

	if deps.CheckResetRate != nil {
		ip := deps.ClientIPFromContext(ctx)
		if err := deps.CheckResetRate(ctx, identifier, ip); err != nil {
			deps.Hooks.MetricInc(deps.Metrics.RateLimited)
			deps.Hooks.EmitAudit(ctx, deps.Events.RateLimited, false, "", err, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, err
		}
	}

	record, err := deps.ResolveAccount(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if record.State == StateNonExistent {
		deps.Hooks.EmitAudit(ctx, deps.Events.Requested, true, "", nil, func() map[string]string {
			return map[string]string{"identifier": identifier, "account": "none"}
		})
		return &ResetRequestResult{Requested: true}, nil
	}

	reconciled := false
	if !record.Authenticators.Password {
		if deps.Reconcile == nil {
			return nil, deps.Errors.ReconciliationFailed
		}
		record, reconciled, err = deps.Reconcile(ctx, record, true)
		if err != nil {
			return nil, err
		}
		if reconciled {
			deps.Hooks.MetricInc(deps.Metrics.Reconciled)
		}
	}

	link, err := deps.IssueResetLink(ctx, record.UserID)
	if err != nil {
		return nil, err
	}
	if deps.SendEmail != nil {
		if err := deps.SendEmail(ctx, VariantReset, record.Email, link); err != nil {
			deps.Hooks.Warn("reset: email dispatch failed", "user", record.UserID, "err", err)
		}
	}

	deps.Hooks.MetricInc(deps.Metrics.Requested)
	deps.Hooks.EmitAudit(ctx, deps.Events.Requested, true, record.UserID, nil, nil)
	return &ResetRequestResult{Requested: true, Reconciled: reconciled}, nil
}

// RunCompleteReset consumes a recovery token and sets the new credential.
// A stale or already-consumed token routes to restart, never to retry.
func RunCompleteReset(ctx context.Context, recoveryToken, newPassword string, deps ResetDeps) (*ResetCompleteResult, error) {
	deps.Hooks.fillDefaults()
	if deps.ValidateRecoveryToken == nil || deps.SetPassword == nil {
		return nil, deps.Errors.NotReady
	}

	resetSession, err := deps.ValidateRecoveryToken(ctx, recoveryToken)
	if err != nil {
		if isErr(err, deps.Errors.ExpiredChallenge) {
			deps.Hooks.MetricInc(deps.Metrics.Expired)
			deps.Hooks.EmitAudit(ctx, deps.Events.Expired, false, "", deps.Errors.ExpiredChallenge, nil)
			return nil, deps.Errors.ExpiredChallenge
		}
		return nil, err
	}

	sessionToken, err := deps.SetPassword(ctx, resetSession.StateToken, newPassword)
	if err != nil {
		return nil, err
	}

	deps.Hooks.MetricInc(deps.Metrics.Completed)
	deps.Hooks.EmitAudit(ctx, deps.Events.Completed, true, resetSession.UserID, nil, nil)
	return &ResetCompleteResult{
		Step:         StepComplete,
		SessionToken: sessionToken,
		UserID:       resetSession.UserID,
		Email:        resetSession.Email,
	}, nil
}
