package flows

import (
	"context"
	"time"
)

// EmailVariant selects which recovery email an existing account receives
// when its identifier is submitted to the registration entry.
type EmailVariant uint8

const (
	// VariantActivation carries an activation token for accounts that
	// never set a credential.
	VariantActivation EmailVariant = iota

	// VariantReset carries a password reset token.
	VariantReset

	// VariantVerification re-sends the email verification link.
	VariantVerification
)

func (v EmailVariant) String() string {
	switch v {
	case VariantActivation:
		return "activation"
	case VariantReset:
		return "reset"
	case VariantVerification:
		return "verification"
	}
	return "unknown"
}

// RegisterResult is the flow-local registration response shape. The shape is
// identical whether the identifier was new or already registered; Rerouted
// is for the engine's bookkeeping only and must never reach the client.
type RegisterResult struct {
	Step         Step
	StateHandle  string
	HandleExpiry int64
	Email        string
	Rerouted     bool
	Variant      EmailVariant
}

// RegisterMetrics carries metric IDs needed by the registration flow.
type RegisterMetrics struct {
	Enrolled    int
	Rerouted    int
	RateLimited int
	Failure     int
}

// RegisterEvents carries audit event names used by the registration flow.
type RegisterEvents struct {
	Enrolled    string
	Rerouted    string
	RateLimited string
	Failure     string
}

// RegisterErrors carries host-level sentinel errors used by registration.
type RegisterErrors struct {
	NotReady             error
	UserExists           error
	ReconciliationFailed error
	Unavailable          error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	DecoyChallengeTTL time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	CheckRegisterRate func(ctx context.Context, identifier, ip string) error

	ResolveAccount func(context.Context, string) (AccountRecord, error)
	Reconcile      func(ctx context.Context, record AccountRecord, needsPassword bool) (AccountRecord, bool, error)

	BeginInteraction func(context.Context) (Interaction, error)
	Enroll           func(ctx context.Context, stateHandle, email string) error
	ChallengeEmail   func(ctx context.Context, stateHandle string) (int64, error)

	SavePasscodeView func(ctx context.Context, stateHandle string, expiresAt int64) error
	NewDecoyHandle   func() string

	IssueActivationLink   func(context.Context, string) (string, error)
	IssueResetLink        func(context.Context, string) (string, error)
	IssueVerificationLink func(context.Context, string) (string, error)
	SendEmail             func(ctx context.Context, variant EmailVariant, to, link string) error

	Hooks   Hooks
	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// RunRegister executes one registration entry. A genuinely new identifier is
// enrolled and challenged by email passcode. An identifier that already has
// an account, detected either up front or via a mid-enrollment conflict, is
// rerouted onto the recovery email variant its lifecycle state calls for.
// Both paths produce the same observable outcome shape.
func RunRegister(ctx context.Context, email string, deps RegisterDeps) (*RegisterResult, error) {
	deps.Hooks.fillDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ResolveAccount == nil || deps.BeginInteraction == nil || deps.Enroll == nil || deps.ChallengeEmail == nil {
		return nil, deps.Errors.NotReady
	}

	if deps.CheckRegisterRate != nil {
		ip := deps.ClientIPFromContext(ctx)
		if err := deps.CheckRegisterRate(ctx, email, ip); err != nil {
			deps.Hooks.MetricInc(deps.Metrics.RateLimited)
			deps.Hooks.EmitAudit(ctx, deps.Events.RateLimited, false, "", err, func() map[string]string {
				return map[string]string{"identifier": email}
			})
			return nil, err
		}
	}

	record, err := deps.ResolveAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if record.State != StateNonExistent {
		return rerouteExisting(ctx, record, deps)
	}

	interaction, err := deps.BeginInteraction(ctx)
	if err != nil {
		return nil, err
	}
	if err := deps.Enroll(ctx, interaction.StateHandle, email); err != nil {
		if isErr(err, deps.Errors.UserExists) {
			// The account appeared between resolution and enrollment,
			// or the account API and the provider disagree. Treat the
			// identifier as existing and self-heal.
			record, rerr := deps.ResolveAccount(ctx, email)
			if rerr != nil {
				return nil, rerr
			}
			if record.State == StateNonExistent {
				return nil, deps.Errors.Unavailable
			}
			return rerouteExisting(ctx, record, deps)
		}
		return nil, err
	}

	challengeExpiry, err := deps.ChallengeEmail(ctx, interaction.StateHandle)
	if err != nil {
		return nil, err
	}
	if deps.SavePasscodeView != nil {
		if err := deps.SavePasscodeView(ctx, interaction.StateHandle, challengeExpiry); err != nil {
			return nil, err
		}
	}

	deps.Hooks.MetricInc(deps.Metrics.Enrolled)
	deps.Hooks.EmitAudit(ctx, deps.Events.Enrolled, true, "", nil, func() map[string]string {
		return map[string]string{"identifier": email}
	})
	return &RegisterResult{
		Step:         StepChallengeEmail,
		StateHandle:  interaction.StateHandle,
		HandleExpiry: interaction.ExpiresAt,
		Email:        email,
	}, nil
}

// rerouteExisting sends the recovery email variant matching the account's
// lifecycle state, then fabricates a decoy challenge so the response is
// indistinguishable from a fresh enrollment.
func rerouteExisting(ctx context.Context, record AccountRecord, deps RegisterDeps) (*RegisterResult, error) {
	if deps.Reconcile != nil {
		fixed, _, err := deps.Reconcile(ctx, record, false)
		if err == nil {
			record = fixed
		} else {
			deps.Hooks.Warn("register: reconcile failed", "user", record.UserID, "err", err)
		}
	}

	variant, err := variantForState(record, deps)
	if err != nil {
		return nil, err
	}

	link, err := issueLink(ctx, variant, record.UserID, deps)
	if err != nil {
		deps.Hooks.MetricInc(deps.Metrics.Failure)
		deps.Hooks.EmitAudit(ctx, deps.Events.Failure, false, record.UserID, err, func() map[string]string {
			return map[string]string{"variant": variant.String()}
		})
		return nil, err
	}
	if deps.SendEmail != nil {
		if err := deps.SendEmail(ctx, variant, record.Email, link); err != nil {
			// Delivery is fire-and-forget from the user's point of
			// view; the outcome shape does not change.
			deps.Hooks.Warn("register: email dispatch failed", "user", record.UserID, "variant", variant.String(), "err", err)
		}
	}

	if deps.NewDecoyHandle == nil {
		return nil, deps.Errors.NotReady
	}
	ttl := deps.DecoyChallengeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	handle := decoyHandlePrefix + deps.NewDecoyHandle()
	expiry := deps.Now().Add(ttl).Unix()
	if deps.SavePasscodeView != nil {
		if err := deps.SavePasscodeView(ctx, handle, expiry); err != nil {
			return nil, err
		}
	}

	deps.Hooks.MetricInc(deps.Metrics.Rerouted)
	deps.Hooks.EmitAudit(ctx, deps.Events.Rerouted, true, record.UserID, nil, func() map[string]string {
		return map[string]string{"variant": variant.String(), "state": record.State.String()}
	})
	return &RegisterResult{
		Step:         StepChallengeEmail,
		StateHandle:  handle,
		HandleExpiry: expiry,
		Email:        record.Email,
		Rerouted:     true,
		Variant:      variant,
	}, nil
}

func variantForState(record AccountRecord, deps RegisterDeps) (EmailVariant, error) {
	switch record.State {
	case StateStaged, StateProvisioned:
		return VariantActivation, nil
	case StateRecovery, StatePasswordExpired:
		return VariantReset, nil
	case StateActive, StateSocial:
		if !record.EmailValidated {
			return VariantVerification, nil
		}
		return VariantReset, nil
	case StateNonExistent:
		return 0, deps.Errors.Unavailable
	}
	return 0, deps.Errors.Unavailable
}

func issueLink(ctx context.Context, variant EmailVariant, userID string, deps RegisterDeps) (string, error) {
	switch variant {
	case VariantActivation:
		if deps.IssueActivationLink == nil {
			return "", deps.Errors.NotReady
		}
		return deps.IssueActivationLink(ctx, userID)
	case VariantReset:
		if deps.IssueResetLink == nil {
			return "", deps.Errors.NotReady
		}
		return deps.IssueResetLink(ctx, userID)
	case VariantVerification:
		if deps.IssueVerificationLink == nil {
			return "", deps.Errors.NotReady
		}
		return deps.IssueVerificationLink(ctx, userID)
	}
	return "", deps.Errors.Unavailable
}
