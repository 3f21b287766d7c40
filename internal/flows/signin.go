package flows

import (
	"context"
	"time"
)

// Interaction is a freshly opened provider interaction, ready for identify.
type Interaction struct {
	StateHandle string
	ExpiresAt   int64
}

// AnswerOutcome is the provider's response to a challenge answer.
type AnswerOutcome struct {
	Completed    bool
	SessionToken string
}

// SignInResult is the flow-local sign-in response shape. StateHandle is
// empty for decoy challenges issued against identifiers with no account.
type SignInResult struct {
	Step         Step
	StateHandle  string
	HandleExpiry int64
	SessionToken string
	UserID       string
	Email        string
	Decoy        bool
}

// SignInMetrics carries metric IDs needed by the sign-in flow.
type SignInMetrics struct {
	Success         int
	Failure         int
	RateLimited     int
	ChallengeIssued int
	ResetRequired   int
}

// SignInEvents carries audit event names used by the sign-in flow.
type SignInEvents struct {
	Success         string
	Failure         string
	RateLimited     string
	ChallengeIssued string
	ResetRequired   string
}

// SignInErrors carries host-level sentinel errors used by the sign-in flow.
type SignInErrors struct {
	NotReady          error
	InvalidCredential error
	Unavailable       error
}

// SignInDeps captures sign-in dependencies.
type SignInDeps struct {
	DecoyChallengeTTL time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	// CheckSignInRate counts the attempt and fails when the window limit
	// is reached. The wired implementation carries retry-after inside
	// the returned error.
	CheckSignInRate func(ctx context.Context, identifier, ip string) error
	ResetSignInRate func(ctx context.Context, identifier, ip string) error

	ResolveAccount func(context.Context, string) (AccountRecord, error)

	BeginInteraction  func(context.Context) (Interaction, error)
	Identify          func(ctx context.Context, stateHandle, identifier string) (AuthenticatorSet, error)
	ChallengePassword func(ctx context.Context, stateHandle string) error
	ChallengeEmail    func(ctx context.Context, stateHandle string) (int64, error)
	AnswerChallenge   func(ctx context.Context, stateHandle, answer string) (AnswerOutcome, error)

	// StartRecovery switches the provider interaction into credential
	// recovery and sends the reset link to the account's email.
	StartRecovery func(ctx context.Context, stateHandle, userID, email string) error

	// SavePasscodeView records the local attempt-tracking view of an
	// issued email challenge.
	SavePasscodeView func(ctx context.Context, stateHandle string, expiresAt int64) error

	// NewDecoyHandle returns a random suffix for decoy challenge
	// handles.
	NewDecoyHandle func() string

	Hooks   Hooks
	Metrics SignInMetrics
	Events  SignInEvents
	Errors  SignInErrors
}

// RunSignIn executes one sign-in entry. With a password it drives the
// password challenge to completion; without one it issues an email passcode
// challenge. Identifiers with no account never change the observable
// outcome shape: password submissions fail with the uniform credential
// error, passcode entries receive a decoy challenge that cannot verify.
func RunSignIn(ctx context.Context, identifier, password string, deps SignInDeps) (*SignInResult, error) {
	deps.Hooks.fillDefaults()
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.ResolveAccount == nil || deps.BeginInteraction == nil || deps.Identify == nil || deps.AnswerChallenge == nil {
		return nil, deps.Errors.NotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckSignInRate != nil {
		if err := deps.CheckSignInRate(ctx, identifier, ip); err != nil {
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

	if password == "" {
		return runPasscodeEntry(ctx, identifier, record, deps)
	}
	return runPasswordEntry(ctx, identifier, password, ip, record, deps)
}

func runPasscodeEntry(ctx context.Context, identifier string, record AccountRecord, deps SignInDeps) (*SignInResult, error) {
	if record.State == StateNonExistent {
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
		deps.Hooks.EmitAudit(ctx, deps.Events.ChallengeIssued, true, "", nil, func() map[string]string {
			return map[string]string{"identifier": identifier, "decoy": "true"}
		})
		return &SignInResult{
			Step:         StepChallengeEmail,
			StateHandle:  handle,
			HandleExpiry: expiry,
			Email:        identifier,
			Decoy:        true,
		}, nil
	}

	interaction, err := deps.BeginInteraction(ctx)
	if err != nil {
		return nil, err
	}
	exposed, err := deps.Identify(ctx, interaction.StateHandle, identifier)
	if err != nil {
		return nil, err
	}
	// The identify response is authoritative for what can be challenged;
	// the legacy record only chose the entry path.
	if !exposed.Email {
		deps.Hooks.Warn("sign-in: identify exposed no email authenticator", "identifier", identifier)
		return nil, deps.Errors.Unavailable
	}
	if deps.ChallengeEmail == nil {
		return nil, deps.Errors.NotReady
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

	deps.Hooks.MetricInc(deps.Metrics.ChallengeIssued)
	deps.Hooks.EmitAudit(ctx, deps.Events.ChallengeIssued, true, record.UserID, nil, nil)
	return &SignInResult{
		Step:         StepChallengeEmail,
		StateHandle:  interaction.StateHandle,
		HandleExpiry: interaction.ExpiresAt,
		UserID:       record.UserID,
		Email:        record.Email,
	}, nil
}

func runPasswordEntry(ctx context.Context, identifier, password, ip string, record AccountRecord, deps SignInDeps) (*SignInResult, error) {
	// Accounts without a password credential cannot match any submitted
	// password. The outcome is indistinguishable from a wrong password.
	if record.State == StateNonExistent || !record.Authenticators.Password {
		deps.Hooks.MetricInc(deps.Metrics.Failure)
		deps.Hooks.EmitAudit(ctx, deps.Events.Failure, false, record.UserID, deps.Errors.InvalidCredential, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "no_password_authenticator"}
		})
		return nil, deps.Errors.InvalidCredential
	}

	interaction, err := deps.BeginInteraction(ctx)
	if err != nil {
		return nil, err
	}
	exposed, err := deps.Identify(ctx, interaction.StateHandle, identifier)
	if err != nil {
		return nil, err
	}
	// The legacy record claimed a password but the identify response is
	// authoritative. A divergent provider still fails uniformly.
	if !exposed.Password {
		deps.Hooks.MetricInc(deps.Metrics.Failure)
		deps.Hooks.EmitAudit(ctx, deps.Events.Failure, false, record.UserID, deps.Errors.InvalidCredential, func() map[string]string {
			return map[string]string{"identifier": identifier, "reason": "no_password_authenticator"}
		})
		return nil, deps.Errors.InvalidCredential
	}
	if deps.ChallengePassword == nil {
		return nil, deps.Errors.NotReady
	}
	if err := deps.ChallengePassword(ctx, interaction.StateHandle); err != nil {
		return nil, err
	}

	outcome, err := deps.AnswerChallenge(ctx, interaction.StateHandle, password)
	if err != nil {
		if isErr(err, deps.Errors.InvalidCredential) {
			deps.Hooks.MetricInc(deps.Metrics.Failure)
			deps.Hooks.EmitAudit(ctx, deps.Events.Failure, false, record.UserID, deps.Errors.InvalidCredential, func() map[string]string {
				return map[string]string{"identifier": identifier, "reason": "wrong_password"}
			})
			return nil, deps.Errors.InvalidCredential
		}
		return nil, err
	}

	if deps.ResetSignInRate != nil {
		if err := deps.ResetSignInRate(ctx, identifier, ip); err != nil {
			deps.Hooks.Warn("sign-in: rate reset failed", "identifier", identifier, "err", err)
		}
	}

	if record.needsCredentialReset() {
		if deps.StartRecovery != nil {
			if err := deps.StartRecovery(ctx, interaction.StateHandle, record.UserID, record.Email); err != nil {
				return nil, err
			}
		}
		deps.Hooks.MetricInc(deps.Metrics.ResetRequired)
		deps.Hooks.EmitAudit(ctx, deps.Events.ResetRequired, true, record.UserID, nil, nil)
		return &SignInResult{
			Step:         StepRecover,
			StateHandle:  interaction.StateHandle,
			HandleExpiry: interaction.ExpiresAt,
			UserID:       record.UserID,
			Email:        record.Email,
		}, nil
	}

	if !outcome.Completed {
		// The provider wants a second factor before completing, which
		// for this tenant is always the email passcode.
		if deps.ChallengeEmail == nil {
			return nil, deps.Errors.NotReady
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
		deps.Hooks.MetricInc(deps.Metrics.ChallengeIssued)
		deps.Hooks.EmitAudit(ctx, deps.Events.ChallengeIssued, true, record.UserID, nil, nil)
		return &SignInResult{
			Step:         StepChallengeEmail,
			StateHandle:  interaction.StateHandle,
			HandleExpiry: interaction.ExpiresAt,
			UserID:       record.UserID,
			Email:        record.Email,
		}, nil
	}

	deps.Hooks.MetricInc(deps.Metrics.Success)
	deps.Hooks.EmitAudit(ctx, deps.Events.Success, true, record.UserID, nil, nil)
	return &SignInResult{
		Step:         StepComplete,
		SessionToken: outcome.SessionToken,
		UserID:       record.UserID,
		Email:        record.Email,
	}, nil
}
