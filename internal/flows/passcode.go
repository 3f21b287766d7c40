package flows

import (
	"context"
	"strings"
	"time"
)

// decoyHandlePrefix marks locally generated handles for challenges issued
// against identifiers with no account. Provider handles never start with
// this prefix.
const decoyHandlePrefix = "00."

// IsDecoyHandle reports whether a state handle belongs to a decoy challenge.
func IsDecoyHandle(handle string) bool {
	return strings.HasPrefix(handle, decoyHandlePrefix)
}

// VerifyResult is the flow-local passcode verification response shape.
type VerifyResult struct {
	Step              Step
	StateHandle       string
	SessionToken      string
	UserID            string
	Email             string
	AttemptsRemaining int
}

// ResendResult reports the replacement challenge issued by a resend.
type ResendResult struct {
	ChallengeExpiry int64
}

// PasscodeMetrics carries metric IDs needed by passcode flows.
type PasscodeMetrics struct {
	Verified      int
	Incorrect     int
	Expired       int
	Resent        int
	ResendLimited int
}

// PasscodeEvents carries audit event names used by passcode flows.
type PasscodeEvents struct {
	Verified      string
	Incorrect     string
	Expired       string
	Resent        string
	ResendLimited string
}

// PasscodeErrors carries host-level sentinel errors used by passcode flows.
type PasscodeErrors struct {
	NotReady          error
	InvalidCredential error
	ExpiredChallenge  error
	Unavailable       error
}

// PasscodeDeps captures passcode verification and resend dependencies.
type PasscodeDeps struct {
	DecoyChallengeTTL time.Duration

	ClientIPFromContext func(context.Context) string
	Now                 func() time.Time

	ResolveAccount  func(context.Context, string) (AccountRecord, error)
	AnswerChallenge func(ctx context.Context, stateHandle, code string) (AnswerOutcome, error)
	ChallengeEmail  func(ctx context.Context, stateHandle string) (int64, error)

	// StartRecovery switches the provider interaction into credential
	// recovery and sends the reset link to the account's email.
	StartRecovery func(ctx context.Context, stateHandle, userID, email string) error

	// RegisterFailure counts one wrong submission against the local
	// challenge view and returns the attempts remaining. The wired
	// implementation maps exhausted or missing views to the
	// ExpiredChallenge sentinel.
	RegisterFailure func(ctx context.Context, stateHandle string) (int, error)

	// CheckPasscodeView confirms a live local view exists for the
	// handle. Exhaustion deletes the view, so a missing view means the
	// challenge is dead no matter what code is submitted.
	CheckPasscodeView  func(ctx context.Context, stateHandle string) error
	DeletePasscodeView func(ctx context.Context, stateHandle string) error
	SavePasscodeView   func(ctx context.Context, stateHandle string, expiresAt int64) error

	CheckResendRate func(ctx context.Context, identifier string) error
	ResetSignInRate func(ctx context.Context, identifier, ip string) error

	Hooks   Hooks
	Metrics PasscodeMetrics
	Events  PasscodeEvents
	Errors  PasscodeErrors
}

// RunVerifyPasscode validates a submitted passcode against the pending
// challenge. A wrong code consumes one attempt; once attempts are exhausted
// the challenge is expired and the only valid continuation is restarting
// from the sign-in entry, even with the correct code.
func RunVerifyPasscode(ctx context.Context, identifier, stateHandle, code string, deps PasscodeDeps) (*VerifyResult, error) {
	deps.Hooks.fillDefaults()
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.AnswerChallenge == nil || deps.RegisterFailure == nil {
		return nil, deps.Errors.NotReady
	}

	if IsDecoyHandle(stateHandle) {
		// Decoy challenges track attempts exactly like real ones but the
		// outcome can never be valid.
		return verifyIncorrect(ctx, identifier, stateHandle, "", deps)
	}

	// The provider keeps accepting answers for the interaction after the
	// local attempt budget is spent, so the view gates every submission,
	// correct code included.
	if deps.CheckPasscodeView != nil {
		if err := deps.CheckPasscodeView(ctx, stateHandle); err != nil {
			if isErr(err, deps.Errors.ExpiredChallenge) {
				deps.Hooks.MetricInc(deps.Metrics.Expired)
				deps.Hooks.EmitAudit(ctx, deps.Events.Expired, false, "", deps.Errors.ExpiredChallenge, func() map[string]string {
					return map[string]string{"identifier": identifier}
				})
				return nil, deps.Errors.ExpiredChallenge
			}
			return nil, err
		}
	}

	outcome, err := deps.AnswerChallenge(ctx, stateHandle, code)
	if err != nil {
		if isErr(err, deps.Errors.InvalidCredential) {
			return verifyIncorrect(ctx, identifier, stateHandle, "", deps)
		}
		if isErr(err, deps.Errors.ExpiredChallenge) {
			deps.Hooks.MetricInc(deps.Metrics.Expired)
			deps.Hooks.EmitAudit(ctx, deps.Events.Expired, false, "", deps.Errors.ExpiredChallenge, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, deps.Errors.ExpiredChallenge
		}
		return nil, err
	}

	if deps.DeletePasscodeView != nil {
		if err := deps.DeletePasscodeView(ctx, stateHandle); err != nil {
			deps.Hooks.Warn("passcode: view cleanup failed", "err", err)
		}
	}
	if deps.ResetSignInRate != nil {
		ip := deps.ClientIPFromContext(ctx)
		if err := deps.ResetSignInRate(ctx, identifier, ip); err != nil {
			deps.Hooks.Warn("passcode: rate reset failed", "identifier", identifier, "err", err)
		}
	}

	var record AccountRecord
	if deps.ResolveAccount != nil {
		record, err = deps.ResolveAccount(ctx, identifier)
		if err != nil {
			deps.Hooks.Warn("passcode: post-verify resolve failed", "identifier", identifier, "err", err)
			record = AccountRecord{Email: identifier}
		}
	}

	deps.Hooks.MetricInc(deps.Metrics.Verified)
	deps.Hooks.EmitAudit(ctx, deps.Events.Verified, true, record.UserID, nil, nil)

	if record.needsCredentialReset() {
		if deps.StartRecovery != nil {
			if err := deps.StartRecovery(ctx, stateHandle, record.UserID, record.Email); err != nil {
				return nil, err
			}
		}
		return &VerifyResult{
			Step:        StepRecover,
			StateHandle: stateHandle,
			UserID:      record.UserID,
			Email:       record.Email,
		}, nil
	}
	return &VerifyResult{
		Step:         StepComplete,
		SessionToken: outcome.SessionToken,
		UserID:       record.UserID,
		Email:        record.Email,
	}, nil
}

func verifyIncorrect(ctx context.Context, identifier, stateHandle, userID string, d PasscodeDeps) (*VerifyResult, error) {
	remaining, err := d.RegisterFailure(ctx, stateHandle)
	if err != nil {
		if isErr(err, d.Errors.ExpiredChallenge) {
			d.Hooks.MetricInc(d.Metrics.Expired)
			d.Hooks.EmitAudit(ctx, d.Events.Expired, false, userID, d.Errors.ExpiredChallenge, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, d.Errors.ExpiredChallenge
		}
		return nil, err
	}
	d.Hooks.MetricInc(d.Metrics.Incorrect)
	d.Hooks.EmitAudit(ctx, d.Events.Incorrect, false, userID, d.Errors.InvalidCredential, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return &VerifyResult{
		Step:              StepChallengeEmail,
		StateHandle:       stateHandle,
		AttemptsRemaining: remaining,
	}, d.Errors.InvalidCredential
}

// RunResendPasscode issues a replacement challenge for a pending email
// verification. The previous code stops being valid; resends are gated by a
// cooldown.
func RunResendPasscode(ctx context.Context, identifier, stateHandle string, deps PasscodeDeps) (*ResendResult, error) {
	deps.Hooks.fillDefaults()
	if deps.SavePasscodeView == nil {
		return nil, deps.Errors.NotReady
	}

	if deps.CheckResendRate != nil {
		if err := deps.CheckResendRate(ctx, identifier); err != nil {
			deps.Hooks.MetricInc(deps.Metrics.ResendLimited)
			deps.Hooks.EmitAudit(ctx, deps.Events.ResendLimited, false, "", err, func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return nil, err
		}
	}

	if IsDecoyHandle(stateHandle) {
		now := time.Now
		if deps.Now != nil {
			now = deps.Now
		}
		ttl := deps.DecoyChallengeTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		expiry := now().Add(ttl).Unix()
		if err := deps.SavePasscodeView(ctx, stateHandle, expiry); err != nil {
			return nil, err
		}
		deps.Hooks.EmitAudit(ctx, deps.Events.Resent, true, "", nil, func() map[string]string {
			return map[string]string{"identifier": identifier, "decoy": "true"}
		})
		return &ResendResult{ChallengeExpiry: expiry}, nil
	}

	if deps.ChallengeEmail == nil {
		return nil, deps.Errors.NotReady
	}
	expiry, err := deps.ChallengeEmail(ctx, stateHandle)
	if err != nil {
		if isErr(err, deps.Errors.ExpiredChallenge) {
			deps.Hooks.MetricInc(deps.Metrics.Expired)
			return nil, deps.Errors.ExpiredChallenge
		}
		return nil, err
	}
	if err := deps.SavePasscodeView(ctx, stateHandle, expiry); err != nil {
		return nil, err
	}

	deps.Hooks.MetricInc(deps.Metrics.Resent)
	deps.Hooks.EmitAudit(ctx, deps.Events.Resent, true, "", nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})
	return &ResendResult{ChallengeExpiry: expiry}, nil
}
