package gateway

import (
	"context"
	"time"

	"github.com/guardian/gateway-sub002/idapi"
	"github.com/guardian/gateway-sub002/idx"
	"github.com/guardian/gateway-sub002/internal/flows"
	"github.com/guardian/gateway-sub002/session"
)

// Step identifies the next user-visible state of a flow.
type Step = flows.Step

const (
	StepStart             = flows.StepStart
	StepIdentify          = flows.StepIdentify
	StepChallengePassword = flows.StepChallengePassword
	StepChallengeEmail    = flows.StepChallengeEmail
	StepEnrollNew         = flows.StepEnrollNew
	StepRecover           = flows.StepRecover
	StepComplete          = flows.StepComplete
	StepFailed            = flows.StepFailed
)

// AccountLifecycleState is the resolved lifecycle state of an account.
type AccountLifecycleState = flows.AccountState

const (
	AccountNonExistent     = flows.StateNonExistent
	AccountStaged          = flows.StateStaged
	AccountProvisioned     = flows.StateProvisioned
	AccountActive          = flows.StateActive
	AccountRecovery        = flows.StateRecovery
	AccountPasswordExpired = flows.StatePasswordExpired
	AccountSocial          = flows.StateSocial
)

// AuthenticatorSet records which authenticators an account can answer.
type AuthenticatorSet = flows.AuthenticatorSet

// UserRecord is the resolved view of an account.
type UserRecord = flows.AccountRecord

// IdentityClient is the step-based identity provider protocol surface the
// engine consumes. *idx.Client satisfies it; tests substitute fakes.
type IdentityClient interface {
	Interact(ctx context.Context) (*idx.InteractResponse, error)
	Introspect(ctx context.Context, interactionHandle string) (*idx.IntrospectResponse, error)
	Identify(ctx context.Context, stateHandle, identifier string) (*idx.IdentifyResponse, error)
	Challenge(ctx context.Context, stateHandle string, kind idx.Authenticator) (*idx.ChallengeResponse, error)
	ChallengeAnswer(ctx context.Context, stateHandle, answer string) (*idx.AnswerResponse, error)
	Enroll(ctx context.Context, stateHandle string, profile idx.EnrollProfile) (*idx.EnrollResponse, error)
	Recover(ctx context.Context, stateHandle string) (*idx.RecoverResponse, error)
	RefreshSession(ctx context.Context, sessionToken string) (*idx.SessionResponse, error)
	CloseSession(ctx context.Context, sessionToken string) error
}

// AccountClient is the legacy account API surface the engine consumes.
// *idapi.Client satisfies it.
type AccountClient interface {
	GetUser(ctx context.Context, identifier string) (*idapi.User, error)
	UpdateUser(ctx context.Context, userID string, update idapi.ProfileUpdate) (*idapi.User, error)
	ActivateUser(ctx context.Context, userID string) (*idapi.RecoveryToken, error)
	ForgotPassword(ctx context.Context, userID string) (*idapi.RecoveryToken, error)
	ValidateRecoveryToken(ctx context.Context, recoveryToken string) (*idapi.StateToken, error)
	ResetPassword(ctx context.Context, stateToken, newPassword string) (string, error)
	GetUserGroups(ctx context.Context, userID string) ([]idapi.Group, error)
}

// CSRFVerifier validates the per-form token. A mismatch is a hard rejection
// before any flow logic runs.
type CSRFVerifier interface {
	Verify(ctx context.Context, formToken string) error
}

// StepResult is the outcome of one engine operation: the next user-visible
// step, the replacement flow-state token for the client to hold, and, on
// completion, the session cookie bundle.
type StepResult struct {
	Step Step

	// FlowState is the encrypted token the presentation layer should set
	// as the flow-state cookie. Empty means the cookie should be
	// cleared.
	FlowState       string
	FlowStateExpiry time.Time

	// Cookies is non-nil only when Step is StepComplete.
	Cookies *session.CookieSet

	// AttemptsRemaining is set after an incorrect passcode submission.
	AttemptsRemaining int

	Email string
}
