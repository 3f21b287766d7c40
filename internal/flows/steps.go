package flows

// Step identifies where a flow instance stands. The value is carried inside
// the encrypted flow-state token between requests, so existing values must
// never be renumbered.
type Step uint8

const (
	StepStart Step = iota
	StepIdentify
	StepChallengePassword
	StepChallengeEmail
	StepEnrollNew
	StepRecover
	StepComplete
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepIdentify:
		return "identify"
	case StepChallengePassword:
		return "challenge_password"
	case StepChallengeEmail:
		return "challenge_email"
	case StepEnrollNew:
		return "enroll_new"
	case StepRecover:
		return "recover"
	case StepComplete:
		return "complete"
	case StepFailed:
		return "failed"
	}
	return "unknown"
}

// AccountState is the resolved lifecycle state of an account. The set is
// closed: every orchestrator decision point switches exhaustively over it.
type AccountState uint8

const (
	// StateNonExistent means no record matches the identifier.
	StateNonExistent AccountState = iota

	// StateStaged means the record exists but activation never started.
	StateStaged

	// StateProvisioned means activation started but no credential was
	// ever set.
	StateProvisioned

	// StateActive is the normal fully-usable state.
	StateActive

	// StateRecovery means a credential reset is in progress.
	StateRecovery

	// StatePasswordExpired means the password must change before the
	// account is usable.
	StatePasswordExpired

	// StateSocial means the account was created by a social sign-in and
	// carries no password credential.
	StateSocial
)

func (s AccountState) String() string {
	switch s {
	case StateNonExistent:
		return "non_existent"
	case StateStaged:
		return "staged"
	case StateProvisioned:
		return "provisioned"
	case StateActive:
		return "active"
	case StateRecovery:
		return "recovery"
	case StatePasswordExpired:
		return "password_expired"
	case StateSocial:
		return "social"
	}
	return "unknown"
}

// AuthenticatorSet records which authenticators an account can answer.
type AuthenticatorSet struct {
	Email    bool
	Password bool
}

// AccountRecord is the flow-local view of a resolved account.
type AccountRecord struct {
	UserID         string
	Email          string
	State          AccountState
	Authenticators AuthenticatorSet
	EmailValidated bool
}

// needsCredentialReset reports whether a successful verification must route
// to a forced credential reset instead of completing.
func (r AccountRecord) needsCredentialReset() bool {
	switch r.State {
	case StateRecovery, StatePasswordExpired:
		return true
	case StateNonExistent, StateStaged, StateProvisioned, StateActive, StateSocial:
		return false
	}
	return false
}
