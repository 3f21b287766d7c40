package idx

import "time"

// Authenticator identifies a verification method the provider exposes for an
// identified account.
type Authenticator string

const (
	AuthenticatorEmail    Authenticator = "email"
	AuthenticatorPassword Authenticator = "password"
)

// InteractResponse starts a protocol interaction.
type InteractResponse struct {
	InteractionHandle string `json:"interaction_handle"`
}

// IntrospectResponse exchanges an interaction handle for a state handle plus
// the set of next actions the provider will accept.
type IntrospectResponse struct {
	StateHandle string    `json:"state_handle"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remediation []string  `json:"remediation"`
}

// IdentifyResponse reports which authenticators the identified account can
// use. The provider returns a populated response even for unknown
// identifiers so account existence is not observable from the shape alone.
type IdentifyResponse struct {
	StateHandle    string          `json:"state_handle"`
	ExpiresAt      time.Time       `json:"expires_at"`
	Authenticators []Authenticator `json:"authenticators"`
	Remediation    []string        `json:"remediation"`
}

// ChallengeResponse acknowledges that a challenge was issued. For email
// challenges the passcode has been dispatched out-of-band by the provider.
type ChallengeResponse struct {
	StateHandle     string    `json:"state_handle"`
	ExpiresAt       time.Time `json:"expires_at"`
	CodeLength      int       `json:"code_length,omitempty"`
	ChallengeExpiry time.Time `json:"challenge_expiry,omitempty"`
}

// AnswerResponse reports the outcome of a challenge answer. Completed is true
// only when the interaction has reached terminal success and a session token
// was minted.
type AnswerResponse struct {
	StateHandle  string    `json:"state_handle"`
	ExpiresAt    time.Time `json:"expires_at"`
	Completed    bool      `json:"completed"`
	SessionToken string    `json:"session_token,omitempty"`
	Remediation  []string  `json:"remediation"`
}

// EnrollResponse acknowledges a new-account enrollment step.
type EnrollResponse struct {
	StateHandle string    `json:"state_handle"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remediation []string  `json:"remediation"`
}

// RecoverResponse switches the interaction into credential recovery.
type RecoverResponse struct {
	StateHandle string    `json:"state_handle"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remediation []string  `json:"remediation"`
}

// SessionResponse carries a provider session token and its expiry.
type SessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EnrollProfile is the minimal profile sent with a new-account enrollment.
type EnrollProfile struct {
	Email string `json:"email"`
}

type apiError struct {
	Code    string `json:"error_code"`
	Summary string `json:"error_summary"`
}
