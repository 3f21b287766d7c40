package idapi

// UserStatus is the provider's lifecycle status string for a user record.
type UserStatus string

const (
	StatusStaged          UserStatus = "STAGED"
	StatusProvisioned     UserStatus = "PROVISIONED"
	StatusActive          UserStatus = "ACTIVE"
	StatusRecovery        UserStatus = "RECOVERY"
	StatusPasswordExpired UserStatus = "PASSWORD_EXPIRED"
	StatusSuspended       UserStatus = "SUSPENDED"
	StatusDeprovisioned   UserStatus = "DEPROVISIONED"
)

// User is a provider user record, reduced to the fields the gateway reads.
type User struct {
	ID          string      `json:"id"`
	Status      UserStatus  `json:"status"`
	Profile     UserProfile `json:"profile"`
	Credentials Credentials `json:"credentials"`
}

// UserProfile holds the profile attributes the gateway cares about.
type UserProfile struct {
	PrimaryEmail   string `json:"login"`
	EmailValidated bool   `json:"emailValidated"`
}

// Credentials describes which credentials a user record carries. Provider
// responses include a password object only when one is set.
type Credentials struct {
	Password *struct{} `json:"password,omitempty"`
}

// HasPassword reports whether the record carries a password credential.
func (u User) HasPassword() bool {
	return u.Credentials.Password != nil
}

// ProfileUpdate is a partial profile update. Nil fields are left unchanged.
type ProfileUpdate struct {
	EmailValidated *bool `json:"emailValidated,omitempty"`
}

// Group is a provider group, used for legacy boolean flags modelled as
// membership.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RecoveryToken is the short-lived token minted by a forgot-password call.
type RecoveryToken struct {
	Token string `json:"token"`
}

// StateToken is the token a validated recovery token exchanges into. It
// authorizes exactly one password set.
type StateToken struct {
	Token string `json:"state_token"`
}

type apiError struct {
	Code    string `json:"errorCode"`
	Summary string `json:"errorSummary"`
}
