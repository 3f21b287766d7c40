package flows

import "context"

// ProviderRecord is the raw account view returned by the account API
// dependency before lifecycle mapping.
type ProviderRecord struct {
	UserID         string
	Email          string
	Status         string
	HasPassword    bool
	EmailValidated bool
}

// ResolveErrors carries host-level sentinel errors used by account
// resolution.
type ResolveErrors struct {
	NotFound    error
	Unavailable error
}

// ResolveDeps captures account resolution dependencies.
type ResolveDeps struct {
	GetUser func(context.Context, string) (ProviderRecord, error)

	Errors ResolveErrors
}

// Provider lifecycle status strings.
const (
	statusStaged          = "STAGED"
	statusProvisioned     = "PROVISIONED"
	statusActive          = "ACTIVE"
	statusRecovery        = "RECOVERY"
	statusPasswordExpired = "PASSWORD_EXPIRED"
)

// RunResolveAccount fetches the account record for identifier and maps the
// provider status onto the closed lifecycle state set. An unmapped status is
// surfaced as an error, never as a partial state.
func RunResolveAccount(ctx context.Context, identifier string, deps ResolveDeps) (AccountRecord, error) {
	if deps.GetUser == nil {
		return AccountRecord{}, deps.Errors.Unavailable
	}

	raw, err := deps.GetUser(ctx, identifier)
	if err != nil {
		if deps.Errors.NotFound != nil && isErr(err, deps.Errors.NotFound) {
			return AccountRecord{State: StateNonExistent, Email: identifier}, nil
		}
		return AccountRecord{}, err
	}

	record := AccountRecord{
		UserID:         raw.UserID,
		Email:          raw.Email,
		EmailValidated: raw.EmailValidated,
		Authenticators: AuthenticatorSet{
			Email:    true,
			Password: raw.HasPassword,
		},
	}

	switch raw.Status {
	case statusStaged:
		record.State = StateStaged
	case statusProvisioned:
		record.State = StateProvisioned
	case statusActive:
		if raw.HasPassword {
			record.State = StateActive
		} else {
			record.State = StateSocial
		}
	case statusRecovery:
		record.State = StateRecovery
	case statusPasswordExpired:
		record.State = StatePasswordExpired
	default:
		return AccountRecord{}, deps.Errors.Unavailable
	}

	return record, nil
}
