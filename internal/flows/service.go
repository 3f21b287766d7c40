package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.SignIn.ResolveAccount != nil
}

func (s Service) SignIn(ctx context.Context, identifier, password string) (*SignInResult, error) {
	return RunSignIn(ctx, identifier, password, s.deps.SignIn)
}

func (s Service) VerifyPasscode(ctx context.Context, identifier, stateHandle, code string) (*VerifyResult, error) {
	return RunVerifyPasscode(ctx, identifier, stateHandle, code, s.deps.Passcode)
}

func (s Service) ResendPasscode(ctx context.Context, identifier, stateHandle string) (*ResendResult, error) {
	return RunResendPasscode(ctx, identifier, stateHandle, s.deps.Passcode)
}

func (s Service) Register(ctx context.Context, email string) (*RegisterResult, error) {
	return RunRegister(ctx, email, s.deps.Register)
}

func (s Service) RequestReset(ctx context.Context, identifier string) (*ResetRequestResult, error) {
	return RunRequestReset(ctx, identifier, s.deps.Reset)
}

func (s Service) CompleteReset(ctx context.Context, recoveryToken, newPassword string) (*ResetCompleteResult, error) {
	return RunCompleteReset(ctx, recoveryToken, newPassword, s.deps.Reset)
}

func (s Service) ResolveAccount(ctx context.Context, identifier string) (AccountRecord, error) {
	return RunResolveAccount(ctx, identifier, s.deps.Resolve)
}

func (s Service) Reconcile(ctx context.Context, record AccountRecord, needsPassword bool) (AccountRecord, bool, error) {
	return RunReconcile(ctx, record, needsPassword, s.deps.Reconcile)
}
