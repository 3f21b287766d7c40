package gateway

import (
	"context"
	"fmt"
)

// SignIn handles one sign-in entry submission. With a password it drives the
// password challenge to completion and, on success, returns the session
// cookie bundle. Without a password it issues an email passcode challenge and
// returns the flow-state token the client must present to VerifyPasscode.
//
// Wrong identifiers and wrong passwords both produce ErrInvalidCredential;
// the outcome never reveals whether the account exists.
func (e *Engine) SignIn(ctx context.Context, req SignInRequest) (*StepResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	result, err := e.flows.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, e.mapFlowError(err)
	}

	if result.Step == StepComplete {
		return e.completeSession(ctx, result.SessionToken, result.UserID, result.Email)
	}

	value, expiry, err := e.encodeFlowState(result.StateHandle, result.Email, result.Step, result.HandleExpiry)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		Step:            result.Step,
		FlowState:       value,
		FlowStateExpiry: expiry,
		Email:           result.Email,
	}, nil
}
