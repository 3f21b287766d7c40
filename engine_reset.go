package gateway

import (
	"context"
	"fmt"
)

// ResetRequestAck acknowledges a password reset request. The shape is the
// same whether or not an account exists for the identifier.
type ResetRequestAck struct {
	Email string
}

// RequestReset starts a password reset. When the identifier has an account,
// a reset link is emailed; an account missing its password credential is
// repaired first so the emailed token is actually redeemable. Unknown
// identifiers get the same acknowledgement and no email.
func (e *Engine) RequestReset(ctx context.Context, req RequestResetRequest) (*ResetRequestAck, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	if _, err := e.flows.RequestReset(ctx, req.Email); err != nil {
		return nil, e.mapFlowError(err)
	}
	return &ResetRequestAck{Email: req.Email}, nil
}

// CompleteReset consumes an emailed recovery token and sets the new
// password. On success the recovered account gets a fresh session cookie
// bundle. A stale or already-consumed token returns ErrExpiredChallenge and
// the user must request a new link.
func (e *Engine) CompleteReset(ctx context.Context, req CompleteResetRequest) (*StepResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	result, err := e.flows.CompleteReset(ctx, req.Token, req.NewPassword)
	if err != nil {
		return nil, e.mapFlowError(err)
	}

	if result.SessionToken == "" {
		return &StepResult{Step: StepComplete, Email: result.Email}, nil
	}
	return e.completeSession(ctx, result.SessionToken, result.UserID, result.Email)
}
