package gateway

import (
	"context"
	"errors"
	"fmt"
)

// VerifyPasscode validates a submitted one-time code against the pending
// challenge carried in the flow-state token.
//
// A wrong code keeps the flow on the code entry step and reports the attempts
// remaining alongside ErrInvalidCredential. Once the attempt budget or the
// challenge itself has expired, the result clears the flow-state cookie and
// the caller must restart from the sign-in entry; resubmitting the correct
// code cannot revive the challenge.
func (e *Engine) VerifyPasscode(ctx context.Context, req VerifyPasscodeRequest) (*StepResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	token, err := e.decodeFlowState(ctx, req.FlowState)
	if err != nil {
		return &StepResult{Step: StepFailed}, err
	}

	result, err := e.flows.VerifyPasscode(ctx, token.Email, token.StateHandle, req.Code)
	if err != nil {
		mapped := e.mapFlowError(err)
		switch {
		case errors.Is(mapped, ErrInvalidCredential) && result != nil:
			// Same challenge, one attempt burned. The client keeps its
			// flow-state cookie and stays on the code page.
			value, expiry, encErr := e.encodeFlowState(token.StateHandle, token.Email, StepChallengeEmail, token.HandleExpiry)
			if encErr != nil {
				return nil, encErr
			}
			return &StepResult{
				Step:              StepChallengeEmail,
				FlowState:         value,
				FlowStateExpiry:   expiry,
				AttemptsRemaining: result.AttemptsRemaining,
				Email:             token.Email,
			}, mapped
		case errors.Is(mapped, ErrExpiredChallenge):
			return &StepResult{Step: StepFailed}, mapped
		}
		return nil, mapped
	}

	if result.Step == StepRecover {
		value, expiry, err := e.encodeFlowState(result.StateHandle, result.Email, StepRecover, token.HandleExpiry)
		if err != nil {
			return nil, err
		}
		return &StepResult{
			Step:            StepRecover,
			FlowState:       value,
			FlowStateExpiry: expiry,
			Email:           result.Email,
		}, nil
	}

	return e.completeSession(ctx, result.SessionToken, result.UserID, result.Email)
}

// ResendPasscode issues a replacement code for the pending challenge. The
// previous code stops working. Resends are gated by the configured cooldown;
// a limited resend keeps the existing challenge and flow state intact.
func (e *Engine) ResendPasscode(ctx context.Context, req ResendPasscodeRequest) (*StepResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	token, err := e.decodeFlowState(ctx, req.FlowState)
	if err != nil {
		return &StepResult{Step: StepFailed}, err
	}

	_, err = e.flows.ResendPasscode(ctx, token.Email, token.StateHandle)
	if err != nil {
		mapped := e.mapFlowError(err)
		if errors.Is(mapped, ErrExpiredChallenge) {
			return &StepResult{Step: StepFailed}, mapped
		}
		if errors.Is(mapped, ErrRateLimited) {
			value, expiry, encErr := e.encodeFlowState(token.StateHandle, token.Email, StepChallengeEmail, token.HandleExpiry)
			if encErr != nil {
				return nil, encErr
			}
			return &StepResult{
				Step:            StepChallengeEmail,
				FlowState:       value,
				FlowStateExpiry: expiry,
				Email:           token.Email,
			}, mapped
		}
		return nil, mapped
	}

	value, expiry, err := e.encodeFlowState(token.StateHandle, token.Email, StepChallengeEmail, token.HandleExpiry)
	if err != nil {
		return nil, err
	}
	return &StepResult{
		Step:            StepChallengeEmail,
		FlowState:       value,
		FlowStateExpiry: expiry,
		Email:           token.Email,
	}, nil
}
