package gateway

import (
	"context"
	"fmt"
)

// Register handles one registration entry submission. A genuinely new
// identifier is enrolled with the provider and challenged by email passcode.
// An identifier that already has an account is silently rerouted onto the
// recovery email its lifecycle state calls for, and the response is shaped
// exactly like a fresh enrollment so registration cannot be used to probe for
// accounts.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*StepResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := e.verifyCSRF(ctx, req.CSRFToken); err != nil {
		return nil, err
	}

	result, err := e.flows.Register(ctx, req.Email)
	if err != nil {
		return nil, e.mapFlowError(err)
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
