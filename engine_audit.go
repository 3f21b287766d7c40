package gateway

import (
	"context"
	"time"

	"github.com/guardian/gateway-sub002/internal"
)

const (
	auditEventSignInSuccess     = "signin_success"
	auditEventSignInFailure     = "signin_failure"
	auditEventSignInRateLimited = "signin_rate_limited"
	auditEventSignInResetNeeded = "signin_reset_required"
	auditEventChallengeIssued   = "challenge_issued"
	auditEventPasscodeVerified  = "passcode_verified"
	auditEventPasscodeIncorrect = "passcode_incorrect"
	auditEventPasscodeExpired   = "passcode_expired"
	auditEventPasscodeResent    = "passcode_resent"
	auditEventResendRateLimited = "passcode_resend_rate_limited"
	auditEventRegisterEnrolled  = "register_enrolled"
	auditEventRegisterRerouted  = "register_rerouted"
	auditEventRegisterLimited   = "register_rate_limited"
	auditEventRegisterFailure   = "register_failure"
	auditEventResetRequested    = "reset_requested"
	auditEventResetCompleted    = "reset_completed"
	auditEventResetExpired      = "reset_token_expired"
	auditEventResetRateLimited  = "reset_rate_limited"
	auditEventReconcileCred     = "reconcile_credential_repaired"
	auditEventReconcileFlag     = "reconcile_flag_synced"
	auditEventReconcileFailure  = "reconcile_failure"
	auditEventSessionIssued     = "session_issued"
	auditEventSessionRefreshed  = "session_refreshed"
	auditEventSignOut           = "signout"
	auditEventFlowStateRejected = "flow_state_rejected"
)

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID string, cause error, fields func() map[string]string) {
	if e == nil || e.audit == nil || eventType == "" {
		return
	}

	event := AuditEvent{
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		UserID:        userID,
		CorrelationID: correlationIDFromContext(ctx),
		IP:            clientIPFromContext(ctx),
		Success:       success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if fields != nil {
		event.Metadata = fields()
		// Identifiers are emails. Hash them so sinks never see PII.
		if raw, ok := event.Metadata["identifier"]; ok {
			event.Metadata["identifier"] = internal.HashIdentifier(raw)
		}
	}

	e.audit.Emit(ctx, event)
}
