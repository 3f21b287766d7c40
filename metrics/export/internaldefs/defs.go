package internaldefs

import (
	gateway "github.com/guardian/gateway-sub002"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   gateway.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: gateway.MetricSignInSuccess, Name: "gateway_signin_success_total", Help: "Completed sign-ins."},
	{ID: gateway.MetricSignInFailure, Name: "gateway_signin_failure_total", Help: "Rejected sign-in attempts."},
	{ID: gateway.MetricSignInRateLimited, Name: "gateway_signin_rate_limited_total", Help: "Rate-limited sign-in attempts."},
	{ID: gateway.MetricSignInResetRequired, Name: "gateway_signin_reset_required_total", Help: "Sign-ins routed to a forced credential reset."},
	{ID: gateway.MetricChallengeIssued, Name: "gateway_challenge_issued_total", Help: "Email passcode challenges issued."},
	{ID: gateway.MetricPasscodeVerified, Name: "gateway_passcode_verified_total", Help: "Passcodes verified."},
	{ID: gateway.MetricPasscodeIncorrect, Name: "gateway_passcode_incorrect_total", Help: "Incorrect passcode submissions."},
	{ID: gateway.MetricPasscodeExpired, Name: "gateway_passcode_expired_total", Help: "Challenges expired by timeout or attempt cap."},
	{ID: gateway.MetricPasscodeResent, Name: "gateway_passcode_resent_total", Help: "Passcode resends."},
	{ID: gateway.MetricResendRateLimited, Name: "gateway_passcode_resend_rate_limited_total", Help: "Rate-limited passcode resends."},
	{ID: gateway.MetricRegisterEnrolled, Name: "gateway_register_enrolled_total", Help: "New-account enrollments started."},
	{ID: gateway.MetricRegisterRerouted, Name: "gateway_register_rerouted_total", Help: "Registrations rerouted for an existing account."},
	{ID: gateway.MetricRegisterRateLimited, Name: "gateway_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: gateway.MetricRegisterFailure, Name: "gateway_register_failure_total", Help: "Registration reroutes that failed."},
	{ID: gateway.MetricResetRequested, Name: "gateway_reset_requested_total", Help: "Password reset links issued."},
	{ID: gateway.MetricResetCompleted, Name: "gateway_reset_completed_total", Help: "Completed password resets."},
	{ID: gateway.MetricResetExpired, Name: "gateway_reset_expired_total", Help: "Stale recovery tokens rejected."},
	{ID: gateway.MetricResetRateLimited, Name: "gateway_reset_rate_limited_total", Help: "Rate-limited reset requests."},
	{ID: gateway.MetricReconcileCredentialRepaired, Name: "gateway_reconcile_credential_repaired_total", Help: "Accounts repaired with a placeholder credential."},
	{ID: gateway.MetricReconcileFlagSynced, Name: "gateway_reconcile_flag_synced_total", Help: "Email-validated flags synced from group membership."},
	{ID: gateway.MetricReconcileFailure, Name: "gateway_reconcile_failure_total", Help: "Failed reconciliation passes."},
	{ID: gateway.MetricSessionIssued, Name: "gateway_session_issued_total", Help: "Session cookie sets issued."},
	{ID: gateway.MetricSessionRefreshed, Name: "gateway_session_refreshed_total", Help: "Session cookie sets refreshed."},
	{ID: gateway.MetricSignOut, Name: "gateway_signout_total", Help: "Sign-out operations."},
	{ID: gateway.MetricFlowStateRejected, Name: "gateway_flow_state_rejected_total", Help: "Rejected flow-state tokens."},
	{ID: gateway.MetricProviderUnavailable, Name: "gateway_provider_unavailable_total", Help: "Backend failures surfaced as unavailability."},
}
