package internaldefs

import (
	goIdentity "github.com/MrEthical07/goIdentity"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   goIdentity.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for audit events lost to backpressure.
const AuditDroppedName = "identity_audit_dropped_total"

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goIdentity.MetricLoginSuccess, Name: "identity_login_success_total", Help: "Successful logins."},
	{ID: goIdentity.MetricLoginFailure, Name: "identity_login_failure_total", Help: "Failed logins."},
	{ID: goIdentity.MetricLoginRateLimited, Name: "identity_login_rate_limited_total", Help: "Logins rejected by the failure throttle."},
	{ID: goIdentity.MetricRegisterSuccess, Name: "identity_register_success_total", Help: "Accounts created."},
	{ID: goIdentity.MetricRegisterDuplicate, Name: "identity_register_duplicate_total", Help: "Registrations rejected for a taken identifier."},
	{ID: goIdentity.MetricRefreshSuccess, Name: "identity_refresh_success_total", Help: "Successful refresh token rotations."},
	{ID: goIdentity.MetricRefreshFailure, Name: "identity_refresh_failure_total", Help: "Failed refresh token rotations."},
	{ID: goIdentity.MetricRefreshReuseDetected, Name: "identity_refresh_reuse_detected_total", Help: "Replayed refresh tokens; the chain was revoked."},
	{ID: goIdentity.MetricSessionCreated, Name: "identity_session_created_total", Help: "Token pairs issued by login or federated sign-in."},
	{ID: goIdentity.MetricLogout, Name: "identity_logout_total", Help: "Single-session logouts."},
	{ID: goIdentity.MetricLogoutAll, Name: "identity_logout_all_total", Help: "Logout-all operations."},
	{ID: goIdentity.MetricVerificationRequested, Name: "identity_verification_requested_total", Help: "Verification codes requested."},
	{ID: goIdentity.MetricVerificationConfirmed, Name: "identity_verification_confirmed_total", Help: "Identifiers verified."},
	{ID: goIdentity.MetricVerificationFailure, Name: "identity_verification_failure_total", Help: "Rejected verification codes."},
	{ID: goIdentity.MetricPasswordResetRequested, Name: "identity_password_reset_requested_total", Help: "Password reset codes requested."},
	{ID: goIdentity.MetricPasswordResetSuccess, Name: "identity_password_reset_success_total", Help: "Completed password resets."},
	{ID: goIdentity.MetricPasswordResetFailure, Name: "identity_password_reset_failure_total", Help: "Rejected password reset attempts."},
	{ID: goIdentity.MetricCodeIssued, Name: "identity_code_issued_total", Help: "One-time codes issued."},
	{ID: goIdentity.MetricCodeRateLimited, Name: "identity_code_rate_limited_total", Help: "Code requests rejected by the issuance throttle."},
	{ID: goIdentity.MetricCodeRejected, Name: "identity_code_rejected_total", Help: "Codes refused as expired or out of attempts."},
	{ID: goIdentity.MetricDeliveryFailure, Name: "identity_delivery_failure_total", Help: "Messages the delivery collaborator failed to send."},
	{ID: goIdentity.MetricLinkInitiated, Name: "identity_link_initiated_total", Help: "Linking sessions parked for disambiguation."},
	{ID: goIdentity.MetricLinkCompleted, Name: "identity_link_completed_total", Help: "Federated identities attached to accounts."},
	{ID: goIdentity.MetricLinkConflict, Name: "identity_link_conflict_total", Help: "Linking attempts the caller could not disambiguate."},
	{ID: goIdentity.MetricLinkFailure, Name: "identity_link_failure_total", Help: "Rejected linking steps."},
	{ID: goIdentity.MetricFederatedSignIn, Name: "identity_federated_sign_in_total", Help: "Token pairs issued for federated identities."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goIdentity.MetricValidateLatency, Name: "identity_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, without +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling what is missing.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
