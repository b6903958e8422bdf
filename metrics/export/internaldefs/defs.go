package internaldefs

import (
	goPasskey "github.com/MrEthical07/goPasskey"
)

// CounterDef defines a public type used by goPasskey APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goPasskey.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goPasskey APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goPasskey.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: goPasskey.MetricLoginSuccess, Name: "gopasskey_login_success_total", Help: "Successful login attempts."},
	{ID: goPasskey.MetricLoginFailure, Name: "gopasskey_login_failure_total", Help: "Failed login attempts."},
	{ID: goPasskey.MetricLoginRateLimited, Name: "gopasskey_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: goPasskey.MetricSecondFactorRequired, Name: "gopasskey_second_factor_required_total", Help: "Logins that entered a pending second-factor state."},
	{ID: goPasskey.MetricTOTPSuccess, Name: "gopasskey_totp_success_total", Help: "Successful TOTP verifications."},
	{ID: goPasskey.MetricTOTPFailure, Name: "gopasskey_totp_failure_total", Help: "Failed TOTP verifications."},
	{ID: goPasskey.MetricTOTPRateLimited, Name: "gopasskey_totp_rate_limited_total", Help: "Rate-limited TOTP verifications."},
	{ID: goPasskey.MetricTOTPReplayAttempt, Name: "gopasskey_totp_replay_attempt_total", Help: "TOTP codes rejected for counter reuse."},
	{ID: goPasskey.MetricPasskeyRegistered, Name: "gopasskey_passkey_registered_total", Help: "Registered passkey credentials."},
	{ID: goPasskey.MetricPasskeyLoginSuccess, Name: "gopasskey_passkey_login_success_total", Help: "Successful passkey assertions."},
	{ID: goPasskey.MetricPasskeyLoginFailure, Name: "gopasskey_passkey_login_failure_total", Help: "Failed passkey assertions."},
	{ID: goPasskey.MetricPasskeyRateLimited, Name: "gopasskey_passkey_rate_limited_total", Help: "Rate-limited passkey operations."},
	{ID: goPasskey.MetricChallengeIssued, Name: "gopasskey_challenge_issued_total", Help: "Issued WebAuthn challenges."},
	{ID: goPasskey.MetricChallengeRejected, Name: "gopasskey_challenge_rejected_total", Help: "Challenge redemptions rejected as missing, expired, or mismatched."},
	{ID: goPasskey.MetricSessionCreated, Name: "gopasskey_session_created_total", Help: "Created sessions."},
	{ID: goPasskey.MetricSessionEscalated, Name: "gopasskey_session_escalated_total", Help: "Sessions replaced during factor escalation."},
	{ID: goPasskey.MetricSessionRenewed, Name: "gopasskey_session_renewed_total", Help: "Sessions renewed inside the renewal window."},
	{ID: goPasskey.MetricSessionInvalidated, Name: "gopasskey_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: goPasskey.MetricLogout, Name: "gopasskey_logout_total", Help: "Single-session logout operations."},
	{ID: goPasskey.MetricLogoutAll, Name: "gopasskey_logout_all_total", Help: "Logout-all operations."},
	{ID: goPasskey.MetricPasswordChangeSuccess, Name: "gopasskey_password_change_success_total", Help: "Successful password changes."},
	{ID: goPasskey.MetricPasswordChangeInvalidOld, Name: "gopasskey_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: goPasskey.MetricPasswordResetRequest, Name: "gopasskey_password_reset_request_total", Help: "Password reset requests."},
	{ID: goPasskey.MetricPasswordResetConfirmSuccess, Name: "gopasskey_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: goPasskey.MetricPasswordResetConfirmFailure, Name: "gopasskey_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: goPasskey.MetricPasswordResetAttemptsExceeded, Name: "gopasskey_password_reset_attempts_exceeded_total", Help: "Password reset tokens invalidated due to attempt cap."},
	{ID: goPasskey.MetricRateLimitHit, Name: "gopasskey_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: goPasskey.MetricValidateLatency, Name: "gopasskey_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
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

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
