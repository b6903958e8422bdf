package goPasskey

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess           = "login_success"
	auditEventLoginFailure           = "login_failure"
	auditEventLoginRateLimited       = "login_rate_limited"
	auditEventSecondFactorRequired   = "second_factor_required"
	auditEventTOTPSuccess            = "totp_success"
	auditEventTOTPFailure            = "totp_failure"
	auditEventTOTPReplay             = "totp_replay"
	auditEventPasskeyRegistered      = "passkey_registered"
	auditEventPasskeyRegisterFailure = "passkey_register_failure"
	auditEventPasskeyLoginSuccess    = "passkey_login_success"
	auditEventPasskeyLoginFailure    = "passkey_login_failure"
	auditEventPasskeyRemoved         = "passkey_removed"
	auditEventSessionEscalated       = "session_escalated"
	auditEventLogoutSession          = "logout_session"
	auditEventLogoutAll              = "logout_all"
	auditEventPasswordChangeSuccess  = "password_change_success"
	auditEventPasswordChangeFailure  = "password_change_failure"
	auditEventPasswordResetRequest   = "password_reset_request"
	auditEventPasswordResetConfirm   = "password_reset_confirm"
	auditEventRateLimitTriggered     = "rate_limit_triggered"
)

const (
	auditFactorPassword = "password"
	auditFactorTOTP     = "totp"
	auditFactorPasskey  = "passkey"
	auditFactorReset    = "reset"
)

// AuditErrorCode defines a public type used by goPasskey APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrUnauthorized        AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrSessionNotFound     AuditErrorCode = "session_not_found"
	auditErrSessionInvalidation AuditErrorCode = "session_invalidation_failed"
	auditErrSecondFactor        AuditErrorCode = "second_factor_required"
	auditErrAccountUnverified   AuditErrorCode = "account_unverified"
	auditErrTOTPInvalid         AuditErrorCode = "totp_invalid"
	auditErrPasskeyInvalid      AuditErrorCode = "passkey_invalid"
	auditErrChallengeInvalid    AuditErrorCode = "challenge_invalid"
	auditErrResetInvalid        AuditErrorCode = "reset_invalid"
	auditErrAttemptsExceeded    AuditErrorCode = "attempts_exceeded"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	factor string,
	success bool,
	userID string,
	sessionID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Factor:    factor,
		SessionID: sessionID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(
	ctx context.Context,
	scope string,
	metadataBuilder func() map[string]string,
) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, "", false, "", "", nil, func() map[string]string {
		base := map[string]string{
			"scope": scope,
		}
		if metadataBuilder == nil {
			return base
		}
		for k, v := range metadataBuilder() {
			base[k] = v
		}
		return base
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrTOTPRateLimited),
		errors.Is(err, ErrPasskeyRateLimited),
		errors.Is(err, ErrPasswordResetRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionInvalidationFailed):
		return auditErrSessionInvalidation
	case errors.Is(err, ErrSecondFactorRequired),
		errors.Is(err, ErrTOTPRequired):
		return auditErrSecondFactor
	case errors.Is(err, ErrAccountUnverified):
		return auditErrAccountUnverified
	case errors.Is(err, ErrTOTPInvalid),
		errors.Is(err, ErrTOTPNotConfigured):
		return auditErrTOTPInvalid
	case errors.Is(err, ErrPasskeyInvalid):
		return auditErrPasskeyInvalid
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrPasswordResetInvalid):
		return auditErrResetInvalid
	case errors.Is(err, ErrPasswordResetAttempts):
		return auditErrAttemptsExceeded
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasskeyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrLoginUnavailable),
		errors.Is(err, ErrSessionUnavailable),
		errors.Is(err, ErrTOTPUnavailable),
		errors.Is(err, ErrPasskeyUnavailable),
		errors.Is(err, ErrPasswordResetUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
