package goPasskey

import (
	"context"
	"log"
	"time"
)

// TOTPEnrollment is returned by [Engine.GenerateTOTPSecret]. The caller
// persists Secret against the user and surfaces ProvisionURI to the
// authenticator app; the engine never stores TOTP secrets itself.
type TOTPEnrollment struct {
	Secret       []byte
	SecretBase32 string
	ProvisionURI string
}

// GenerateTOTPSecret describes the generatetotpsecret operation and its observable behavior.
//
// GenerateTOTPSecret may return an error when input validation, dependency calls, or security checks fail.
// GenerateTOTPSecret does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) GenerateTOTPSecret(account string) (*TOTPEnrollment, error) {
	if e == nil || e.totp == nil {
		return nil, ErrEngineNotReady
	}

	raw, encoded, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}

	return &TOTPEnrollment{
		Secret:       raw,
		SecretBase32: encoded,
		ProvisionURI: e.totp.ProvisionURI(encoded, account),
	}, nil
}

// VerifyTOTP describes the verifytotp operation and its observable behavior.
//
// VerifyTOTP redeems a time-based code against a pending session. On success
// the pending session is replaced by a new fully verified one and the
// returned [LoginResult] carries the replacement token; the old token is
// dead. A code that reuses an already accepted counter is rejected the same
// way as a wrong code.
//
// VerifyTOTP may return an error when input validation, dependency calls, or security checks fail.
// VerifyTOTP does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) VerifyTOTP(ctx context.Context, sessionToken, code string) (*LoginResult, error) {
	if e == nil || e.totp == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	if sessionToken == "" {
		return nil, ErrUnauthorized
	}

	sess, err := e.getSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	ok, err := e.totpLimiter.Take(ctx, sess.UserID)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if !ok {
		e.metricInc(MetricTOTPRateLimited)
		e.emitAudit(ctx, auditEventTOTPFailure, auditFactorTOTP, false, sess.UserID, sess.ID, ErrTOTPRateLimited, nil)
		e.emitRateLimit(ctx, "totp", func() map[string]string {
			return map[string]string{"user_id": sess.UserID}
		})
		return nil, ErrTOTPRateLimited
	}

	record, err := e.userProvider.GetTOTPSecret(ctx, sess.UserID)
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if record == nil || !record.Enabled || len(record.Secret) == 0 {
		return nil, ErrTOTPNotConfigured
	}

	matched, counter, err := e.totp.VerifyCode(record.Secret, code, time.Now())
	if err != nil {
		return nil, ErrTOTPUnavailable
	}
	if !matched {
		e.metricInc(MetricTOTPFailure)
		e.emitAudit(ctx, auditEventTOTPFailure, auditFactorTOTP, false, sess.UserID, sess.ID, ErrTOTPInvalid, nil)
		return nil, ErrTOTPInvalid
	}

	if e.config.TOTP.EnforceReplayProtection {
		if record.LastUsedCounter > 0 && counter <= record.LastUsedCounter {
			e.metricInc(MetricTOTPReplayAttempt)
			e.emitAudit(ctx, auditEventTOTPReplay, auditFactorTOTP, false, sess.UserID, sess.ID, ErrTOTPInvalid, nil)
			return nil, ErrTOTPInvalid
		}
		// Replay tracking is load-bearing. A counter that cannot be
		// recorded must not mint a verified session.
		if err := e.userProvider.UpdateTOTPLastUsedCounter(ctx, sess.UserID, counter); err != nil {
			return nil, ErrTOTPUnavailable
		}
	}

	rawToken, escalated, err := e.escalateSession(ctx, sess, true, false)
	if err != nil {
		e.emitAudit(ctx, auditEventTOTPFailure, auditFactorTOTP, false, sess.UserID, sess.ID, err, func() map[string]string {
			return map[string]string{"reason": "session_escalation_failed"}
		})
		return nil, ErrSessionUnavailable
	}

	if err := e.totpLimiter.Reset(ctx, sess.UserID); err != nil {
		log.Print("goPasskey: totp limiter reset failed")
	}

	e.metricInc(MetricTOTPSuccess)
	e.emitAudit(ctx, auditEventTOTPSuccess, auditFactorTOTP, true, sess.UserID, escalated.ID, nil, nil)
	e.emitAudit(ctx, auditEventSessionEscalated, auditFactorTOTP, true, sess.UserID, escalated.ID, nil, nil)

	return &LoginResult{
		SessionToken: rawToken,
		UserID:       sess.UserID,
	}, nil
}
