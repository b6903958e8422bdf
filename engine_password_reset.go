package goPasskey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goPasskey/internal"
)

// RequestPasswordReset describes the requestpasswordreset operation and its observable behavior.
//
// RequestPasswordReset mints a single-use reset token for the identifier's
// account and returns it for out-of-band delivery. The call is
// enumeration-safe: unknown identifiers receive a well-formed decoy token
// after equivalent work and a jittered delay, and nothing about the response
// distinguishes them. Requesting a new token invalidates any earlier live
// token for the same user.
//
// RequestPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// RequestPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RequestPasswordReset(ctx context.Context, identifier string) (string, error) {
	if e == nil || e.resetStore == nil || e.userProvider == nil {
		return "", ErrEngineNotReady
	}
	if identifier == "" {
		return "", ErrPasswordResetInvalid
	}
	defer resetRequestJitter()

	if e.config.PasswordReset.EnableIdentifierThrottle {
		ok, err := e.resetLimiter.Take(ctx, identifier)
		if err != nil {
			return "", ErrPasswordResetUnavailable
		}
		if !ok {
			e.emitRateLimit(ctx, "password_reset", func() map[string]string {
				return map[string]string{"identifier": identifier}
			})
			return "", ErrPasswordResetRateLimited
		}
	}
	if e.config.PasswordReset.EnableIPThrottle {
		if ip := clientIPFromContext(ctx); ip != "" {
			ok, err := e.resetIPLimiter.Take(ctx, ip)
			if err != nil {
				return "", ErrPasswordResetUnavailable
			}
			if !ok {
				e.emitRateLimit(ctx, "password_reset_ip", func() map[string]string {
					return map[string]string{"ip": ip}
				})
				return "", ErrPasswordResetRateLimited
			}
		}
	}

	user, lookupErr := e.userProvider.GetUserByIdentifier(identifier)
	if lookupErr != nil {
		// The decoy path does the same amount of token work as the real
		// one. The returned token points at no record and can never
		// redeem.
		token, err := decoyResetToken()
		if err != nil {
			return "", ErrPasswordResetUnavailable
		}
		e.metricInc(MetricPasswordResetRequest)
		e.emitAudit(ctx, auditEventPasswordResetRequest, auditFactorReset, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"resolved":   "false",
			}
		})
		return token, nil
	}

	rid, err := internal.NewRecordID()
	if err != nil {
		return "", ErrPasswordResetUnavailable
	}
	secret, err := internal.NewResetSecret()
	if err != nil {
		return "", ErrPasswordResetUnavailable
	}

	ttl := e.config.PasswordReset.ResetTTL
	record := &passwordResetRecord{
		UserID:     user.UserID,
		SecretHash: internal.HashResetSecret(secret),
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.resetStore.Save(ctx, rid.String(), record, ttl); err != nil {
		return "", ErrPasswordResetUnavailable
	}

	token, err := internal.EncodeResetToken(rid.String(), secret)
	if err != nil {
		return "", ErrPasswordResetUnavailable
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, auditFactorReset, true, user.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"resolved":   "true",
		}
	})

	return token, nil
}

// ConfirmPasswordReset describes the confirmpasswordreset operation and its observable behavior.
//
// ConfirmPasswordReset redeems a reset token and installs the new password.
// Redemption is atomic: the token dies on first success, burns an attempt on
// a wrong secret, and self-destructs once the attempt budget is exhausted.
// A successful reset invalidates every session belonging to the user.
//
// ConfirmPasswordReset may return an error when input validation, dependency calls, or security checks fail.
// ConfirmPasswordReset does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil || e.resetStore == nil || e.userProvider == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	if token == "" || newPassword == "" {
		return ErrPasswordResetInvalid
	}

	resetID, secret, err := internal.DecodeResetToken(token)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, "", "", ErrPasswordResetInvalid, nil)
		return ErrPasswordResetInvalid
	}

	record, err := e.resetStore.Consume(ctx, resetID, internal.HashResetSecret(secret), e.config.PasswordReset.MaxAttempts)
	if err != nil {
		return e.failResetConfirm(ctx, err)
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, record.UserID, "", ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}
	newPassword = ""

	if err := e.userProvider.UpdatePasswordHash(record.UserID, newHash); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, record.UserID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return ErrPasswordResetUnavailable
	}

	if err := e.LogoutAll(ctx, record.UserID); err != nil {
		log.Print("goPasskey: session invalidation failed after password reset")
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, record.UserID, "", ErrSessionInvalidationFailed, nil)
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	// The old password's failure history is stale after a reset.
	if user, err := e.userProvider.GetUserByID(record.UserID); err == nil && user.Identifier != "" {
		if err := e.loginThrottle.Reset(ctx, user.Identifier); err != nil {
			log.Print("goPasskey: login throttle reset failed after password reset")
		}
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, true, record.UserID, "", nil, nil)

	return nil
}

func (e *Engine) failResetConfirm(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errResetAttemptsExceeded):
		e.metricInc(MetricPasswordResetAttemptsExceeded)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, "", "", ErrPasswordResetAttempts, nil)
		return ErrPasswordResetAttempts
	case errors.Is(err, redis.Nil),
		errors.Is(err, errResetNotFound),
		errors.Is(err, errResetSecretMismatch):
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, auditFactorReset, false, "", "", ErrPasswordResetInvalid, nil)
		return ErrPasswordResetInvalid
	default:
		return ErrPasswordResetUnavailable
	}
}

// decoyResetToken builds a token with the same shape and entropy as a real
// one but no backing record.
func decoyResetToken() (string, error) {
	var raw [48]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// resetRequestJitter adds a small random delay so response timing does not
// separate the decoy path from the real one.
func resetRequestJitter() {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		time.Sleep(30 * time.Millisecond)
		return
	}
	time.Sleep(20*time.Millisecond + time.Duration(b[0]%20)*time.Millisecond)
}
