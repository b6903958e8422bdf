package goPasskey

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goPasskey/internal"
	internalaudit "github.com/MrEthical07/goPasskey/internal/audit"
	"github.com/MrEthical07/goPasskey/internal/rate"
	"github.com/MrEthical07/goPasskey/password"
	"github.com/MrEthical07/goPasskey/session"
)

// Engine defines a public type used by goPasskey APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config          Config
	sessionStore    *session.Store
	loginThrottle   *rate.Throttler
	ipLimiter       *rate.FixedBucket
	totpLimiter     *rate.FixedBucket
	passkeyLimiter  *rate.Bucket
	resetLimiter    *rate.FixedBucket
	resetIPLimiter  *rate.FixedBucket
	challengeStore  *challengeStore
	resetStore      *passwordResetStore
	audit           *internalaudit.Dispatcher
	metrics         *Metrics
	passwordHash    *password.Hasher
	totp            *totpManager
	userProvider    UserProvider
	passkeyProvider PasskeyProvider

	// decoyHash is verified against when the user does not exist, so a
	// lookup miss costs the same Argon2 work as a real password check.
	decoyHash string
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login verifies an identifier/password pair and issues a session. When the
// user has a second factor enrolled the returned [LoginResult] carries
// SecondFactorRequired=true and the session stays in a pending state until
// [Engine.VerifyTOTP] or [Engine.FinishPasskeyLogin] escalates it. Unknown
// identifiers and wrong passwords are indistinguishable to the caller.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Login(ctx context.Context, identifier, plaintext string) (*LoginResult, error) {
	if e == nil || e.passwordHash == nil || e.userProvider == nil {
		return nil, ErrEngineNotReady
	}
	ip := clientIPFromContext(ctx)

	if retryAfter, err := e.loginThrottle.Check(ctx, identifier); err != nil {
		return nil, ErrLoginUnavailable
	} else if retryAfter > 0 {
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, auditFactorPassword, false, "", "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{
				"identifier":  identifier,
				"retry_after": retryAfter.String(),
			}
		})
		e.emitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return nil, ErrLoginRateLimited
	}

	if e.config.Login.EnableIPThrottle && ip != "" {
		ok, err := e.ipLimiter.Take(ctx, ip)
		if err != nil {
			return nil, ErrLoginUnavailable
		}
		if !ok {
			e.metricInc(MetricLoginRateLimited)
			e.emitRateLimit(ctx, "login_ip", func() map[string]string {
				return map[string]string{"ip": ip}
			})
			return nil, ErrLoginRateLimited
		}
	}

	if identifier == "" || plaintext == "" {
		return nil, e.failLogin(ctx, identifier, "", "empty_input")
	}

	user, lookupErr := e.userProvider.GetUserByIdentifier(identifier)
	if lookupErr != nil {
		// Burn the same hashing cost as a real verification before denying.
		_, _ = e.passwordHash.Verify(plaintext, e.decoyHash)
		return nil, e.failLogin(ctx, identifier, "", "user_not_found")
	}

	ok, err := e.passwordHash.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return nil, e.failLogin(ctx, identifier, user.UserID, "password_mismatch")
	}

	if !user.EmailVerified {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, auditFactorPassword, false, user.UserID, "", ErrAccountUnverified, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "account_unverified",
			}
		})
		return nil, ErrAccountUnverified
	}

	if e.config.Password.UpgradeOnLogin {
		if needsRehash, err := e.passwordHash.NeedsRehash(user.PasswordHash); err == nil && needsRehash {
			if upgradedHash, err := e.passwordHash.Hash(plaintext); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := e.userProvider.UpdatePasswordHash(user.UserID, upgradedHash); err != nil {
					log.Print("goPasskey: password hash upgrade update failed")
				}
			} else {
				log.Print("goPasskey: password hash upgrade generation failed")
			}
		}
	}
	plaintext = ""

	if err := e.loginThrottle.Reset(ctx, identifier); err != nil {
		log.Print("goPasskey: login throttle reset failed")
	}

	secondFactor := user.HasTwoFactor()
	rawToken, sess, err := e.issueSession(ctx, user.UserID, false, false)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, auditFactorPassword, false, user.UserID, "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "session_save_failed",
			}
		})
		return nil, ErrSessionUnavailable
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	if secondFactor {
		e.metricInc(MetricSecondFactorRequired)
		e.emitAudit(ctx, auditEventSecondFactorRequired, auditFactorPassword, true, user.UserID, sess.ID, nil, nil)
	}
	e.emitAudit(ctx, auditEventLoginSuccess, auditFactorPassword, true, user.UserID, sess.ID, nil, func() map[string]string {
		return map[string]string{"identifier": identifier}
	})

	return &LoginResult{
		SessionToken:         rawToken,
		UserID:               user.UserID,
		SecondFactorRequired: secondFactor,
	}, nil
}

func (e *Engine) failLogin(ctx context.Context, identifier, userID, reason string) error {
	if block, err := e.loginThrottle.Fail(ctx, identifier); err != nil {
		return ErrLoginUnavailable
	} else if block > 0 {
		e.metricInc(MetricLoginRateLimited)
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, auditFactorPassword, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"identifier": identifier,
			"reason":     reason,
		}
	})
	return ErrInvalidCredentials
}

// ValidateSession describes the validatesession operation and its observable behavior.
//
// ValidateSession resolves a bearer token to its session and evaluates the
// factor policy against the user's current requirements: FullyVerified is
// true only when the account is verified and every enrolled second factor
// demand is satisfied by the session's flags. Reads inside the renewal
// window extend the session transparently.
//
// ValidateSession may return an error when input validation, dependency calls, or security checks fail.
// ValidateSession does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ValidateSession(ctx context.Context, token string) (*SessionInfo, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	if e.metrics != nil && e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}
	if token == "" {
		return nil, ErrUnauthorized
	}

	sess, err := e.getSession(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := e.userProvider.GetUserByID(sess.UserID)
	if err != nil {
		// The account is gone; its sessions go with it.
		_ = e.sessionStore.Delete(ctx, sess.ID)
		e.metricInc(MetricSessionInvalidated)
		return nil, ErrSessionNotFound
	}

	return e.sessionInfo(user, sess), nil
}

func (e *Engine) getSession(ctx context.Context, token string) (*session.Session, error) {
	sess, err := e.sessionStore.Get(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		if errors.Is(err, session.ErrRedisUnavailable) {
			return nil, ErrSessionUnavailable
		}
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (e *Engine) sessionInfo(user UserRecord, sess *session.Session) *SessionInfo {
	secondFactorSatisfied := !user.HasTwoFactor() || sess.TwoFactorVerified || sess.PasskeyVerified

	return &SessionInfo{
		ID:                sess.ID,
		UserID:            sess.UserID,
		ExpiresAt:         time.Unix(sess.ExpiresAt, 0),
		TwoFactorVerified: sess.TwoFactorVerified,
		PasskeyVerified:   sess.PasskeyVerified,
		FullyVerified:     user.EmailVerified && secondFactorSatisfied,
	}
}

// issueSession creates and persists a fresh session and returns the raw
// bearer token alongside the stored record. Escalation paths call this and
// then delete the predecessor; sessions are never mutated in place.
func (e *Engine) issueSession(ctx context.Context, userID string, twoFactor, passkey bool) (string, *session.Session, error) {
	rawToken, err := internal.NewSessionToken()
	if err != nil {
		return "", nil, err
	}

	sess := &session.Session{
		ID:                internal.HashToken(rawToken),
		UserID:            userID,
		TwoFactorVerified: twoFactor,
		PasskeyVerified:   passkey,
	}
	if err := e.sessionStore.Save(ctx, sess); err != nil {
		return "", nil, err
	}

	return rawToken, sess, nil
}

// escalateSession replaces a pending session with a new fully verified one.
// The old token dies with the old session, so a leaked pre-escalation token
// can never ride along to the elevated trust level.
func (e *Engine) escalateSession(ctx context.Context, old *session.Session, twoFactor, passkey bool) (string, *session.Session, error) {
	rawToken, sess, err := e.issueSession(ctx, old.UserID, old.TwoFactorVerified || twoFactor, old.PasskeyVerified || passkey)
	if err != nil {
		return "", nil, err
	}

	if err := e.sessionStore.Delete(ctx, old.ID); err != nil {
		log.Print("goPasskey: predecessor session cleanup failed after escalation")
	}
	e.metricInc(MetricSessionEscalated)
	return rawToken, sess, nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrUnauthorized
	}

	sessionID := internal.HashToken(token)
	err := e.sessionStore.Delete(ctx, sessionID)
	if err == nil {
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutSession, "", err == nil, "", sessionID, err, nil)
	return err
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}

	err := e.sessionStore.DeleteAllForUser(ctx, userID)
	if err == nil {
		e.metricInc(MetricLogoutAll)
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventLogoutAll, "", err == nil, userID, "", err, nil)
	return err
}

// ChangePassword describes the changepassword operation and its observable behavior.
//
// ChangePassword may return an error when input validation, dependency calls, or security checks fail.
// ChangePassword does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if e == nil || e.passwordHash == nil || e.userProvider == nil {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" || newPassword == "" {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return ErrPasswordPolicy
	}

	user, err := e.userProvider.GetUserByID(userID)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "user_not_found"}
		})
		return ErrInvalidCredentials
	}

	oldOK, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil || !oldOK {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "invalid_old_password"}
		})
		return ErrInvalidCredentials
	}

	samePassword, err := e.passwordHash.Verify(newPassword, user.PasswordHash)
	if err == nil && samePassword {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	newHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": "hash_policy"}
		})
		return ErrPasswordPolicy
	}

	if err := e.userProvider.UpdatePasswordHash(userID, newHash); err != nil {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", err, func() map[string]string {
			return map[string]string{"reason": "update_hash_failed"}
		})
		return err
	}

	if err := e.LogoutAll(ctx, userID); err != nil {
		log.Print("goPasskey: session invalidation failed after password change")
		e.emitAudit(ctx, auditEventPasswordChangeFailure, auditFactorPassword, false, userID, "", ErrSessionInvalidationFailed, func() map[string]string {
			return map[string]string{"reason": "session_invalidation_failed"}
		})
		return errors.Join(ErrSessionInvalidationFailed, err)
	}

	if user.Identifier != "" {
		// Limiter reset is best-effort and must not block successful password change.
		if err := e.loginThrottle.Reset(ctx, user.Identifier); err != nil {
			log.Print("goPasskey: login throttle reset failed after password change")
		}
	}

	oldPassword = ""
	newPassword = ""
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, auditFactorPassword, true, userID, "", nil, nil)

	return nil
}
