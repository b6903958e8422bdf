package goPasskey

import (
	"bytes"
	"context"
	"encoding/base64"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goPasskey/internal"
	"github.com/MrEthical07/goPasskey/session"
	"github.com/MrEthical07/goPasskey/webauthn"
)

var b64url = base64.RawURLEncoding

// BeginPasskeyRegistration describes the beginpasskeyregistration operation and its observable behavior.
//
// BeginPasskeyRegistration issues a single-use challenge bound to the
// session's user. The raw challenge is returned base64url-encoded for the
// browser ceremony; only its hash is stored server-side.
//
// BeginPasskeyRegistration may return an error when input validation, dependency calls, or security checks fail.
// BeginPasskeyRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginPasskeyRegistration(ctx context.Context, sessionToken string) (*PasskeyChallenge, error) {
	if e == nil || e.challengeStore == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.getSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	return e.issueChallenge(ctx, challengePurposeRegister, sess.UserID)
}

// BeginPasskeyLogin describes the beginpasskeylogin operation and its observable behavior.
//
// BeginPasskeyLogin issues a single-use assertion challenge for the session's
// user. The session may still be pending a second factor; completing the
// assertion via [Engine.FinishPasskeyLogin] is what escalates it.
//
// BeginPasskeyLogin may return an error when input validation, dependency calls, or security checks fail.
// BeginPasskeyLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) BeginPasskeyLogin(ctx context.Context, sessionToken string) (*PasskeyChallenge, error) {
	if e == nil || e.challengeStore == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.getSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	return e.issueChallenge(ctx, challengePurposeLogin, sess.UserID)
}

func (e *Engine) issueChallenge(ctx context.Context, purpose challengePurpose, userID string) (*PasskeyChallenge, error) {
	challengeID, challenge, err := e.challengeStore.Issue(ctx, purpose, userID)
	if err != nil {
		return nil, ErrPasskeyUnavailable
	}

	e.metricInc(MetricChallengeIssued)
	return &PasskeyChallenge{
		ChallengeID: challengeID,
		Challenge:   b64url.EncodeToString(challenge),
	}, nil
}

// redeemChallenge burns the challenge record and checks purpose, user
// binding, and that the hash of the challenge echoed inside clientData
// matches what was issued. Any mismatch after the burn leaves the
// challenge unusable, which is the intended fail-closed behavior.
func (e *Engine) redeemChallenge(
	ctx context.Context,
	challengeID string,
	purpose challengePurpose,
	userID string,
	clientData *webauthn.ClientData,
) error {
	record, err := e.challengeStore.Redeem(ctx, challengeID)
	if err != nil {
		e.metricInc(MetricChallengeRejected)
		if err == errChallengeNotFound {
			return ErrChallengeInvalid
		}
		return ErrPasskeyUnavailable
	}

	echoed, err := b64url.DecodeString(clientData.Challenge)
	if err != nil {
		e.metricInc(MetricChallengeRejected)
		return ErrChallengeInvalid
	}
	echoedHash := internal.HashBytes(echoed)

	if record.Purpose != purpose ||
		record.UserID != userID ||
		!bytes.Equal(echoedHash[:], record.ChallengeHash[:]) {
		e.metricInc(MetricChallengeRejected)
		return ErrChallengeInvalid
	}

	return nil
}

// FinishPasskeyRegistration describes the finishpasskeyregistration operation and its observable behavior.
//
// FinishPasskeyRegistration verifies the browser's attestation response
// against the issued challenge and persists the new credential through the
// [PasskeyProvider]. Only "none" attestation is accepted and a credential ID
// already registered for the user is rejected with [ErrPasskeyExists].
//
// FinishPasskeyRegistration may return an error when input validation, dependency calls, or security checks fail.
// FinishPasskeyRegistration does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishPasskeyRegistration(ctx context.Context, sessionToken string, req PasskeyRegistrationRequest) error {
	if e == nil || e.challengeStore == nil || e.passkeyProvider == nil {
		return ErrEngineNotReady
	}
	sess, err := e.getSession(ctx, sessionToken)
	if err != nil {
		return err
	}

	if err := e.takePasskeyAttempt(ctx, sess.UserID, sess.ID); err != nil {
		return err
	}

	credential, err := e.verifyRegistration(ctx, sess.UserID, req)
	if err != nil {
		e.emitAudit(ctx, auditEventPasskeyRegisterFailure, auditFactorPasskey, false, sess.UserID, sess.ID, err, nil)
		return err
	}

	existing, err := e.passkeyProvider.GetCredential(ctx, credential.CredentialID, sess.UserID)
	if err != nil {
		return ErrPasskeyUnavailable
	}
	if existing != nil {
		e.emitAudit(ctx, auditEventPasskeyRegisterFailure, auditFactorPasskey, false, sess.UserID, sess.ID, ErrPasskeyExists, nil)
		return ErrPasskeyExists
	}

	if err := e.passkeyProvider.SaveCredential(ctx, *credential); err != nil {
		e.emitAudit(ctx, auditEventPasskeyRegisterFailure, auditFactorPasskey, false, sess.UserID, sess.ID, err, func() map[string]string {
			return map[string]string{"reason": "save_failed"}
		})
		return ErrPasskeyUnavailable
	}

	if err := e.passkeyLimiter.Reset(ctx, sess.UserID); err != nil {
		log.Print("goPasskey: passkey limiter reset failed")
	}

	e.metricInc(MetricPasskeyRegistered)
	e.emitAudit(ctx, auditEventPasskeyRegistered, auditFactorPasskey, true, sess.UserID, sess.ID, nil, func() map[string]string {
		return map[string]string{"credential_name": credential.Name}
	})

	return nil
}

func (e *Engine) verifyRegistration(ctx context.Context, userID string, req PasskeyRegistrationRequest) (*PasskeyCredential, error) {
	clientDataJSON, err := b64url.DecodeString(req.ClientDataJSON)
	if err != nil {
		return nil, ErrPasskeyInvalid
	}
	attestationBytes, err := b64url.DecodeString(req.AttestationObject)
	if err != nil {
		return nil, ErrPasskeyInvalid
	}

	clientData, err := webauthn.ParseClientData(clientDataJSON)
	if err != nil {
		return nil, ErrPasskeyInvalid
	}
	if err := clientData.Verify(webauthn.CeremonyCreate, e.config.Passkey.Origin); err != nil {
		return nil, ErrPasskeyInvalid
	}

	if err := e.redeemChallenge(ctx, req.ChallengeID, challengePurposeRegister, userID, clientData); err != nil {
		return nil, err
	}

	attestation, err := webauthn.ParseAttestation(attestationBytes)
	if err != nil {
		return nil, ErrPasskeyInvalid
	}
	if err := attestation.AuthData.VerifyBinding(e.config.Passkey.RelyingPartyID); err != nil {
		return nil, ErrPasskeyInvalid
	}

	attested := attestation.AuthData.Credential
	name := req.Name
	if name == "" {
		name = "passkey-" + uuid.NewString()[:8]
	}

	return &PasskeyCredential{
		CredentialID: attested.CredentialID,
		UserID:       userID,
		Algorithm:    attested.PublicKey.Algorithm(),
		PublicKey:    attested.PublicKey.Encode(),
		Name:         name,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// FinishPasskeyLogin describes the finishpasskeylogin operation and its observable behavior.
//
// FinishPasskeyLogin verifies the browser's assertion against the issued
// challenge and the stored credential public key. On success the session is
// replaced by a new one carrying the passkey-verified flag and the returned
// [LoginResult] holds the replacement token. Every verification failure is
// the same [ErrPasskeyInvalid]; callers learn nothing about which check
// failed.
//
// FinishPasskeyLogin may return an error when input validation, dependency calls, or security checks fail.
// FinishPasskeyLogin does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) FinishPasskeyLogin(ctx context.Context, sessionToken string, req PasskeyAssertionRequest) (*LoginResult, error) {
	if e == nil || e.challengeStore == nil || e.passkeyProvider == nil {
		return nil, ErrEngineNotReady
	}
	sess, err := e.getSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	if err := e.takePasskeyAttempt(ctx, sess.UserID, sess.ID); err != nil {
		return nil, err
	}

	if err := e.verifyAssertion(ctx, sess, req); err != nil {
		e.metricInc(MetricPasskeyLoginFailure)
		e.emitAudit(ctx, auditEventPasskeyLoginFailure, auditFactorPasskey, false, sess.UserID, sess.ID, err, nil)
		return nil, err
	}

	rawToken, escalated, err := e.escalateSession(ctx, sess, false, true)
	if err != nil {
		e.emitAudit(ctx, auditEventPasskeyLoginFailure, auditFactorPasskey, false, sess.UserID, sess.ID, err, func() map[string]string {
			return map[string]string{"reason": "session_escalation_failed"}
		})
		return nil, ErrSessionUnavailable
	}

	if err := e.passkeyLimiter.Reset(ctx, sess.UserID); err != nil {
		log.Print("goPasskey: passkey limiter reset failed")
	}

	e.metricInc(MetricPasskeyLoginSuccess)
	e.emitAudit(ctx, auditEventPasskeyLoginSuccess, auditFactorPasskey, true, sess.UserID, escalated.ID, nil, nil)
	e.emitAudit(ctx, auditEventSessionEscalated, auditFactorPasskey, true, sess.UserID, escalated.ID, nil, nil)

	return &LoginResult{
		SessionToken: rawToken,
		UserID:       sess.UserID,
	}, nil
}

func (e *Engine) verifyAssertion(ctx context.Context, sess *session.Session, req PasskeyAssertionRequest) error {
	clientDataJSON, err := b64url.DecodeString(req.ClientDataJSON)
	if err != nil {
		return ErrPasskeyInvalid
	}
	rawAuthData, err := b64url.DecodeString(req.AuthenticatorData)
	if err != nil {
		return ErrPasskeyInvalid
	}
	credentialID, err := b64url.DecodeString(req.CredentialID)
	if err != nil {
		return ErrPasskeyInvalid
	}
	signature, err := b64url.DecodeString(req.Signature)
	if err != nil {
		return ErrPasskeyInvalid
	}

	clientData, err := webauthn.ParseClientData(clientDataJSON)
	if err != nil {
		return ErrPasskeyInvalid
	}
	if err := clientData.Verify(webauthn.CeremonyGet, e.config.Passkey.Origin); err != nil {
		return ErrPasskeyInvalid
	}

	if err := e.redeemChallenge(ctx, req.ChallengeID, challengePurposeLogin, sess.UserID, clientData); err != nil {
		return err
	}

	authData, err := webauthn.ParseAuthenticatorData(rawAuthData)
	if err != nil {
		return ErrPasskeyInvalid
	}
	if err := authData.VerifyBinding(e.config.Passkey.RelyingPartyID); err != nil {
		return ErrPasskeyInvalid
	}

	credential, err := e.passkeyProvider.GetCredential(ctx, credentialID, sess.UserID)
	if err != nil {
		return ErrPasskeyUnavailable
	}
	if credential == nil {
		return ErrPasskeyInvalid
	}

	publicKey, err := webauthn.DecodePublicKey(credential.Algorithm, credential.PublicKey)
	if err != nil {
		return ErrPasskeyInvalid
	}

	message := webauthn.SignedMessage(rawAuthData, clientDataJSON)
	if !publicKey.Verify(message, signature) {
		return ErrPasskeyInvalid
	}

	return nil
}

func (e *Engine) takePasskeyAttempt(ctx context.Context, userID, sessionID string) error {
	ok, err := e.passkeyLimiter.Take(ctx, userID)
	if err != nil {
		return ErrPasskeyUnavailable
	}
	if !ok {
		e.metricInc(MetricPasskeyRateLimited)
		e.emitAudit(ctx, auditEventPasskeyLoginFailure, auditFactorPasskey, false, userID, sessionID, ErrPasskeyRateLimited, nil)
		e.emitRateLimit(ctx, "passkey", func() map[string]string {
			return map[string]string{"user_id": userID}
		})
		return ErrPasskeyRateLimited
	}
	return nil
}

// ListPasskeys describes the listpasskeys operation and its observable behavior.
//
// ListPasskeys may return an error when input validation, dependency calls, or security checks fail.
// ListPasskeys does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) ListPasskeys(ctx context.Context, userID string) ([]PasskeyCredential, error) {
	if e == nil || e.passkeyProvider == nil {
		return nil, ErrEngineNotReady
	}
	credentials, err := e.passkeyProvider.ListCredentials(ctx, userID)
	if err != nil {
		return nil, ErrPasskeyUnavailable
	}
	return credentials, nil
}

// RemovePasskey describes the removepasskey operation and its observable behavior.
//
// RemovePasskey may return an error when input validation, dependency calls, or security checks fail.
// RemovePasskey does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RemovePasskey(ctx context.Context, userID, credentialID string) error {
	if e == nil || e.passkeyProvider == nil {
		return ErrEngineNotReady
	}
	decoded, err := b64url.DecodeString(credentialID)
	if err != nil {
		return ErrPasskeyInvalid
	}

	if err := e.passkeyProvider.DeleteCredential(ctx, decoded, userID); err != nil {
		return ErrPasskeyUnavailable
	}

	e.emitAudit(ctx, auditEventPasskeyRemoved, auditFactorPasskey, true, userID, "", nil, func() map[string]string {
		return map[string]string{"credential_id": credentialID}
	})
	return nil
}

// RenamePasskey describes the renamepasskey operation and its observable behavior.
//
// RenamePasskey may return an error when input validation, dependency calls, or security checks fail.
// RenamePasskey does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) RenamePasskey(ctx context.Context, userID, credentialID, name string) error {
	if e == nil || e.passkeyProvider == nil {
		return ErrEngineNotReady
	}
	if name == "" {
		return ErrPasskeyInvalid
	}
	decoded, err := b64url.DecodeString(credentialID)
	if err != nil {
		return ErrPasskeyInvalid
	}

	if err := e.passkeyProvider.RenameCredential(ctx, decoded, userID, name); err != nil {
		return ErrPasskeyUnavailable
	}
	return nil
}
