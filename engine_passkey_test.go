package goPasskey

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/MrEthical07/goPasskey/webauthn"
)

// testAuthenticator plays the browser/authenticator side of the WebAuthn
// ceremonies with a real P-256 key.
type testAuthenticator struct {
	key          *ecdsa.PrivateKey
	credentialID []byte
}

func newTestAuthenticator(t *testing.T) *testAuthenticator {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey failed: %v", err)
	}
	return &testAuthenticator{
		key:          key,
		credentialID: []byte("test-credential-0001"),
	}
}

func (a *testAuthenticator) coseKey(t *testing.T) []byte {
	t.Helper()

	x := a.key.PublicKey.X.FillBytes(make([]byte, 32))
	y := a.key.PublicKey.Y.FillBytes(make([]byte, 32))

	encoded, err := cbor.Marshal(map[int]any{
		1:  2,  // kty: EC2
		3:  -7, // alg: ES256
		-1: 1,  // crv: P-256
		-2: x,
		-3: y,
	})
	if err != nil {
		t.Fatalf("cbor.Marshal COSE key failed: %v", err)
	}
	return encoded
}

// authenticatorData builds the fixed-layout authenticator data blob. The
// attested credential block is appended only for registration.
func (a *testAuthenticator) authenticatorData(t *testing.T, rpID string, attested bool) []byte {
	t.Helper()

	rpIDHash := sha256.Sum256([]byte(rpID))

	var flags byte = 0x01 | 0x04 // UP | UV
	if attested {
		flags |= 0x40 // AT
	}

	data := make([]byte, 0, 128)
	data = append(data, rpIDHash[:]...)
	data = append(data, flags)
	data = binary.BigEndian.AppendUint32(data, 1) // sign count

	if attested {
		var aaguid [16]byte
		data = append(data, aaguid[:]...)
		data = binary.BigEndian.AppendUint16(data, uint16(len(a.credentialID)))
		data = append(data, a.credentialID...)
		data = append(data, a.coseKey(t)...)
	}
	return data
}

func (a *testAuthenticator) attestationObject(t *testing.T, rpID string) []byte {
	t.Helper()

	encoded, err := cbor.Marshal(map[string]any{
		"fmt":      "none",
		"attStmt":  map[string]any{},
		"authData": a.authenticatorData(t, rpID, true),
	})
	if err != nil {
		t.Fatalf("cbor.Marshal attestation failed: %v", err)
	}
	return encoded
}

func (a *testAuthenticator) sign(t *testing.T, authData, clientDataJSON []byte) []byte {
	t.Helper()

	digest := sha256.Sum256(webauthn.SignedMessage(authData, clientDataJSON))
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, digest[:])
	if err != nil {
		t.Fatalf("ecdsa.SignASN1 failed: %v", err)
	}
	return sig
}

func clientDataJSON(t *testing.T, ceremony webauthn.CeremonyType, challenge, origin string) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"type":      string(ceremony),
		"challenge": challenge,
		"origin":    origin,
	})
	if err != nil {
		t.Fatalf("json.Marshal client data failed: %v", err)
	}
	return raw
}

const testOrigin = "http://localhost:8080"

func passkeySession(t *testing.T, env *testEnv) *LoginResult {
	t.Helper()

	env.seedUser(t, "user-1", "alice@example.com", "correct-horse-battery", true, false)
	result, err := env.engine.Login(context.Background(), "alice@example.com", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return result
}

func registerPasskey(t *testing.T, env *testEnv, token string, auth *testAuthenticator) {
	t.Helper()

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyRegistration(ctx, token)
	if err != nil {
		t.Fatalf("BeginPasskeyRegistration failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyCreate, challenge.Challenge, testOrigin)
	err = env.engine.FinishPasskeyRegistration(ctx, token, PasskeyRegistrationRequest{
		ChallengeID:       challenge.ChallengeID,
		AttestationObject: b64url.EncodeToString(auth.attestationObject(t, "localhost")),
		ClientDataJSON:    b64url.EncodeToString(clientData),
		Name:              "test-key",
	})
	if err != nil {
		t.Fatalf("FinishPasskeyRegistration failed: %v", err)
	}
}

func TestPasskeyRegistrationAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)

	ctx := context.Background()
	registerPasskey(t, env, login.SessionToken, auth)

	stored, err := env.engine.ListPasskeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPasskeys failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Name != "test-key" || stored[0].Algorithm != webauthn.AlgES256 {
		t.Fatalf("unexpected stored credential: %+v", stored)
	}

	challenge, err := env.engine.BeginPasskeyLogin(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyLogin failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyGet, challenge.Challenge, testOrigin)
	authData := auth.authenticatorData(t, "localhost", false)
	result, err := env.engine.FinishPasskeyLogin(ctx, login.SessionToken, PasskeyAssertionRequest{
		ChallengeID:       challenge.ChallengeID,
		CredentialID:      b64url.EncodeToString(auth.credentialID),
		AuthenticatorData: b64url.EncodeToString(authData),
		ClientDataJSON:    b64url.EncodeToString(clientData),
		Signature:         b64url.EncodeToString(auth.sign(t, authData, clientData)),
	})
	if err != nil {
		t.Fatalf("FinishPasskeyLogin failed: %v", err)
	}
	if result.SessionToken == login.SessionToken {
		t.Fatal("passkey escalation must issue a new token")
	}

	if _, err := env.engine.ValidateSession(ctx, login.SessionToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old token to be gone, got %v", err)
	}
	info, err := env.engine.ValidateSession(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("ValidateSession failed: %v", err)
	}
	if !info.PasskeyVerified || !info.FullyVerified {
		t.Fatalf("expected passkey-verified session, got %+v", info)
	}
}

func TestPasskeyChallengeSingleUse(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)
	registerPasskey(t, env, login.SessionToken, auth)

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyLogin(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyLogin failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyGet, challenge.Challenge, testOrigin)
	authData := auth.authenticatorData(t, "localhost", false)
	req := PasskeyAssertionRequest{
		ChallengeID:       challenge.ChallengeID,
		CredentialID:      b64url.EncodeToString(auth.credentialID),
		AuthenticatorData: b64url.EncodeToString(authData),
		ClientDataJSON:    b64url.EncodeToString(clientData),
		Signature:         b64url.EncodeToString(auth.sign(t, authData, clientData)),
	}

	result, err := env.engine.FinishPasskeyLogin(ctx, login.SessionToken, req)
	if err != nil {
		t.Fatalf("FinishPasskeyLogin failed: %v", err)
	}

	// A perfect replay of the same assertion fails: the challenge record
	// was burned by the first redemption.
	_, err = env.engine.FinishPasskeyLogin(ctx, result.SessionToken, req)
	if !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid on replay, got %v", err)
	}
}

func TestPasskeyWrongSignature(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)
	registerPasskey(t, env, login.SessionToken, auth)

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyLogin(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyLogin failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyGet, challenge.Challenge, testOrigin)
	authData := auth.authenticatorData(t, "localhost", false)

	// Sign with a different key than the registered one.
	intruder := newTestAuthenticator(t)
	_, err = env.engine.FinishPasskeyLogin(ctx, login.SessionToken, PasskeyAssertionRequest{
		ChallengeID:       challenge.ChallengeID,
		CredentialID:      b64url.EncodeToString(auth.credentialID),
		AuthenticatorData: b64url.EncodeToString(authData),
		ClientDataJSON:    b64url.EncodeToString(clientData),
		Signature:         b64url.EncodeToString(intruder.sign(t, authData, clientData)),
	})
	if !errors.Is(err, ErrPasskeyInvalid) {
		t.Fatalf("expected ErrPasskeyInvalid, got %v", err)
	}
}

func TestPasskeyWrongOriginRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyRegistration(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyRegistration failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyCreate, challenge.Challenge, "https://evil.example")
	err = env.engine.FinishPasskeyRegistration(ctx, login.SessionToken, PasskeyRegistrationRequest{
		ChallengeID:       challenge.ChallengeID,
		AttestationObject: b64url.EncodeToString(auth.attestationObject(t, "localhost")),
		ClientDataJSON:    b64url.EncodeToString(clientData),
	})
	if !errors.Is(err, ErrPasskeyInvalid) {
		t.Fatalf("expected ErrPasskeyInvalid, got %v", err)
	}
}

func TestPasskeyDuplicateRegistration(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)
	registerPasskey(t, env, login.SessionToken, auth)

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyRegistration(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyRegistration failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyCreate, challenge.Challenge, testOrigin)
	err = env.engine.FinishPasskeyRegistration(ctx, login.SessionToken, PasskeyRegistrationRequest{
		ChallengeID:       challenge.ChallengeID,
		AttestationObject: b64url.EncodeToString(auth.attestationObject(t, "localhost")),
		ClientDataJSON:    b64url.EncodeToString(clientData),
	})
	if !errors.Is(err, ErrPasskeyExists) {
		t.Fatalf("expected ErrPasskeyExists, got %v", err)
	}
}

func TestPasskeyUnknownCredential(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)
	// No registration: the credential ID resolves to nothing.

	ctx := context.Background()
	challenge, err := env.engine.BeginPasskeyLogin(ctx, login.SessionToken)
	if err != nil {
		t.Fatalf("BeginPasskeyLogin failed: %v", err)
	}

	clientData := clientDataJSON(t, webauthn.CeremonyGet, challenge.Challenge, testOrigin)
	authData := auth.authenticatorData(t, "localhost", false)
	_, err = env.engine.FinishPasskeyLogin(ctx, login.SessionToken, PasskeyAssertionRequest{
		ChallengeID:       challenge.ChallengeID,
		CredentialID:      b64url.EncodeToString(auth.credentialID),
		AuthenticatorData: b64url.EncodeToString(authData),
		ClientDataJSON:    b64url.EncodeToString(clientData),
		Signature:         b64url.EncodeToString(auth.sign(t, authData, clientData)),
	})
	if !errors.Is(err, ErrPasskeyInvalid) {
		t.Fatalf("expected ErrPasskeyInvalid, got %v", err)
	}
}

func TestPasskeyRenameAndRemove(t *testing.T) {
	env := newTestEnv(t, nil)
	login := passkeySession(t, env)
	auth := newTestAuthenticator(t)
	registerPasskey(t, env, login.SessionToken, auth)

	ctx := context.Background()
	encodedID := b64url.EncodeToString(auth.credentialID)

	if err := env.engine.RenamePasskey(ctx, "user-1", encodedID, "work laptop"); err != nil {
		t.Fatalf("RenamePasskey failed: %v", err)
	}
	stored, err := env.engine.ListPasskeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPasskeys failed: %v", err)
	}
	if len(stored) != 1 || stored[0].Name != "work laptop" {
		t.Fatalf("unexpected credential state: %+v", stored)
	}

	if err := env.engine.RenamePasskey(ctx, "user-1", encodedID, ""); !errors.Is(err, ErrPasskeyInvalid) {
		t.Fatalf("expected empty name to be rejected, got %v", err)
	}

	if err := env.engine.RemovePasskey(ctx, "user-1", encodedID); err != nil {
		t.Fatalf("RemovePasskey failed: %v", err)
	}
	stored, err = env.engine.ListPasskeys(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPasskeys failed: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected no credentials after removal, got %d", len(stored))
	}
}
