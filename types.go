package goPasskey

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/MrEthical07/goPasskey/internal/audit"
	"github.com/MrEthical07/goPasskey/webauthn"
)

// UserRecord is the account record returned by [UserProvider]. It carries the
// credential hash and the factor-requirement attributes the session policy
// evaluates: a user with TOTPEnabled must present a second factor before a
// session is fully verified, and a user with EmailVerified=false is never
// fully verified regardless of factor flags.
type UserRecord struct {
	UserID        string
	Identifier    string
	PasswordHash  string
	EmailVerified bool
	TOTPEnabled   bool
}

// HasTwoFactor reports whether the user's policy requires a second factor.
func (u UserRecord) HasTwoFactor() bool {
	return u.TOTPEnabled
}

// TOTPRecord is retrieved from [UserProvider.GetTOTPSecret]. It carries the
// shared secret, the enabled flag, and the last-used counter for replay
// protection.
type TOTPRecord struct {
	Secret          []byte
	Enabled         bool
	LastUsedCounter int64
}

// UserProvider is the primary interface that callers must implement to
// integrate goPasskey with their user database. It covers credential lookup,
// password updates, and TOTP secret access. Implementations must return an
// error for unknown users; the engine folds that into a generic denial.
type UserProvider interface {
	GetUserByIdentifier(identifier string) (UserRecord, error)
	GetUserByID(userID string) (UserRecord, error)
	UpdatePasswordHash(userID string, newHash string) error
	GetTOTPSecret(ctx context.Context, userID string) (*TOTPRecord, error)
	UpdateTOTPLastUsedCounter(ctx context.Context, userID string, counter int64) error
}

// PasskeyCredential is a stored WebAuthn public-key credential. Immutable
// after registration except Name.
type PasskeyCredential struct {
	CredentialID []byte
	UserID       string
	Algorithm    webauthn.Algorithm
	PublicKey    []byte
	Name         string
	CreatedAt    time.Time
}

// PasskeyProvider is the relational contract for passkey credential storage.
// GetCredential must return (nil, nil) when no credential matches both the
// credential ID and the user ID: the engine treats that as a fail-closed
// verification failure, not an error.
type PasskeyProvider interface {
	GetCredential(ctx context.Context, credentialID []byte, userID string) (*PasskeyCredential, error)
	SaveCredential(ctx context.Context, cred PasskeyCredential) error
	DeleteCredential(ctx context.Context, credentialID []byte, userID string) error
	ListCredentials(ctx context.Context, userID string) ([]PasskeyCredential, error)
	RenameCredential(ctx context.Context, credentialID []byte, userID, name string) error
}

// LoginResult is returned by [Engine.Login], [Engine.VerifyTOTP], and
// [Engine.FinishPasskeyLogin]. SessionToken is the raw opaque token the
// caller sets as a cookie; only its hash is ever persisted. When
// SecondFactorRequired is true the session exists in a pending state and
// must be escalated before the user is fully authenticated.
type LoginResult struct {
	SessionToken string
	UserID       string

	SecondFactorRequired bool
}

// SessionInfo is the validated session view returned by
// [Engine.ValidateSession].
type SessionInfo struct {
	ID                string
	UserID            string
	ExpiresAt         time.Time
	TwoFactorVerified bool
	PasskeyVerified   bool
	FullyVerified     bool
}

// PasskeyChallenge is returned by the Begin* ceremony methods. Challenge is
// the raw value the browser signs; ChallengeID identifies the single-use
// server-side record and must be echoed back in the Finish* request.
type PasskeyChallenge struct {
	ChallengeID string
	Challenge   string
}

// PasskeyRegistrationRequest carries the browser's registration ceremony
// response. AttestationObject and ClientDataJSON are base64url-encoded as
// produced by the WebAuthn API.
type PasskeyRegistrationRequest struct {
	ChallengeID       string
	AttestationObject string
	ClientDataJSON    string
	Name              string
}

// PasskeyAssertionRequest carries the browser's authentication ceremony
// response. All binary fields are base64url-encoded.
type PasskeyAssertionRequest struct {
	ChallengeID       string
	CredentialID      string
	AuthenticatorData string
	ClientDataJSON    string
	Signature         string
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
