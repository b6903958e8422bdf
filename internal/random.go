package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// RecordID is the compact random identifier under which server-side records
// (challenges, reset tokens) are stored.
type RecordID [16]byte

const (
	sessionTokenRawSize = 32
	challengeRawSize    = 32
	resetTokenRawSize   = 48
	resetSecretSize     = 32
)

// NewRecordID generates a random record identifier.
func NewRecordID() (RecordID, error) {
	var rid RecordID
	_, err := rand.Read(rid[:])
	return rid, err
}

func (r RecordID) Bytes() []byte {
	return r[:]
}

func (r RecordID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(r[:])
}

// ParseRecordID decodes the base64url form produced by [RecordID.String].
func ParseRecordID(id string) (RecordID, error) {
	var rid RecordID

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return rid, err
	}
	if len(raw) != len(rid) {
		return rid, errors.New("invalid record id size")
	}

	copy(rid[:], raw)
	return rid, nil
}

// NewSessionToken generates the raw opaque session token handed to callers.
// Only [HashToken] of this value is ever written to storage.
func NewSessionToken() (string, error) {
	var raw [sessionTokenRawSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashToken derives the storage key for a bearer token. The raw token never
// touches Redis, so a storage dump cannot be replayed as a credential.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// NewChallenge generates raw WebAuthn challenge bytes.
func NewChallenge() ([]byte, error) {
	raw := make([]byte, challengeRawSize)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// HashBytes returns the SHA-256 digest of b.
func HashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// NewResetSecret generates the secret half of a password-reset token.
func NewResetSecret() ([resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashResetSecret hashes the reset secret for storage.
func HashResetSecret(secret [resetSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeResetToken packs a record ID and its secret into the single opaque
// token delivered to the user, id || secret in base64url.
func EncodeResetToken(resetID string, secret [resetSecretSize]byte) (string, error) {
	rid, err := ParseRecordID(resetID)
	if err != nil {
		return "", err
	}

	var raw [resetTokenRawSize]byte
	copy(raw[:len(rid)], rid[:])
	copy(raw[len(rid):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeResetToken splits an opaque reset token back into the record ID and
// secret. Size mismatches fail before any storage lookup happens.
func DecodeResetToken(token string) (string, [resetSecretSize]byte, error) {
	var secret [resetSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != resetTokenRawSize {
		return "", secret, errors.New("invalid reset token size")
	}

	var rid RecordID
	copy(rid[:], raw[:len(rid)])
	copy(secret[:], raw[len(rid):])

	return rid.String(), secret, nil
}
