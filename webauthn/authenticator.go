package webauthn

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
)

// Authenticator data flag bits from the WebAuthn level 2 spec, §6.1.
const (
	flagUserPresent        = 0x01
	flagUserVerified       = 0x04
	flagAttestedCredential = 0x40
	flagExtensionData      = 0x80
)

const authDataMinLen = 37

// AttestedCredential is the credential block present in registration
// ceremonies when the AT flag is set.
type AttestedCredential struct {
	AAGUID       [16]byte
	CredentialID []byte
	PublicKey    PublicKey
}

// AuthenticatorData is the parsed fixed-layout authenticator data structure:
// a 32-byte relying-party ID hash, one flag byte, a big-endian 32-bit
// signature counter, and (registration only) the attested credential block.
type AuthenticatorData struct {
	RPIDHash  [32]byte
	Flags     byte
	SignCount uint32

	// Credential is non-nil only when the attested-credential flag was set.
	Credential *AttestedCredential
}

// UserPresent reports whether the authenticator observed user presence.
func (a *AuthenticatorData) UserPresent() bool { return a.Flags&flagUserPresent != 0 }

// UserVerified reports whether the authenticator performed user
// verification (PIN, biometric).
func (a *AuthenticatorData) UserVerified() bool { return a.Flags&flagUserVerified != 0 }

// ParseAuthenticatorData decodes raw authenticator data. Registration
// ceremonies must carry an attested credential block; assertion ceremonies
// must not. Trailing bytes are tolerated only when the extension-data flag
// is set, since extensions are opaque CBOR this package does not interpret.
func ParseAuthenticatorData(data []byte) (*AuthenticatorData, error) {
	if len(data) < authDataMinLen {
		return nil, ErrInvalidInput
	}
	out := &AuthenticatorData{
		Flags:     data[32],
		SignCount: binary.BigEndian.Uint32(data[33:37]),
	}
	copy(out.RPIDHash[:], data[:32])

	rest := data[authDataMinLen:]
	if out.Flags&flagAttestedCredential != 0 {
		if len(rest) < 18 {
			return nil, ErrInvalidInput
		}
		cred := &AttestedCredential{}
		copy(cred.AAGUID[:], rest[:16])
		idLen := int(binary.BigEndian.Uint16(rest[16:18]))
		rest = rest[18:]
		if idLen == 0 || len(rest) < idLen {
			return nil, ErrInvalidInput
		}
		cred.CredentialID = append([]byte(nil), rest[:idLen]...)
		rest = rest[idLen:]

		key, consumed, err := parseCOSEKey(rest)
		if err != nil {
			return nil, err
		}
		cred.PublicKey = key
		rest = rest[consumed:]
		out.Credential = cred
	}
	if len(rest) > 0 && out.Flags&flagExtensionData == 0 {
		return nil, ErrInvalidInput
	}
	return out, nil
}

// VerifyBinding checks the authenticator data against the relying party:
// the RP ID hash must match and the authenticator must report both user
// presence and user verification. Every ceremony runs this check before
// any signature work.
func (a *AuthenticatorData) VerifyBinding(rpID string) error {
	want := sha256.Sum256([]byte(rpID))
	if subtle.ConstantTimeCompare(want[:], a.RPIDHash[:]) != 1 {
		return ErrRelyingPartyMismatch
	}
	if !a.UserPresent() || !a.UserVerified() {
		return ErrUserNotVerified
	}
	return nil
}

// SignedMessage builds the byte string a WebAuthn signature covers:
// authenticator data concatenated with SHA-256 of the client data JSON.
func SignedMessage(rawAuthData, clientDataJSON []byte) []byte {
	clientHash := sha256.Sum256(clientDataJSON)
	msg := make([]byte, 0, len(rawAuthData)+sha256.Size)
	msg = append(msg, rawAuthData...)
	msg = append(msg, clientHash[:]...)
	return msg
}
