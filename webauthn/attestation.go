package webauthn

import "github.com/fxamacker/cbor/v2"

// attestationObject is the CBOR envelope produced by navigator.credentials
// during registration.
type attestationObject struct {
	Format   string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
	AuthData []byte          `cbor:"authData"`
}

// Attestation is a parsed registration attestation object. RawAuthData is
// kept alongside the parsed view because it feeds [SignedMessage] verbatim.
type Attestation struct {
	AuthData    *AuthenticatorData
	RawAuthData []byte
}

// ParseAttestation decodes an attestation object and enforces the "none"
// format: any statement payload or other format string is rejected, since
// accepting unverified attestation statements would imply a device trust
// this package does not establish. The attested credential block is
// required.
func ParseAttestation(data []byte) (*Attestation, error) {
	var obj attestationObject
	if err := cbor.Unmarshal(data, &obj); err != nil {
		return nil, ErrInvalidInput
	}
	if obj.Format != "none" {
		return nil, ErrUnsupportedAttestation
	}
	if len(obj.AttStmt) > 0 {
		var stmt map[string]cbor.RawMessage
		if err := cbor.Unmarshal(obj.AttStmt, &stmt); err != nil || len(stmt) != 0 {
			return nil, ErrUnsupportedAttestation
		}
	}
	auth, err := ParseAuthenticatorData(obj.AuthData)
	if err != nil {
		return nil, err
	}
	if auth.Credential == nil {
		return nil, ErrInvalidInput
	}
	return &Attestation{AuthData: auth, RawAuthData: obj.AuthData}, nil
}
