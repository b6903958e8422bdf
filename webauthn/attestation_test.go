package webauthn

import (
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func marshalAttestation(t *testing.T, format string, attStmt any, authData []byte) []byte {
	t.Helper()

	encoded, err := cbor.Marshal(map[string]any{
		"fmt":      format,
		"attStmt":  attStmt,
		"authData": authData,
	})
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	return encoded
}

func TestParseAttestationNone(t *testing.T) {
	authData := buildAuthData(t, "example.com", 0x45, 0, []byte("credential-id-001"), testCOSEKeyBytes(t))
	raw := marshalAttestation(t, "none", map[string]any{}, authData)

	att, err := ParseAttestation(raw)
	if err != nil {
		t.Fatalf("ParseAttestation failed: %v", err)
	}
	if att.AuthData.Credential == nil {
		t.Fatal("expected attested credential")
	}
	if string(att.RawAuthData) != string(authData) {
		t.Fatal("RawAuthData must be the verbatim authenticator data")
	}
}

func TestParseAttestationRejectsOtherFormats(t *testing.T) {
	authData := buildAuthData(t, "example.com", 0x45, 0, []byte("credential-id-001"), testCOSEKeyBytes(t))

	for _, format := range []string{"packed", "fido-u2f", "tpm", "android-key"} {
		raw := marshalAttestation(t, format, map[string]any{}, authData)
		if _, err := ParseAttestation(raw); !errors.Is(err, ErrUnsupportedAttestation) {
			t.Errorf("%s: expected ErrUnsupportedAttestation, got %v", format, err)
		}
	}
}

func TestParseAttestationRejectsNonEmptyStatement(t *testing.T) {
	authData := buildAuthData(t, "example.com", 0x45, 0, []byte("credential-id-001"), testCOSEKeyBytes(t))

	// "none" with a statement payload is a contradiction.
	raw := marshalAttestation(t, "none", map[string]any{"sig": []byte{1, 2, 3}}, authData)
	if _, err := ParseAttestation(raw); !errors.Is(err, ErrUnsupportedAttestation) {
		t.Fatalf("expected ErrUnsupportedAttestation, got %v", err)
	}
}

func TestParseAttestationRequiresCredential(t *testing.T) {
	// Assertion-shaped authenticator data inside an attestation object.
	authData := buildAuthData(t, "example.com", 0x05, 0, nil, nil)
	raw := marshalAttestation(t, "none", map[string]any{}, authData)

	if _, err := ParseAttestation(raw); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestParseAttestationRejectsGarbage(t *testing.T) {
	if _, err := ParseAttestation([]byte{0xff, 0x00, 0x01}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
