package webauthn

import "errors"

var (
	// ErrInvalidInput is returned for malformed binary or JSON structures.
	// It indicates a protocol violation, not a failed verification.
	ErrInvalidInput = errors.New("webauthn: malformed input")
	// ErrRelyingPartyMismatch is returned when the relying-party ID hash in
	// the authenticator data does not match the configured relying party.
	ErrRelyingPartyMismatch = errors.New("webauthn: relying party mismatch")
	// ErrUserNotVerified is returned when the authenticator did not report
	// both user presence and user verification.
	ErrUserNotVerified = errors.New("webauthn: user not verified")
	// ErrClientDataMismatch is returned when client data carries the wrong
	// ceremony type, an unexpected origin, or a cross-origin flag.
	ErrClientDataMismatch = errors.New("webauthn: client data mismatch")
	// ErrUnsupportedAlgorithm is returned for COSE keys that are not ES256
	// over P-256 or RS256.
	ErrUnsupportedAlgorithm = errors.New("webauthn: unsupported algorithm")
	// ErrUnsupportedAttestation is returned for attestation statement
	// formats other than "none".
	ErrUnsupportedAttestation = errors.New("webauthn: unsupported attestation format")
)
