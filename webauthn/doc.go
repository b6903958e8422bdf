// Package webauthn implements the state-free WebAuthn verification pipeline:
// authenticator-data parsing, COSE public-key decoding, client-data checks,
// and ES256/RS256 signature verification.
//
// # Design
//
// The package holds no storage and performs no I/O. Each ceremony is verified
// from raw bytes already decoded from their transport encoding. The COSE
// algorithm branch is resolved exactly once at parse time into a [PublicKey]
// variant ([ES256Key] or [RS256Key]); verification afterwards is a single
// method call that returns a boolean and never panics on malformed
// signatures.
//
// # Architecture boundaries
//
// Challenge redemption, credential storage, and session issuance belong to
// the root engine. This package only answers "does this binary blob verify
// against this key for this relying party".
//
// # What this package must NOT do
//
//   - Accept attestation formats other than "none".
//   - Surface cryptographic mismatches as errors; a bad signature is false.
//   - Import goPasskey or any sibling package.
package webauthn
