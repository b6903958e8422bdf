// Package goPasskey provides the credential-verification and session-trust core
// for multi-factor authentication flows: Argon2id password verification, WebAuthn
// passkey registration and assertion (COSE key decoding, ES256/RS256 signature
// verification), TOTP second factors, single-use password-reset tokens, and
// Redis-backed rate limiting with token buckets and escalating throttlers.
//
// The package is designed for concurrent server workloads: Engine methods are safe
// to call from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goPasskey is the public surface. It exposes [Engine], [Builder], [Config], and
// value types (LoginResult, SessionInfo, PasskeyCredential, etc.). Rate limiting
// and audit dispatch live under internal/ and are never exported. WebAuthn binary
// parsing lives in the webauthn sub-package because its types appear in provider
// contracts, and the session store lives in the session sub-package so operational
// tooling can drive it directly.
//
// # What this package must NOT do
//
//   - Render pages, send email, or own relational schema. Those collaborators are
//     injected through [UserProvider] and [PasskeyProvider].
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Distinguish "unknown user" from "wrong password" anywhere a caller could
//     observe the difference.
package goPasskey
