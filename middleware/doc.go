// Package middleware exposes HTTP middleware adapters for session-backed
// authorization enforcement built on top of goPasskey.Engine validation.
//
// # Guards
//
//   - [Guard]: accepts any live session, including ones still pending a
//     second factor.
//   - [RequireFullyVerified]: rejects sessions whose factor policy is not
//     satisfied yet.
//
// Each guard reads the Authorization header, calls Engine.ValidateSession, and
// injects the validated [goPasskey.SessionInfo] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself: all decisions are delegated to
// Engine.ValidateSession.
//
// # What this package must NOT do
//
//   - Decode session tokens directly (delegates to Engine).
//   - Access Redis (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine.ValidateSession.
package middleware
