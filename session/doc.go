// Package session implements the Redis-backed session store: persistence,
// lazy expiration, sliding renewal inside the final window, and per-user
// session indexing for bulk invalidation.
//
// # Storage model
//
// Sessions are stored under the SHA-256 hash of the bearer token, never the
// token itself. The value is a compact versioned binary blob ([Encode] /
// [Decode]) carrying the user ID, factor-verification flags, and the
// creation and expiry timestamps. A per-user Redis set indexes session IDs
// so DeleteAllForUser can invalidate everything a user holds.
//
// # Expiration
//
// Every record carries its own expiry timestamp in addition to the Redis
// TTL. Reads check the embedded timestamp first and delete stale records
// they encounter, so a drifted or missing TTL can never resurrect a
// session. When a read lands inside the renewal window the expiry is pushed
// out to a full lifetime again and the record is rewritten.
//
// # What this package must NOT do
//
//   - Decide factor policy (what "fully verified" means lives in the engine).
//   - See raw bearer tokens; callers pass the hashed ID.
//   - Import goPasskey or any sibling package.
package session
