// Package internal contains helper utilities that are intentionally private to
// goPasskey, including secure random token generation and hashing helpers.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - rate: Redis-backed rate limit primitives (token bucket, fixed window,
//     escalating throttler)
//
// # What this package must NOT do
//
//   - Export types that appear in the public goPasskey API.
//   - Be imported by any package outside the goPasskey module.
package internal
