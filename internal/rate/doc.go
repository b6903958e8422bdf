// Package rate provides the Redis-backed rate limit primitives the
// authentication engine composes: a constant-refill token bucket, a
// fixed-window counter, and an escalating failure throttler.
//
// # Window semantics
//
// The token bucket stores remaining tokens plus the last refill timestamp in
// a Redis hash and refills one token per configured interval on read. The
// fixed-window counter is INCR + conditional EXPIRE on first hit. The
// throttler stores a failure count and a block deadline; each failure past
// the grace allowance advances through the timeout sequence, and the whole
// record expires at the cutoff horizon.
//
// Bucket and throttler updates are read-modify-write without a transaction.
// Two concurrent callers can each observe the last token and both pass; the
// limiters bound abuse rates, they are not exact accounting.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (which key a login throttles on,
//     what error the caller surfaces).
//   - Be imported outside the goPasskey module.
package rate
