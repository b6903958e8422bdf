package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldFailures = "failures"
	fieldBlocked  = "blocked_until"
)

// Throttler escalates lockout durations across consecutive failures. The
// first Grace failures cost nothing; each failure after that blocks the key
// for the next duration in Timeouts, with the final entry repeating once
// the sequence is exhausted. A success resets the key instantly, and the
// whole record expires Cutoff after the last failure so abandoned lockouts
// decay on their own.
type Throttler struct {
	redis    redis.UniversalClient
	prefix   string
	timeouts []time.Duration
	grace    int
	cutoff   time.Duration

	// Now is the clock used for block deadlines. Overridable in tests.
	Now func() time.Time
}

// NewThrottler creates an escalating throttler. timeouts must be non-empty.
func NewThrottler(redisClient redis.UniversalClient, prefix string, timeouts []time.Duration, grace int, cutoff time.Duration) *Throttler {
	return &Throttler{
		redis:    redisClient,
		prefix:   prefix,
		timeouts: timeouts,
		grace:    grace,
		cutoff:   cutoff,
		Now:      time.Now,
	}
}

func (t *Throttler) key(id string) string {
	return t.prefix + ":" + id
}

// Check reports how long id remains blocked. Zero means the attempt may
// proceed; a positive duration is the retry-after the caller should surface.
func (t *Throttler) Check(ctx context.Context, id string) (time.Duration, error) {
	vals, err := t.redis.HGetAll(ctx, t.key(id)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) == 0 {
		return 0, nil
	}

	nanos, err := strconv.ParseInt(vals[fieldBlocked], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: corrupt throttle state", ErrRedisUnavailable)
	}
	until := time.Unix(0, nanos)

	remaining := until.Sub(t.Now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Fail records a failed attempt for id and returns the block duration the
// failure produced. Failures within the grace allowance return zero.
func (t *Throttler) Fail(ctx context.Context, id string) (time.Duration, error) {
	key := t.key(id)

	failures, err := t.redis.HIncrBy(ctx, key, fieldFailures, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var block time.Duration
	past := int(failures) - t.grace
	if past > 0 {
		idx := past - 1
		if idx >= len(t.timeouts) {
			idx = len(t.timeouts) - 1
		}
		block = t.timeouts[idx]
	}

	_, err = t.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if block > 0 {
			pipe.HSet(ctx, key, fieldBlocked, t.Now().Add(block).UnixNano())
		} else {
			pipe.HSet(ctx, key, fieldBlocked, int64(0))
		}
		pipe.Expire(ctx, key, t.cutoff)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return block, nil
}

// Reset clears all failure state for id. Called on success so one good
// credential presentation ends the escalation immediately.
func (t *Throttler) Reset(ctx context.Context, id string) error {
	if err := t.redis.Del(ctx, t.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
