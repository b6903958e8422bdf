package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	fieldTokens   = "tokens"
	fieldRefilled = "refilled_at"
)

// Bucket is a constant-refill token bucket keyed by caller-supplied
// identifiers. A fresh key starts with Max tokens; one token returns every
// RefillEvery. State lives in a Redis hash so a burst is absorbed up to Max
// and sustained traffic is capped at one request per interval.
type Bucket struct {
	redis       redis.UniversalClient
	prefix      string
	max         int
	refillEvery time.Duration

	// Now is the clock used for refill arithmetic. Overridable in tests.
	Now func() time.Time
}

// NewBucket creates a token bucket. All keys share the prefix so distinct
// subsystems never collide in Redis.
func NewBucket(redisClient redis.UniversalClient, prefix string, max int, refillEvery time.Duration) *Bucket {
	return &Bucket{
		redis:       redisClient,
		prefix:      prefix,
		max:         max,
		refillEvery: refillEvery,
		Now:         time.Now,
	}
}

func (b *Bucket) key(id string) string {
	return b.prefix + ":" + id
}

// Take consumes one token for id and reports whether it was available.
// A false return carries no error; infrastructure failures do.
func (b *Bucket) Take(ctx context.Context, id string) (bool, error) {
	tokens, last, err := b.load(ctx, id)
	if err != nil {
		return false, err
	}

	now := b.Now()
	tokens, last = refill(tokens, last, now, b.max, b.refillEvery)

	if tokens <= 0 {
		if err := b.store(ctx, id, tokens, last); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := b.store(ctx, id, tokens-1, last); err != nil {
		return false, err
	}
	return true, nil
}

// Remaining reports the tokens currently available for id without
// consuming any.
func (b *Bucket) Remaining(ctx context.Context, id string) (int, error) {
	tokens, last, err := b.load(ctx, id)
	if err != nil {
		return 0, err
	}
	tokens, _ = refill(tokens, last, b.Now(), b.max, b.refillEvery)
	return tokens, nil
}

// Reset restores id to a full bucket by deleting its state.
func (b *Bucket) Reset(ctx context.Context, id string) error {
	if err := b.redis.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// refill advances the bucket state to now. The refill timestamp moves in
// whole intervals so fractional progress toward the next token is never
// lost between calls.
func refill(tokens int, last time.Time, now time.Time, max int, every time.Duration) (int, time.Time) {
	if tokens >= max {
		return max, now
	}
	intervals := int(now.Sub(last) / every)
	if intervals <= 0 {
		return tokens, last
	}
	tokens += intervals
	if tokens >= max {
		return max, now
	}
	return tokens, last.Add(time.Duration(intervals) * every)
}

func (b *Bucket) load(ctx context.Context, id string) (int, time.Time, error) {
	vals, err := b.redis.HGetAll(ctx, b.key(id)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) == 0 {
		// Unknown key: full bucket as of now.
		return b.max, b.Now(), nil
	}

	tokens, err := strconv.Atoi(vals[fieldTokens])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: corrupt bucket state", ErrRedisUnavailable)
	}
	nanos, err := strconv.ParseInt(vals[fieldRefilled], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: corrupt bucket state", ErrRedisUnavailable)
	}
	return tokens, time.Unix(0, nanos), nil
}

func (b *Bucket) store(ctx context.Context, id string, tokens int, last time.Time) error {
	key := b.key(id)
	_, err := b.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldTokens, tokens, fieldRefilled, last.UnixNano())
		// Expire once the bucket would be full again; a reloaded missing
		// key starts full, so the state carries no information past that.
		pipe.Expire(ctx, key, time.Duration(b.max)*b.refillEvery)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FixedBucket is a fixed-window counter: the first hit on a key opens a
// window of the configured length, and at most Max hits pass before the
// window expires. Cheaper than [Bucket] where strict refill pacing is not
// needed.
type FixedBucket struct {
	redis  redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewFixedBucket creates a fixed-window counter.
func NewFixedBucket(redisClient redis.UniversalClient, prefix string, max int, window time.Duration) *FixedBucket {
	return &FixedBucket{
		redis:  redisClient,
		prefix: prefix,
		max:    max,
		window: window,
	}
}

func (f *FixedBucket) key(id string) string {
	return f.prefix + ":" + id
}

// Take records a hit for id and reports whether it stayed within the
// window budget.
func (f *FixedBucket) Take(ctx context.Context, id string) (bool, error) {
	count, err := f.redis.Incr(ctx, f.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := f.redis.Expire(ctx, f.key(id), f.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count <= int64(f.max), nil
}

// Remaining reports how many hits id has left in the current window.
// Missing keys return the full budget and do not reveal key existence.
func (f *FixedBucket) Remaining(ctx context.Context, id string) (int, error) {
	count, err := f.redis.Get(ctx, f.key(id)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return f.max, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	left := f.max - int(count)
	if left < 0 {
		return 0, nil
	}
	return left, nil
}

// Reset clears the window for id.
func (f *FixedBucket) Reset(ctx context.Context, id string) error {
	if err := f.redis.Del(ctx, f.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
