package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// deleteSessionScript removes a session key and its user-index entry in one
// round trip so a crash between the two cannot leave a dangling index entry
// pointing at a live session.
const deleteSessionScript = `
redis.call("SREM", KEYS[2], ARGV[1])
return redis.call("DEL", KEYS[1])
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Store is a Redis-backed session store that handles persistence, lazy
// expiration, and sliding renewal within the final lifetime window.
type Store struct {
	redis       redis.UniversalClient
	prefix      string
	lifetime    time.Duration
	renewWithin time.Duration

	// Now is the clock used for expiry decisions. Overridable in tests.
	Now func() time.Time

	// OnRenew, when set, is invoked after a read extends a session's
	// lifetime. Must be fast and must not call back into the store.
	OnRenew func(sessionID string)
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace. lifetime is the full session
// lifetime granted at issuance and at renewal; renewWithin is the trailing
// window inside which a read extends the session back to a full lifetime.
func NewStore(redis redis.UniversalClient, prefix string, lifetime, renewWithin time.Duration) *Store {
	return &Store{
		redis:       redis,
		prefix:      prefix,
		lifetime:    lifetime,
		renewWithin: renewWithin,
		Now:         time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + "u:" + userID
}

// Save persists a [Session] and indexes it under its user. CreatedAt and
// ExpiresAt are stamped here so every caller issues sessions with the same
// lifetime arithmetic.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	now := s.Now()
	sess.CreatedAt = now.Unix()
	sess.ExpiresAt = now.Add(s.lifetime).Unix()

	data, err := Encode(sess)
	if err != nil {
		return err
	}

	sessionKey := s.key(sess.ID)
	userKey := s.userKey(sess.UserID)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey, data, s.lifetime)
		pipe.SAdd(ctx, userKey, sess.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get retrieves a session by ID. Records whose embedded expiry has passed
// are deleted on sight and reported as missing, so a read after expiry is
// indistinguishable from a read of a never-issued session. A read landing
// inside the renewal window rewrites the record with a fresh full lifetime.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.ID = sessionID

	now := s.Now()
	expiresAt := time.Unix(sess.ExpiresAt, 0)
	if !now.Before(expiresAt) {
		if err := s.deleteSessionAndIndex(ctx, sess.UserID, sessionID); err != nil {
			return nil, err
		}
		return nil, redis.Nil
	}

	if s.renewWithin > 0 && expiresAt.Sub(now) <= s.renewWithin {
		sess.ExpiresAt = now.Add(s.lifetime).Unix()
		renewed, err := Encode(sess)
		if err != nil {
			return nil, err
		}
		if err := s.redis.Set(ctx, key, renewed, s.lifetime).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if s.OnRenew != nil {
			s.OnRenew(sessionID)
		}
	}

	return sess, nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return err
	}

	return s.deleteSessionAndIndex(ctx, sess.UserID, sessionID)
}

// DeleteAllForUser removes every indexed session for a user.
//
// ATOMICITY NOTE: the index read (SMembers) and the delete pipeline are
// separate round trips. A session issued between the two survives this
// call; it expires naturally or falls to the next invocation. Logout-all
// is a cleanup sweep, not a fence.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)

	sessionIDs, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sessionKeys := make([]string, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		sessionKeys = append(sessionKeys, s.key(sessionID))
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(sessionKeys) > 0 {
			pipe.Del(ctx, sessionKeys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionIDs returns tracked session IDs for a user.
func (s *Store) ActiveSessionIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ids, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteSessionAndIndex(ctx context.Context, userID, sessionID string) error {
	key := s.key(sessionID)
	userKey := s.userKey(userID)

	if err := deleteSessionLua.Run(ctx, s.redis, []string{key, userKey}, sessionID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}
