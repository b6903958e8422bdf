package goPasskey

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goPasskey/internal"
)

const (
	challengeKeyPrefix      = "pc"
	challengeRecordVersion1 = 1
)

type challengePurpose byte

const (
	challengePurposeRegister challengePurpose = 1
	challengePurposeLogin    challengePurpose = 2
)

var (
	errChallengeNotFound         = errors.New("challenge record not found")
	errChallengeRedisUnavailable = errors.New("challenge redis unavailable")
)

// challengeRecord is the server-side half of an issued WebAuthn challenge.
// Only the hash of the challenge is stored; the raw value exists solely in
// the response handed to the caller.
type challengeRecord struct {
	Purpose       challengePurpose
	UserID        string
	ChallengeHash [32]byte
}

type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newChallengeStore(redisClient redis.UniversalClient, ttl time.Duration) *challengeStore {
	return &challengeStore{
		redis:  redisClient,
		prefix: challengeKeyPrefix,
		ttl:    ttl,
	}
}

func (s *challengeStore) key(challengeID string) string {
	return s.prefix + ":" + challengeID
}

// Issue generates a fresh challenge, stores its hash under a random record
// ID, and returns both. The raw challenge bytes never touch Redis.
func (s *challengeStore) Issue(ctx context.Context, purpose challengePurpose, userID string) (string, []byte, error) {
	challenge, err := internal.NewChallenge()
	if err != nil {
		return "", nil, err
	}
	rid, err := internal.NewRecordID()
	if err != nil {
		return "", nil, err
	}

	record := &challengeRecord{
		Purpose:       purpose,
		UserID:        userID,
		ChallengeHash: internal.HashBytes(challenge),
	}
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return "", nil, err
	}

	challengeID := rid.String()
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, s.ttl).Err(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}

	return challengeID, challenge, nil
}

// Redeem removes and returns a challenge record in a single GETDEL, so two
// concurrent redemptions of the same ID can never both succeed. A missing
// or expired record is errChallengeNotFound.
func (s *challengeStore) Redeem(ctx context.Context, challengeID string) (*challengeRecord, error) {
	data, err := s.redis.GetDel(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errChallengeRedisUnavailable, err)
	}

	return decodeChallengeRecord(data)
}

func encodeChallengeRecord(record *challengeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(record.Purpose))

	if len(record.UserID) > 65535 {
		return nil, errors.New("challenge record user id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	buf.Write(record.ChallengeHash[:])

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*challengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid challenge record version")
	}

	purpose, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &challengeRecord{
		Purpose: challengePurpose(purpose),
	}

	var userIDLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userIDLen); err != nil {
		return nil, err
	}

	userID := make([]byte, userIDLen)
	if _, err := io.ReadFull(reader, userID); err != nil {
		return nil, err
	}
	record.UserID = string(userID)

	if _, err := io.ReadFull(reader, record.ChallengeHash[:]); err != nil {
		return nil, err
	}

	return record, nil
}
