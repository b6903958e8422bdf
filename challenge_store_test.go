package goPasskey

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goPasskey/internal"
)

func TestChallengeStoreIssueAndRedeem(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newChallengeStore(rdb, 5*time.Minute)
	ctx := context.Background()

	challengeID, challenge, err := store.Issue(ctx, challengePurposeLogin, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if len(challenge) != 32 {
		t.Fatalf("expected 32 challenge bytes, got %d", len(challenge))
	}

	record, err := store.Redeem(ctx, challengeID)
	if err != nil {
		t.Fatalf("Redeem failed: %v", err)
	}
	if record.Purpose != challengePurposeLogin || record.UserID != "user-1" {
		t.Fatalf("unexpected record: %+v", record)
	}

	want := internal.HashBytes(challenge)
	if !bytes.Equal(record.ChallengeHash[:], want[:]) {
		t.Fatal("stored hash does not match the issued challenge")
	}
}

func TestChallengeStoreSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newChallengeStore(rdb, 5*time.Minute)
	ctx := context.Background()

	challengeID, _, err := store.Issue(ctx, challengePurposeRegister, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := store.Redeem(ctx, challengeID); err != nil {
		t.Fatalf("first Redeem failed: %v", err)
	}
	if _, err := store.Redeem(ctx, challengeID); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound on second redeem, got %v", err)
	}
}

func TestChallengeStoreExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newChallengeStore(rdb, 5*time.Minute)
	ctx := context.Background()

	challengeID, _, err := store.Issue(ctx, challengePurposeLogin, "user-1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	mr.FastForward(5*time.Minute + time.Second)

	if _, err := store.Redeem(ctx, challengeID); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound after TTL, got %v", err)
	}
}

func TestChallengeStoreUnknownID(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	store := newChallengeStore(rdb, 5*time.Minute)
	if _, err := store.Redeem(context.Background(), "never-issued"); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("expected errChallengeNotFound, got %v", err)
	}
}

func TestChallengeRecordRoundTrip(t *testing.T) {
	record := &challengeRecord{
		Purpose:       challengePurposeRegister,
		UserID:        "user-with-a-long-id",
		ChallengeHash: internal.HashBytes([]byte("challenge")),
	}

	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := decodeChallengeRecord(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.Purpose != record.Purpose || decoded.UserID != record.UserID {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
	if !bytes.Equal(decoded.ChallengeHash[:], record.ChallengeHash[:]) {
		t.Fatal("challenge hash mismatch after round trip")
	}
}

func TestChallengeRecordRejectsUnknownVersion(t *testing.T) {
	record := &challengeRecord{Purpose: challengePurposeLogin, UserID: "u"}
	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	encoded[0] = 0xff

	if _, err := decodeChallengeRecord(encoded); err == nil {
		t.Fatal("expected unknown version to be rejected")
	}
}
