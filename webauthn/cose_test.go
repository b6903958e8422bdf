package webauthn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func newES256TestKey(t *testing.T) (*ecdsa.PrivateKey, *ES256Key) {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey failed: %v", err)
	}
	pub := &ES256Key{
		X: priv.PublicKey.X.FillBytes(make([]byte, 32)),
		Y: priv.PublicKey.Y.FillBytes(make([]byte, 32)),
	}
	return priv, pub
}

func marshalCOSE(t *testing.T, m map[int]any) []byte {
	t.Helper()

	encoded, err := cbor.Marshal(m)
	if err != nil {
		t.Fatalf("cbor.Marshal failed: %v", err)
	}
	return encoded
}

func TestES256VerifyRoundTrip(t *testing.T) {
	priv, pub := newES256TestKey(t)

	message := []byte("authenticator data || client data hash")
	digest := sha256.Sum256(message)
	signature, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("SignASN1 failed: %v", err)
	}

	if !pub.Verify(message, signature) {
		t.Fatal("expected valid signature to verify")
	}
	if pub.Verify([]byte("different message"), signature) {
		t.Fatal("signature must not verify a different message")
	}
	if pub.Verify(message, []byte("garbage")) {
		t.Fatal("malformed signature must fail cleanly")
	}

	// Persisted form round-trips through DecodePublicKey.
	decoded, err := DecodePublicKey(AlgES256, pub.Encode())
	if err != nil {
		t.Fatalf("DecodePublicKey failed: %v", err)
	}
	if decoded.Algorithm() != AlgES256 {
		t.Fatalf("expected ES256, got %s", decoded.Algorithm())
	}
	if !decoded.Verify(message, signature) {
		t.Fatal("decoded key must verify the same signature")
	}
}

func TestES256WrongKeyRejects(t *testing.T) {
	priv, _ := newES256TestKey(t)
	_, otherPub := newES256TestKey(t)

	message := []byte("signed by the first key")
	digest := sha256.Sum256(message)
	signature, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("SignASN1 failed: %v", err)
	}

	if otherPub.Verify(message, signature) {
		t.Fatal("signature must not verify under a different key")
	}
}

func TestRS256VerifyRoundTrip(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	pub := &RS256Key{N: priv.PublicKey.N.Bytes(), E: priv.PublicKey.E}

	message := []byte("rsa signed message")
	digest := sha256.Sum256(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("SignPKCS1v15 failed: %v", err)
	}

	if !pub.Verify(message, signature) {
		t.Fatal("expected valid signature to verify")
	}
	if pub.Verify([]byte("tampered"), signature) {
		t.Fatal("signature must not verify a different message")
	}

	decoded, err := DecodePublicKey(AlgRS256, pub.Encode())
	if err != nil {
		t.Fatalf("DecodePublicKey failed: %v", err)
	}
	if decoded.Algorithm() != AlgRS256 {
		t.Fatalf("expected RS256, got %s", decoded.Algorithm())
	}
	if !decoded.Verify(message, signature) {
		t.Fatal("decoded key must verify the same signature")
	}
}

func TestDecodePublicKeyRejectsBadInput(t *testing.T) {
	if _, err := DecodePublicKey(AlgES256, []byte{0x04, 0x01}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short ES256 point: expected ErrInvalidInput, got %v", err)
	}
	if _, err := DecodePublicKey(AlgES256, make([]byte, 65)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing point prefix: expected ErrInvalidInput, got %v", err)
	}
	if _, err := DecodePublicKey(AlgRS256, []byte("not-der")); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad RSA DER: expected ErrInvalidInput, got %v", err)
	}
	if _, err := DecodePublicKey(Algorithm("EdDSA"), nil); !errors.Is(err, ErrUnsupportedAlgorithm) {
		t.Fatalf("unknown algorithm: expected ErrUnsupportedAlgorithm, got %v", err)
	}
}

func TestParseCOSEKeyES256(t *testing.T) {
	_, pub := newES256TestKey(t)

	encoded := marshalCOSE(t, map[int]any{
		1:  2,
		3:  -7,
		-1: 1,
		-2: pub.X,
		-3: pub.Y,
	})
	trailing := []byte("extension bytes")

	key, consumed, err := parseCOSEKey(append(encoded, trailing...))
	if err != nil {
		t.Fatalf("parseCOSEKey failed: %v", err)
	}
	if consumed != len(encoded) {
		t.Fatalf("expected %d bytes consumed, got %d", len(encoded), consumed)
	}
	if key.Algorithm() != AlgES256 {
		t.Fatalf("expected ES256, got %s", key.Algorithm())
	}
}

func TestParseCOSEKeyRejectsUnsupported(t *testing.T) {
	_, pub := newES256TestKey(t)

	cases := []struct {
		name string
		m    map[int]any
	}{
		{"unknown key type", map[int]any{1: 1, 3: -8}},
		{"EC2 with wrong alg", map[int]any{1: 2, 3: -257, -1: 1, -2: pub.X, -3: pub.Y}},
		{"EC2 with wrong curve", map[int]any{1: 2, 3: -7, -1: 2, -2: pub.X, -3: pub.Y}},
		{"RSA with wrong alg", map[int]any{1: 3, 3: -7, -1: []byte{1, 2, 3}, -2: []byte{1, 0, 1}}},
	}

	for _, tc := range cases {
		if _, _, err := parseCOSEKey(marshalCOSE(t, tc.m)); !errors.Is(err, ErrUnsupportedAlgorithm) {
			t.Errorf("%s: expected ErrUnsupportedAlgorithm, got %v", tc.name, err)
		}
	}
}

func TestParseCOSEKeyRejectsMalformed(t *testing.T) {
	_, pub := newES256TestKey(t)

	cases := []struct {
		name string
		m    map[int]any
	}{
		{"short x coordinate", map[int]any{1: 2, 3: -7, -1: 1, -2: pub.X[:16], -3: pub.Y}},
		{"short y coordinate", map[int]any{1: 2, 3: -7, -1: 1, -2: pub.X, -3: pub.Y[:16]}},
		{"rsa tiny exponent", map[int]any{1: 3, 3: -257, -1: []byte{1, 2, 3}, -2: []byte{0x01}}},
		{"rsa empty modulus", map[int]any{1: 3, 3: -257, -1: []byte{}, -2: []byte{1, 0, 1}}},
	}

	for _, tc := range cases {
		if _, _, err := parseCOSEKey(marshalCOSE(t, tc.m)); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}

	if _, _, err := parseCOSEKey([]byte{0xff, 0xff}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("garbage CBOR: expected ErrInvalidInput, got %v", err)
	}
}
