package webauthn

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// Algorithm identifies the signature scheme of a stored credential. The
// values are stable and safe to persist.
type Algorithm string

const (
	// AlgES256 is ECDSA over P-256 with SHA-256 (COSE alg -7).
	AlgES256 Algorithm = "ES256"
	// AlgRS256 is RSASSA-PKCS1-v1_5 with SHA-256 (COSE alg -257).
	AlgRS256 Algorithm = "RS256"
)

// COSE identifiers from RFC 9053. Only the two algorithms every passkey
// authenticator ships are accepted; everything else is rejected at
// registration so assertion never sees an unknown branch.
const (
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3

	coseAlgES256 = -7
	coseAlgRS256 = -257

	coseCurveP256 = 1
)

// coseKey is the CBOR layout of a COSE_Key map. The label-dependent
// parameters stay raw until the key type selects their shape: for EC2 the
// labels -1/-2/-3 are curve/x/y, for RSA the labels -1/-2 are n/e.
type coseKey struct {
	KeyType int             `cbor:"1,keyasint"`
	Alg     int             `cbor:"3,keyasint"`
	ParamA  cbor.RawMessage `cbor:"-1,keyasint,omitempty"`
	ParamB  cbor.RawMessage `cbor:"-2,keyasint,omitempty"`
	ParamC  cbor.RawMessage `cbor:"-3,keyasint,omitempty"`
}

// PublicKey is a decoded credential public key. Implementations verify a
// raw message against an encoded signature and report the outcome as a
// boolean; malformed signatures are false, never a panic or an error.
type PublicKey interface {
	// Algorithm returns the signature scheme of the key.
	Algorithm() Algorithm
	// Encode serializes the key for persistence. The format is
	// algorithm-specific and round-trips through [DecodePublicKey].
	Encode() []byte
	// Verify reports whether signature is a valid signature over
	// SHA-256(message) by this key.
	Verify(message, signature []byte) bool
}

// ES256Key is an ECDSA P-256 public key.
type ES256Key struct {
	X []byte
	Y []byte
}

// Algorithm returns [AlgES256].
func (k *ES256Key) Algorithm() Algorithm { return AlgES256 }

// Encode returns the uncompressed SEC 1 point, 0x04 || X || Y.
func (k *ES256Key) Encode() []byte {
	out := make([]byte, 1+64)
	out[0] = 0x04
	copy(out[1:33], k.X)
	copy(out[33:65], k.Y)
	return out
}

// Verify reports whether signature is a valid ASN.1 DER-encoded ECDSA
// signature over SHA-256(message).
func (k *ES256Key) Verify(message, signature []byte) bool {
	x := new(big.Int).SetBytes(k.X)
	y := new(big.Int).SetBytes(k.Y)
	curve := elliptic.P256()
	if !curve.IsOnCurve(x, y) {
		return false
	}
	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	digest := sha256.Sum256(message)
	return ecdsa.VerifyASN1(pub, digest[:], signature)
}

// RS256Key is an RSA public key used with PKCS#1 v1.5 and SHA-256.
type RS256Key struct {
	N []byte
	E int
}

// Algorithm returns [AlgRS256].
func (k *RS256Key) Algorithm() Algorithm { return AlgRS256 }

// Encode returns the PKCS#1 DER encoding of the key.
func (k *RS256Key) Encode() []byte {
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(k.N), E: k.E}
	return x509.MarshalPKCS1PublicKey(pub)
}

// Verify reports whether signature is a valid PKCS#1 v1.5 signature over
// SHA-256(message).
func (k *RS256Key) Verify(message, signature []byte) bool {
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(k.N), E: k.E}
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature) == nil
}

// DecodePublicKey rebuilds a [PublicKey] from the output of
// [PublicKey.Encode]. The algorithm must be stored alongside the bytes.
func DecodePublicKey(alg Algorithm, encoded []byte) (PublicKey, error) {
	switch alg {
	case AlgES256:
		if len(encoded) != 65 || encoded[0] != 0x04 {
			return nil, ErrInvalidInput
		}
		return &ES256Key{X: encoded[1:33], Y: encoded[33:65]}, nil
	case AlgRS256:
		pub, err := x509.ParsePKCS1PublicKey(encoded)
		if err != nil {
			return nil, ErrInvalidInput
		}
		return &RS256Key{N: pub.N.Bytes(), E: pub.E}, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// parseCOSEKey decodes a COSE_Key map embedded at the start of data and
// returns the key plus the number of bytes consumed. Attested credential
// data places the key inline with no length prefix, so the CBOR decoder's
// read position is the only way to find where the key ends.
func parseCOSEKey(data []byte) (PublicKey, int, error) {
	dec := cbor.NewDecoder(bytes.NewReader(data))
	var raw coseKey
	if err := dec.Decode(&raw); err != nil {
		return nil, 0, ErrInvalidInput
	}
	consumed := dec.NumBytesRead()

	switch raw.KeyType {
	case coseKeyTypeEC2:
		if raw.Alg != coseAlgES256 {
			return nil, 0, ErrUnsupportedAlgorithm
		}
		var curve int
		var x, y []byte
		if err := cbor.Unmarshal(raw.ParamA, &curve); err != nil || curve != coseCurveP256 {
			return nil, 0, ErrUnsupportedAlgorithm
		}
		if err := cbor.Unmarshal(raw.ParamB, &x); err != nil || len(x) != 32 {
			return nil, 0, ErrInvalidInput
		}
		if err := cbor.Unmarshal(raw.ParamC, &y); err != nil || len(y) != 32 {
			return nil, 0, ErrInvalidInput
		}
		return &ES256Key{X: x, Y: y}, consumed, nil

	case coseKeyTypeRSA:
		if raw.Alg != coseAlgRS256 {
			return nil, 0, ErrUnsupportedAlgorithm
		}
		var n, e []byte
		if err := cbor.Unmarshal(raw.ParamA, &n); err != nil || len(n) == 0 {
			return nil, 0, ErrInvalidInput
		}
		if err := cbor.Unmarshal(raw.ParamB, &e); err != nil || len(e) == 0 || len(e) > 4 {
			return nil, 0, ErrInvalidInput
		}
		exp := 0
		for _, b := range e {
			exp = exp<<8 | int(b)
		}
		if exp < 3 {
			return nil, 0, ErrInvalidInput
		}
		return &RS256Key{N: n, E: exp}, consumed, nil

	default:
		return nil, 0, ErrUnsupportedAlgorithm
	}
}
