package crypto

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

const (
	// PublicKeySize is the length of a compressed secp256k1 point.
	PublicKeySize = 33
	// PrivateKeySize is the length of a serialized scalar.
	PrivateKeySize = 32
)

// ErrInvalidScalar is returned for secrets that are zero or not below the
// group order.
var ErrInvalidScalar = errors.New("secret is not a valid secp256k1 scalar")

// PrivateKey is a secp256k1 scalar. Spend keys sign with it and view keys
// use it for ECDH when unwrapping sealed payloads.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// GenerateKey returns a random key from the system CSPRNG.
func GenerateKey() (*PrivateKey, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromBytes parses a 32-byte big-endian scalar. Unlike the
// underlying library it refuses values that would be reduced modulo the
// group order, so an imported view secret is never silently altered.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, ErrInvalidScalar
	}
	return &PrivateKey{key: secp256k1.NewPrivateKey(&s)}, nil
}

// Sign returns a 64-byte BIP-340 style Schnorr signature over digest.
func (pk *PrivateKey) Sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	sig, err := schnorr.Sign(pk.key, digest)
	if err != nil {
		return nil, fmt.Errorf("schnorr sign: %w", err)
	}
	return sig.Serialize(), nil
}

// PublicKey returns the compressed point.
func (pk *PrivateKey) PublicKey() []byte {
	return pk.key.PubKey().SerializeCompressed()
}

// Serialize returns the scalar. Callers own the copy and should wipe it.
func (pk *PrivateKey) Serialize() []byte {
	return pk.key.Serialize()
}

// Zero overwrites the scalar in place.
func (pk *PrivateKey) Zero() {
	pk.key.Zero()
}

// ValidatePublicKey checks that b is a compressed point on the curve.
func ValidatePublicKey(b []byte) error {
	if len(b) != PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	if b[0] != secp256k1.PubKeyFormatCompressedEven && b[0] != secp256k1.PubKeyFormatCompressedOdd {
		return fmt.Errorf("public key is not compressed (prefix %#x)", b[0])
	}
	if _, err := secp256k1.ParsePubKey(b); err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}
	return nil
}

// VerifySignature reports whether sig is a valid Schnorr signature of
// digest under the compressed key pubKey. Malformed inputs verify false.
func VerifySignature(digest, sig, pubKey []byte) bool {
	pub, err := secp256k1.ParsePubKey(pubKey)
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pub)
}
