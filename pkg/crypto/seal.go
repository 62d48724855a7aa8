package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"golang.org/x/crypto/chacha20poly1305"
)

// PayloadKeySize is the size of the symmetric key that encrypts a sealed
// transaction body.
const PayloadKeySize = chacha20poly1305.KeySize

const wrapContext = "klingwallet 2024 view-key wrap"

// ErrNotForKey is returned when a wrapped key was not addressed to the
// view key used to open it.
var ErrNotForKey = errors.New("sealed key not addressed to this view key")

// NewPayloadKey returns a fresh random payload key.
func NewPayloadKey() ([]byte, error) {
	key := make([]byte, PayloadKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate payload key: %w", err)
	}
	return key, nil
}

// WrapKey encrypts payloadKey to the holder of the view key viewPub.
// It returns the ephemeral public key and the wrapped key
// (nonce || ciphertext). Only the matching view private key can unwrap it.
func WrapKey(viewPub, payloadKey []byte) (ephemeral, wrapped []byte, err error) {
	pub, err := secp256k1.ParsePubKey(viewPub)
	if err != nil {
		return nil, nil, fmt.Errorf("parse view key: %w", err)
	}
	eph, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	defer eph.Zero()

	ephPub := eph.PubKey().SerializeCompressed()
	shared := secp256k1.GenerateSharedSecret(eph, pub)
	kek := DeriveKey(wrapContext, shared, ephPub, viewPub)
	zero(shared)

	wrapped, err = seal(kek, payloadKey)
	zero(kek)
	if err != nil {
		return nil, nil, err
	}
	return ephPub, wrapped, nil
}

// UnwrapKey recovers a payload key wrapped by WrapKey. It fails with
// ErrNotForKey when authentication fails.
func UnwrapKey(view *PrivateKey, ephemeral, wrapped []byte) ([]byte, error) {
	ephPub, err := secp256k1.ParsePubKey(ephemeral)
	if err != nil {
		return nil, fmt.Errorf("parse ephemeral key: %w", err)
	}
	shared := secp256k1.GenerateSharedSecret(view.key, ephPub)
	kek := DeriveKey(wrapContext, shared, ephemeral, view.PublicKey())
	zero(shared)
	defer zero(kek)

	key, err := open(kek, wrapped)
	if err != nil {
		return nil, ErrNotForKey
	}
	return key, nil
}

// SealPayload encrypts plaintext under a payload key (nonce || ciphertext).
func SealPayload(payloadKey, plaintext []byte) ([]byte, error) {
	return seal(payloadKey, plaintext)
}

// OpenPayload decrypts data produced by SealPayload.
func OpenPayload(payloadKey, sealed []byte) ([]byte, error) {
	out, err := open(payloadKey, sealed)
	if err != nil {
		return nil, fmt.Errorf("open payload: %w", err)
	}
	return out, nil
}

func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("sealed data too short: %d bytes", len(sealed))
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
