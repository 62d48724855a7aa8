package wallet

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// A sealed seed is
//
//	version(1) | memory(4) | iterations(4) | parallelism(1) | salt(16) | nonce(24) | ciphertext
//
// with integers little-endian. The header and the wallet name are bound
// into the AEAD as associated data, so neither the KDF cost nor the owner
// of the blob can be changed without failing authentication.
const (
	sealVersion    = 1
	saltSize       = 16
	sealHeaderSize = 1 + 4 + 4 + 1 + saltSize
)

// EncryptionParams are the Argon2id costs used to stretch a passphrase.
type EncryptionParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams are the costs used for new keystore files.
func DefaultParams() EncryptionParams {
	return EncryptionParams{Memory: 64 * 1024, Iterations: 3, Parallelism: 4}
}

// Bounds on costs read back from a file.
const (
	maxMemoryKiB  = 4 * 1024 * 1024
	maxIterations = 64
)

// Validate rejects zero costs and costs above the accepted bounds.
func (p EncryptionParams) Validate() error {
	switch {
	case p.Memory == 0 || p.Memory > maxMemoryKiB:
		return fmt.Errorf("argon2 memory %d KiB out of range", p.Memory)
	case p.Iterations == 0 || p.Iterations > maxIterations:
		return fmt.Errorf("argon2 iterations %d out of range", p.Iterations)
	case p.Parallelism == 0:
		return fmt.Errorf("argon2 parallelism must be positive")
	}
	return nil
}

func (p EncryptionParams) stretch(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func associatedData(header []byte, name string) []byte {
	return append(append([]byte(nil), header...), name...)
}

// SealSeed encrypts seed under passphrase for the wallet called name.
func SealSeed(seed, passphrase []byte, name string, params EncryptionParams) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	header := make([]byte, 0, sealHeaderSize)
	header = append(header, sealVersion)
	header = binary.LittleEndian.AppendUint32(header, params.Memory)
	header = binary.LittleEndian.AppendUint32(header, params.Iterations)
	header = append(header, params.Parallelism)
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	header = append(header, salt...)

	key := params.stretch(passphrase, salt)
	defer wipe(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(nonce)+len(seed)+aead.Overhead())
	out = append(append(out, header...), nonce...)
	return aead.Seal(out, nonce, seed, associatedData(header, name)), nil
}

// OpenSeed reverses SealSeed. A wrong passphrase, a different wallet name
// and a tampered blob all return ErrWrongPassphrase.
func OpenSeed(sealed, passphrase []byte, name string) ([]byte, error) {
	minSize := sealHeaderSize + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead
	if len(sealed) < minSize {
		return nil, fmt.Errorf("sealed seed too short: %d bytes, need at least %d", len(sealed), minSize)
	}
	if sealed[0] != sealVersion {
		return nil, fmt.Errorf("sealed seed version %d not supported", sealed[0])
	}
	header := sealed[:sealHeaderSize]
	params := EncryptionParams{
		Memory:      binary.LittleEndian.Uint32(header[1:]),
		Iterations:  binary.LittleEndian.Uint32(header[5:]),
		Parallelism: header[9],
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("sealed seed header: %w", err)
	}
	salt := header[10:]
	nonce := sealed[sealHeaderSize : sealHeaderSize+chacha20poly1305.NonceSizeX]
	ciphertext := sealed[sealHeaderSize+chacha20poly1305.NonceSizeX:]

	key := params.stretch(passphrase, salt)
	defer wipe(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	seed, err := aead.Open(nil, nonce, ciphertext, associatedData(header, name))
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return seed, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
