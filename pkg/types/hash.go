// Package types defines the primitive value types shared by the wallet engine.
package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// HashSize is the length of a hash in bytes.
const HashSize = 32

// ErrInvalidTxID is wrapped by every ParseHash failure.
var ErrInvalidTxID = errors.New("invalid transaction id")

// Hash is a 32-byte digest. Transaction ids are hashes and travel as 64
// lowercase hex characters in JSON, RPC params and logs.
type Hash [HashSize]byte

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// Compare orders hashes bytewise.
func (h Hash) Compare(o Hash) int { return bytes.Compare(h[:], o[:]) }

// MarshalText makes Hash a hex string in JSON and map keys.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText accepts what ParseHash accepts. An empty string decodes to
// the zero hash so optional fields round-trip.
func (h *Hash) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*h = Hash{}
		return nil
	}
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a 64-character hex id. Surrounding whitespace and
// upper case digits are tolerated.
func ParseHash(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2*HashSize {
		return Hash{}, fmt.Errorf("%w: %d hex characters, want %d", ErrInvalidTxID, len(s), 2*HashSize)
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidTxID, err)
	}
	return h, nil
}
