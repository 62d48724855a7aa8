// Package crypto holds the primitives the wallet is built on: BLAKE3
// digests and key derivation, Schnorr keys over secp256k1, and sealing of
// transaction payloads to view keys.
package crypto

import (
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/zeebo/blake3"
)

// Hash is BLAKE3-256. Transaction ids, signing digests and addresses all
// come from it.
func Hash(data []byte) types.Hash {
	return blake3.Sum256(data)
}

// AddressFromPubKey returns the first 20 bytes of Hash(pubKey).
func AddressFromPubKey(pubKey []byte) types.Address {
	digest := Hash(pubKey)
	var addr types.Address
	copy(addr[:], digest[:types.AddressSize])
	return addr
}

// DeriveKey runs BLAKE3 in key derivation mode over the parts in order
// and returns a 32-byte key. The context must be a hardcoded string that
// is unique to its use.
func DeriveKey(context string, parts ...[]byte) []byte {
	h := blake3.NewDeriveKey(context)
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum(make([]byte, 0, 32))
}
