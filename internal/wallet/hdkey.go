package wallet

import (
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
	"github.com/tyler-smith/go-bip32"
)

// Every wallet has a single account at m/44'/8888'/0'. Keys below it are
// addressed as account/branch/index with unhardened steps, so the account
// xpub alone derives every address.
const (
	PurposeBIP44 = bip32.FirstHardenedChild + 44
	CoinType     = bip32.FirstHardenedChild + 8888

	accountDepth = 3
)

// Branches below the account key.
const (
	ChangeExternal uint32 = 0 // transfer (receiving) addresses
	ChangeInternal uint32 = 1 // change addresses
	ChangeStaking  uint32 = 2 // staking addresses
	ChangeView     uint32 = 3 // view key, index 0
)

// Derivation returns the full BIP-32 path of p in the default account,
// for example m/44'/8888'/0'/1/7.
func (p KeyPath) Derivation() string {
	return fmt.Sprintf("m/44'/8888'/0'/%d/%d", p.Change, p.Index)
}

// HDKey is a BIP-32 node, private or public.
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates the root node from a 64-byte BIP-39 seed.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	return &HDKey{key: master}, nil
}

// ParseAccountXPub decodes the account-level extended public key kept in
// a keystore file. Private keys and nodes at other depths are refused.
func ParseAccountXPub(s string) (*HDKey, error) {
	k, err := bip32.B58Deserialize(s)
	if err != nil {
		return nil, fmt.Errorf("parse account xpub: %w", err)
	}
	if k.IsPrivate {
		return nil, fmt.Errorf("parse account xpub: got a private key")
	}
	if k.Depth != accountDepth {
		return nil, fmt.Errorf("parse account xpub: depth %d, want %d", k.Depth, accountDepth)
	}
	return &HDKey{key: k}, nil
}

// Derive walks down the tree along indices. Hardened steps need a private
// node.
func (k *HDKey) Derive(indices ...uint32) (*HDKey, error) {
	cur := k.key
	for _, idx := range indices {
		next, err := cur.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d at depth %d: %w", idx, cur.Depth, err)
		}
		cur = next
	}
	return &HDKey{key: cur}, nil
}

// AccountKey derives m/44'/8888'/n' from the master node.
func (k *HDKey) AccountKey(n uint32) (*HDKey, error) {
	return k.Derive(PurposeBIP44, CoinType, bip32.FirstHardenedChild+n)
}

// secret returns the 32-byte scalar, or nil for public nodes.
func (k *HDKey) secret() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		return raw[1:]
	}
	return raw
}

// PublicKeyBytes returns the compressed public key of the node.
func (k *HDKey) PublicKeyBytes() []byte {
	if !k.key.IsPrivate {
		return k.key.Key
	}
	return k.key.PublicKey().Key
}

// Signer returns the node's private key, or ErrAccountLocked for a
// public node.
func (k *HDKey) Signer() (*crypto.PrivateKey, error) {
	s := k.secret()
	if s == nil {
		return nil, ErrAccountLocked
	}
	return crypto.PrivateKeyFromBytes(s)
}

// Address is the address of the node's public key.
func (k *HDKey) Address() types.Address {
	return crypto.AddressFromPubKey(k.PublicKeyBytes())
}

func (k *HDKey) IsPrivate() bool { return k.key.IsPrivate }

func (k *HDKey) Depth() uint8 { return k.key.Depth }

// Neuter drops the private half.
func (k *HDKey) Neuter() *HDKey {
	if !k.key.IsPrivate {
		return k
	}
	return &HDKey{key: k.key.PublicKey()}
}

// wipe zeroes the node's key and chain code in place. The node is
// unusable afterwards.
func (k *HDKey) wipe() {
	clear(k.key.Key)
	clear(k.key.ChainCode)
}

// String is the base58 xprv/xpub encoding.
func (k *HDKey) String() string {
	return k.key.B58Serialize()
}
