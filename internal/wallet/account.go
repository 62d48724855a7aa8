package wallet

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

var errSeedMismatch = errors.New("seed does not belong to this account")

// Account holds the key material of one wallet. The account-level
// extended public key is always present; the private key only while
// unlocked.
type Account struct {
	mu      sync.RWMutex
	xpub    *HDKey
	xprv    *HDKey // nil while locked
	viewPub []byte
}

// RestoreAccount validates a BIP-39 phrase and derives an unlocked account
// together with its seed. It performs no I/O.
func RestoreAccount(mnemonic, passphrase string) (*Account, []byte, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, nil, err
	}
	acct, err := NewAccountFromSeed(seed)
	if err != nil {
		return nil, nil, err
	}
	return acct, seed, nil
}

// NewAccountFromSeed derives an unlocked account from a 64-byte seed.
func NewAccountFromSeed(seed []byte) (*Account, error) {
	xprv, err := deriveAccountKey(seed)
	if err != nil {
		return nil, err
	}
	return newAccount(xprv.Neuter(), xprv)
}

// NewLockedAccount creates a locked account from its extended public key.
// Addresses can be derived; nothing can be signed or scanned until Unlock.
func NewLockedAccount(xpub string) (*Account, error) {
	key, err := ParseAccountXPub(xpub)
	if err != nil {
		return nil, err
	}
	return newAccount(key, nil)
}

func newAccount(xpub, xprv *HDKey) (*Account, error) {
	view, err := xpub.Derive(ChangeView, 0)
	if err != nil {
		return nil, fmt.Errorf("derive view key: %w", err)
	}
	return &Account{xpub: xpub, xprv: xprv, viewPub: view.PublicKeyBytes()}, nil
}

func deriveAccountKey(seed []byte) (*HDKey, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	return master.AccountKey(0)
}

// Unlock loads the private account key from seed. The seed must derive the
// same account public key.
func (a *Account) Unlock(seed []byte) error {
	xprv, err := deriveAccountKey(seed)
	if err != nil {
		return err
	}
	if !bytes.Equal(xprv.PublicKeyBytes(), a.xpub.PublicKeyBytes()) {
		return errSeedMismatch
	}
	a.mu.Lock()
	if a.xprv != nil {
		a.xprv.wipe()
	}
	a.xprv = xprv
	a.mu.Unlock()
	return nil
}

// Lock zeroes and drops the private key material. Signers handed out
// earlier hold their own copies and are not affected.
func (a *Account) Lock() {
	a.mu.Lock()
	if a.xprv != nil {
		a.xprv.wipe()
		a.xprv = nil
	}
	a.mu.Unlock()
}

// Locked reports whether private key material is unavailable.
func (a *Account) Locked() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.xprv == nil
}

// XPub returns the account-level extended public key.
func (a *Account) XPub() string {
	return a.xpub.String()
}

// Address derives the address at (change, index). Works while locked.
func (a *Account) Address(change, index uint32) (types.Address, error) {
	k, err := a.xpub.Derive(change, index)
	if err != nil {
		return types.Address{}, err
	}
	return k.Address(), nil
}

// PrivateKey derives the spend key at (change, index).
func (a *Account) PrivateKey(change, index uint32) (*crypto.PrivateKey, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.xprv == nil {
		return nil, ErrAccountLocked
	}
	k, err := a.xprv.Derive(change, index)
	if err != nil {
		return nil, err
	}
	return k.Signer()
}

// ViewPublicKey returns the compressed public view key.
func (a *Account) ViewPublicKey() []byte {
	return append([]byte(nil), a.viewPub...)
}

// ViewKey returns the private view key used to scan sealed outputs.
func (a *Account) ViewKey() (*crypto.PrivateKey, error) {
	return a.PrivateKey(ChangeView, 0)
}
