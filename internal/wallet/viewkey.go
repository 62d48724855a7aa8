package wallet

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
)

// ViewKey is exported view key material. A redacted export carries only
// the public half, which is all a sender needs to authorize the holder.
type ViewKey struct {
	Public []byte
	Secret []byte // nil when redacted
}

// ExportViewKey exports the account view key. It fails with
// ErrAccountLocked while the account is locked, redacted or not.
func ExportViewKey(acct *Account, redacted bool) (*ViewKey, error) {
	priv, err := acct.ViewKey()
	if err != nil {
		return nil, err
	}
	vk := &ViewKey{Public: priv.PublicKey()}
	if !redacted {
		vk.Secret = priv.Serialize()
	}
	priv.Zero()
	return vk, nil
}

// Redacted reports whether the secret half was withheld.
func (v *ViewKey) Redacted() bool {
	return v.Secret == nil
}

// String returns the hex public key, followed by the hex secret when not
// redacted.
func (v *ViewKey) String() string {
	s := hex.EncodeToString(v.Public)
	if v.Secret != nil {
		s += hex.EncodeToString(v.Secret)
	}
	return s
}

// ParseViewKey accepts either export form and returns the public view key.
func ParseViewKey(s string) ([]byte, error) {
	const pubHex = crypto.PublicKeySize * 2
	if len(s) != pubHex && len(s) != pubHex+64 {
		return nil, fmt.Errorf("view key must be %d or %d hex characters, got %d", pubHex, pubHex+64, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode view key: %w", err)
	}
	pub := b[:crypto.PublicKeySize]
	if err := crypto.ValidatePublicKey(pub); err != nil {
		return nil, fmt.Errorf("view key: %w", err)
	}
	if len(b) > crypto.PublicKeySize {
		priv, err := crypto.PrivateKeyFromBytes(b[crypto.PublicKeySize:])
		if err != nil {
			return nil, fmt.Errorf("view key secret: %w", err)
		}
		defer priv.Zero()
		if !bytes.Equal(priv.PublicKey(), pub) {
			return nil, fmt.Errorf("view key secret does not match public key")
		}
	}
	return pub, nil
}
