package tx

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Builder errors.
var (
	ErrNoViewKeys = errors.New("no view keys authorized")
	ErrNotSealed  = errors.New("transaction not sealed")
	ErrSealed     = errors.New("transaction already sealed")
)

// KeyFunc returns the private key allowed to spend op.
type KeyFunc func(op types.Outpoint) (*crypto.PrivateKey, error)

// Builder assembles a transaction in three phases: collect inputs,
// outputs, view keys and the fee; Seal; then sign.
type Builder struct {
	tx       Transaction
	outputs  []Output
	viewKeys [][]byte
	sealed   bool
}

// NewBuilder returns an empty builder for the current format version.
func NewBuilder() *Builder {
	return &Builder{tx: Transaction{Version: CurrentVersion}}
}

func (b *Builder) AddInput(op types.Outpoint) *Builder {
	b.tx.Inputs = append(b.tx.Inputs, Input{PrevOut: op})
	return b
}

func (b *Builder) AddOutput(value uint64, addr types.Address) *Builder {
	b.outputs = append(b.outputs, Output{Value: value, Address: addr})
	return b
}

// AddViewKey lets the holder of the matching view key open the outputs.
// Repeated keys are kept once.
func (b *Builder) AddViewKey(pub []byte) *Builder {
	if !containsKey(b.viewKeys, pub) {
		b.viewKeys = append(b.viewKeys, bytes.Clone(pub))
	}
	return b
}

func (b *Builder) SetFee(fee uint64) *Builder {
	b.tx.Fee = fee
	return b
}

// Outputs returns the plaintext outputs added so far.
func (b *Builder) Outputs() []Output {
	return b.outputs
}

// Seal fixes the output set: it encrypts the outputs under a fresh payload
// key and wraps that key once per view key. Signatures commit to the
// sealed body, so Seal comes before signing.
func (b *Builder) Seal() error {
	switch {
	case b.sealed:
		return ErrSealed
	case len(b.viewKeys) == 0:
		return fmt.Errorf("seal: %w", ErrNoViewKeys)
	}
	if _, err := TotalOutputValue(b.outputs); err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	key, err := crypto.NewPayloadKey()
	if err != nil {
		return err
	}
	defer clear(key)

	sealed, err := crypto.SealPayload(key, encodeOutputs(b.outputs))
	if err != nil {
		return fmt.Errorf("seal outputs: %w", err)
	}
	access := make([]Access, len(b.viewKeys))
	for i, vk := range b.viewKeys {
		eph, wrapped, err := crypto.WrapKey(vk, key)
		if err != nil {
			return fmt.Errorf("wrap for view key %x: %w", vk, err)
		}
		access[i] = Access{Ephemeral: eph, Wrapped: wrapped}
	}

	b.tx.OutputCount = uint32(len(b.outputs))
	b.tx.Sealed = sealed
	b.tx.Access = access
	b.sealed = true
	return nil
}

// Sign signs every input with key.
func (b *Builder) Sign(key *crypto.PrivateKey) error {
	return b.SignWith(func(types.Outpoint) (*crypto.PrivateKey, error) { return key, nil })
}

// SignWith signs each input with the key keyFor returns for its outpoint.
// Inputs sharing a key share one signature, since they sign the same hash.
func (b *Builder) SignWith(keyFor KeyFunc) error {
	if !b.sealed {
		return fmt.Errorf("sign: %w", ErrNotSealed)
	}
	hash := b.tx.Hash()
	sigs := make(map[string][]byte)

	for i := range b.tx.Inputs {
		in := &b.tx.Inputs[i]
		key, err := keyFor(in.PrevOut)
		if err != nil {
			return fmt.Errorf("key for input %d (%s): %w", i, in.PrevOut, err)
		}
		if key == nil {
			return fmt.Errorf("no key for input %d (%s)", i, in.PrevOut)
		}
		pub := key.PublicKey()
		sig, ok := sigs[string(pub)]
		if !ok {
			if sig, err = key.Sign(hash[:]); err != nil {
				return fmt.Errorf("sign input %d: %w", i, err)
			}
			sigs[string(pub)] = sig
		}
		in.Signature, in.PubKey = sig, pub
	}
	return nil
}

// Build returns the transaction. It is not validated here.
func (b *Builder) Build() *Transaction {
	return &b.tx
}

func containsKey(keys [][]byte, k []byte) bool {
	for _, have := range keys {
		if bytes.Equal(have, k) {
			return true
		}
	}
	return false
}
