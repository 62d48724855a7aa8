package tx

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Structural limits enforced by Validate.
const (
	MaxTxInputs  = 256
	MaxTxOutputs = 256
	MaxViewKeys  = 64
)

// Validation errors.
var (
	ErrBadVersion     = errors.New("unsupported transaction version")
	ErrNoInputs       = errors.New("transaction has no inputs")
	ErrNoOutputs      = errors.New("transaction has no outputs")
	ErrNoAccess       = errors.New("transaction has no access entries")
	ErrTooManyInputs  = errors.New("too many inputs")
	ErrTooManyOutputs = errors.New("too many outputs")
	ErrTooManyAccess  = errors.New("too many access entries")
	ErrDuplicateInput = errors.New("duplicate input")
	ErrMissingPubKey  = errors.New("input missing public key")
	ErrBadPubKey      = errors.New("input public key malformed")
	ErrMissingSig     = errors.New("input missing signature")
	ErrInvalidSig     = errors.New("invalid signature")
)

// Validate checks the public shape of a transaction. Output values are
// sealed, so value rules belong to whoever can open them.
func (tx *Transaction) Validate() error {
	if tx.Version != CurrentVersion {
		return fmt.Errorf("%w: %d", ErrBadVersion, tx.Version)
	}
	if err := tx.checkCounts(); err != nil {
		return err
	}
	seen := make(map[types.Outpoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if _, dup := seen[in.PrevOut]; dup {
			return fmt.Errorf("input %d (%s): %w", i, in.PrevOut, ErrDuplicateInput)
		}
		seen[in.PrevOut] = struct{}{}
		if err := in.checkAuth(); err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
	}
	return nil
}

func (tx *Transaction) checkCounts() error {
	counts := []struct {
		n    int
		max  int
		none error
		over error
	}{
		{len(tx.Inputs), MaxTxInputs, ErrNoInputs, ErrTooManyInputs},
		{int(tx.OutputCount), MaxTxOutputs, ErrNoOutputs, ErrTooManyOutputs},
		{len(tx.Access), MaxViewKeys, ErrNoAccess, ErrTooManyAccess},
	}
	for _, c := range counts {
		if c.n == 0 {
			return c.none
		}
		if c.n > c.max {
			return fmt.Errorf("%w: %d, max %d", c.over, c.n, c.max)
		}
	}
	if len(tx.Sealed) == 0 {
		return fmt.Errorf("%w: empty sealed body", ErrNoOutputs)
	}
	return nil
}

func (in *Input) checkAuth() error {
	switch {
	case len(in.PubKey) == 0:
		return ErrMissingPubKey
	case crypto.ValidatePublicKey(in.PubKey) != nil:
		return ErrBadPubKey
	case len(in.Signature) == 0:
		return ErrMissingSig
	}
	return nil
}

// VerifySignatures checks every input signature against the transaction
// hash.
func (tx *Transaction) VerifySignatures() error {
	hash := tx.Hash()
	for i, in := range tx.Inputs {
		if !crypto.VerifySignature(hash[:], in.Signature, in.PubKey) {
			return fmt.Errorf("input %d: %w", i, ErrInvalidSig)
		}
	}
	return nil
}
