package tx

import "fmt"

// Serialized size components, matching the Serialize layout for a fully
// signed transaction with compressed public keys and Schnorr signatures.
const (
	sizeOverhead = 4 + 4 + 4 + 8 + 4 + 4 // version, input count, output count, fee, sealed len, access count
	sizeSealed   = 24 + 16 + 4           // nonce, tag, output count in the sealed body
	sizeInput    = 36 + 4 + 64 + 4 + 33  // prevout, sig len, sig, pubkey len, pubkey
	sizeAccess   = 33 + 4 + 24 + 32 + 16 // ephemeral, wrapped len, nonce, key, tag
)

// EstimateSize returns the serialized size in bytes of a signed transaction
// with the given number of inputs, outputs and authorized view keys.
func EstimateSize(numInputs, numOutputs, numViewKeys int) int {
	return sizeOverhead + sizeSealed +
		sizeInput*numInputs +
		outputSize*numOutputs +
		sizeAccess*numViewKeys
}

// FeePolicy computes the fee for a transaction of a given shape.
// Implementations must be deterministic.
type FeePolicy interface {
	Fee(numInputs, numOutputs, numViewKeys int) uint64
	String() string
}

// ZeroFee always charges nothing.
type ZeroFee struct{}

// Fee implements FeePolicy.
func (ZeroFee) Fee(int, int, int) uint64 { return 0 }

func (ZeroFee) String() string { return "zero" }

// LinearFee charges Base plus PerByte for every byte of the estimated size.
type LinearFee struct {
	Base    uint64
	PerByte uint64
}

// Fee implements FeePolicy.
func (p LinearFee) Fee(numInputs, numOutputs, numViewKeys int) uint64 {
	size := EstimateSize(numInputs, numOutputs, numViewKeys)
	return p.Base + p.PerByte*uint64(size)
}

func (p LinearFee) String() string {
	return fmt.Sprintf("linear(base=%d, per_byte=%d)", p.Base, p.PerByte)
}

// RequiredFee returns the fee a policy charges for a built transaction.
func RequiredFee(transaction *Transaction, policy FeePolicy) uint64 {
	return policy.Fee(len(transaction.Inputs), int(transaction.OutputCount), len(transaction.Access))
}
