// Package tx defines the sealed transaction format, its codec and the
// fee policies used when building transfers.
package tx

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// CurrentVersion is the transaction format version produced by the builder.
const CurrentVersion uint32 = 1

// ErrNotAddressed is returned by Open when none of the access entries
// unwraps with the given view key.
var ErrNotAddressed = errors.New("transaction not addressed to view key")

// Transaction is a value transfer. Inputs, the fee and the number of
// outputs are public; the outputs themselves are sealed and readable only
// by holders of an authorized view key.
type Transaction struct {
	Version     uint32   `json:"version"`
	Inputs      []Input  `json:"inputs"`
	OutputCount uint32   `json:"output_count"`
	Fee         uint64   `json:"fee"`
	Sealed      []byte   `json:"sealed"`
	Access      []Access `json:"access"`
}

// Input references an output being spent.
type Input struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature []byte         `json:"signature"`
	PubKey    []byte         `json:"pubkey"`
}

// inputJSON is the JSON representation of Input with hex-encoded byte fields.
type inputJSON struct {
	PrevOut   types.Outpoint `json:"prevout"`
	Signature *string        `json:"signature"`
	PubKey    *string        `json:"pubkey"`
}

// MarshalJSON encodes the input with hex-encoded signature and pubkey.
func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{PrevOut: in.PrevOut}
	if in.Signature != nil {
		s := hex.EncodeToString(in.Signature)
		j.Signature = &s
	}
	if in.PubKey != nil {
		p := hex.EncodeToString(in.PubKey)
		j.PubKey = &p
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes an input with hex-encoded signature and pubkey.
func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	if j.Signature != nil {
		b, err := hex.DecodeString(*j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	if j.PubKey != nil {
		b, err := hex.DecodeString(*j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	return nil
}

// Access carries the payload key wrapped for one authorized view key.
type Access struct {
	Ephemeral []byte `json:"ephemeral"`
	Wrapped   []byte `json:"wrapped"`
}

// Output is a plaintext output, available after opening the sealed body.
type Output struct {
	Value   uint64        `json:"value"`
	Address types.Address `json:"address"`
}

// Hash computes the transaction ID (BLAKE3 hash of the signing bytes).
// Signatures are excluded.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for signing.
// Format: version(4) | input_count(4) | [prevout(36)]... | output_count(4) |
// fee(8) | sealed_len(4) | sealed | access_count(4) | [ephemeral(33) | wrapped_len(4) | wrapped]...
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
	}
	return tx.appendBody(buf)
}

func (tx *Transaction) appendBody(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, tx.OutputCount)
	buf = binary.LittleEndian.AppendUint64(buf, tx.Fee)
	buf = appendBytes(buf, tx.Sealed)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Access)))
	for _, a := range tx.Access {
		buf = append(buf, padKey(a.Ephemeral)...)
		buf = appendBytes(buf, a.Wrapped)
	}
	return buf
}

// Outpoint returns the outpoint of the i-th output of this transaction.
func (tx *Transaction) Outpoint(i uint32) types.Outpoint {
	return types.Outpoint{TxID: tx.Hash(), Index: i}
}

// Open decrypts the sealed outputs with a view key. It returns
// ErrNotAddressed when no access entry belongs to the key.
func (tx *Transaction) Open(view *crypto.PrivateKey) ([]Output, error) {
	for _, a := range tx.Access {
		key, err := crypto.UnwrapKey(view, a.Ephemeral, a.Wrapped)
		if errors.Is(err, crypto.ErrNotForKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("unwrap access entry: %w", err)
		}
		plain, err := crypto.OpenPayload(key, tx.Sealed)
		if err != nil {
			return nil, err
		}
		outs, err := decodeOutputs(plain)
		if err != nil {
			return nil, err
		}
		if uint32(len(outs)) != tx.OutputCount {
			return nil, fmt.Errorf("sealed body has %d outputs, header says %d", len(outs), tx.OutputCount)
		}
		return outs, nil
	}
	return nil, ErrNotAddressed
}

// TotalOutputValue returns the sum of output values.
// Returns an error if the sum overflows uint64.
func TotalOutputValue(outs []Output) (uint64, error) {
	var total uint64
	for _, out := range outs {
		if total > math.MaxUint64-out.Value {
			return 0, fmt.Errorf("output value overflow")
		}
		total += out.Value
	}
	return total, nil
}

// encodeOutputs serializes outputs as count(4) | [value(8) | address(20)]...
func encodeOutputs(outs []Output) []byte {
	buf := make([]byte, 0, 4+outputSize*len(outs))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(outs)))
	for _, out := range outs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, out.Address[:]...)
	}
	return buf
}

func decodeOutputs(b []byte) ([]Output, error) {
	r := reader{buf: b}
	n := r.uint32()
	if r.err == nil && uint64(n)*outputSize != uint64(len(b)-4) {
		return nil, fmt.Errorf("output body length %d does not match %d outputs", len(b), n)
	}
	outs := make([]Output, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		var out Output
		out.Value = r.uint64()
		copy(out.Address[:], r.take(types.AddressSize))
		outs = append(outs, out)
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode outputs: %w", r.err)
	}
	return outs, nil
}

func appendBytes(buf, b []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// padKey returns a fixed 33-byte slot for a compressed public key so the
// layout does not depend on the caller's slice length.
func padKey(k []byte) []byte {
	out := make([]byte, crypto.PublicKeySize)
	copy(out, k)
	return out
}
