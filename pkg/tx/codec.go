package tx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

const (
	outputSize = 8 + types.AddressSize

	// Decode limits. A transaction larger than these is not something the
	// builder can produce.
	maxInputs      = 1 << 12
	maxAccess      = 1 << 10
	maxFieldLength = 1 << 20
)

var errShortBuffer = errors.New("unexpected end of data")

// Serialize returns the full wire encoding, including signatures.
// Format: version(4) | input_count(4) | [prevout(36) | sig_len(4) | sig | pub_len(4) | pub]... | body
// where body is the tail of SigningBytes.
func (tx *Transaction) Serialize() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxID[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		buf = appendBytes(buf, in.Signature)
		buf = appendBytes(buf, in.PubKey)
	}
	return tx.appendBody(buf)
}

// Deserialize decodes bytes produced by Serialize. Trailing data is an error.
func Deserialize(b []byte) (*Transaction, error) {
	r := reader{buf: b}
	tx := &Transaction{Version: r.uint32()}

	n := r.uint32()
	if n > maxInputs {
		return nil, fmt.Errorf("too many inputs: %d", n)
	}
	for i := uint32(0); i < n && r.err == nil; i++ {
		var in Input
		copy(in.PrevOut.TxID[:], r.take(types.HashSize))
		in.PrevOut.Index = r.uint32()
		in.Signature = r.bytes()
		in.PubKey = r.bytes()
		tx.Inputs = append(tx.Inputs, in)
	}

	tx.OutputCount = r.uint32()
	tx.Fee = r.uint64()
	tx.Sealed = r.bytes()

	n = r.uint32()
	if n > maxAccess {
		return nil, fmt.Errorf("too many access entries: %d", n)
	}
	for i := uint32(0); i < n && r.err == nil; i++ {
		var a Access
		a.Ephemeral = append([]byte(nil), r.take(33)...)
		a.Wrapped = r.bytes()
		tx.Access = append(tx.Access, a)
	}

	if r.err != nil {
		return nil, fmt.Errorf("decode transaction: %w", r.err)
	}
	if r.off != len(b) {
		return nil, fmt.Errorf("decode transaction: %d trailing bytes", len(b)-r.off)
	}
	return tx, nil
}

// reader is a bounds-checked cursor. After the first error every read
// returns zero values and the error sticks.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = errShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) bytes() []byte {
	n := r.uint32()
	if r.err != nil {
		return nil
	}
	if n > maxFieldLength {
		r.err = fmt.Errorf("field length %d exceeds limit", n)
		return nil
	}
	b := r.take(int(n))
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
