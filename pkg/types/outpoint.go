package types

import (
	"cmp"
	"encoding/binary"
	"fmt"
)

// OutpointSize is the length of the binary outpoint encoding.
const OutpointSize = HashSize + 4

// Outpoint names one output of one transaction.
type Outpoint struct {
	TxID  Hash   `json:"txid"`
	Index uint32 `json:"index"`
}

func (o Outpoint) IsZero() bool {
	return o == Outpoint{}
}

// String formats the outpoint as txid:index.
func (o Outpoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Index)
}

// Compare orders by txid bytes, then index. Store keys built with Bytes
// sort the same way.
func (o Outpoint) Compare(other Outpoint) int {
	if c := o.TxID.Compare(other.TxID); c != 0 {
		return c
	}
	return cmp.Compare(o.Index, other.Index)
}

// Bytes encodes the outpoint as txid | index (big endian).
func (o Outpoint) Bytes() []byte {
	return binary.BigEndian.AppendUint32(append(make([]byte, 0, OutpointSize), o.TxID[:]...), o.Index)
}

// OutpointFromBytes reverses Bytes.
func OutpointFromBytes(b []byte) (Outpoint, error) {
	var o Outpoint
	if len(b) != OutpointSize {
		return o, fmt.Errorf("outpoint: want %d bytes, got %d", OutpointSize, len(b))
	}
	o.TxID = Hash(b[:HashSize])
	o.Index = binary.BigEndian.Uint32(b[HashSize:])
	return o, nil
}
