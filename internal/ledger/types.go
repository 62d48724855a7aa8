// Package ledger tracks the outputs and transaction history of one wallet
// and keeps them in step with confirmed transactions.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Ledger errors.
var (
	ErrOutputUnavailable = errors.New("output not available for spending")
	ErrUnknownSend       = errors.New("no pending send with this id")
	ErrDuplicateSend     = errors.New("send already reserved")
)

// State is the lifecycle state of an owned output.
type State uint8

// Output states.
const (
	StatePendingReceive State = iota + 1 // change of an unconfirmed send
	StateUnspent                         // confirmed, spendable
	StatePendingSpend                    // reserved by an unconfirmed send
	StateSpent                           // spent by a confirmed transaction
)

var stateNames = map[State]string{
	StatePendingReceive: "PENDING_RECEIVE",
	StateUnspent:        "UNSPENT",
	StatePendingSpend:   "PENDING_SPEND",
	StateSpent:          "SPENT",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("invalid output state %d", uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for st, n := range stateNames {
		if n == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("invalid output state %q", b)
}

// Output is a value unit owned by the wallet.
type Output struct {
	Outpoint   types.Outpoint `json:"outpoint"`
	Address    types.Address  `json:"address"`
	Path       wallet.KeyPath `json:"path"`
	Value      uint64         `json:"value"`
	State      State          `json:"state"`
	ReservedBy types.Hash     `json:"reserved_by,omitempty"`
	Height     uint64         `json:"height"`
}

// Direction says whether a record moved value into or out of the wallet.
type Direction string

// Record directions.
const (
	Incoming Direction = "INCOMING"
	Outgoing Direction = "OUTGOING"
)

// Record is an immutable history entry. There is at most one record per
// (transaction id, direction).
type Record struct {
	TxID        types.Hash `json:"txid"`
	Direction   Direction  `json:"direction"`
	Amount      uint64     `json:"amount"`
	Fee         uint64     `json:"fee"`
	Height      uint64     `json:"height"`
	Time        time.Time  `json:"time"`
	Counterpart string     `json:"counterpart,omitempty"`
	Sequence    uint64     `json:"sequence"`
}

// Balance is a projection of the output set.
// Total == Available + Pending at all times.
type Balance struct {
	Total     uint64
	Pending   uint64
	Available uint64
}

// ConfirmedTx is one item of the confirmation stream.
type ConfirmedTx struct {
	Raw    []byte
	Height uint64
	Time   time.Time
}

// PendingSend describes a built but unconfirmed outgoing transaction.
type PendingSend struct {
	TxID        types.Hash       `json:"txid"`
	Inputs      []types.Outpoint `json:"inputs"`
	Change      *Output          `json:"change,omitempty"`
	Amount      uint64           `json:"amount"`
	Fee         uint64           `json:"fee"`
	Counterpart string           `json:"counterpart"`
	Created     time.Time        `json:"created"`
}

// SoftFailure reports one stream item that could not be processed.
type SoftFailure struct {
	Index int    // position in the submitted batch
	TxID  string // empty when the item could not be decoded
	Err   error
}

func (f SoftFailure) Error() string {
	if f.TxID == "" {
		return fmt.Sprintf("item %d: %v", f.Index, f.Err)
	}
	return fmt.Sprintf("item %d (%s): %v", f.Index, f.TxID, f.Err)
}

// SyncResult summarises one Synchronize call.
type SyncResult struct {
	// Processed counts transactions that touched the wallet.
	Processed int
	// Skipped counts transactions already processed or not ours.
	Skipped int
	// Records holds the records appended by this call.
	Records []Record
	// Used lists owned key paths that received outputs.
	Used     []wallet.KeyPath
	Failures []SoftFailure
	// Height is the confirmation cursor after the call.
	Height uint64
}
