package ledger

import (
	"sort"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Balance projects the current output set. Total always equals
// Available + Pending.
func (l *Ledger) Balance() Balance {
	return l.snapshot().balance()
}

// Transactions returns up to limit records starting at offset, ordered by
// (height, sequence). With reverse the most recent record comes first.
// A non-positive limit returns everything after offset.
func (l *Ledger) Transactions(offset, limit int, reverse bool) []Record {
	records := l.snapshot().records
	n := len(records)
	if offset < 0 {
		offset = 0
	}
	if offset >= n {
		return []Record{}
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}

	out := make([]Record, 0, end-offset)
	for i := offset; i < end; i++ {
		if reverse {
			out = append(out, records[n-1-i])
		} else {
			out = append(out, records[i])
		}
	}
	return out
}

// TransactionCount returns the number of history records.
func (l *Ledger) TransactionCount() int {
	return len(l.snapshot().records)
}

// Outputs returns every tracked output ordered by outpoint.
func (l *Ledger) Outputs() []Output {
	st := l.snapshot()
	out := make([]Output, 0, len(st.outputs))
	for _, o := range st.outputs {
		out = append(out, o)
	}
	sortOutputs(out)
	return out
}

// Spendable returns the UNSPENT outputs ordered by outpoint.
func (l *Ledger) Spendable() []Output {
	return l.snapshot().spendable()
}

// Output looks up a single tracked output.
func (l *Ledger) Output(op types.Outpoint) (Output, bool) {
	o, ok := l.snapshot().outputs[op]
	return o, ok
}

// Pending returns the unconfirmed sends, oldest first.
func (l *Ledger) Pending() []PendingSend {
	st := l.snapshot()
	out := make([]PendingSend, 0, len(st.pending))
	for _, p := range st.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].TxID.String() < out[j].TxID.String()
	})
	return out
}

// Height returns the confirmation cursor: the highest block height seen.
func (l *Ledger) Height() uint64 {
	return l.snapshot().height
}

// Processed reports whether a transaction has been applied.
func (l *Ledger) Processed(id types.Hash) bool {
	_, ok := l.snapshot().seen[id]
	return ok
}
