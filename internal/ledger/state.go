package ledger

import (
	"maps"
	"slices"
	"sort"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// state is an immutable snapshot once published. Writers clone it, mutate
// the clone and publish the clone after the store commit succeeds.
type state struct {
	outputs map[types.Outpoint]Output
	records []Record // sorted by (height, sequence)
	seen    map[types.Hash]struct{}
	pending map[types.Hash]PendingSend
	// consumed maps every outpoint spent by a processed transaction to
	// its spender, so an output delivered after its spend starts SPENT.
	consumed map[types.Outpoint]types.Hash
	height   uint64
	nextSeq  uint64
}

func newState() *state {
	return &state{
		outputs:  make(map[types.Outpoint]Output),
		seen:     make(map[types.Hash]struct{}),
		pending:  make(map[types.Hash]PendingSend),
		consumed: make(map[types.Outpoint]types.Hash),
	}
}

func (s *state) clone() *state {
	c := &state{
		outputs:  maps.Clone(s.outputs),
		records:  make([]Record, len(s.records), len(s.records)+4),
		seen:     maps.Clone(s.seen),
		pending:  maps.Clone(s.pending),
		consumed: maps.Clone(s.consumed),
		height:   s.height,
		nextSeq:  s.nextSeq,
	}
	copy(c.records, s.records)
	return c
}

func (s *state) balance() Balance {
	var b Balance
	for _, o := range s.outputs {
		switch o.State {
		case StateUnspent:
			b.Available += o.Value
		case StatePendingReceive:
			b.Pending += o.Value
		}
	}
	b.Total = b.Available + b.Pending
	return b
}

// spendable returns the UNSPENT outputs ordered by outpoint.
func (s *state) spendable() []Output {
	var out []Output
	for _, o := range s.outputs {
		if o.State == StateUnspent {
			out = append(out, o)
		}
	}
	sortOutputs(out)
	return out
}

func sortOutputs(outs []Output) {
	slices.SortFunc(outs, func(a, b Output) int { return a.Outpoint.Compare(b.Outpoint) })
}

func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Height != rs[j].Height {
			return rs[i].Height < rs[j].Height
		}
		return rs[i].Sequence < rs[j].Sequence
	})
}
