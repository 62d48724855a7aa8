package ledger

import (
	"testing"

	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

func fundMany(t *testing.T, f *fixture, n int) {
	t.Helper()
	var batch []ConfirmedTx
	for i := 0; i < n; i++ {
		ft := build(t, []types.Outpoint{{TxID: types.Hash{0x40, byte(i)}}}, []tx.Output{{Value: uint64(i + 1), Address: ownAddr}}, 0, f.view)
		batch = append(batch, confirmed(ft, uint64(i/2+1)))
	}
	if _, err := f.l.Synchronize(f.view, batch); err != nil {
		t.Fatalf("Synchronize: %v", err)
	}
}

func TestTransactions_Paging(t *testing.T) {
	f := newFixture(t)
	fundMany(t, f, 5)

	all := f.l.Transactions(0, 0, false)
	if len(all) != 5 {
		t.Fatalf("records = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		a, b := all[i-1], all[i]
		if a.Height > b.Height || (a.Height == b.Height && a.Sequence >= b.Sequence) {
			t.Fatalf("records out of order at %d: %+v then %+v", i, a, b)
		}
	}

	tests := []struct {
		name          string
		offset, limit int
		reverse       bool
		want          []int // indices into all
	}{
		{"first page", 0, 2, false, []int{0, 1}},
		{"second page", 2, 2, false, []int{2, 3}},
		{"tail", 4, 2, false, []int{4}},
		{"past end", 9, 2, false, nil},
		{"reverse first page", 0, 2, true, []int{4, 3}},
		{"reverse tail", 3, 5, true, []int{1, 0}},
		{"negative offset", -3, 1, false, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.l.Transactions(tt.offset, tt.limit, tt.reverse)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, idx := range tt.want {
				if got[i].TxID != all[idx].TxID {
					t.Errorf("item %d = %s, want %s", i, got[i].TxID, all[idx].TxID)
				}
			}
		})
	}
}

func TestTransactions_StableBetweenSyncs(t *testing.T) {
	f := newFixture(t)
	fundMany(t, f, 3)

	page := f.l.Transactions(0, 3, false)
	// Later confirmations only append.
	fundMany(t, f, 0)
	f.fund(t, 99, 50)
	again := f.l.Transactions(0, 3, false)
	for i := range page {
		if page[i] != again[i] {
			t.Errorf("record %d changed: %+v -> %+v", i, page[i], again[i])
		}
	}
	if f.l.TransactionCount() != 4 {
		t.Errorf("count = %d, want 4", f.l.TransactionCount())
	}
}

func TestOutputs_Sorted(t *testing.T) {
	f := newFixture(t)
	fundMany(t, f, 4)

	outs := f.l.Outputs()
	if len(outs) != 4 {
		t.Fatalf("outputs = %d", len(outs))
	}
	for i := 1; i < len(outs); i++ {
		if outs[i-1].Outpoint.Compare(outs[i].Outpoint) >= 0 {
			t.Errorf("outputs not ordered at %d", i)
		}
	}
	if len(f.l.Spendable()) != 4 {
		t.Error("all funded outputs should be spendable")
	}
}

func TestSnapshot_IsolatedFromWriters(t *testing.T) {
	f := newFixture(t)
	op := f.fund(t, 1000, 1)

	snap := f.l.snapshot()
	_, p := f.send(t, []types.Outpoint{op}, 1000, 100, 0)
	if err := f.l.Reserve(p); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if snap.outputs[op].State != StateUnspent {
		t.Error("published snapshot was mutated by a writer")
	}
	if b := snap.balance(); b.Available != 1000 {
		t.Errorf("old snapshot balance = %+v", b)
	}
}
