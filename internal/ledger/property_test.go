package ledger

import (
	"testing"

	"github.com/rs/zerolog"
	"pgregory.net/rapid"

	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// ledgerMachine drives a ledger with random funding, sends, confirmations
// and releases, and tracks the balance it should report.
type ledgerMachine struct {
	l       *Ledger
	view    *crypto.PrivateKey
	height  uint64
	nonce   byte
	total   uint64 // expected Total
	pending map[types.Hash]*tx.Transaction
	sends   map[types.Hash]PendingSend
}

func (m *ledgerMachine) fund(rt *rapid.T) {
	v := rapid.Uint64Range(1, 1_000_000).Draw(rt, "fund")
	m.nonce++
	m.height++
	ft := build(rt, []types.Outpoint{{TxID: types.Hash{0x50, m.nonce}}}, []tx.Output{{Value: v, Address: ownAddr}}, 0, m.view)
	if _, err := m.l.Synchronize(m.view, []ConfirmedTx{confirmed(ft, m.height)}); err != nil {
		rt.Fatalf("Synchronize: %v", err)
	}
	m.total += v
}

func (m *ledgerMachine) send(rt *rapid.T) {
	spendable := m.l.Spendable()
	if len(spendable) == 0 {
		rt.Skip("nothing to spend")
	}
	in := rapid.SampledFrom(spendable).Draw(rt, "input")
	amount := rapid.Uint64Range(0, in.Value).Draw(rt, "amount")
	fee := rapid.Uint64Range(0, in.Value-amount).Draw(rt, "fee")
	change := in.Value - amount - fee

	outs := []tx.Output{{Value: amount, Address: foreignAddr}}
	if change > 0 {
		outs = append(outs, tx.Output{Value: change, Address: changeAddr})
	}
	st := build(rt, []types.Outpoint{in.Outpoint}, outs, fee, m.view)
	p := PendingSend{TxID: st.Hash(), Inputs: []types.Outpoint{in.Outpoint}, Amount: amount, Fee: fee}
	if change > 0 {
		p.Change = &Output{Outpoint: types.Outpoint{TxID: st.Hash(), Index: 1}, Address: changeAddr, Value: change}
	}
	if err := m.l.Reserve(p); err != nil {
		rt.Fatalf("Reserve: %v", err)
	}
	m.pending[p.TxID] = st
	m.sends[p.TxID] = p
	m.total -= amount + fee
}

func (m *ledgerMachine) pick(rt *rapid.T) types.Hash {
	if len(m.pending) == 0 {
		rt.Skip("no pending send")
	}
	ids := make([]types.Hash, 0, len(m.pending))
	for _, p := range m.l.Pending() {
		ids = append(ids, p.TxID)
	}
	return rapid.SampledFrom(ids).Draw(rt, "send")
}

func (m *ledgerMachine) confirm(rt *rapid.T) {
	id := m.pick(rt)
	m.height++
	if _, err := m.l.Synchronize(m.view, []ConfirmedTx{confirmed(m.pending[id], m.height)}); err != nil {
		rt.Fatalf("Synchronize: %v", err)
	}
	delete(m.pending, id)
	delete(m.sends, id)
}

func (m *ledgerMachine) release(rt *rapid.T) {
	id := m.pick(rt)
	if err := m.l.Release(id); err != nil {
		rt.Fatalf("Release: %v", err)
	}
	p := m.sends[id]
	m.total += p.Amount + p.Fee
	delete(m.pending, id)
	delete(m.sends, id)
}

func (m *ledgerMachine) check(rt *rapid.T) {
	b := m.l.Balance()
	if b.Total != b.Available+b.Pending {
		rt.Fatalf("total %d != available %d + pending %d", b.Total, b.Available, b.Pending)
	}
	if b.Total != m.total {
		rt.Fatalf("total = %d, want %d", b.Total, m.total)
	}
	var avail uint64
	for _, o := range m.l.Spendable() {
		avail += o.Value
	}
	if avail != b.Available {
		rt.Fatalf("available = %d, spendable outputs sum to %d", b.Available, avail)
	}
	if len(m.pending) == 0 && b.Pending != 0 {
		rt.Fatalf("pending = %d with no unconfirmed sends", b.Pending)
	}
}

func TestLedger_BalanceInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		view, err := crypto.GenerateKey()
		if err != nil {
			rt.Fatalf("GenerateKey: %v", err)
		}
		owner := testOwner{
			ownAddr:    {Change: wallet.ChangeExternal, Index: 0},
			changeAddr: {Change: wallet.ChangeInternal, Index: 0},
		}
		l, err := Open(storage.NewMemory(), owner, zerolog.Nop())
		if err != nil {
			rt.Fatalf("Open: %v", err)
		}
		m := &ledgerMachine{
			l:       l,
			view:    view,
			pending: make(map[types.Hash]*tx.Transaction),
			sends:   make(map[types.Hash]PendingSend),
		}
		rt.Repeat(map[string]func(*rapid.T){
			"fund":    m.fund,
			"send":    m.send,
			"confirm": m.confirm,
			"release": m.release,
			"":        m.check,
		})
	})
}
