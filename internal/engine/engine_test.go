package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// fakeNode serves a fixed confirmation stream and records submissions.
type fakeNode struct {
	mu        sync.Mutex
	items     []ledger.ConfirmedTx
	submitErr error
	submitted []*tx.Transaction
	confirmed map[types.Hash]uint64
	fetches   int
}

func newFakeNode() *fakeNode {
	return &fakeNode{confirmed: make(map[types.Hash]uint64)}
}

func (n *fakeNode) Submit(_ context.Context, t *tx.Transaction) (types.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.submitErr != nil {
		return types.Hash{}, n.submitErr
	}
	n.submitted = append(n.submitted, t)
	return t.Hash(), nil
}

func (n *fakeNode) ConfirmedSince(_ context.Context, from uint64) ([]ledger.ConfirmedTx, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fetches++
	var out []ledger.ConfirmedTx
	var tip uint64
	for _, it := range n.items {
		if it.Height >= from {
			out = append(out, it)
		}
		if it.Height > tip {
			tip = it.Height
		}
	}
	return out, tip, nil
}

func (n *fakeNode) Status(_ context.Context, id types.Hash) (bool, uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.confirmed[id]
	return ok, h, nil
}

// confirm appends t to the stream at the given height.
func (n *fakeNode) confirm(t *tx.Transaction, height uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, ledger.ConfirmedTx{Raw: t.Serialize(), Height: height, Time: time.Unix(int64(height), 0).UTC()})
	n.confirmed[t.Hash()] = height
}

func fastKDF() wallet.EncryptionParams {
	return wallet.EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1}
}

func newTestEngine(t *testing.T, node Node) *Engine {
	t.Helper()
	ks, err := wallet.NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	e := New(Config{KDF: fastKDF(), PollInterval: 5 * time.Millisecond}, ks, storage.NewMemory(), node)
	t.Cleanup(e.Close)
	return e
}

func restore(t *testing.T, e *Engine, name string) Handle {
	t.Helper()
	h, err := e.Restore(context.Background(), CreateWalletParams{Name: name, Passphrase: "pass"}, testMnemonic)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	return h
}

// fund confirms a faucet transaction paying value to a fresh address of h.
func fund(t *testing.T, e *Engine, node *fakeNode, h Handle, value, height uint64) {
	t.Helper()
	node.confirm(fundingTx(t, e, h, value), height)
	if _, err := e.Sync(context.Background(), h); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

// fundingTx builds a faucet payment of value to a fresh address of h.
func fundingTx(t *testing.T, e *Engine, h Handle, value uint64) *tx.Transaction {
	t.Helper()
	addrStr, err := e.CreateTransferAddress(h)
	if err != nil {
		t.Fatalf("CreateTransferAddress: %v", err)
	}
	addr, err := types.ParseAddress(addrStr)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	inst, _ := e.get(h)
	faucet, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	b := tx.NewBuilder().
		AddInput(types.Outpoint{TxID: crypto.Hash([]byte(addrStr))}).
		AddOutput(value, addr).
		AddViewKey(inst.acct.ViewPublicKey())
	if err := b.Seal(); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if err := b.Sign(faucet); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b.Build()
}

func TestEngine_RestoreDeterministic(t *testing.T) {
	e1 := newTestEngine(t, newFakeNode())
	e2 := newTestEngine(t, newFakeNode())
	h1 := restore(t, e1, "a")
	h2 := restore(t, e2, "b")

	for i := 0; i < 3; i++ {
		a1, err := e1.CreateTransferAddress(h1)
		if err != nil {
			t.Fatalf("CreateTransferAddress: %v", err)
		}
		a2, _ := e2.CreateTransferAddress(h2)
		if a1 != a2 {
			t.Fatalf("address %d differs: %s vs %s", i, a1, a2)
		}
	}
	v1, _ := e1.GetViewKey(h1, false)
	v2, _ := e2.GetViewKey(h2, false)
	if v1 != v2 {
		t.Fatal("view keys differ for the same mnemonic")
	}
}

func TestEngine_RestoreErrors(t *testing.T) {
	e := newTestEngine(t, newFakeNode())
	_, err := e.Restore(context.Background(), CreateWalletParams{Name: "w", Passphrase: "p"}, "not a mnemonic")
	if !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("bad mnemonic: got %v, want ErrInvalidMnemonic", err)
	}
	if !strings.Contains(err.Error(), "invalid mnemonic") {
		t.Fatalf("message = %q", err.Error())
	}

	restore(t, e, "w")
	_, err = e.Restore(context.Background(), CreateWalletParams{Name: "w", Passphrase: "p"}, testMnemonic)
	if !errors.Is(err, ErrWalletExists) {
		t.Fatalf("second restore: got %v, want ErrWalletExists", err)
	}
}

func TestEngine_CreateCloseOpen(t *testing.T) {
	e := newTestEngine(t, newFakeNode())
	h, mnemonic, err := e.Create(context.Background(), CreateWalletParams{Name: "fresh", Passphrase: "pw"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !wallet.ValidateMnemonic(mnemonic) {
		t.Fatalf("Create returned invalid mnemonic %q", mnemonic)
	}
	first, _ := e.CreateTransferAddress(h)

	if err := e.CloseWallet(h); err != nil {
		t.Fatalf("CloseWallet: %v", err)
	}
	if _, err := e.Balance(h); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("closed handle: got %v, want ErrUnknownHandle", err)
	}
	if _, err := e.Open(context.Background(), "fresh", "wrong"); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("wrong passphrase: got %v, want ErrWrongPassphrase", err)
	}
	if _, err := e.Open(context.Background(), "missing", "pw"); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("missing wallet: got %v, want ErrWalletNotFound", err)
	}

	h2, err := e.Open(context.Background(), "fresh", "pw")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h2 == h {
		t.Fatal("reopened wallet reused the closed handle")
	}
	second, _ := e.CreateTransferAddress(h2)
	if second == first {
		t.Fatal("address allocation restarted after reopen")
	}

	again, err := e.Open(context.Background(), "fresh", "pw")
	if err != nil || again != h2 {
		t.Fatalf("Open of open wallet = (%s, %v), want (%s, nil)", again, err, h2)
	}
}

func TestEngine_LockUnlock(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	fund(t, e, node, h, 1000, 1)

	if err := e.Lock(h); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if locked, _ := e.Locked(h); !locked {
		t.Fatal("Locked = false after Lock")
	}
	if _, err := e.GetViewKey(h, true); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("GetViewKey while locked: got %v", err)
	}
	if _, err := e.Sync(context.Background(), h); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("Sync while locked: got %v", err)
	}
	addr, _ := e.CreateTransferAddress(h)
	if _, err := e.SendToAddress(context.Background(), h, addr, "10", nil); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("Send while locked: got %v", err)
	}
	if _, err := e.CreateTransferAddress(h); err != nil {
		t.Fatalf("address allocation while locked: %v", err)
	}
	if bal, err := e.Balance(h); err != nil || bal.Available != "1000" {
		t.Fatalf("Balance while locked = (%+v, %v)", bal, err)
	}

	if err := e.Unlock(h, "nope"); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("Unlock with wrong passphrase: got %v", err)
	}
	if err := e.Unlock(h, "pass"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := e.Sync(context.Background(), h); err != nil {
		t.Fatalf("Sync after unlock: %v", err)
	}
}

func TestEngine_OpenLocked(t *testing.T) {
	e := newTestEngine(t, newFakeNode())
	h := restore(t, e, "w")
	want, _ := e.CreateTransferAddress(h)
	if err := e.CloseWallet(h); err != nil {
		t.Fatalf("CloseWallet: %v", err)
	}

	h2, err := e.OpenLocked("w")
	if err != nil {
		t.Fatalf("OpenLocked: %v", err)
	}
	if locked, _ := e.Locked(h2); !locked {
		t.Fatal("OpenLocked wallet is unlocked")
	}
	addrs, err := e.Addresses(h2)
	if err != nil {
		t.Fatalf("Addresses: %v", err)
	}
	found := false
	for _, a := range addrs {
		if a.Address.String() == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("address %s missing from %+v", want, addrs)
	}
}

func TestEngine_ViewKeyForms(t *testing.T) {
	e := newTestEngine(t, newFakeNode())
	h := restore(t, e, "w")

	red, err := e.GetViewKey(h, true)
	if err != nil {
		t.Fatalf("GetViewKey redacted: %v", err)
	}
	full, err := e.GetViewKey(h, false)
	if err != nil {
		t.Fatalf("GetViewKey full: %v", err)
	}
	if len(red) != 66 || len(full) != 130 {
		t.Fatalf("lengths = %d, %d; want 66, 130", len(red), len(full))
	}
	if !strings.HasPrefix(full, red) {
		t.Fatal("full view key does not start with the public part")
	}
}

func TestEngine_SendValidation(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	fund(t, e, node, h, 1000, 1)
	to, _ := e.CreateTransferAddress(h)

	tests := []struct {
		name     string
		addr     string
		amount   string
		viewKeys []string
		want     error
	}{
		{"bad address", "kgx1notanaddress", "10", nil, ErrInvalidAddress},
		{"zero amount", to, "0", nil, ErrInvalidAmount},
		{"fractional amount", to, "1.5", nil, ErrInvalidAmount},
		{"bad view key", to, "10", []string{"abcd"}, ErrInvalidViewKey},
		{"over balance", to, "1001", nil, ErrInsufficientBalance},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SendToAddress(context.Background(), h, tt.addr, tt.amount, tt.viewKeys)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	bal, _ := e.Balance(h)
	if bal != (BalanceView{Total: "1000", Pending: "0", Available: "1000"}) {
		t.Fatalf("balance changed by failed sends: %+v", bal)
	}
	if len(node.submitted) != 0 {
		t.Fatalf("%d transactions submitted", len(node.submitted))
	}
}

func TestEngine_InsufficientBalanceMessage(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	to, _ := e.CreateTransferAddress(h)

	_, err := e.SendToAddress(context.Background(), h, to, "5", nil)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if !strings.Contains(err.Error(), "Insufficient balance") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestEngine_SendRejectedReleases(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	fund(t, e, node, h, 1000, 1)
	to, _ := e.CreateTransferAddress(h)

	node.submitErr = ErrRejected
	if _, err := e.SendToAddress(context.Background(), h, to, "400", nil); !errors.Is(err, ErrRejected) {
		t.Fatalf("got %v, want ErrRejected", err)
	}
	bal, _ := e.Balance(h)
	if bal.Available != "1000" || bal.Pending != "0" {
		t.Fatalf("balance after rejection = %+v", bal)
	}
	if pending, _ := e.PendingSends(h); len(pending) != 0 {
		t.Fatalf("%d sends still reserved", len(pending))
	}

	node.submitErr = nil
	if _, err := e.SendToAddress(context.Background(), h, to, "400", nil); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestEngine_SendReservesUntilConfirmed(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	fund(t, e, node, h, 1000, 1)

	recipient := newTestEngine(t, newFakeNode())
	rh, _, err := recipient.Create(context.Background(), CreateWalletParams{Name: "r", Passphrase: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	to, _ := recipient.CreateTransferAddress(rh)

	id, err := e.SendToAddress(context.Background(), h, to, "300", nil)
	if err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if len(id) != 64 {
		t.Fatalf("txid %q is not 64 hex", id)
	}
	bal, _ := e.Balance(h)
	if bal != (BalanceView{Total: "700", Pending: "700", Available: "0"}) {
		t.Fatalf("balance while pending = %+v", bal)
	}

	node.confirm(node.submitted[0], 2)
	if _, err := e.Sync(context.Background(), h); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	bal, _ = e.Balance(h)
	if bal != (BalanceView{Total: "700", Pending: "0", Available: "700"}) {
		t.Fatalf("balance after confirm = %+v", bal)
	}
	history, _ := e.Transactions(h, 0, 0, true)
	if len(history) != 2 || history[0].Direction != ledger.Outgoing || history[0].Amount != "300" {
		t.Fatalf("history = %+v", history)
	}
	if history[0].TxID != id || history[0].Counterpart != to {
		t.Fatalf("outgoing record = %+v", history[0])
	}
}

func TestEngine_SyncIdempotent(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	h := restore(t, e, "w")
	fund(t, e, node, h, 1000, 1)

	for i := 0; i < 3; i++ {
		res, err := e.Sync(context.Background(), h)
		if err != nil {
			t.Fatalf("Sync: %v", err)
		}
		if res.Processed != 0 {
			t.Fatalf("repeat sync processed %d", res.Processed)
		}
	}
	if n, _ := e.Transactions(h, 0, 0, false); len(n) != 1 {
		t.Fatalf("history has %d records, want 1", len(n))
	}
}

func TestEngine_SyncAllSkipsLocked(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)
	restore(t, e, "one")
	h2, _, err := e.Create(context.Background(), CreateWalletParams{Name: "two", Passphrase: "p"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.Lock(h2); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := e.SyncAll(context.Background()); err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
}

func TestEngine_WaitConfirmed(t *testing.T) {
	node := newFakeNode()
	e := newTestEngine(t, node)

	id := crypto.Hash([]byte("pending"))
	_, err := e.WaitConfirmed(context.Background(), id.String(), 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}

	node.mu.Lock()
	node.confirmed[id] = 7
	node.mu.Unlock()
	height, err := e.WaitConfirmed(context.Background(), id.String(), time.Second)
	if err != nil || height != 7 {
		t.Fatalf("WaitConfirmed = (%d, %v), want (7, nil)", height, err)
	}

	if _, err := e.WaitConfirmed(context.Background(), "zz", time.Second); !errors.Is(err, ErrInvalidTxID) {
		t.Fatalf("invalid txid: err = %v, want ErrInvalidTxID", err)
	}
}

func TestEngine_Wallets(t *testing.T) {
	e := newTestEngine(t, newFakeNode())
	h := restore(t, e, "alpha")
	if _, _, err := e.Create(context.Background(), CreateWalletParams{Name: "beta", Passphrase: "p"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.Lock(h); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	list, err := e.Wallets()
	if err != nil {
		t.Fatalf("Wallets: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d wallets, want 2", len(list))
	}
	if list[0].Name != "alpha" || !list[0].Locked || list[0].Handle != h {
		t.Fatalf("alpha = %+v", list[0])
	}
	if list[1].Locked {
		t.Fatalf("beta = %+v, want unlocked", list[1])
	}
}
