package nodeclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Klingon-tech/klingwallet/internal/devnet"
	"github.com/Klingon-tech/klingwallet/internal/engine"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/rpc"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// remote starts a daemon exposing a devnet over node_* methods.
func remote(t *testing.T) (*devnet.Devnet, *Client) {
	t.Helper()
	klog.SetOutput(io.Discard, "error")
	node, err := devnet.New(storage.NewMemory(), devnet.Config{})
	if err != nil {
		t.Fatalf("devnet.New: %v", err)
	}
	ks, err := wallet.NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	daemon := engine.New(engine.Config{}, ks, storage.NewMemory(), node)
	t.Cleanup(daemon.Close)

	srv := rpc.New("127.0.0.1:0", daemon)
	srv.SetNode(node)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return node, New(ts.URL, 5*time.Second)
}

func TestClient_WalletOverRPC(t *testing.T) {
	node, client := remote(t)

	ks, err := wallet.NewKeystore(t.TempDir())
	if err != nil {
		t.Fatalf("NewKeystore: %v", err)
	}
	eng := engine.New(engine.Config{
		KDF:          wallet.EncryptionParams{Memory: 64, Iterations: 1, Parallelism: 1},
		PollInterval: 5 * time.Millisecond,
	}, ks, storage.NewMemory(), client)
	defer eng.Close()

	ctx := context.Background()
	h, _, err := eng.Create(ctx, engine.CreateWalletParams{Name: "alice", Passphrase: "pw"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	addrStr, err := eng.CreateTransferAddress(h)
	if err != nil {
		t.Fatalf("CreateTransferAddress: %v", err)
	}
	addr, _ := types.ParseAddress(addrStr)
	vk, _ := eng.GetViewKey(h, true)
	pub, _ := wallet.ParseViewKey(vk)
	if _, err := node.Fund(addr, 700, pub); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	if _, err := node.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}

	res, err := eng.Sync(ctx, h)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if res.Processed != 1 || res.Height != 1 {
		t.Fatalf("sync result = %+v", res)
	}

	// Send to self through the remote node.
	self, _ := eng.CreateTransferAddress(h)
	txid, err := eng.SendToAddress(ctx, h, self, "200", nil)
	if err != nil {
		t.Fatalf("SendToAddress: %v", err)
	}
	if _, err := node.Mine(); err != nil {
		t.Fatalf("Mine: %v", err)
	}
	height, err := eng.WaitConfirmed(ctx, txid, 2*time.Second)
	if err != nil {
		t.Fatalf("WaitConfirmed: %v", err)
	}
	if height != 2 {
		t.Errorf("confirmed at %d, want 2", height)
	}
	if _, err := eng.Sync(ctx, h); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	bal, _ := eng.Balance(h)
	if bal.Available != "700" {
		t.Errorf("available = %s, want 700", bal.Available)
	}
}

func TestClient_RejectedMapsToSentinel(t *testing.T) {
	node, client := remote(t)
	ctx := context.Background()

	view, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if _, err := node.Fund(types.Address{1}, 5, view.PublicKey()); err != nil {
		t.Fatalf("Fund: %v", err)
	}
	b, err := node.Mine()
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}

	items, tip, err := client.ConfirmedSince(ctx, 1)
	if err != nil {
		t.Fatalf("ConfirmedSince: %v", err)
	}
	if tip != b.Height || len(items) != 1 {
		t.Fatalf("got %d items tip %d", len(items), tip)
	}

	// The funding transaction is already confirmed; resubmitting it is refused.
	ftx, err := tx.Deserialize(items[0].Raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	_, err = client.Submit(ctx, ftx)
	if !errors.Is(err, engine.ErrRejected) {
		t.Fatalf("Submit err = %v, want ErrRejected", err)
	}

	confirmed, height, err := client.Status(ctx, ftx.Hash())
	if err != nil || !confirmed || height != b.Height {
		t.Errorf("Status = %v %d %v", confirmed, height, err)
	}
	if client.State() != gobreaker.StateClosed {
		t.Errorf("refusals tripped the breaker: %v", client.State())
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	klog.SetOutput(io.Discard, "error")
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer ts.Close()

	client := New(ts.URL, time.Second)
	ctx := context.Background()
	for i := 0; i <= MaxFailingRequests; i++ {
		if _, _, err := client.Status(ctx, types.Hash{}); err == nil {
			t.Fatal("expected error from failing node")
		}
	}
	if client.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", client.State())
	}
	_, _, err := client.Status(ctx, types.Hash{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("err = %v, want ErrOpenState", err)
	}
}
