package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/engine"
	"github.com/Klingon-tech/klingwallet/internal/rpc"
	"github.com/Klingon-tech/klingwallet/internal/rpcclient"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(config.Testnet)
	cfg.DataDir = t.TempDir()
	cfg.RPC.Port = 0 // Use random port.
	cfg.Devnet.Enabled = true
	cfg.Devnet.BlockInterval = 10 * time.Millisecond
	cfg.Fee.Policy = config.FeeZero
	cfg.Sync.PollInterval = 10 * time.Millisecond
	cfg.Keystore.Memory = 64
	cfg.Keystore.Iterations = 1
	cfg.Keystore.Parallelism = 1
	cfg.Log.Level = "error"
	return cfg
}

func TestDaemonLifecycle(t *testing.T) {
	d, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if d.RPCAddr() == "" {
		t.Error("RPCAddr should not be empty")
	}
	if d.Devnet() == nil {
		t.Error("devnet should be enabled")
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Stop should not panic or error.
	d.Stop()
}

func TestDaemon_FundedWalletSyncsInBackground(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	d, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	ctx := context.Background()
	client := rpcclient.New("http://" + d.RPCAddr())
	var created rpc.WalletCreateResult
	if err := client.Call(ctx, "wallet_create", rpc.WalletCreateParam{Name: "alice", Passphrase: "pw"}, &created); err != nil {
		t.Fatalf("wallet_create: %v", err)
	}
	h := string(created.Handle)

	var addr string
	if err := client.Call(ctx, "wallet_createTransferAddress", rpc.HandleParam{Handle: h}, &addr); err != nil {
		t.Fatalf("wallet_createTransferAddress: %v", err)
	}
	var vk string
	if err := client.Call(ctx, "wallet_getViewKey", rpc.ViewKeyParam{Handle: h}, &vk); err != nil {
		t.Fatalf("wallet_getViewKey: %v", err)
	}
	fund := rpc.DevnetFundParam{Address: addr, Amount: "1234", ViewKeys: []string{vk}}
	if err := client.Call(ctx, "devnet_fund", fund, nil); err != nil {
		t.Fatalf("devnet_fund: %v", err)
	}

	// Neither mining nor sync is triggered explicitly.
	deadline := time.Now().Add(5 * time.Second)
	for {
		var bal engine.BalanceView
		if err := client.Call(ctx, "wallet_balance", rpc.HandleParam{Handle: h}, &bal); err != nil {
			t.Fatalf("wallet_balance: %v", err)
		}
		if bal.Available == "1234" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("balance never reached 1234: %+v", bal)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
