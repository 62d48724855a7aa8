// Package daemon assembles a wallet daemon from its configuration so it
// can be embedded in any binary.
package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingwallet/config"
	"github.com/Klingon-tech/klingwallet/internal/devnet"
	"github.com/Klingon-tech/klingwallet/internal/engine"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/nodeclient"
	"github.com/Klingon-tech/klingwallet/internal/rpc"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Daemon is a fully-initialized wallet daemon.
type Daemon struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Storage
	db       storage.DB
	devnetDB storage.DB

	engine *engine.Engine
	devnet *devnet.Devnet // nil when a remote node is used

	rpcServer *rpc.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates and initializes a Daemon. It opens storage, connects the
// node backend and starts the RPC listener, but does NOT start background
// goroutines (sync loop, block production). Call Start for that.
func New(cfg *config.Config) (*Daemon, error) {
	cfg.DataDir = config.ExpandPath(cfg.DataDir)

	// ── 1. Address HRP ──────────────────────────────────────────────
	types.SetNetwork(cfg.AddressNetwork())

	// ── 2. Logger ───────────────────────────────────────────────────
	logFile := cfg.Log.File
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "klingwallet.log")
	}
	if err := klog.Init(klog.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON, File: logFile}); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.For(klog.Daemon)

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).
		Bool("devnet", cfg.Devnet.Enabled).
		Str("fee", cfg.FeePolicy().String()).
		Msg("Starting klingwallet daemon")

	d := &Daemon{cfg: cfg, logger: logger}

	// ── 3. Storage ──────────────────────────────────────────────────
	db, err := storage.NewBadger(cfg.LedgerDir(), storage.WithSyncWrites(cfg.Storage.SyncWrites))
	if err != nil {
		return nil, fmt.Errorf("open ledger database at %s: %w", cfg.LedgerDir(), err)
	}
	d.db = db
	logger.Info().Str("path", cfg.LedgerDir()).Msg("Ledger database opened")

	ks, err := wallet.NewKeystore(cfg.KeystoreDir())
	if err != nil {
		d.closeStorage()
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	// ── 4. Node backend ─────────────────────────────────────────────
	var backend engine.Node
	if cfg.Devnet.Enabled {
		ddb, err := storage.NewBadger(cfg.DevnetDir(), storage.WithSyncWrites(cfg.Storage.SyncWrites))
		if err != nil {
			d.closeStorage()
			return nil, fmt.Errorf("open devnet database at %s: %w", cfg.DevnetDir(), err)
		}
		d.devnetDB = ddb
		dn, err := devnet.New(ddb, devnet.Config{Fee: cfg.FeePolicy()})
		if err != nil {
			d.closeStorage()
			return nil, fmt.Errorf("start devnet: %w", err)
		}
		d.devnet = dn
		backend = dn
		logger.Info().Uint64("height", dn.Height()).Msg("Devnet loaded")
	} else {
		backend = nodeclient.New(cfg.Node.Endpoint, cfg.Node.Timeout)
		logger.Info().Str("endpoint", cfg.Node.Endpoint).Msg("Using remote node")
	}

	// ── 5. Engine ───────────────────────────────────────────────────
	d.engine = engine.New(engine.Config{
		KDF:             cfg.KDF(),
		Fee:             cfg.FeePolicy(),
		PollInterval:    cfg.Sync.PollInterval,
		SyncConcurrency: cfg.Sync.Concurrency,
	}, ks, db, backend)

	// ── 6. RPC ──────────────────────────────────────────────────────
	if cfg.RPC.Enabled {
		srv := rpc.New(cfg.RPC.ListenAddr(), d.engine, cfg.RPC)
		if d.devnet != nil {
			srv.SetNode(d.devnet)
			srv.SetFaucet(d.devnet)
		}
		if err := srv.Start(); err != nil {
			d.engine.Close()
			d.closeStorage()
			return nil, fmt.Errorf("start rpc: %w", err)
		}
		d.rpcServer = srv
		logger.Info().Str("addr", srv.Addr()).Msg("RPC server listening")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start launches the background sync loop and, on a devnet with a block
// interval, block production.
func (d *Daemon) Start() error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.engine.Run(d.ctx)
	}()

	if d.devnet != nil && d.cfg.Devnet.BlockInterval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.devnet.Run(d.ctx, d.cfg.Devnet.BlockInterval)
		}()
		d.logger.Info().Dur("interval", d.cfg.Devnet.BlockInterval).Msg("Devnet block production enabled")
	}

	d.logger.Info().Dur("poll", d.cfg.Sync.PollInterval).Msg("Daemon started")
	return nil
}

// Stop performs graceful shutdown in reverse order.
func (d *Daemon) Stop() {
	d.cancel()
	d.wg.Wait()

	if d.rpcServer != nil {
		d.rpcServer.Stop()
	}
	d.engine.Close()
	d.closeStorage()

	d.logger.Info().Msg("Goodbye!")
}

func (d *Daemon) closeStorage() {
	if d.devnetDB != nil {
		d.devnetDB.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// RPCAddr returns the address the RPC server is listening on.
func (d *Daemon) RPCAddr() string {
	if d.rpcServer == nil {
		return ""
	}
	return d.rpcServer.Addr()
}

// Engine returns the wallet engine.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Devnet returns the in-process chain, or nil when a remote node is used.
func (d *Daemon) Devnet() *devnet.Devnet {
	return d.devnet
}
