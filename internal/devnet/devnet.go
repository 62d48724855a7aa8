// Package devnet is an in-process chain for development and tests. It
// accepts signed transactions into a mempool, confirms them in blocks and
// serves the confirmation stream the wallet engine consumes.
package devnet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingwallet/internal/engine"
	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// DefaultPageBlocks is how many blocks one ConfirmedSince call returns.
const DefaultPageBlocks = 100

// Config holds devnet settings.
type Config struct {
	// Fee is the minimum fee policy enforced on submitted transactions.
	Fee tx.FeePolicy
	// MaxPoolSize bounds the mempool.
	MaxPoolSize int
	// PageBlocks bounds the number of blocks per ConfirmedSince page.
	PageBlocks int
}

// Devnet is a single-producer chain. It is safe for concurrent use.
type Devnet struct {
	cfg    Config
	faucet *crypto.PrivateKey

	mu    sync.Mutex
	pool  *pool
	chain *chain

	now    func() time.Time
	logger zerolog.Logger
}

// New opens a devnet whose blocks are stored in db.
func New(db storage.DB, cfg Config) (*Devnet, error) {
	if cfg.Fee == nil {
		cfg.Fee = tx.ZeroFee{}
	}
	if cfg.PageBlocks <= 0 {
		cfg.PageBlocks = DefaultPageBlocks
	}
	c, err := loadChain(db)
	if err != nil {
		return nil, fmt.Errorf("load devnet chain: %w", err)
	}
	faucet, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("faucet key: %w", err)
	}
	initPrometheusMetrics()
	prometheusDevnetHeight.Set(float64(c.height()))
	return &Devnet{
		cfg:    cfg,
		faucet: faucet,
		pool:   newPool(cfg.MaxPoolSize),
		chain:  c,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.For(log.Devnet),
	}, nil
}

// Submit validates a signed transaction and adds it to the mempool.
// Refusals wrap engine.ErrRejected.
func (d *Devnet) Submit(_ context.Context, t *tx.Transaction) (types.Hash, error) {
	if err := t.Validate(); err != nil {
		return types.Hash{}, reject(err)
	}
	if err := t.VerifySignatures(); err != nil {
		return types.Hash{}, reject(err)
	}
	if need := tx.RequiredFee(t, d.cfg.Fee); t.Fee < need {
		return types.Hash{}, reject(fmt.Errorf("%w: have %d, need %d", ErrFeeTooLow, t.Fee, need))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := t.Hash()
	if _, ok := d.chain.txs[id]; ok {
		return id, reject(fmt.Errorf("%w: %s confirmed", ErrAlreadyExists, id))
	}
	for i, in := range t.Inputs {
		if !d.chain.isUnspent(in.PrevOut) {
			return id, reject(fmt.Errorf("input %d %s: %w", i, in.PrevOut, ErrMissingInput))
		}
	}
	if _, err := d.pool.add(t, false); err != nil {
		return id, reject(err)
	}
	prometheusDevnetPoolSize.Set(float64(d.pool.count()))
	d.logger.Debug().Str("txid", id.String()).Int("inputs", len(t.Inputs)).Msg("Transaction accepted")
	return id, nil
}

func reject(err error) error {
	prometheusDevnetRejected.Inc()
	return fmt.Errorf("%w: %w", engine.ErrRejected, err)
}

// Fund queues a faucet transaction paying value to addr, readable by the
// given view public keys. It confirms with the next Mine.
func (d *Devnet) Fund(addr types.Address, value uint64, viewKeys ...[]byte) (types.Hash, error) {
	if value == 0 {
		return types.Hash{}, errors.New("fund value must be positive")
	}
	if len(viewKeys) == 0 {
		return types.Hash{}, errors.New("fund needs at least one view key")
	}
	// A fresh, never-confirmed outpoint stands in for the faucet coin.
	src := types.Outpoint{TxID: crypto.Hash([]byte("faucet/" + uuid.NewString()))}

	b := tx.NewBuilder().AddInput(src).AddOutput(value, addr)
	for _, k := range viewKeys {
		b.AddViewKey(k)
	}
	if err := b.Seal(); err != nil {
		return types.Hash{}, err
	}
	if err := b.Sign(d.faucet); err != nil {
		return types.Hash{}, err
	}
	t := b.Build()

	d.mu.Lock()
	defer d.mu.Unlock()
	id, err := d.pool.add(t, true)
	if err != nil {
		return id, err
	}
	prometheusDevnetPoolSize.Set(float64(d.pool.count()))
	d.logger.Info().Str("txid", id.String()).Str("to", addr.String()).Uint64("value", value).Msg("Faucet funding queued")
	return id, nil
}

// Mine confirms every pooled transaction in a new block and returns it.
// It returns nil when the mempool is empty; empty blocks are never made.
func (d *Devnet) Mine() (*Block, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool.count() == 0 {
		return nil, nil
	}
	entries := d.pool.drain()
	b := Block{Height: d.chain.height() + 1, Time: d.now()}
	for _, e := range entries {
		b.Txs = append(b.Txs, e.tx.Serialize())
	}
	if err := d.chain.append(b); err != nil {
		// Put the transactions back so a later Mine can retry.
		for _, e := range entries {
			_, _ = d.pool.add(e.tx, e.mint)
		}
		return nil, err
	}
	prometheusDevnetHeight.Set(float64(b.Height))
	prometheusDevnetPoolSize.Set(0)
	d.logger.Info().Uint64("height", b.Height).Int("txs", len(b.Txs)).Msg("Block produced")
	return &b, nil
}

// Run mines a block every interval until ctx is done.
func (d *Devnet) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Mine(); err != nil {
				d.logger.Error().Err(err).Msg("Block production failed")
			}
		}
	}
}

// Height returns the tip height. The first block has height 1.
func (d *Devnet) Height() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chain.height()
}

// ConfirmedSince returns whole blocks starting at fromHeight, flattened
// in height order, and the tip height.
func (d *Devnet) ConfirmedSince(ctx context.Context, fromHeight uint64) ([]ledger.ConfirmedTx, uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []ledger.ConfirmedTx
	for _, b := range d.chain.since(fromHeight, d.cfg.PageBlocks) {
		for _, raw := range b.Txs {
			out = append(out, ledger.ConfirmedTx{Raw: raw, Height: b.Height, Time: b.Time})
		}
	}
	return out, d.chain.height(), nil
}

// Status reports whether id is confirmed. Pooled and unknown transactions
// both report unconfirmed.
func (d *Devnet) Status(ctx context.Context, id types.Hash) (bool, uint64, error) {
	if err := ctx.Err(); err != nil {
		return false, 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if h, ok := d.chain.txs[id]; ok {
		return true, h, nil
	}
	return false, 0, nil
}

// Pending reports whether id waits in the mempool.
func (d *Devnet) Pending(id types.Hash) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pool.has(id)
}

var _ engine.Node = (*Devnet)(nil)
