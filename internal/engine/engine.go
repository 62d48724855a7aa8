// Package engine is the wallet registry. It owns every open wallet, ties
// key material, address book and ledger together, and talks to the node
// through the Submitter and ConfirmationSource collaborators.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
)

// Handle identifies an open wallet. Handles are opaque and only valid
// until the wallet is closed.
type Handle string

// Config holds engine settings.
type Config struct {
	// KDF parameters for newly created keystore files.
	KDF wallet.EncryptionParams
	// Fee is the policy applied to every send.
	Fee tx.FeePolicy
	// PollInterval is how often Run and WaitConfirmed poll the node.
	PollInterval time.Duration
	// SyncConcurrency bounds how many wallets SyncAll syncs at once.
	SyncConcurrency int
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		KDF:             wallet.DefaultParams(),
		Fee:             tx.ZeroFee{},
		PollInterval:    time.Second,
		SyncConcurrency: 4,
	}
}

// CreateWalletParams names a wallet and the passphrase protecting its
// keystore file.
type CreateWalletParams struct {
	Name       string
	Passphrase string
}

// instance is one open wallet.
type instance struct {
	handle  Handle
	name    string
	acct    *wallet.Account
	book    *wallet.AddressBook
	ledger  *ledger.Ledger
	logger  zerolog.Logger // sends and lifecycle
	syncLog zerolog.Logger
}

// Engine is the registry of open wallets.
type Engine struct {
	cfg  Config
	ks   *wallet.Keystore
	db   storage.DB
	node Node

	mu     sync.RWMutex
	open   map[Handle]*instance
	byName map[string]Handle

	syncs  singleflight.Group
	logger zerolog.Logger
}

// New creates an engine. Keystore files live in ks; ledgers share db,
// each under its own prefix.
func New(cfg Config, ks *wallet.Keystore, db storage.DB, node Node) *Engine {
	def := DefaultConfig()
	if cfg.Fee == nil {
		cfg.Fee = def.Fee
	}
	if cfg.KDF == (wallet.EncryptionParams{}) {
		cfg.KDF = def.KDF
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = def.SyncConcurrency
	}
	initPrometheusMetrics()
	return &Engine{
		cfg:    cfg,
		ks:     ks,
		db:     db,
		node:   node,
		open:   make(map[Handle]*instance),
		byName: make(map[string]Handle),
		logger: log.For(log.Engine),
	}
}

// FeePolicy returns the active fee policy.
func (e *Engine) FeePolicy() tx.FeePolicy {
	return e.cfg.Fee
}

// Restore validates mnemonic, writes a new keystore file for it and opens
// the wallet unlocked.
func (e *Engine) Restore(ctx context.Context, params CreateWalletParams, mnemonic string) (Handle, error) {
	if err := wallet.ValidateName(params.Name); err != nil {
		return "", err
	}
	acct, seed, err := wallet.RestoreAccount(mnemonic, "")
	if err != nil {
		return "", err
	}
	defer zero(seed)

	if err := e.ks.Create(params.Name, seed, []byte(params.Passphrase), e.cfg.KDF); err != nil {
		return "", err
	}
	h, err := e.register(params.Name, acct)
	if err != nil {
		return "", err
	}
	e.logger.Info().Str("wallet", params.Name).Msg("Wallet restored")
	return h, nil
}

// Create generates a fresh mnemonic, stores the wallet and opens it. The
// mnemonic is returned once and never stored in clear.
func (e *Engine) Create(ctx context.Context, params CreateWalletParams) (Handle, string, error) {
	mnemonic, err := wallet.GenerateMnemonic()
	if err != nil {
		return "", "", err
	}
	h, err := e.Restore(ctx, params, mnemonic)
	if err != nil {
		return "", "", err
	}
	return h, mnemonic, nil
}

// Open unlocks an existing wallet. Opening a wallet that is already open
// returns its current handle.
func (e *Engine) Open(ctx context.Context, name, passphrase string) (Handle, error) {
	seed, err := e.ks.Load(name, []byte(passphrase))
	if err != nil {
		return "", err
	}
	defer zero(seed)

	e.mu.RLock()
	h, ok := e.byName[name]
	inst := e.open[h]
	e.mu.RUnlock()
	if ok {
		if err := inst.acct.Unlock(seed); err != nil {
			return "", err
		}
		return h, nil
	}

	acct, err := wallet.NewAccountFromSeed(seed)
	if err != nil {
		return "", err
	}
	return e.register(name, acct)
}

// OpenLocked opens a wallet from its stored extended public key without a
// passphrase. Addresses can be allocated; sending, view key export and
// sync need Unlock first.
func (e *Engine) OpenLocked(name string) (Handle, error) {
	e.mu.RLock()
	h, ok := e.byName[name]
	e.mu.RUnlock()
	if ok {
		return h, nil
	}
	xpub, err := e.ks.AccountXPub(name)
	if err != nil {
		return "", err
	}
	acct, err := wallet.NewLockedAccount(xpub)
	if err != nil {
		return "", err
	}
	return e.register(name, acct)
}

func (e *Engine) register(name string, acct *wallet.Account) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.byName[name]; ok {
		return h, nil
	}

	book, err := wallet.NewAddressBook(e.ks, name, acct)
	if err != nil {
		return "", fmt.Errorf("open address book: %w", err)
	}
	logger := log.ForWallet(log.Ledger, name)
	l, err := ledger.Open(storage.NewPrefixDB(e.db, ledgerPrefix(name)), book, logger)
	if err != nil {
		return "", err
	}

	h := Handle(uuid.NewString())
	e.open[h] = &instance{
		handle:  h,
		name:    name,
		acct:    acct,
		book:    book,
		ledger:  l,
		logger:  log.ForWallet(log.Engine, name),
		syncLog: log.ForWallet(log.Sync, name),
	}
	e.byName[name] = h
	prometheusEngineOpenWallets.Inc()
	return h, nil
}

func ledgerPrefix(name string) []byte {
	return []byte("w/" + name + "/")
}

// CloseWallet locks the wallet and invalidates its handle.
func (e *Engine) CloseWallet(h Handle) error {
	e.mu.Lock()
	inst, ok := e.open[h]
	if ok {
		delete(e.open, h)
		delete(e.byName, inst.name)
	}
	e.mu.Unlock()
	if !ok {
		return ErrUnknownHandle
	}
	inst.acct.Lock()
	prometheusEngineOpenWallets.Dec()
	inst.logger.Info().Msg("Wallet closed")
	return nil
}

// Close closes every open wallet.
func (e *Engine) Close() {
	for _, h := range e.Handles() {
		_ = e.CloseWallet(h)
	}
}

// Lock drops the private key material of an open wallet.
func (e *Engine) Lock(h Handle) error {
	inst, err := e.get(h)
	if err != nil {
		return err
	}
	inst.acct.Lock()
	return nil
}

// Unlock reloads private key material from the keystore.
func (e *Engine) Unlock(h Handle, passphrase string) error {
	inst, err := e.get(h)
	if err != nil {
		return err
	}
	seed, err := e.ks.Load(inst.name, []byte(passphrase))
	if err != nil {
		return err
	}
	defer zero(seed)
	return inst.acct.Unlock(seed)
}

// Locked reports whether an open wallet is locked.
func (e *Engine) Locked(h Handle) (bool, error) {
	inst, err := e.get(h)
	if err != nil {
		return false, err
	}
	return inst.acct.Locked(), nil
}

// Handles returns the handles of all open wallets.
func (e *Engine) Handles() []Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Handle, 0, len(e.open))
	for h := range e.open {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WalletInfo describes a wallet known to the keystore.
type WalletInfo struct {
	Name   string `json:"name"`
	Handle Handle `json:"handle,omitempty"`
	Locked bool   `json:"locked"`
}

// Wallets lists every wallet in the keystore and whether it is open.
func (e *Engine) Wallets() ([]WalletInfo, error) {
	names, err := e.ks.List()
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]WalletInfo, 0, len(names))
	for _, name := range names {
		info := WalletInfo{Name: name, Locked: true}
		if h, ok := e.byName[name]; ok {
			info.Handle = h
			info.Locked = e.open[h].acct.Locked()
		}
		out = append(out, info)
	}
	return out, nil
}

func (e *Engine) get(h Handle) (*instance, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.open[h]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandle, h)
	}
	return inst, nil
}

// CreateTransferAddress allocates the next receiving address.
func (e *Engine) CreateTransferAddress(h Handle) (string, error) {
	inst, err := e.get(h)
	if err != nil {
		return "", err
	}
	addr, err := inst.book.NewTransferAddress()
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// CreateStakingAddress allocates the next staking address. It is encoded
// with the staking prefix.
func (e *Engine) CreateStakingAddress(h Handle) (string, error) {
	inst, err := e.get(h)
	if err != nil {
		return "", err
	}
	addr, err := inst.book.NewStakingAddress()
	if err != nil {
		return "", err
	}
	return addr.StakingString(), nil
}

// Addresses lists every address allocated so far.
func (e *Engine) Addresses(h Handle) ([]wallet.Allocation, error) {
	inst, err := e.get(h)
	if err != nil {
		return nil, err
	}
	return inst.book.Allocated()
}

// GetViewKey exports the wallet view key. The redacted form holds only the
// public key, which is what senders need to authorize this wallet.
func (e *Engine) GetViewKey(h Handle, redacted bool) (string, error) {
	inst, err := e.get(h)
	if err != nil {
		return "", err
	}
	vk, err := wallet.ExportViewKey(inst.acct, redacted)
	if err != nil {
		return "", err
	}
	return vk.String(), nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
