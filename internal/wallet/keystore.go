package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

const (
	walletFileVersion = 2
	walletExt         = ".wallet"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,63}$`)

// ValidateName reports whether name can be used as a wallet file name.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid wallet name %q", name)
	}
	return nil
}

// Allocation is one address handed out by the wallet.
type Allocation struct {
	Path    KeyPath
	Address types.Address
}

// walletFile is the on-disk form. Only SealedSeed is secret; the rest is
// readable while the wallet is locked.
type walletFile struct {
	Version     int                `json:"version"`
	Created     time.Time          `json:"created"`
	SealedSeed  []byte             `json:"sealed_seed"`
	AccountXPub string             `json:"account_xpub"`
	NextIndex   map[string]uint32  `json:"next_index"` // branch name -> first unallocated index
	Allocated   []storedAllocation `json:"allocated"`
}

type storedAllocation struct {
	Branch  uint32 `json:"branch"`
	Index   uint32 `json:"index"`
	Address string `json:"address"` // hex, independent of the network prefix
}

// branchKey names a derivation branch in NextIndex.
func branchKey(change uint32) (string, error) {
	switch change {
	case ChangeExternal:
		return "transfer", nil
	case ChangeInternal:
		return "change", nil
	case ChangeStaking:
		return "staking", nil
	}
	return "", fmt.Errorf("no address counter for branch %d", change)
}

// Keystore keeps one sealed wallet file per name in a directory. Writes
// are serialized within the process.
type Keystore struct {
	dir string
	mu  sync.Mutex
}

// NewKeystore opens dir, creating it with owner-only permissions.
func NewKeystore(dir string) (*Keystore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}
	return &Keystore{dir: dir}, nil
}

func (ks *Keystore) path(name string) string {
	return filepath.Join(ks.dir, name+walletExt)
}

// Create seals seed under password and writes a new wallet file holding
// the account xpub in clear, so a locked wallet can still derive addresses.
func (ks *Keystore) Create(name string, seed, password []byte, params EncryptionParams) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	master, err := NewMasterKey(seed)
	if err != nil {
		return err
	}
	acct, err := master.AccountKey(0)
	if err != nil {
		return err
	}
	sealed, err := SealSeed(seed, password, name, params)
	if err != nil {
		return fmt.Errorf("seal seed: %w", err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	if _, err := os.Stat(ks.path(name)); err == nil {
		return fmt.Errorf("%w: %q", ErrWalletExists, name)
	}
	return ks.write(name, &walletFile{
		Version:     walletFileVersion,
		Created:     time.Now().UTC(),
		SealedSeed:  sealed,
		AccountXPub: acct.Neuter().String(),
		NextIndex:   map[string]uint32{},
	})
}

// Load unseals and returns the wallet seed.
func (ks *Keystore) Load(name string, password []byte) ([]byte, error) {
	wf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	seed, err := OpenSeed(wf.SealedSeed, password, name)
	if err != nil {
		return nil, fmt.Errorf("unlock wallet %q: %w", name, err)
	}
	return seed, nil
}

// AccountXPub returns the stored account extended public key.
func (ks *Keystore) AccountXPub(name string) (string, error) {
	wf, err := ks.read(name)
	if err != nil {
		return "", err
	}
	return wf.AccountXPub, nil
}

// List returns the wallet names in the keystore, sorted.
func (ks *Keystore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.dir)
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), walletExt); ok && e.Type().IsRegular() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Allocations returns every allocated address in allocation order.
func (ks *Keystore) Allocations(name string) ([]Allocation, error) {
	wf, err := ks.read(name)
	if err != nil {
		return nil, err
	}
	out := make([]Allocation, 0, len(wf.Allocated))
	for _, a := range wf.Allocated {
		addr, err := types.ParseAddress(a.Address)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: allocation %d/%d: %w", name, a.Branch, a.Index, err)
		}
		out = append(out, Allocation{Path: KeyPath{Change: a.Branch, Index: a.Index}, Address: addr})
	}
	return out, nil
}

// NextIndex returns the first unallocated index on a branch.
func (ks *Keystore) NextIndex(name string, change uint32) (uint32, error) {
	key, err := branchKey(change)
	if err != nil {
		return 0, err
	}
	wf, err := ks.read(name)
	if err != nil {
		return 0, err
	}
	return wf.NextIndex[key], nil
}

// Allocate hands out the next index on a branch and records the address
// derive returns for it, in a single file write.
func (ks *Keystore) Allocate(name string, change uint32, derive func(index uint32) (types.Address, error)) (uint32, error) {
	key, err := branchKey(change)
	if err != nil {
		return 0, err
	}
	var idx uint32
	err = ks.update(name, func(wf *walletFile) (bool, error) {
		idx = wf.NextIndex[key]
		addr, err := derive(idx)
		if err != nil {
			return false, err
		}
		wf.Allocated = append(wf.Allocated, storedAllocation{Branch: change, Index: idx, Address: addr.Hex()})
		wf.NextIndex[key] = idx + 1
		return true, nil
	})
	return idx, err
}

// AdvanceIndex raises a branch counter to idx. Counters never move back,
// so a lower idx is a no-op.
func (ks *Keystore) AdvanceIndex(name string, change, idx uint32) error {
	key, err := branchKey(change)
	if err != nil {
		return err
	}
	return ks.update(name, func(wf *walletFile) (bool, error) {
		if idx <= wf.NextIndex[key] {
			return false, nil
		}
		wf.NextIndex[key] = idx
		return true, nil
	})
}

// update is a locked read-modify-write. fn reports whether it changed
// anything worth writing.
func (ks *Keystore) update(name string, fn func(*walletFile) (bool, error)) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	wf, err := ks.read(name)
	if err != nil {
		return err
	}
	dirty, err := fn(wf)
	if err != nil || !dirty {
		return err
	}
	return ks.write(name, wf)
}

// write replaces the wallet file atomically: the new content is synced to
// a temp file in the same directory and renamed over the old one.
func (ks *Keystore) write(name string, wf *walletFile) error {
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("encode wallet %q: %w", name, err)
	}
	tmp, err := os.CreateTemp(ks.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write wallet %q: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), ks.path(name))
	}
	if err != nil {
		return fmt.Errorf("write wallet %q: %w", name, err)
	}
	return nil
}

func (ks *Keystore) read(name string) (*walletFile, error) {
	data, err := os.ReadFile(ks.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", ErrWalletNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read wallet %q: %w", name, err)
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse wallet %q: %w", name, err)
	}
	if wf.Version != walletFileVersion {
		return nil, fmt.Errorf("wallet %q: unsupported file version %d", name, wf.Version)
	}
	if wf.NextIndex == nil {
		wf.NextIndex = map[string]uint32{}
	}
	return &wf, nil
}
