package wallet

import (
	"fmt"
	"sync"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// GapLimit is how many unused addresses past the last allocated index are
// watched on each branch. A restored wallet finds payments to addresses
// another instance allocated as long as they fall inside the gap.
const GapLimit = 20

var addressBranches = []uint32{ChangeExternal, ChangeInternal, ChangeStaking}

// KeyPath locates a derived key below the account key.
type KeyPath struct {
	Change uint32
	Index  uint32
}

func (p KeyPath) String() string {
	return fmt.Sprintf("%d/%d", p.Change, p.Index)
}

// AddressBook allocates addresses for one wallet and answers ownership
// queries. Allocation counters live in the keystore file.
type AddressBook struct {
	ks   *Keystore
	name string
	acct *Account

	mu      sync.RWMutex
	owned   map[types.Address]KeyPath
	watched map[uint32]uint32 // branch -> first index not yet derived
}

// NewAddressBook loads the allocation state of a wallet and derives the
// watched window of every branch.
func NewAddressBook(ks *Keystore, name string, acct *Account) (*AddressBook, error) {
	ab := &AddressBook{
		ks:      ks,
		name:    name,
		acct:    acct,
		owned:   make(map[types.Address]KeyPath),
		watched: make(map[uint32]uint32),
	}
	for _, change := range addressBranches {
		next, err := ks.NextIndex(name, change)
		if err != nil {
			return nil, err
		}
		if err := ab.watchUpTo(change, next+GapLimit); err != nil {
			return nil, err
		}
	}
	return ab, nil
}

// watchUpTo derives addresses on a branch until index end (exclusive).
// Caller must hold mu or be the constructor.
func (ab *AddressBook) watchUpTo(change, end uint32) error {
	for i := ab.watched[change]; i < end; i++ {
		addr, err := ab.acct.Address(change, i)
		if err != nil {
			return err
		}
		ab.owned[addr] = KeyPath{Change: change, Index: i}
	}
	if end > ab.watched[change] {
		ab.watched[change] = end
	}
	return nil
}

// NewTransferAddress allocates the next receiving address. Indices are
// never reused.
func (ab *AddressBook) NewTransferAddress() (types.Address, error) {
	return ab.allocate(ChangeExternal)
}

// NewChangeAddress allocates the next change address.
func (ab *AddressBook) NewChangeAddress() (types.Address, error) {
	return ab.allocate(ChangeInternal)
}

// NewStakingAddress allocates the next staking address.
func (ab *AddressBook) NewStakingAddress() (types.Address, error) {
	return ab.allocate(ChangeStaking)
}

func (ab *AddressBook) allocate(change uint32) (types.Address, error) {
	var addr types.Address
	idx, err := ab.ks.Allocate(ab.name, change, func(i uint32) (types.Address, error) {
		a, err := ab.acct.Address(change, i)
		addr = a
		return a, err
	})
	if err != nil {
		return types.Address{}, fmt.Errorf("allocate address: %w", err)
	}

	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.owned[addr] = KeyPath{Change: change, Index: idx}
	if err := ab.watchUpTo(change, idx+1+GapLimit); err != nil {
		return types.Address{}, err
	}
	return addr, nil
}

// Owns reports whether addr belongs to this wallet and where it derives.
func (ab *AddressBook) Owns(addr types.Address) (KeyPath, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	p, ok := ab.owned[addr]
	return p, ok
}

// MarkUsed records that an address received funds. Allocation counters
// move past it and the watched window slides forward.
func (ab *AddressBook) MarkUsed(path KeyPath) error {
	if err := ab.ks.AdvanceIndex(ab.name, path.Change, path.Index+1); err != nil {
		return err
	}
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.watchUpTo(path.Change, path.Index+1+GapLimit)
}

// Watch slides the watched window past path without touching the
// keystore. The ledger calls it while scanning so a later transaction in
// the same batch can pay the next address.
func (ab *AddressBook) Watch(path KeyPath) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.watchUpTo(path.Change, path.Index+1+GapLimit)
}

// Allocated returns every address allocated so far, in allocation order.
func (ab *AddressBook) Allocated() ([]Allocation, error) {
	return ab.ks.Allocations(ab.name)
}
