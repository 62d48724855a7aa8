package devnet

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Pool errors.
var (
	ErrAlreadyExists = errors.New("transaction already known")
	ErrConflict      = errors.New("transaction conflicts with existing mempool entry")
	ErrPoolFull      = errors.New("mempool is full")
	ErrMissingInput  = errors.New("input not found in unspent set")
	ErrFeeTooLow     = errors.New("transaction fee below minimum")
)

// entry wraps a pooled transaction with its id.
type entry struct {
	tx   *tx.Transaction
	id   types.Hash
	mint bool
}

// pool holds unconfirmed transactions in arrival order.
type pool struct {
	txs     map[types.Hash]*entry
	spends  map[types.Outpoint]types.Hash // outpoint -> spending tx (conflict index)
	order   []types.Hash
	maxSize int
}

func newPool(maxSize int) *pool {
	if maxSize <= 0 {
		maxSize = 5000
	}
	return &pool{
		txs:     make(map[types.Hash]*entry),
		spends:  make(map[types.Outpoint]types.Hash),
		maxSize: maxSize,
	}
}

// add inserts a transaction after the caller has checked inputs against
// the chain. Conflicts are checked here.
func (p *pool) add(t *tx.Transaction, mint bool) (types.Hash, error) {
	id := t.Hash()
	if _, ok := p.txs[id]; ok {
		return id, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}
	if len(p.txs) >= p.maxSize {
		return id, ErrPoolFull
	}
	for _, in := range t.Inputs {
		if other, ok := p.spends[in.PrevOut]; ok {
			return id, fmt.Errorf("%w: %s already spent by %s", ErrConflict, in.PrevOut, other)
		}
	}
	for _, in := range t.Inputs {
		p.spends[in.PrevOut] = id
	}
	p.txs[id] = &entry{tx: t, id: id, mint: mint}
	p.order = append(p.order, id)
	return id, nil
}

// has reports whether id is pooled.
func (p *pool) has(id types.Hash) bool {
	_, ok := p.txs[id]
	return ok
}

// drain removes and returns every pooled transaction in arrival order.
func (p *pool) drain() []*entry {
	out := make([]*entry, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.txs[id])
	}
	p.txs = make(map[types.Hash]*entry)
	p.spends = make(map[types.Outpoint]types.Hash)
	p.order = nil
	return out
}

func (p *pool) count() int {
	return len(p.order)
}
