package devnet

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// prefixBlock keys blocks by height: b/<height(8)> -> Block JSON.
var prefixBlock = []byte("b/")

// Block is a batch of transactions confirmed together.
type Block struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
	Txs    [][]byte  `json:"txs"` // serialized transactions
}

func blockKey(height uint64) []byte {
	key := make([]byte, len(prefixBlock)+8)
	copy(key, prefixBlock)
	binary.BigEndian.PutUint64(key[len(prefixBlock):], height)
	return key
}

// chain is the confirmed state: the block list, the unspent outpoint set
// and the height index of every confirmed transaction. Values are sealed,
// so only outpoint existence is tracked.
type chain struct {
	db      storage.DB
	blocks  []Block
	unspent map[types.Outpoint]struct{}
	txs     map[types.Hash]uint64
}

// loadChain replays the persisted blocks into memory.
func loadChain(db storage.DB) (*chain, error) {
	c := &chain{
		db:      db,
		unspent: make(map[types.Outpoint]struct{}),
		txs:     make(map[types.Hash]uint64),
	}
	err := db.ForEach(prefixBlock, func(_, value []byte) error {
		var b Block
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("block unmarshal: %w", err)
		}
		if b.Height != c.height()+1 {
			return fmt.Errorf("block store gap: have %d, next is %d", c.height(), b.Height)
		}
		return c.apply(b)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *chain) height() uint64 {
	return uint64(len(c.blocks))
}

// apply updates the in-memory indexes for a block.
func (c *chain) apply(b Block) error {
	for i, raw := range b.Txs {
		t, err := tx.Deserialize(raw)
		if err != nil {
			return fmt.Errorf("block %d tx %d: %w", b.Height, i, err)
		}
		id := t.Hash()
		for _, in := range t.Inputs {
			delete(c.unspent, in.PrevOut)
		}
		for j := uint32(0); j < t.OutputCount; j++ {
			c.unspent[types.Outpoint{TxID: id, Index: j}] = struct{}{}
		}
		c.txs[id] = b.Height
	}
	c.blocks = append(c.blocks, b)
	return nil
}

// append persists a block, then applies it. A single Put keeps the write
// atomic.
func (c *chain) append(b Block) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("block marshal: %w", err)
	}
	if err := c.db.Put(blockKey(b.Height), data); err != nil {
		return fmt.Errorf("block put: %w", err)
	}
	return c.apply(b)
}

// since returns blocks with height >= from, at most limit of them.
func (c *chain) since(from uint64, limit int) []Block {
	if from == 0 {
		from = 1
	}
	if from > c.height() {
		return nil
	}
	out := c.blocks[from-1:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (c *chain) isUnspent(op types.Outpoint) bool {
	_, ok := c.unspent[op]
	return ok
}
