package ledger

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// scanCacheSize bounds how many foreign transaction ids are remembered.
const scanCacheSize = 4096

// scanCache remembers transactions that were scanned and found not to
// touch the wallet, so at-least-once redelivery skips the decryption.
// Only foreign transactions go here; ours are tracked persistently.
type scanCache struct {
	cache *lru.Cache[types.Hash, struct{}]
}

func newScanCache(size int) (*scanCache, error) {
	c, err := lru.New[types.Hash, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &scanCache{cache: c}, nil
}

func (c *scanCache) foreign(id types.Hash) bool {
	_, ok := c.cache.Get(id)
	return ok
}

func (c *scanCache) markForeign(id types.Hash) {
	c.cache.Add(id, struct{}{})
}

// forget drops entries; used after the address window grows, when a
// previously foreign transaction may now be ours.
func (c *scanCache) forget() {
	c.cache.Purge()
}
