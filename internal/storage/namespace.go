package storage

// PrefixDB scopes a DB to the keys under a fixed prefix. Every open wallet
// gets one over the shared ledger database, so wallets never see each
// other's records.
type PrefixDB struct {
	inner  DB
	prefix []byte
}

// NewPrefixDB returns inner scoped to prefix. The prefix is copied.
func NewPrefixDB(inner DB, prefix []byte) *PrefixDB {
	return &PrefixDB{inner: inner, prefix: append([]byte(nil), prefix...)}
}

func join(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	return append(append(out, prefix...), key...)
}

func (p *PrefixDB) Get(key []byte) ([]byte, error) { return p.inner.Get(join(p.prefix, key)) }

func (p *PrefixDB) Put(key, value []byte) error { return p.inner.Put(join(p.prefix, key), value) }

func (p *PrefixDB) Delete(key []byte) error { return p.inner.Delete(join(p.prefix, key)) }

func (p *PrefixDB) Has(key []byte) (bool, error) { return p.inner.Has(join(p.prefix, key)) }

// ForEach walks the scoped keys starting with prefix. Keys passed to fn
// are relative to the scope.
func (p *PrefixDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	n := len(p.prefix)
	return p.inner.ForEach(join(p.prefix, prefix), func(key, value []byte) error {
		return fn(key[n:], value)
	})
}

// Close does nothing. The owner of the inner DB closes it.
func (p *PrefixDB) Close() error { return nil }

// NewBatch returns a batch whose keys land under the scope. It is atomic
// whenever the inner DB is.
func (p *PrefixDB) NewBatch() Batch {
	return &scopedBatch{inner: NewBatch(p.inner), prefix: p.prefix}
}

type scopedBatch struct {
	inner  Batch
	prefix []byte
}

func (b *scopedBatch) Put(key, value []byte) error { return b.inner.Put(join(b.prefix, key), value) }
func (b *scopedBatch) Delete(key []byte) error     { return b.inner.Delete(join(b.prefix, key)) }
func (b *scopedBatch) Commit() error               { return b.inner.Commit() }
func (b *scopedBatch) Discard()                    { b.inner.Discard() }

// NewBatch returns db's own batch when it implements Batcher. Otherwise
// writes are buffered and replayed one by one on Commit, which is not
// atomic: a failure part way leaves the earlier writes applied.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &replayBatch{db: db}
}

type replayOp struct {
	key   []byte
	value []byte
	del   bool
}

type replayBatch struct {
	db  DB
	ops []replayOp
}

func (b *replayBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, replayOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *replayBatch) Delete(key []byte) error {
	b.ops = append(b.ops, replayOp{key: append([]byte(nil), key...), del: true})
	return nil
}

func (b *replayBatch) Commit() error {
	ops := b.ops
	b.ops = nil
	for _, op := range ops {
		var err error
		if op.del {
			err = b.db.Delete(op.key)
		} else {
			err = b.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *replayBatch) Discard() { b.ops = nil }
