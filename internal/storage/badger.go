package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	klog "github.com/Klingon-tech/klingwallet/internal/log"
)

// BadgerDB is a DB on top of a Badger LSM store.
type BadgerDB struct {
	db   *badger.DB
	path string
}

// BadgerOption tweaks the Badger options before the store opens.
type BadgerOption func(*badger.Options)

// WithSyncWrites fsyncs every commit. Off by default; a crash may then lose
// the last few commits but never tears one.
func WithSyncWrites(on bool) BadgerOption {
	return func(o *badger.Options) { o.SyncWrites = on }
}

// NewBadger opens (or creates) a store in dir.
func NewBadger(dir string, opts ...BadgerOption) (*BadgerDB, error) {
	return openBadger(dir, badger.DefaultOptions(dir), opts)
}

// NewBadgerInMemory opens a store that never touches disk.
func NewBadgerInMemory(opts ...BadgerOption) (*BadgerDB, error) {
	return openBadger("", badger.DefaultOptions("").WithInMemory(true), opts)
}

func openBadger(dir string, o badger.Options, opts []BadgerOption) (*BadgerDB, error) {
	o.Logger = badgerLogger{klog.For(klog.Storage)}
	for _, fn := range opts {
		fn(&o)
	}
	db, err := badger.Open(o)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "Cannot acquire directory lock") ||
			strings.Contains(msg, "resource temporarily unavailable") {
			return nil, fmt.Errorf("%w: %s (is klingwalletd already running?)", ErrLocked, dir)
		}
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &BadgerDB{db: db, path: dir}, nil
}

// Path returns the directory the store lives in, empty when in memory.
func (b *BadgerDB) Path() string { return b.path }

func (b *BadgerDB) Get(key []byte) (val []byte, err error) {
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return val, nil
}

func (b *BadgerDB) Put(key, value []byte) error {
	return b.update("put", func(txn *badger.Txn) error { return txn.Set(key, value) })
}

func (b *BadgerDB) Delete(key []byte) error {
	return b.update("delete", func(txn *badger.Txn) error { return txn.Delete(key) })
}

func (b *BadgerDB) update(op string, fn func(*badger.Txn) error) error {
	if err := b.db.Update(fn); err != nil {
		return fmt.Errorf("badger %s: %w", op, err)
	}
	return nil
}

func (b *BadgerDB) Has(key []byte) (bool, error) {
	_, err := b.Get(key)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// ForEach runs fn inside one read transaction, so the walk sees a
// consistent snapshot.
func (b *BadgerDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 64, Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("badger read %x: %w", item.Key(), err)
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

// NewBatch returns a batch backed by one read-write transaction.
func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{txn: b.db.NewTransaction(true)}
}

type badgerBatch struct {
	txn  *badger.Txn
	done bool
}

func (bb *badgerBatch) Put(key, value []byte) error {
	if bb.done {
		return ErrBatchDone
	}
	return wrapTxn("put", bb.txn.Set(key, value))
}

func (bb *badgerBatch) Delete(key []byte) error {
	if bb.done {
		return ErrBatchDone
	}
	return wrapTxn("delete", bb.txn.Delete(key))
}

func (bb *badgerBatch) Commit() error {
	if bb.done {
		return ErrBatchDone
	}
	bb.done = true
	return wrapTxn("commit", bb.txn.Commit())
}

func (bb *badgerBatch) Discard() {
	bb.done = true
	bb.txn.Discard()
}

func wrapTxn(op string, err error) error {
	if err != nil {
		return fmt.Errorf("badger batch %s: %w", op, err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging into the storage component
// logger. Info chatter from compactions is demoted to debug.
type badgerLogger struct {
	l zerolog.Logger
}

func (g badgerLogger) Errorf(f string, v ...interface{}) {
	g.l.Error().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (g badgerLogger) Warningf(f string, v ...interface{}) {
	g.l.Warn().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (g badgerLogger) Infof(f string, v ...interface{}) {
	g.l.Debug().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}

func (g badgerLogger) Debugf(f string, v ...interface{}) {
	g.l.Trace().Msg(strings.TrimSpace(fmt.Sprintf(f, v...)))
}
