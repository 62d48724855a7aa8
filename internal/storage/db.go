// Package storage is the key-value layer under the wallet ledger and the
// devnet chain store. Keys are opaque byte strings; callers scope them with
// PrefixDB and group writes with Batch.
package storage

import "errors"

var (
	// ErrNotFound is returned by Get when a key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrBatchDone is returned by a batch used after Commit or Discard.
	ErrBatchDone = errors.New("batch already finished")
	// ErrLocked is returned when another process holds the database directory.
	ErrLocked = errors.New("database locked by another process")
)

// DB is a flat ordered key-value store.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach visits every key starting with prefix in ascending order.
	// fn owns the slices it receives. A non-nil error from fn stops the
	// walk and is returned unchanged.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch buffers writes until Commit. Readers observe either none or all of
// them. A batch is single use.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard()
}

// Batcher is implemented by stores with native atomic batches.
type Batcher interface {
	NewBatch() Batch
}
