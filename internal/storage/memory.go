package storage

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryDB is a map-backed DB used by tests and the in-process devnet.
type MemoryDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty MemoryDB.
func NewMemory() *MemoryDB {
	return &MemoryDB{data: map[string][]byte{}}
}

func (m *MemoryDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[string(key)]; ok {
		return bytes.Clone(v), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryDB) Put(key, value []byte) error {
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	m.mu.Lock()
	m.data[string(key)] = v
	m.mu.Unlock()
	return nil
}

func (m *MemoryDB) Delete(key []byte) error {
	m.mu.Lock()
	delete(m.data, string(key))
	m.mu.Unlock()
	return nil
}

func (m *MemoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	_, ok := m.data[string(key)]
	m.mu.RUnlock()
	return ok, nil
}

// ForEach walks a copy of the matching entries, so fn may write back into
// the database.
func (m *MemoryDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	p := string(prefix)
	m.mu.RLock()
	snap := make(map[string][]byte)
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			snap[k] = bytes.Clone(v)
		}
	}
	m.mu.RUnlock()

	for _, k := range slices.Sorted(maps.Keys(snap)) {
		if err := fn([]byte(k), snap[k]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryDB) Close() error { return nil }

// Len reports the number of stored keys.
func (m *MemoryDB) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// NewBatch returns a batch that applies under one write lock.
func (m *MemoryDB) NewBatch() Batch {
	return &memoryBatch{db: m, puts: map[string][]byte{}, dels: map[string]struct{}{}}
}

// memoryBatch keeps the last write per key; a Put after a Delete of the same
// key wins and vice versa.
type memoryBatch struct {
	db   *MemoryDB
	puts map[string][]byte
	dels map[string]struct{}
	done bool
}

func (b *memoryBatch) Put(key, value []byte) error {
	if b.done {
		return ErrBatchDone
	}
	k := string(key)
	delete(b.dels, k)
	v := bytes.Clone(value)
	if v == nil {
		v = []byte{}
	}
	b.puts[k] = v
	return nil
}

func (b *memoryBatch) Delete(key []byte) error {
	if b.done {
		return ErrBatchDone
	}
	k := string(key)
	delete(b.puts, k)
	b.dels[k] = struct{}{}
	return nil
}

func (b *memoryBatch) Commit() error {
	if b.done {
		return ErrBatchDone
	}
	b.done = true
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for k := range b.dels {
		delete(b.db.data, k)
	}
	maps.Copy(b.db.data, b.puts)
	return nil
}

func (b *memoryBatch) Discard() {
	b.done = true
	b.puts, b.dels = nil, nil
}
