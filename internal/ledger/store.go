package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Key prefixes for the ledger store.
var (
	prefixOutput   = []byte("o/") // o/<txid><index> -> Output JSON
	prefixRecord   = []byte("r/") // r/<sequence> -> Record JSON
	prefixSeen     = []byte("t/") // t/<txid> -> empty (processed transaction)
	prefixPending  = []byte("p/") // p/<txid> -> PendingSend JSON
	prefixConsumed = []byte("c/") // c/<txid><index> -> spending txid
	keyHeight      = []byte("m/height")
	keySequence    = []byte("m/sequence")
)

// store persists ledger state in a storage.DB. Every mutation goes through
// a writer so a call commits all of its changes or none of them.
type store struct {
	db storage.DB
}

// outputKey builds a storage key for an outpoint: "o/" + txid(32) + index(4).
func outputKey(op types.Outpoint) []byte {
	key := make([]byte, len(prefixOutput)+types.OutpointSize)
	copy(key, prefixOutput)
	copy(key[len(prefixOutput):], op.Bytes())
	return key
}

// recordKey builds "r/" + sequence(8), so iteration follows sequence order.
func recordKey(seq uint64) []byte {
	key := make([]byte, len(prefixRecord)+8)
	copy(key, prefixRecord)
	binary.BigEndian.PutUint64(key[len(prefixRecord):], seq)
	return key
}

func consumedKey(op types.Outpoint) []byte {
	return append(append([]byte{}, prefixConsumed...), op.Bytes()...)
}

func seenKey(id types.Hash) []byte {
	return append(append([]byte{}, prefixSeen...), id[:]...)
}

func pendingKey(id types.Hash) []byte {
	return append(append([]byte{}, prefixPending...), id[:]...)
}

// load reads the full persisted state.
func (s *store) load() (*state, error) {
	st := newState()

	err := s.db.ForEach(prefixOutput, func(_, value []byte) error {
		var o Output
		if err := json.Unmarshal(value, &o); err != nil {
			return fmt.Errorf("output unmarshal: %w", err)
		}
		st.outputs[o.Outpoint] = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.db.ForEach(prefixRecord, func(_, value []byte) error {
		var r Record
		if err := json.Unmarshal(value, &r); err != nil {
			return fmt.Errorf("record unmarshal: %w", err)
		}
		st.records = append(st.records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(st.records)

	err = s.db.ForEach(prefixSeen, func(key, _ []byte) error {
		var id types.Hash
		copy(id[:], key[len(prefixSeen):])
		st.seen[id] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.db.ForEach(prefixPending, func(_, value []byte) error {
		var p PendingSend
		if err := json.Unmarshal(value, &p); err != nil {
			return fmt.Errorf("pending unmarshal: %w", err)
		}
		st.pending[p.TxID] = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = s.db.ForEach(prefixConsumed, func(key, value []byte) error {
		op, err := types.OutpointFromBytes(key[len(prefixConsumed):])
		if err != nil || len(value) != types.HashSize {
			return fmt.Errorf("bad consumed entry %x", key)
		}
		st.consumed[op] = types.Hash(value)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if st.height, err = s.getUint64(keyHeight); err != nil {
		return nil, err
	}
	if st.nextSeq, err = s.getUint64(keySequence); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *store) getUint64(key []byte) (uint64, error) {
	data, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("read %s: bad length %d", key, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// writer stages changes for one atomic commit.
type writer struct {
	batch storage.Batch
	err   error
}

func (s *store) newWriter() *writer {
	return &writer{batch: storage.NewBatch(s.db)}
}

func (w *writer) put(key []byte, v any) {
	if w.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("marshal %s: %w", key, err)
		return
	}
	if err := w.batch.Put(key, data); err != nil {
		w.err = err
	}
}

func (w *writer) putRaw(key, value []byte) {
	if w.err != nil {
		return
	}
	if err := w.batch.Put(key, value); err != nil {
		w.err = err
	}
}

func (w *writer) del(key []byte) {
	if w.err != nil {
		return
	}
	if err := w.batch.Delete(key); err != nil {
		w.err = err
	}
}

func (w *writer) output(o Output) {
	w.put(outputKey(o.Outpoint), o)
}

func (w *writer) record(r Record) {
	w.put(recordKey(r.Sequence), r)
}

func (w *writer) seen(id types.Hash) {
	w.putRaw(seenKey(id), []byte{})
}

func (w *writer) consumed(op types.Outpoint, by types.Hash) {
	w.putRaw(consumedKey(op), by[:])
}

func (w *writer) pending(p PendingSend) {
	w.put(pendingKey(p.TxID), p)
}

func (w *writer) deletePending(id types.Hash) {
	w.del(pendingKey(id))
}

func (w *writer) deleteOutput(op types.Outpoint) {
	w.del(outputKey(op))
}

func (w *writer) uint64(key []byte, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.putRaw(key, b[:])
}

// commit applies the staged changes. On any error nothing is applied.
func (w *writer) commit() error {
	if w.err != nil {
		w.batch.Discard()
		return w.err
	}
	if err := w.batch.Commit(); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}
