package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/storage"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Owner answers whether an address belongs to the wallet.
type Owner interface {
	Owns(addr types.Address) (wallet.KeyPath, bool)
}

// Watcher is implemented by owners whose address window can grow while a
// batch is scanned.
type Watcher interface {
	Watch(path wallet.KeyPath) error
}

// Ledger is the output set and history of one wallet. Reserve, Release and
// Synchronize are serialised; queries read an immutable snapshot and never
// block on them.
type Ledger struct {
	store  *store
	owner  Owner
	cache  *scanCache
	logger zerolog.Logger

	mu  sync.Mutex
	cur atomic.Pointer[state]
}

// Open loads the ledger persisted in db. db is usually a storage.PrefixDB
// scoped to one wallet.
func Open(db storage.DB, owner Owner, logger zerolog.Logger) (*Ledger, error) {
	initPrometheusMetrics()

	s := &store{db: db}
	st, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	cache, err := newScanCache(scanCacheSize)
	if err != nil {
		return nil, err
	}
	l := &Ledger{
		store:  s,
		owner:  owner,
		cache:  cache,
		logger: logger,
	}
	l.cur.Store(st)
	return l, nil
}

// OpenDefault opens a ledger logging through the ledger component logger.
func OpenDefault(db storage.DB, owner Owner) (*Ledger, error) {
	return Open(db, owner, log.For(log.Ledger))
}

func (l *Ledger) snapshot() *state {
	return l.cur.Load()
}

// Spend runs build against the current spendable outputs and reserves the
// send it returns, all under the writer lock, so two concurrent sends
// never select the same output.
func (l *Ledger) Spend(build func(spendable []Output) (*PendingSend, error)) (*PendingSend, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.snapshot()
	send, err := build(cur.spendable())
	if err != nil {
		return nil, err
	}
	if err := l.reserveLocked(cur, *send); err != nil {
		return nil, err
	}
	return send, nil
}

// Reserve marks the inputs of send PENDING_SPEND and its change output
// PENDING_RECEIVE in one commit.
func (l *Ledger) Reserve(send PendingSend) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserveLocked(l.snapshot(), send)
}

func (l *Ledger) reserveLocked(cur *state, send PendingSend) error {
	if _, ok := cur.pending[send.TxID]; ok {
		return ErrDuplicateSend
	}
	if _, ok := cur.seen[send.TxID]; ok {
		return ErrDuplicateSend
	}
	if len(send.Inputs) == 0 {
		return fmt.Errorf("reserve %s: no inputs", send.TxID)
	}

	next := cur.clone()
	w := l.store.newWriter()

	used := make(map[types.Outpoint]bool, len(send.Inputs))
	for _, op := range send.Inputs {
		o, ok := next.outputs[op]
		if !ok || o.State != StateUnspent || used[op] {
			w.batch.Discard()
			return fmt.Errorf("%w: %s", ErrOutputUnavailable, op)
		}
		used[op] = true
		o.State = StatePendingSpend
		o.ReservedBy = send.TxID
		next.outputs[op] = o
		w.output(o)
	}

	if send.Change != nil {
		change := *send.Change
		if change.Outpoint.TxID != send.TxID {
			w.batch.Discard()
			return fmt.Errorf("reserve %s: change outpoint %s belongs to another transaction", send.TxID, change.Outpoint)
		}
		if _, exists := next.outputs[change.Outpoint]; exists {
			w.batch.Discard()
			return ErrDuplicateSend
		}
		change.State = StatePendingReceive
		change.ReservedBy = types.Hash{}
		next.outputs[change.Outpoint] = change
		w.output(change)
		send.Change = &change
	}

	next.pending[send.TxID] = send
	w.pending(send)

	if err := w.commit(); err != nil {
		return err
	}
	l.cur.Store(next)
	prometheusLedgerReservations.Inc()

	l.logger.Debug().
		Str("txid", send.TxID.String()).
		Int("inputs", len(send.Inputs)).
		Uint64("amount", send.Amount).
		Uint64("fee", send.Fee).
		Msg("Outputs reserved")
	return nil
}

// Release undoes the reservation of a send the network rejected: its
// inputs become UNSPENT again and its change output is dropped.
func (l *Ledger) Release(id types.Hash) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.snapshot()
	send, ok := cur.pending[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSend, id)
	}

	next := cur.clone()
	w := l.store.newWriter()
	dropPending(next, w, send)

	if err := w.commit(); err != nil {
		return err
	}
	l.cur.Store(next)
	prometheusLedgerReleases.Inc()

	l.logger.Info().Str("txid", id.String()).Msg("Reservation released")
	return nil
}

// dropPending forgets send: inputs it still holds become UNSPENT and its
// unconfirmed change output is removed.
func dropPending(next *state, w *writer, send PendingSend) {
	for _, op := range send.Inputs {
		o, ok := next.outputs[op]
		if !ok || o.State != StatePendingSpend || o.ReservedBy != send.TxID {
			continue
		}
		o.State = StateUnspent
		o.ReservedBy = types.Hash{}
		next.outputs[op] = o
		w.output(o)
	}
	if send.Change != nil {
		if o, ok := next.outputs[send.Change.Outpoint]; ok && o.State == StatePendingReceive {
			delete(next.outputs, o.Outpoint)
			w.deleteOutput(o.Outpoint)
		}
	}
	delete(next.pending, send.TxID)
	w.deletePending(send.TxID)
}

// Synchronize applies a batch of confirmed transactions. Items that cannot
// be decoded or scanned are reported in the result and skipped; a storage
// failure aborts the call with nothing applied. Applying a transaction
// twice is a no-op, so batches may overlap and arrive out of order: a spend
// seen before its funding leaves a tombstone that the funding output
// picks up later.
func (l *Ledger) Synchronize(view *crypto.PrivateKey, batch []ConfirmedTx) (*SyncResult, error) {
	if view == nil {
		return nil, wallet.ErrAccountLocked
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.snapshot()
	next := cur.clone()
	w := l.store.newWriter()
	res := &SyncResult{}

	order := make([]int, len(batch))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return batch[order[a]].Height < batch[order[b]].Height
	})

	var foreign []types.Hash
	for _, i := range order {
		item := batch[i]
		if item.Height > next.height {
			next.height = item.Height
		}

		t, err := tx.Deserialize(item.Raw)
		if err != nil {
			l.softFailure(res, SoftFailure{Index: i, Err: err})
			continue
		}
		id := t.Hash()
		if _, ok := next.seen[id]; ok {
			res.Skipped++
			continue
		}
		if l.cache.foreign(id) {
			prometheusLedgerScanCacheHits.Inc()
			res.Skipped++
			continue
		}

		outs, err := t.Open(view)
		opened := err == nil
		if err != nil && !errors.Is(err, tx.ErrNotAddressed) {
			l.softFailure(res, SoftFailure{Index: i, TxID: id.String(), Err: err})
			continue
		}

		touched, err := l.apply(next, w, res, t, id, outs, opened, item)
		if err != nil {
			l.softFailure(res, SoftFailure{Index: i, TxID: id.String(), Err: err})
			continue
		}
		if !touched {
			foreign = append(foreign, id)
			res.Skipped++
			continue
		}
		res.Processed++
	}

	sortRecords(next.records)
	w.uint64(keyHeight, next.height)
	w.uint64(keySequence, next.nextSeq)
	if err := w.commit(); err != nil {
		prometheusLedgerSyncErrors.Inc()
		l.logger.Error().Err(err).Msg("Synchronize aborted")
		return nil, err
	}
	l.cur.Store(next)

	for _, id := range foreign {
		l.cache.markForeign(id)
	}
	if len(res.Used) > 0 {
		// Window grew: a transaction skipped earlier may now be ours.
		l.cache.forget()
	}
	for _, r := range res.Records {
		prometheusLedgerRecords.WithLabelValues(string(r.Direction)).Inc()
	}
	prometheusLedgerSync.Inc()
	res.Height = next.height

	l.logger.Debug().
		Int("items", len(batch)).
		Int("processed", res.Processed).
		Int("skipped", res.Skipped).
		Int("failures", len(res.Failures)).
		Uint64("height", res.Height).
		Msg("Synchronized")
	return res, nil
}

func (l *Ledger) softFailure(res *SyncResult, f SoftFailure) {
	res.Failures = append(res.Failures, f)
	prometheusLedgerSoftFailures.Inc()
	l.logger.Warn().
		Int("index", f.Index).
		Str("txid", f.TxID).
		Err(f.Err).
		Msg("Skipping confirmed transaction")
}

// apply folds one confirmed transaction into next. It reports whether the
// transaction touched the wallet at all.
func (l *Ledger) apply(next *state, w *writer, res *SyncResult, t *tx.Transaction, id types.Hash, outs []tx.Output, opened bool, item ConfirmedTx) (bool, error) {
	var (
		spentValue uint64
		spent      []Output
		ownInput   bool
	)
	for _, in := range t.Inputs {
		if !ownInput && len(in.PubKey) > 0 {
			_, ownInput = l.owner.Owns(crypto.AddressFromPubKey(in.PubKey))
		}
		o, ok := next.outputs[in.PrevOut]
		if !ok || o.State == StateSpent {
			continue
		}
		v, ok := addUint64(spentValue, o.Value)
		if !ok {
			return false, errors.New("spent value overflows")
		}
		spentValue = v
		spent = append(spent, o)
	}

	type owned struct {
		index int
		path  wallet.KeyPath
	}
	var (
		mine                 []owned
		ownValue, otherValue uint64
		totalOut             uint64
		counterpart          string
	)
	for i, out := range outs {
		v, ok := addUint64(totalOut, out.Value)
		if !ok {
			return false, errors.New("output value overflows")
		}
		totalOut = v

		path, isMine := l.owner.Owns(out.Address)
		if !isMine {
			otherValue += out.Value
			if counterpart == "" {
				counterpart = out.Address.String()
			}
			continue
		}
		ownValue += out.Value
		mine = append(mine, owned{index: i, path: path})
		if wt, ok := l.owner.(Watcher); ok {
			if err := wt.Watch(path); err != nil {
				return false, err
			}
		}
	}

	if len(spent) == 0 && len(mine) == 0 && !ownInput {
		return false, nil
	}

	var conflicts []types.Hash
	for _, o := range spent {
		if o.State == StatePendingSpend && o.ReservedBy != id && !o.ReservedBy.IsZero() {
			conflicts = append(conflicts, o.ReservedBy)
		}
		o.State = StateSpent
		o.ReservedBy = types.Hash{}
		next.outputs[o.Outpoint] = o
		w.output(o)
	}
	for _, in := range t.Inputs {
		next.consumed[in.PrevOut] = id
		w.consumed(in.PrevOut, id)
	}
	// A send whose input was spent by another transaction can never
	// confirm.
	for _, cid := range conflicts {
		if p, ok := next.pending[cid]; ok {
			dropPending(next, w, p)
			l.logger.Warn().
				Str("txid", cid.String()).
				Str("spent_by", id.String()).
				Msg("Pending send invalidated by a conflicting transaction")
		}
	}
	for _, m := range mine {
		op := types.Outpoint{TxID: id, Index: uint32(m.index)}
		st := StateUnspent
		if _, gone := next.consumed[op]; gone {
			st = StateSpent
		}
		o, exists := next.outputs[op]
		switch {
		case !exists:
			o = Output{
				Outpoint: op,
				Address:  outs[m.index].Address,
				Path:     m.path,
				Value:    outs[m.index].Value,
				State:    st,
				Height:   item.Height,
			}
		case o.State == StatePendingReceive:
			o.State = st
			o.Height = item.Height
		default:
			continue
		}
		next.outputs[op] = o
		w.output(o)
		res.Used = append(res.Used, m.path)
	}

	rec := Record{
		TxID:     id,
		Height:   item.Height,
		Time:     item.Time,
		Sequence: next.nextSeq,
	}
	if len(spent) > 0 || ownInput {
		rec.Direction = Outgoing
		rec.Fee = t.Fee
		switch {
		case opened && spentValue >= totalOut:
			rec.Fee = spentValue - totalOut
			rec.Amount = otherValue
		case opened:
			rec.Amount = otherValue
		case spentValue >= t.Fee:
			rec.Amount = spentValue - t.Fee
		}
		rec.Counterpart = counterpart
		if p, ok := next.pending[id]; ok {
			if rec.Counterpart == "" {
				rec.Counterpart = p.Counterpart
			}
			delete(next.pending, id)
			w.deletePending(id)
		}
	} else {
		rec.Direction = Incoming
		rec.Amount = ownValue
		rec.Fee = t.Fee
		if len(t.Inputs) > 0 && len(t.Inputs[0].PubKey) > 0 {
			rec.Counterpart = crypto.AddressFromPubKey(t.Inputs[0].PubKey).String()
		}
	}
	next.nextSeq++
	next.records = append(next.records, rec)
	w.record(rec)
	res.Records = append(res.Records, rec)

	next.seen[id] = struct{}{}
	w.seen(id)
	return true, nil
}

func addUint64(a, b uint64) (uint64, bool) {
	s := a + b
	return s, s >= a
}
