package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// maxSyncRounds bounds how many ConfirmedSince pages one Sync consumes.
const maxSyncRounds = 1000

// Sync fetches confirmations past the ledger cursor and applies them.
// Concurrent calls for the same wallet share one pass.
func (e *Engine) Sync(ctx context.Context, h Handle) (*ledger.SyncResult, error) {
	inst, err := e.get(h)
	if err != nil {
		return nil, err
	}
	v, err, shared := e.syncs.Do(string(h), func() (any, error) {
		return e.syncInstance(ctx, inst)
	})
	if shared {
		prometheusEngineSyncShared.Inc()
	}
	if err != nil {
		return nil, err
	}
	return v.(*ledger.SyncResult), nil
}

func (e *Engine) syncInstance(ctx context.Context, inst *instance) (*ledger.SyncResult, error) {
	view, err := inst.acct.ViewKey()
	if err != nil {
		return nil, err
	}
	defer view.Zero()

	start := time.Now()
	total := &ledger.SyncResult{Height: inst.ledger.Height()}
	for round := 0; round < maxSyncRounds; round++ {
		from := inst.ledger.Height() + 1
		batch, tip, err := e.node.ConfirmedSince(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("fetch confirmations from %d: %w", from, err)
		}
		if len(batch) == 0 {
			break
		}
		res, err := inst.ledger.Synchronize(view, batch)
		if err != nil {
			return nil, err
		}
		merge(total, res)
		for _, p := range res.Used {
			if err := inst.book.MarkUsed(p); err != nil {
				return nil, fmt.Errorf("mark %s used: %w", p, err)
			}
		}
		if res.Height < from || res.Height >= tip {
			break
		}
	}
	prometheusEngineSyncDuration.Observe(time.Since(start).Seconds())

	if total.Processed > 0 || len(total.Failures) > 0 {
		inst.syncLog.Info().
			Int("processed", total.Processed).
			Int("failures", len(total.Failures)).
			Uint64("height", total.Height).
			Msg("Wallet synchronized")
	}
	return total, nil
}

func merge(total, res *ledger.SyncResult) {
	total.Processed += res.Processed
	total.Skipped += res.Skipped
	total.Records = append(total.Records, res.Records...)
	total.Used = append(total.Used, res.Used...)
	total.Failures = append(total.Failures, res.Failures...)
	total.Height = res.Height
}

// SyncAll syncs every open, unlocked wallet concurrently. Locked wallets
// are skipped. The first error is returned after all passes finish.
func (e *Engine) SyncAll(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(e.cfg.SyncConcurrency)
	for _, h := range e.Handles() {
		if locked, err := e.Locked(h); err != nil || locked {
			continue
		}
		g.Go(func() error {
			_, err := e.Sync(ctx, h)
			if errors.Is(err, ErrAccountLocked) || errors.Is(err, ErrUnknownHandle) {
				// Locked or closed since the handle list was taken.
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// Run syncs all open wallets every poll interval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.SyncAll(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn().Err(err).Msg("Background sync failed")
			}
		}
	}
}

// WaitConfirmed polls the node until the transaction confirms, ctx is done
// or timeout elapses. It returns the confirmation height, or ErrTimeout.
func (e *Engine) WaitConfirmed(ctx context.Context, txid string, timeout time.Duration) (uint64, error) {
	id, err := types.ParseHash(txid)
	if err != nil {
		return 0, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		confirmed, height, err := e.node.Status(ctx, id)
		if err != nil && ctx.Err() == nil {
			return 0, err
		}
		if err == nil && confirmed {
			return height, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return 0, fmt.Errorf("%w: %s", ErrTimeout, txid)
			}
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
