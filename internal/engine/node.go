package engine

import (
	"context"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Submitter hands signed transactions to the network. A transaction the
// network refuses yields an error wrapping ErrRejected.
type Submitter interface {
	Submit(ctx context.Context, t *tx.Transaction) (types.Hash, error)
}

// ConfirmationSource yields confirmed transactions. Delivery is
// at-least-once; the ledger tolerates duplicates.
type ConfirmationSource interface {
	// ConfirmedSince returns the transactions confirmed at fromHeight or
	// later, in height order, together with the current tip height.
	ConfirmedSince(ctx context.Context, fromHeight uint64) ([]ledger.ConfirmedTx, uint64, error)
	// Status reports whether a transaction is confirmed and at which height.
	Status(ctx context.Context, id types.Hash) (confirmed bool, height uint64, err error)
}

// Node is the full collaborator the engine talks to.
type Node interface {
	Submitter
	ConfirmationSource
}
