// Package nodeclient talks to a remote node over JSON-RPC. It implements
// engine.Node so the wallet engine can run against a node in another
// process, including a daemon serving the node_* methods of its devnet.
package nodeclient

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/Klingon-tech/klingwallet/internal/engine"
	"github.com/Klingon-tech/klingwallet/internal/ledger"
	klog "github.com/Klingon-tech/klingwallet/internal/log"
	"github.com/Klingon-tech/klingwallet/internal/rpc"
	"github.com/Klingon-tech/klingwallet/internal/rpcclient"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

var (
	// MaxFailingRequests is how many requests must be seen before the
	// breaker may trip.
	MaxFailingRequests = 10
	// FailingRatio is the failure share that trips the breaker.
	FailingRatio = 0.6
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout = 30 * time.Second
)

// Client is a remote engine.Node.
type Client struct {
	rpc    *rpcclient.Client
	cb     *gobreaker.CircuitBreaker
	logger zerolog.Logger
}

var _ engine.Node = (*Client)(nil)

// New creates a client for the node at endpoint.
func New(endpoint string, timeout time.Duration) *Client {
	c := &Client{
		rpc:    rpcclient.New(endpoint, rpcclient.WithTimeout(timeout)),
		logger: klog.For(klog.Node).With().Str("endpoint", endpoint).Logger(),
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "node",
		Timeout: OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) > MaxFailingRequests && ratio >= FailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Node circuit breaker state changed")
		},
	})
	return c
}

// refused carries an application-level refusal through the breaker
// without counting it as a transport failure.
type refused struct{ err error }

// call runs one RPC through the circuit breaker. RPC errors from a
// healthy node do not trip the breaker.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	v, err := c.cb.Execute(func() (interface{}, error) {
		err := c.rpc.Call(ctx, method, params, result)
		var rpcErr *rpcclient.RPCError
		if errors.As(err, &rpcErr) {
			return refused{err: rpcErr}, nil
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if r, ok := v.(refused); ok {
		return translate(method, r.err)
	}
	return nil
}

// translate maps a node RPC error back onto engine sentinels.
func translate(method string, err error) error {
	var rpcErr *rpcclient.RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case rpc.CodeRejected:
			return fmt.Errorf("%w: %s", engine.ErrRejected, rpcErr.Message)
		case rpc.CodeTimeout:
			return fmt.Errorf("%w: %s", engine.ErrTimeout, rpcErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", method, err)
}

// Submit implements engine.Submitter.
func (c *Client) Submit(ctx context.Context, t *tx.Transaction) (types.Hash, error) {
	var res rpc.NodeSubmitResult
	if err := c.call(ctx, "node_submit", rpc.NodeSubmitParam{Raw: hex.EncodeToString(t.Serialize())}, &res); err != nil {
		return types.Hash{}, err
	}
	id, err := types.ParseHash(res.TxID)
	if err != nil {
		return types.Hash{}, fmt.Errorf("node_submit: bad txid %q: %w", res.TxID, err)
	}
	return id, nil
}

// ConfirmedSince implements engine.ConfirmationSource.
func (c *Client) ConfirmedSince(ctx context.Context, fromHeight uint64) ([]ledger.ConfirmedTx, uint64, error) {
	var res rpc.NodeConfirmedSinceResult
	if err := c.call(ctx, "node_confirmedSince", rpc.NodeConfirmedSinceParam{From: fromHeight}, &res); err != nil {
		return nil, 0, err
	}
	out := make([]ledger.ConfirmedTx, 0, len(res.Transactions))
	for i, it := range res.Transactions {
		raw, err := hex.DecodeString(it.Raw)
		if err != nil {
			return nil, 0, fmt.Errorf("node_confirmedSince: item %d: %w", i, err)
		}
		out = append(out, ledger.ConfirmedTx{Raw: raw, Height: it.Height, Time: it.Time})
	}
	return out, res.Tip, nil
}

// Status implements engine.ConfirmationSource.
func (c *Client) Status(ctx context.Context, id types.Hash) (bool, uint64, error) {
	var res rpc.NodeTxStatusResult
	if err := c.call(ctx, "node_txStatus", rpc.NodeTxStatusParam{TxID: id.String()}, &res); err != nil {
		return false, 0, err
	}
	return res.Confirmed, res.Height, nil
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}
