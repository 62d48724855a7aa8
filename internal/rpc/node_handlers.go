package rpc

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/Klingon-tech/klingwallet/internal/engine"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

func (s *Server) handleNodeSubmit(ctx context.Context, req *Request) (any, *Error) {
	var params NodeSubmitParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(params.Raw)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid hex: %v", err)}
	}
	t, err := tx.Deserialize(raw)
	if err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid transaction: %v", err)}
	}

	id, err := s.node.Submit(ctx, t)
	if err != nil {
		return nil, toError(err)
	}
	return &NodeSubmitResult{TxID: id.String()}, nil
}

func (s *Server) handleNodeConfirmedSince(ctx context.Context, req *Request) (any, *Error) {
	var params NodeConfirmedSinceParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	items, tip, err := s.node.ConfirmedSince(ctx, params.From)
	if err != nil {
		return nil, toError(err)
	}
	out := &NodeConfirmedSinceResult{Transactions: make([]ConfirmedTxResult, len(items)), Tip: tip}
	for i, it := range items {
		out.Transactions[i] = ConfirmedTxResult{
			Raw:    hex.EncodeToString(it.Raw),
			Height: it.Height,
			Time:   it.Time,
		}
	}
	return out, nil
}

func (s *Server) handleNodeTxStatus(ctx context.Context, req *Request) (any, *Error) {
	var params NodeTxStatusParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	id, err := types.ParseHash(params.TxID)
	if err != nil {
		return nil, toError(err)
	}

	confirmed, height, err := s.node.Status(ctx, id)
	if err != nil {
		return nil, toError(err)
	}
	return &NodeTxStatusResult{Confirmed: confirmed, Height: height}, nil
}

func (s *Server) handleDevnetFund(_ context.Context, req *Request) (any, *Error) {
	var params DevnetFundParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		return nil, toError(err)
	}
	value, err := engine.ParseAmount(params.Amount)
	if err != nil {
		return nil, toError(err)
	}
	if len(params.ViewKeys) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "at least one view key is required"}
	}
	keys := make([][]byte, 0, len(params.ViewKeys))
	for _, vk := range params.ViewKeys {
		pub, err := wallet.ParseViewKey(vk)
		if err != nil {
			return nil, toError(fmt.Errorf("%w: %v", engine.ErrInvalidViewKey, err))
		}
		keys = append(keys, pub)
	}

	id, err := s.faucet.Fund(addr, value, keys...)
	if err != nil {
		return nil, toError(err)
	}
	return &NodeSubmitResult{TxID: id.String()}, nil
}

func (s *Server) handleDevnetMine(context.Context, *Request) (any, *Error) {
	b, err := s.faucet.Mine()
	if err != nil {
		return nil, toError(err)
	}
	if b == nil {
		return &DevnetMineResult{}, nil
	}
	return &DevnetMineResult{Height: b.Height, Txs: len(b.Txs)}, nil
}
