package rpc

import (
	"context"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/engine"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
)

// defaultWaitTimeout bounds wallet_waitConfirmed when no timeout is given.
const defaultWaitTimeout = 60 * time.Second

func (s *Server) handleWalletCreate(ctx context.Context, req *Request) (any, *Error) {
	var params WalletCreateParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Name == "" || params.Passphrase == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "name and passphrase are required"}
	}

	h, mnemonic, err := s.engine.Create(ctx, engine.CreateWalletParams{Name: params.Name, Passphrase: params.Passphrase})
	if err != nil {
		return nil, toError(err)
	}
	return &WalletCreateResult{Handle: h, Mnemonic: mnemonic}, nil
}

func (s *Server) handleWalletRestore(ctx context.Context, req *Request) (any, *Error) {
	var params WalletRestoreParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Name == "" || params.Passphrase == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "name and passphrase are required"}
	}

	h, err := s.engine.Restore(ctx, engine.CreateWalletParams{Name: params.Name, Passphrase: params.Passphrase}, params.Mnemonic)
	if err != nil {
		s.logger.Debug().Err(err).Str("wallet", params.Name).Msg("wallet restore failed")
		return nil, toError(err)
	}
	return &HandleResult{Handle: h}, nil
}

func (s *Server) handleWalletOpen(ctx context.Context, req *Request) (any, *Error) {
	var params WalletOpenParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "name is required"}
	}

	var (
		h   engine.Handle
		err error
	)
	if params.Passphrase == "" {
		h, err = s.engine.OpenLocked(params.Name)
	} else {
		h, err = s.engine.Open(ctx, params.Name, params.Passphrase)
	}
	if err != nil {
		return nil, toError(err)
	}
	return &HandleResult{Handle: h}, nil
}

// handleParam parses a HandleParam and rejects an empty handle.
func handleParam(req *Request) (engine.Handle, *Error) {
	var params HandleParam
	if err := parseParams(req, &params); err != nil {
		return "", err
	}
	if params.Handle == "" {
		return "", &Error{Code: CodeInvalidParams, Message: "handle is required"}
	}
	return engine.Handle(params.Handle), nil
}

func (s *Server) handleWalletClose(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	if err := s.engine.CloseWallet(h); err != nil {
		return nil, toError(err)
	}
	return &OKResult{OK: true}, nil
}

func (s *Server) handleWalletLock(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	if err := s.engine.Lock(h); err != nil {
		return nil, toError(err)
	}
	return &OKResult{OK: true}, nil
}

func (s *Server) handleWalletUnlock(_ context.Context, req *Request) (any, *Error) {
	var params UnlockParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Handle == "" || params.Passphrase == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "handle and passphrase are required"}
	}
	if err := s.engine.Unlock(engine.Handle(params.Handle), params.Passphrase); err != nil {
		return nil, toError(err)
	}
	return &OKResult{OK: true}, nil
}

func (s *Server) handleWalletList(context.Context, *Request) (any, *Error) {
	list, err := s.engine.Wallets()
	if err != nil {
		return nil, toError(err)
	}
	if list == nil {
		list = []engine.WalletInfo{}
	}
	return list, nil
}

func (s *Server) handleWalletCreateTransferAddress(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	addr, err := s.engine.CreateTransferAddress(h)
	if err != nil {
		return nil, toError(err)
	}
	return addr, nil
}

func (s *Server) handleWalletCreateStakingAddress(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	addr, err := s.engine.CreateStakingAddress(h)
	if err != nil {
		return nil, toError(err)
	}
	return addr, nil
}

func (s *Server) handleWalletListAddresses(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	entries, err := s.engine.Addresses(h)
	if err != nil {
		return nil, toError(err)
	}
	out := make([]AddressEntry, 0, len(entries))
	for _, e := range entries {
		entry := AddressEntry{Address: e.Address.String(), Path: e.Path.Derivation()}
		switch e.Path.Change {
		case wallet.ChangeStaking:
			entry.Kind = "staking"
			entry.Address = e.Address.StakingString()
		case wallet.ChangeInternal:
			entry.Kind = "change"
		default:
			entry.Kind = "transfer"
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Server) handleWalletGetViewKey(_ context.Context, req *Request) (any, *Error) {
	var params ViewKeyParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Handle == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "handle is required"}
	}
	redacted := true
	if params.Redacted != nil {
		redacted = *params.Redacted
	}
	vk, err := s.engine.GetViewKey(engine.Handle(params.Handle), redacted)
	if err != nil {
		return nil, toError(err)
	}
	return vk, nil
}

func (s *Server) handleWalletSendToAddress(ctx context.Context, req *Request) (any, *Error) {
	var params SendParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Handle == "" || params.Address == "" || params.Amount == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "handle, address and amount are required"}
	}

	txid, err := s.engine.SendToAddress(ctx, engine.Handle(params.Handle), params.Address, params.Amount, params.ViewKeys)
	if err != nil {
		s.logger.Debug().Err(err).Str("to", params.Address).Msg("send failed")
		return nil, toError(err)
	}
	return txid, nil
}

func (s *Server) handleWalletBalance(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	bal, err := s.engine.Balance(h)
	if err != nil {
		return nil, toError(err)
	}
	return &bal, nil
}

func (s *Server) handleWalletTransactions(_ context.Context, req *Request) (any, *Error) {
	var params TransactionsParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Handle == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "handle is required"}
	}
	if params.Offset < 0 || params.Limit < 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "offset and limit must not be negative"}
	}

	page, err := s.engine.Transactions(engine.Handle(params.Handle), params.Offset, params.Limit, params.Reverse)
	if err != nil {
		return nil, toError(err)
	}
	if page == nil {
		page = []engine.TransactionView{}
	}
	return page, nil
}

func (s *Server) handleWalletTransactionCount(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	n, err := s.engine.TransactionCount(h)
	if err != nil {
		return nil, toError(err)
	}
	return n, nil
}

func (s *Server) handleWalletOutputs(_ context.Context, req *Request) (any, *Error) {
	h, perr := handleParam(req)
	if perr != nil {
		return nil, perr
	}
	outs, err := s.engine.Outputs(h)
	if err != nil {
		return nil, toError(err)
	}
	return outs, nil
}

func (s *Server) handleWalletWaitConfirmed(ctx context.Context, req *Request) (any, *Error) {
	var params WaitConfirmedParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.TxID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "txid is required"}
	}
	timeout := defaultWaitTimeout
	if params.TimeoutMS > 0 {
		timeout = time.Duration(params.TimeoutMS) * time.Millisecond
	}

	height, err := s.engine.WaitConfirmed(ctx, params.TxID, timeout)
	if err != nil {
		return nil, toError(err)
	}
	return &WaitConfirmedResult{TxID: params.TxID, Height: height}, nil
}

func (s *Server) handleSync(ctx context.Context, req *Request) (any, *Error) {
	var params SyncParam
	if err := parseOptionalParams(req, &params); err != nil {
		return nil, err
	}
	if params.Handle == "" {
		if err := s.engine.SyncAll(ctx); err != nil {
			return nil, toError(err)
		}
		return &OKResult{OK: true}, nil
	}

	res, err := s.engine.Sync(ctx, engine.Handle(params.Handle))
	if err != nil {
		return nil, toError(err)
	}
	out := &SyncResult{Processed: res.Processed, Skipped: res.Skipped, Height: res.Height}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, f.Error())
	}
	return out, nil
}
