package rpc

import (
	"context"
	"errors"

	"github.com/Klingon-tech/klingwallet/internal/engine"
)

// errorCodes maps engine sentinels to JSON-RPC codes. Order matters only
// for errors wrapping more than one sentinel.
var errorCodes = []struct {
	err  error
	code int
}{
	{engine.ErrInsufficientBalance, CodeInsufficientBalance},
	{engine.ErrInvalidMnemonic, CodeInvalidMnemonic},
	{engine.ErrAccountLocked, CodeAccountLocked},
	{engine.ErrRejected, CodeRejected},
	{engine.ErrTimeout, CodeTimeout},
	{engine.ErrWalletExists, CodeWalletExists},
	{engine.ErrWrongPassphrase, CodeWrongPassphrase},
	{engine.ErrWalletNotFound, CodeNotFound},
	{engine.ErrUnknownHandle, CodeNotFound},
	{engine.ErrInvalidAddress, CodeInvalidParams},
	{engine.ErrInvalidTxID, CodeInvalidParams},
	{engine.ErrInvalidAmount, CodeInvalidParams},
	{engine.ErrInvalidViewKey, CodeInvalidParams},
}

// toError converts an engine error to a JSON-RPC error. Known sentinels
// keep their own text as the message; the full error goes in data.
func toError(err error) *Error {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			e := &Error{Code: m.code, Message: m.err.Error()}
			if err.Error() != e.Message {
				e.Data = err.Error()
			}
			return e
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Message: err.Error()}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}
