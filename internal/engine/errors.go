package engine

import (
	"errors"

	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// Engine errors. Errors from lower layers are re-exported so callers only
// need this package to classify failures.
var (
	ErrRejected       = errors.New("transaction rejected")
	ErrTimeout        = errors.New("timed out waiting for confirmation")
	ErrUnknownHandle  = errors.New("unknown wallet handle")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidViewKey = errors.New("invalid view key")

	ErrInvalidMnemonic     = wallet.ErrInvalidMnemonic
	ErrInsufficientBalance = wallet.ErrInsufficientBalance
	ErrAccountLocked       = wallet.ErrAccountLocked
	ErrWalletExists        = wallet.ErrWalletExists
	ErrWalletNotFound      = wallet.ErrWalletNotFound
	ErrWrongPassphrase     = wallet.ErrWrongPassphrase
	ErrInvalidAddress      = types.ErrInvalidAddress
	ErrInvalidTxID         = types.ErrInvalidTxID
)
