package wallet

import "errors"

// Wallet errors.
var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrAccountLocked   = errors.New("account is locked")
	ErrWalletExists    = errors.New("wallet already exists")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrWrongPassphrase = errors.New("wrong passphrase")
)
