package rpc

import (
	"time"

	"github.com/Klingon-tech/klingwallet/internal/engine"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
)

// Wallet error codes. The message carries the error's sentinel text.
const (
	CodeInsufficientBalance = -32001
	CodeInvalidMnemonic     = -32002
	CodeAccountLocked       = -32003
	CodeRejected            = -32004
	CodeTimeout             = -32005
	CodeWalletExists        = -32006
	CodeWrongPassphrase     = -32007
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      any    `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// ── Param types ─────────────────────────────────────────────────────────
//
// Every param struct may also be sent as a positional array, in field
// order. A leading object in the array is a wallet request such as
// {"name": ..., "passphrase": ...} or {"handle": ...}; its keys bind by
// name and the remaining elements fill the fields it left unset.

// WalletCreateParam is used by wallet_create.
type WalletCreateParam struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase"`
}

// WalletRestoreParam is used by wallet_restore.
type WalletRestoreParam struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase"`
	Mnemonic   string `json:"mnemonic"`
}

// WalletOpenParam is used by wallet_open. An empty passphrase opens the
// wallet locked.
type WalletOpenParam struct {
	Name       string `json:"name"`
	Passphrase string `json:"passphrase,omitempty"`
}

// HandleParam is used by endpoints that take a single wallet handle.
type HandleParam struct {
	Handle string `json:"handle"`
}

// UnlockParam is used by wallet_unlock.
type UnlockParam struct {
	Handle     string `json:"handle"`
	Passphrase string `json:"passphrase"`
}

// ViewKeyParam is used by wallet_getViewKey. Redacted defaults to true.
type ViewKeyParam struct {
	Handle   string `json:"handle"`
	Redacted *bool  `json:"redacted,omitempty"`
}

// SendParam is used by wallet_sendToAddress. Amount is a decimal string
// of base units.
type SendParam struct {
	Handle   string   `json:"handle"`
	Address  string   `json:"address"`
	Amount   string   `json:"amount"`
	ViewKeys []string `json:"view_keys,omitempty"`
}

// TransactionsParam is used by wallet_transactions. Limit 0 means all.
type TransactionsParam struct {
	Handle  string `json:"handle"`
	Offset  int    `json:"offset"`
	Limit   int    `json:"limit"`
	Reverse bool   `json:"reverse"`
}

// WaitConfirmedParam is used by wallet_waitConfirmed.
type WaitConfirmedParam struct {
	TxID      string `json:"txid"`
	TimeoutMS int64  `json:"timeout_ms"`
}

// SyncParam is used by sync. An empty handle syncs every unlocked wallet.
type SyncParam struct {
	Handle string `json:"handle,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────
//
// wallet_createTransferAddress, wallet_createStakingAddress,
// wallet_getViewKey and wallet_sendToAddress return a bare string, and
// wallet_transactions a bare array of engine.TransactionView, so callers
// can pass results straight back as params.

// HandleResult is returned by wallet_restore and wallet_open.
type HandleResult struct {
	Handle engine.Handle `json:"handle"`
}

// WalletCreateResult is returned by wallet_create.
type WalletCreateResult struct {
	Handle   engine.Handle `json:"handle"`
	Mnemonic string        `json:"mnemonic"`
}

// AddressEntry is one element of the wallet_listAddresses result.
type AddressEntry struct {
	Address string `json:"address"`
	Kind    string `json:"kind"` // transfer, change or staking
	Path    string `json:"path"`
}

// SyncResult is returned by sync.
type SyncResult struct {
	Processed int      `json:"processed"`
	Skipped   int      `json:"skipped"`
	Failures  []string `json:"failures,omitempty"`
	Height    uint64   `json:"height"`
}

// WaitConfirmedResult is returned by wallet_waitConfirmed.
type WaitConfirmedResult struct {
	TxID   string `json:"txid"`
	Height uint64 `json:"height"`
}

// OKResult acknowledges endpoints with nothing to return.
type OKResult struct {
	OK bool `json:"ok"`
}

// ── Node wire types ─────────────────────────────────────────────────────

// NodeSubmitParam is used by node_submit.
type NodeSubmitParam struct {
	Raw string `json:"raw"` // hex-encoded serialized transaction
}

// NodeSubmitResult is returned by node_submit.
type NodeSubmitResult struct {
	TxID string `json:"txid"`
}

// NodeConfirmedSinceParam is used by node_confirmedSince.
type NodeConfirmedSinceParam struct {
	From uint64 `json:"from"`
}

// ConfirmedTxResult is one item of the confirmation stream.
type ConfirmedTxResult struct {
	Raw    string    `json:"raw"`
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
}

// NodeConfirmedSinceResult is returned by node_confirmedSince.
type NodeConfirmedSinceResult struct {
	Transactions []ConfirmedTxResult `json:"transactions"`
	Tip          uint64              `json:"tip"`
}

// NodeTxStatusParam is used by node_txStatus.
type NodeTxStatusParam struct {
	TxID string `json:"txid"`
}

// NodeTxStatusResult is returned by node_txStatus.
type NodeTxStatusResult struct {
	Confirmed bool   `json:"confirmed"`
	Height    uint64 `json:"height"`
}

// DevnetFundParam is used by devnet_fund.
type DevnetFundParam struct {
	Address  string   `json:"address"`
	Amount   string   `json:"amount"`
	ViewKeys []string `json:"view_keys"`
}

// DevnetMineResult is returned by devnet_mine. Height is 0 and Txs empty
// when nothing was pending.
type DevnetMineResult struct {
	Height uint64 `json:"height"`
	Txs    int    `json:"txs"`
}
