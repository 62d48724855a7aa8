package engine

import (
	"time"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
)

// BalanceView is a balance with decimal-string amounts.
type BalanceView struct {
	Total     string `json:"total"`
	Pending   string `json:"pending"`
	Available string `json:"available"`
}

// TransactionView is a history record with decimal-string amounts.
type TransactionView struct {
	TxID        string           `json:"txid"`
	Direction   ledger.Direction `json:"direction"`
	Amount      string           `json:"amount"`
	Fee         string           `json:"fee"`
	Height      uint64           `json:"height"`
	Time        time.Time        `json:"time"`
	Counterpart string           `json:"counterpart,omitempty"`
}

// Balance returns the wallet balance. It works while locked.
func (e *Engine) Balance(h Handle) (BalanceView, error) {
	inst, err := e.get(h)
	if err != nil {
		return BalanceView{}, err
	}
	b := inst.ledger.Balance()
	return BalanceView{
		Total:     FormatAmount(b.Total),
		Pending:   FormatAmount(b.Pending),
		Available: FormatAmount(b.Available),
	}, nil
}

// Transactions returns a page of history ordered by confirmation. With
// reverse the most recent record comes first.
func (e *Engine) Transactions(h Handle, offset, limit int, reverse bool) ([]TransactionView, error) {
	inst, err := e.get(h)
	if err != nil {
		return nil, err
	}
	records := inst.ledger.Transactions(offset, limit, reverse)
	out := make([]TransactionView, len(records))
	for i, r := range records {
		out[i] = TransactionView{
			TxID:        r.TxID.String(),
			Direction:   r.Direction,
			Amount:      FormatAmount(r.Amount),
			Fee:         FormatAmount(r.Fee),
			Height:      r.Height,
			Time:        r.Time,
			Counterpart: r.Counterpart,
		}
	}
	return out, nil
}

// TransactionCount returns the number of history records.
func (e *Engine) TransactionCount(h Handle) (int, error) {
	inst, err := e.get(h)
	if err != nil {
		return 0, err
	}
	return inst.ledger.TransactionCount(), nil
}

// Outputs returns every output the wallet tracks.
func (e *Engine) Outputs(h Handle) ([]ledger.Output, error) {
	inst, err := e.get(h)
	if err != nil {
		return nil, err
	}
	return inst.ledger.Outputs(), nil
}

// PendingSends returns the wallet's unconfirmed sends.
func (e *Engine) PendingSends(h Handle) ([]ledger.PendingSend, error) {
	inst, err := e.get(h)
	if err != nil {
		return nil, err
	}
	return inst.ledger.Pending(), nil
}
