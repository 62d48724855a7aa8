package engine

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingwallet/internal/ledger"
	"github.com/Klingon-tech/klingwallet/internal/wallet"
	"github.com/Klingon-tech/klingwallet/pkg/crypto"
	"github.com/Klingon-tech/klingwallet/pkg/tx"
	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// SendToAddress pays amount base units to address and returns the 64-hex
// transaction id. Only recipients whose view keys are listed (plus this
// wallet) can see the outputs. The spent outputs stay reserved until the
// transaction confirms, or are released if the node refuses it.
func (e *Engine) SendToAddress(ctx context.Context, h Handle, address, amount string, viewKeys []string) (string, error) {
	inst, err := e.get(h)
	if err != nil {
		return "", err
	}
	recipient, err := types.ParseAddress(address)
	if err != nil {
		return "", err
	}
	value, err := ParseAmount(amount)
	if err != nil {
		return "", err
	}
	keys := [][]byte{inst.acct.ViewPublicKey()}
	for _, s := range viewKeys {
		pub, err := wallet.ParseViewKey(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidViewKey, err)
		}
		keys = appendUniqueKey(keys, pub)
	}
	if inst.acct.Locked() {
		return "", ErrAccountLocked
	}

	var built *tx.Transaction
	send, err := inst.ledger.Spend(func(spendable []ledger.Output) (*ledger.PendingSend, error) {
		t, p, err := e.buildSend(inst, spendable, recipient, value, keys)
		if err != nil {
			return nil, err
		}
		built = t
		return p, nil
	})
	if err != nil {
		prometheusEngineSendErrors.Inc()
		return "", err
	}

	id, err := e.node.Submit(ctx, built)
	if err != nil {
		prometheusEngineSendErrors.Inc()
		if relErr := inst.ledger.Release(send.TxID); relErr != nil {
			inst.logger.Error().Err(relErr).Str("txid", send.TxID.String()).Msg("Release after failed submit")
		}
		return "", fmt.Errorf("submit: %w", err)
	}
	if id != send.TxID {
		inst.logger.Warn().
			Str("txid", send.TxID.String()).
			Str("node_txid", id.String()).
			Msg("Node reported a different transaction id")
	}
	prometheusEngineSends.Inc()

	inst.logger.Info().
		Str("txid", send.TxID.String()).
		Str("to", recipient.String()).
		Uint64("amount", value).
		Uint64("fee", send.Fee).
		Int("inputs", len(send.Inputs)).
		Msg("Transaction submitted")
	return send.TxID.String(), nil
}

// buildSend selects coins, builds, seals and signs the transaction and
// describes the reservation it needs. It runs under the ledger writer lock.
func (e *Engine) buildSend(inst *instance, spendable []ledger.Output, recipient types.Address, amount uint64, viewKeys [][]byte) (*tx.Transaction, *ledger.PendingSend, error) {
	coins := make([]wallet.Coin, len(spendable))
	byOutpoint := make(map[types.Outpoint]ledger.Output, len(spendable))
	for i, o := range spendable {
		coins[i] = wallet.Coin{Outpoint: o.Outpoint, Value: o.Value, Address: o.Address}
		byOutpoint[o.Outpoint] = o
	}

	policy := e.cfg.Fee
	sel, err := wallet.Select(coins, amount, func(inputs, outputs int) uint64 {
		return policy.Fee(inputs, outputs, len(viewKeys))
	})
	if err != nil {
		return nil, nil, err
	}

	b := tx.NewBuilder()
	for _, in := range sel.Coins {
		b.AddInput(in.Outpoint)
	}
	b.AddOutput(amount, recipient)

	var changeAddr types.Address
	if sel.Change > 0 {
		changeAddr, err = inst.book.NewChangeAddress()
		if err != nil {
			return nil, nil, err
		}
		b.AddOutput(sel.Change, changeAddr)
	}
	for _, k := range viewKeys {
		b.AddViewKey(k)
	}
	b.SetFee(sel.Fee)
	if err := b.Seal(); err != nil {
		return nil, nil, err
	}

	keys := make(map[types.Address]*crypto.PrivateKey)
	defer func() {
		for _, k := range keys {
			k.Zero()
		}
	}()
	err = b.SignWith(func(op types.Outpoint) (*crypto.PrivateKey, error) {
		o, ok := byOutpoint[op]
		if !ok {
			return nil, fmt.Errorf("outpoint %s not owned", op)
		}
		if k, ok := keys[o.Address]; ok {
			return k, nil
		}
		k, err := inst.acct.PrivateKey(o.Path.Change, o.Path.Index)
		if err != nil {
			return nil, err
		}
		keys[o.Address] = k
		return k, nil
	})
	if err != nil {
		return nil, nil, err
	}
	t := b.Build()
	if err := t.Validate(); err != nil {
		return nil, nil, fmt.Errorf("built transaction invalid: %w", err)
	}

	id := t.Hash()
	p := &ledger.PendingSend{
		TxID:        id,
		Amount:      amount,
		Fee:         sel.Fee,
		Counterpart: recipient.String(),
		Created:     time.Now().UTC(),
	}
	for _, in := range sel.Coins {
		p.Inputs = append(p.Inputs, in.Outpoint)
	}
	if sel.Change > 0 {
		path, _ := inst.book.Owns(changeAddr)
		p.Change = &ledger.Output{
			Outpoint: types.Outpoint{TxID: id, Index: 1},
			Address:  changeAddr,
			Path:     path,
			Value:    sel.Change,
		}
	}
	return t, p, nil
}

func appendUniqueKey(keys [][]byte, k []byte) [][]byte {
	for _, have := range keys {
		if bytes.Equal(have, k) {
			return keys
		}
	}
	return append(keys, k)
}
