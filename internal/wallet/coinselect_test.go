package wallet

import (
	"errors"
	"slices"
	"testing"

	"github.com/Klingon-tech/klingwallet/pkg/types"
	"pgregory.net/rapid"
)

func coins(values ...uint64) []Coin {
	out := make([]Coin, len(values))
	for i, v := range values {
		out[i] = Coin{Outpoint: types.Outpoint{TxID: types.Hash{byte(i + 1)}}, Value: v}
	}
	return out
}

func noFee(int, int) uint64 { return 0 }

// perInput charges 10 per input and 5 per output.
func perInput(inputs, outputs int) uint64 { return uint64(10*inputs + 5*outputs) }

func values(s *Selection) []uint64 {
	var v []uint64
	for _, c := range s.Coins {
		v = append(v, c.Value)
	}
	return v
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		pool       []uint64
		amount     uint64
		fee        FeeFunc
		wantCoins  []uint64
		wantFee    uint64
		wantChange uint64
	}{
		{"exact single", []uint64{1000, 2000, 3000}, 2000, noFee, []uint64{2000}, 0, 0},
		{"smallest covering single", []uint64{9000, 5000, 7000}, 3000, noFee, []uint64{5000}, 0, 2000},
		{"largest first run", []uint64{1000, 2000, 1500}, 4000, noFee, []uint64{2000, 1500, 1000}, 0, 500},
		{"run of largest", []uint64{2500, 100, 3000, 400}, 5500, noFee, []uint64{3000, 2500}, 0, 0},
		{"single before run", []uint64{5000, 3000, 2000}, 5000, noFee, []uint64{5000}, 0, 0},
		{"many small coins with fee", []uint64{12, 12, 12, 12, 12, 12}, 1, perInput, []uint64{12, 12, 12, 12, 12, 12}, 70, 1},
		{"fee with change", []uint64{5000}, 1000, perInput, []uint64{5000}, 20, 3980},
		{"fee pulls in second coin", []uint64{1000, 1000}, 990, perInput, []uint64{1000, 1000}, 30, 980},
		{"exact after fee pays estimate", []uint64{1020}, 1000, perInput, []uint64{1020}, 20, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := Select(coins(tt.pool...), tt.amount, tt.fee)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if !slices.Equal(values(sel), tt.wantCoins) {
				t.Errorf("coins = %v, want %v", values(sel), tt.wantCoins)
			}
			if sel.Fee != tt.wantFee || sel.Change != tt.wantChange {
				t.Errorf("fee=%d change=%d, want fee=%d change=%d", sel.Fee, sel.Change, tt.wantFee, tt.wantChange)
			}
			if sel.Total != tt.amount+sel.Fee+sel.Change {
				t.Errorf("total %d != amount %d + fee %d + change %d", sel.Total, tt.amount, sel.Fee, sel.Change)
			}
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	if _, err := Select(nil, 10, noFee); !errors.Is(err, ErrNoSpendable) || !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("empty pool: %v", err)
	}
	if _, err := Select(coins(0, 0), 10, noFee); !errors.Is(err, ErrNoSpendable) {
		t.Errorf("zero-value pool: %v", err)
	}
	if _, err := Select(coins(100), 0, noFee); err == nil {
		t.Error("zero amount accepted")
	}
	if _, err := Select(coins(1000), 1000, perInput); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("fee not covered: %v", err)
	}
	if _, err := Select(coins(^uint64(0)), ^uint64(0)-1, perInput); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overflow: %v", err)
	}
}

func TestSelect_OrderIndependent(t *testing.T) {
	pool := coins(700, 700, 300, 700, 1200)
	a, err := Select(pool, 1300, perInput)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	reversed := slices.Clone(pool)
	slices.Reverse(reversed)
	b, err := Select(reversed, 1300, perInput)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !slices.Equal(a.Coins, b.Coins) {
		t.Errorf("selection depends on input order: %v vs %v", a.Coins, b.Coins)
	}
}

func TestSelect_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		vals := rapid.SliceOfN(rapid.Uint64Range(1, 10_000), 1, 12).Draw(rt, "values")
		amount := rapid.Uint64Range(1, 40_000).Draw(rt, "amount")
		pool := coins(vals...)

		sel, err := Select(pool, amount, perInput)
		if err != nil {
			if !errors.Is(err, ErrInsufficientBalance) {
				rt.Fatalf("unexpected error: %v", err)
			}
			if sum(pool) >= amount+perInput(len(pool), 2) {
				rt.Fatalf("refused although all coins cover amount and fee: %v", err)
			}
			return
		}
		if sel.Total != amount+sel.Fee+sel.Change {
			rt.Fatalf("unbalanced selection %+v for amount %d", sel, amount)
		}
		outputs := 2
		if sel.Change == 0 {
			outputs = 1
		}
		if sel.Fee < perInput(len(sel.Coins), outputs) {
			rt.Fatalf("fee %d below cost of %d inputs", sel.Fee, len(sel.Coins))
		}

		// No shorter set of coins covers the same target.
		sorted := slices.Clone(vals)
		slices.Sort(sorted)
		slices.Reverse(sorted)
		var best uint64
		for _, v := range sorted[:len(sel.Coins)-1] {
			best += v
		}
		if len(sel.Coins) > 1 && best >= amount+sel.Fee {
			rt.Fatalf("%d coins used, %d largest already cover %d", len(sel.Coins), len(sel.Coins)-1, amount+sel.Fee)
		}
	})
}
