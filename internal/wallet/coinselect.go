package wallet

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Klingon-tech/klingwallet/pkg/types"
)

// ErrInsufficientBalance is returned when the available outputs cannot
// cover amount plus fee. ErrNoSpendable wraps it.
var (
	ErrInsufficientBalance = errors.New("Insufficient balance")
	ErrNoSpendable         = fmt.Errorf("no spendable outputs: %w", ErrInsufficientBalance)
)

// Coin is an available output offered to Select.
type Coin struct {
	Outpoint types.Outpoint
	Value    uint64
	Address  types.Address
}

// Selection is the funding plan of one send.
// Total == amount + Fee + Change always holds.
type Selection struct {
	Coins  []Coin
	Total  uint64
	Fee    uint64
	Change uint64
}

// FeeFunc prices a transaction by its input and output counts.
type FeeFunc func(inputs, outputs int) uint64

// Select funds amount plus the fee the chosen coins cost.
//
// Coins are ordered by (value, outpoint), so the result depends only on
// the set offered. For a given target the smallest single coin that covers
// it is used; failing that, the largest coins are taken until they do,
// which is the fewest coins that can. Because the fee depends on the input
// count the target is raised until the estimate covers the real fee.
func Select(coins []Coin, amount uint64, fee FeeFunc) (*Selection, error) {
	if amount == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	pool := make([]Coin, 0, len(coins))
	for _, c := range coins {
		if c.Value > 0 {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoSpendable
	}
	slices.SortFunc(pool, func(a, b Coin) int {
		if c := cmp.Compare(a.Value, b.Value); c != 0 {
			return c
		}
		return a.Outpoint.Compare(b.Outpoint)
	})

	// Each extra round adds at least one coin, so len(pool)+1 rounds
	// suffice for any fee that grows with the input count.
	estimate := fee(1, 2)
	for round := 0; round <= len(pool); round++ {
		if amount > math.MaxUint64-estimate {
			return nil, fmt.Errorf("%w: amount plus fee overflows", ErrInsufficientBalance)
		}
		target := amount + estimate
		picked, total := cover(pool, target)
		if picked == nil {
			return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, sum(pool), target)
		}
		outputs := 2
		if total == target {
			outputs = 1
		}
		need := fee(len(picked), outputs)
		if need > estimate {
			estimate = need
			continue
		}
		if outputs == 1 {
			// No change output to take back the surplus, so the whole
			// estimate goes to the fee.
			need = estimate
		}
		return &Selection{Coins: picked, Total: total, Fee: need, Change: total - amount - need}, nil
	}
	return nil, fmt.Errorf("fee estimate did not converge after %d rounds", len(pool)+1)
}

// cover picks coins from pool (sorted ascending) worth at least target,
// or returns nil.
func cover(pool []Coin, target uint64) ([]Coin, uint64) {
	for _, c := range pool {
		if c.Value >= target {
			return []Coin{c}, c.Value
		}
	}
	var run []Coin
	var total uint64
	for i := len(pool) - 1; i >= 0; i-- {
		if total > math.MaxUint64-pool[i].Value {
			break
		}
		run = append(run, pool[i])
		total += pool[i].Value
		if total >= target {
			return run, total
		}
	}
	return nil, 0
}

func sum(coins []Coin) uint64 {
	var total uint64
	for _, c := range coins {
		if total > math.MaxUint64-c.Value {
			return math.MaxUint64
		}
		total += c.Value
	}
	return total
}
