package engine

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var maxAmount = fromUint64(math.MaxUint64)

// ParseAmount parses a decimal string of base units. Fractions, negative
// values and values above the uint64 range are rejected.
func ParseAmount(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s has a fractional part", ErrInvalidAmount, s)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if d.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, s)
	}
	return d.BigInt().Uint64(), nil
}

// FormatAmount renders base units as a decimal string.
func FormatAmount(v uint64) string {
	return fromUint64(v).String()
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
