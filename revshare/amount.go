// Package revshare holds royalty arithmetic: decimal amount totals and
// proportional payout splits.
package revshare

import (
	"fmt"
	"math/big"
	"strings"
)

// DisplayDecimals is the number of decimals totals are rendered with.
const DisplayDecimals = 4

// ParseAmount parses a decimal royalty amount. Empty means zero.
func ParseAmount(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Rat), nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNegativeAmount, s)
	}
	return r, nil
}

// SumAmounts adds decimal amounts exactly. Amounts that do not parse are
// counted in invalid and contribute zero.
func SumAmounts(amounts []string) (sum *big.Rat, invalid int) {
	sum = new(big.Rat)
	for _, a := range amounts {
		r, err := ParseAmount(a)
		if err != nil {
			invalid++
			continue
		}
		sum.Add(sum, r)
	}
	return sum, invalid
}

// FormatAmount renders r with DisplayDecimals decimals, halves rounded away
// from zero.
func FormatAmount(r *big.Rat) string {
	if r == nil {
		r = new(big.Rat)
	}
	return r.FloatString(DisplayDecimals)
}

// TotalRoyalties is SumAmounts followed by FormatAmount.
func TotalRoyalties(amounts []string) (string, int) {
	sum, invalid := SumAmounts(amounts)
	return FormatAmount(sum), invalid
}
