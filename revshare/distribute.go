package revshare

import "math/bits"

// Entry is one payee and its weight in a distribution.
type Entry struct {
	Contributor string
	Weight      uint64
}

// Distribution represents a single payout in revenue distribution.
type Distribution struct {
	Contributor string `json:"contributor"`
	Weight      uint64 `json:"weight"`
	Amount      uint64 `json:"amount"`
}

// TotalWeight sums entry weights. It reports false on overflow.
func TotalWeight(entries []Entry) (uint64, bool) {
	var total uint64
	for _, e := range entries {
		sum, carry := bits.Add64(total, e.Weight, 0)
		if carry != 0 {
			return 0, false
		}
		total = sum
	}
	return total, true
}

// DistributeRevenue splits totalPayment across entries in proportion to
// their weights. The last entry gets the remainder, so the amounts always
// sum to totalPayment.
func DistributeRevenue(totalPayment uint64, entries []Entry) ([]Distribution, error) {
	if totalPayment == 0 {
		return nil, ErrInsufficientPayment
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	totalWeight, ok := TotalWeight(entries)
	if !ok || totalWeight == 0 {
		return nil, ErrZeroTotalShares
	}

	distributions := make([]Distribution, len(entries))
	var distributed uint64

	for i, entry := range entries {
		distributions[i].Contributor = entry.Contributor
		distributions[i].Weight = entry.Weight
		if i == len(entries)-1 {
			// Last entry gets remainder
			distributions[i].Amount = totalPayment - distributed
			continue
		}
		// weight <= totalWeight keeps hi < totalWeight, so Div64 cannot panic.
		hi, lo := bits.Mul64(totalPayment, entry.Weight)
		amount, _ := bits.Div64(hi, lo, totalWeight)
		distributions[i].Amount = amount
		distributed += amount
	}

	return distributions, nil
}
