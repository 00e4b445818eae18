package royalty

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/revshare"
)

// Estimate previews how a payout pool would split across contributors in
// proportion to the model usage of the loaded records. Nothing is written.
func (s *Service) Estimate(pool uint64) ([]revshare.Distribution, error) {
	return EstimatePayouts(pool, s.cfg.Syncer.Store().Records())
}

// EstimatePayouts aggregates model usage per contributor (case-insensitive,
// in order of first appearance) and splits pool accordingly. Records with
// no usage do not take part. A per-contributor sum that overflows is
// ErrUsageOverflow.
func EstimatePayouts(pool uint64, records []record.Record) ([]revshare.Distribution, error) {
	pos := make(map[string]int)
	var entries []revshare.Entry
	for _, r := range records {
		if r.ModelUsage <= 0 {
			continue
		}
		key := strings.ToLower(r.Contributor)
		i, ok := pos[key]
		if !ok {
			i = len(entries)
			pos[key] = i
			entries = append(entries, revshare.Entry{Contributor: r.Contributor})
		}
		sum, carry := bits.Add64(entries[i].Weight, uint64(r.ModelUsage), 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w: %w: %s", ErrUsageOverflow, revshare.ErrZeroTotalShares, r.Contributor)
		}
		entries[i].Weight = sum
	}
	if len(entries) == 0 {
		return nil, ErrNoUsage
	}

	dist, err := revshare.DistributeRevenue(pool, entries)
	if errors.Is(err, revshare.ErrZeroTotalShares) {
		return nil, fmt.Errorf("%w: %w", ErrNoUsage, err)
	}
	return dist, err
}
