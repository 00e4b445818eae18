package revshare

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Amount tests ---

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"", "0.0000", nil},
		{"0", "0.0000", nil},
		{" 1.5 ", "1.5000", nil},
		{"0.00005", "0.0001", nil},
		{"0.00004", "0.0000", nil},
		{"12", "12.0000", nil},
		{"abc", "", ErrInvalidAmount},
		{"-1", "", ErrNegativeAmount},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseAmount(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(r))
		})
	}
}

func TestTotalRoyalties(t *testing.T) {
	total, invalid := TotalRoyalties([]string{"0.1", "0.2", "0", ""})
	assert.Equal(t, "0.3000", total)
	assert.Zero(t, invalid)

	total, invalid = TotalRoyalties([]string{"1.25", "oops", "2"})
	assert.Equal(t, "3.2500", total)
	assert.Equal(t, 1, invalid)

	total, invalid = TotalRoyalties(nil)
	assert.Equal(t, "0.0000", total)
	assert.Zero(t, invalid)
}

func TestFormatAmount_Nil(t *testing.T) {
	assert.Equal(t, "0.0000", FormatAmount(nil))
}

// --- Distribution tests ---

func TestDistributeRevenue(t *testing.T) {
	tests := []struct {
		name    string
		payment uint64
		entries []Entry
		want    []uint64
	}{
		{"single", 1000, []Entry{{"a", 5}}, []uint64{1000}},
		{"even", 1000, []Entry{{"a", 1}, {"b", 1}}, []uint64{500, 500}},
		{"remainder to last", 100, []Entry{{"a", 1}, {"b", 1}, {"c", 1}}, []uint64{33, 33, 34}},
		{"weighted", 1000, []Entry{{"a", 3}, {"b", 2}, {"c", 5}}, []uint64{300, 200, 500}},
		{"zero weight entry", 10, []Entry{{"a", 0}, {"b", 4}}, []uint64{0, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dist, err := DistributeRevenue(tt.payment, tt.entries)
			require.NoError(t, err)
			require.Len(t, dist, len(tt.want))

			var sum uint64
			for i, d := range dist {
				assert.Equal(t, tt.entries[i].Contributor, d.Contributor)
				assert.Equal(t, tt.entries[i].Weight, d.Weight)
				assert.Equal(t, tt.want[i], d.Amount)
				sum += d.Amount
			}
			assert.Equal(t, tt.payment, sum)
		})
	}
}

func TestDistributeRevenue_LargeValuesDoNotOverflow(t *testing.T) {
	dist, err := DistributeRevenue(math.MaxUint64, []Entry{{"a", math.MaxUint64 / 2}, {"b", math.MaxUint64 / 2}})
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2), dist[0].Amount)
	assert.Equal(t, uint64(math.MaxUint64)-dist[0].Amount, dist[1].Amount)
}

func TestDistributeRevenue_Errors(t *testing.T) {
	_, err := DistributeRevenue(0, []Entry{{"a", 1}})
	assert.ErrorIs(t, err, ErrInsufficientPayment)

	_, err = DistributeRevenue(10, nil)
	assert.ErrorIs(t, err, ErrNoEntries)

	_, err = DistributeRevenue(10, []Entry{{"a", 0}, {"b", 0}})
	assert.ErrorIs(t, err, ErrZeroTotalShares)

	_, err = DistributeRevenue(10, []Entry{{"a", math.MaxUint64}, {"b", 1}})
	assert.ErrorIs(t, err, ErrZeroTotalShares)
}
