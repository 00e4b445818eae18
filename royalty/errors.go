package royalty

import "errors"

var (
	// ErrWalletNotConnected indicates a write attempted without a connected account.
	ErrWalletNotConnected = errors.New("royalty: please connect wallet first")

	// ErrEmptyContribution indicates contribute was called with no data.
	ErrEmptyContribution = errors.New("royalty: please enter contribution data")

	// ErrRecordNotFound indicates the claimed record has no stored data.
	ErrRecordNotFound = errors.New("royalty: record not found")

	// ErrListingUnsupported indicates the backend cannot enumerate keys.
	ErrListingUnsupported = errors.New("royalty: backend cannot list keys")

	// ErrNoUsage indicates no record has model usage to weight a payout by.
	ErrNoUsage = errors.New("royalty: no model usage recorded")

	// ErrUsageOverflow indicates a contributor's summed model usage exceeds uint64.
	ErrUsageOverflow = errors.New("royalty: model usage overflows")
)
