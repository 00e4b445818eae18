package revshare

import "errors"

var (
	// ErrInvalidAmount indicates a royalty amount is not a decimal number.
	ErrInvalidAmount = errors.New("revshare: invalid amount")

	// ErrNegativeAmount indicates a royalty amount below zero.
	ErrNegativeAmount = errors.New("revshare: negative amount")

	// ErrInsufficientPayment indicates the payment is too small to distribute.
	ErrInsufficientPayment = errors.New("revshare: insufficient payment for distribution")

	// ErrNoEntries indicates there is nobody to distribute to.
	ErrNoEntries = errors.New("revshare: no entries")

	// ErrZeroTotalShares indicates all weights are zero.
	ErrZeroTotalShares = errors.New("revshare: zero total shares")
)
