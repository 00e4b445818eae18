package gateway

import (
	"errors"
	"strings"
)

var (
	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("gateway: connection failed")

	// ErrNoSigner indicates a write on a read-only gateway.
	ErrNoSigner = errors.New("gateway: no signer bound")

	// ErrUserRejected indicates the wallet owner declined to sign.
	ErrUserRejected = errors.New("gateway: user rejected transaction")

	// ErrTxFailed indicates the transaction was not accepted or reverted.
	ErrTxFailed = errors.New("gateway: transaction failed")

	// ErrInvalidResponse indicates the contract returned an unexpected value.
	ErrInvalidResponse = errors.New("gateway: invalid response")

	// ErrInvalidContract indicates a missing or malformed contract address.
	ErrInvalidContract = errors.New("gateway: invalid contract address")

	// ErrClosed indicates use of a closed local backend.
	ErrClosed = errors.New("gateway: backend closed")
)

// rejectionMessages are lower-cased fragments that wallets and external
// signers use when the owner declines a signature request.
var rejectionMessages = []string{
	"user rejected transaction",
	"user rejected the request",
	"user denied",
	"request denied",
	"rejected by user",
}

// IsUserRejected reports whether err means the signer declined the request.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rejectionMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
