package syncer

import "errors"

var (
	// ErrUnavailable indicates the contract was unreachable or reported
	// itself unavailable. The record store is left untouched.
	ErrUnavailable = errors.New("syncer: contract unavailable")
)
