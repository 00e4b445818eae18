// Package gateway is the client side of the royalty contract's generic
// key/value storage.
//
// The contract exposes three calls:
//
//	isAvailable() view returns (bool)
//	getData(string key) view returns (bytes)
//	setData(string key, bytes value)
//
// Reads need no wallet. Writes go through a gateway bound to a Signer.
package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Reader is the read-only contract surface.
type Reader interface {
	// IsAvailable probes whether the contract is ready to serve data.
	IsAvailable(ctx context.Context) (bool, error)

	// GetData returns the bytes stored under key. A key that was never
	// written yields an empty slice and no error.
	GetData(ctx context.Context, key string) ([]byte, error)
}

// Writer is the signer-bound contract surface.
type Writer interface {
	// SetData stores value under key and returns once the write is final.
	SetData(ctx context.Context, key string, value []byte) (*Tx, error)
}

// Gateway is a signer-bound contract handle.
type Gateway interface {
	Reader
	Writer
}

// Connector hands out read-only and signer-bound handles to one contract.
type Connector interface {
	ReadOnly() Reader
	WithSigner(s Signer) (Gateway, error)
}

// Lister is implemented by backends that can enumerate stored keys.
// The EVM contract cannot; local backends can.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Signer authorizes writes on behalf of one account.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Tx describes a completed write.
type Tx struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	Key         string `json:"key"`
	BlockNumber uint64 `json:"block_number"`
}
