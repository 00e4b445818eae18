package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ContractABI is the JSON ABI of the key/value storage contract.
const ContractABI = `[
	{"type":"function","name":"isAvailable","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"getData","stateMutability":"view","inputs":[{"name":"key","type":"string"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"setData","stateMutability":"nonpayable","inputs":[{"name":"key","type":"string"},{"name":"value","type":"bytes"}],"outputs":[]}
]`

var contractABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(fmt.Sprintf("gateway: parse contract ABI: %v", err))
	}
	return parsed
}

// signLocal builds the setData transaction a local backend would receive and
// has s sign it. Local backends do not execute it; signing is where the
// wallet owner approves or declines the write.
func signLocal(ctx context.Context, s Signer, chainID *big.Int, to common.Address, nonce uint64, key string, value []byte) (*types.Transaction, error) {
	data, err := contractABI.Pack("setData", key, value)
	if err != nil {
		return nil, fmt.Errorf("gateway: pack setData: %w", err)
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    new(big.Int),
		GasPrice: new(big.Int),
		Data:     data,
	})
	signed, err := s.SignTx(ctx, tx, chainID)
	if err != nil {
		return nil, wrapSignErr(err)
	}
	return signed, nil
}

func wrapSignErr(err error) error {
	if errors.Is(err, ErrUserRejected) || errors.Is(err, ErrTxFailed) {
		return err
	}
	if IsUserRejected(err) {
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	}
	return fmt.Errorf("%w: %w", ErrTxFailed, err)
}
