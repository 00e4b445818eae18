package gateway

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// EVMGateway reads and writes the royalty contract on an EVM chain through
// a go-ethereum bound contract.
type EVMGateway struct {
	address  common.Address
	chainID  *big.Int
	contract *bind.BoundContract
	receipts bind.DeployBackend
	canWrite bool
	limiter  *rate.Limiter
	signer   Signer
	closer   func()
}

// Compile-time interface checks.
var (
	_ Gateway   = (*EVMGateway)(nil)
	_ Connector = (*EVMGateway)(nil)
)

// EVMOption configures an EVMGateway.
type EVMOption func(*EVMGateway)

// WithReadLimit throttles contract reads to r per second with the given burst.
func WithReadLimit(r rate.Limit, burst int) EVMOption {
	return func(g *EVMGateway) {
		g.limiter = rate.NewLimiter(r, burst)
	}
}

// NewEVMGateway binds the contract at address. transactor and receipts may
// be nil for a read-only gateway.
func NewEVMGateway(address common.Address, chainID *big.Int, caller bind.ContractCaller, transactor bind.ContractTransactor, receipts bind.DeployBackend, opts ...EVMOption) *EVMGateway {
	g := &EVMGateway{
		address:  address,
		chainID:  chainID,
		contract: bind.NewBoundContract(address, contractABI, caller, transactor, nil),
		receipts: receipts,
		canWrite: transactor != nil && receipts != nil,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// DialEVM connects to the node at cfg.RPCURL. When cfg.ChainID is zero the
// chain id is queried from the node.
func DialEVM(ctx context.Context, cfg Config, opts ...EVMOption) (*EVMGateway, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContract, cfg.Contract)
	}
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("%w: query chain id: %w", ErrConnectionFailed, err)
		}
	}

	g := NewEVMGateway(cfg.ContractAddress(), chainID, client, client, client, opts...)
	g.closer = client.Close
	return g, nil
}

// Close releases the RPC connection of a dialed gateway.
func (g *EVMGateway) Close() {
	if g.closer != nil {
		g.closer()
	}
}

// ChainID returns the chain the gateway signs for.
func (g *EVMGateway) ChainID() *big.Int { return g.chainID }

// ReadOnly returns a handle without a signer.
func (g *EVMGateway) ReadOnly() Reader {
	cp := *g
	cp.signer = nil
	return &cp
}

// WithSigner returns a handle whose writes are signed by s.
func (g *EVMGateway) WithSigner(s Signer) (Gateway, error) {
	if s == nil {
		return nil, ErrNoSigner
	}
	if !g.canWrite {
		return nil, fmt.Errorf("%w: gateway has no transactor", ErrNoSigner)
	}
	cp := *g
	cp.signer = s
	return &cp, nil
}

func (g *EVMGateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gateway: %s: %w", method, err)
		}
	}
	var out []interface{}
	if err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, method, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d values", ErrInvalidResponse, method, len(out))
	}
	return out, nil
}

// IsAvailable calls isAvailable().
func (g *EVMGateway) IsAvailable(ctx context.Context) (bool, error) {
	out, err := g.call(ctx, "isAvailable")
	if err != nil {
		return false, err
	}
	ok, isBool := out[0].(bool)
	if !isBool {
		return false, fmt.Errorf("%w: isAvailable returned %T", ErrInvalidResponse, out[0])
	}
	return ok, nil
}

// GetData calls getData(key).
func (g *EVMGateway) GetData(ctx context.Context, key string) ([]byte, error) {
	out, err := g.call(ctx, "getData", key)
	if err != nil {
		return nil, err
	}
	data, ok := out[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: getData returned %T", ErrInvalidResponse, out[0])
	}
	return data, nil
}

// SetData sends setData(key, value), signed by the bound signer, and waits
// for the receipt. A reverted receipt is reported as ErrTxFailed.
func (g *EVMGateway) SetData(ctx context.Context, key string, value []byte) (*Tx, error) {
	if g.signer == nil {
		return nil, ErrNoSigner
	}

	from := g.signer.Address()
	opts := &bind.TransactOpts{
		From:    from,
		Context: ctx,
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != from {
				return nil, bind.ErrNotAuthorized
			}
			return g.signer.SignTx(ctx, tx, g.chainID)
		},
	}

	tx, err := g.contract.Transact(opts, "setData", key, value)
	if err != nil {
		return nil, wrapSignErr(err)
	}

	receipt, err := bind.WaitMined(ctx, g.receipts, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: wait for %s: %w", ErrTxFailed, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s reverted", ErrTxFailed, tx.Hash().Hex())
	}

	result := &Tx{
		Hash: tx.Hash().Hex(),
		From: from.Hex(),
		Key:  key,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}
