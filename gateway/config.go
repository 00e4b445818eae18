package gateway

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds the connection parameters for the royalty contract.
type Config struct {
	RPCURL   string `json:"rpc_url"`
	Contract string `json:"contract"`
	ChainID  uint64 `json:"chain_id"`
	Network  string `json:"network"`
}

// NetworkPresets contains default RPC endpoints for known networks.
// Mainnet is intentionally omitted to require explicit configuration.
var NetworkPresets = map[string]Config{
	"localhost": {RPCURL: "http://127.0.0.1:8545", ChainID: 31337},
	"sepolia":   {RPCURL: "https://rpc.sepolia.org", ChainID: 11155111},
}

// Environment variable names read by ResolveConfig.
const (
	EnvRPCURL   = "ROYALTY_RPC_URL"
	EnvContract = "ROYALTY_CONTRACT"
	EnvChainID  = "ROYALTY_CHAIN_ID"
)

// ResolveConfig merges contract configuration from three sources with
// decreasing priority:
//  1. CLI flags (highest priority)
//  2. Environment variables (ROYALTY_RPC_URL, ROYALTY_CONTRACT, ROYALTY_CHAIN_ID)
//  3. Network presets (lowest priority, localhost/sepolia only)
//
// The RPC URL and a valid contract address must be set after merging.
// A zero ChainID means "ask the node".
func ResolveConfig(flags *Config, env map[string]string, network string) (*Config, error) {
	result := Config{Network: network}

	if preset, ok := NetworkPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v, ok := env[EnvRPCURL]; ok && v != "" {
			result.RPCURL = v
		}
		if v, ok := env[EnvContract]; ok && v != "" {
			result.Contract = v
		}
		if v, ok := env[EnvChainID]; ok && v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("gateway: invalid %s %q: %w", EnvChainID, v, err)
			}
			result.ChainID = id
		}
	}

	if flags != nil {
		if flags.RPCURL != "" {
			result.RPCURL = flags.RPCURL
		}
		if flags.Contract != "" {
			result.Contract = flags.Contract
		}
		if flags.ChainID != 0 {
			result.ChainID = flags.ChainID
		}
	}

	if result.RPCURL == "" {
		return nil, fmt.Errorf("gateway: %s requires explicit RPC configuration (set --rpc-url, %s, or config file)", network, EnvRPCURL)
	}
	if !common.IsHexAddress(result.Contract) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidContract, result.Contract)
	}

	return &result, nil
}

// ContractAddress returns the parsed contract address.
func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract)
}
