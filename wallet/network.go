package wallet

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"
)

// NetworkConfig defines the parameters of an EVM chain.
type NetworkConfig struct {
	Name     string `json:"name"`
	ChainID  uint64 `json:"chain_id"`
	Symbol   string `json:"symbol"`
	Explorer string `json:"explorer"`
}

// Predefined network configurations.
var (
	MainNet = NetworkConfig{
		Name:     "mainnet",
		ChainID:  1,
		Symbol:   "ETH",
		Explorer: "https://etherscan.io",
	}

	Sepolia = NetworkConfig{
		Name:     "sepolia",
		ChainID:  11155111,
		Symbol:   "SepoliaETH",
		Explorer: "https://sepolia.etherscan.io",
	}

	// Localhost matches the default chain id of local dev nodes.
	Localhost = NetworkConfig{
		Name:    "localhost",
		ChainID: 31337,
		Symbol:  "ETH",
	}
)

// predefined maps network names to their configs.
var predefined = map[string]*NetworkConfig{
	"mainnet":   &MainNet,
	"sepolia":   &Sepolia,
	"localhost": &Localhost,
}

// GetNetwork returns a predefined network by name.
// If the name is not predefined, it returns ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	if net, ok := predefined[name]; ok {
		return net, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}

// ChainIDBig returns the chain id as a *big.Int for transaction signing.
func (n *NetworkConfig) ChainIDBig() *big.Int {
	return new(big.Int).SetUint64(n.ChainID)
}

// LoadCustomNetwork loads a NetworkConfig from a JSON file.
func LoadCustomNetwork(path string) (*NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wallet: failed to read network config: %w", err)
	}

	var config NetworkConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("wallet: failed to parse network config: %w", err)
	}
	if config.Name == "" {
		return nil, fmt.Errorf("wallet: network config must have a name")
	}
	if config.ChainID == 0 {
		return nil, fmt.Errorf("wallet: network config %q must have a chain id", config.Name)
	}
	return &config, nil
}
