// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validNetworks = map[string]bool{
	"mainnet":   true,
	"sepolia":   true,
	"localhost": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid. The RPC
// URL is not checked here; it may come from the environment or a preset.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if !validNetworks[cfg.Network] {
		return ErrInvalidNetwork
	}

	if cfg.Backend != BackendLocal && cfg.Backend != BackendEVM {
		return ErrInvalidBackend
	}

	if cfg.Contract != "" && !common.IsHexAddress(cfg.Contract) {
		return fmt.Errorf("%w: %q", ErrInvalidContract, cfg.Contract)
	}

	if cfg.Refresh < 0 {
		return ErrInvalidRefresh
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	return nil
}
