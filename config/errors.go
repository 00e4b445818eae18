// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"sepolia\", or \"localhost\")")

	// ErrInvalidBackend indicates the backend name is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"local\" or \"evm\")")

	// ErrInvalidContract indicates the contract is not a hex address.
	ErrInvalidContract = errors.New("config: invalid contract address")

	// ErrInvalidRefresh indicates a negative refresh interval.
	ErrInvalidRefresh = errors.New("config: refresh interval must not be negative")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
