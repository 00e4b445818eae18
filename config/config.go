// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config reads and writes the client's key = value configuration
// file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backends.
const (
	BackendLocal = "local"
	BackendEVM   = "evm"
)

// ConfigFileName is the file name under the data directory.
const ConfigFileName = "config"

// Config holds the client settings.
type Config struct {
	DataDir    string
	ListenAddr string
	Network    string // mainnet, sepolia or localhost
	Backend    string // local or evm
	RPCURL     string
	Contract   string
	Refresh    time.Duration // 0 disables periodic reloads
	LogLevel   string
	LogFile    string // empty means stderr
}

// DefaultDataDir returns ~/.royalties, or .royalties in the working
// directory when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".royalties"
	}
	return filepath.Join(home, ".royalties")
}

// DefaultConfig returns the settings used when no file exists.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		ListenAddr: "127.0.0.1:8080",
		Network:    "localhost",
		Backend:    BackendLocal,
		Refresh:    30 * time.Second,
		LogLevel:   "info",
	}
}

// ConfigPath returns the config file path under dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(filepath.Clean(dataDir), ConfigFileName)
}

// LoadConfig reads path over DefaultConfig. Blank lines and lines starting
// with '#' are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "network":
		c.Network = value
	case "backend":
		c.Backend = value
	case "rpcurl":
		c.RPCURL = value
	case "contract":
		c.Contract = value
	case "refresh":
		if value == "" {
			c.Refresh = 0
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		c.Refresh = d
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Royalties Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "backend = %s\n", cfg.Backend)
	fmt.Fprintf(&b, "rpcurl = %s\n", cfg.RPCURL)
	fmt.Fprintf(&b, "contract = %s\n", cfg.Contract)
	fmt.Fprintf(&b, "refresh = %s\n", cfg.Refresh)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
