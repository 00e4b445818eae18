package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/bitfsorg/royalties-go/cipher"
	"github.com/bitfsorg/royalties-go/config"
	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/logger"
	"github.com/bitfsorg/royalties-go/royalty"
	"github.com/bitfsorg/royalties-go/storage"
	"github.com/bitfsorg/royalties-go/syncer"
	"github.com/bitfsorg/royalties-go/wallet"
)

// LocalDBName is the bbolt file of the local backend under the data directory.
const LocalDBName = "contract.db"

// Values of --seal.
const (
	sealPlaceholder = "placeholder"
	sealECIES       = "ecies"
)

// client is one fully wired royalty client.
type client struct {
	log     *slog.Logger
	cfg     config.Config
	opts    options
	conn    gateway.Connector
	wallet  *wallet.Wallet
	session *wallet.Session
	store   *storage.RecordStore
	syncer  *syncer.Synchronizer
	lc      *lifecycle.Controller
	svc     *royalty.Service

	// onLoad, if set, receives every successful load.
	onLoad func(*syncer.Result)

	closers []func() error
}

func loadConfig(o options) (config.Config, error) {
	path := o.cfgPath
	if path == "" {
		path = config.ConfigPath(o.dataDir)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	if errors.Is(err, config.ErrConfigNotFound) {
		cfg = config.DefaultConfig()
	}
	// A config found under the data directory never moves it elsewhere.
	if o.cfgPath == "" || errors.Is(err, config.ErrConfigNotFound) {
		cfg.DataDir = o.dataDir
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{o.network, &cfg.Network},
		{o.backend, &cfg.Backend},
		{o.rpcURL, &cfg.RPCURL},
		{o.contract, &cfg.Contract},
		{o.listen, &cfg.ListenAddr},
		{o.logLevel, &cfg.LogLevel},
		{o.logFile, &cfg.LogFile},
	}
	for _, ov := range overrides {
		if ov.flag != "" {
			*ov.dst = ov.flag
		}
	}
	return cfg, config.ValidateConfig(cfg)
}

func newClient(ctx context.Context, o options, unlock bool) (*client, error) {
	cfg, err := loadConfig(o)
	if err != nil {
		return nil, err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	log, closeLog, err := logger.Open(cfg.LogFile, level)
	if err != nil {
		return nil, err
	}

	c := &client{log: log, cfg: cfg, opts: o, closers: []func() error{closeLog}}
	if err := c.wire(ctx, unlock); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) wire(ctx context.Context, unlock bool) error {
	conn, err := c.openConnector(ctx)
	if err != nil {
		return err
	}
	c.conn = conn

	c.session = wallet.NewSession(nil, nil, c.log)
	if unlock {
		if err := c.unlock(); err != nil {
			return err
		}
	}

	c.store = storage.NewRecordStore()
	snap, err := storage.NewSnapshot(filepath.Join(c.cfg.DataDir, storage.SnapshotName))
	if err != nil {
		return err
	}
	if ok, err := snap.Restore(c.store); err != nil {
		c.log.Warn("ignoring unreadable snapshot", "path", snap.Path(), "error", err)
	} else if ok {
		c.log.Debug("restored snapshot", "records", c.store.Len(), "loadedAt", c.store.LoadedAt())
	}

	c.syncer, err = syncer.New(syncer.Config{
		Logger:   c.log,
		Reader:   conn.ReadOnly(),
		Store:    c.store,
		Snapshot: snap,
		OnLoad: func(r *syncer.Result) {
			if c.onLoad != nil {
				c.onLoad(r)
			}
		},
	})
	if err != nil {
		return err
	}

	c.lc, err = lifecycle.New(lifecycle.Config{Logger: c.log})
	if err != nil {
		return err
	}

	ciph, err := c.contentCipher()
	if err != nil {
		return err
	}

	c.svc, err = royalty.New(royalty.Config{
		Logger:    c.log,
		Connector: conn,
		Session:   c.session,
		Syncer:    c.syncer,
		Lifecycle: c.lc,
		Cipher:    ciph,
	})
	return err
}

func (c *client) contentCipher() (cipher.ContentCipher, error) {
	switch c.opts.seal {
	case "", sealPlaceholder:
		return cipher.Placeholder{}, nil
	case sealECIES:
		if c.wallet == nil {
			return nil, errors.New("ecies sealing needs an unlocked wallet")
		}
		acct, err := c.wallet.DeriveAccount(c.opts.account)
		if err != nil {
			return nil, err
		}
		key := acct.PrivateKey()
		ec, err := cipher.NewECIES(&key.PublicKey, key)
		if err != nil {
			return nil, err
		}
		return ec, nil
	}
	return nil, fmt.Errorf("unknown --seal %q", c.opts.seal)
}

func (c *client) openConnector(ctx context.Context) (gateway.Connector, error) {
	network, err := wallet.GetNetwork(c.cfg.Network)
	if err != nil {
		return nil, err
	}

	switch c.cfg.Backend {
	case config.BackendLocal:
		g, err := gateway.OpenBolt(filepath.Join(c.cfg.DataDir, LocalDBName), network.ChainIDBig())
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, g.Close)
		return g, nil

	case config.BackendEVM:
		env := map[string]string{
			gateway.EnvRPCURL:   os.Getenv(gateway.EnvRPCURL),
			gateway.EnvContract: os.Getenv(gateway.EnvContract),
			gateway.EnvChainID:  os.Getenv(gateway.EnvChainID),
		}
		flags := &gateway.Config{RPCURL: c.cfg.RPCURL, Contract: c.cfg.Contract, ChainID: c.opts.chainID}
		rc, err := gateway.ResolveConfig(flags, env, c.cfg.Network)
		if err != nil {
			return nil, err
		}
		g, err := gateway.DialEVM(ctx, *rc, gateway.WithReadLimit(rate.Limit(20), 40))
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() error {
			g.Close()
			return nil
		})
		c.log.Debug("connected to contract", "rpc", rc.RPCURL, "contract", rc.Contract, "chainID", g.ChainID())
		return g, nil
	}
	return nil, config.ErrInvalidBackend
}

// unlock decrypts the keyfile and connects the configured account.
func (c *client) unlock() error {
	path := filepath.Join(c.cfg.DataDir, wallet.KeyfileName)
	data, err := wallet.LoadKeyfile(path)
	if err != nil {
		return fmt.Errorf("%w (run \"royalties init\" first)", err)
	}
	password, err := readPassword("Wallet password: ")
	if err != nil {
		return err
	}
	seed, err := wallet.DecryptSeed(data, password)
	if err != nil {
		return err
	}
	w, err := wallet.NewWallet(seed)
	if err != nil {
		return err
	}

	approve := wallet.AutoApprove
	if !c.opts.yes {
		approve = promptApprove
	}
	c.wallet = w
	c.session = wallet.NewSession(w, approve, c.log)
	if _, err := c.session.Connect(c.opts.account); err != nil {
		return err
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (c *client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && c.log != nil {
			c.log.Warn("close failed", "error", err)
		}
	}
	c.closers = nil
}
