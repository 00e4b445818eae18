package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bitfsorg/royalties-go/api"
	"github.com/bitfsorg/royalties-go/app"
	"github.com/bitfsorg/royalties-go/cipher"
	"github.com/bitfsorg/royalties-go/config"
	"github.com/bitfsorg/royalties-go/lifecycle"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/royalty"
	"github.com/bitfsorg/royalties-go/syncer"
	"github.com/bitfsorg/royalties-go/wallet"
)

func cmdInit(_ context.Context, o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	var mnemonic string
	if o.mnemonic {
		mnemonic, err = readLine("Mnemonic: ")
		if err != nil {
			return err
		}
		mnemonic, err = wallet.ParseMnemonic(mnemonic)
		if err != nil {
			return err
		}
	} else {
		mnemonic, err = wallet.NewMnemonic(wallet.ShortPhrase)
		if err != nil {
			return err
		}
	}

	password, err := readPassword("New wallet password: ")
	if err != nil {
		return err
	}
	if os.Getenv(EnvPassword) == "" {
		confirm, err := readPassword("Repeat password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return errors.New("passwords do not match")
		}
	}

	data, w, err := wallet.SealMnemonic(mnemonic, password, wallet.DefaultKDF)
	if err != nil {
		return err
	}
	acct, err := w.DeriveAccount(wallet.DefaultAccount)
	if err != nil {
		return err
	}
	keyPath := filepath.Join(cfg.DataDir, wallet.KeyfileName)
	if err := wallet.SaveKeyfile(keyPath, data); err != nil {
		return err
	}

	cfgPath := o.cfgPath
	if cfgPath == "" {
		cfgPath = config.ConfigPath(cfg.DataDir)
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, os.ErrNotExist) {
		if err := config.SaveConfig(cfgPath, cfg); err != nil {
			return err
		}
	}

	fmt.Printf("Keyfile:  %s\nAddress:  %s\n", keyPath, acct.Address.Hex())
	if !o.mnemonic {
		fmt.Printf("Mnemonic: %s\n\nWrite the mnemonic down; it is the only way to recover the wallet.\n", mnemonic)
	}
	return nil
}

func cmdAddress(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	data, err := wallet.LoadKeyfile(filepath.Join(cfg.DataDir, wallet.KeyfileName))
	if err != nil {
		return err
	}
	addr, err := wallet.KeyfileAddress(data)
	if err != nil {
		return err
	}
	fmt.Println(addr)
	return nil
}

// load refreshes the records; when the contract is unavailable the last
// snapshot, if any, is used instead.
func (c *client) load(ctx context.Context) error {
	_, err := c.svc.Refresh(ctx)
	if errors.Is(err, syncer.ErrUnavailable) && c.store.Len() > 0 {
		c.log.Warn("contract unavailable; showing last snapshot", "loadedAt", c.store.LoadedAt())
		return nil
	}
	return err
}

// reportTx prints transaction indicator changes to stderr.
func (c *client) reportTx() func() {
	return c.lc.OnChange(func(s lifecycle.State) {
		if s.Visible() {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", s.Phase, s.Message)
		}
	})
}

func cmdList(ctx context.Context, c *client, args []string) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	term := ""
	if len(args) > 0 {
		term = args[0]
	}
	printRecords(c.svc.Records(term))
	return nil
}

func printRecords(records []record.Record) {
	if len(records) == 0 {
		fmt.Println("No contributions found")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTRIBUTOR\tSTATUS\tUSAGE\tROYALTY\tDATE")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID, r.Contributor, r.Status, r.ModelUsage, r.RoyaltyAmount,
			time.Unix(r.Timestamp, 0).UTC().Format(time.DateOnly))
	}
	_ = tw.Flush()
}

func cmdStats(ctx context.Context, c *client) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	st := c.svc.Stats()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total contributions\t%d\n", st.Total)
	fmt.Fprintf(tw, "Pending\t%d\n", st.Pending)
	fmt.Fprintf(tw, "Claimed\t%d\n", st.Claimed)
	fmt.Fprintf(tw, "Total royalties\t%s\n", st.TotalRoyalties)
	if st.InvalidAmounts > 0 {
		fmt.Fprintf(tw, "Unparsable amounts\t%d\n", st.InvalidAmounts)
	}
	return tw.Flush()
}

func cmdContribute(ctx context.Context, c *client, data string) error {
	defer c.reportTx()()
	res, err := c.svc.Contribute(ctx, data)
	if err != nil {
		return errors.New(royalty.UserMessage(err))
	}
	fmt.Printf("Record: %s\nTx:     %s\n", res.RecordID, res.TxID)
	return nil
}

func cmdClaim(ctx context.Context, c *client, id string) error {
	defer c.reportTx()()
	res, err := c.svc.Claim(ctx, id)
	if err != nil {
		return errors.New(royalty.UserMessage(err))
	}
	fmt.Printf("Record: %s\nTx:     %s\n", res.RecordID, res.TxID)
	return nil
}

func cmdOpen(ctx context.Context, c *client, id string) error {
	if err := c.load(ctx); err != nil {
		return err
	}
	rec, ok := c.svc.Record(id)
	if !ok {
		return errors.New(royalty.MsgRecordNotFound)
	}
	scheme, err := cipher.SchemeOf(rec.EncryptedData)
	if err != nil {
		return err
	}

	var ciph cipher.ContentCipher
	switch scheme {
	case cipher.PlaceholderScheme:
		ciph = cipher.Placeholder{}
	case c.svc.Cipher().Scheme():
		ciph = c.svc.Cipher()
	default:
		return fmt.Errorf("%w: %s (try --seal)", cipher.ErrUnknownScheme, scheme)
	}
	plain, err := ciph.Open(rec.EncryptedData)
	if err != nil {
		return err
	}
	fmt.Println(string(plain))
	return nil
}

func cmdReconcile(ctx context.Context, c *client, repair bool) error {
	defer c.reportTx()()
	report, err := c.svc.Reconcile(ctx, repair)
	if report != nil {
		fmt.Printf("Indexed: %d\nStored:  %d\n", report.Indexed, report.Stored)
		for _, id := range report.Orphans {
			fmt.Printf("orphan   %s\n", id)
		}
		for _, id := range report.Dangling {
			fmt.Printf("dangling %s\n", id)
		}
		if report.Repaired {
			fmt.Printf("Repaired in tx %s\n", report.TxID)
		}
	}
	return err
}

func cmdEstimate(ctx context.Context, c *client, poolArg string) error {
	pool, err := strconv.ParseUint(poolArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid pool %q: %w", poolArg, err)
	}
	if err := c.load(ctx); err != nil {
		return err
	}
	dist, err := c.svc.Estimate(pool)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTRIBUTOR\tUSAGE\tPAYOUT")
	for _, d := range dist {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", d.Contributor, d.Weight, d.Amount)
	}
	return tw.Flush()
}

func cmdServe(ctx context.Context, c *client) error {
	accounts, unsubscribe := c.session.Subscribe()
	defer unsubscribe()

	loop, err := app.NewLoop(app.LoopConfig{
		Logger:    c.log,
		Backend:   c.svc,
		Lifecycle: c.lc,
		Accounts:  accounts,
	})
	if err != nil {
		return err
	}
	c.onLoad = func(r *syncer.Result) {
		loop.Post(ctx, app.RecordsLoaded{Records: r.Records, LoadedAt: r.LoadedAt})
	}

	srv, err := api.NewServer(api.Config{
		Logger:     c.log,
		Loop:       loop,
		Wallet:     c.session,
		Tools:      c.svc,
		TrustProxy: c.opts.proxy,
	})
	if err != nil {
		return err
	}

	if c.cfg.Refresh > 0 {
		c.syncer.Start(ctx, c.cfg.Refresh)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, c.cfg.ListenAddr) })
	return g.Wait()
}
