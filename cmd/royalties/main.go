// Command royalties contributes AI training data to the royalty contract,
// claims royalties and serves the client state over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/bitfsorg/royalties-go/config"
)

const usage = `Usage: royalties [flags] <command> [args]

Commands:
  init                  create an encrypted wallet keyfile
  address               print the wallet address
  list [term]           list records, newest first
  stats                 print record statistics
  contribute <data>     submit an encrypted contribution
  claim <id>            claim the royalty of a record
  open <id>             print the decrypted data of a record
  reconcile             compare stored records with the key index
  estimate <pool>       preview a payout split by model usage
  serve                 run the HTTP API

Flags:
`

// options are the command-line settings layered over the config file.
type options struct {
	dataDir  string
	cfgPath  string
	network  string
	backend  string
	rpcURL   string
	contract string
	chainID  uint64
	listen   string
	logLevel string
	logFile  string
	account  uint32
	seal     string
	repair   bool
	yes      bool
	mnemonic bool
	proxy    bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine.
	_ = godotenv.Load()

	var o options
	flag.StringVar(&o.dataDir, "datadir", config.DefaultDataDir(), "data directory (or set ROYALTY_DATADIR env var)")
	flag.StringVar(&o.cfgPath, "config", "", "config file (default <datadir>/config)")
	flag.StringVar(&o.network, "network", "", "network: mainnet, sepolia or localhost")
	flag.StringVar(&o.backend, "backend", "", "contract backend: local or evm")
	flag.StringVar(&o.rpcURL, "rpc-url", "", "JSON-RPC endpoint (or set ROYALTY_RPC_URL env var)")
	flag.StringVar(&o.contract, "contract", "", "royalty contract address (or set ROYALTY_CONTRACT env var)")
	flag.Uint64Var(&o.chainID, "chain-id", 0, "chain id; 0 asks the node (or set ROYALTY_CHAIN_ID env var)")
	flag.StringVar(&o.listen, "listen", "", "HTTP listen address for serve")
	flag.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flag.StringVar(&o.logFile, "log-file", "", "log file (default stderr)")
	flag.Uint32Var(&o.account, "account", 0, "HD account index to connect")
	flag.StringVar(&o.seal, "seal", sealPlaceholder, "contribution cipher: placeholder or ecies (sealed to the account key)")
	flag.BoolVar(&o.repair, "repair", false, "reconcile: append orphaned records to the key index")
	flag.BoolVarP(&o.yes, "yes", "y", false, "approve transactions without prompting")
	flag.BoolVar(&o.proxy, "trust-proxy", false, "serve: rate-limit by X-Forwarded-For/X-Real-IP (only behind a proxy that sets them)")
	flag.BoolVar(&o.mnemonic, "mnemonic", false, "init: import a mnemonic from stdin instead of generating one")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if v := os.Getenv("ROYALTY_DATADIR"); v != "" && !flag.CommandLine.Changed("datadir") {
		o.dataDir = v
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		return errors.New("no command given")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "init":
		return cmdInit(ctx, o)
	case "address":
		return cmdAddress(o)
	case "list":
		return withApp(ctx, o, false, func(a *client) error { return cmdList(ctx, a, rest) })
	case "stats":
		return withApp(ctx, o, false, func(a *client) error { return cmdStats(ctx, a) })
	case "contribute":
		if len(rest) != 1 {
			return errors.New("usage: royalties contribute <data>")
		}
		return withApp(ctx, o, true, func(a *client) error { return cmdContribute(ctx, a, rest[0]) })
	case "claim":
		if len(rest) != 1 {
			return errors.New("usage: royalties claim <id>")
		}
		return withApp(ctx, o, true, func(a *client) error { return cmdClaim(ctx, a, rest[0]) })
	case "open":
		if len(rest) != 1 {
			return errors.New("usage: royalties open <id>")
		}
		return withApp(ctx, o, o.seal == sealECIES, func(a *client) error { return cmdOpen(ctx, a, rest[0]) })
	case "reconcile":
		return withApp(ctx, o, o.repair, func(a *client) error { return cmdReconcile(ctx, a, o.repair) })
	case "estimate":
		if len(rest) != 1 {
			return errors.New("usage: royalties estimate <pool>")
		}
		return withApp(ctx, o, false, func(a *client) error { return cmdEstimate(ctx, a, rest[0]) })
	case "serve":
		return withApp(ctx, o, true, func(a *client) error { return cmdServe(ctx, a) })
	}
	flag.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

func withApp(ctx context.Context, o options, unlock bool, fn func(*client) error) error {
	a, err := newClient(ctx, o, unlock)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
