package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/fundwait"
	"github.com/metis-devops/midnight-transfer/internal/logging"
	"github.com/metis-devops/midnight-transfer/internal/transfer"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
	"github.com/metis-devops/midnight-transfer/internal/wallet/rpcwallet"
)

type dialFunc func(ctx context.Context, endpoint string) (*rpcwallet.Service, error)

func main() {
	basectx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)

	code := run(basectx, os.Args[1:], os.Stderr, os.Getenv("LOG_LEVEL"), rpcwallet.Dial)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer, logLevel string, dial dialFunc) int {
	defaults := config.Standalone()

	var (
		cfg         = defaults
		network     string
		seed        string
		throttle    time.Duration
		waitTimeout time.Duration
	)

	fs := flag.NewFlagSet("midnight-transfer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Indexer, "indexer", defaults.Indexer, "indexer graphql endpoint")
	fs.StringVar(&cfg.IndexerWS, "indexer-ws", defaults.IndexerWS, "indexer graphql websocket endpoint")
	fs.StringVar(&cfg.Node, "node", defaults.Node, "node rpc endpoint")
	fs.StringVar(&cfg.ProofServer, "proof-server", defaults.ProofServer, "proof server endpoint")
	fs.StringVar(&cfg.WalletService, "wallet-service", defaults.WalletService, "wallet service json-rpc endpoint")
	fs.StringVar(&network, "network", string(defaults.NetworkID), "network id")
	fs.StringVar(&seed, "seed", config.GenesisMintWalletSeed, "hex seed of the funding wallet")
	fs.DurationVar(&throttle, "throttle", fundwait.DefaultInterval, "minimum interval between wallet state checks")
	fs.DurationVar(&waitTimeout, "wait-timeout", 0, "give up waiting for funds after this long, 0 waits forever")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: midnight-transfer [flags] <receiverAddress>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return 1
	}
	receiver := fs.Arg(0)

	logger := logging.New(stderr, logLevel)
	slog.SetDefault(logger)

	if err := wallet.CheckShieldedAddress(receiver); err != nil {
		logger.Warn("Make sure this is a valid shielded address", "err", err)
	}

	networkID, err := config.ParseNetworkID(network)
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		return 1
	}
	cfg.NetworkID = networkID
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "err", err)
		return 1
	}
	if _, err := config.DecodeSeed(seed); err != nil {
		logger.Error("Invalid configuration", "err", err)
		return 1
	}

	logger.Info("Starting transfer", "receiverAddress", receiver, "network", cfg.NetworkID)

	svc, err := dial(ctx, cfg.WalletService)
	if err != nil {
		logger.Error("Error while preparing/submitting transfer transaction",
			"stage", transfer.StageSetup, "err", err)
		return 1
	}
	defer svc.Close()

	waiter := fundwait.New(logger)
	waiter.Interval = throttle

	orchestrator := &transfer.Orchestrator{
		Builder:     svc,
		Config:      cfg,
		Seed:        seed,
		Logger:      logger,
		Waiter:      waiter,
		WaitTimeout: waitTimeout,
	}

	receipt, err := orchestrator.Run(ctx, receiver)
	if err != nil {
		var stageErr *transfer.StageError
		stage := "unknown"
		if errors.As(err, &stageErr) {
			stage = string(stageErr.Stage)
		}
		logger.Error("Error while preparing/submitting transfer transaction",
			"stage", stage, "err", err)
		return 1
	}

	logger.Info("Transfer complete",
		"txHash", receipt.TxHash,
		"amount", receipt.Amount,
		"receiverAddress", receiver)
	return 0
}
