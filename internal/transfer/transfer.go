// Package transfer runs a single funded transfer from a seed wallet.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/fundwait"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

const (
	// DefaultAmount is the number of native units sent per run.
	DefaultAmount = 1_000_000_000_000

	defaultCloseTimeout = 10 * time.Second
)

// Builder acquires a wallet session.
type Builder interface {
	Build(ctx context.Context, cfg config.Config, seed string) (wallet.Handle, error)
}

type Orchestrator struct {
	Builder Builder
	Config  config.Config
	Seed    string
	Logger  *slog.Logger

	// Amount defaults to DefaultAmount.
	Amount *big.Int

	// Waiter defaults to fundwait.New.
	Waiter *fundwait.Waiter

	// WaitTimeout bounds the wait for funds. Zero waits forever.
	WaitTimeout time.Duration

	CloseTimeout time.Duration
}

// Receipt describes a successful run.
type Receipt struct {
	Address string
	Balance *big.Int
	Amount  *big.Int
	TxHash  wallet.TxHash

	// CloseErr is set when the transfer went through but the wallet could
	// not be released cleanly.
	CloseErr error
}

// Run builds the wallet, waits for funds if it has none, and sends Amount to
// receiver. The wallet is closed exactly once on every path after it was
// built. Failures are returned as *StageError.
func (o *Orchestrator) Run(ctx context.Context, receiver string) (receipt *Receipt, err error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Setting up wallet", "network", o.Config.NetworkID)
	handle, buildErr := o.Builder.Build(ctx, o.Config, o.Seed)
	if buildErr != nil {
		return nil, &StageError{Stage: StageSetup, Err: fmt.Errorf("build wallet: %w", buildErr)}
	}

	defer func() {
		closeErr := o.release(logger, handle)
		if closeErr == nil {
			return
		}
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stageErr.CloseErr = closeErr
		} else if receipt != nil {
			receipt.CloseErr = closeErr
		}
	}()

	return o.run(ctx, logger, handle, receiver)
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, handle wallet.Handle, receiver string) (*Receipt, error) {
	if err := handle.Start(ctx); err != nil {
		return nil, &StageError{Stage: StageSetup, Err: fmt.Errorf("start wallet: %w", err)}
	}

	state, err := handle.LatestState(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageSetup, Err: fmt.Errorf("read wallet state: %w", err)}
	}
	logger.Debug("Wallet seed", "seed", o.Seed)
	logger.Info("Wallet address", "address", state.Address)

	balance := state.Balance(wallet.NativeToken)
	if balance.Sign() <= 0 {
		logger.Info("Wallet balance", "balance", 0)
		logger.Info("Waiting to receive tokens")
		if balance, err = o.waitForFunds(ctx, handle); err != nil {
			return nil, &StageError{Stage: StageSync, Err: err}
		}
	} else if !state.Synced() {
		// The initial read is trusted even before the wallet is synced,
		// unlike states seen while waiting.
		logger.Warn("Using balance reported before wallet sync completed", "balance", balance)
	}
	logger.Info("Wallet balance", "balance", balance)

	amount := o.Amount
	if amount == nil {
		amount = big.NewInt(DefaultAmount)
	}
	req := wallet.TransferRequest{
		Amount:          amount,
		ReceiverAddress: receiver,
		Type:            wallet.NativeToken,
	}
	if err := req.Validate(); err != nil {
		return nil, &StageError{Stage: StageRecipe, Err: err}
	}

	recipe, err := handle.TransferTransaction(ctx, []wallet.TransferRequest{req})
	if err != nil {
		return nil, &StageError{Stage: StageRecipe, Err: fmt.Errorf("create transfer recipe: %w", err)}
	}
	logger.Info("Transfer recipe created", "amount", amount, "receiverAddress", receiver)

	proven, err := handle.ProveTransaction(ctx, recipe)
	if err != nil {
		return nil, &StageError{Stage: StageProof, Err: fmt.Errorf("prove transaction: %w", err)}
	}
	logger.Info("Transaction proof generated")

	hash, err := handle.SubmitTransaction(ctx, proven)
	if err != nil {
		return nil, &StageError{Stage: StageSubmit, Err: fmt.Errorf("submit transaction: %w", err)}
	}
	logger.Info("Transaction submitted", "txHash", hash)

	return &Receipt{
		Address: state.Address,
		Balance: balance,
		Amount:  amount,
		TxHash:  hash,
	}, nil
}

func (o *Orchestrator) waitForFunds(ctx context.Context, handle wallet.Handle) (*big.Int, error) {
	waiter := o.Waiter
	if waiter == nil {
		waiter = fundwait.New(o.Logger)
	}

	if o.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.WaitTimeout)
		defer cancel()
	}

	balance, err := waiter.Wait(ctx, handle)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("no funds within %s: %w", o.WaitTimeout, err)
		}
		return nil, fmt.Errorf("wait for funds: %w", err)
	}
	return balance, nil
}

// release closes the wallet with its own deadline so that it still runs
// after ctx was cancelled.
func (o *Orchestrator) release(logger *slog.Logger, handle wallet.Handle) error {
	timeout := o.CloseTimeout
	if timeout <= 0 {
		timeout = defaultCloseTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := handle.Close(ctx); err != nil {
		logger.Warn("Failed to close wallet cleanly", "err", err)
		return err
	}
	logger.Info("Wallet closed")
	return nil
}
