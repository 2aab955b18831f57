// Package fundwait blocks until a wallet reports a spendable native balance.
//
// States arrive at whatever rate the wallet service pushes them. The waiter
// keeps only the most recent one and looks at it once per interval, so a
// burst of updates costs a single evaluation. A state counts only when the
// wallet reports itself synced; before that its balances are provisional.
package fundwait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

// DefaultInterval is the minimum time between two evaluations.
const DefaultInterval = 10 * time.Second

var (
	// ErrStreamClosed is returned when the state subscription ends before
	// funds arrive.
	ErrStreamClosed = errors.New("wallet state stream closed")

	ErrWaitInProgress = errors.New("fund wait already in progress")
)

// Source is anything that can push wallet states, usually a wallet.Handle.
type Source interface {
	SubscribeState(ctx context.Context, ch chan<- wallet.State) (ethereum.Subscription, error)
}

// Progress is reported once per evaluated state.
type Progress struct {
	SourceGap    uint64
	ApplyGap     uint64
	Transactions int
}

type Waiter struct {
	Interval time.Duration
	Clock    clock.Clock
	Logger   *slog.Logger
	Token    wallet.TokenType

	// OnProgress, if set, observes every evaluated state. It must not
	// block.
	OnProgress func(Progress)

	running atomic.Bool
}

func New(logger *slog.Logger) *Waiter {
	return &Waiter{
		Interval: DefaultInterval,
		Clock:    clock.NewDefaultClock(),
		Logger:   logger,
		Token:    wallet.NativeToken,
	}
}

// Wait returns the first positive balance seen in a synced state. It has no
// deadline of its own; callers bound it through ctx.
func (w *Waiter) Wait(ctx context.Context, src Source) (*big.Int, error) {
	if !w.running.CompareAndSwap(false, true) {
		return nil, ErrWaitInProgress
	}
	defer w.running.Store(false)

	interval, clk, logger, token := w.Interval, w.Clock, w.Logger, w.Token
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if token == "" {
		token = wallet.NativeToken
	}

	states := make(chan wallet.State)
	sub, err := src.SubscribeState(ctx, states)
	if err != nil {
		return nil, fmt.Errorf("subscribe wallet state: %w", err)
	}
	defer sub.Unsubscribe()

	var (
		latest wallet.State
		fresh  bool
	)

	tick := clk.TickAfter(interval)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err := <-sub.Err():
			if err == nil {
				return nil, ErrStreamClosed
			}
			return nil, fmt.Errorf("wallet state stream: %w", err)

		case s := <-states:
			latest, fresh = s, true

		case <-tick:
			tick = clk.TickAfter(interval)
			if !fresh {
				continue
			}
			fresh = false

			if balance, ok := w.evaluate(logger, token, latest); ok {
				return balance, nil
			}
		}
	}
}

func (w *Waiter) evaluate(logger *slog.Logger, token wallet.TokenType, s wallet.State) (*big.Int, bool) {
	var p Progress
	if s.SyncProgress != nil {
		p.ApplyGap = s.SyncProgress.Lag.ApplyGap
		p.SourceGap = s.SyncProgress.Lag.SourceGap
	}
	p.Transactions = len(s.Transactions)

	logger.Info("Waiting for funds",
		"backendLag", p.SourceGap,
		"walletLag", p.ApplyGap,
		"transactions", p.Transactions)
	if w.OnProgress != nil {
		w.OnProgress(p)
	}

	if !s.Synced() {
		return nil, false
	}
	balance := s.Balance(token)
	if balance.Sign() <= 0 {
		return nil, false
	}
	return balance, true
}
