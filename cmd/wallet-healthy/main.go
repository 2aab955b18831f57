package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/logging"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
	"github.com/metis-devops/midnight-transfer/internal/wallet/rpcwallet"
)

/*
	{
	  "healthy": true,
	  "synced": true,
	  "address": "mn_shield-addr_undeployed1...",
	  "balance": "0x1d1a94a2000",
	  "backend_lag": "0x0",
	  "wallet_lag": "0x0",
	  "transactions": 3,
	  "last_update": "2025-03-16T02:12:05Z"
	}
*/

type HealthyResponse struct {
	Healthy      bool           `json:"healthy"`
	Synced       bool           `json:"synced"`
	Address      string         `json:"address"`
	Balance      hexutil.Big    `json:"balance"`
	BackendLag   hexutil.Uint64 `json:"backend_lag"`
	WalletLag    hexutil.Uint64 `json:"wallet_lag"`
	Transactions int            `json:"transactions"`
	Timestamp    time.Time      `json:"last_update"`
}

type monitor struct {
	mutex  sync.RWMutex
	result *HealthyResponse
}

func (m *monitor) refresh(state wallet.State, now time.Time) {
	resp := &HealthyResponse{
		Healthy:      state.Synced(),
		Synced:       state.Synced(),
		Address:      state.Address,
		Balance:      hexutil.Big(*state.Balance(wallet.NativeToken)),
		Transactions: len(state.Transactions),
		Timestamp:    now.UTC(),
	}
	if state.SyncProgress != nil {
		resp.BackendLag = hexutil.Uint64(state.SyncProgress.Lag.SourceGap)
		resp.WalletLag = hexutil.Uint64(state.SyncProgress.Lag.ApplyGap)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.result == nil || m.result.Synced != resp.Synced {
		slog.Info("refreshing", "synced", resp.Synced, "address", resp.Address, "balance", resp.Balance.ToInt())
	}
	m.result = resp
}

// follow feeds every state of the session into the monitor until ctx is
// done or the subscription fails.
func (m *monitor) follow(ctx context.Context, handle wallet.Handle) error {
	states := make(chan wallet.State)
	sub, err := handle.SubscribeState(ctx, states)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			if err == nil {
				return fmt.Errorf("wallet state stream closed")
			}
			return err
		case state := <-states:
			m.refresh(state, time.Now())
		}
	}
}

func (m *monitor) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		m.mutex.RLock()
		defer m.mutex.RUnlock()
		if m.result == nil {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprintf(w, "The wallet is not available now")
			return
		}

		w.Header().Set("content-type", "application/json")
		w.Header().Set("access-control-allow-origin", "*")
		_ = json.NewEncoder(w).Encode(m.result)
	})

	mux.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func main() {
	cfg := config.Standalone()
	var (
		network string
		seed    string
		listen  string
	)
	flag.StringVar(&cfg.Indexer, "indexer", cfg.Indexer, "indexer graphql endpoint")
	flag.StringVar(&cfg.IndexerWS, "indexer-ws", cfg.IndexerWS, "indexer graphql websocket endpoint")
	flag.StringVar(&cfg.Node, "node", cfg.Node, "node rpc endpoint")
	flag.StringVar(&cfg.ProofServer, "proof-server", cfg.ProofServer, "proof server endpoint")
	flag.StringVar(&cfg.WalletService, "wallet-service", cfg.WalletService, "wallet service json-rpc endpoint")
	flag.StringVar(&network, "network", string(cfg.NetworkID), "network id")
	flag.StringVar(&seed, "seed", config.GenesisMintWalletSeed, "hex seed of the watched wallet")
	flag.StringVar(&listen, "listen", ":8080", "http listen address")
	flag.Parse()

	slog.SetDefault(logging.New(os.Stderr, os.Getenv("LOG_LEVEL")))

	networkID, err := config.ParseNetworkID(network)
	if err != nil {
		panic(err)
	}
	cfg.NetworkID = networkID
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	basectx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	svc, err := rpcwallet.Dial(basectx, cfg.WalletService)
	if err != nil {
		panic(err)
	}
	defer svc.Close()

	handle, err := svc.Build(basectx, cfg, seed)
	if err != nil {
		panic(err)
	}
	defer func() {
		newctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := handle.Close(newctx); err != nil {
			slog.Warn("Failed to close wallet cleanly", "err", err)
		}
	}()

	if err := handle.Start(basectx); err != nil {
		slog.Error("Failed to start wallet", "err", err)
		return
	}

	var m monitor
	if state, err := handle.LatestState(basectx); err != nil {
		slog.Error("LatestState", "err", err)
	} else {
		m.refresh(state, time.Now())
	}

	go func() {
		defer cancel()
		if err := m.follow(basectx, handle); err != nil {
			slog.Error("Wallet state subscription ended", "err", err)
		}
	}()

	server := &http.Server{Addr: listen, Handler: m.handler()}
	go func() {
		defer cancel()
		slog.Info("Start and serving...", "listen", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "err", err)
			return
		}
	}()

	<-basectx.Done()
	slog.Info("stopping")
	_ = server.Shutdown(context.Background())
	slog.Info("stopped")
}
